package quickbooks

import (
	"errors"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
)

const (
	// ProductionAPIURL is the production REST endpoint
	ProductionAPIURL = "https://quickbooks.api.intuit.com"
	// SandboxAPIURL is the sandbox REST endpoint
	SandboxAPIURL = "https://sandbox-quickbooks.api.intuit.com"

	// AuthorizeURL is the consent page of the authorization server
	AuthorizeURL = "https://appcenter.intuit.com/connect/oauth2"
	// TokenURL exchanges codes and refresh tokens
	TokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	// RevokeURL invalidates refresh tokens
	RevokeURL = "https://developer.api.intuit.com/v2/oauth2/tokens/revoke"
)

// Errors for QuickBooks configuration
var (
	ErrConfigMissingBaseURL      = errors.New("quickbooks: API base URL is required")
	ErrConfigMissingClientID     = errors.New("quickbooks: client id is required")
	ErrConfigMissingClientSecret = errors.New("quickbooks: client secret is required")
)

// Config holds the REST client settings
type Config struct {
	// APIBaseURL is the REST endpoint without the /v3 suffix
	APIBaseURL string
	// MinorVersion is sent with every request
	MinorVersion int
	// Timeout bounds one HTTP round trip
	Timeout time.Duration
	// RetryAttempts bounds read attempts on rate limiting and network errors
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// BreakerFailures consecutive transient failures open the circuit
	BreakerFailures int
	// BreakerTimeout is how long the circuit stays open
	BreakerTimeout time.Duration
	// RequestsPerSecond paces outgoing requests below the remote throttle
	RequestsPerSecond float64
}

// NewConfig derives the client settings from the application configuration
func NewConfig(cfg *config.QuickBooksConfig) *Config {
	return &Config{
		APIBaseURL:      cfg.BaseURL(),
		MinorVersion:    cfg.MinorVersion,
		Timeout:         cfg.Timeout,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		RetryMaxDelay:   cfg.RetryMaxDelay,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}

// Validate checks required settings and fills defaults
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.MinorVersion <= 0 {
		c.MinorVersion = 75
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 8 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 60 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 8
	}
	return nil
}

// OAuthConfig holds the authorization server settings
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
	Timeout      time.Duration
}

// NewOAuthConfig derives the OAuth settings from the application configuration
func NewOAuthConfig(cfg *config.QuickBooksConfig) *OAuthConfig {
	return &OAuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      AuthorizeURL,
		TokenURL:     TokenURL,
		RevokeURL:    RevokeURL,
		Timeout:      cfg.Timeout,
	}
}

// Validate checks required settings and fills defaults
func (c *OAuthConfig) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.AuthURL == "" {
		c.AuthURL = AuthorizeURL
	}
	if c.TokenURL == "" {
		c.TokenURL = TokenURL
	}
	if c.RevokeURL == "" {
		c.RevokeURL = RevokeURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
