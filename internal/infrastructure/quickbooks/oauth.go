package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"golang.org/x/oauth2"
)

// refreshExpiryExtra is the token response field holding the refresh token
// lifetime in seconds
const refreshExpiryExtra = "x_refresh_token_expires_in"

// OAuthClient implements the authorization-code flow against the
// QuickBooks authorization server
type OAuthClient struct {
	config     *OAuthConfig
	oauth      *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthClient creates a new OAuthClient. httpClient may be nil.
func NewOAuthClient(cfg *OAuthConfig, httpClient *http.Client) (*OAuthClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OAuthClient{
		config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// AuthCodeURL returns the consent URL for scopes
func (c *OAuthClient) AuthCodeURL(state string, scopes []string) string {
	cfg := *c.oauth
	cfg.Scopes = scopes
	return cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*integration.TokenGrant, error) {
	tok, err := c.oauth.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, c.classify(err)
	}
	return c.grant(tok, ""), nil
}

// Refresh trades a refresh token for a new pair. The server may rotate the
// refresh token; when it does not, the old one is kept.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*integration.TokenGrant, error) {
	src := c.oauth.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.classify(err)
	}
	return c.grant(tok, refreshToken), nil
}

// Revoke invalidates token at the authorization server
func (c *OAuthClient) Revoke(ctx context.Context, token string) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RevokeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("quickbooks: failed to create revoke request: %w", err)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return integration.NewRemoteError(integration.ErrNetwork, 0, "", "revoke failed", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	kind := integration.ErrRemoteValidation
	if resp.StatusCode >= 500 {
		kind = integration.ErrNetwork
	}
	return integration.NewRemoteError(kind, resp.StatusCode, "", "revoke rejected", string(detail))
}

func (c *OAuthClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) grant(tok *oauth2.Token, previousRefresh string) *integration.TokenGrant {
	now := c.now()
	g := &integration.TokenGrant{
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		AccessExpiresAt: tok.Expiry,
	}
	if g.RefreshToken == "" {
		g.RefreshToken = previousRefresh
	}
	if g.AccessExpiresAt.IsZero() {
		g.AccessExpiresAt = now.Add(time.Hour)
	}
	if secs, ok := tok.Extra(refreshExpiryExtra).(float64); ok && secs > 0 {
		g.RefreshExpiresAt = now.Add(time.Duration(secs) * time.Second)
	} else {
		g.RefreshExpiresAt = now.Add(100 * 24 * time.Hour)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		g.Scope = scope
	}
	return g
}

// classify maps token endpoint failures: a rejected grant needs a new
// authorization, a 5xx or transport failure may be retried
func (c *OAuthClient) classify(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		switch {
		case re.ErrorCode == "invalid_grant":
			return fmt.Errorf("%w: %s", integration.ErrReauthorizationRequired, re.ErrorDescription)
		case status >= 500:
			return integration.NewRemoteError(integration.ErrNetwork, status, re.ErrorCode, "token endpoint failed", re.ErrorDescription)
		default:
			return integration.NewRemoteError(integration.ErrRemoteValidation, status, re.ErrorCode, "token request rejected", re.ErrorDescription)
		}
	}
	return integration.NewRemoteError(integration.ErrNetwork, 0, "", "token request failed", err.Error())
}
