package quickbooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/flocon/backend/internal/infrastructure/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// duplicateNameCode is the fault code of a name already used by another entity
const duplicateNameCode = "6240"

// AccessTokens supplies bearer tokens for a realm
type AccessTokens interface {
	GetValidAccessToken(ctx context.Context, realmID string) (string, error)
	// RefreshAfterRejection is called once when the remote answers 401
	RefreshAfterRejection(ctx context.Context, realmID, rejectedAccess string) (string, error)
}

// RequestObserver is told the duration and result of each HTTP round trip
type RequestObserver interface {
	ObserveRemoteRequest(ctx context.Context, operation string, statusCode int, elapsed time.Duration)
}

// Client is the QuickBooks Online REST client. Reads are retried with
// backoff on rate limiting and network errors; writes are sent once.
// A 401 triggers one token refresh and one replay of the request.
type Client struct {
	config     *Config
	httpClient *http.Client
	tokens     AccessTokens
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	observer   RequestObserver
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new QuickBooks client. httpClient may be nil.
func NewClient(cfg *Config, tokens AccessTokens, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     log,
		sleep:      sleepContext,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "quickbooks",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		// Only outages count against the circuit; a rejected payload or an
		// expired token says nothing about the remote's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !integration.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c, nil
}

// WithObserver sets the request observer
func (c *Client) WithObserver(observer RequestObserver) *Client {
	c.observer = observer
	return c
}

// request describes one API call
type request struct {
	operation string
	method    string
	path      string // relative to /v3/company/{realm}/
	query     url.Values
	body      any
	// read marks calls that may be retried
	read bool
}

// do executes req for realm and decodes the JSON response into out. It
// returns the raw body.
func (c *Client) do(ctx context.Context, realmID string, req request, out any) ([]byte, error) {
	if realmID == "" {
		return nil, fmt.Errorf("%w: realm id is required", integration.ErrNotConnected)
	}

	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, fmt.Errorf("quickbooks: failed to encode %s: %w", req.operation, err)
		}
	}

	attempts := 1
	if req.read {
		attempts = c.config.RetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.authorized(ctx, realmID, req, payload)
		if err == nil {
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return nil, integration.NewRemoteError(integration.ErrRemoteValidation, http.StatusOK, "",
						"unexpected response", fmt.Sprintf("decode %s: %v", req.operation, err))
				}
			}
			return body, nil
		}
		lastErr = err
		if !integration.IsTransient(err) || attempt == attempts {
			break
		}
		delay := c.backoff(attempt)
		logger.L(ctx).Warn("Retrying QuickBooks read",
			zap.String("operation", req.operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// authorized sends the request with a valid token and replays it once after
// a 401 with a refreshed token
func (c *Client) authorized(ctx context.Context, realmID string, req request, payload []byte) ([]byte, error) {
	token, err := c.tokens.GetValidAccessToken(ctx, realmID)
	if err != nil {
		return nil, err
	}
	body, err := c.send(ctx, realmID, token, req, payload)
	if !errors.Is(err, integration.ErrAuthExpired) {
		return body, err
	}

	logger.L(ctx).Info("Access token rejected, refreshing", zap.String("operation", req.operation))
	token, err = c.tokens.RefreshAfterRejection(ctx, realmID, token)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, realmID, token, req, payload)
}

// send performs one HTTP round trip through the circuit breaker
func (c *Client) send(ctx context.Context, realmID, token string, req request, payload []byte) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, realmID, token, req, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, integration.NewRemoteError(integration.ErrNetwork, 0, "", "circuit open", err.Error())
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, realmID, token string, req request, payload []byte) ([]byte, error) {
	u := c.endpoint(realmID, req.path, req.query)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("quickbooks: failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(ctx, req.operation, 0, start)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, integration.NewRemoteError(integration.ErrNetwork, 0, "", "request failed", err.Error())
	}
	defer resp.Body.Close()
	c.observe(ctx, req.operation, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewRemoteError(integration.ErrNetwork, resp.StatusCode, "", "failed to read response", err.Error())
	}
	if resp.StatusCode >= 400 {
		return nil, classify(resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) endpoint(realmID, path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("minorversion", strconv.Itoa(c.config.MinorVersion))
	return fmt.Sprintf("%s/v3/company/%s/%s?%s", c.config.APIBaseURL, url.PathEscape(realmID), path, q.Encode())
}

func (c *Client) observe(ctx context.Context, operation string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRemoteRequest(ctx, operation, status, time.Since(start))
	}
}

// backoff returns the delay before retry attempt+1: exponential from the
// base delay, capped, with full jitter over the upper half
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryBaseDelay << (attempt - 1)
	if d <= 0 || d > c.config.RetryMaxDelay {
		d = c.config.RetryMaxDelay
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

// classify maps an error response to the integration error taxonomy
func classify(status int, body []byte) error {
	var f fault
	_ = json.Unmarshal(body, &f)

	var code, message, detail string
	if len(f.Fault.Error) > 0 {
		e := f.Fault.Error[0]
		code, message, detail = e.Code, e.Message, e.Detail
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return integration.NewRemoteError(integration.ErrAuthExpired, status, code, message, detail)
	case status == http.StatusTooManyRequests:
		return integration.NewRemoteError(integration.ErrRateLimited, status, code, message, detail)
	case status >= 500:
		return integration.NewRemoteError(integration.ErrNetwork, status, code, message, detail)
	case code == duplicateNameCode:
		return integration.NewRemoteError(integration.ErrRemoteConflict, status, code, message, detail)
	default:
		return integration.NewRemoteError(integration.ErrRemoteValidation, status, code, message, detail)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
