package auth

import (
	"errors"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	stateIssuer     = "flocon"
	stateAudience   = "oauth-callback"
	defaultStateTTL = 10 * time.Minute
)

// Common errors
var (
	ErrInvalidState   = errors.New("invalid oauth state")
	ErrExpiredState   = errors.New("oauth state has expired")
	ErrMissingSecret  = errors.New("state secret is required")
	ErrStateMalformed = errors.New("oauth state claims are malformed")
)

// StateClaims is the payload of a signed OAuth state
type StateClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// StateSigner signs the OAuth state parameter as a short-lived HS256 JWT.
// The random jti makes each state unique; the expiry bounds replay.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a new StateSigner
func NewStateSigner(cfg config.SecurityConfig) (*StateSigner, error) {
	if cfg.StateSecret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &StateSigner{
		secret: []byte(cfg.StateSecret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Sign returns a state carrying scopes
func (s *StateSigner) Sign(scopes []string) (string, error) {
	now := s.now()
	claims := &StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    stateIssuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scopes: scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry of state and returns its scopes
func (s *StateSigner) Verify(state string) ([]string, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return s.secret, nil
	},
		jwt.WithIssuer(stateIssuer),
		jwt.WithAudience(stateAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredState
		}
		return nil, ErrInvalidState
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrStateMalformed
	}
	return claims.Scopes, nil
}
