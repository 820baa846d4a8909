package auth

import (
	"testing"
	"time"

	"github.com/flocon/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateSigner(t *testing.T) *StateSigner {
	t.Helper()
	s, err := NewStateSigner(config.SecurityConfig{
		StateSecret: "test-state-secret-at-least-32-chars",
		StateTTL:    10 * time.Minute,
	})
	require.NoError(t, err)
	return s
}

func TestNewStateSigner(t *testing.T) {
	_, err := NewStateSigner(config.SecurityConfig{})
	assert.ErrorIs(t, err, ErrMissingSecret)

	s, err := NewStateSigner(config.SecurityConfig{StateSecret: "secret"})
	require.NoError(t, err)
	assert.Equal(t, defaultStateTTL, s.ttl)
}

func TestStateSigner_RoundTrip(t *testing.T) {
	s := newTestStateSigner(t)
	scopes := []string{"com.intuit.quickbooks.accounting", "openid"}

	state, err := s.Sign(scopes)
	require.NoError(t, err)

	got, err := s.Verify(state)
	require.NoError(t, err)
	assert.Equal(t, scopes, got)
}

func TestStateSigner_StatesAreUnique(t *testing.T) {
	s := newTestStateSigner(t)
	a, err := s.Sign(nil)
	require.NoError(t, err)
	b, err := s.Sign(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStateSigner_Expired(t *testing.T) {
	s := newTestStateSigner(t)
	issued := time.Now()
	s.now = func() time.Time { return issued }
	state, err := s.Sign(nil)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(11 * time.Minute) }
	_, err = s.Verify(state)
	assert.ErrorIs(t, err, ErrExpiredState)
}

func TestStateSigner_Rejects(t *testing.T) {
	s := newTestStateSigner(t)

	t.Run("tampered", func(t *testing.T) {
		state, err := s.Sign([]string{"openid"})
		require.NoError(t, err)
		_, err = s.Verify(state + "x")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewStateSigner(config.SecurityConfig{StateSecret: "another-secret"})
		require.NoError(t, err)
		state, err := other.Sign(nil)
		require.NoError(t, err)
		_, err = s.Verify(state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not-a-state")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := &StateClaims{RegisteredClaims: jwt.RegisteredClaims{
			ID:        "abc",
			Issuer:    stateIssuer,
			Audience:  jwt.ClaimStrings{"elsewhere"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
		require.NoError(t, err)
		_, err = s.Verify(state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := &StateClaims{RegisteredClaims: jwt.RegisteredClaims{
			ID:        "abc",
			Issuer:    stateIssuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}
		state, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(state)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
