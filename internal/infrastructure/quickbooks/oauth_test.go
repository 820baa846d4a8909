package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/flocon/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOAuthClient(t *testing.T, handler http.HandlerFunc) *OAuthClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOAuthClient(&OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://flocon.example/api/v1/oauth/callback",
		AuthURL:      server.URL + "/connect/oauth2",
		TokenURL:     server.URL + "/tokens/bearer",
		RevokeURL:    server.URL + "/tokens/revoke",
	}, server.Client())
	require.NoError(t, err)
	return client
}

func assertClientAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "client-id", user)
	assert.Equal(t, "client-secret", pass)
}

func TestOAuthClient_AuthCodeURL(t *testing.T) {
	client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {})

	raw := client.AuthCodeURL("signed-state", []string{"com.intuit.quickbooks.accounting", "openid"})
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/connect/oauth2", u.Path)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "signed-state", q.Get("state"))
	assert.Equal(t, "com.intuit.quickbooks.accounting openid", q.Get("scope"))
	assert.Equal(t, "https://flocon.example/api/v1/oauth/callback", q.Get("redirect_uri"))
}

func TestOAuthClient_Exchange(t *testing.T) {
	client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/bearer", r.URL.Path)
		assertClientAuth(t, r)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		writeJSON(w, http.StatusOK, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"bearer","expires_in":3600,"x_refresh_token_expires_in":8726400}`)
	})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	grant, err := client.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", grant.AccessToken)
	assert.Equal(t, "refresh-1", grant.RefreshToken)
	assert.False(t, grant.AccessExpiresAt.IsZero())
	assert.Equal(t, now.Add(8726400*time.Second), grant.RefreshExpiresAt)
}

func TestOAuthClient_Refresh(t *testing.T) {
	t.Run("rotated refresh token", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			assertClientAuth(t, r)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			writeJSON(w, http.StatusOK, `{"access_token":"access-2","refresh_token":"refresh-2","token_type":"bearer","expires_in":3600,"x_refresh_token_expires_in":8726400}`)
		})
		grant, err := client.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, "access-2", grant.AccessToken)
		assert.Equal(t, "refresh-2", grant.RefreshToken)
	})

	t.Run("refresh token kept", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"access_token":"access-2","token_type":"bearer","expires_in":3600}`)
		})
		grant, err := client.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, "refresh-1", grant.RefreshToken)
		assert.False(t, grant.RefreshExpiresAt.IsZero())
	})

	t.Run("invalid grant requires reauthorization", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token invalid"}`)
		})
		_, err := client.Refresh(context.Background(), "refresh-1")
		assert.ErrorIs(t, err, integration.ErrReauthorizationRequired)
		assert.True(t, integration.IsFatal(err))
	})

	t.Run("server error is transient", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":"temporarily_unavailable"}`)
		})
		_, err := client.Refresh(context.Background(), "refresh-1")
		assert.ErrorIs(t, err, integration.ErrNetwork)
		assert.True(t, integration.IsTransient(err))
	})

	t.Run("other rejections are validation errors", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client"}`)
		})
		_, err := client.Refresh(context.Background(), "refresh-1")
		assert.ErrorIs(t, err, integration.ErrRemoteValidation)
	})
}

func TestOAuthClient_Revoke(t *testing.T) {
	t.Run("revoked", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tokens/revoke", r.URL.Path)
			assertClientAuth(t, r)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["token"])
			w.WriteHeader(http.StatusOK)
		})
		assert.NoError(t, client.Revoke(context.Background(), "refresh-1"))
	})

	t.Run("rejected", func(t *testing.T) {
		client := newTestOAuthClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid_request"}`)
		})
		err := client.Revoke(context.Background(), "refresh-1")
		assert.ErrorIs(t, err, integration.ErrRemoteValidation)
	})
}
