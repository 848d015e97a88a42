package fhir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAuthHeaders(t *testing.T) {
	t.Run("bearer wins over api key", func(t *testing.T) {
		h := AuthHeaders("key", "tok")
		assert.Equal(t, "Bearer tok", h.Get("Authorization"))
		assert.Empty(t, h.Get("X-API-Key"))
	})
	t.Run("api key only", func(t *testing.T) {
		h := AuthHeaders("key", "")
		assert.Equal(t, "key", h.Get("X-API-Key"))
		assert.Empty(t, h.Get("Authorization"))
	})
	t.Run("unauthenticated", func(t *testing.T) {
		h := AuthHeaders("", "")
		assert.Empty(t, h.Get("X-API-Key"))
		assert.Empty(t, h.Get("Authorization"))
		assert.Equal(t, "application/fhir+json", h.Get("Accept"))
	})
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != "cid" ||
			r.PostForm.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "openid", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAuthenticatePrefersBearer(t *testing.T) {
	ts := tokenServer(t)
	creds := Credentials{
		APIKey:       "key",
		TokenURL:     ts.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
	}

	c := NewClient("http://fhir.invalid", creds, ts.Client(), zap.NewNop())
	c.Authenticate(context.Background())

	h := c.Headers()
	assert.Equal(t, "Bearer tok-123", h.Get("Authorization"))
	assert.Empty(t, h.Get("X-API-Key"))
}

func TestClientAuthenticateFallsBackToAPIKey(t *testing.T) {
	ts := tokenServer(t)
	creds := Credentials{
		APIKey:       "key",
		TokenURL:     ts.URL,
		ClientID:     "cid",
		ClientSecret: "wrong",
	}

	c := NewClient("http://fhir.invalid", creds, ts.Client(), zap.NewNop())
	c.Authenticate(context.Background())

	h := c.Headers()
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "key", h.Get("X-API-Key"))
}

func TestClientWithoutOAuthSkipsTokenRequest(t *testing.T) {
	c := NewClient("http://fhir.invalid", Credentials{APIKey: "key", ClientID: "cid"}, nil, zap.NewNop())
	c.Authenticate(context.Background())

	assert.Equal(t, "key", c.Headers().Get("X-API-Key"))
}
