package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleStub(t *testing.T, userinfo map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestConnector(srv *httptest.Server) *GoogleConnector {
	return NewGoogleConnector(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	}).WithHTTPClient(srv.Client())
}

func TestGoogleExchange(t *testing.T) {
	srv := newGoogleStub(t, map[string]string{
		"sub":     "google-123",
		"name":    "Ana Souza",
		"picture": "https://example.com/ana.png",
	})
	g := newTestConnector(srv)

	p, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &Profile{UID: "google-123", DisplayName: "Ana Souza", PhotoURL: "https://example.com/ana.png"}, p)
}

func TestGoogleExchangeKeepsMissingFieldsEmpty(t *testing.T) {
	srv := newGoogleStub(t, map[string]string{"sub": "google-123"})
	p, err := newTestConnector(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Empty(t, p.DisplayName)
	assert.Empty(t, p.PhotoURL)
}

func TestGoogleExchangeFailures(t *testing.T) {
	srv := newGoogleStub(t, map[string]string{})
	g := newTestConnector(srv)

	_, err := g.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)

	_, err = g.Exchange(context.Background(), "")
	assert.Error(t, err)

	_, err = g.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestGoogleAuthCodeURL(t *testing.T) {
	g := NewGoogleConnector(GoogleConfig{ClientID: "client-id", RedirectURL: "http://localhost/cb"})
	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}
