package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/auth"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConnector struct{}

func (nopConnector) AuthCodeURL(state string) string { return "/consent?state=" + state }

func (nopConnector) Exchange(ctx context.Context, code string) (*auth.Profile, error) {
	return &auth.Profile{UID: "u1", DisplayName: "Ana", PhotoURL: "https://example.com/ana.png"}, nil
}

func TestSessionMiddlewareRestoresAndCloses(t *testing.T) {
	codec := auth.NewTokenCodec([]byte("secret"), time.Hour)
	mw := NewSessionMiddleware(nopConnector{}, codec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen *session.Session
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		require.True(t, ok)
		seen = s
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := codec.Issue(auth.Profile{UID: "u1", DisplayName: "Ana", PhotoURL: "https://example.com/ana.png"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	u, ok := seen.User()
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)

	// リクエスト終了後のセッションは閉じている
	err = seen.SignInWithGoogle(context.Background(), "code")
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestSessionMiddlewareWithoutCookie(t *testing.T) {
	codec := auth.NewTokenCodec([]byte("secret"), time.Hour)
	mw := NewSessionMiddleware(nopConnector{}, codec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var state session.State = session.Authenticated
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		state = s.State()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, session.Unauthenticated, state)
}
