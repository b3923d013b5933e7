package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/auth"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/session"
)

// SessionCookieName はセッショントークンを保存するCookie名です
const SessionCookieName = "qa_session"

// SessionMiddleware はリクエストごとにセッションを作り、終了時に必ず閉じます
type SessionMiddleware struct {
	connector auth.Connector   // サインインに使うIDプロバイダ
	codec     *auth.TokenCodec // セッショントークンの署名・検証
	log       *slog.Logger
}

// NewSessionMiddleware は新しいSessionMiddlewareを作成します
func NewSessionMiddleware(c auth.Connector, codec *auth.TokenCodec, log *slog.Logger) *SessionMiddleware {
	return &SessionMiddleware{connector: c, codec: codec, log: log}
}

// Handler はセッションをリクエストのコンテキストに載せます
// Cookieのトークンが有効なら、IDプロバイダから既存セッションとして報告されます
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var restored *auth.Profile
		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			p, err := m.codec.Parse(c.Value)
			if err != nil {
				m.log.Debug("discarding session cookie", "error", err)
			} else {
				restored = p
			}
		}

		s := session.New(auth.NewClient(m.connector, restored), m.log)
		defer s.Close()

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

// setSessionCookie はセッショントークンをCookieに保存します
func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
