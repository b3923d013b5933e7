package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/auth"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/session"
	"github.com/google/uuid"
)

// stateCookieName は同意フローのstateを保存するCookie名です
const stateCookieName = "qa_oauth_state"

const stateTTL = 10 * time.Minute

// AuthHandler はGoogleサインインのエンドポイントを提供します
type AuthHandler struct {
	connector  auth.Connector
	codec      *auth.TokenCodec
	sessionTTL time.Duration
	secure     bool // Cookie に Secure を付けるか
	log        *slog.Logger
}

// NewAuthHandler は新しいAuthHandlerを作成します
func NewAuthHandler(c auth.Connector, codec *auth.TokenCodec, sessionTTL time.Duration, secure bool, log *slog.Logger) *AuthHandler {
	return &AuthHandler{connector: c, codec: codec, sessionTTL: sessionTTL, secure: secure, log: log}
}

// Login はstateを発行してGoogleの同意画面へリダイレクトします
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.connector.AuthCodeURL(state), http.StatusFound)
}

// Callback は同意画面から戻ってきた認可コードでサインインします
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		respondError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	// stateは一度きり
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1})

	if e := q.Get("error"); e != "" {
		h.log.Info("sign-in cancelled by provider", "error", e)
		respondError(w, http.StatusBadGateway, "sign-in failed")
		return
	}
	code := q.Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "code required")
		return
	}

	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.SignInWithGoogle(r.Context(), code); err != nil {
		var signInErr *session.SignInError
		switch {
		case errors.Is(err, session.ErrIncompleteProfile):
			h.log.Info("sign-in rejected", "error", err)
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &signInErr):
			h.log.Warn("sign-in failed", "error", err)
			respondError(w, http.StatusBadGateway, "sign-in failed")
		default:
			h.log.Error("sign-in failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	u, _ := s.User()
	token, err := h.codec.Issue(auth.Profile{UID: u.ID, DisplayName: u.Name, PhotoURL: u.Avatar})
	if err != nil {
		h.log.Error("failed to issue session token", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	setSessionCookie(w, token, h.sessionTTL, h.secure)
	h.log.Info("signed in", "user_id", u.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Me はサインイン中のユーザーを返します
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": u})
}
