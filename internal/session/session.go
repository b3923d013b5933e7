// Package session はサインイン中のユーザーを管理します
//
// 状態は Unauthenticated と Authenticated の2つだけで、初期状態は Unauthenticated です。
// IDプロバイダから既存セッションが報告されるか、対話的なサインインが成功すると
// Authenticated に遷移します。サインアウトによる逆向きの遷移はありません。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/auth"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
)

// State はセッションの状態です
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// AuthClient はセッションが依存するIDプロバイダのクライアントです
type AuthClient interface {
	OnAuthStateChanged(fn func(*auth.Profile)) (unsubscribe func())
	SignInWithPopup(ctx context.Context, code string) (*auth.Profile, error)
}

// Session はサインイン中のユーザーを保持します
// 生成時に認証状態のリスナーを1つだけ登録し、Close で必ず解除します
type Session struct {
	client AuthClient
	log    *slog.Logger

	mu          sync.RWMutex
	user        *models.User
	closed      bool
	unsubscribe func()
	nextID      int
	subs        map[int]func(*models.User)
}

// New は新しいSessionを作成し、認証状態の購読を開始します
func New(c AuthClient, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{client: c, log: log, subs: make(map[int]func(*models.User))}
	unsubscribe := c.OnAuthStateChanged(s.handleAuthState)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s
}

// userFromProfile はプロフィールからユーザーを作ります
// 表示名とアイコンのどちらかが欠けていればエラーです
func userFromProfile(p *auth.Profile) (models.User, error) {
	if p.DisplayName == "" || p.PhotoURL == "" {
		return models.User{}, &IncompleteProfileError{
			UID:           p.UID,
			MissingName:   p.DisplayName == "",
			MissingAvatar: p.PhotoURL == "",
		}
	}
	return models.User{ID: p.UID, Name: p.DisplayName, Avatar: p.PhotoURL}, nil
}

func (s *Session) handleAuthState(p *auth.Profile) {
	if p == nil {
		return
	}
	u, err := userFromProfile(p)
	if err != nil {
		s.log.Warn("ignoring auth state with incomplete profile", "uid", p.UID, "error", err)
		return
	}
	s.setUser(u)
}

func (s *Session) setUser(u models.User) {
	s.mu.Lock()
	if s.closed || (s.user != nil && *s.user == u) {
		s.mu.Unlock()
		return
	}
	s.user = &u
	fns := make([]func(*models.User), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		v := u
		fn(&v)
	}
}

// SignInWithGoogle はGoogleの同意画面から戻ってきた認可コードでサインインします
// 失敗してもリトライはしません
func (s *Session) SignInWithGoogle(ctx context.Context, code string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return &SignInError{Err: ErrClosed}
	}

	p, err := s.client.SignInWithPopup(ctx, code)
	if err != nil {
		return &SignInError{Err: err}
	}
	u, err := userFromProfile(p)
	if err != nil {
		return err
	}
	s.setUser(u)
	return nil
}

// User は現在のユーザーを返します
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// State は現在の状態を返します
func (s *Session) State() State {
	if _, ok := s.User(); ok {
		return Authenticated
	}
	return Unauthenticated
}

// Subscribe は状態が変わるたびに呼ばれるリスナーを登録します
// 登録時点の状態（未サインインなら nil）ですぐに一度呼び出します
func (s *Session) Subscribe(fn func(*models.User)) (cancel func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	var current *models.User
	if s.user != nil {
		u := *s.user
		current = &u
	}
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close は認証状態の購読を解除します
// 以降にプロバイダから届いたイベントは無視されます
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.subs = make(map[int]func(*models.User))
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

type ctxKey struct{}

// WithSession はセッションをコンテキストに載せます
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext はコンテキストからセッションを取り出します
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
