package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNoUser はサインインが完了したのにユーザーが返らなかった場合のエラーです
var ErrNoUser = errors.New("provider returned no user")

// Profile はIDプロバイダが返すユーザー情報です
// DisplayName / PhotoURL は空の場合があります
type Profile struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Connector は対話的な同意フローを完了させるプロバイダです
type Connector interface {
	// AuthCodeURL は同意画面のURLを返します
	AuthCodeURL(state string) string
	// Exchange は認可コードをプロフィールに交換します
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Client はブラウザ1つ分の認証状態です
type Client struct {
	connector Connector

	mu        sync.Mutex
	current   *Profile
	nextID    int
	listeners map[int]func(*Profile)
}

// NewClient は新しいClientを作成します
// restored が nil でなければ既存のセッションとして扱います
func NewClient(c Connector, restored *Profile) *Client {
	return &Client{connector: c, current: restored, listeners: make(map[int]func(*Profile))}
}

// CurrentUser は現在のプロフィールを返します（未サインインなら nil）
func (c *Client) CurrentUser() *Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnAuthStateChanged はリスナーを登録し、登録時点の状態ですぐに一度呼び出します
// 戻り値の関数で登録を解除します
func (c *Client) OnAuthStateChanged(fn func(*Profile)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// SignInWithPopup は同意フローで得た認可コードでサインインを完了させます
func (c *Client) SignInWithPopup(ctx context.Context, code string) (*Profile, error) {
	p, err := c.connector.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoUser
	}

	c.mu.Lock()
	c.current = p
	fns := make([]func(*Profile), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return p, nil
}
