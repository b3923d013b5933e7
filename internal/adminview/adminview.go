// Package adminview はルーム管理者向けの画面状態とコマンドを扱います
//
// 画面の状態は常に最新のスナップショットから導出され、ローカルで予測した値を
// 表示することはありません。操作はすべてストアへのコマンドとして送られ、
// 反映はスナップショットの購読を通じて届きます。
package adminview

import (
	"context"
	"fmt"
	"sync"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
)

// HomePath はルーム終了後の遷移先です
const HomePath = "/"

// DeletePrompt は質問削除の確認メッセージです
const DeletePrompt = "Are you sure you want to delete this question?"

// Commands は管理者操作をストアへ送る先です
type Commands interface {
	EndRoom(ctx context.Context, roomId, userId string) error
	MarkAnswered(ctx context.Context, roomId, userId, questionId string) error
	Highlight(ctx context.Context, roomId, userId, questionId string) error
	DeleteQuestion(ctx context.Context, roomId, userId, questionId string) error
}

// Navigator は画面遷移を行います
type Navigator interface {
	Push(path string)
}

// Confirmer はユーザーに確認を求め、承諾されたかを返します
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// NavigatorFunc は関数を Navigator として使うためのアダプタです
type NavigatorFunc func(path string)

func (f NavigatorFunc) Push(path string) { f(path) }

// ConfirmerFunc は関数を Confirmer として使うためのアダプタです
type ConfirmerFunc func(ctx context.Context, prompt string) bool

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// QuestionItem は1件の質問の表示内容と操作可否です
type QuestionItem struct {
	ID              string        `json:"id"`
	Content         string        `json:"content"`
	Author          models.Author `json:"author"`
	IsAnswered      bool          `json:"isAnswered"`
	IsHighlighted   bool          `json:"isHighlighted"`
	CanMarkAnswered bool          `json:"canMarkAnswered"`
	CanHighlight    bool          `json:"canHighlight"`
	CanDelete       bool          `json:"canDelete"`
}

// Model は管理画面の表示モデルです
type Model struct {
	RoomCode   string         `json:"roomCode"`
	Title      string         `json:"title"`
	CountLabel string         `json:"countLabel,omitempty"` // 0件のときは空
	Empty      bool           `json:"empty"`                // 質問がなければプレースホルダーを表示
	Ended      bool           `json:"ended"`
	Questions  []QuestionItem `json:"questions"`
}

// AdminRoom は1つの管理画面の寿命に対応します
type AdminRoom struct {
	roomId  string
	admin   models.User
	cmds    Commands
	nav     Navigator
	confirm Confirmer

	mu       sync.RWMutex
	snapshot models.RoomSnapshot
}

// New は管理画面を作成します
func New(roomId string, admin models.User, cmds Commands, nav Navigator, confirm Confirmer) *AdminRoom {
	return &AdminRoom{
		roomId:   roomId,
		admin:    admin,
		cmds:     cmds,
		nav:      nav,
		confirm:  confirm,
		snapshot: models.RoomSnapshot{Room: models.Room{ID: roomId}},
	}
}

// Apply は受信したスナップショットで状態を丸ごと置き換えます
func (a *AdminRoom) Apply(s models.RoomSnapshot) {
	a.mu.Lock()
	a.snapshot = s
	a.mu.Unlock()
}

// Model は現在のスナップショットから表示モデルを導出します
func (a *AdminRoom) Model() Model {
	a.mu.RLock()
	s := a.snapshot
	a.mu.RUnlock()
	return Build(a.roomId, s)
}

// Build はスナップショットから表示モデルを作ります
func Build(roomId string, s models.RoomSnapshot) Model {
	m := Model{
		RoomCode:   roomId,
		Title:      s.Room.Title,
		CountLabel: countLabel(len(s.Questions)),
		Empty:      len(s.Questions) == 0,
		Ended:      s.Room.IsEnded(),
		Questions:  make([]QuestionItem, 0, len(s.Questions)),
	}
	for _, q := range s.Questions {
		m.Questions = append(m.Questions, QuestionItem{
			ID:              q.ID,
			Content:         q.Content,
			Author:          q.Author,
			IsAnswered:      q.IsAnswered,
			IsHighlighted:   q.IsHighlighted,
			CanMarkAnswered: !q.IsAnswered,
			CanHighlight:    !q.IsAnswered,
			CanDelete:       true,
		})
	}
	return m
}

func countLabel(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "1 question"
	default:
		return fmt.Sprintf("%d questions", n)
	}
}

// EndRoom はルームを終了し、成功したらホームへ遷移します
func (a *AdminRoom) EndRoom(ctx context.Context) error {
	if err := a.cmds.EndRoom(ctx, a.roomId, a.admin.ID); err != nil {
		return err
	}
	a.nav.Push(HomePath)
	return nil
}

// MarkAnswered は質問を回答済みにします
func (a *AdminRoom) MarkAnswered(ctx context.Context, questionId string) error {
	return a.cmds.MarkAnswered(ctx, a.roomId, a.admin.ID, questionId)
}

// Highlight は質問をハイライトします
func (a *AdminRoom) Highlight(ctx context.Context, questionId string) error {
	return a.cmds.Highlight(ctx, a.roomId, a.admin.ID, questionId)
}

// DeleteQuestion は確認が取れた場合のみ質問を削除します
// 戻り値: 削除したかどうか、エラー
func (a *AdminRoom) DeleteQuestion(ctx context.Context, questionId string) (bool, error) {
	if !a.confirm.Confirm(ctx, DeletePrompt) {
		return false, nil
	}
	if err := a.cmds.DeleteQuestion(ctx, a.roomId, a.admin.ID, questionId); err != nil {
		return false, err
	}
	return true, nil
}
