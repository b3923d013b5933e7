// Package service はビジネスロジックを担当します
// ルームの作成・参加・質問の投稿と、管理者による質問の操作、ルームの購読を提供します
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/idgen"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/repo"
)

// RoomService はルーム管理のビジネスロジックを提供します
type RoomService struct {
	repo repo.RoomRepo    // データ永続化を担当するリポジトリ
	idg  IDGenerator      // ルームID生成器
	now  func() time.Time // 現在時刻（テストで差し替え）
}

// IDGenerator はユニークなIDを生成するインターフェース
type IDGenerator interface {
	New() (string, error) // 新しいIDを生成
}

// roomIDGen はIDGeneratorの実装
type roomIDGen struct{}

// New は新しいルームIDを生成します
func (roomIDGen) New() (string, error) { return idgen.NewRoomID() }

// NewRoomIDGenerator は新しいRoomIDGeneratorを作成します
func NewRoomIDGenerator() IDGenerator {
	return roomIDGen{}
}

// NewRoomService は新しいRoomServiceを作成します
func NewRoomService(r repo.RoomRepo, idg IDGenerator) *RoomService {
	return &RoomService{repo: r, idg: idg, now: time.Now}
}

// Create は新しいルームを作成します
// 処理の流れ:
// 1. ユニークなルームIDを生成（重複チェック付き、最大10回リトライ）
// 2. 作成者を管理者としてルームを保存
func (s *RoomService) Create(ctx context.Context, owner models.User, title string) (models.Room, error) {
	const maxRetries = 10 // ID生成の最大リトライ回数

	if owner.ID == "" {
		return models.Room{}, ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Room{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}

	for i := 0; i < maxRetries; i++ {
		roomId, err := s.idg.New()
		if err != nil {
			return models.Room{}, err
		}

		room := models.Room{ID: roomId, Title: title, AuthorID: owner.ID, CreatedAt: s.now().UTC()}
		err = s.repo.CreateRoom(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, repo.ErrRecordExists) {
			return models.Room{}, err
		}
		// 重複あり、次の試行へ
	}
	return models.Room{}, ErrRoomIDGenerationFailed
}

// Get は指定されたルームと質問一覧を取得します
// 戻り値: スナップショット、存在フラグ、エラー
func (s *RoomService) Get(ctx context.Context, roomId string) (models.RoomSnapshot, bool, error) {
	r, ok, err := s.repo.GetRoom(ctx, roomId)
	if err != nil || !ok {
		return models.RoomSnapshot{}, false, err
	}
	qs, err := s.repo.ListQuestions(ctx, roomId)
	if err != nil {
		return models.RoomSnapshot{}, false, err
	}
	return models.RoomSnapshot{Room: r, Questions: qs}, true, nil
}

// Join はルームに参加できるかを確認します
// 存在しないルーム、終了済みのルームには参加できません
func (s *RoomService) Join(ctx context.Context, roomId string) (models.Room, error) {
	r, ok, err := s.repo.GetRoom(ctx, roomId)
	if err != nil {
		return models.Room{}, err
	}
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	if r.IsEnded() {
		return models.Room{}, ErrRoomEnded
	}
	return r, nil
}

// AskQuestion はサインイン中のユーザーとして質問を投稿します
func (s *RoomService) AskQuestion(ctx context.Context, roomId string, user models.User, content string) (models.Question, error) {
	if user.ID == "" {
		return models.Question{}, ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Question{}, fmt.Errorf("%w: content required", ErrInvalidInput)
	}
	if _, err := s.Join(ctx, roomId); err != nil {
		return models.Question{}, err
	}

	q := models.Question{
		ID:        idgen.NewULID(),
		Content:   content,
		Author:    models.AuthorFromUser(user),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AddQuestion(ctx, roomId, q); err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return models.Question{}, ErrRoomNotFound
		}
		return models.Question{}, err
	}
	return q, nil
}

// requireOwner はルームの存在と管理者であることを確認します
func (s *RoomService) requireOwner(ctx context.Context, roomId, userId string) error {
	if userId == "" {
		return ErrUnauthenticated
	}
	r, ok, err := s.repo.GetRoom(ctx, roomId)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRoomNotFound
	}
	if r.AuthorID != userId {
		return ErrNotRoomOwner
	}
	return nil
}

// EndRoom はルームに終了日時を設定します（管理者のみ）
// 再開する操作はありません
func (s *RoomService) EndRoom(ctx context.Context, roomId, userId string) error {
	if err := s.requireOwner(ctx, roomId, userId); err != nil {
		return err
	}
	err := s.repo.UpdateRoom(ctx, roomId, repo.Fields{repo.FieldEndedAt: s.now().UTC()})
	if errors.Is(err, repo.ErrRecordNotFound) {
		return ErrRoomNotFound
	}
	return err
}

// MarkAnswered は質問を回答済みにします（管理者のみ）
func (s *RoomService) MarkAnswered(ctx context.Context, roomId, userId, questionId string) error {
	return s.updateQuestion(ctx, roomId, userId, questionId, repo.Fields{repo.FieldIsAnswered: true})
}

// Highlight は質問をハイライトします（管理者のみ）
// 他の質問のハイライトは解除しません
func (s *RoomService) Highlight(ctx context.Context, roomId, userId, questionId string) error {
	return s.updateQuestion(ctx, roomId, userId, questionId, repo.Fields{repo.FieldIsHighlighted: true})
}

func (s *RoomService) updateQuestion(ctx context.Context, roomId, userId, questionId string, fields repo.Fields) error {
	if err := s.requireOwner(ctx, roomId, userId); err != nil {
		return err
	}
	err := s.repo.UpdateQuestion(ctx, roomId, questionId, fields)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return ErrQuestionNotFound
	}
	return err
}

// DeleteQuestion は質問を削除します（管理者のみ）
// 確認は呼び出し側で済ませておく必要があります
func (s *RoomService) DeleteQuestion(ctx context.Context, roomId, userId, questionId string) error {
	if err := s.requireOwner(ctx, roomId, userId); err != nil {
		return err
	}
	err := s.repo.RemoveQuestion(ctx, roomId, questionId)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return ErrQuestionNotFound
	}
	return err
}

// Watch はルームのスナップショットを購読します
// 最初に現在のスナップショットを送り、以降はストアが変更されるたびに最新を送ります
// ctx が終了するとチャネルは閉じられます
func (s *RoomService) Watch(ctx context.Context, roomId string) (<-chan models.RoomSnapshot, error) {
	wctx, cancel := context.WithCancel(ctx)

	events, err := s.repo.Subscribe(wctx, roomId)
	if err != nil {
		cancel()
		return nil, err
	}
	snap, ok, err := s.Get(wctx, roomId)
	if err != nil {
		cancel()
		return nil, err
	}
	if !ok {
		cancel()
		return nil, ErrRoomNotFound
	}

	out := make(chan models.RoomSnapshot, 1)
	go func() {
		defer close(out)
		defer cancel()

		send := func(v models.RoomSnapshot) bool {
			select {
			case out <- v:
				return true
			case <-wctx.Done():
				return false
			}
		}
		if !send(snap) {
			return
		}
		for range events {
			snap, ok, err := s.Get(wctx, roomId)
			if err != nil || !ok {
				// 読み直しに失敗した場合は次の通知を待つ
				continue
			}
			if !send(snap) {
				return
			}
		}
	}()
	return out, nil
}
