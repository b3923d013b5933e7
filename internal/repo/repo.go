package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordExists   = errors.New("record already exists")
	ErrUnknownField   = errors.New("unknown field")
	ErrInvalidValue   = errors.New("invalid field value")
)

// RoomRepo はルームと質問のレコードストアです
// レコードは rooms/{roomId} と rooms/{roomId}/questions/{questionId} のパスで扱います
type RoomRepo interface {
	CreateRoom(ctx context.Context, room models.Room) error
	GetRoom(ctx context.Context, roomId string) (models.Room, bool, error)
	ExistsRoom(ctx context.Context, roomId string) (bool, error)
	UpdateRoom(ctx context.Context, roomId string, fields Fields) error

	AddQuestion(ctx context.Context, roomId string, q models.Question) error
	GetQuestion(ctx context.Context, roomId, questionId string) (models.Question, bool, error)
	UpdateQuestion(ctx context.Context, roomId, questionId string, fields Fields) error
	RemoveQuestion(ctx context.Context, roomId, questionId string) error
	ListQuestions(ctx context.Context, roomId string) ([]models.Question, error)

	// Subscribe はルーム配下のレコードが変更されるたびに通知を受け取るチャネルを返します
	// ctx が終了するとチャネルは閉じられます
	Subscribe(ctx context.Context, roomId string) (<-chan struct{}, error)
}

// RoomPath はルームレコードのパスです
func RoomPath(roomId string) string {
	return fmt.Sprintf("rooms/%s", roomId)
}

// QuestionPath は質問レコードのパスです
func QuestionPath(roomId, questionId string) string {
	return fmt.Sprintf("rooms/%s/questions/%s", roomId, questionId)
}
