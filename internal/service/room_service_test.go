package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqIDGen は決められた順にIDを返します
type seqIDGen struct {
	ids []string
	i   int
}

func (g *seqIDGen) New() (string, error) {
	if g.i >= len(g.ids) {
		return "", errors.New("out of ids")
	}
	id := g.ids[g.i]
	g.i++
	return id, nil
}

var (
	admin = models.User{ID: "admin-1", Name: "Admin", Avatar: "https://example.com/admin.png"}
	guest = models.User{ID: "guest-1", Name: "Guest", Avatar: "https://example.com/guest.png"}
	fixed = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T, ids ...string) (*RoomService, *repo.MemoryRoomRepo) {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"abc123"}
	}
	r := repo.NewMemoryRoomRepo()
	s := NewRoomService(r, &seqIDGen{ids: ids})
	s.now = func() time.Time { return fixed }
	return s, r
}

// seedRoom は abc123 に q1, q2 を持つルームを用意します
func seedRoom(t *testing.T, s *RoomService) (models.Question, models.Question) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Create(ctx, admin, "Go Q&A")
	require.NoError(t, err)
	q1, err := s.AskQuestion(ctx, "abc123", guest, "first?")
	require.NoError(t, err)
	q2, err := s.AskQuestion(ctx, "abc123", guest, "second?")
	require.NoError(t, err)
	return q1, q2
}

func TestCreate(t *testing.T) {
	s, _ := newTestService(t)
	room, err := s.Create(context.Background(), admin, "  Go Q&A  ")
	require.NoError(t, err)
	assert.Equal(t, models.Room{ID: "abc123", Title: "Go Q&A", AuthorID: "admin-1", CreatedAt: fixed}, room)
}

func TestCreateValidation(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Create(context.Background(), models.User{}, "title")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.Create(context.Background(), admin, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	s, _ := newTestService(t, "abc123", "abc123", "def456")
	_, err := s.Create(context.Background(), admin, "first")
	require.NoError(t, err)

	room, err := s.Create(context.Background(), admin, "second")
	require.NoError(t, err)
	assert.Equal(t, "def456", room.ID)
}

func TestCreateGivesUpAfterMaxRetries(t *testing.T) {
	ids := make([]string, 11)
	for i := range ids {
		ids[i] = "same"
	}
	s, _ := newTestService(t, ids...)
	_, err := s.Create(context.Background(), admin, "first")
	require.NoError(t, err)

	_, err = s.Create(context.Background(), admin, "second")
	assert.ErrorIs(t, err, ErrRoomIDGenerationFailed)
}

func TestJoin(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	_, err := s.Join(ctx, "abc123")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.Create(ctx, admin, "Go Q&A")
	require.NoError(t, err)
	room, err := s.Join(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Go Q&A", room.Title)

	require.NoError(t, s.EndRoom(ctx, "abc123", admin.ID))
	_, err = s.Join(ctx, "abc123")
	assert.ErrorIs(t, err, ErrRoomEnded)
}

func TestAskQuestion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	q1, q2 := seedRoom(t, s)

	assert.NotEqual(t, q1.ID, q2.ID)
	assert.Equal(t, models.Author{Name: "Guest", Avatar: "https://example.com/guest.png"}, q1.Author)
	assert.False(t, q1.IsAnswered)
	assert.False(t, q1.IsHighlighted)

	snap, ok, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Questions, 2)
	assert.Equal(t, q1.ID, snap.Questions[0].ID)
	assert.Equal(t, q2.ID, snap.Questions[1].ID)

	_, err = s.AskQuestion(ctx, "abc123", models.User{}, "hi")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = s.AskQuestion(ctx, "abc123", guest, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.AskQuestion(ctx, "nope", guest, "hi")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, s.EndRoom(ctx, "abc123", admin.ID))
	_, err = s.AskQuestion(ctx, "abc123", guest, "late?")
	assert.ErrorIs(t, err, ErrRoomEnded)
}

func TestMarkAnsweredTouchesOnlyTarget(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	q1, q2 := seedRoom(t, s)

	require.NoError(t, s.MarkAnswered(ctx, "abc123", admin.ID, q1.ID))

	snap, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	byID := map[string]models.Question{}
	for _, q := range snap.Questions {
		byID[q.ID] = q
	}
	assert.True(t, byID[q1.ID].IsAnswered)
	assert.False(t, byID[q1.ID].IsHighlighted)
	assert.Equal(t, q2, byID[q2.ID], "other questions unchanged")
}

func TestHighlightKeepsPreviousHighlights(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	q1, q2 := seedRoom(t, s)

	require.NoError(t, s.Highlight(ctx, "abc123", admin.ID, q1.ID))
	require.NoError(t, s.Highlight(ctx, "abc123", admin.ID, q2.ID))

	snap, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, snap.Questions[0].IsHighlighted)
	assert.True(t, snap.Questions[1].IsHighlighted)
}

func TestDeleteQuestion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	q1, q2 := seedRoom(t, s)

	require.NoError(t, s.DeleteQuestion(ctx, "abc123", admin.ID, q1.ID))

	snap, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, snap.Questions, 1)
	assert.Equal(t, q2.ID, snap.Questions[0].ID)

	assert.ErrorIs(t, s.DeleteQuestion(ctx, "abc123", admin.ID, q1.ID), ErrQuestionNotFound)
}

func TestEndRoomSetsEndedAt(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	seedRoom(t, s)

	require.NoError(t, s.EndRoom(ctx, "abc123", admin.ID))
	snap, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, snap.Room.EndedAt)
	assert.True(t, snap.Room.EndedAt.Equal(fixed))
}

func TestAdminCommandsRequireOwner(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	q1, _ := seedRoom(t, s)

	cmds := map[string]func(roomId, userId string) error{
		"end":       func(r, u string) error { return s.EndRoom(ctx, r, u) },
		"answer":    func(r, u string) error { return s.MarkAnswered(ctx, r, u, q1.ID) },
		"highlight": func(r, u string) error { return s.Highlight(ctx, r, u, q1.ID) },
		"delete":    func(r, u string) error { return s.DeleteQuestion(ctx, r, u, q1.ID) },
	}
	for name, cmd := range cmds {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, cmd("abc123", guest.ID), ErrNotRoomOwner)
			assert.ErrorIs(t, cmd("abc123", ""), ErrUnauthenticated)
			assert.ErrorIs(t, cmd("missing", admin.ID), ErrRoomNotFound)
		})
	}

	snap, _, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, snap.Room.EndedAt)
	require.Len(t, snap.Questions, 2)
	assert.False(t, snap.Questions[0].IsAnswered)
}

func TestUnknownQuestion(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	seedRoom(t, s)

	assert.ErrorIs(t, s.MarkAnswered(ctx, "abc123", admin.ID, "nope"), ErrQuestionNotFound)
	assert.ErrorIs(t, s.Highlight(ctx, "abc123", admin.ID, "nope"), ErrQuestionNotFound)
}

func TestWatchDeliversSnapshots(t *testing.T) {
	s, _ := newTestService(t)
	q1, _ := seedRoom(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps, err := s.Watch(ctx, "abc123")
	require.NoError(t, err)

	first := receive(t, snaps)
	assert.Equal(t, "Go Q&A", first.Room.Title)
	require.Len(t, first.Questions, 2)
	assert.False(t, first.Questions[0].IsAnswered)

	require.NoError(t, s.MarkAnswered(context.Background(), "abc123", admin.ID, q1.ID))
	next := receive(t, snaps)
	assert.True(t, next.Questions[0].IsAnswered)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-snaps:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchUnknownRoom(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Watch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func receive(t *testing.T, ch <-chan models.RoomSnapshot) models.RoomSnapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return models.RoomSnapshot{}
	}
}
