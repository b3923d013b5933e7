package repo

import (
	"context"
	"testing"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) RoomRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRoomRepo(rdb)
}

func newSQLiteRepo(t *testing.T) RoomRepo {
	t.Helper()
	r, err := OpenSQLiteRoomRepo(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newMemoryRepo(t *testing.T) RoomRepo {
	return NewMemoryRoomRepo()
}

var implementations = map[string]func(t *testing.T) RoomRepo{
	"redis":  newRedisRepo,
	"sqlite": newSQLiteRepo,
	"memory": newMemoryRepo,
}

func testRoom(id string) models.Room {
	return models.Room{
		ID:        id,
		Title:     "Go Q&A",
		AuthorID:  "admin-1",
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testQuestion(id, content string) models.Question {
	return models.Question{
		ID:        id,
		Content:   content,
		Author:    models.Author{Name: "Ana", Avatar: "https://example.com/ana.png"},
		CreatedAt: time.Date(2026, 10, 1, 12, 5, 0, 0, time.UTC),
	}
}

func forEachRepo(t *testing.T, fn func(t *testing.T, r RoomRepo)) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			fn(t, newRepo(t))
		})
	}
}

func TestRoomLifecycle(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()

		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))
		assert.ErrorIs(t, r.CreateRoom(ctx, testRoom("abc123")), ErrRecordExists)

		got, ok, err := r.GetRoom(ctx, "abc123")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Go Q&A", got.Title)
		assert.Equal(t, "admin-1", got.AuthorID)
		assert.True(t, got.CreatedAt.Equal(testRoom("abc123").CreatedAt))
		assert.Nil(t, got.EndedAt)

		exists, err := r.ExistsRoom(ctx, "abc123")
		require.NoError(t, err)
		assert.True(t, exists)

		_, ok, err = r.GetRoom(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		endedAt := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)
		require.NoError(t, r.UpdateRoom(ctx, "abc123", Fields{FieldEndedAt: endedAt}))

		got, _, err = r.GetRoom(ctx, "abc123")
		require.NoError(t, err)
		require.NotNil(t, got.EndedAt)
		assert.True(t, got.EndedAt.Equal(endedAt))
		assert.Equal(t, "Go Q&A", got.Title, "partial update keeps other fields")
	})
}

func TestUpdateMissingRecord(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()

		err := r.UpdateRoom(ctx, "missing", Fields{FieldEndedAt: time.Now()})
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, ok, err := r.GetRoom(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok, "update must not create the record")

		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))
		err = r.UpdateQuestion(ctx, "abc123", "nope", Fields{FieldIsAnswered: true})
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.ErrorIs(t, r.RemoveQuestion(ctx, "abc123", "nope"), ErrRecordNotFound)
	})
}

func TestUpdateRejectsUnknownFields(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()
		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))
		require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion("q1", "why?")))

		assert.ErrorIs(t, r.UpdateRoom(ctx, "abc123", Fields{FieldAuthorID: "someone"}), ErrUnknownField)
		assert.ErrorIs(t, r.UpdateQuestion(ctx, "abc123", "q1", Fields{FieldIsAnswered: "yes"}), ErrInvalidValue)
		assert.ErrorIs(t, r.UpdateQuestion(ctx, "abc123", "q1", Fields{}), ErrInvalidValue)
	})
}

func TestQuestionsKeepInsertionOrder(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()
		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))

		for _, id := range []string{"q3", "q1", "q2"} {
			require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion(id, "content "+id)))
		}
		assert.ErrorIs(t, r.AddQuestion(ctx, "abc123", testQuestion("q1", "dup")), ErrRecordExists)
		assert.ErrorIs(t, r.AddQuestion(ctx, "missing", testQuestion("q9", "x")), ErrRecordNotFound)

		qs, err := r.ListQuestions(ctx, "abc123")
		require.NoError(t, err)
		require.Len(t, qs, 3)
		assert.Equal(t, []string{"q3", "q1", "q2"}, []string{qs[0].ID, qs[1].ID, qs[2].ID})
		assert.Equal(t, "Ana", qs[0].Author.Name)
		assert.Equal(t, "https://example.com/ana.png", qs[0].Author.Avatar)

		empty, err := r.ListQuestions(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})
}

func TestQuestionUpdateTouchesOnlyTarget(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()
		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))
		require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion("q1", "first")))
		require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion("q2", "second")))

		require.NoError(t, r.UpdateQuestion(ctx, "abc123", "q1", Fields{FieldIsAnswered: true}))
		require.NoError(t, r.UpdateQuestion(ctx, "abc123", "q2", Fields{FieldIsHighlighted: true}))

		q1, ok, err := r.GetQuestion(ctx, "abc123", "q1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, q1.IsAnswered)
		assert.False(t, q1.IsHighlighted)
		assert.Equal(t, "first", q1.Content)

		q2, ok, err := r.GetQuestion(ctx, "abc123", "q2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, q2.IsAnswered)
		assert.True(t, q2.IsHighlighted)
	})
}

func TestRemoveQuestion(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx := context.Background()
		require.NoError(t, r.CreateRoom(ctx, testRoom("abc123")))
		require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion("q1", "first")))
		require.NoError(t, r.AddQuestion(ctx, "abc123", testQuestion("q2", "second")))

		require.NoError(t, r.RemoveQuestion(ctx, "abc123", "q1"))

		_, ok, err := r.GetQuestion(ctx, "abc123", "q1")
		require.NoError(t, err)
		assert.False(t, ok)

		qs, err := r.ListQuestions(ctx, "abc123")
		require.NoError(t, err)
		require.Len(t, qs, 1)
		assert.Equal(t, "q2", qs[0].ID)
	})
}

func TestSubscribeNotifiesOnChange(t *testing.T) {
	forEachRepo(t, func(t *testing.T, r RoomRepo) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.NoError(t, r.CreateRoom(context.Background(), testRoom("abc123")))

		events, err := r.Subscribe(ctx, "abc123")
		require.NoError(t, err)

		require.NoError(t, r.AddQuestion(context.Background(), "abc123", testQuestion("q1", "first")))
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatal("expected a change notification")
		}

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond, "channel must close after cancel")
	})
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "rooms/abc123", RoomPath("abc123"))
	assert.Equal(t, "rooms/abc123/questions/q1", QuestionPath("abc123", "q1"))
	assert.Equal(t, "rooms:abc123:questions:q1", questionKey("abc123", "q1"))
	assert.Equal(t, "rooms:abc123", roomKey("abc123"))
}
