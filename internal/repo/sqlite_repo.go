package repo

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rooms (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    author_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    ended_at INTEGER
);

CREATE TABLE IF NOT EXISTS questions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    author_name TEXT NOT NULL,
    author_avatar TEXT NOT NULL,
    is_answered INTEGER NOT NULL DEFAULT 0,
    is_highlighted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    UNIQUE (room_id, id)
);

CREATE INDEX IF NOT EXISTS idx_questions_room_id ON questions(room_id);
`

// フィールド名とカラム名の対応
var sqliteColumns = map[string]string{
	FieldTitle:         "title",
	FieldEndedAt:       "ended_at",
	FieldContent:       "content",
	FieldIsAnswered:    "is_answered",
	FieldIsHighlighted: "is_highlighted",
}

// SQLiteRoomRepo はSQLiteファイルに保存する RoomRepo の実装です
// 変更通知は同一プロセス内にのみ配信されます
type SQLiteRoomRepo struct {
	db     *sql.DB
	events *broker
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLiteRoomRepo はSQLiteデータベースを開き、スキーマを作成します
// path に ":memory:" を渡すとインメモリDBになります
func OpenSQLiteRoomRepo(path string) (*SQLiteRoomRepo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// インメモリDBは接続ごとに別物になるため、接続を1本に固定する
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteRoomRepo{db: db, events: newBroker()}, nil
}

func (s *SQLiteRoomRepo) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	var endedAt any
	if room.EndedAt != nil {
		endedAt = toMillis(*room.EndedAt)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, title, author_id, created_at, ended_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		room.ID, room.Title, room.AuthorID, toMillis(room.CreatedAt), endedAt)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordExists
	}
	s.events.publish(room.ID)
	return nil
}

func (s *SQLiteRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	var (
		r       models.Room
		created int64
		ended   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, author_id, created_at, ended_at FROM rooms WHERE id = ?`, roomId,
	).Scan(&r.ID, &r.Title, &r.AuthorID, &created, &ended)
	if err == sql.ErrNoRows {
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, fmt.Errorf("query room: %w", err)
	}
	r.CreatedAt = fromMillis(created)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		r.EndedAt = &t
	}
	return r, true, nil
}

func (s *SQLiteRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rooms WHERE id = ?`, roomId).Scan(&n)
	return n > 0, err
}

// setClause は部分更新用の SET 句と引数を組み立てます
func setClause(fields Fields) (string, []any) {
	parts := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, sqliteColumns[k]+" = ?")
		switch x := v.(type) {
		case time.Time:
			args = append(args, toMillis(x))
		case bool:
			if x {
				args = append(args, 1)
			} else {
				args = append(args, 0)
			}
		default:
			args = append(args, x)
		}
	}
	return strings.Join(parts, ", "), args
}

func (s *SQLiteRoomRepo) UpdateRoom(ctx context.Context, roomId string, fields Fields) error {
	if err := checkFields(fields, roomMutableFields); err != nil {
		return err
	}
	set, args := setClause(fields)
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET `+set+` WHERE id = ?`, append(args, roomId)...)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	s.events.publish(roomId)
	return nil
}

func (s *SQLiteRoomRepo) AddQuestion(ctx context.Context, roomId string, q models.Question) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id, room_id, content, author_name, author_avatar, is_answered, is_highlighted, created_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM rooms WHERE id = ?)
		 ON CONFLICT(room_id, id) DO NOTHING`,
		q.ID, roomId, q.Content, q.Author.Name, q.Author.Avatar, q.IsAnswered, q.IsHighlighted, toMillis(q.CreatedAt), roomId)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		ok, err := s.ExistsRoom(ctx, roomId)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRecordNotFound
		}
		return ErrRecordExists
	}
	s.events.publish(roomId)
	return nil
}

const questionColumns = `id, content, author_name, author_avatar, is_answered, is_highlighted, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (models.Question, error) {
	var (
		q       models.Question
		created int64
	)
	if err := row.Scan(&q.ID, &q.Content, &q.Author.Name, &q.Author.Avatar, &q.IsAnswered, &q.IsHighlighted, &created); err != nil {
		return models.Question{}, err
	}
	q.CreatedAt = fromMillis(created)
	return q, nil
}

func (s *SQLiteRoomRepo) GetQuestion(ctx context.Context, roomId, questionId string) (models.Question, bool, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE room_id = ? AND id = ?`, roomId, questionId))
	if err == sql.ErrNoRows {
		return models.Question{}, false, nil
	}
	if err != nil {
		return models.Question{}, false, fmt.Errorf("query question: %w", err)
	}
	return q, true, nil
}

func (s *SQLiteRoomRepo) UpdateQuestion(ctx context.Context, roomId, questionId string, fields Fields) error {
	if err := checkFields(fields, questionMutableFields); err != nil {
		return err
	}
	set, args := setClause(fields)
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET `+set+` WHERE room_id = ? AND id = ?`, append(args, roomId, questionId)...)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	s.events.publish(roomId)
	return nil
}

func (s *SQLiteRoomRepo) RemoveQuestion(ctx context.Context, roomId, questionId string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE room_id = ? AND id = ?`, roomId, questionId)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	s.events.publish(roomId)
	return nil
}

func (s *SQLiteRoomRepo) ListQuestions(ctx context.Context, roomId string) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE room_id = ? ORDER BY seq`, roomId)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	res := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (s *SQLiteRoomRepo) Subscribe(ctx context.Context, roomId string) (<-chan struct{}, error) {
	return s.events.subscribe(ctx, roomId), nil
}
