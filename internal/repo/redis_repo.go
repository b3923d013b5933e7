package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisRoomRepo はRedisをレコードストアとして使う RoomRepo の実装です
// レコードはパスをキーにしたハッシュ、質問の並びはリスト、変更通知はPub/Subで扱います
type RedisRoomRepo struct{ rdb *redis.Client }

func NewRedisRoomRepo(rdb *redis.Client) *RedisRoomRepo {
	return &RedisRoomRepo{rdb: rdb}
}

// pathKey はレコードのパスをRedisのキーに変換します
// rooms/abc/questions/q1 -> rooms:abc:questions:q1
func pathKey(path string) string {
	return strings.ReplaceAll(path, "/", ":")
}

func roomKey(id string) string {
	return pathKey(RoomPath(id))
}
func questionKey(rid, qid string) string {
	return pathKey(QuestionPath(rid, qid))
}
func questionListKey(rid string) string {
	return fmt.Sprintf("rooms:%s:questions", rid)
}
func roomChannel(rid string) string {
	return fmt.Sprintf("room-events:%s", rid)
}

// 存在しないキーへのHSETは行わない（Firebaseのupdateと違い、レコードを作らない）
const createScript = `
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1], unpack(ARGV))
	return 1
`

const updateScript = `
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	redis.call('HSET', KEYS[1], unpack(ARGV))
	return 1
`

// ルームが存在する場合のみ質問を追加し、挿入順リストの末尾に積む
const addQuestionScript = `
	local room_key = KEYS[1]
	local question_key = KEYS[2]
	local list_key = KEYS[3]
	local question_id = ARGV[1]

	if redis.call('EXISTS', room_key) == 0 then
		return 0
	end
	if redis.call('EXISTS', question_key) == 1 then
		return -1
	end

	local fields = {}
	for i = 2, #ARGV do
		table.insert(fields, ARGV[i])
	end
	redis.call('HSET', question_key, unpack(fields))
	redis.call('RPUSH', list_key, question_id)
	return 1
`

func flatten(h map[string]any) []any {
	args := make([]any, 0, len(h)*2)
	for k, v := range h {
		args = append(args, k, encodeValue(v))
	}
	return args
}

func (rr *RedisRoomRepo) notify(ctx context.Context, roomId string) error {
	if err := rr.rdb.Publish(ctx, roomChannel(roomId), "changed").Err(); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

func (rr *RedisRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	n, err := rr.rdb.Eval(ctx, createScript, []string{roomKey(room.ID)}, flatten(roomToHash(room))...).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordExists
	}
	return rr.notify(ctx, room.ID)
}

func (rr *RedisRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	h, err := rr.rdb.HGetAll(ctx, roomKey(roomId)).Result()
	if err != nil {
		return models.Room{}, false, err
	}
	if len(h) == 0 { // データがない
		return models.Room{}, false, nil
	}
	r, err := roomFromHash(h)
	if err != nil {
		return models.Room{}, false, err
	}
	return r, true, nil
}

func (rr *RedisRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	n, err := rr.rdb.Exists(ctx, roomKey(roomId)).Result()
	return n == 1, err
}

func (rr *RedisRoomRepo) UpdateRoom(ctx context.Context, roomId string, fields Fields) error {
	if err := checkFields(fields, roomMutableFields); err != nil {
		return err
	}
	return rr.update(ctx, roomId, roomKey(roomId), fields)
}

func (rr *RedisRoomRepo) UpdateQuestion(ctx context.Context, roomId, questionId string, fields Fields) error {
	if err := checkFields(fields, questionMutableFields); err != nil {
		return err
	}
	return rr.update(ctx, roomId, questionKey(roomId, questionId), fields)
}

func (rr *RedisRoomRepo) update(ctx context.Context, roomId, key string, fields Fields) error {
	n, err := rr.rdb.Eval(ctx, updateScript, []string{key}, flatten(fields)...).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return rr.notify(ctx, roomId)
}

func (rr *RedisRoomRepo) AddQuestion(ctx context.Context, roomId string, q models.Question) error {
	args := append([]any{q.ID}, flatten(questionToHash(q))...)
	keys := []string{roomKey(roomId), questionKey(roomId, q.ID), questionListKey(roomId)}
	n, err := rr.rdb.Eval(ctx, addQuestionScript, keys, args...).Int()
	if err != nil {
		return err
	}
	switch n {
	case 0:
		return ErrRecordNotFound
	case -1:
		return ErrRecordExists
	}
	return rr.notify(ctx, roomId)
}

func (rr *RedisRoomRepo) GetQuestion(ctx context.Context, roomId, questionId string) (models.Question, bool, error) {
	h, err := rr.rdb.HGetAll(ctx, questionKey(roomId, questionId)).Result()
	if err != nil {
		return models.Question{}, false, err
	}
	if len(h) == 0 {
		return models.Question{}, false, nil
	}
	q, err := questionFromHash(h)
	if err != nil {
		return models.Question{}, false, err
	}
	return q, true, nil
}

func (rr *RedisRoomRepo) RemoveQuestion(ctx context.Context, roomId, questionId string) error {
	pipe := rr.rdb.TxPipeline()
	del := pipe.Del(ctx, questionKey(roomId, questionId))
	pipe.LRem(ctx, questionListKey(roomId), 0, questionId)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrRecordNotFound
	}
	return rr.notify(ctx, roomId)
}

func (rr *RedisRoomRepo) ListQuestions(ctx context.Context, roomId string) ([]models.Question, error) {
	ids, err := rr.rdb.LRange(ctx, questionListKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Question{}, nil
	}

	// 一括取得
	pipe := rr.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, questionKey(roomId, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	res := make([]models.Question, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			// 一覧取得と削除が競合した場合
			continue
		}
		q, err := questionFromHash(h)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, nil
}

func (rr *RedisRoomRepo) Subscribe(ctx context.Context, roomId string) (<-chan struct{}, error) {
	ps := rr.rdb.Subscribe(ctx, roomChannel(roomId))
	// 購読が確立するまで待つ
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// IsNotFound はストアのエラーがレコード不在かを判定します
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
