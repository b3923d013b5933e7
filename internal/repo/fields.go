package repo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
)

// レコードのフィールド名
const (
	FieldID            = "id"
	FieldTitle         = "title"
	FieldAuthorID      = "authorId"
	FieldCreatedAt     = "createdAt"
	FieldEndedAt       = "endedAt"
	FieldContent       = "content"
	FieldAuthorName    = "authorName"
	FieldAuthorAvatar  = "authorAvatar"
	FieldIsAnswered    = "isAnswered"
	FieldIsHighlighted = "isHighlighted"
)

// Fields は部分更新するフィールドと値です
type Fields map[string]any

// 更新可能なフィールド
var (
	roomMutableFields     = map[string]bool{FieldTitle: true, FieldEndedAt: true}
	questionMutableFields = map[string]bool{FieldContent: true, FieldIsAnswered: true, FieldIsHighlighted: true}
)

func checkFields(fields Fields, allowed map[string]bool) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", ErrInvalidValue)
	}
	for k, v := range fields {
		if !allowed[k] {
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
		switch k {
		case FieldEndedAt:
			if _, ok := v.(time.Time); !ok {
				return fmt.Errorf("%w: %s must be time.Time", ErrInvalidValue, k)
			}
		case FieldIsAnswered, FieldIsHighlighted:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("%w: %s must be bool", ErrInvalidValue, k)
			}
		default:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: %s must be string", ErrInvalidValue, k)
			}
		}
	}
	return nil
}

func applyRoomFields(r *models.Room, fields Fields) error {
	if err := checkFields(fields, roomMutableFields); err != nil {
		return err
	}
	for k, v := range fields {
		switch k {
		case FieldTitle:
			r.Title = v.(string)
		case FieldEndedAt:
			t := v.(time.Time).UTC()
			r.EndedAt = &t
		}
	}
	return nil
}

func applyQuestionFields(q *models.Question, fields Fields) error {
	if err := checkFields(fields, questionMutableFields); err != nil {
		return err
	}
	for k, v := range fields {
		switch k {
		case FieldContent:
			q.Content = v.(string)
		case FieldIsAnswered:
			q.IsAnswered = v.(bool)
		case FieldIsHighlighted:
			q.IsHighlighted = v.(bool)
		}
	}
	return nil
}

// encodeValue はフィールド値を文字列表現にします（Redisハッシュ用）
func encodeValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func roomToHash(r models.Room) map[string]any {
	h := map[string]any{
		FieldID:        r.ID,
		FieldTitle:     r.Title,
		FieldAuthorID:  r.AuthorID,
		FieldCreatedAt: encodeValue(r.CreatedAt),
	}
	if r.EndedAt != nil {
		h[FieldEndedAt] = encodeValue(*r.EndedAt)
	}
	return h
}

func roomFromHash(h map[string]string) (models.Room, error) {
	r := models.Room{
		ID:       h[FieldID],
		Title:    h[FieldTitle],
		AuthorID: h[FieldAuthorID],
	}
	var err error
	if r.CreatedAt, err = parseTime(h[FieldCreatedAt]); err != nil {
		return models.Room{}, err
	}
	if v := h[FieldEndedAt]; v != "" {
		t, err := parseTime(v)
		if err != nil {
			return models.Room{}, err
		}
		r.EndedAt = &t
	}
	return r, nil
}

func questionToHash(q models.Question) map[string]any {
	return map[string]any{
		FieldID:            q.ID,
		FieldContent:       q.Content,
		FieldAuthorName:    q.Author.Name,
		FieldAuthorAvatar:  q.Author.Avatar,
		FieldIsAnswered:    encodeValue(q.IsAnswered),
		FieldIsHighlighted: encodeValue(q.IsHighlighted),
		FieldCreatedAt:     encodeValue(q.CreatedAt),
	}
}

func questionFromHash(h map[string]string) (models.Question, error) {
	q := models.Question{
		ID:      h[FieldID],
		Content: h[FieldContent],
		Author:  models.Author{Name: h[FieldAuthorName], Avatar: h[FieldAuthorAvatar]},
	}
	var err error
	if q.IsAnswered, err = parseBool(h[FieldIsAnswered]); err != nil {
		return models.Question{}, err
	}
	if q.IsHighlighted, err = parseBool(h[FieldIsHighlighted]); err != nil {
		return models.Question{}, err
	}
	if q.CreatedAt, err = parseTime(h[FieldCreatedAt]); err != nil {
		return models.Question{}, err
	}
	return q, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidValue, v)
	}
	return t, nil
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidValue, v)
	}
	return b, nil
}
