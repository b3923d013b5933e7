package handlers

import (
	"fmt"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/idgen"
)

// validateRoomId はルームIDのバリデーションを行います
// ルームIDが空、または長すぎる場合はエラーを返します
func validateRoomId(roomId string) error {
	id := normalizeID(roomId)
	if id == "" {
		return fmt.Errorf("roomId required")
	}
	if len(id) > 4*idgen.RoomIDLength {
		return fmt.Errorf("roomId too long")
	}
	return nil
}

// validateQuestionId は質問IDのバリデーションを行います
// 質問IDが空の場合はエラーを返します
func validateQuestionId(questionId string) error {
	if normalizeID(questionId) == "" {
		return fmt.Errorf("questionId required")
	}
	return nil
}

// validateText は本文のバリデーションを行います
func validateText(field, value string, max int) error {
	v := normalizeID(value)
	if v == "" {
		return fmt.Errorf("%s required", field)
	}
	if len([]rune(v)) > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}
