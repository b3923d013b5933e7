package service

import "errors"

// カスタムエラー定義
var (
	ErrRoomNotFound           = errors.New("room not found")
	ErrQuestionNotFound       = errors.New("question not found")
	ErrNotRoomOwner           = errors.New("forbidden: not room owner")
	ErrRoomEnded              = errors.New("room already ended")
	ErrRoomIDGenerationFailed = errors.New("failed to generate unique room ID after multiple attempts")
	ErrUnauthenticated        = errors.New("sign in required")
	ErrInvalidInput           = errors.New("invalid input")
)
