package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompleteProfile はプロバイダのアカウントに表示名かアイコンが無い場合のエラーです
	ErrIncompleteProfile = errors.New("missing information from Google account")
	// ErrClosed は破棄済みのセッションを使った場合のエラーです
	ErrClosed = errors.New("session closed")
)

// IncompleteProfileError はプロフィールの必須項目が欠けていたことを表します
// リトライはせず、そのまま呼び出し元に返します
type IncompleteProfileError struct {
	UID           string
	MissingName   bool
	MissingAvatar bool
}

func (e *IncompleteProfileError) Error() string {
	var missing []string
	if e.MissingName {
		missing = append(missing, "display name")
	}
	if e.MissingAvatar {
		missing = append(missing, "avatar")
	}
	return fmt.Sprintf("%s: %s", ErrIncompleteProfile, strings.Join(missing, ", "))
}

func (e *IncompleteProfileError) Is(target error) bool {
	return target == ErrIncompleteProfile
}

// SignInError はサインイン中に起きたプロバイダ・通信エラーを包みます
type SignInError struct {
	Err error
}

func (e *SignInError) Error() string {
	return "an error occurred while signing in with google: " + e.Err.Error()
}

func (e *SignInError) Unwrap() error {
	return e.Err
}
