package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/service"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/session"
	"github.com/go-chi/chi/v5/middleware"
)

// errorResponse はエラーレスポンスの構造
type errorResponse struct {
	Message string `json:"message"` // エラーメッセージ
}

// respondJSON はJSONレスポンスを返します
// payloadがnilの場合は空のレスポンスを返します
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError はエラーレスポンスを返します
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Message: msg})
}

// decodeJSON はリクエストボディからJSONをデコードします
// デコードに失敗した場合は、エラーレスポンスを返してfalseを返します
// 成功した場合はtrueを返します
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, false)
}

// decodeOptionalJSON は空のボディを許可する decodeJSON です
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	// 最低限の防御: 大きすぎるリクエストを防ぐ（1MB制限）
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			respondError(w, http.StatusBadRequest, "invalid JSON payload")
			return false
		}
		respondError(w, http.StatusBadRequest, "bad request")
		return false
	}
	return true
}

// normalizeID はIDの前後の空白を削除して正規化します
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// currentUser はリクエストのセッションからサインイン中のユーザーを取り出します
func currentUser(r *http.Request) (models.User, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return models.User{}, false
	}
	return s.User()
}

// serviceErrorStatus はサービスのエラーをHTTPステータスに変換します
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotRoomOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRoomEnded):
		return http.StatusGone
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError はサービスのエラーをログに残してレスポンスを返します
// 想定外のエラーの詳細はクライアントに返しません
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	status := serviceErrorStatus(err)
	attrs := []any{
		"op", op,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", attrs...)
		respondError(w, status, "internal error")
		return
	}
	log.Info("request rejected", attrs...)
	respondError(w, status, err.Error())
}
