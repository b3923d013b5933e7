package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/adminview"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	maxTitleLength   = 120
	maxContentLength = 1000
)

type RoomHandler struct {
	svc *service.RoomService
	log *slog.Logger
}

func NewRoomHandler(s *service.RoomService, log *slog.Logger) *RoomHandler {
	return &RoomHandler{svc: s, log: log}
}

type createRoomRequest struct {
	Title string `json:"title"`
}

func (r createRoomRequest) validate() error {
	return validateText("title", r.Title, maxTitleLength)
}

type askRequest struct {
	Content string `json:"content"`
}

func (r askRequest) validate() error {
	return validateText("content", r.Content, maxContentLength)
}

type deleteRequest struct {
	Confirm bool `json:"confirm"`
}

// pathRoomId はURLのルームIDを取り出して検証します
func pathRoomId(w http.ResponseWriter, r *http.Request) (string, bool) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return roomId, true
}

// pathQuestionId はURLの質問IDを取り出して検証します
func pathQuestionId(w http.ResponseWriter, r *http.Request) (string, bool) {
	questionId := normalizeID(chi.URLParam(r, "questionId"))
	if err := validateQuestionId(questionId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return questionId, true
}

// requireUser はサインインしていなければ401を返します
func requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := currentUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "sign in required")
	}
	return u, ok
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in createRoomRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.svc.Create(r.Context(), owner, in.Title)
	if err != nil {
		writeServiceError(w, r, h.log, "create room", err)
		return
	}
	h.log.Info("room created", "room_id", room.ID, "user_id", owner.ID)
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "roomId": room.ID, "room": room})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	snap, ok, err := h.svc.Get(r.Context(), roomId)
	if err != nil {
		writeServiceError(w, r, h.log, "get room", err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	room, err := h.svc.Join(r.Context(), roomId)
	if err != nil {
		writeServiceError(w, r, h.log, "join room", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "room": room})
}

func (h *RoomHandler) Ask(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in askRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := in.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.svc.AskQuestion(r.Context(), roomId, user, in.Content)
	if err != nil {
		writeServiceError(w, r, h.log, "ask question", err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

// adminRoom はリクエスト1回分の管理画面を作ります
// 遷移先は nav に記録され、確認は confirmed の値で答えます
func (h *RoomHandler) adminRoom(roomId string, admin models.User, confirmed bool) (*adminview.AdminRoom, *string) {
	var pushed string
	nav := adminview.NavigatorFunc(func(path string) { pushed = path })
	confirm := adminview.ConfirmerFunc(func(context.Context, string) bool { return confirmed })
	return adminview.New(roomId, admin, h.svc, nav, confirm), &pushed
}

func (h *RoomHandler) End(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	admin, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, redirect := h.adminRoom(roomId, admin, false)
	if err := view.EndRoom(r.Context()); err != nil {
		writeServiceError(w, r, h.log, "end room", err)
		return
	}
	h.log.Info("room ended", "room_id", roomId, "user_id", admin.ID)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": *redirect})
}

func (h *RoomHandler) MarkAnswered(w http.ResponseWriter, r *http.Request) {
	h.questionCommand(w, r, "mark answered", (*adminview.AdminRoom).MarkAnswered)
}

func (h *RoomHandler) Highlight(w http.ResponseWriter, r *http.Request) {
	h.questionCommand(w, r, "highlight", (*adminview.AdminRoom).Highlight)
}

func (h *RoomHandler) questionCommand(w http.ResponseWriter, r *http.Request, op string, cmd func(*adminview.AdminRoom, context.Context, string) error) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	questionId, ok := pathQuestionId(w, r)
	if !ok {
		return
	}
	admin, ok := requireUser(w, r)
	if !ok {
		return
	}
	view, _ := h.adminRoom(roomId, admin, false)
	if err := cmd(view, r.Context(), questionId); err != nil {
		writeServiceError(w, r, h.log, op, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteQuestion は {"confirm": true} のときだけ質問を削除します
func (h *RoomHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	questionId, ok := pathQuestionId(w, r)
	if !ok {
		return
	}
	admin, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in deleteRequest
	if !decodeOptionalJSON(w, r, &in) {
		return
	}

	view, _ := h.adminRoom(roomId, admin, in.Confirm)
	deleted, err := view.DeleteQuestion(r.Context(), questionId)
	if err != nil {
		writeServiceError(w, r, h.log, "delete question", err)
		return
	}
	if !deleted {
		respondJSON(w, http.StatusConflict, map[string]any{"message": "confirmation required", "prompt": adminview.DeletePrompt})
		return
	}
	h.log.Info("question deleted", "room_id", roomId, "question_id", questionId, "user_id", admin.ID)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
