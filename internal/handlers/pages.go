package handlers

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/adminview"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageHandler は管理者向けのHTML画面を提供します
type PageHandler struct {
	svc  *service.RoomService
	log  *slog.Logger
	tmpl *template.Template
}

// NewPageHandler は新しいPageHandlerを作成します
func NewPageHandler(s *service.RoomService, log *slog.Logger) *PageHandler {
	return &PageHandler{svc: s, log: log, tmpl: pageTemplates}
}

type homePage struct {
	User *models.User
}

type confirmDeletePage struct {
	RoomCode   string
	QuestionID string
	Prompt     string
}

// render はテンプレートを描画します
// 途中で失敗しても中途半端なHTMLを返さないよう、バッファに描画してから書き込みます
func (h *PageHandler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pageError はエラーをログに残してステータスだけを返します
func (h *PageHandler) pageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := serviceErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("page request failed", "op", op, "path", r.URL.Path, "error", err)
	} else {
		h.log.Info("page request rejected", "op", op, "path", r.URL.Path, "status", status, "error", err)
	}
	http.Error(w, http.StatusText(status), status)
}

// Home はサインイン状態に応じたトップ画面を表示します
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	var data homePage
	if u, ok := currentUser(r); ok {
		data.User = &u
	}
	h.render(w, http.StatusOK, "home.html", data)
}

// adminRoom はリクエスト1回分の管理画面を作ります
// 画面遷移は303リダイレクト、確認はフォームの confirmed=yes で表します
func (h *PageHandler) adminRoom(w http.ResponseWriter, r *http.Request, roomId string, admin models.User) *adminview.AdminRoom {
	nav := adminview.NavigatorFunc(func(path string) {
		http.Redirect(w, r, path, http.StatusSeeOther)
	})
	confirm := adminview.ConfirmerFunc(func(context.Context, string) bool {
		return r.PostFormValue("confirmed") == "yes"
	})
	return adminview.New(roomId, admin, h.svc, nav, confirm)
}

// pageUser はサインインしていなければGoogleサインインへ誘導します
func (h *PageHandler) pageUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := currentUser(r)
	if !ok {
		http.Redirect(w, r, "/auth/google", http.StatusFound)
	}
	return u, ok
}

// AdminRoom は管理者向けのルーム画面を表示します
func (h *PageHandler) AdminRoom(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	admin, ok := h.pageUser(w, r)
	if !ok {
		return
	}
	snap, ok, err := h.svc.Get(r.Context(), roomId)
	if err != nil {
		h.pageError(w, r, "admin room", err)
		return
	}
	if !ok {
		h.pageError(w, r, "admin room", service.ErrRoomNotFound)
		return
	}
	if snap.Room.AuthorID != admin.ID {
		h.pageError(w, r, "admin room", service.ErrNotRoomOwner)
		return
	}

	view := h.adminRoom(w, r, roomId, admin)
	view.Apply(snap)
	h.render(w, http.StatusOK, "admin_room.html", view.Model())
}

// EndRoom はルームを終了してトップ画面へ戻ります
func (h *PageHandler) EndRoom(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	admin, ok := h.pageUser(w, r)
	if !ok {
		return
	}
	if err := h.adminRoom(w, r, roomId, admin).EndRoom(r.Context()); err != nil {
		h.pageError(w, r, "end room", err)
		return
	}
	h.log.Info("room ended", "room_id", roomId, "user_id", admin.ID)
}

func (h *PageHandler) MarkAnswered(w http.ResponseWriter, r *http.Request) {
	h.questionCommand(w, r, "mark answered", (*adminview.AdminRoom).MarkAnswered)
}

func (h *PageHandler) Highlight(w http.ResponseWriter, r *http.Request) {
	h.questionCommand(w, r, "highlight", (*adminview.AdminRoom).Highlight)
}

func (h *PageHandler) questionCommand(w http.ResponseWriter, r *http.Request, op string, cmd func(*adminview.AdminRoom, context.Context, string) error) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	questionId, ok := pathQuestionId(w, r)
	if !ok {
		return
	}
	admin, ok := h.pageUser(w, r)
	if !ok {
		return
	}
	if err := cmd(h.adminRoom(w, r, roomId, admin), r.Context(), questionId); err != nil {
		h.pageError(w, r, op, err)
		return
	}
	http.Redirect(w, r, "/admin/rooms/"+roomId, http.StatusSeeOther)
}

// DeleteQuestion は確認画面を挟んでから質問を削除します
func (h *PageHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	questionId, ok := pathQuestionId(w, r)
	if !ok {
		return
	}
	admin, ok := h.pageUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.adminRoom(w, r, roomId, admin).DeleteQuestion(r.Context(), questionId)
	if err != nil {
		h.pageError(w, r, "delete question", err)
		return
	}
	if !deleted {
		h.render(w, http.StatusOK, "confirm_delete.html", confirmDeletePage{
			RoomCode:   roomId,
			QuestionID: questionId,
			Prompt:     adminview.DeletePrompt,
		})
		return
	}
	h.log.Info("question deleted", "room_id", roomId, "question_id", questionId, "user_id", admin.ID)
	http.Redirect(w, r, "/admin/rooms/"+roomId, http.StatusSeeOther)
}
