package http

import (
	"net/http"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers はルーターに登録するハンドラーの一式です
type Handlers struct {
	Room      *handlers.RoomHandler
	WebSocket *handlers.WebSocketHandler
	Auth      *handlers.AuthHandler
	Pages     *handlers.PageHandler
	Session   *handlers.SessionMiddleware
}

func NewRouter(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(r chi.Router) {
		r.Use(h.Session.Handler)

		r.Get("/auth/google", h.Auth.Login)
		r.Get("/auth/google/callback", h.Auth.Callback)
		r.Get("/api/v1/me", h.Auth.Me)

		r.Route("/api/v1/rooms", func(r chi.Router) {
			r.Post("/", h.Room.Create)
			r.Get("/{roomId}", h.Room.Get)
			r.Post("/{roomId}/join", h.Room.Join)
			r.Post("/{roomId}/questions", h.Room.Ask)
			r.Post("/{roomId}/end", h.Room.End)
			r.Post("/{roomId}/questions/{questionId}/answer", h.Room.MarkAnswered)
			r.Post("/{roomId}/questions/{questionId}/highlight", h.Room.Highlight)
			r.Delete("/{roomId}/questions/{questionId}", h.Room.DeleteQuestion)
			// WebSocketエンドポイント
			r.Get("/{roomId}/ws", h.WebSocket.HandleWebSocket)
		})

		// 管理者向けHTML画面
		r.Get("/", h.Pages.Home)
		r.Route("/admin/rooms/{roomId}", func(r chi.Router) {
			r.Get("/", h.Pages.AdminRoom)
			r.Post("/end", h.Pages.EndRoom)
			r.Post("/questions/{questionId}/answer", h.Pages.MarkAnswered)
			r.Post("/questions/{questionId}/highlight", h.Pages.Highlight)
			r.Post("/questions/{questionId}/delete", h.Pages.DeleteQuestion)
		})
	})

	return r
}
