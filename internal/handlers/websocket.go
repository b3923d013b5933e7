package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/adminview"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/models"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/service"
	"github.com/gorilla/websocket"
)

// writeWait は1メッセージの書き込みにかけてよい時間です
const writeWait = 10 * time.Second

// メッセージタイプ
const (
	msgSnapshot        = "snapshot"         // ルームの最新スナップショット（参加者向け）
	msgAdminView       = "admin_view"       // 管理画面の表示モデル（管理者向け）
	msgPresence        = "presence"         // 接続中の人数
	msgNavigate        = "navigate"         // 画面遷移の指示
	msgConfirmRequired = "confirm_required" // 削除に確認が必要
	msgError           = "error"
	msgPing            = "ping"
	msgPong            = "pong"
	msgEndRoom         = "end_room"
	msgMarkAnswered    = "mark_answered"
	msgHighlight       = "highlight"
	msgDeleteQuestion  = "delete_question"
)

// RoomHub は部屋ごとのWebSocket接続を管理します
// スレッドセーフな実装により、複数のgoroutineから同時にアクセス可能です
type RoomHub struct {
	rooms map[string]*Room // ルームIDをキーとしたルームのマップ
	mu    sync.RWMutex     // 読み書きのロック
}

// Room は1つの部屋のWebSocket接続を管理します
// 同じユーザーが複数のタブから接続することもあります
type Room struct {
	roomId  string               // ルームID
	clients map[*Client]struct{} // 接続中のクライアント
	mu      sync.RWMutex         // 読み書きのロック
}

// Client は1つのWebSocket接続を表します
type Client struct {
	userId string          // ユーザーID（未サインインなら空）
	conn   *websocket.Conn // WebSocket接続
	room   *Room           // 所属するルーム
	wmu    sync.Mutex      // 書き込みは同時に1つまで
}

// send はメッセージを書き込みます
func (c *Client) send(msg WebSocketMessage) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// WebSocketMessage はサーバーから送るメッセージの構造
type WebSocketMessage struct {
	Type    string `json:"type"`              // メッセージタイプ
	Payload any    `json:"payload,omitempty"` // メッセージのペイロード（型は動的）
}

// inboundMessage はクライアントから受け取るメッセージの構造
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CommandPayload は管理者操作のペイロード
type CommandPayload struct {
	QuestionId string `json:"questionId,omitempty"` // 対象の質問ID
	Confirm    bool   `json:"confirm,omitempty"`    // 削除の確認に同意したか
}

// PresencePayload は接続人数のペイロード
type PresencePayload struct {
	Viewers int `json:"viewers"`
}

// ErrorPayload はエラーのペイロード
type ErrorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// WebSocketHandler はWebSocket接続を処理するハンドラー
type WebSocketHandler struct {
	svc      *service.RoomService // ビジネスロジックを担当するサービス
	hub      *RoomHub             // WebSocket接続を管理するハブ
	upgrader websocket.Upgrader   // HTTPからWebSocketへのアップグレーダー
	log      *slog.Logger
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
// allowedOrigins 以外のオリジンからは、同一オリジンの場合のみ接続を受け付けます
func NewWebSocketHandler(s *service.RoomService, allowedOrigins []string, log *slog.Logger) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &WebSocketHandler{
		svc: s,
		hub: &RoomHub{rooms: make(map[string]*Room)},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && strings.EqualFold(u.Host, r.Host)
			},
		},
		log: log,
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. ルームの購読を開始（存在しないルームは404）
// 2. HTTPからWebSocketへのアップグレードとクライアントの登録
// 3. スナップショットが届くたびに送信
// 4. 切断時に購読を解除してクリーンアップ
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathRoomId(w, r)
	if !ok {
		return
	}
	user, signedIn := currentUser(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snaps, err := h.svc.Watch(ctx, roomId)
	if err != nil {
		writeServiceError(w, r, h.log, "watch room", err)
		return
	}

	// WebSocket接続にアップグレード
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "room_id", roomId, "error", err)
		return
	}

	client := h.hub.registerClient(roomId, user.ID, conn)
	log := h.log.With("room_id", roomId, "user_id", user.ID)
	log.Info("websocket connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range snaps {
			if err := client.send(snapshotMessage(roomId, user, signedIn, snap)); err != nil {
				log.Debug("failed to push snapshot", "error", err)
				cancel()
				_ = conn.Close()
				return
			}
		}
	}()

	defer func() {
		cancel()
		<-done
		h.hub.unregisterClient(client)
		conn.Close()
		log.Info("websocket disconnected")
	}()

	// メッセージ受信ループ
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", "error", err)
			}
			return
		}

		// メッセージタイプに応じて処理
		switch msg.Type {
		case msgPing:
			// ping/pongで接続を維持
			if err := client.send(WebSocketMessage{Type: msgPong}); err != nil {
				log.Debug("failed to send pong", "error", err)
				return
			}
		case msgEndRoom, msgMarkAnswered, msgHighlight, msgDeleteQuestion:
			h.handleCommand(ctx, client, user, signedIn, msg, log)
		default:
			log.Debug("unknown message type", "type", msg.Type)
		}
	}
}

// snapshotMessage は受信者に合わせたメッセージを作ります
// ルームの作成者には管理画面の表示モデルを送ります
func snapshotMessage(roomId string, user models.User, signedIn bool, snap models.RoomSnapshot) WebSocketMessage {
	if signedIn && snap.Room.AuthorID == user.ID {
		return WebSocketMessage{Type: msgAdminView, Payload: adminview.Build(roomId, snap)}
	}
	return WebSocketMessage{Type: msgSnapshot, Payload: snap}
}

// handleCommand は管理者操作を処理します
// 結果はスナップショットの購読を通じて届くので、成功時には何も返しません
func (h *WebSocketHandler) handleCommand(ctx context.Context, client *Client, user models.User, signedIn bool, msg inboundMessage, log *slog.Logger) {
	if !signedIn {
		h.sendError(client, service.ErrUnauthenticated, log)
		return
	}
	var p CommandPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			_ = client.send(WebSocketMessage{Type: msgError, Payload: ErrorPayload{Message: "invalid payload", Status: http.StatusBadRequest}})
			return
		}
	}
	if msg.Type != msgEndRoom {
		if err := validateQuestionId(p.QuestionId); err != nil {
			_ = client.send(WebSocketMessage{Type: msgError, Payload: ErrorPayload{Message: err.Error(), Status: http.StatusBadRequest}})
			return
		}
	}

	nav := adminview.NavigatorFunc(func(path string) {
		_ = client.send(WebSocketMessage{Type: msgNavigate, Payload: map[string]string{"path": path}})
	})
	confirm := adminview.ConfirmerFunc(func(context.Context, string) bool { return p.Confirm })
	view := adminview.New(client.room.roomId, user, h.svc, nav, confirm)

	var err error
	switch msg.Type {
	case msgEndRoom:
		err = view.EndRoom(ctx)
	case msgMarkAnswered:
		err = view.MarkAnswered(ctx, p.QuestionId)
	case msgHighlight:
		err = view.Highlight(ctx, p.QuestionId)
	case msgDeleteQuestion:
		var deleted bool
		deleted, err = view.DeleteQuestion(ctx, p.QuestionId)
		if err == nil && !deleted {
			_ = client.send(WebSocketMessage{Type: msgConfirmRequired, Payload: map[string]string{
				"questionId": p.QuestionId,
				"prompt":     adminview.DeletePrompt,
			}})
			return
		}
	}
	if err != nil {
		h.sendError(client, err, log.With("op", msg.Type))
	}
}

// sendError はエラーをログに残してクライアントに送ります
func (h *WebSocketHandler) sendError(client *Client, err error, log *slog.Logger) {
	status := serviceErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("websocket command failed", "error", err)
		message = "internal error"
	} else {
		log.Info("websocket command rejected", "status", status, "error", err)
	}
	if err := client.send(WebSocketMessage{Type: msgError, Payload: ErrorPayload{Message: message, Status: status}}); err != nil {
		log.Debug("failed to send error", "error", err)
	}
}

// registerClient はクライアントを登録します
// ルームが存在しない場合は新規作成し、参加者全員に接続人数を通知します
func (hub *RoomHub) registerClient(roomId, userId string, conn *websocket.Conn) *Client {
	hub.mu.Lock()
	room, exists := hub.rooms[roomId]
	if !exists {
		room = &Room{
			roomId:  roomId,
			clients: make(map[*Client]struct{}),
		}
		hub.rooms[roomId] = room
	}
	client := &Client{userId: userId, conn: conn, room: room}
	room.mu.Lock()
	room.clients[client] = struct{}{}
	room.mu.Unlock()
	hub.mu.Unlock()

	hub.broadcastPresence(room)
	return client
}

// unregisterClient はクライアントの登録を解除します
// ルームが空になった場合はルーム自体を削除します
func (hub *RoomHub) unregisterClient(client *Client) {
	room := client.room

	hub.mu.Lock()
	room.mu.Lock()
	delete(room.clients, client)
	isEmpty := len(room.clients) == 0
	room.mu.Unlock()
	// 部屋が空になったら削除
	if isEmpty && hub.rooms[room.roomId] == room {
		delete(hub.rooms, room.roomId)
	}
	hub.mu.Unlock()

	if !isEmpty {
		hub.broadcastPresence(room)
	}
}

// viewers はルームの接続数を返します
func (hub *RoomHub) viewers(roomId string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	room, ok := hub.rooms[roomId]
	if !ok {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.clients)
}

func (hub *RoomHub) broadcastPresence(room *Room) {
	room.mu.RLock()
	n := len(room.clients)
	room.mu.RUnlock()
	hub.broadcastToRoom(room, WebSocketMessage{Type: msgPresence, Payload: PresencePayload{Viewers: n}})
}

// broadcastToRoom は部屋内の全クライアントにメッセージを送信します
func (hub *RoomHub) broadcastToRoom(room *Room, msg WebSocketMessage) {
	room.mu.RLock()
	clients := make([]*Client, 0, len(room.clients))
	for c := range room.clients {
		clients = append(clients, c)
	}
	room.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			slog.Debug("failed to broadcast", "room_id", room.roomId, "user_id", c.userId, "error", err)
		}
	}
}
