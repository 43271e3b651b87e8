// Package live serves the WebSocket channel a rendering surface uses to
// follow a session and to submit questions.
package live

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/events"
	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	chatService "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
	"github.com/zhouzirui/career-fairy/backend/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	pendingSubmits = 8
)

// Subscriber hands out the event stream of one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error)
}

// Handler upgrades session requests to WebSocket connections.
type Handler struct {
	chatSvc  *chatService.Service
	bus      Subscriber
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the live channel handler.
func New(chatSvc *chatService.Service, bus Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc: chatSvc,
		bus:     bus,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type snapshotFrame struct {
	Type         string       `json:"type"`
	SessionID    string       `json:"sessionId"`
	Session      chat.Session `json:"session"`
	Conversation []chat.Turn  `json:"conversation"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newErrorFrame(msg string) errorFrame {
	return errorFrame{Type: "error", Error: msg}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before taking the snapshot so no turn falls in between.
	// Turns carry their index, which lets clients drop duplicates.
	stream, err := h.bus.Subscribe(ctx, sessionID)
	if err != nil {
		h.logger.Error("subscribe failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "live channel unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	turns, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		return
	}

	h.logger.Info("live channel opened", zap.String("session", sessionID))
	defer h.logger.Info("live channel closed", zap.String("session", sessionID))

	out := make(chan any, 16)
	out <- snapshotFrame{Type: "snapshot", SessionID: sessionID, Session: session, Conversation: turns}

	submissions := make(chan string, pendingSubmits)
	go h.writeLoop(ctx, cancel, conn, stream, out)
	go h.submitLoop(ctx, sessionID, submissions, out)
	h.readLoop(ctx, conn, sessionID, submissions, out)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, submissions chan<- string, out chan<- any) {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case "submit":
			select {
			case submissions <- frame.Text:
			case <-ctx.Done():
				return
			}
		case "speech":
			if frame.Enabled == nil {
				send(ctx, out, newErrorFrame("enabled is required"))
				continue
			}
			if _, err := h.chatSvc.SetSpeech(ctx, sessionID, *frame.Enabled); err != nil {
				send(ctx, out, newErrorFrame(err.Error()))
			}
		default:
			send(ctx, out, newErrorFrame("unsupported message type: "+frame.Type))
		}
	}
}

// submitLoop runs one submission at a time so questions from a connection
// keep their order.
func (h *Handler) submitLoop(ctx context.Context, sessionID string, submissions <-chan string, out chan<- any) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-submissions:
			// A client hanging up mid-generation still gets its reply stored.
			if _, err := h.chatSvc.Submit(context.WithoutCancel(ctx), sessionID, text); err != nil {
				send(ctx, out, newErrorFrame(err.Error()))
			}
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, stream <-chan events.Event, out <-chan any) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			closeConn(conn, websocket.CloseNormalClosure, "")
			return
		case frame := <-out:
			if !write(frame) {
				return
			}
		case ev, ok := <-stream:
			if !ok {
				closeConn(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			if !write(ev) {
				return
			}
			if ev.Type == events.TypeSessionEnded {
				closeConn(conn, websocket.CloseNormalClosure, "session ended")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func send(ctx context.Context, out chan<- any, frame any) {
	select {
	case out <- frame:
	case <-ctx.Done():
	}
}
