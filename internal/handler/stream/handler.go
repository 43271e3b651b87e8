// Package stream serves a session's live events as Server-Sent Events for
// surfaces that cannot hold a WebSocket. The feed is read-only; questions
// go through the messages endpoint.
package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/events"
	"github.com/zhouzirui/career-fairy/backend/internal/handler/live"
	"github.com/zhouzirui/career-fairy/backend/internal/model/chat"
	chatService "github.com/zhouzirui/career-fairy/backend/internal/service/chat"
	"github.com/zhouzirui/career-fairy/backend/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Handler streams session events over SSE.
type Handler struct {
	chatSvc   *chatService.Service
	bus       live.Subscriber
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates the stream handler.
func New(chatSvc *chatService.Service, bus live.Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, bus: bus, logger: logger, heartbeat: heartbeatInterval}
}

// RegisterRoutes mounts the stream route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

type snapshotEvent struct {
	SessionID    string      `json:"sessionId"`
	Conversation []chat.Turn `json:"conversation"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	stream, err := h.bus.Subscribe(ctx, sessionID)
	if err != nil {
		h.logger.Error("subscribe failed", zap.String("session", sessionID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "live feed unavailable")
		return
	}

	turns, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshotEvent{SessionID: sessionID, Conversation: turns}); err != nil {
		return
	}

	h.logger.Debug("sse stream opened", zap.String("session", sessionID))
	defer h.logger.Debug("sse stream closed", zap.String("session", sessionID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case ev, ok := <-stream:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				h.logger.Debug("sse write failed", zap.String("session", sessionID), zap.Error(err))
				return
			}
			if ev.Type == events.TypeSessionEnded {
				return
			}
		}
	}
}
