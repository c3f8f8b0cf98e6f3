// Package scorefeed streams a session's score events over WebSocket.
package scorefeed

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

// Source hands out per-session event channels. events.Broker implements it.
type Source interface {
	Subscribe(sessionID string) chan []byte
	Unsubscribe(sessionID string, ch chan []byte)
}

type Handler struct {
	source Source
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, source Source) *Handler {
	return &Handler{source: source, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sessions/{sessionID}/scores", h.scores)
	return r
}

func (h *Handler) scores(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ch := h.source.Subscribe(sessionID)
	defer h.source.Unsubscribe(sessionID, ch)

	// The feed is one-way; CloseRead discards client frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("score feed ended", "session_id", sessionID, "error", ctx.Err())
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-ch:
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				h.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
