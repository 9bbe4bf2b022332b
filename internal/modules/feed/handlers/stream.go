package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// streamPayload is one websocket frame of the price stream
type streamPayload struct {
	Prices    interface{} `json:"prices"`
	Timestamp string      `json:"timestamp"`
}

// HandleStream handles GET /api/feed/stream. It upgrades the connection to a
// websocket and pushes a full price snapshot once per tick interval until the
// client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The core is consumed by a separate front-end origin in development
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept websocket connection")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Price stream opened")

	ctx := r.Context()
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	// Send an immediate snapshot so clients render without waiting a tick
	if err := h.writeSnapshot(ctx, conn); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.writeSnapshot(ctx, conn); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Debug().Err(err).Msg("Price stream closed")
				}
				return
			}
		}
	}
}

func (h *Handler) writeSnapshot(ctx context.Context, conn *websocket.Conn) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return wsjson.Write(writeCtx, conn, streamPayload{
		Prices:    h.feed.Snapshot(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
