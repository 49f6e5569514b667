package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Waterfall clients are same-origin viewers served by this daemon;
	// cross-origin viewers are out of scope (no bundled web client is
	// a stated non-goal).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// waterfall upgrades to a websocket and forwards every published
// spectrometer frame as a binary message until the client disconnects,
// a write fails or the request context ends. A client that falls behind
// loses frames (the bus drops them and the lag is logged) but stays
// connected (spec.md §6 "/ws/waterfall",
// grounded on original_source/maia-httpd/src/httpd/websocket.rs).
func (h *handlers) waterfall(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := h.deps.Bus.Subscribe()
	defer h.deps.Bus.Unsubscribe(sub)

	ctx := r.Context()

	// Drain client-originated messages (pings etc.) without acting on
	// them, so the connection's read side never blocks indefinitely;
	// exit as soon as the peer closes.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("waterfall websocket connected")
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return
		}
		if msg.Lagged > 0 {
			h.logger.Info("waterfall client lagged", "dropped", msg.Lagged)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, msg.Data); err != nil {
			return
		}
		select {
		case <-closed:
			return
		default:
		}
	}
}
