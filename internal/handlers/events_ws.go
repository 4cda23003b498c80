package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks happen at the HTTP layer.
		return true
	},
}

// eventsClientMessage is what dashboards send over the socket.
type eventsClientMessage struct {
	Type      string `json:"type"` // "subscribe", "ping"
	AccountID string `json:"account_id,omitempty"`
}

// EventsWebSocket streams live moderation results to a dashboard. The
// connection starts subscribed to the accounts in the `accounts` query
// parameter and can add more with subscribe messages.
func (h *Handler) EventsWebSocket(w http.ResponseWriter, r *http.Request) {
	var accountIDs []string
	for _, id := range strings.Split(r.URL.Query().Get("accounts"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			accountIDs = append(accountIDs, id)
		}
	}
	if len(accountIDs) == 0 {
		writeError(w, http.StatusBadRequest, "accounts query parameter is required")
		return
	}

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	unregister := h.Hub.Register(conn, accountIDs)
	defer unregister()

	for {
		var msg eventsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.AccountID != "" {
				h.Hub.Subscribe(conn, msg.AccountID)
			}
		case "ping":
			conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}
}
