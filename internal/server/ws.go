package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/judgy/internal/app"
	"github.com/ayusman/judgy/internal/logger"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// NoticeSource publishes live notices.
type NoticeSource interface {
	Subscribe() (<-chan app.Notice, func())
}

// EventsSocket pushes pickup, putdown and reaction notices to WebSocket
// clients as JSON.
type EventsSocket struct {
	source NoticeSource
}

// NewEventsSocket creates a new EventsSocket.
func NewEventsSocket(source NoticeSource) *EventsSocket {
	return &EventsSocket{source: source}
}

// ServeHTTP upgrades the connection and forwards notices until either side
// closes.
func (h *EventsSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("server", "websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	notices, cancel := h.source.Subscribe()
	defer cancel()

	// The reader only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				logger.Debug("server", "websocket write: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
