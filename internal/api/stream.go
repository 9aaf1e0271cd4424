package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/planetsim/internal/engine"
)

const (
	maxStreamConns   = 4
	streamCatchUp    = 50
	streamHeartbeat  = 15 * time.Second
	streamWriteLimit = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// streamMessage is one frame on /api/v1/stream.
type streamMessage struct {
	Type  string       `json:"type"` // event category
	Event engine.Event `json:"event"`
}

// handleStream upgrades to a websocket and pushes every new event.
// Concurrent connections are capped at maxStreamConns.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streams.Add(1) > maxStreamConns {
		s.streams.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Add(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Catch-up with the most recent events, then everything after them.
	subID, ch, recent := s.Sim.SubscribeRecent(streamCatchUp)
	defer s.Sim.Unsubscribe(subID)
	for _, e := range recent {
		if err := writeStreamEvent(conn, e); err != nil {
			return
		}
	}
	slog.Info("stream client connected", "sub_id", subID, "remote", r.RemoteAddr)

	// The read loop only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeStreamEvent(conn, e); err != nil {
				slog.Info("stream client dropped", "sub_id", subID, "error", err)
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteLimit)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeStreamEvent(conn *websocket.Conn, e engine.Event) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteLimit))
	return conn.WriteJSON(streamMessage{Type: e.Category, Event: e})
}
