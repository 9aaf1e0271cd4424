package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/planetsim/internal/engine"
)

func dialStream(t *testing.T, url, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/api/v1/stream", header)
}

func readMessage(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg streamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestStreamAuth(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	if _, resp, err := dialStream(t, ts.URL, "anything"); err == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatal("stream should be disabled without a relay key")
	}

	s = newServer(t)
	s.RelayKey = "relay"
	ts2 := httptest.NewServer(s.Handler())
	defer ts2.Close()
	if _, resp, err := dialStream(t, ts2.URL, "wrong"); err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatal("wrong relay token should be refused")
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	s := newServer(t)
	s.RelayKey = "relay"
	s.Sim.View(func(sim *engine.Simulation) {
		sim.EmitEvent(engine.Event{Description: "catch-up", Category: "test"})
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := dialStream(t, ts.URL, "relay")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Drain catch-up until the marker event arrives.
	for {
		msg := readMessage(t, conn)
		if msg.Event.Description == "catch-up" {
			break
		}
	}

	s.Sim.TriggerSolarStorm()
	msg := readMessage(t, conn)
	if msg.Type != "intervention" || !strings.Contains(msg.Event.Description, "solar storm") {
		t.Fatalf("want the solar storm event, got %+v", msg)
	}
}
