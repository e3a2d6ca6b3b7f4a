package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

type collector struct {
	mu      sync.Mutex
	updates []events.GameUpdate
}

func (c *collector) Publish(_ context.Context, u events.GameUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func TestWSClientPublishesValidUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		start := time.Date(2026, 10, 11, 19, 30, 0, 0, time.UTC)
		_ = conn.WriteJSON(events.GameUpdate{GameID: "g1", HomeTeam: "Washington", AwayTeam: "Oregon", StartTime: start, Status: "scheduled"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(events.GameUpdate{GameID: "g1", Status: "completed"})
		_ = conn.WriteJSON(events.GameUpdate{GameID: "g1", HomeTeam: "Washington", AwayTeam: "Oregon", StartTime: start, Status: "completed", Winner: "away"})
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	pub := &collector{}
	var mu sync.Mutex
	var phases []string
	c := &WSClient{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Publisher:      pub,
		ReconnectDelay: 10 * time.Millisecond,
		OnError: func(p string) {
			mu.Lock()
			phases = append(phases, p)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pub.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if pub.len() != 2 {
		t.Fatalf("published = %d", pub.len())
	}
	if pub.updates[1].Winner != "away" || pub.updates[1].UpdatedAt.IsZero() {
		t.Fatalf("update = %+v", pub.updates[1])
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) < 2 || phases[0] != "decode" || phases[1] != "validate" {
		t.Fatalf("phases = %v", phases)
	}
}
