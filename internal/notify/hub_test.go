package notify_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-study/internal/notify"
	"github.com/p-n-ai/pai-study/internal/state"
	"github.com/p-n-ai/pai-study/internal/storage"
)

func dial(t *testing.T, hub *notify.Hub) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	t.Cleanup(cancel)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn, ctx
}

func TestHub_BroadcastsStoreChanges(t *testing.T) {
	s := state.New(storage.NewMemoryBackend())
	hub := notify.NewHub(s)
	defer hub.Close()

	conn, ctx := dial(t, hub)

	s.MarkTopicComplete("storage")

	seen := make(map[state.Key]bool)
	for range 3 {
		var ev notify.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if ev.At.IsZero() {
			t.Error("event has no timestamp")
		}
		seen[ev.Key] = true
	}
	for _, k := range []state.Key{state.KeyProgress, state.KeyActivityLog, state.KeyActivityFeed} {
		if !seen[k] {
			t.Errorf("no event for %s, got %v", k, seen)
		}
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	s := state.New(storage.NewMemoryBackend())
	hub := notify.NewHub(s)

	conn, ctx := dial(t, hub)
	hub.Close()

	var ev notify.Event
	err := wsjson.Read(ctx, conn, &ev)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Errorf("CloseStatus = %v (err %v), want StatusGoingAway", got, err)
	}
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d after Close, want 0", hub.Clients())
	}

	// No panic on changes after Close.
	if err := s.SetTheme(state.ThemeDark); err != nil {
		t.Fatal(err)
	}
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := notify.NewHub(state.New(storage.NewMemoryBackend()))
	defer hub.Close()
	hub.Broadcast(notify.Event{Key: state.KeyTheme, At: time.Now()})
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", hub.Clients())
	}
}
