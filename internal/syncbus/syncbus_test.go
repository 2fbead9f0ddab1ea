package syncbus_test

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/selection"
	"github.com/Meeting-BaaS/status-sub000/internal/syncbus"
)

func startTestHub(t *testing.T) (string, *syncbus.Server) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "sync.sock")
	srv := syncbus.NewServer(sockPath, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return sockPath, srv
}

func dialTestClient(t *testing.T, sockPath string) *syncbus.Client {
	t.Helper()
	c, err := syncbus.Dial(sockPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitPeers blocks until the hub has registered n connections.
func waitPeers(t *testing.T, srv *syncbus.Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for srv.Peers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d peers, want %d", srv.Peers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, ch <-chan selection.Message) selection.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return selection.Message{}
	}
}

func TestRelayBetweenClients(t *testing.T) {
	sockPath, srv := startTestHub(t)
	a := dialTestClient(t, sockPath)
	b := dialTestClient(t, sockPath)
	waitPeers(t, srv, 2)

	got := make(chan selection.Message, 4)
	b.Subscribe(func(m selection.Message) {
		if m.Origin == "tab-a" {
			got <- m
		}
	})

	sent := selection.Message{
		Origin:   "tab-a",
		Selected: []string{"bot-1", "bot-2"},
		Hovered:  []string{"bot-2"},
		SentAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := a.Publish(sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	m := receive(t, got)
	if !slices.Equal(m.Selected, sent.Selected) || !slices.Equal(m.Hovered, sent.Hovered) {
		t.Errorf("got %+v, want %+v", m, sent)
	}
	if !m.SentAt.Equal(sent.SentAt) {
		t.Errorf("SentAt = %v, want %v", m.SentAt, sent.SentAt)
	}
}

func TestPublishReachesLocalSubscribers(t *testing.T) {
	sockPath, _ := startTestHub(t)
	a := dialTestClient(t, sockPath)

	got := make(chan selection.Message, 1)
	a.Subscribe(func(m selection.Message) { got <- m })

	if err := a.Publish(selection.Message{Origin: "tab-a", Selected: []string{"x"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if m := receive(t, got); m.Origin != "tab-a" {
		t.Errorf("Origin = %q, want tab-a", m.Origin)
	}
}

func TestMalformedEnvelopesDropped(t *testing.T) {
	sockPath, srv := startTestHub(t)
	listener := dialTestClient(t, sockPath)

	raw, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial raw: %v", err)
	}
	defer raw.Close()
	waitPeers(t, srv, 2)

	got := make(chan selection.Message, 8)
	listener.Subscribe(func(m selection.Message) { got <- m })

	lines := "not json\n" +
		`{"v":2,"kind":"selection","message":{"origin":"x"}}` + "\n" +
		`{"v":1,"kind":"cursor","message":{"origin":"x"}}` + "\n" +
		`{"v":1,"kind":"selection","message":{"origin":""}}` + "\n" +
		`{"v":1,"kind":"selection","message":{"origin":"tab-raw","selected":["ok"]}}` + "\n"
	if _, err := raw.Write([]byte(lines)); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := receive(t, got)
	if m.Origin != "tab-raw" || !slices.Equal(m.Selected, []string{"ok"}) {
		t.Errorf("first delivered message = %+v, want the valid envelope", m)
	}
	select {
	case extra := <-got:
		t.Errorf("unexpected extra message %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStoresSyncThroughHub(t *testing.T) {
	sockPath, srv := startTestHub(t)
	a := dialTestClient(t, sockPath)
	b := dialTestClient(t, sockPath)
	waitPeers(t, srv, 2)

	left := selection.NewStore(a)
	defer left.Close()
	right := selection.NewStore(b)
	defer right.Close()

	loaded := []string{"bot-1", "bot-2", "bot-3"}
	left.SetLoaded(loaded)
	right.SetLoaded(loaded)

	left.Toggle("bot-2")

	deadline := time.Now().Add(2 * time.Second)
	for !right.IsSelected("bot-2") {
		if time.Now().After(deadline) {
			t.Fatalf("right selection = %v, want [bot-2]", right.Selected())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishAfterClose(t *testing.T) {
	sockPath, _ := startTestHub(t)
	c, err := syncbus.Dial(sockPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Publish(selection.Message{Origin: "x"}); !errors.Is(err, syncbus.ErrClosed) {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestDialNonexistent(t *testing.T) {
	if _, err := syncbus.Dial(filepath.Join(t.TempDir(), "missing.sock"), zerolog.Nop()); err == nil {
		t.Fatal("expected error dialing nonexistent socket")
	}
}

func TestSecondHubRefused(t *testing.T) {
	sockPath, _ := startTestHub(t)
	other := syncbus.NewServer(sockPath, zerolog.Nop())
	if err := other.Start(); !errors.Is(err, syncbus.ErrHubRunning) {
		t.Fatalf("second Start = %v, want ErrHubRunning", err)
	}
}

func TestStaleSocketReplaced(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(sockPath, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	srv := syncbus.NewServer(sockPath, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start over stale file: %v", err)
	}
	srv.Stop()
}

func TestStopCleansSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "cleanup.sock")
	srv := syncbus.NewServer(sockPath, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c, err := syncbus.Dial(sockPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	srv.Stop()
	srv.Stop()
	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Errorf("socket file still present after Stop: %v", err)
	}
}
