package mcp

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/model"
	"github.com/zhubert/plural-mcp/internal/testutil"
	"github.com/zhubert/plural-mcp/internal/tracker"
)

type captureSink struct {
	mu     sync.Mutex
	events []tracker.Event
	closed bool
}

func (c *captureSink) Enqueue(ev tracker.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *captureSink) Do(ctx context.Context, ev tracker.Event) error {
	if !c.Enqueue(ev) {
		return tracker.ErrClosed
	}
	return nil
}

func (c *captureSink) got() []tracker.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tracker.Event, len(c.events))
	copy(out, c.events)
	return out
}

// shortSocketPath keeps unix socket paths under the ~104 character limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pm")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, sink Sink) *SocketServer {
	t.Helper()
	srv, err := NewSocketServer(shortSocketPath(t), sink, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("failed to create socket server: %v", err)
	}
	srv.Start()
	srv.WaitReady()
	return srv
}

func TestSocket_SendStatus(t *testing.T) {
	sink := &captureSink{}
	srv := startServer(t, sink)
	defer srv.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SendStatus("srv-1", model.StatusConnected); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.SendStatus("srv-1", model.StatusDisconnected); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := sink.got()
	want := []tracker.Event{
		{ID: "srv-1", Status: model.StatusConnected},
		{ID: "srv-1", Status: model.StatusDisconnected},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSocket_RejectsInvalidMessages(t *testing.T) {
	sink := &captureSink{}
	srv := startServer(t, sink)
	defer srv.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	err = client.SendStatus("srv-1", model.Status("running"))
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("expected unknown status rejection, got %v", err)
	}
	if err := client.SendStatus("", model.StatusConnected); err == nil {
		t.Error("expected rejection for missing id")
	}

	// Raw malformed line still gets an ack and keeps the connection usable.
	conn, err := net.Dial("unix", srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("not json\n"))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(reply, `"ok":false`) {
		t.Errorf("expected negative ack, got %s", reply)
	}

	if len(sink.got()) != 0 {
		t.Errorf("invalid messages must not reach the sink: %v", sink.got())
	}
}

func TestSocket_SinkClosed(t *testing.T) {
	sink := &captureSink{closed: true}
	srv := startServer(t, sink)
	defer srv.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SendStatus("srv-1", model.StatusConnected); err == nil {
		t.Error("expected error when sink refuses events")
	}
}

func TestSocket_CloseRemovesSocketWithIdleClient(t *testing.T) {
	srv := startServer(t, &captureSink{})

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	done := make(chan struct{})
	go func() {
		srv.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on idle client")
	}

	if _, err := os.Stat(srv.SocketPath()); !os.IsNotExist(err) {
		t.Error("socket file should be removed after Close")
	}
}

func TestSocket_IntoTracker(t *testing.T) {
	store := config.New()
	store.Upsert(model.MCPServer{ID: "srv-1", Name: "Local Tool", Enabled: true, Status: model.StatusConnecting})
	tr := tracker.New(store, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(runDone)
	}()

	srv := startServer(t, tr)
	defer srv.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.SendStatus("srv-1", model.StatusConnected); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := client.SendStatus("gone", model.StatusError); err != nil {
		t.Fatalf("send for unknown id should still be accepted: %v", err)
	}

	tr.Close()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not drain")
	}

	if got := store.Get("srv-1").Status; got != model.StatusConnected {
		t.Errorf("status: got %s, want connected", got)
	}
	if len(store.List()) != 1 {
		t.Errorf("unknown id must not create a server: %v", store.List())
	}
}

func TestSocket_ConfigChanges(t *testing.T) {
	sink := &captureSink{}
	srv := startServer(t, sink)
	defer srv.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	server := model.MCPServer{ID: "srv-1", Name: "Local Tool", Enabled: true, Status: model.StatusConnecting}
	if err := client.SendUpsert(server); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := client.SendReset("srv-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := client.SendRemove("srv-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := client.SendRemove(""); err == nil {
		t.Error("expected rejection for remove without id")
	}
	if err := client.SendUpsert(model.MCPServer{Name: "no id"}); err == nil {
		t.Error("expected rejection for upsert without id")
	}

	got := sink.got()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %+v", got)
	}
	if got[0].Op != tracker.OpUpsert || got[0].Server == nil || *got[0].Server != server {
		t.Errorf("unexpected upsert event: %+v", got[0])
	}
	if got[1].Op != tracker.OpReset || got[1].ID != "srv-1" {
		t.Errorf("unexpected reset event: %+v", got[1])
	}
	if got[2].Op != tracker.OpRemove || got[2].ID != "srv-1" {
		t.Errorf("unexpected remove event: %+v", got[2])
	}
}

func TestRemoteStore_SharesQueueWithStatus(t *testing.T) {
	store := config.New()
	store.Upsert(model.MCPServer{ID: "srv-1", Name: "Local Tool", Enabled: true, Status: model.StatusConnecting})
	tr := tracker.New(store, testutil.DiscardLogger())
	runDone := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(runDone)
	}()
	defer func() {
		tr.Close()
		<-runDone
	}()

	srv := startServer(t, tr)
	defer srv.Close()

	supervisor, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer supervisor.Close()

	client, err := NewSocketClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	snapshot := config.New()
	for _, s := range store.List() {
		snapshot.Upsert(s)
	}
	remote := NewRemoteStore(client, snapshot)
	defer remote.Close()

	// Snapshot goes stale once the supervisor reports.
	if err := supervisor.SendStatus("srv-1", model.StatusConnected); err != nil {
		t.Fatalf("status: %v", err)
	}

	edited := *remote.Get("srv-1")
	edited.Name = "Renamed"
	remote.Upsert(edited)
	remote.Upsert(model.MCPServer{ID: "srv-2", Name: "Second", Enabled: true, Status: model.StatusConnecting})
	if err := remote.Err(); err != nil {
		t.Fatalf("remote upsert: %v", err)
	}

	got := store.Get("srv-1")
	if got.Name != "Renamed" || got.Status != model.StatusConnected {
		t.Errorf("edit must keep the reported status: %+v", got)
	}
	if store.Get("srv-2") == nil {
		t.Error("server added through serve should be visible at once")
	}

	if !remote.ResetStatus("srv-1") {
		t.Error("expected reset of known server")
	}
	if s := store.Get("srv-1").Status; s != model.StatusConnecting {
		t.Errorf("status after reset: got %s, want connecting", s)
	}
	if !remote.Remove("srv-2") || store.Get("srv-2") != nil {
		t.Error("expected srv-2 to be removed through serve")
	}
	if remote.Remove("missing") {
		t.Error("removing an unknown server should report false")
	}
}
