package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/model"
	"github.com/zhubert/plural-mcp/internal/testutil"
)

func newStore(ids ...string) *config.Config {
	c := config.New()
	for _, id := range ids {
		c.Upsert(model.MCPServer{ID: id, Name: id, Enabled: true, Status: model.StatusConnecting})
	}
	return c
}

// recordingStore wraps a config and records the order of applied patches.
type recordingStore struct {
	*config.Config
	mu      sync.Mutex
	patches []Event
}

func (r *recordingStore) PatchStatus(id string, status model.Status) error {
	r.mu.Lock()
	r.patches = append(r.patches, Event{ID: id, Status: status})
	r.mu.Unlock()
	return r.Config.PatchStatus(id, status)
}

func (r *recordingStore) recorded() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.patches))
	copy(out, r.patches)
	return out
}

func TestTracker_Apply(t *testing.T) {
	store := newStore("a")
	tr := New(store, testutil.DiscardLogger())

	if err := tr.Apply(Event{ID: "a", Status: model.StatusConnected}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Get("a").Status; got != model.StatusConnected {
		t.Errorf("status: got %s, want connected", got)
	}

	err := tr.Apply(Event{ID: "a", Status: model.StatusConnecting})
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	if err := tr.Apply(Event{ID: "removed", Status: model.StatusError}); err != nil {
		t.Errorf("expected unknown id to be dropped silently, got %v", err)
	}

	stats := tr.Stats()
	if stats.Applied != 1 || stats.Rejected != 1 || stats.Dropped != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestTracker_AppliesInReceiptOrder(t *testing.T) {
	store := &recordingStore{Config: newStore("a", "b")}
	tr := New(store, testutil.DiscardLogger())

	events := []Event{
		{ID: "a", Status: model.StatusConnected},
		{ID: "b", Status: model.StatusError},
		{ID: "a", Status: model.StatusDisconnected},
		{ID: "b", Status: model.StatusConnecting},
		{ID: "a", Status: model.StatusConnecting},
		{ID: "b", Status: model.StatusConnected},
	}
	for _, ev := range events {
		if !tr.Enqueue(ev) {
			t.Fatal("enqueue failed on open tracker")
		}
	}
	tr.Close()

	done := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	got := store.recorded()
	if len(got) != len(events) {
		t.Fatalf("expected %d patches, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("patch %d: got %+v, want %+v", i, got[i], events[i])
		}
	}
	if s := store.Get("a").Status; s != model.StatusConnecting {
		t.Errorf("a: got %s, want connecting", s)
	}
	if s := store.Get("b").Status; s != model.StatusConnected {
		t.Errorf("b: got %s, want connected", s)
	}
}

func TestTracker_RunWhileEnqueueing(t *testing.T) {
	store := newStore("a")
	tr := New(store, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	tr.Enqueue(Event{ID: "a", Status: model.StatusConnected})
	store.Remove("a")
	tr.Enqueue(Event{ID: "a", Status: model.StatusDisconnected})
	tr.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(store.List()) != 0 {
		t.Error("late status event must not recreate a removed server")
	}
	if tr.Len() != 0 {
		t.Errorf("expected empty queue, got %d", tr.Len())
	}
}

func TestTracker_EnqueueAfterClose(t *testing.T) {
	tr := New(newStore(), testutil.DiscardLogger())
	tr.Close()
	tr.Close()
	if tr.Enqueue(Event{ID: "a", Status: model.StatusConnected}) {
		t.Error("expected enqueue to fail after close")
	}
}

func TestTracker_RunStopsOnContextCancel(t *testing.T) {
	tr := New(newStore(), testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTracker_EnqueueNeverBlocks(t *testing.T) {
	tr := New(newStore("a"), testutil.DiscardLogger())
	for i := 0; i < 10000; i++ {
		tr.Enqueue(Event{ID: "a", Status: model.StatusConnecting})
	}
	if tr.Len() != 10000 {
		t.Errorf("expected 10000 queued events, got %d", tr.Len())
	}
}

func TestTracker_ApplyConfigChanges(t *testing.T) {
	store := newStore("a")
	tr := New(store, testutil.DiscardLogger())

	if err := tr.Apply(Event{ID: "a", Status: model.StatusConnected}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An edit carrying an old status keeps the reported one.
	edited := *store.Get("a")
	edited.Name = "renamed"
	edited.Status = model.StatusConnecting
	if err := tr.Apply(Event{Op: OpUpsert, ID: "a", Server: &edited}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got := store.Get("a")
	if got.Name != "renamed" || got.Status != model.StatusConnected {
		t.Errorf("unexpected server after upsert: %+v", got)
	}

	added := model.MCPServer{ID: "b", Name: "b", Enabled: true}
	if err := tr.Apply(Event{Op: OpUpsert, ID: "b", Server: &added}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := store.Get("b"); got == nil || got.Status != model.StatusConnecting {
		t.Errorf("new server should start connecting, got %+v", got)
	}

	if err := tr.Apply(Event{Op: OpReset, ID: "a"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := store.Get("a").Status; got != model.StatusConnecting {
		t.Errorf("status after reset: got %s, want connecting", got)
	}

	if err := tr.Apply(Event{Op: OpRemove, ID: "b"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.Get("b") != nil {
		t.Error("expected b to be removed")
	}

	if err := tr.Apply(Event{Op: OpUpsert, ID: "c"}); err == nil {
		t.Error("expected error for upsert without a server")
	}
	if err := tr.Apply(Event{Op: "rename", ID: "a"}); err == nil {
		t.Error("expected error for unknown op")
	}
}

func TestTracker_DoWaitsForApply(t *testing.T) {
	store := newStore()
	tr := New(store, testutil.DiscardLogger())

	done := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(done)
	}()

	server := model.MCPServer{ID: "a", Name: "a", Enabled: true, Status: model.StatusConnecting}
	if err := tr.Do(context.Background(), Event{Op: OpUpsert, ID: "a", Server: &server}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if store.Get("a") == nil {
		t.Error("server must be in the store when Do returns")
	}

	err := tr.Do(context.Background(), Event{ID: "a", Status: model.StatusDisconnected})
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("expected rejected transition from Do, got %v", err)
	}

	tr.Close()
	<-done
	if err := tr.Do(context.Background(), Event{Op: OpRemove, ID: "a"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
