// Package tracker applies connection status events from the process
// supervisor, and configuration changes forwarded by other commands, to the
// MCP server store through a single ordered queue.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zhubert/plural-mcp/internal/model"
)

// Op is the kind of change an Event carries.
type Op string

const (
	OpStatus Op = "status" // supervisor status report; the zero Op means the same
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
	OpReset  Op = "reset" // back to connecting on re-enable
)

// ErrClosed is returned by Do once the tracker no longer accepts events.
var ErrClosed = errors.New("status tracker is shutting down")

// Event is a change to one MCP server.
type Event struct {
	Op     Op               `json:"op,omitempty"`
	ID     string           `json:"id"`
	Status model.Status     `json:"status,omitempty"`
	Server *model.MCPServer `json:"server,omitempty"` // OpUpsert only

	done chan error // set by Do
}

// Store is the part of config.Config the tracker writes to.
type Store interface {
	Get(id string) *model.MCPServer
	PatchStatus(id string, status model.Status) error
	Upsert(server model.MCPServer)
	Remove(id string) bool
	ResetStatus(id string) bool
}

// Stats counts what happened to events handed to Apply.
type Stats struct {
	Applied  uint64
	Dropped  uint64
	Rejected uint64
	Failed   uint64
}

// Tracker queues events without blocking the sender and applies them one at
// a time in the order they were received.
type Tracker struct {
	store Store
	log   *slog.Logger

	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{} // signalled on enqueue so Run wakes up
	done   chan struct{} // closed by Close

	applied  atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

// New creates a tracker writing into store.
func New(store Store, log *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		log:    log.With("component", "status-tracker"),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adds an event to the queue. It never blocks.
// Returns false if the tracker has been closed.
func (t *Tracker) Enqueue(ev Event) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.queue = append(t.queue, ev)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of events waiting to be applied.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Do enqueues ev and waits until it has been applied.
func (t *Tracker) Do(ctx context.Context, ev Event) error {
	ev.done = make(chan error, 1)
	if !t.Enqueue(ev) {
		return ErrClosed
	}
	select {
	case err := <-ev.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events. Run drains what is already queued and returns.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
}

func (t *Tracker) pop() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return Event{}, false
	}
	ev := t.queue[0]
	t.queue[0] = Event{}
	t.queue = t.queue[1:]
	return ev, true
}

// Run applies queued events until ctx is cancelled, or until the tracker is
// closed and the queue is empty.
func (t *Tracker) Run(ctx context.Context) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			ev, ok := t.pop()
			if !ok {
				break
			}
			err := t.Apply(ev)
			if ev.done != nil {
				ev.done <- err
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-t.notify:
		case <-t.done:
			if t.Len() == 0 {
				return
			}
		}
	}
}

// Apply writes a single event into the store.
func (t *Tracker) Apply(ev Event) error {
	switch ev.Op {
	case "", OpStatus:
		return t.applyStatus(ev)
	case OpUpsert:
		if ev.Server == nil || ev.Server.ID == "" {
			t.failed.Add(1)
			return errors.New("upsert without a server")
		}
		server := *ev.Server
		// Status only moves through reports and resets.
		if current := t.store.Get(server.ID); current != nil {
			server.Status = current.Status
		} else if !server.Status.Valid() {
			server.Status = model.StatusConnecting
		}
		t.store.Upsert(server)
		t.applied.Add(1)
		t.log.Debug("server upserted", "server", server.ID)
	case OpRemove:
		if t.store.Remove(ev.ID) {
			t.applied.Add(1)
			t.log.Debug("server removed", "server", ev.ID)
		} else {
			t.dropped.Add(1)
		}
	case OpReset:
		if t.store.ResetStatus(ev.ID) {
			t.applied.Add(1)
			t.log.Debug("status reset", "server", ev.ID)
		} else {
			t.dropped.Add(1)
		}
	default:
		t.failed.Add(1)
		return fmt.Errorf("unknown event op %q", ev.Op)
	}
	return nil
}

// applyStatus patches a reported status. Events for servers that no longer
// exist are dropped without error. Transitions outside the status graph are
// rejected and counted.
func (t *Tracker) applyStatus(ev Event) error {
	if t.store.Get(ev.ID) == nil {
		t.dropped.Add(1)
		t.log.Debug("status for unknown server dropped", "server", ev.ID, "status", ev.Status)
		return nil
	}
	err := t.store.PatchStatus(ev.ID, ev.Status)
	switch {
	case err == nil:
		t.applied.Add(1)
		t.log.Debug("status applied", "server", ev.ID, "status", ev.Status)
	case errors.Is(err, model.ErrInvalidTransition):
		t.rejected.Add(1)
		t.log.Warn("status transition rejected", "server", ev.ID, "status", ev.Status, "error", err)
	default:
		t.failed.Add(1)
		t.log.Error("failed to apply status", "server", ev.ID, "status", ev.Status, "error", err)
	}
	return err
}

// Stats returns the event counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Applied:  t.applied.Load(),
		Dropped:  t.dropped.Load(),
		Rejected: t.rejected.Load(),
		Failed:   t.failed.Load(),
	}
}
