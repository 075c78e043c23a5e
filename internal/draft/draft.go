// Package draft implements the single pending edit of an MCP server
// configuration. A draft is a private copy; it only becomes visible to the
// rest of the system when committed to the store.
package draft

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/model"
)

// ErrDraftConflict is returned when a draft is started while another is open.
var ErrDraftConflict = errors.New("another draft is already open")

// ErrNoDraft is returned when an operation needs an open draft and there is none.
var ErrNoDraft = errors.New("no draft is open")

// ValidationError reports a draft rejected by a validator before commit.
type ValidationError struct {
	Field  model.Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validator checks a draft before it is committed.
type Validator func(model.MCPServer) error

// RequireName rejects drafts with a blank name.
func RequireName(s model.MCPServer) error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: model.FieldName, Reason: "must not be empty"}
	}
	return nil
}

// Store is the part of config.Config a draft commits into.
type Store interface {
	Get(id string) *model.MCPServer
	Upsert(server model.MCPServer)
}

// Option configures a Session.
type Option func(*Session)

// WithIDFunc overrides the generator used for new server IDs.
func WithIDFunc(fn func() string) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithValidator adds a validator run on every commit.
func WithValidator(v Validator) Option {
	return func(s *Session) {
		s.validators = append(s.validators, v)
	}
}

// Session holds at most one open draft.
// Starting a second draft fails with ErrDraftConflict; the caller must
// Commit or Cancel the first.
type Session struct {
	mu         sync.Mutex
	draft      *model.MCPServer
	newID      func() string
	validators []Validator
}

// NewSession creates a session with no open draft.
func NewSession(opts ...Option) *Session {
	s := &Session{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCreate opens a draft for a brand-new server.
func (s *Session) StartCreate() (model.MCPServer, error) {
	return s.open(model.MCPServer{
		ID:      s.newID(),
		Enabled: true,
		Status:  model.StatusConnecting,
	})
}

// StartEdit opens a draft copied from an existing server. The draft keeps
// the same ID so that committing it replaces the stored record.
func (s *Session) StartEdit(existing model.MCPServer) (model.MCPServer, error) {
	return s.open(existing)
}

func (s *Session) open(d model.MCPServer) (model.MCPServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft != nil {
		return model.MCPServer{}, fmt.Errorf("%w (%s)", ErrDraftConflict, s.draft.ID)
	}
	s.draft = &d
	return d, nil
}

// Current returns a copy of the open draft.
func (s *Session) Current() (model.MCPServer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return model.MCPServer{}, false
	}
	return *s.draft, true
}

// Mutate changes one field of the open draft and returns the updated copy.
// The store is not touched.
func (s *Session) Mutate(field model.Field, value any) (model.MCPServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return model.MCPServer{}, ErrNoDraft
	}
	updated, err := s.draft.With(field, value)
	if err != nil {
		return *s.draft, err
	}
	*s.draft = updated
	return updated, nil
}

// Commit validates the open draft, upserts it into store and closes it.
// On validation failure the draft stays open. An edit of an existing server
// keeps the status the store holds at commit time.
func (s *Session) Commit(store Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return ErrNoDraft
	}
	for _, v := range s.validators {
		if err := v(*s.draft); err != nil {
			return err
		}
	}
	d := *s.draft
	if current := store.Get(d.ID); current != nil {
		d.Status = current.Status
	}
	store.Upsert(d)
	s.draft = nil
	return nil
}

// Cancel discards the open draft, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// Toggler is the store SetEnabled writes to.
type Toggler interface {
	Store
	ResetStatus(id string) bool
}

// SetEnabled toggles a server as a one-shot draft: StartEdit, Mutate
// enabled, Commit. It never conflicts with a draft open on another session.
// Turning a disabled server on puts its status back to connecting.
func SetEnabled(store Toggler, id string, enabled bool, opts ...Option) error {
	existing := store.Get(id)
	if existing == nil {
		return fmt.Errorf("server %s: %w", id, config.ErrNotFound)
	}

	s := NewSession(opts...)
	if _, err := s.StartEdit(*existing); err != nil {
		return err
	}
	if _, err := s.Mutate(model.FieldEnabled, enabled); err != nil {
		s.Cancel()
		return err
	}
	if err := s.Commit(store); err != nil {
		return err
	}
	if enabled && !existing.Enabled {
		store.ResetStatus(id)
	}
	return nil
}
