package model

import (
	"errors"
	"fmt"
)

// Status is the coarse connection-lifecycle label of an MCP server.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
	StatusDisconnected Status = "disconnected"
)

// ErrInvalidTransition is returned when a status change is not an edge of the
// status graph.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed successors of each status.
var transitions = map[Status][]Status{
	StatusConnecting:   {StatusConnected, StatusError},
	StatusConnected:    {StatusError, StatusDisconnected},
	StatusError:        {StatusConnecting},
	StatusDisconnected: {StatusConnecting},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed.
// Staying in the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return next.Valid()
	}
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseStatus converts a string into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Field names an editable field of an MCPServer.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldCommandLine Field = "commandLine"
	FieldEnabled     Field = "enabled"
	FieldStatus      Field = "status"
)

var (
	// ErrFieldNotEditable is returned for fields that user edits may not change.
	ErrFieldNotEditable = errors.New("field is not editable")
	// ErrInvalidValue is returned when a value has the wrong type for a field.
	ErrInvalidValue = errors.New("invalid value for field")
)

// MCPServer represents an MCP server configuration
type MCPServer struct {
	ID          string `json:"id" yaml:"id"`                   // Assigned once at creation, never changes
	Name        string `json:"name" yaml:"name"`               // Display label
	Description string `json:"description" yaml:"description"` // Free text
	CommandLine string `json:"commandLine" yaml:"commandLine"` // Opaque to this package; run by the supervisor
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Status      Status `json:"status" yaml:"status"`
}

// With returns a copy of m with a single field changed.
// Status can only be changed through the status path and is rejected here.
func (m MCPServer) With(field Field, value any) (MCPServer, error) {
	switch field {
	case FieldName, FieldDescription, FieldCommandLine:
		s, ok := value.(string)
		if !ok {
			return m, fmt.Errorf("%w %s: want string, got %T", ErrInvalidValue, field, value)
		}
		switch field {
		case FieldName:
			m.Name = s
		case FieldDescription:
			m.Description = s
		default:
			m.CommandLine = s
		}
	case FieldEnabled:
		b, ok := value.(bool)
		if !ok {
			return m, fmt.Errorf("%w %s: want bool, got %T", ErrInvalidValue, field, value)
		}
		m.Enabled = b
	case FieldStatus:
		return m, fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	default:
		return m, fmt.Errorf("unknown field %q", field)
	}
	return m, nil
}
