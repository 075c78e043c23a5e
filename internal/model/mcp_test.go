package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMCPServer_JSONFieldNames(t *testing.T) {
	server := MCPServer{
		ID:          "abc",
		Name:        "test-server",
		CommandLine: "npx -y some-package",
		Enabled:     true,
		Status:      StatusConnecting,
	}

	data, err := json.Marshal(server)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "name", "description", "commandLine", "enabled", "status"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected key %q in %s", key, data)
		}
	}
	if raw["status"] != "connecting" {
		t.Errorf("status: got %v, want connecting", raw["status"])
	}
}

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusConnecting, StatusConnected, true},
		{StatusConnecting, StatusError, true},
		{StatusConnecting, StatusDisconnected, false},
		{StatusConnected, StatusError, true},
		{StatusConnected, StatusDisconnected, true},
		{StatusConnected, StatusConnecting, false},
		{StatusError, StatusConnecting, true},
		{StatusError, StatusConnected, false},
		{StatusDisconnected, StatusConnecting, true},
		{StatusDisconnected, StatusConnected, false},
		{StatusConnected, StatusConnected, true},
		{StatusConnecting, Status("bogus"), false},
		{Status("bogus"), StatusConnecting, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, v := range []string{"connecting", "connected", "error", "disconnected"} {
		s, err := ParseStatus(v)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error: %v", v, err)
		}
		if string(s) != v {
			t.Errorf("ParseStatus(%q) = %q", v, s)
		}
	}
	if _, err := ParseStatus("running"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestMCPServer_With(t *testing.T) {
	orig := MCPServer{ID: "id-1", Name: "X", Enabled: true, Status: StatusConnected}

	got, err := orig.With(FieldName, "Y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Y" {
		t.Errorf("name: got %q, want Y", got.Name)
	}
	if orig.Name != "X" {
		t.Error("With must not modify the receiver")
	}

	got, err = orig.With(FieldEnabled, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Enabled {
		t.Error("expected enabled to be false")
	}
	if got.ID != orig.ID || got.Status != orig.Status {
		t.Error("id and status must be preserved")
	}

	got, err = orig.With(FieldCommandLine, "node server.js")
	if err != nil || got.CommandLine != "node server.js" {
		t.Errorf("commandLine: got %q, err %v", got.CommandLine, err)
	}

	if _, err := orig.With(FieldStatus, StatusError); !errors.Is(err, ErrFieldNotEditable) {
		t.Errorf("expected ErrFieldNotEditable, got %v", err)
	}
	if _, err := orig.With(FieldEnabled, "yes"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := orig.With(FieldDescription, 42); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := orig.With(Field("id"), "other"); err == nil {
		t.Error("expected error for unknown field")
	}
}
