package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/plural-core/paths"

	"github.com/zhubert/plural-mcp/internal/model"
)

// Backend names a persistence format.
type Backend string

const (
	BackendYAML   Backend = "yaml"
	BackendSQLite Backend = "sqlite"
)

// Persister is a config.Persister that also owns a file on disk.
type Persister interface {
	Load() ([]model.MCPServer, error)
	Save(servers []model.MCPServer) error
	Path() string
	Close() error
}

// ParseBackend converts a flag value into a Backend.
// An empty value infers the backend from the file extension of path.
func ParseBackend(v, path string) (Backend, error) {
	switch Backend(strings.ToLower(v)) {
	case BackendYAML:
		return BackendYAML, nil
	case BackendSQLite:
		return BackendSQLite, nil
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".db", ".sqlite", ".sqlite3":
			return BackendSQLite, nil
		default:
			return BackendYAML, nil
		}
	default:
		return "", fmt.Errorf("unknown settings backend %q (want yaml or sqlite)", v)
	}
}

// DefaultPath returns the settings location for a backend inside the data directory.
func DefaultPath(b Backend) string {
	dir, err := paths.DataDir()
	if err != nil {
		// Fall back to home dir
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".plural")
	}
	if b == BackendSQLite {
		return filepath.Join(dir, "mcp-servers.db")
	}
	return filepath.Join(dir, "mcp-servers.yaml")
}

// Open returns the persister for path.
func Open(path string, b Backend) (Persister, error) {
	switch b {
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendYAML:
		return NewYAMLFile(path), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", b)
	}
}

// OpenReadOnly returns a persister for inspecting settings. It never creates
// the settings file or its directory, and Save returns ErrReadOnly.
func OpenReadOnly(path string, b Backend) (Persister, error) {
	switch b {
	case BackendSQLite:
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return readOnly{NewYAMLFile(path)}, nil
		}
		db, err := OpenSQLiteReadOnly(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendYAML:
		return readOnly{NewYAMLFile(path)}, nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", b)
	}
}

// readOnly rejects saves. Load of a missing file yields an empty list.
type readOnly struct {
	*YAMLFile
}

func (r readOnly) Save([]model.MCPServer) error {
	return ErrReadOnly
}
