// Package settings persists the MCP server list for the host application.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/plural-mcp/internal/model"
)

const fileVersion = 1

// document is the on-disk YAML layout.
type document struct {
	Version    int               `yaml:"version"`
	MCPServers []model.MCPServer `yaml:"mcpServers"`
}

// YAMLFile stores the server list in a YAML settings file.
type YAMLFile struct {
	path string
	mu   sync.Mutex
}

// NewYAMLFile returns a persister for the file at path.
func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

// Path returns the settings file path.
func (f *YAMLFile) Path() string {
	return f.path
}

// Load reads the server list. A missing file yields an empty list.
func (f *YAMLFile) Load() ([]model.MCPServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.MCPServer{}, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", f.path, err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("settings %s has version %d, newest supported is %d", f.path, doc.Version, fileVersion)
	}
	if doc.MCPServers == nil {
		doc.MCPServers = []model.MCPServer{}
	}
	return doc.MCPServers, nil
}

// Save writes the server list atomically (write temp file, then rename).
func (f *YAMLFile) Save(servers []model.MCPServer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if servers == nil {
		servers = []model.MCPServer{}
	}
	data, err := yaml.Marshal(document{Version: fileVersion, MCPServers: servers})
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between calls.
func (f *YAMLFile) Close() error {
	return nil
}
