// Package config holds the committed set of MCP server configurations that
// backs the application's settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zhubert/plural-mcp/internal/model"
)

// ErrNotFound is returned by host-level lookups for an id that is not in the
// store. Store mutations never return it.
var ErrNotFound = errors.New("mcp server not found")

// Persister loads and saves the full ordered list of MCP servers.
// The on-disk format is up to the implementation.
type Persister interface {
	Load() ([]model.MCPServer, error)
	Save(servers []model.MCPServer) error
}

// Observer is called with the full current list after every mutation.
type Observer func(servers []model.MCPServer)

// Config is the process-wide owner of the MCP server list.
type Config struct {
	MCPServers []model.MCPServer

	mu        sync.RWMutex
	observers []Observer
	persister Persister
}

// New creates an empty config.
func New() *Config {
	return &Config{MCPServers: []model.MCPServer{}}
}

// Load creates a config populated from p. Unknown status values are
// normalized to connecting and duplicate ids keep their first occurrence.
func Load(p Persister) (*Config, error) {
	servers, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load mcp servers: %w", err)
	}

	c := New()
	c.persister = p
	seen := make(map[string]bool, len(servers))
	for _, s := range servers {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		if !s.Status.Valid() {
			s.Status = model.StatusConnecting
		}
		c.MCPServers = append(c.MCPServers, s)
	}
	return c, nil
}

// Save writes the current list through the persister the config was loaded with.
func (c *Config) Save() error {
	c.mu.RLock()
	p := c.persister
	c.mu.RUnlock()
	if p == nil {
		return errors.New("config has no persister")
	}
	if err := p.Save(c.List()); err != nil {
		return fmt.Errorf("failed to save mcp servers: %w", err)
	}
	return nil
}

// Subscribe registers fn to be called after every mutation.
func (c *Config) Subscribe(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// AutoSave subscribes Save to every mutation. Save errors are logged.
func AutoSave(c *Config, log *slog.Logger) {
	c.Subscribe(func([]model.MCPServer) {
		if err := c.Save(); err != nil {
			log.Error("failed to persist mcp servers", "error", err)
		}
	})
}

// notify must be called without holding c.mu.
func (c *Config) notify() {
	c.mu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	servers := c.snapshotLocked()
	c.mu.RUnlock()

	for _, fn := range observers {
		fn(servers)
	}
}

func (c *Config) snapshotLocked() []model.MCPServer {
	servers := make([]model.MCPServer, len(c.MCPServers))
	copy(servers, c.MCPServers)
	return servers
}
