package config

import (
	"fmt"

	"github.com/zhubert/plural-mcp/internal/model"
)

// MCPServer is an alias for model.MCPServer.
type MCPServer = model.MCPServer

// List returns a copy of the MCP servers in order
func (c *Config) List() []MCPServer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Get returns a copy of an MCP server by ID.
// Returns nil if no server with the given ID exists.
func (c *Config) Get(id string) *MCPServer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.MCPServers {
		if c.MCPServers[i].ID == id {
			s := c.MCPServers[i] // copy
			return &s
		}
	}
	return nil
}

// Upsert replaces the server with the same ID in place, or appends it.
func (c *Config) Upsert(server MCPServer) {
	c.mu.Lock()
	replaced := false
	for i := range c.MCPServers {
		if c.MCPServers[i].ID == server.ID {
			c.MCPServers[i] = server
			replaced = true
			break
		}
	}
	if !replaced {
		c.MCPServers = append(c.MCPServers, server)
	}
	c.mu.Unlock()

	c.notify()
}

// Remove removes a server by ID. Removing an unknown ID is a no-op.
func (c *Config) Remove(id string) bool {
	c.mu.Lock()
	removed := false
	for i, s := range c.MCPServers {
		if s.ID == id {
			c.MCPServers = append(c.MCPServers[:i:i], c.MCPServers[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		c.notify()
	}
	return removed
}

// PatchStatus updates only the status of a server.
// Unknown IDs are ignored. Transitions outside the status graph return an
// error wrapping model.ErrInvalidTransition and leave the server unchanged.
func (c *Config) PatchStatus(id string, status model.Status) error {
	c.mu.Lock()
	changed := false
	for i := range c.MCPServers {
		if c.MCPServers[i].ID != id {
			continue
		}
		current := c.MCPServers[i].Status
		if !current.CanTransition(status) {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s -> %s for %s", model.ErrInvalidTransition, current, status, id)
		}
		if current != status {
			c.MCPServers[i].Status = status
			changed = true
		}
		break
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return nil
}

// ResetStatus puts a server back to connecting whatever its current status.
// It is the re-enable path; supervisor reports go through PatchStatus.
// Returns false if the server does not exist.
func (c *Config) ResetStatus(id string) bool {
	c.mu.Lock()
	found, changed := false, false
	for i := range c.MCPServers {
		if c.MCPServers[i].ID != id {
			continue
		}
		found = true
		if c.MCPServers[i].Status != model.StatusConnecting {
			c.MCPServers[i].Status = model.StatusConnecting
			changed = true
		}
		break
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
	return found
}
