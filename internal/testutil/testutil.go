// Package testutil provides shared test helpers used across packages.
package testutil

import (
	"io"
	"log/slog"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/model"
)

// DiscardLogger returns a slog.Logger that discards all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SampleServers returns a small, fixed list of servers for unit tests.
func SampleServers() []model.MCPServer {
	return []model.MCPServer{
		{ID: "11111111-1111-4111-8111-111111111111", Name: "filesystem", Description: "Local files", CommandLine: "npx -y @modelcontextprotocol/server-filesystem /tmp", Enabled: true, Status: model.StatusConnected},
		{ID: "22222222-2222-4222-8222-222222222222", Name: "github", CommandLine: "github-mcp-server stdio", Enabled: false, Status: model.StatusDisconnected},
	}
}

// TestConfig returns a config holding SampleServers.
func TestConfig() *config.Config {
	c := config.New()
	for _, s := range SampleServers() {
		c.Upsert(s)
	}
	return c
}
