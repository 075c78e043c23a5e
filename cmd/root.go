package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zhubert/plural-core/logger"
)

var (
	quietMode             bool
	settingsPath          string
	settingsBackend       string
	statusSocketPath      string
	version, commit, date string
)

// SetVersionInfo sets version information from ldflags
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

var rootCmd = &cobra.Command{
	Use:   "plural-mcp",
	Short: "Manage MCP server configurations",
	Long: `plural-mcp manages the MCP servers stored in your settings: add, edit,
enable, disable and remove them, and track each server's connection status.

Settings are stored as YAML (default) or SQLite in the plural data directory.
Run 'plural-mcp serve' to own the settings and receive status reports from
the process supervisor over a local socket.`,
	Example: `  plural-mcp add --name "Local Tool" --command "npx -y my-mcp-server"
  plural-mcp list
  plural-mcp disable "Local Tool"
  plural-mcp serve                          # Accept status reports
  plural-mcp status <id> connected          # Report a status to serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Reduce logging to info level only")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default: <data dir>/mcp-servers.yaml)")
	rootCmd.PersistentFlags().StringVar(&settingsBackend, "backend", "", "Settings backend: yaml or sqlite (default: from file extension)")
	rootCmd.PersistentFlags().StringVar(&statusSocketPath, "socket", "", "Status socket path (default: <state dir>/mcp-status.sock)")

	// Command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: "servers", Title: "Server Commands:"},
		&cobra.Group{ID: "status", Title: "Status Commands:"},
	)

	// Hide the auto-generated completion command
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

func initConfig() {
	if quietMode {
		logger.SetDebug(false)
	} else {
		logger.SetDebug(true)
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())
	return rootCmd.Execute()
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("plural-mcp %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("plural-mcp %s\n", version)
}
