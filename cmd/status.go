package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/mcp"
	"github.com/zhubert/plural-mcp/internal/model"
)

var statusCmd = &cobra.Command{
	Use:     "status <id> <connecting|connected|error|disconnected>",
	Short:   "Report a server's connection status to serve",
	GroupID: "status",
	Long: `Sends a connection status report to a running 'plural-mcp serve'.
This is the entry point for process supervisors.

Allowed transitions:
  connecting   -> connected, error
  connected    -> error, disconnected
  error        -> connecting
  disconnected -> connecting

Reports for unknown servers are accepted and ignored. Reports that skip a
transition are rejected by serve and logged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusWithIO(cmd.OutOrStdout(), resolveSocketPath(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusWithIO(w io.Writer, socketPath, id, value string) error {
	status, err := model.ParseStatus(value)
	if err != nil {
		return err
	}

	client, err := mcp.NewSocketClient(socketPath)
	if err != nil {
		return fmt.Errorf("cannot reach status socket %s (is 'plural-mcp serve' running?): %w", socketPath, err)
	}
	defer client.Close()

	if err := client.SendStatus(id, status); err != nil {
		return err
	}
	fmt.Fprintf(w, "Reported %s for %s\n", status, id)
	return nil
}
