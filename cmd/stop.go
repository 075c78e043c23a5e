package cmd

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/settings"
)

// signalProcessFunc is injectable for testing.
var signalProcessFunc = signalProcess

var stopCmd = &cobra.Command{
	Use:     "stop",
	Short:   "Stop a running serve gracefully",
	GroupID: "status",
	Long: `Send SIGTERM to the 'plural-mcp serve' process that owns the settings.

serve applies the status reports it has already accepted, saves the
settings and exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStopWithIO(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStopWithIO(w io.Writer) error {
	path, _, err := resolveSettings()
	if err != nil {
		return err
	}

	pid, running := settings.ReadLockStatus(path)
	switch {
	case pid != 0 && running:
		if err := signalProcessFunc(pid); err != nil {
			return err
		}
		fmt.Fprintf(w, "Sent SIGTERM to serve (PID %d)\n", pid)
	case pid != 0:
		fmt.Fprintf(w, "Lock file has stale PID %d (process dead), cleaning up\n", pid)
		if err := os.Remove(settings.LockFilePath(path)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	default:
		fmt.Fprintln(w, "serve is not running")
	}
	return nil
}

// signalProcess sends SIGTERM to the given PID.
func signalProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to PID %d: %w", pid, err)
	}
	return nil
}
