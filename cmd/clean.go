package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/settings"
)

var cleanSkipConfirm bool

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Short:   "Remove the settings lock and status socket",
	GroupID: "status",
	Long: `Removes the settings owner lock and the status socket.

This is useful when a lock file or socket is left behind after 'serve'
exited uncleanly. The settings themselves are never touched.

It will prompt for confirmation before proceeding unless the --yes flag is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCleanWithIO(os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanSkipConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}

func runCleanWithIO(input io.Reader, w io.Writer) error {
	path, _, err := resolveSettings()
	if err != nil {
		return err
	}

	var targets []string
	for _, p := range []string{settings.LockFilePath(path), resolveSocketPath()} {
		if _, err := os.Lstat(p); err == nil {
			targets = append(targets, p)
		}
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "Nothing to clean.")
		return nil
	}

	fmt.Fprintln(w, "This will remove:")
	for _, p := range targets {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Warning: these files indicate 'plural-mcp serve' may be running.")

	if !cleanSkipConfirm {
		if !confirm(input, w, "Continue?") {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	removed := 0
	for _, p := range targets {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: error removing %s: %v\n", p, err)
			continue
		}
		removed++
	}

	fmt.Fprintf(w, "\nCleaned: %d file(s) removed\n", removed)
	return nil
}
