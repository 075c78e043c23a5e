package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/config"
)

var removeSkipConfirm bool

var removeCmd = &cobra.Command{
	Use:     "remove <id|name>",
	Aliases: []string{"rm"},
	Short:   "Remove an MCP server",
	GroupID: "servers",
	Long: `Removes an MCP server from the settings. Removing a server that does
not exist is not an error.

It will prompt for confirmation before proceeding unless the --yes flag is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemoveWithIO(os.Stdin, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeSkipConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}

func runRemoveWithIO(input io.Reader, w io.Writer, ref string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveServer(a.cfg, ref)
	if errors.Is(err, config.ErrNotFound) {
		fmt.Fprintf(w, "No MCP server matches %q; nothing removed.\n", ref)
		return nil
	}
	if err != nil {
		return err
	}

	if !removeSkipConfirm {
		if !confirm(input, w, fmt.Sprintf("Remove %s (%s)?", s.Name, s.ID)) {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	a.cfg.Remove(s.ID)
	if err := a.err(); err != nil {
		return err
	}
	a.log.Info("mcp server removed", "id", s.ID)
	fmt.Fprintf(w, "Removed %s (%s)\n", s.Name, s.ID)
	return nil
}
