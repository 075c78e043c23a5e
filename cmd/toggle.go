package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/draft"
)

var enableCmd = &cobra.Command{
	Use:     "enable <id|name>",
	Short:   "Enable an MCP server",
	GroupID: "servers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabledWithIO(cmd.OutOrStdout(), args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:     "disable <id|name>",
	Short:   "Disable an MCP server",
	GroupID: "servers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabledWithIO(cmd.OutOrStdout(), args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd, disableCmd)
}

func runSetEnabledWithIO(w io.Writer, ref string, enabled bool) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveServer(a.cfg, ref)
	if err != nil {
		return err
	}
	if err := draft.SetEnabled(a.cfg, s.ID, enabled); err != nil {
		return err
	}
	if err := a.err(); err != nil {
		return err
	}

	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	a.log.Debug("mcp server toggled", "id", s.ID, "enabled", enabled)
	fmt.Fprintf(w, "%s %s (%s)\n", verb, s.Name, s.ID)
	return nil
}
