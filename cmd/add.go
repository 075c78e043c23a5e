package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/draft"
	"github.com/zhubert/plural-mcp/internal/model"
)

// serverFlags holds the editable fields given on the command line.
type serverFlags struct {
	name        string
	description string
	commandLine string
	disabled    bool
}

var addFlags serverFlags

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add an MCP server",
	GroupID: "servers",
	Long: `Adds a new MCP server. The server gets a fresh ID, starts enabled
(unless --disabled) and with status "connecting".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAddWithIO(cmd.OutOrStdout(), addFlags)
	},
}

func init() {
	addCmd.Flags().StringVar(&addFlags.name, "name", "", "Display name (required)")
	addCmd.Flags().StringVar(&addFlags.description, "description", "", "Free-form description")
	addCmd.Flags().StringVar(&addFlags.commandLine, "command", "", "Command line used to launch the server")
	addCmd.Flags().BoolVar(&addFlags.disabled, "disabled", false, "Add the server disabled")
	rootCmd.AddCommand(addCmd)
}

func runAddWithIO(w io.Writer, f serverFlags) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s := draft.NewSession(draft.WithValidator(draft.RequireName))
	if _, err := s.StartCreate(); err != nil {
		return err
	}
	edits := []struct {
		field model.Field
		value any
	}{
		{model.FieldName, f.name},
		{model.FieldDescription, f.description},
		{model.FieldCommandLine, f.commandLine},
		{model.FieldEnabled, !f.disabled},
	}
	for _, e := range edits {
		if _, err := s.Mutate(e.field, e.value); err != nil {
			s.Cancel()
			return err
		}
	}

	d, _ := s.Current()
	if err := s.Commit(a.cfg); err != nil {
		s.Cancel()
		return err
	}
	if err := a.err(); err != nil {
		return err
	}

	a.log.Info("mcp server added", "id", d.ID, "name", d.Name)
	fmt.Fprintf(w, "Added %s (%s)\n", d.Name, d.ID)
	return nil
}
