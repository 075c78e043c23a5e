package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/draft"
	"github.com/zhubert/plural-mcp/internal/model"
)

var editFlags serverFlags

var editCmd = &cobra.Command{
	Use:     "edit <id|name>",
	Short:   "Edit an MCP server",
	GroupID: "servers",
	Long: `Edits the name, description or command line of an MCP server.
Only the flags you pass are changed. The status is never changed by an edit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var changes []fieldChange
		if cmd.Flags().Changed("name") {
			changes = append(changes, fieldChange{model.FieldName, editFlags.name})
		}
		if cmd.Flags().Changed("description") {
			changes = append(changes, fieldChange{model.FieldDescription, editFlags.description})
		}
		if cmd.Flags().Changed("command") {
			changes = append(changes, fieldChange{model.FieldCommandLine, editFlags.commandLine})
		}
		return runEditWithIO(cmd.OutOrStdout(), args[0], changes)
	},
}

// fieldChange is a single requested edit.
type fieldChange struct {
	field model.Field
	value any
}

func init() {
	editCmd.Flags().StringVar(&editFlags.name, "name", "", "New display name")
	editCmd.Flags().StringVar(&editFlags.description, "description", "", "New description")
	editCmd.Flags().StringVar(&editFlags.commandLine, "command", "", "New command line")
	rootCmd.AddCommand(editCmd)
}

func runEditWithIO(w io.Writer, ref string, changes []fieldChange) error {
	if len(changes) == 0 {
		return fmt.Errorf("nothing to change; pass --name, --description or --command")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	existing, err := resolveServer(a.cfg, ref)
	if err != nil {
		return err
	}

	s := draft.NewSession(draft.WithValidator(draft.RequireName))
	if _, err := s.StartEdit(*existing); err != nil {
		return err
	}
	for _, c := range changes {
		if _, err := s.Mutate(c.field, c.value); err != nil {
			s.Cancel()
			return err
		}
	}
	if err := s.Commit(a.cfg); err != nil {
		s.Cancel()
		return err
	}
	if err := a.err(); err != nil {
		return err
	}

	updated := a.cfg.Get(existing.ID)
	a.log.Info("mcp server updated", "id", updated.ID, "changes", len(changes))
	fmt.Fprintf(w, "Updated %s (%s)\n", updated.Name, updated.ID)
	return nil
}
