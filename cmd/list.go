package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-mcp/internal/model"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured MCP servers",
	GroupID: "servers",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListWithIO(cmd.OutOrStdout())
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id|name>",
	Short:   "Show one MCP server",
	GroupID: "servers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShowWithIO(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the servers as JSON")
	showCmd.Flags().BoolVar(&listJSON, "json", false, "Print the server as JSON")
	rootCmd.AddCommand(listCmd, showCmd)
}

func runListWithIO(w io.Writer) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	servers := a.cfg.List()
	if listJSON {
		return writeJSON(w, servers)
	}
	if len(servers) == 0 {
		fmt.Fprintln(w, "No MCP servers configured. Add one with 'plural-mcp add'.")
		return nil
	}
	printServerTable(w, servers)
	return nil
}

func runShowWithIO(w io.Writer, ref string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveServer(a.cfg, ref)
	if err != nil {
		return err
	}
	if listJSON {
		return writeJSON(w, s)
	}
	printServer(w, *s)
	return nil
}

func printServerTable(w io.Writer, servers []model.MCPServer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tSTATUS\tCOMMAND")
	for _, s := range servers {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(s.ID), name, yesNo(s.Enabled), s.Status, s.CommandLine)
	}
	tw.Flush()
}

func printServer(w io.Writer, s model.MCPServer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	fmt.Fprintf(tw, "Description:\t%s\n", s.Description)
	fmt.Fprintf(tw, "Command:\t%s\n", s.CommandLine)
	fmt.Fprintf(tw, "Enabled:\t%s\n", yesNo(s.Enabled))
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
