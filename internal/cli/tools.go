package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the MCP tools with their schemas",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runTools(cmd *cobra.Command, args []string) error {
	srv, err := newServer(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	tools, err := srv.Tools(cmd.Context())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"tools": tools}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
