package cmd

import (
	"github.com/agentic-research/sitegraph/internal/agent"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the render engine as MCP tools over stdio",
	Long: `Serve the tools render_schemas, list_schema_types and list_rule_options
over the Model Context Protocol on stdin and stdout. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cfg, log, true)
		if err != nil {
			return err
		}
		defer func() { _ = e.Close() }()
		return agent.New(e, Version, log).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
