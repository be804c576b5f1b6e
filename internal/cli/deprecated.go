package cli

import (
	"github.com/spf13/cobra"

	"github.com/depstale/depstale/pkg/enrich"
)

// deprecatedCommand creates the "deprecated" command: list dependencies
// whose installed version the registry marks as deprecated.
func (c *CLI) deprecatedCommand() *cobra.Command {
	var production bool

	cmd := &cobra.Command{
		Use:   "deprecated",
		Short: "List deprecated dependencies",
		Long: `List dependencies whose installed version carries a deprecation marker in
the npm registry.

Examples:
  depstale deprecated                   # all deprecated dependencies
  depstale deprecated --production      # ignore devDependencies
  depstale deprecated --path ./backend  # audit another directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAudit(cmd.Context(), cmd.OutOrStdout(), viewDeprecated, enrich.FilterOptions{
				ProductionOnly: production,
				DeprecatedOnly: true,
			})
		},
	}

	cmd.Flags().BoolVar(&production, "production", false, "ignore devDependencies")

	return cmd
}
