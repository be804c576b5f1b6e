package cli

import (
	"github.com/spf13/cobra"

	"github.com/depstale/depstale/pkg/enrich"
)

// oldCommand creates the "old" command: list dependencies whose installed
// version is older than the --since threshold.
func (c *CLI) oldCommand() *cobra.Command {
	var (
		since      float64
		production bool
	)

	cmd := &cobra.Command{
		Use:   "old",
		Short: "List dependencies older than a given age",
		Long: `List dependencies whose installed version was published more than --since
years ago, according to npm registry publish timestamps.

Examples:
  depstale old                      # dependencies at least 4 years old
  depstale old --since 2            # lower the threshold to 2 years
  depstale old --production         # ignore devDependencies
  depstale old --path ./frontend    # audit another directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("since") && c.cfg.Run.SinceYears > 0 {
				since = c.cfg.Run.SinceYears
			}
			return c.runAudit(cmd.Context(), cmd.OutOrStdout(), viewOld, enrich.FilterOptions{
				ProductionOnly:  production,
				RequireResolved: true,
				SinceYears:      since,
			})
		},
	}

	cmd.Flags().Float64VarP(&since, "since", "s", enrich.DefaultSinceYears, "age threshold in years")
	cmd.Flags().BoolVar(&production, "production", false, "ignore devDependencies")

	return cmd
}
