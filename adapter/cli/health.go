package cli

import (
	"fmt"

	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the platform API, cache and broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Health == nil {
			return fmt.Errorf("app not initialized")
		}

		out := cmd.OutOrStdout()
		results := app.Health.Check(cmd.Context())
		for _, name := range app.Health.Names() {
			r := results[name]
			fmt.Fprintf(out, "%-10s %-10s %s (%dms)\n", name, r.Status, r.Message, r.Duration.Milliseconds())
		}

		overall := observability.Overall(results)
		fmt.Fprintf(out, "overall: %s\n", overall)
		if overall == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
