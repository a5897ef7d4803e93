package membership

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/spf13/cobra"
)

var (
	planTier  string
	planCycle string
	planAll   bool
)

// PlansCmd lists the catalog. It is registered at the top level.
var PlansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List membership plans",
	Long: `List the membership plans offered by the platform.

Examples:
  donora plans                    # Active plans
  donora plans --tier gold        # Gold plans only
  donora plans --cycle annual     # Annual billing only
  donora plans --all              # Include retired plans`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}

		filter := domain.PlanFilter{IncludeInactive: planAll}
		if planTier != "" {
			tier, err := domain.ParseTier(planTier)
			if err != nil {
				return err
			}
			filter.Tier = tier
		}
		if planCycle != "" {
			cycle, err := domain.ParseBillingCycle(planCycle)
			if err != nil {
				return err
			}
			filter.BillingCycle = cycle
		}

		plans, err := app.MembershipService.Plans(cmd.Context(), filter)
		if err != nil {
			return report(cmd, app, err)
		}
		out := cmd.OutOrStdout()
		if len(plans) == 0 {
			fmt.Fprintln(out, "No plans found.")
			return report(cmd, app, nil)
		}

		fmt.Fprintf(out, "Plans (%d):\n", len(plans))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, p := range plans {
			marker := ""
			if !p.IsActive {
				marker = " [RETIRED]"
			}
			fmt.Fprintf(out, "%s  %s%s\n", p.Label(), p.Amount, marker)
			fmt.Fprintf(out, "   ID: %s\n", p.ID)
			fmt.Fprintf(out, "   Tier: %s\n", p.Tier)
			for _, b := range p.Benefits {
				fmt.Fprintf(out, "   - %s\n", b)
			}
			fmt.Fprintln(out)
		}
		return report(cmd, app, nil)
	},
}

func init() {
	PlansCmd.Flags().StringVar(&planTier, "tier", "", "filter by tier (bronze, silver, gold, platinum)")
	PlansCmd.Flags().StringVar(&planCycle, "cycle", "", "filter by billing cycle (monthly, annual)")
	PlansCmd.Flags().BoolVarP(&planAll, "all", "a", false, "include plans no longer offered")
}
