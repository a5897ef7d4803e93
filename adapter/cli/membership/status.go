package membership

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/donora/adapter/cli"
	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/spf13/cobra"
)

const dateLayout = "Jan 2, 2006"

var statusRefresh bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show your current membership",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}

		read := app.MembershipService.CurrentMembership
		if statusRefresh {
			read = app.MembershipService.Refresh
		}
		m, err := read(cmd.Context())
		if err != nil {
			return report(cmd, app, err)
		}

		printMembership(cmd.OutOrStdout(), m)
		return report(cmd, app, nil)
	},
}

func printMembership(w io.Writer, m *domain.Membership) {
	if m == nil {
		fmt.Fprintln(w, "No membership. Run `donora plans` to choose one.")
		return
	}
	fmt.Fprintf(w, "Plan:   %s\n", m.PlanID)
	fmt.Fprintf(w, "Status: %s\n", lifecycleLabel(m.Lifecycle()))
	if cli.Verbose() {
		fmt.Fprintf(w, "ID:     %s (server status %s)\n", m.ID, m.Status)
	}
	if !m.CurrentPeriodEnd.IsZero() {
		if m.CurrentPeriodStart.IsZero() {
			fmt.Fprintf(w, "Period: until %s\n", m.CurrentPeriodEnd.Format(dateLayout))
		} else {
			fmt.Fprintf(w, "Period: %s to %s\n", m.CurrentPeriodStart.Format(dateLayout), m.CurrentPeriodEnd.Format(dateLayout))
		}
	}
	if m.CancelAtPeriodEnd {
		fmt.Fprintln(w, "Cancels at the end of the period. Run `donora membership reactivate` to keep it.")
	}
	if m.CancelledAt != nil {
		fmt.Fprintf(w, "Cancelled: %s\n", m.CancelledAt.Format(dateLayout))
	}
}

func lifecycleLabel(l domain.Lifecycle) string {
	switch l {
	case domain.LifecycleActive:
		return "active"
	case domain.LifecyclePendingCancel:
		return "active (cancellation scheduled)"
	case domain.LifecycleCancelled:
		return "cancelled"
	case domain.LifecycleInactive:
		return "inactive"
	default:
		return "none"
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusRefresh, "refresh", false, "bypass the cache and read from the platform")
}
