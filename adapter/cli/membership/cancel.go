package membership

import (
	"github.com/spf13/cobra"
)

var cancelNow bool

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel your membership",
	Long: `Cancel your membership.

By default the membership stays active until the end of the current billing
period and can be reactivated until then. Use --now to end it immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}

		m, err := app.MembershipService.CancelMembership(cmd.Context(), !cancelNow)
		if err != nil {
			return report(cmd, app, err)
		}
		printMembership(cmd.OutOrStdout(), m)
		return report(cmd, app, nil)
	},
}

var reactivateCmd = &cobra.Command{
	Use:   "reactivate",
	Short: "Undo a scheduled cancellation",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}

		m, err := app.MembershipService.ReactivateMembership(cmd.Context())
		if err != nil {
			return report(cmd, app, err)
		}
		printMembership(cmd.OutOrStdout(), m)
		return report(cmd, app, nil)
	},
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelNow, "now", false, "end the membership immediately instead of at period end")
}
