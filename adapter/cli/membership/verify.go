package membership

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <session-id>",
	Short: "Confirm a checkout after paying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}

		result, err := app.MembershipService.VerifyCheckout(cmd.Context(), args[0])
		if err != nil {
			return report(cmd, app, err)
		}
		printMembership(cmd.OutOrStdout(), result.Membership)
		return report(cmd, app, nil)
	},
}
