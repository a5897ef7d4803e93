package membership

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/spf13/cobra"
)

var subscribeYes bool

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <plan-id>",
	Short: "Subscribe to a plan or switch to it",
	Long: `Start a checkout for a plan.

If you already hold a different active plan you are asked to confirm the
switch before anything is sent to the platform. Declining leaves your
membership unchanged.

Examples:
  donora membership subscribe gold-monthly
  donora membership subscribe gold-annual --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := service(cmd)
		if !ok {
			return nil
		}
		ctx := cmd.Context()
		svc := app.MembershipService

		outcome, err := svc.AttemptSubscribe(ctx, args[0])
		if err != nil {
			return report(cmd, app, err)
		}

		switch outcome.Decision {
		case domain.DecisionAlreadySubscribed:
			return report(cmd, app, nil)

		case domain.DecisionConfirmSwitch:
			if err := report(cmd, app, nil); err != nil {
				return err
			}
			if !subscribeYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Switch plans? [y/N] ") {
				svc.AbandonSwitch(ctx)
				return report(cmd, app, nil)
			}
			outcome, err = svc.ConfirmSwitch(ctx, outcome.Plan.ID)
			if err != nil {
				return report(cmd, app, err)
			}
		}

		printCheckout(cmd.OutOrStdout(), outcome)
		return report(cmd, app, nil)
	},
}

func printCheckout(out io.Writer, outcome *membershipApp.SubscribeOutcome) {
	fmt.Fprintf(out, "Checkout for %s (%s):\n", outcome.Plan.Label(), outcome.Plan.Amount)
	fmt.Fprintf(out, "  %s\n", outcome.CheckoutURL)
	if outcome.SessionID != "" {
		fmt.Fprintf(out, "After paying, run: donora membership verify %s\n", outcome.SessionID)
	}
}

// confirm reads a yes/no answer. Anything but y or yes declines.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func init() {
	subscribeCmd.Flags().BoolVarP(&subscribeYes, "yes", "y", false, "confirm a plan switch without prompting")
}
