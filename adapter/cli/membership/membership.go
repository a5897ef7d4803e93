// Package membership holds the membership lifecycle commands.
package membership

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/donora/adapter/cli"
	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/spf13/cobra"
)

const notConfigured = "Membership commands require a configured platform API connection."

// Cmd is the membership command group.
var Cmd = &cobra.Command{
	Use:     "membership",
	Aliases: []string{"m"},
	Short:   "Manage your membership",
	Long:    `Show, subscribe to, switch, cancel and reactivate your membership.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(subscribeCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(reactivateCmd)
	Cmd.AddCommand(verifyCmd)
}

// userError shows only the user message while keeping the classified
// error available to errors.Is.
type userError struct{ err error }

func (e userError) Error() string { return domain.UserMessage(e.err) }
func (e userError) Unwrap() error { return e.err }

func service(cmd *cobra.Command) (*cli.App, bool) {
	app := cli.GetApp()
	if app == nil || app.MembershipService == nil {
		fmt.Fprintln(cmd.OutOrStdout(), notConfigured)
		return nil, false
	}
	return app, true
}

// report prints the notifications produced by the last operation. The
// notification that mirrors err is skipped since cobra prints err itself.
func report(cmd *cobra.Command, app *cli.App, err error) error {
	if app.Inbox != nil {
		var skip string
		if err != nil {
			skip = domain.UserMessage(err)
		}
		printNotifications(cmd.OutOrStdout(), app.Inbox.Drain(), skip)
	}
	if err != nil {
		return userError{err: err}
	}
	return nil
}

func printNotifications(w io.Writer, notes []membershipApp.Notification, skip string) {
	for _, n := range notes {
		if skip != "" && n.Message == skip && (n.Level == membershipApp.LevelError || n.Level == membershipApp.LevelWarning) {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", levelMarker(n.Level), n.Message)
	}
}

func levelMarker(level membershipApp.Level) string {
	switch level {
	case membershipApp.LevelSuccess:
		return "[ok]"
	case membershipApp.LevelWarning:
		return "[!]"
	case membershipApp.LevelError:
		return "[x]"
	default:
		return "[i]"
	}
}
