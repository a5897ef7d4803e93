package mcp

import (
	"github.com/felixgeelhaar/donora/adapter/cli"
	"github.com/felixgeelhaar/donora/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container) *cli.App {
	cliApp := cli.NewApp(container.MembershipService, container.Inbox, container.Health)
	if userID, ok := container.Session.UserID(); ok {
		cliApp.SetCurrentUserID(userID)
	}
	return cliApp
}
