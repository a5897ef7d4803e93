package cli

import (
	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	MembershipService *membershipApp.Service
	Inbox             *membershipApp.Inbox
	Health            *observability.HealthRegistry

	// Current user (configured per environment)
	CurrentUserID uuid.UUID
}

// NewApp creates a new CLI application.
func NewApp(service *membershipApp.Service, inbox *membershipApp.Inbox, health *observability.HealthRegistry) *App {
	return &App{
		MembershipService: service,
		Inbox:             inbox,
		Health:            health,
	}
}

// SetCurrentUserID sets the current user ID.
func (a *App) SetCurrentUserID(id uuid.UUID) {
	a.CurrentUserID = id
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
