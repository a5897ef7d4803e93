package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/felixgeelhaar/mcp-go"
)

type healthResult struct {
	Status observability.HealthStatus                   `json:"status"`
	Checks map[string]observability.HealthCheckResult `json:"checks,omitempty"`
}

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Check connectivity to the platform API, cache and broker").
		Handler(func(ctx context.Context, input struct{}) (*healthResult, error) {
			if app == nil {
				return nil, errors.New("app not initialized")
			}
			if app.Health == nil {
				return &healthResult{Status: observability.HealthStatusHealthy}, nil
			}
			checks := app.Health.Check(ctx)
			return &healthResult{Status: observability.Overall(checks), Checks: checks}, nil
		})

	return nil
}
