package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	var output strings.Builder
	versionCmd.SetOut(&output)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, output.String(), "donora dev")
	assert.Contains(t, output.String(), "commit: none")
}

func TestHealthCmd_NoApp(t *testing.T) {
	SetApp(nil)
	healthCmd.SetContext(context.Background())

	err := healthCmd.RunE(healthCmd, nil)
	assert.EqualError(t, err, "app not initialized")
}

func TestHealthCmd_ReportsEachCheck(t *testing.T) {
	registry := observability.NewHealthRegistry()
	registry.Register("api", observability.PingChecker("membership api", observability.HealthStatusUnhealthy,
		func(context.Context) error { return nil }))
	registry.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded,
		func(context.Context) error { return errors.New("connection refused") }))

	SetApp(NewApp(nil, nil, registry))
	defer SetApp(nil)

	var output strings.Builder
	healthCmd.SetContext(context.Background())
	healthCmd.SetOut(&output)

	require.NoError(t, healthCmd.RunE(healthCmd, nil))
	assert.Contains(t, output.String(), "membership api reachable")
	assert.Contains(t, output.String(), "redis check failed: connection refused")
	assert.Contains(t, output.String(), "overall: degraded")
}

func TestHealthCmd_UnhealthyFails(t *testing.T) {
	registry := observability.NewHealthRegistry()
	registry.Register("api", observability.PingChecker("membership api", observability.HealthStatusUnhealthy,
		func(context.Context) error { return errors.New("timeout") }))

	SetApp(NewApp(nil, nil, registry))
	defer SetApp(nil)

	var output strings.Builder
	healthCmd.SetContext(context.Background())
	healthCmd.SetOut(&output)

	assert.Error(t, healthCmd.RunE(healthCmd, nil))
	assert.Contains(t, output.String(), "overall: unhealthy")
}

func TestRootCmd_AttachesCorrelationID(t *testing.T) {
	cmd := Root()
	cmd.SetContext(context.Background())
	cmd.PersistentPreRun(cmd, nil)

	assert.NotEmpty(t, observability.CorrelationIDFromContext(cmd.Context()))
	cmd.PersistentPostRun(cmd, nil)
}
