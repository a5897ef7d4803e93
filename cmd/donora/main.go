package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/donora/adapter/cli"
	"github.com/felixgeelhaar/donora/adapter/cli/mcp"
	"github.com/felixgeelhaar/donora/adapter/cli/membership"
	"github.com/felixgeelhaar/donora/internal/app"
	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	"github.com/felixgeelhaar/donora/pkg/config"
	"github.com/felixgeelhaar/donora/pkg/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}

	logger := observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version)
	cli.SetLogger(logger)

	// The checkout URL is printed by the subscribe command itself.
	navigator := membershipApp.NavigatorFunc(func(ctx context.Context, url string) error {
		logger.DebugContext(ctx, "checkout session created", "url", url)
		return nil
	})

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger, app.WithNavigator(navigator))
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// Limited mode: commands that need the platform report it.
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()

		cliApp = cli.NewApp(container.MembershipService, container.Inbox, container.Health)
		if userID, ok := container.Session.UserID(); ok {
			cliApp.SetCurrentUserID(userID)
		}
	}

	cli.SetApp(cliApp)

	cli.AddCommand(membership.Cmd)
	cli.AddCommand(membership.PlansCmd)
	cli.AddCommand(mcp.Cmd)

	cli.Execute(ctx)
}
