package app

import (
	"context"
	"fmt"
	"log/slog"

	membershipApp "github.com/felixgeelhaar/donora/internal/membership/application"
	membershipDomain "github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/felixgeelhaar/donora/internal/membership/infrastructure/api"
	"github.com/felixgeelhaar/donora/internal/membership/infrastructure/cache"
	"github.com/felixgeelhaar/donora/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/donora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/donora/pkg/config"
	"github.com/felixgeelhaar/donora/pkg/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Infrastructure
	APIClient      *api.Client
	RedisClient    *redis.Client
	Cache          membershipDomain.MembershipCache
	EventPublisher eventbus.Publisher
	EventBus       *eventbus.InProcessBus

	// Membership
	Session           *membershipApp.Session
	Inbox             *membershipApp.Inbox
	MembershipService *membershipApp.Service
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	navigator membershipApp.Navigator
}

// WithNavigator sets where checkout URLs are handed off.
func WithNavigator(n membershipApp.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// NewContainer creates a new dependency container. Redis and RabbitMQ are
// optional in development; a failure to reach them falls back to the
// in-memory cache and in-process bus.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid DONORA_USER_ID: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
		Session: membershipApp.NewSession(),
		Inbox:   membershipApp.NewInbox(),
	}
	c.Session.Start(userID, cfg.APIToken)

	failures, err := convert.IntToUint32(cfg.BreakerFailures)
	if err != nil {
		return nil, fmt.Errorf("invalid DONORA_BREAKER_FAILURES: %w", err)
	}
	c.APIClient, err = api.NewClient(api.Options{
		BaseURL:         cfg.APIURL,
		Timeout:         cfg.APITimeout,
		BreakerFailures: failures,
		BreakerTimeout:  cfg.BreakerTimeout,
		Token:           c.Session.AccessToken,
		Metrics:         c.Metrics,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	c.Health.Register("api", observability.PingChecker("membership api", observability.HealthStatusUnhealthy, c.APIClient.Ping))

	if err := c.setupCache(ctx); err != nil {
		return nil, err
	}
	if err := c.setupEvents(); err != nil {
		c.Close()
		return nil, err
	}

	navigator := o.navigator
	if navigator == nil {
		navigator = membershipApp.NavigatorFunc(func(ctx context.Context, url string) error {
			logger.InfoContext(ctx, "checkout ready", "url", url)
			return nil
		})
	}

	c.MembershipService = membershipApp.NewService(membershipApp.Deps{
		Session:     c.Session,
		Catalog:     c.APIClient,
		Memberships: c.APIClient,
		Checkout:    c.APIClient,
		Lifecycle:   c.APIClient,
		Cache:       c.Cache,
		Notifier:    c.Inbox,
		Navigator:   navigator,
		Publisher:   c.EventPublisher,
		Metrics:     c.Metrics,
		Logger:      logger,
	}, membershipApp.Options{
		SuccessURL:     cfg.CheckoutSuccessURL,
		CancelURL:      cfg.CheckoutCancelURL,
		SupportContact: cfg.SupportContact,
		CacheTTL:       cfg.MembershipCacheTTL,
	})

	logger.Debug("container ready",
		"api_url", cfg.APIURL,
		"redis", c.RedisClient != nil,
		"rabbitmq", c.EventBus == nil,
	)
	return c, nil
}

func (c *Container) setupCache(ctx context.Context) error {
	cfg, logger := c.Config, c.Logger
	c.Cache = cache.NewMemoryCache()
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		logger.Warn("invalid Redis URL, using in-memory membership cache", "error", err)
		return nil
	}
	redisClient := redis.NewClient(opt)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Warn("Redis not available, using in-memory membership cache", "error", err)
		return nil
	}

	c.RedisClient = redisClient
	redisCache := cache.NewRedisCache(redisClient)
	c.Cache = redisCache
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, redisCache.Ping))
	logger.Info("connected to Redis")
	return nil
}

func (c *Container) setupEvents() error {
	cfg, logger := c.Config, c.Logger
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		switch {
		case err == nil:
			c.EventPublisher = publisher
			c.Health.Register("rabbitmq", observability.PingChecker("rabbitmq", observability.HealthStatusDegraded, publisher.Healthy))
			logger.Info("connected to RabbitMQ")
			return nil
		case !cfg.IsDevelopment():
			return err
		default:
			logger.Warn("RabbitMQ not available, using in-process event bus", "error", err)
		}
	}

	bus := eventbus.NewInProcessBus(logger)
	bus.RegisterConsumer(membershipApp.NewAuditConsumer(logger))
	c.EventBus = bus
	c.EventPublisher = bus
	return nil
}

// Close releases the broker and cache connections.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}
}
