package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/services"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/subscribers"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/application/workers"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/catalog"
	"github.com/felixgeelhaar/screenpass/pkg/config"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   sharedApplication.Clock
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis, nil when the plan cache is disabled.
	RedisClient *redis.Client

	// Repositories and collaborators
	SubscriptionRepo domain.SubscriptionRepository
	PaymentRepo      domain.PaymentRepository
	HistoryRepo      domain.HistoryRepository
	Users            domain.UserDirectory
	Plans            domain.PlanCatalog
	FreshPlans       domain.PlanCatalog
	Contents         domain.ContentCatalog
	OutboxRepo       outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Event delivery. InProcessEventBus is set when no broker is used.
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus
	HistorySubscriber *subscribers.HistorySubscriber
	OutboxProcessor   *outbox.Processor

	// Services
	Reconciler      *services.Reconciler
	EntitlementGate *services.EntitlementGate
	ReconcileWorker *workers.ReconcileWorker

	// Subscription command handlers
	CreateSubscriptionHandler      *commands.CreateSubscriptionHandler
	ActivateSubscriptionHandler    *commands.ActivateSubscriptionHandler
	AdminUpdateSubscriptionHandler *commands.AdminUpdateSubscriptionHandler
	SelfUpdateSubscriptionHandler  *commands.SelfUpdateSubscriptionHandler
	CancelSubscriptionHandler      *commands.CancelSubscriptionHandler
	DeleteSubscriptionHandler      *commands.DeleteSubscriptionHandler

	// Payment command handlers
	RecordPaymentHandler       *commands.RecordPaymentHandler
	UpdatePaymentStatusHandler *commands.UpdatePaymentStatusHandler

	// Query handlers
	GetSubscriptionHandler     *queries.GetSubscriptionHandler
	ListSubscriptionsHandler   *queries.ListSubscriptionsHandler
	MySubscriptionsHandler     *queries.MySubscriptionsHandler
	SubscriptionHistoryHandler *queries.SubscriptionHistoryHandler
	ListActivePlansHandler     *queries.ListActivePlansHandler
	MyPlanHandler              *queries.MyPlanHandler
	PaymentsHandler            *queries.PaymentsHandler

	historyConsumer *eventbus.RabbitMQConsumer
	background      sync.WaitGroup
	closeOnce       sync.Once
}

// NewContainer wires the application for cfg. An empty DATABASE_URL
// selects the local SQLite store, which is migrated on open. Redis and
// RabbitMQ are optional; in development a broken broker or cache falls
// back to in-process delivery or uncached plan reads.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Clock:   sharedApplication.SystemClock{},
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(2 * time.Second),
	}

	if err := c.connectDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRepositories(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEventDelivery(); err != nil {
		c.Close()
		return nil, err
	}
	c.initHandlers()
	c.registerProbes()

	logger.Info("container ready",
		"driver", c.DBDriver,
		"plan_cache", c.RedisClient != nil,
		"broker", c.InProcessEventBus == nil,
	)
	return c, nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	conn, err := database.NewConnection(ctx, database.Config{
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
		MaxConns:   c.Config.DatabaseMaxConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()

	if c.DBDriver == database.DriverSQLite {
		sqliteConn, ok := conn.(interface{ DB() *sql.DB })
		if !ok {
			_ = conn.Close()
			return fmt.Errorf("expected SQLite connection with DB() method, got %T", conn)
		}
		if err := migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c.Logger.Info("connected to database", "driver", c.DBDriver)
	return nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, plan cache disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, plan cache disabled", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initRepositories() error {
	cipher, err := c.fieldCipher()
	if err != nil {
		return err
	}
	factory := NewRepositoryFactory(c.DBConn, cipher)

	if c.SubscriptionRepo, err = factory.SubscriptionRepository(); err != nil {
		return fmt.Errorf("failed to create subscription repository: %w", err)
	}
	if c.PaymentRepo, err = factory.PaymentRepository(); err != nil {
		return fmt.Errorf("failed to create payment repository: %w", err)
	}
	if c.HistoryRepo, err = factory.HistoryRepository(); err != nil {
		return fmt.Errorf("failed to create history repository: %w", err)
	}
	if c.Users, err = factory.UserDirectory(); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}
	if c.Contents, err = factory.ContentCatalog(); err != nil {
		return fmt.Errorf("failed to create content catalog: %w", err)
	}
	if c.OutboxRepo, err = factory.OutboxRepository(); err != nil {
		return fmt.Errorf("failed to create outbox repository: %w", err)
	}

	plans, err := factory.PlanCatalog()
	if err != nil {
		return fmt.Errorf("failed to create plan catalog: %w", err)
	}
	// Reads may be served from the cache; renewal and writes use FreshPlans.
	c.Plans, c.FreshPlans = plans, plans
	if c.RedisClient != nil {
		cached := catalog.NewCachedPlanCatalog(plans, catalog.NewRedisPlanCache(c.RedisClient), catalog.CacheConfig{
			TTL:              c.Config.PlanCacheTTL,
			BreakerThreshold: convert.IntToUint32Clamped(c.Config.CacheBreakerThreshold),
		}, c.Metrics, c.Logger)
		c.Plans, c.FreshPlans = cached, cached.Fresh()
	}

	c.UnitOfWork = database.NewUnitOfWork(c.DBConn)
	return nil
}

// fieldCipher seals payment details when an encryption key is configured.
func (c *Container) fieldCipher() (*crypto.FieldCipher, error) {
	if c.Config.EncryptionKey == "" {
		if c.Config.IsProduction() {
			c.Logger.Warn("SCREENPASS_ENCRYPTION_KEY not set, payment details stored in plaintext")
		}
		return nil, nil
	}
	enc, err := crypto.NewAESGCMFromBase64Key(c.Config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid SCREENPASS_ENCRYPTION_KEY: %w", err)
	}
	return crypto.NewFieldCipher(enc), nil
}

func (c *Container) initEventDelivery() error {
	c.HistorySubscriber = subscribers.NewHistorySubscriber(c.HistoryRepo, c.Metrics, c.Logger)

	if c.Config.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
		switch {
		case err == nil:
			c.EventPublisher = publisher
		case c.Config.IsDevelopment():
			c.Logger.Warn("RabbitMQ not available, delivering events in process", "error", err)
		default:
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	}

	if c.EventPublisher == nil {
		bus := eventbus.NewInProcessEventBus(c.Logger)
		bus.RegisterConsumer(c.HistorySubscriber)
		c.InProcessEventBus = bus
		c.EventPublisher = bus
	}

	defaults := outbox.DefaultProcessorConfig()
	processorConfig := outbox.ProcessorConfig{
		PollInterval:     c.Config.OutboxPollInterval,
		BatchSize:        c.Config.OutboxBatchSize,
		MaxRetries:       c.Config.OutboxMaxRetries,
		RetryBackoffBase: defaults.RetryBackoffBase,
		RetryBackoffMax:  defaults.RetryBackoffMax,
		BreakerThreshold: defaults.BreakerThreshold,
		BreakerTimeout:   defaults.BreakerTimeout,
	}
	if processorConfig.PollInterval <= 0 {
		processorConfig.PollInterval = defaults.PollInterval
	}
	if processorConfig.BatchSize <= 0 {
		processorConfig.BatchSize = defaults.BatchSize
	}
	if processorConfig.MaxRetries <= 0 {
		processorConfig.MaxRetries = defaults.MaxRetries
	}
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, c.Logger,
		outbox.WithMetrics(c.Metrics),
		outbox.WithClock(c.Clock.Now),
	)
	return nil
}

func (c *Container) initHandlers() {
	lifetime := c.Config.SubscriptionBaseLifetime

	c.Reconciler = services.NewReconciler(c.SubscriptionRepo, c.FreshPlans, c.OutboxRepo, c.UnitOfWork, c.Metrics, c.Logger)
	c.EntitlementGate = services.NewEntitlementGate(c.Contents, c.SubscriptionRepo, c.Reconciler, c.Metrics, c.Logger)
	c.ReconcileWorker = workers.NewReconcileWorker(c.Reconciler, c.Clock, workers.ReconcileWorkerConfig{
		Interval: c.Config.ReconcileInterval,
	}, c.Logger)

	// Subscription command handlers
	c.CreateSubscriptionHandler = commands.NewCreateSubscriptionHandler(
		c.SubscriptionRepo, c.Users, c.FreshPlans, c.OutboxRepo, c.UnitOfWork, c.Reconciler, c.Clock, c.Metrics, lifetime)
	c.ActivateSubscriptionHandler = commands.NewActivateSubscriptionHandler(c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork, c.Clock)
	c.AdminUpdateSubscriptionHandler = commands.NewAdminUpdateSubscriptionHandler(
		c.SubscriptionRepo, c.Users, c.FreshPlans, c.OutboxRepo, c.UnitOfWork, c.Reconciler, c.Clock, c.Metrics, lifetime)
	c.SelfUpdateSubscriptionHandler = commands.NewSelfUpdateSubscriptionHandler(
		c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork, c.Reconciler, c.Clock, c.Metrics, lifetime)
	c.CancelSubscriptionHandler = commands.NewCancelSubscriptionHandler(
		c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork, c.Reconciler, c.Clock, c.Metrics)
	c.DeleteSubscriptionHandler = commands.NewDeleteSubscriptionHandler(
		c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork, c.Reconciler, c.Clock, c.Metrics)

	// Payment command handlers
	c.RecordPaymentHandler = commands.NewRecordPaymentHandler(
		c.SubscriptionRepo, c.PaymentRepo, c.OutboxRepo, c.UnitOfWork, c.ActivateSubscriptionHandler, c.Clock, c.Metrics)
	c.UpdatePaymentStatusHandler = commands.NewUpdatePaymentStatusHandler(
		c.PaymentRepo, c.OutboxRepo, c.UnitOfWork, c.ActivateSubscriptionHandler, c.Clock, c.Metrics)

	// Query handlers
	c.GetSubscriptionHandler = queries.NewGetSubscriptionHandler(
		c.SubscriptionRepo, c.Plans, c.PaymentRepo, c.Users, c.Reconciler, c.Clock)
	c.ListSubscriptionsHandler = queries.NewListSubscriptionsHandler(
		c.SubscriptionRepo, c.Plans, c.PaymentRepo, c.Users, c.Reconciler, c.Clock)
	c.MySubscriptionsHandler = queries.NewMySubscriptionsHandler(c.SubscriptionRepo, c.Plans, c.PaymentRepo, c.Reconciler, c.Clock)
	c.SubscriptionHistoryHandler = queries.NewSubscriptionHistoryHandler(c.SubscriptionRepo, c.HistoryRepo)
	c.ListActivePlansHandler = queries.NewListActivePlansHandler(c.Plans)
	c.MyPlanHandler = queries.NewMyPlanHandler(c.SubscriptionRepo, c.Plans, c.Reconciler, c.Clock)
	c.PaymentsHandler = queries.NewPaymentsHandler(c.PaymentRepo, c.SubscriptionRepo)
}

func (c *Container) registerProbes() {
	c.Health.Register("database", observability.PingProbe("database", observability.HealthStatusUnhealthy, c.DBConn.Ping))

	if c.RedisClient != nil {
		client := c.RedisClient
		c.Health.Register("redis", observability.PingProbe("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	if publisher, ok := c.EventPublisher.(*eventbus.RabbitMQPublisher); ok {
		c.Health.Register("rabbitmq", observability.PingProbe("rabbitmq", observability.HealthStatusDegraded, publisher.Ping))
	}

	c.Health.Register("outbox", observability.StatsProbe(func() map[string]any {
		stats := c.OutboxProcessor.GetStats()
		return map[string]any{
			"running":           stats.IsRunning,
			"published":         stats.PublishedCount,
			"failed":            stats.FailedCount,
			"dead":              stats.DeadCount,
			"lag_seconds":       stats.LagSeconds,
			"breaker":           stats.BreakerState,
			"last_processed_at": stats.LastProcessedAt,
			"last_error":        stats.LastError,
		}
	}))

	c.Health.Register("reconciler", observability.StatsProbe(func() map[string]any {
		stats := c.ReconcileWorker.Stats()
		return map[string]any{
			"running":     stats.Running,
			"runs":        stats.Runs,
			"failures":    stats.Failures,
			"last_run_at": stats.LastRunAt,
			"last_report": stats.LastReport,
			"last_error":  stats.LastError,
		}
	}))
}

// StartOutboxProcessor starts publishing outbox messages unless the
// processor is disabled by configuration.
func (c *Container) StartOutboxProcessor(ctx context.Context) error {
	if !c.Config.OutboxProcessorEnabled {
		c.Logger.Info("outbox processor disabled")
		return nil
	}
	return c.OutboxProcessor.Start(ctx)
}

// StartReconcileWorker runs the reconcile worker until ctx is cancelled
// or the container is closed.
func (c *Container) StartReconcileWorker(ctx context.Context) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if err := c.ReconcileWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("reconcile worker stopped", "error", err)
		}
	}()
}

// StartHistoryConsumer feeds broker deliveries to the history subscriber.
// Without a broker the in-process bus already does so and this is a no-op.
func (c *Container) StartHistoryConsumer(ctx context.Context) error {
	if c.InProcessEventBus != nil {
		return nil
	}

	consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
		URL:    c.Config.RabbitMQURL,
		Logger: c.Logger,
	}, eventbus.NewConsumerRegistry(c.Logger))
	if err != nil {
		return fmt.Errorf("failed to start history consumer: %w", err)
	}
	consumer.RegisterConsumer(c.HistorySubscriber)
	c.historyConsumer = consumer

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("history consumer stopped", "error", err)
		}
	}()
	return nil
}

// CleanupOutbox removes published messages past the retention period.
func (c *Container) CleanupOutbox(ctx context.Context) (int64, error) {
	return c.OutboxRepo.DeleteOld(ctx, c.Config.OutboxRetentionDays)
}

// Close stops background work and releases every connection.
func (c *Container) Close() {
	c.closeOnce.Do(c.close)
}

func (c *Container) close() {
	if c.ReconcileWorker != nil {
		c.ReconcileWorker.Stop()
	}

	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.historyConsumer != nil {
		if err := c.historyConsumer.Close(); err != nil {
			c.Logger.Warn("error closing history consumer", "error", err)
		}
	}
	c.background.Wait()

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

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
