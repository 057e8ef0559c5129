// Package app wires configuration into the running services. Every binary
// builds the same graph so that the server, the worker and the CLI process
// the queue identically.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/api"
	"github.com/ignite/campaign-dispatch/internal/auth"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/events"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/pkg/ringbuf"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/service/approval"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dedup"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/queue"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
	"github.com/ignite/campaign-dispatch/internal/transport"
	"github.com/ignite/campaign-dispatch/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Auth      *auth.Manager
	Processor *dispatch.Processor
	Approval  *approval.Service
	Enqueuer  *queue.Enqueuer
	Contacts  *contact.Service
	Stats     *stats.Service
	Importer  *dedup.Importer
	Users     *postgres.UserRepo

	AutoApprover *worker.AutoApprover

	amqpConn *amqp091.Connection
	amqpCh   *amqp091.Channel
	log      *logger.Logger
}

// Options tunes what Build connects to.
type Options struct {
	// Publish enables the AMQP enqueue publisher when a URL is configured.
	Publish bool
}

// OpenDB opens and pings Postgres with the configured pool sizes.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis returns nil, nil when no URL is configured.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Build connects to the database (and Redis and RabbitMQ when configured)
// and wires every service.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	a := &App{Config: cfg, log: logger.Named("app")}

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	rdb, err := OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		// Redis only backs throttling and locks. Both degrade without it.
		a.log.Warn("redis unavailable, continuing without it", "error", err)
		rdb = nil
	}
	a.Redis = rdb

	tr, err := BuildTransport(ctx, cfg.Transport, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	queueRepo := postgres.NewQueueRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	a.Users = postgres.NewUserRepo(db)

	a.Stats = stats.NewService(a.Users)
	a.Contacts = contact.NewService(contactRepo)
	a.Enqueuer = queue.NewEnqueuer(queueRepo)
	a.Importer = dedup.NewImporter(contactRepo, dedup.Options{
		CountryCode:     cfg.Import.CountryCode,
		LookupBatchSize: cfg.Import.LookupBatchSize,
	}, cfg.Import.InsertBatchSize)

	a.Processor = dispatch.NewProcessor(dispatch.Deps{
		Store:         queueRepo,
		Transport:     tr,
		Contacts:      contactRepo,
		Conversations: postgres.NewConversationRepo(db),
		Unread:        contactRepo,
		Stats:         a.Stats,
	}, dispatch.Options{
		FromName:        cfg.Dispatch.FromName,
		FromEmail:       cfg.Dispatch.FromEmail,
		StaleAfter:      cfg.Dispatch.StaleAfter(),
		DrainIterations: cfg.Dispatch.DrainIterations,
		DrainPause:      cfg.Dispatch.DrainPause(),
	})

	a.Approval = approval.NewService(postgres.NewCampaignRepo(db),
		dispatch.NewPostEnqueueTrigger(a.Processor, cfg.Dispatch.InteractiveBatchSize))

	if opts.Publish && cfg.AMQP.Enabled() {
		conn, ch, err := events.Dial(cfg.AMQP.URL)
		if err != nil {
			a.log.Warn("amqp unavailable, enqueue events disabled", "error", err)
		} else {
			a.amqpConn, a.amqpCh = conn, ch
			a.Approval.AddListener(events.NewPublisher(ch))
		}
	}

	if cfg.Auth.JWTSecret != "" {
		a.Auth = auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL())
	}

	if cfg.AutoApproval.ApproverID != "" {
		id, err := uuid.Parse(cfg.AutoApproval.ApproverID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("auto_approval.approver_id: %w", err)
		}
		actor := domain.Actor{ID: id, Role: domain.RoleApprover}
		a.AutoApprover = worker.NewAutoApprover(a.Approval, actor, cfg.AutoApproval.Schedule, func() distlock.DistLock {
			return distlock.NewLock(rdb, db, "auto-approval", cfg.AutoApproval.LockTTL())
		})
	}

	return a, nil
}

// BuildTransport selects the configured transport and wraps it in the Redis
// rate limiter when enabled. A nil rdb leaves sends unthrottled. It takes the
// concrete client so that a missing one stays a plain nil.
func BuildTransport(ctx context.Context, cfg config.TransportConfig, rdb *redis.Client) (transport.Transport, error) {
	var tr transport.Transport
	switch cfg.Type {
	case "ses":
		ses, err := transport.NewSES(ctx, transport.SESConfig{
			Region:           cfg.SES.Region,
			AccessKey:        cfg.SES.AccessKey,
			SecretKey:        cfg.SES.SecretKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		})
		if err != nil {
			return nil, err
		}
		tr = ses
	case "http":
		if cfg.HTTP.Endpoint == "" {
			return nil, fmt.Errorf("transport.http.endpoint is required")
		}
		tr = transport.NewHTTP(transport.HTTPConfig{
			Endpoint:   cfg.HTTP.Endpoint,
			APIKey:     cfg.HTTP.APIKey,
			MaxRetries: cfg.HTTP.MaxRetries,
			Timeout:    cfg.HTTP.Timeout(),
		})
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}

	if cfg.RateLimit.Enabled && rdb == nil {
		logger.Named("app").Warn("rate limit enabled but redis is not available, sending unthrottled",
			"transport", cfg.Type)
	}
	if cfg.RateLimit.Enabled && rdb != nil {
		limiter := transport.NewLimiter(rdb, cfg.Type, transport.RateLimit{
			PerSecond: cfg.RateLimit.PerSecond,
			PerMinute: cfg.RateLimit.PerMinute,
			PerDay:    cfg.RateLimit.PerDay,
		})
		tr = transport.NewRateLimited(tr, limiter, cfg.RateLimit.MaxWait())
	}
	return tr, nil
}

// Handlers builds the API handler set.
func (a *App) Handlers() *api.Handlers {
	health := api.NewHealthChecker().Add("database", true, a.DB.PingContext)
	if a.Redis != nil {
		health.Add("redis", false, api.RedisPing(a.Redis))
	}

	h := &api.Handlers{
		Auth:             a.Auth,
		Campaigns:        a.Approval,
		Queue:            a.Enqueuer,
		Processor:        a.Processor,
		Contacts:         a.Contacts,
		Importer:         a.Importer,
		Stats:            a.Stats,
		Health:           health,
		WebhookKey:       a.Config.Webhook.Key,
		History:          ringbuf.New[api.WebhookRun](a.Config.Webhook.HistorySize),
		InteractiveBatch: a.Config.Dispatch.InteractiveBatchSize,
		BackgroundBatch:  a.Config.Dispatch.BackgroundBatchSize,
	}
	if a.AutoApprover != nil {
		h.AutoApproval = a.AutoApprover
	}
	return h
}

// StartWorkers launches the reclaim worker, the background poller, the
// AMQP consumer and the auto approver. They stop when ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context) error {
	d := a.Config.Dispatch

	go worker.NewReclaimWorker(postgres.NewQueueRepo(a.DB), d.ReclaimInterval(), d.StaleAfter()).Start(ctx)
	go worker.NewDispatchPoller(a.Processor, d.BackgroundBatchSize, d.PollInterval()).Start(ctx)

	if a.Config.AMQP.Enabled() {
		if err := a.startConsumer(ctx); err != nil {
			a.log.Warn("amqp consumer not started", "error", err)
		}
	}

	if a.AutoApprover != nil && a.Config.AutoApproval.Enabled {
		if err := a.AutoApprover.Start(); err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			a.AutoApprover.Stop()
		}()
	}
	return nil
}

func (a *App) startConsumer(ctx context.Context) error {
	conn, ch, err := events.Dial(a.Config.AMQP.URL)
	if err != nil {
		return err
	}
	deliveries, err := events.Subscribe(ch, a.Config.AMQP.Queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return err
	}
	consumer := events.NewConsumer(a.Processor, a.Config.Dispatch.BackgroundBatchSize)
	go func() {
		defer conn.Close()
		defer ch.Close()
		consumer.Run(ctx, deliveries)
	}()
	a.log.Info("amqp consumer started", "queue", a.Config.AMQP.Queue)
	return nil
}

// Close releases connections.
func (a *App) Close() {
	if a.amqpCh != nil {
		a.amqpCh.Close()
	}
	if a.amqpConn != nil {
		a.amqpConn.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
