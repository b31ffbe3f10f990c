package cmd

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	uowPostgres "github.com/frahmantamala/custody-ledger/internal/core/uow/postgres"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/custody-ledger/internal/ledger/postgres"
	memberPostgres "github.com/frahmantamala/custody-ledger/internal/member/postgres"
	"github.com/frahmantamala/custody-ledger/internal/notification"
	notificationPostgres "github.com/frahmantamala/custody-ledger/internal/notification/postgres"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

// initDB opens the pgx-backed sqlx pool shared by gorm and the read-side queries.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

func initGorm(db *sqlx.DB, lg *slog.Logger) (*gorm.DB, error) {
	level := gormlogger.Silent
	if lg.Enabled(context.Background(), slog.LevelDebug) {
		level = gormlogger.Info
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return gdb, nil
}

// initRedis returns nil when redis is disabled.
func initRedis(ctx context.Context, cfg internal.RedisConfig) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func initLogger(cfg *internal.Config) *slog.Logger {
	return logger.Init(cfg.Server.Env, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
}

func policyFrom(cfg internal.LedgerConfig) authz.Policy {
	return authz.Policy{
		DistinctDecider:          cfg.DistinctDecider,
		RecipientAcceptsTransfer: cfg.RecipientAcceptsTransfer,
		RecipientApprovesTopup:   cfg.RecipientApprovesTopup,
	}
}

func newLedgerService(gdb *gorm.DB, db *sqlx.DB, bus events.Publisher, cfg internal.LedgerConfig, lg *slog.Logger) *ledger.Service {
	return ledger.NewService(
		uowPostgres.NewGormUoW(gdb),
		ledgerPostgres.NewSummaryReader(db),
		bus,
		policyFrom(cfg),
		lg,
	)
}

// notifications wires the event bus to the dispatcher. The returned closer drains the bus,
// flushes pending deliveries and closes the pubsub client.
type notifications struct {
	bus        *events.EventBus
	dispatcher *notification.Dispatcher
	pubsub     *notification.PubSubSink
	logger     *slog.Logger
}

func startNotifications(ctx context.Context, cfg internal.NotificationConfig, gdb *gorm.DB, lg *slog.Logger) (*notifications, error) {
	sinks := []notification.Sink{
		notification.NewDBSink(notificationPostgres.NewNotificationRepository(gdb)),
	}

	n := &notifications{bus: events.NewEventBus(lg), logger: lg}
	if cfg.PubSub.Enabled {
		ps, err := notification.NewPubSubSink(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic, cfg.PubSub.CredentialsFile)
		if err != nil {
			return nil, err
		}
		n.pubsub = ps
		sinks = append(sinks, ps)
	}

	n.dispatcher = notification.NewDispatcher(notification.DispatcherConfig{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	}, lg, sinks...)
	n.dispatcher.Start()

	notification.NewSubscriber(memberPostgres.NewMemberRepository(gdb), n.dispatcher, lg).
		RegisterEventHandlers(n.bus)
	return n, nil
}

func (n *notifications) Close(ctx context.Context) {
	if err := n.bus.Drain(ctx); err != nil {
		n.logger.Warn("event handlers still running at shutdown", "error", err)
	}
	n.dispatcher.Shutdown(ctx)
	if n.pubsub != nil {
		if err := n.pubsub.Close(); err != nil {
			n.logger.Warn("pubsub close failed", "error", err)
		}
	}
}
