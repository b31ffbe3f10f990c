package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/attachment"
	"github.com/frahmantamala/custody-ledger/internal/auth"
	"github.com/frahmantamala/custody-ledger/internal/category"
	categoryPostgres "github.com/frahmantamala/custody-ledger/internal/category/postgres"
	uowPostgres "github.com/frahmantamala/custody-ledger/internal/core/uow/postgres"
	"github.com/frahmantamala/custody-ledger/internal/custody"
	"github.com/frahmantamala/custody-ledger/internal/customer"
	customerPostgres "github.com/frahmantamala/custody-ledger/internal/customer/postgres"
	"github.com/frahmantamala/custody-ledger/internal/expense"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/member"
	memberPostgres "github.com/frahmantamala/custody-ledger/internal/member/postgres"
	"github.com/frahmantamala/custody-ledger/internal/notification"
	notificationPostgres "github.com/frahmantamala/custody-ledger/internal/notification/postgres"
	expensepolicy "github.com/frahmantamala/custody-ledger/internal/policy"
	policyPostgres "github.com/frahmantamala/custody-ledger/internal/policy/postgres"
	"github.com/frahmantamala/custody-ledger/internal/transaction"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/internal/transport/middleware"
	"github.com/frahmantamala/custody-ledger/internal/transport/rest"
	"github.com/frahmantamala/custody-ledger/internal/transport/swagger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config        *internal.Config
	DB            *sqlx.DB
	Gorm          *gorm.DB
	Redis         redis.UniversalClient
	Router        *chi.Mux
	Notifications *notifications
	RateLimiter   *middleware.RateLimiter
	closers       []func() error
	Logger        *slog.Logger
}

func startHTTPServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		return err
	}
	lg := deps.Logger

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	go sweepRateLimiter(ctx, deps.RateLimiter, lg)

	serverErr := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr, "env", deps.Config.Server.Env)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("received signal, shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed", "error", err)
			deps.Close(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	deps.Close(shutdownCtx)

	lg.Info("server stopped")
	return nil
}

func sweepRateLimiter(ctx context.Context, l *middleware.RateLimiter, lg *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				lg.Debug("rate limiter buckets dropped", "count", n)
			}
		}
	}
}

func (d *Dependencies) Close(ctx context.Context) {
	if d.Notifications != nil {
		d.Notifications.Close(ctx)
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error("close failed", "error", err)
		}
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := initLogger(cfg)
	deps := &Dependencies{Config: cfg, Logger: lg}

	fail := func(err error) (*Dependencies, error) {
		deps.Close(context.Background())
		return nil, err
	}

	if deps.DB, err = initDB(cfg.Database); err != nil {
		return fail(fmt.Errorf("failed to initialize database: %w", err))
	}
	deps.closers = append(deps.closers, deps.DB.Close)

	if deps.Gorm, err = initGorm(deps.DB, lg); err != nil {
		return fail(err)
	}

	if deps.Redis, err = initRedis(ctx, cfg.Redis); err != nil {
		return fail(err)
	}
	if deps.Redis != nil {
		deps.closers = append(deps.closers, deps.Redis.Close)
	}

	store, err := initAttachmentStore(ctx, cfg.Storage)
	if err != nil {
		return fail(err)
	}
	if c, ok := store.(interface{ Close() error }); ok {
		deps.closers = append(deps.closers, c.Close)
	}

	if deps.Notifications, err = startNotifications(ctx, cfg.Notification, deps.Gorm, lg); err != nil {
		return fail(err)
	}

	doc, err := swagger.Load(ctx, cfg.Server.OpenAPIPath)
	if err != nil {
		return fail(err)
	}
	lg.Info("openapi document loaded", "path", cfg.Server.OpenAPIPath, "operations", doc.Operations())

	deps.Router = chi.NewRouter()
	deps.RateLimiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	handlers, resolver := buildHandlers(deps, store)

	opts := rest.Options{
		Base:           transport.NewBaseHandler(lg),
		Resolver:       resolver,
		RateLimiter:    deps.RateLimiter,
		OpenAPI:        doc,
		AllowedOrigins: cfg.Server.Origins(),
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
		Logger:         lg,
	}
	if deps.Redis != nil {
		opts.Idempotency = middleware.NewIdempotency(deps.Redis, cfg.Server.IdempotencyTTL)
	}
	rest.RegisterAllRoutes(deps.Router, handlers, opts)

	return deps, nil
}

func initAttachmentStore(ctx context.Context, cfg internal.StorageConfig) (attachment.Store, error) {
	if cfg.Driver == "gcs" {
		return attachment.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
	}
	return attachment.NewLocalStore(cfg.LocalDir)
}

func buildHandlers(deps *Dependencies, store attachment.Store) (rest.Handlers, middleware.ActorResolver) {
	cfg, lg, gdb := deps.Config, deps.Logger, deps.Gorm
	base := transport.NewBaseHandler(lg)
	bus := deps.Notifications.bus
	policy := policyFrom(cfg.Ledger)
	unit := uowPostgres.NewGormUoW(gdb)

	memberService := member.NewService(memberPostgres.NewMemberRepository(gdb), cfg.Security.BCryptCost, lg)
	categoryService := category.NewService(categoryPostgres.NewCategoryRepository(gdb), lg)
	policyService := expensepolicy.NewService(policyPostgres.NewPolicyRepository(gdb), policy, lg)
	attachmentService := attachment.NewService(store, cfg.Storage.MaxUploadBytes, lg)
	ledgerService := newLedgerService(gdb, deps.DB, bus, cfg.Ledger, lg)

	var revocations auth.RevocationList = auth.NoRevocation{}
	if deps.Redis != nil {
		revocations = auth.NewRedisRevocationList(deps.Redis)
	}
	authService := auth.NewService(
		memberService,
		auth.NewJWTTokenGenerator(
			cfg.Security.AccessTokenSecret,
			cfg.Security.RefreshTokenSecret,
			cfg.Security.AccessTokenDuration,
			cfg.Security.RefreshTokenDuration,
		),
		revocations,
		lg,
	)

	custodyService := custody.NewService(unit, memberService, ledgerService, bus, policy, cfg.Ledger.DefaultCurrency, lg)
	transactionService := transaction.NewService(unit, ledgerService, attachmentService, bus, policy, lg)
	expenseService := expense.NewService(unit, categoryService, ledgerService, attachmentService, bus, policy, expense.Options{
		DefaultCurrency:                cfg.Ledger.DefaultCurrency,
		RequirePositiveBalanceOnSubmit: cfg.Ledger.RequirePositiveBalanceOnSubmit,
		Policies:                       policyService,
	}, lg)

	return rest.Handlers{
		Auth:         auth.NewHandler(base, authService),
		Members:      member.NewHandler(base, memberService),
		Categories:   category.NewHandler(base, categoryService),
		Policies:     expensepolicy.NewHandler(base, policyService),
		Custodies:    custody.NewHandler(base, custodyService),
		Ledger:       ledger.NewHandler(base, ledgerService),
		Transactions: transaction.NewHandler(base, transactionService),
		Customers:    customer.NewHandler(base, customer.NewService(customerPostgres.NewCustomerRepository(gdb), lg)),
		Expenses:     expense.NewHandler(base, expenseService),
		Attachments:  attachment.NewHandler(base, attachmentService, cfg.Storage.MaxUploadBytes),
		Notify:       notification.NewHandler(base, notification.NewService(notificationPostgres.NewNotificationRepository(gdb), lg)),
		Health:       rest.NewHealthHandler(deps.DB.DB, deps.Redis),
	}, authService
}
