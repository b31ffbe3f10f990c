package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/custody-ledger/internal/ledger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running background jobs such as the ledger integrity sweep.`,
}

var integrityWorkerCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Run the ledger integrity sweep on a schedule",
	Long: `Recompute every active custody balance on the configured cron schedule and raise an
integrity violation for any negative balance. With redis enabled only one worker sweeps per tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startIntegrityWorker(cmd.Context())
	},
}

var (
	sweepSchedule string
	sweepOnce     bool
)

func startIntegrityWorker(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := initLogger(cfg)

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := initGorm(db, lg)
	if err != nil {
		return err
	}

	rdb, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var locker *redislock.Client
	if rdb != nil {
		defer rdb.Close()
		locker = redislock.New(rdb)
	} else {
		lg.Warn("redis disabled: integrity sweep runs without a distributed lock")
	}

	notify, err := startNotifications(ctx, cfg.Notification, gdb, lg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		notify.Close(closeCtx)
	}()

	schedule := getStringFlag(sweepSchedule, cfg.Ledger.IntegritySweepSchedule)
	sweeper := ledger.NewSweeper(
		newLedgerService(gdb, db, notify.bus, cfg.Ledger, lg),
		locker,
		schedule,
		cfg.Ledger.IntegritySweepLockTTL,
		lg,
	)

	if sweepOnce {
		ran, violations, err := sweeper.RunOnce(ctx)
		if err != nil {
			return err
		}
		lg.Info("integrity sweep done", "ran", ran, "violations", len(violations))
		return nil
	}
	return sweeper.Start(ctx)
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	integrityWorkerCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "Cron schedule (overrides config)")
	integrityWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "Sweep once and exit")

	workerCmd.AddCommand(integrityWorkerCmd)
}
