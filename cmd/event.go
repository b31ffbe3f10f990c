package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/custody-ledger/internal/core/events"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events through the notification pipeline for testing sinks and recipients`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long: `Publish a domain event to the in-process bus with the notification subscriber attached.
Supported types: ` + events.EventTypeCustodyStatusChanged + `, ` + events.EventTypeIntegrityViolation,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventCompanyID string
	eventCustodyID string
	eventUserID    string
)

func buildTestEvent(eventType string) (events.Event, error) {
	if eventCompanyID == "" || eventCustodyID == "" {
		return nil, fmt.Errorf("--company and --custody are required")
	}
	switch eventType {
	case events.EventTypeCustodyStatusChanged:
		if eventUserID == "" {
			return nil, fmt.Errorf("--user is required for %s", eventType)
		}
		return events.NewCustodyStatusChangedEvent(eventCustodyID, eventCompanyID, eventUserID, "active", "frozen", "cli-command"), nil
	case events.EventTypeIntegrityViolation:
		return events.NewIntegrityViolationEvent(eventCustodyID, eventCompanyID, "-0.01"), nil
	}
	return nil, fmt.Errorf("unsupported event type %q", eventType)
}

func publishTestEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	event, err := buildTestEvent(eventType)
	if err != nil {
		return err
	}

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

	notify, err := startNotifications(ctx, cfg.Notification, gdb, lg)
	if err != nil {
		return err
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())
	if err := notify.bus.PublishSync(ctx, event); err != nil {
		return err
	}

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	notify.Close(closeCtx)

	lg.Info("test event delivered")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventCompanyID, "company", "", "Company id")
	publishEventCmd.Flags().StringVar(&eventCustodyID, "custody", "", "Custody id")
	publishEventCmd.Flags().StringVar(&eventUserID, "user", "", "Custody holder id")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
