package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/custody-ledger/internal/core/events"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect custody balances",
	Long:  `Operator commands that recompute custody balances from the transaction history.`,
}

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance [custody-id]",
	Short: "Recompute the balance of one custody",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd.Context(), func(ctx context.Context, svc *ledger.Service) error {
			c, bal, err := svc.Replay(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("custody  %s\nholder   %s\nstatus   %s\nbalance  %s %s\n", c.ID, c.UserID, c.Status, money.Format(bal), c.Currency)
			return nil
		})
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every active custody for a negative balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd.Context(), func(ctx context.Context, svc *ledger.Service) error {
			violations, err := svc.SweepIntegrity(ctx)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Println("no integrity violations")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COMPANY\tCUSTODY\tBALANCE")
			for _, v := range violations {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.CompanyID, v.CustodyID, money.Format(v.Balance))
			}
			_ = w.Flush()
			return fmt.Errorf("%d custodies with a negative balance", len(violations))
		})
	},
}

// withLedger runs fn against a ledger service that publishes nowhere.
func withLedger(ctx context.Context, fn func(context.Context, *ledger.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
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

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	return fn(ctx, newLedgerService(gdb, db, events.Nop{}, cfg.Ledger, lg))
}

func init() {
	ledgerCmd.AddCommand(ledgerBalanceCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
}
