package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

const displayBalancesQuery = `
SELECT c.id AS custody_id,
       c.initial_amount
       + COALESCE((SELECT SUM(t.amount) FROM custody_transactions t
                   WHERE t.status = 'approved' AND t.custody_id = c.id
                     AND t.type IN ('topup', 'transfer')), 0)
       - COALESCE((SELECT SUM(t.amount) FROM custody_transactions t
                   WHERE t.status = 'approved'
                     AND ((t.type = 'transfer' AND t.source_custody_id = c.id)
                       OR (t.type = 'expense_deduction' AND t.custody_id = c.id))), 0)
       AS balance
FROM custodies c
WHERE c.company_id = ?`

type SummaryReader struct {
	db *sqlx.DB
}

func NewSummaryReader(db *sqlx.DB) *SummaryReader {
	return &SummaryReader{db: db}
}

type balanceRow struct {
	CustodyID string          `db:"custody_id"`
	Balance   decimal.Decimal `db:"balance"`
}

func (r *SummaryReader) DisplayBalances(ctx context.Context, companyID string) (map[string]decimal.Decimal, error) {
	var rows []balanceRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(displayBalancesQuery), companyID); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.CustodyID] = row.Balance.Round(money.Scale)
	}
	return out, nil
}
