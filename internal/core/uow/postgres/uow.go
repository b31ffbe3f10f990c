package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	custodyPostgres "github.com/frahmantamala/custody-ledger/internal/custody/postgres"
	customerPostgres "github.com/frahmantamala/custody-ledger/internal/customer/postgres"
	expensePostgres "github.com/frahmantamala/custody-ledger/internal/expense/postgres"
	ledgerPostgres "github.com/frahmantamala/custody-ledger/internal/ledger/postgres"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) Repos() uow.Repos {
	return reposFor(u.db)
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func reposFor(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Custodies:    custodyPostgres.NewCustodyRepository(db),
		Transactions: ledgerPostgres.NewTransactionRepository(db),
		Expenses:     expensePostgres.NewExpenseRepository(db),
		Approvals:    expensePostgres.NewApprovalRepository(db),
		Customers:    customerPostgres.NewCustomerRepository(db),
	}
}
