// Package uow declares the repositories that take part in ledger writes and the unit of work
// that binds them to one database transaction.
package uow

import (
	"context"
	"errors"
	"time"

	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	expensedm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/expense"
	ledgerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/ledger"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned by conditional updates that matched no row in the expected state.
	ErrStale = errors.New("record changed state concurrently")
)

type CustodyRepository interface {
	Create(ctx context.Context, c *custodydm.Custody) error
	GetByID(ctx context.Context, id string) (*custodydm.Custody, error)
	// LockByIDs locks the rows in ascending id order regardless of argument order.
	LockByIDs(ctx context.Context, ids ...string) ([]*custodydm.Custody, error)
	FindActiveByUser(ctx context.Context, companyID, userID string, forUpdate bool) (*custodydm.Custody, error)
	ListByCompany(ctx context.Context, companyID, userID string) ([]*custodydm.Custody, error)
	ListActive(ctx context.Context) ([]*custodydm.Custody, error)
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) error
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *ledgerdm.Transaction) error
	GetByID(ctx context.Context, id string) (*ledgerdm.Transaction, error)
	LockByID(ctx context.Context, id string) (*ledgerdm.Transaction, error)
	// ApprovedForCustody returns every approved row that credits or debits the custody.
	ApprovedForCustody(ctx context.Context, custodyID string) ([]*ledgerdm.Transaction, error)
	ListForCustody(ctx context.Context, custodyID string, limit, offset int) ([]*ledgerdm.Transaction, error)
	ListPending(ctx context.Context, companyID string) ([]*ledgerdm.Transaction, error)
	Decide(ctx context.Context, id, status, decidedBy, comment string, at time.Time) error
}

type ExpenseRepository interface {
	Create(ctx context.Context, e *expensedm.Expense) error
	GetByID(ctx context.Context, id string) (*expensedm.Expense, error)
	LockByID(ctx context.Context, id string) (*expensedm.Expense, error)
	Save(ctx context.Context, e *expensedm.Expense) error
	List(ctx context.Context, filter ExpenseFilter) ([]*expensedm.Expense, error)
	Transition(ctx context.Context, id, from, to string, fields map[string]interface{}) error
}

type ExpenseFilter struct {
	CompanyID string
	CreatedBy string
	Status    string
	Limit     int
	Offset    int
}

type ApprovalRepository interface {
	Create(ctx context.Context, a *expensedm.Approval) error
	GetByID(ctx context.Context, id string) (*expensedm.Approval, error)
	LockByID(ctx context.Context, id string) (*expensedm.Approval, error)
	GetByExpenseID(ctx context.Context, expenseID string) (*expensedm.Approval, error)
	ListPending(ctx context.Context, companyID string) ([]*expensedm.Approval, error)
	Decide(ctx context.Context, id, status, decidedBy, comment string, at time.Time) error
}

type CustomerRepository interface {
	// CreateIfAbsent inserts c unless the company already has a customer with the same
	// case-insensitive name, and reports whether it inserted.
	CreateIfAbsent(ctx context.Context, c *customerdm.Customer) (bool, error)
	GetByID(ctx context.Context, id string) (*customerdm.Customer, error)
	FindByName(ctx context.Context, companyID, name string) (*customerdm.Customer, error)
	List(ctx context.Context, companyID, query string, limit int) ([]*customerdm.Customer, error)
}

type Repos struct {
	Custodies    CustodyRepository
	Transactions TransactionRepository
	Expenses     ExpenseRepository
	Approvals    ApprovalRepository
	Customers    CustomerRepository
}

type UnitOfWork interface {
	// Repos returns repositories bound to the plain connection, for reads outside a transaction.
	Repos() Repos
	// WithinTx runs fn in one database transaction. Any returned error rolls everything back.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
