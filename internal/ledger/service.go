package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/metrics"
)

var errCustodyNotFound = apperrors.NewNotFoundError("custody not found", apperrors.ErrCodeCustodyNotFound)

// SummaryReader serves display balances from one aggregate query. Never used to authorize.
type SummaryReader interface {
	DisplayBalances(ctx context.Context, companyID string) (map[string]decimal.Decimal, error)
}

type BalanceView struct {
	CustodyID          string          `json:"custody_id"`
	Balance            decimal.Decimal `json:"-"`
	Formatted          string          `json:"balance"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	IntegrityViolation bool            `json:"integrity_violation"`
	ComputedAt         time.Time       `json:"computed_at"`
}

type Violation struct {
	CustodyID string
	CompanyID string
	Balance   decimal.Decimal
}

type Service struct {
	uow       uow.UnitOfWork
	summary   SummaryReader
	publisher events.Publisher
	policy    authz.Policy
	logger    *slog.Logger
}

func NewService(u uow.UnitOfWork, summary SummaryReader, publisher events.Publisher, policy authz.Policy, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{uow: u, summary: summary, publisher: publisher, policy: policy, logger: logger}
}

// Replay computes the balance of one custody from the plain connection.
func (s *Service) Replay(ctx context.Context, custodyID string) (*custodydm.Custody, decimal.Decimal, error) {
	r := s.uow.Repos()
	c, err := r.Custodies.GetByID(ctx, custodyID)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, decimal.Zero, errCustodyNotFound
		}
		return nil, decimal.Zero, err
	}
	bal, err := replay(ctx, r, c)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return c, bal, nil
}

func replay(ctx context.Context, r uow.Repos, c *custodydm.Custody) (decimal.Decimal, error) {
	rows, err := r.Transactions.ApprovedForCustody(ctx, c.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return Balance(c.ID, c.InitialAmount, FromDataModelSlice(rows)), nil
}

// CurrentBalance is the read path. A negative balance on an active custody is reported, not hidden.
func (s *Service) CurrentBalance(ctx context.Context, actor authz.Actor, custodyID string) (*BalanceView, error) {
	c, bal, err := s.Replay(ctx, custodyID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Scope(actor, c.CompanyID, errCustodyNotFound); err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, c.CompanyID, c.UserID); err != nil {
		return nil, err
	}

	view := &BalanceView{
		CustodyID:  c.ID,
		Balance:    bal,
		Formatted:  money.Format(bal),
		Currency:   c.Currency,
		Status:     c.Status,
		ComputedAt: time.Now().UTC(),
	}
	if c.Status == custodydm.StatusActive && bal.IsNegative() {
		view.IntegrityViolation = true
		s.reportViolation(ctx, "read", c, bal)
	}
	return view, nil
}

// BalanceWithin is the write path: it must run inside the unit of work that holds the custody
// lock. A negative active balance aborts the write.
func (s *Service) BalanceWithin(ctx context.Context, r uow.Repos, c *custodydm.Custody) (decimal.Decimal, error) {
	bal, err := replay(ctx, r, c)
	if err != nil {
		return decimal.Zero, err
	}
	if c.Status == custodydm.StatusActive && bal.IsNegative() {
		s.reportViolation(ctx, "write", c, bal)
		return bal, apperrors.ErrNegativeBalance
	}
	return bal, nil
}

// DisplayBalances is eventually consistent and for listings only.
func (s *Service) DisplayBalances(ctx context.Context, companyID string) (map[string]decimal.Decimal, error) {
	if s.summary == nil {
		return map[string]decimal.Decimal{}, nil
	}
	return s.summary.DisplayBalances(ctx, companyID)
}

// SweepIntegrity recomputes every active custody and reports the negative ones.
func (s *Service) SweepIntegrity(ctx context.Context) ([]Violation, error) {
	start := time.Now()
	defer func() { metrics.ObserveSweep(time.Since(start)) }()

	r := s.uow.Repos()
	custodies, err := r.Custodies.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, c := range custodies {
		if err := ctx.Err(); err != nil {
			return violations, err
		}
		bal, err := replay(ctx, r, c)
		if err != nil {
			s.logger.Error("integrity sweep: replay failed", "custody_id", c.ID, "error", err)
			continue
		}
		if bal.IsNegative() {
			s.reportViolation(ctx, "sweep", c, bal)
			violations = append(violations, Violation{CustodyID: c.ID, CompanyID: c.CompanyID, Balance: bal})
		}
	}

	s.logger.Info("integrity sweep finished",
		"custodies", len(custodies),
		"violations", len(violations),
		"duration_ms", time.Since(start).Milliseconds())
	return violations, nil
}

func (s *Service) reportViolation(ctx context.Context, path string, c *custodydm.Custody, bal decimal.Decimal) {
	s.logger.Error("ledger integrity violation: negative balance on active custody",
		"path", path,
		"custody_id", c.ID,
		"company_id", c.CompanyID,
		"user_id", c.UserID,
		"balance", money.Format(bal))
	metrics.RecordIntegrityViolation(path)
	_ = s.publisher.Publish(ctx, events.NewIntegrityViolationEvent(c.ID, c.CompanyID, money.Format(bal)))
}

// ListForCustody returns the history of one custody, newest first.
func (s *Service) ListForCustody(ctx context.Context, actor authz.Actor, custodyID string, limit, offset int) ([]*Transaction, error) {
	r := s.uow.Repos()
	c, err := r.Custodies.GetByID(ctx, custodyID)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errCustodyNotFound
		}
		return nil, err
	}
	if err := s.policy.Scope(actor, c.CompanyID, errCustodyNotFound); err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, c.CompanyID, c.UserID); err != nil {
		return nil, err
	}
	rows, err := r.Transactions.ListForCustody(ctx, custodyID, limit, offset)
	if err != nil {
		return nil, err
	}
	return FromDataModelSlice(rows), nil
}
