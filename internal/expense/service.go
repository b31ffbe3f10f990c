package expense

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/attachment"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	expensedm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/expense"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/metrics"
	"github.com/frahmantamala/custody-ledger/internal/policy"
)

type CategoryChecker interface {
	IsActive(ctx context.Context, companyID, categoryID string) (bool, error)
}

type BalanceChecker interface {
	BalanceWithin(ctx context.Context, r uow.Repos, c *custodydm.Custody) (decimal.Decimal, error)
}

type AttachmentVerifier interface {
	Verify(ctx context.Context, actor authz.Actor, kind attachment.Kind, path string) error
}

type PolicyChecker interface {
	ActiveSet(ctx context.Context, companyID string) (policy.Set, error)
}

type Options struct {
	DefaultCurrency                string
	RequirePositiveBalanceOnSubmit bool
	// Policies may be nil, in which case no company rules apply.
	Policies PolicyChecker
}

type Service struct {
	uow         uow.UnitOfWork
	categories  CategoryChecker
	balances    BalanceChecker
	attachments AttachmentVerifier
	publisher   events.Publisher
	policy      authz.Policy
	opts        Options
	logger      *slog.Logger
}

func NewService(u uow.UnitOfWork, categories CategoryChecker, balances BalanceChecker, attachments AttachmentVerifier, publisher events.Publisher, policy authz.Policy, opts Options, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "SAR"
	}
	return &Service{
		uow:         u,
		categories:  categories,
		balances:    balances,
		attachments: attachments,
		publisher:   publisher,
		policy:      policy,
		opts:        opts,
		logger:      logger,
	}
}

var (
	errNotFound         = apperrors.NewNotFoundError("expense not found", apperrors.ErrCodeExpenseNotFound)
	errApprovalNotFound = apperrors.NewNotFoundError("approval not found", apperrors.ErrCodeApprovalNotFound)
	errNotDraft         = apperrors.NewConflictError("only draft expenses can be changed or submitted", apperrors.ErrCodeInvalidStatus)
	errNotSubmitted     = apperrors.NewConflictError("expense is not awaiting approval", apperrors.ErrCodeInvalidStatus)
	errNoCustody        = apperrors.NewConflictError("you have no active custody", apperrors.ErrCodeCustodyNotActive)
	errInvalidCategory  = apperrors.NewValidationFieldError("category_id", "category is not active in this company", apperrors.ErrCodeInvalidCategory)
	errNotCreator       = apperrors.NewForbiddenError("only the creator can change this expense", apperrors.ErrCodeForbidden)
)

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// checkInput runs the validations shared by create and update.
func (s *Service) checkInput(ctx context.Context, actor authz.Actor, dto ExpenseDTO) error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	ok, err := s.categories.IsActive(ctx, actor.CompanyID, dto.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidCategory
	}
	path := strings.TrimSpace(dto.AttachmentPath)
	if path != "" {
		if err := s.attachments.Verify(ctx, actor, attachment.KindExpense, path); err != nil {
			return err
		}
	}
	rules, err := s.activePolicies(ctx, actor.CompanyID)
	if err != nil {
		return err
	}
	return rules.Check(dto.CategoryID, dto.Amount, path != "")
}

func (s *Service) activePolicies(ctx context.Context, companyID string) (policy.Set, error) {
	if s.opts.Policies == nil {
		return nil, nil
	}
	rules, err := s.opts.Policies.ActiveSet(ctx, companyID)
	if err != nil {
		s.logger.Error("failed to load expense policies", "error", err, "company_id", companyID)
		return nil, err
	}
	return rules, nil
}

func (s *Service) apply(e *Expense, dto ExpenseDTO) {
	e.CategoryID = dto.CategoryID
	e.ProjectID = optional(dto.ProjectID)
	e.CostCenterID = optional(dto.CostCenterID)
	e.Amount = dto.Amount
	e.Currency = strings.ToUpper(strings.TrimSpace(dto.Currency))
	if e.Currency == "" {
		e.Currency = s.opts.DefaultCurrency
	}
	e.ExpenseDate = dto.ExpenseDate.Time
	e.Description = strings.TrimSpace(dto.Description)
	e.Notes = strings.TrimSpace(dto.Notes)
	e.AttachmentPath = optional(dto.AttachmentPath)
}

// Create stores a draft. Drafts have no effect on any balance.
func (s *Service) Create(ctx context.Context, actor authz.Actor, dto ExpenseDTO) (*Expense, error) {
	if err := s.policy.Require(actor, authz.SubmitExpense); err != nil {
		return nil, err
	}
	if err := s.checkInput(ctx, actor, dto); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e := &Expense{
		ID:        uuid.NewString(),
		CompanyID: actor.CompanyID,
		CreatedBy: actor.UserID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.apply(e, dto)

	if err := s.uow.Repos().Expenses.Create(ctx, ToDataModel(e)); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", actor.UserID)
		return nil, err
	}
	s.logger.Info("expense draft created", "expense_id", e.ID, "amount", money.Format(e.Amount), "user_id", actor.UserID)
	return e, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, id string, dto ExpenseDTO) (*Expense, error) {
	if err := s.checkInput(ctx, actor, dto); err != nil {
		return nil, err
	}

	var updated *Expense
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		e, err := s.lockOwnDraft(ctx, r, actor, id)
		if err != nil {
			return err
		}
		s.apply(e, dto)
		e.UpdatedAt = time.Now().UTC()
		if err := r.Expenses.Save(ctx, ToDataModel(e)); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("expense draft updated", "expense_id", id, "user_id", actor.UserID)
	return updated, nil
}

func (s *Service) lockOwnDraft(ctx context.Context, r uow.Repos, actor authz.Actor, id string) (*Expense, error) {
	row, err := r.Expenses.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if err := s.policy.Scope(actor, row.CompanyID, errNotFound); err != nil {
		return nil, err
	}
	if row.CreatedBy != actor.UserID {
		return nil, errNotCreator
	}
	e := FromDataModel(row)
	if !e.IsDraft() {
		return nil, errNotDraft
	}
	return e, nil
}

// Submit binds the draft to the creator's active custody and opens its approval.
func (s *Service) Submit(ctx context.Context, actor authz.Actor, id string) (*Expense, *Approval, error) {
	if err := s.policy.Require(actor, authz.SubmitExpense); err != nil {
		return nil, nil, err
	}
	// Loaded before the unit of work; rules are re-read on every submit.
	rules, err := s.activePolicies(ctx, actor.CompanyID)
	if err != nil {
		return nil, nil, err
	}

	var (
		submitted *Expense
		approval  *Approval
	)
	err = s.uow.WithinTx(ctx, func(r uow.Repos) error {
		e, err := s.lockOwnDraft(ctx, r, actor, id)
		if err != nil {
			return err
		}
		if err := rules.Check(e.CategoryID, e.Amount, e.AttachmentPath != nil); err != nil {
			return err
		}
		c, err := r.Custodies.FindActiveByUser(ctx, actor.CompanyID, actor.UserID, true)
		if err != nil {
			if errors.Is(err, uow.ErrNotFound) {
				return errNoCustody
			}
			return err
		}
		bal, err := s.balances.BalanceWithin(ctx, r, c)
		if err != nil {
			return err
		}
		if s.opts.RequirePositiveBalanceOnSubmit && !bal.IsPositive() {
			return apperrors.ErrInsufficientBalance.WithDetails(map[string]string{"balance": money.Format(bal)})
		}

		now := time.Now().UTC()
		if err := r.Expenses.Transition(ctx, e.ID, string(StatusDraft), string(StatusSubmitted), map[string]interface{}{
			"custody_id":   c.ID,
			"submitted_at": now,
		}); err != nil {
			if errors.Is(err, uow.ErrStale) {
				return errNotDraft
			}
			return err
		}
		e.Status = StatusSubmitted
		e.CustodyID = &c.ID
		e.SubmittedAt = &now

		approval = &Approval{
			ID:        uuid.NewString(),
			CompanyID: e.CompanyID,
			ExpenseID: e.ID,
			Status:    ApprovalPending,
			CreatedAt: now,
		}
		if err := r.Approvals.Create(ctx, &expensedm.Approval{
			ID:        approval.ID,
			CompanyID: approval.CompanyID,
			ExpenseID: approval.ExpenseID,
			Status:    string(approval.Status),
			CreatedAt: now,
		}); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errNotDraft
			}
			return err
		}
		submitted = e
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientBalance) {
			metrics.RecordInsufficientBalance("expense_submit")
		}
		return nil, nil, err
	}

	s.logger.Info("expense submitted", "expense_id", submitted.ID, "approval_id", approval.ID, "custody_id", *submitted.CustodyID)
	_ = s.publisher.Publish(ctx, events.NewExpenseSubmittedEvent(submitted.ID, approval.ID, submitted.CompanyID, submitted.CreatedBy, money.Format(submitted.Amount)))
	return submitted, approval, nil
}

// DecideApproval settles a submitted expense. Approval locks the approval, the expense and the
// bound custody in that order and books an expense_deduction when the balance covers it.
func (s *Service) DecideApproval(ctx context.Context, actor authz.Actor, approvalID string, dto ApprovalDecisionDTO) (*Approval, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	approve := dto.Action == "approve"
	comment := strings.TrimSpace(dto.Comment)
	if !approve && comment == "" {
		return nil, apperrors.ErrCommentRequired
	}

	var (
		decided *Approval
		exp     *Expense
	)
	err := s.uow.WithinTx(ctx, func(r uow.Repos) error {
		row, err := r.Approvals.LockByID(ctx, approvalID)
		if err != nil {
			if errors.Is(err, uow.ErrNotFound) {
				return errApprovalNotFound
			}
			return err
		}
		if err := s.policy.Scope(actor, row.CompanyID, errApprovalNotFound); err != nil {
			return err
		}
		a := ApprovalFromDataModel(row)
		if a.Status != ApprovalPending {
			return apperrors.ErrAlreadyDecided
		}

		erow, err := r.Expenses.LockByID(ctx, a.ExpenseID)
		if err != nil {
			if errors.Is(err, uow.ErrNotFound) {
				return errNotFound
			}
			return err
		}
		e := FromDataModel(erow)
		if err := s.policy.CanDecideExpense(actor, e.CompanyID, e.CreatedBy); err != nil {
			return err
		}
		if e.Status != StatusSubmitted || e.CustodyID == nil {
			return errNotSubmitted
		}

		now := time.Now().UTC()
		approvalStatus, expenseStatus := ApprovalRejected, StatusRejected
		if approve {
			if err := s.book(ctx, r, actor, e, now); err != nil {
				return err
			}
			approvalStatus, expenseStatus = ApprovalApproved, StatusApproved
		}

		if err := r.Approvals.Decide(ctx, a.ID, string(approvalStatus), actor.UserID, comment, now); err != nil {
			if errors.Is(err, uow.ErrStale) {
				return apperrors.ErrAlreadyDecided
			}
			return err
		}
		if err := r.Expenses.Transition(ctx, e.ID, string(StatusSubmitted), string(expenseStatus), map[string]interface{}{
			"decided_at": now,
		}); err != nil {
			if errors.Is(err, uow.ErrStale) {
				return apperrors.ErrAlreadyDecided
			}
			return err
		}

		a.Status = approvalStatus
		a.Comment = comment
		a.DecidedBy = &actor.UserID
		a.DecidedAt = &now
		e.Status = expenseStatus
		e.DecidedAt = &now
		decided, exp = a, e
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			metrics.RecordInsufficientBalance("expense_approval")
			metrics.RecordDecision("expense", "insufficient_balance")
		case errors.Is(err, apperrors.ErrAlreadyDecided):
			metrics.RecordDecision("expense", "conflict")
		case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrSelfDecision), errors.Is(err, apperrors.ErrCrossTenant):
			metrics.RecordDecision("expense", "denied")
			s.logger.Warn("expense decision denied", "approval_id", approvalID, "actor_id", actor.UserID, "error", err)
		}
		return nil, err
	}

	metrics.RecordDecision("expense", string(decided.Status))
	s.logger.Info("expense decided",
		"approval_id", decided.ID,
		"expense_id", exp.ID,
		"status", decided.Status,
		"amount", money.Format(exp.Amount),
		"decided_by", actor.UserID)
	_ = s.publisher.Publish(ctx, events.NewExpenseDecidedEvent(exp.ID, decided.ID, exp.CompanyID, string(decided.Status), money.Format(exp.Amount), exp.CreatedBy, actor.UserID))
	return decided, nil
}

// book inserts the approved expense_deduction. The caller holds the approval and expense locks.
func (s *Service) book(ctx context.Context, r uow.Repos, actor authz.Actor, e *Expense, now time.Time) error {
	locked, err := r.Custodies.LockByIDs(ctx, *e.CustodyID)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return apperrors.ErrCustodyNotActive
		}
		return err
	}
	c := locked[0]
	if c.Status != custodydm.StatusActive {
		return apperrors.ErrCustodyNotActive
	}
	bal, err := s.balances.BalanceWithin(ctx, r, c)
	if err != nil {
		return err
	}
	if bal.LessThan(e.Amount) {
		return apperrors.ErrInsufficientBalance.WithDetails(map[string]string{
			"balance": money.Format(bal),
			"amount":  money.Format(e.Amount),
		})
	}

	err = r.Transactions.Create(ctx, ledger.ToDataModel(&ledger.Transaction{
		ID:         uuid.NewString(),
		CompanyID:  e.CompanyID,
		CustodyID:  c.ID,
		Type:       ledger.TypeExpenseDeduction,
		Source:     ledger.SourceExpense,
		Status:     ledger.StatusApproved,
		Amount:     e.Amount,
		FromUserID: &e.CreatedBy,
		ExpenseID:  &e.ID,
		Notes:      e.Description,
		CreatedBy:  e.CreatedBy,
		DecidedBy:  &actor.UserID,
		DecidedAt:  &now,
		CreatedAt:  now,
	}))
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrAlreadyDecided
	}
	return err
}

type View struct {
	Expense  *Expense
	Approval *Approval
}

func (s *Service) Get(ctx context.Context, actor authz.Actor, id string) (*View, error) {
	r := s.uow.Repos()
	row, err := r.Expenses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, uow.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if err := s.policy.Scope(actor, row.CompanyID, errNotFound); err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, row.CompanyID, row.CreatedBy); err != nil {
		return nil, err
	}

	view := &View{Expense: FromDataModel(row)}
	a, err := r.Approvals.GetByExpenseID(ctx, id)
	switch {
	case err == nil:
		view.Approval = ApprovalFromDataModel(a)
	case !errors.Is(err, uow.ErrNotFound):
		return nil, err
	}
	return view, nil
}

// List returns company expenses for view_all holders and only the actor's own otherwise.
func (s *Service) List(ctx context.Context, actor authz.Actor, q ListQuery) ([]*Expense, error) {
	filter := uow.ExpenseFilter{
		CompanyID: actor.CompanyID,
		Status:    q.Status,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if !actor.Can(authz.ViewAll) {
		filter.CreatedBy = actor.UserID
	}
	rows, err := s.uow.Repos().Expenses.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list expenses", "error", err)
		return nil, err
	}
	return FromDataModelSlice(rows), nil
}

type PendingApproval struct {
	Approval *Approval
	Expense  *Expense
}

// ListPendingApprovals returns the approvals the actor may decide, oldest first.
func (s *Service) ListPendingApprovals(ctx context.Context, actor authz.Actor) ([]PendingApproval, error) {
	if err := s.policy.Require(actor, authz.DecideExpense); err != nil {
		return nil, err
	}
	r := s.uow.Repos()
	rows, err := r.Approvals.ListPending(ctx, actor.CompanyID)
	if err != nil {
		s.logger.Error("failed to list pending approvals", "error", err)
		return nil, err
	}

	out := make([]PendingApproval, 0, len(rows))
	for _, row := range rows {
		erow, err := r.Expenses.GetByID(ctx, row.ExpenseID)
		if err != nil {
			return nil, err
		}
		if s.policy.CanDecideExpense(actor, erow.CompanyID, erow.CreatedBy) != nil {
			continue
		}
		out = append(out, PendingApproval{Approval: ApprovalFromDataModel(row), Expense: FromDataModel(erow)})
	}
	return out, nil
}
