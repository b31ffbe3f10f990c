package transaction_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/attachment"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	uowPostgres "github.com/frahmantamala/custody-ledger/internal/core/uow/postgres"
	"github.com/frahmantamala/custody-ledger/internal/customer"
	customerPostgres "github.com/frahmantamala/custody-ledger/internal/customer/postgres"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/transaction"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// verifier accepts any path under the actor's prefix, or fails with err when set.
type verifier struct{ err error }

func (v verifier) Verify(_ context.Context, actor authz.Actor, kind attachment.Kind, path string) error {
	if v.err != nil {
		return v.err
	}
	return attachment.CheckPath(actor.CompanyID, kind, actor.UserID, path)
}

func codeOf(err error) apperrors.ErrorCode {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected AppError, got %v", err)
	return appErr.Code
}

func customerResolve(ctx context.Context, db *gorm.DB, companyID, actorID, name string) (*customerdm.Customer, bool, error) {
	return customer.Resolve(ctx, customerPostgres.NewCustomerRepository(db), companyID, actorID, customer.Ref{Name: name})
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func yes() *bool { b := true; return &b }
func no() *bool  { b := false; return &b }

var _ = Describe("Transaction Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		fx        dbtest.Fixtures
		pub       *recordingPublisher
		ledgerSvc *ledger.Service
		service   *transaction.Service
		policy    authz.Policy
		companyID string

		accountant authz.Actor
		manager    authz.Actor
		alice      authz.Actor
		bob        authz.Actor
		rep        authz.Actor

		aliceCustody *custodydm.Custody
		bobCustody   *custodydm.Custody
		repCustody   *custodydm.Custody
	)

	actorFor := func(role authz.Role) authz.Actor {
		m := fx.Member(companyID, string(role))
		return authz.Actor{UserID: m.ID, CompanyID: companyID, Role: role}
	}

	build := func() {
		unit := uowPostgres.NewGormUoW(db)
		ledgerSvc = ledger.NewService(unit, nil, pub, policy, logger.Discard())
		service = transaction.NewService(unit, ledgerSvc, verifier{}, pub, policy, logger.Discard())
	}

	balanceOf := func(c *custodydm.Custody) string {
		view, err := ledgerSvc.CurrentBalance(ctx, accountant, c.ID)
		Expect(err).NotTo(HaveOccurred())
		return view.Formatted
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = dbtest.Fixtures{DB: db}
		pub = &recordingPublisher{}
		policy = authz.DefaultPolicy()

		companyID = fx.Company("Acme").ID
		accountant = actorFor(authz.RoleAccountant)
		manager = actorFor(authz.RoleManager)
		alice = actorFor(authz.RoleEmployee)
		bob = actorFor(authz.RoleEmployee)
		rep = actorFor(authz.RoleSalesRep)

		aliceCustody = fx.Custody(companyID, alice.UserID, "100.00", "active")
		bobCustody = fx.Custody(companyID, bob.UserID, "0", "active")
		repCustody = fx.Custody(companyID, rep.UserID, "0", "active")
		build()
	})

	Describe("manual top-up", func() {
		It("stays pending until approved, then credits the custody", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("50.25")})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(ledger.StatusPending))
			Expect(t.Source).To(Equal(ledger.SourceManualAdmin))
			Expect(balanceOf(aliceCustody)).To(Equal("100.00"))

			decided, err := service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.Status).To(Equal(ledger.StatusApproved))
			Expect(*decided.DecidedBy).To(Equal(manager.UserID))
			Expect(balanceOf(aliceCustody)).To(Equal("150.25"))
			Expect(pub.types()).To(Equal([]string{events.EventTypeTransactionRequested, events.EventTypeTransactionDecided}))
		})

		It("needs request_topup", func() {
			_, err := service.RequestManualTopup(ctx, alice, transaction.TopupRequestDTO{ToUserID: bob.UserID, Amount: amount("1")})
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})

		It("rejects non-positive amounts", func() {
			_, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("0")})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeValidationFailed))
		})

		It("needs an active custody on the recipient", func() {
			carol := actorFor(authz.RoleEmployee)
			fx.Custody(companyID, carol.UserID, "0", "frozen")
			_, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: carol.UserID, Amount: amount("1")})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCustodyNotActive))
		})

		It("does not let the requester decide their own request", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideManualTopup(ctx, accountant, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(errors.Is(err, apperrors.ErrSelfDecision)).To(BeTrue())
		})

		It("does not let the recipient approve it by default", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideManualTopup(ctx, alice, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})

		It("lets the recipient approve it when the policy allows", func() {
			policy.RecipientApprovesTopup = true
			build()
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideManualTopup(ctx, alice, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())
		})

		It("requires a comment to reject, and then leaves the balance alone", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("10")})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: no(), Comment: "  "})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCommentRequired))

			decided, err := service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: no(), Comment: "duplicate"})
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.Status).To(Equal(ledger.StatusRejected))
			Expect(decided.DecisionComment).To(Equal("duplicate"))
			Expect(balanceOf(aliceCustody)).To(Equal("100.00"))
		})

		It("refuses a second decision", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("10")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: no(), Comment: "oops"})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeAlreadyDecided))
			Expect(balanceOf(aliceCustody)).To(Equal("110.00"))
		})

		It("treats a transfer id on the top-up endpoint as not found", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeTransactionNotFound))
		})

		It("answers deciders from another company as if the transaction did not exist", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			otherCo := fx.Company("Other").ID
			m := fx.Member(otherCo, "owner")
			stranger := authz.Actor{UserID: m.ID, CompanyID: otherCo, Role: authz.RoleOwner}
			_, foreign := service.DecideManualTopup(ctx, stranger, t.ID, transaction.DecisionDTO{Approve: yes()})
			_, missing := service.DecideManualTopup(ctx, stranger, "missing", transaction.DecisionDTO{Approve: yes()})
			Expect(codeOf(foreign)).To(Equal(apperrors.ErrCodeTransactionNotFound))
			Expect(foreign).To(Equal(missing))

			_, err = service.Get(ctx, stranger, t.ID)
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeTransactionNotFound))
		})

		It("will not approve onto a custody frozen after the request", func() {
			t, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&custodydm.Custody{}).Where("id = ?", aliceCustody.ID).Update("status", "frozen").Error).To(Succeed())

			_, err = service.DecideManualTopup(ctx, manager, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCustodyNotActive))

			got, err := service.Get(ctx, accountant, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(ledger.StatusPending))
		})
	})

	Describe("transfer", func() {
		It("moves money between custodies on approval by the recipient", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("40")})
			Expect(err).NotTo(HaveOccurred())
			Expect(*t.SourceCustodyID).To(Equal(aliceCustody.ID))
			Expect(t.CustodyID).To(Equal(bobCustody.ID))
			Expect(*t.FromUserID).To(Equal(alice.UserID))

			_, err = service.DecideTransfer(ctx, bob, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())
			Expect(balanceOf(aliceCustody)).To(Equal("60.00"))
			Expect(balanceOf(bobCustody)).To(Equal("40.00"))
		})

		It("does not check the balance when requesting", func() {
			_, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("1000")})
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the transfer pending when the sender is short at decision time", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("80")})
			Expect(err).NotTo(HaveOccurred())
			fx.Deduction(aliceCustody, "30")

			_, err = service.DecideTransfer(ctx, manager, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(errors.Is(err, apperrors.ErrInsufficientBalance)).To(BeTrue())

			got, err := service.Get(ctx, accountant, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(ledger.StatusPending))
			Expect(balanceOf(aliceCustody)).To(Equal("70.00"))
			Expect(balanceOf(bobCustody)).To(Equal("0.00"))
		})

		It("approves a transfer of exactly the balance", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("100.00")})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideTransfer(ctx, bob, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())
			Expect(balanceOf(aliceCustody)).To(Equal("0.00"))
		})

		It("only lets one of two competing transfers through", func() {
			first, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("70")})
			Expect(err).NotTo(HaveOccurred())
			second, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: rep.UserID, Amount: amount("70")})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.DecideTransfer(ctx, bob, first.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.DecideTransfer(ctx, rep, second.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeInsufficientBalance))
			Expect(balanceOf(aliceCustody)).To(Equal("30.00"))
		})

		It("settles concurrent decisions on competing transfers with one approval", func() {
			first, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("70")})
			Expect(err).NotTo(HaveOccurred())
			second, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: rep.UserID, Amount: amount("70")})
			Expect(err).NotTo(HaveOccurred())

			deciders := []struct {
				actor authz.Actor
				txID  string
			}{
				{bob, first.ID}, {manager, first.ID},
				{rep, second.ID}, {accountant, second.ID},
			}
			errs := make([]error, len(deciders))
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i, d := range deciders {
				wg.Add(1)
				go func(i int, actor authz.Actor, txID string) {
					defer GinkgoRecover()
					defer wg.Done()
					<-start
					_, errs[i] = service.DecideTransfer(ctx, actor, txID, transaction.DecisionDTO{Approve: yes()})
				}(i, d.actor, d.txID)
			}
			close(start)
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				Expect(codeOf(err)).To(BeElementOf(apperrors.ErrCodeInsufficientBalance, apperrors.ErrCodeAlreadyDecided))
			}
			Expect(succeeded).To(Equal(1))
			Expect(balanceOf(aliceCustody)).To(Equal("30.00"))
		})

		It("refuses transfers to oneself", func() {
			_, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			appErr, _ := apperrors.IsAppError(err)
			Expect(appErr.Details.(apperrors.ValidationErrors).Errors[0].Code).To(Equal(string(apperrors.ErrCodeSelfTransfer)))
		})

		It("needs an active custody on the sender", func() {
			carol := actorFor(authz.RoleEmployee)
			_, err := service.RequestTransfer(ctx, carol, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("1")})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCustodyNotActive))
		})

		It("stops the decision when the receiving custody shows a negative balance", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("10")})
			Expect(err).NotTo(HaveOccurred())
			fx.Deduction(bobCustody, "5")

			_, err = service.DecideTransfer(ctx, bob, t.ID, transaction.DecisionDTO{Approve: yes()})
			Expect(errors.Is(err, apperrors.ErrNegativeBalance)).To(BeTrue())
			Expect(pub.types()).To(ContainElement(events.EventTypeIntegrityViolation))
		})
	})

	Describe("RecordCustomerPayment", func() {
		path := func(a authz.Actor) string {
			return a.CompanyID + "/customer-payments/" + a.UserID + "/1700000000000_proof.jpg"
		}

		It("credits the collector immediately and creates the customer by name", func() {
			t, err := service.RecordCustomerPayment(ctx, rep, transaction.CustomerPaymentDTO{
				Amount:         amount("75.50"),
				CustomerName:   "Al Noor Trading",
				AttachmentPath: path(rep),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Status).To(Equal(ledger.StatusApproved))
			Expect(t.Source).To(Equal(ledger.SourceCustomerPayment))
			Expect(t.CustodyID).To(Equal(repCustody.ID))
			Expect(balanceOf(repCustody)).To(Equal("75.50"))

			_, err = service.RecordCustomerPayment(ctx, rep, transaction.CustomerPaymentDTO{
				Amount:         amount("1"),
				CustomerName:   "al noor trading",
				AttachmentPath: path(rep),
			})
			Expect(err).NotTo(HaveOccurred())
			var count int64
			Expect(db.Model(&customerdm.Customer{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeEquivalentTo(1))
		})

		It("prefers the customer id when both are given", func() {
			existing, _, err := customerResolve(ctx, db, companyID, rep.UserID, "Existing")
			Expect(err).NotTo(HaveOccurred())

			t, err := service.RecordCustomerPayment(ctx, rep, transaction.CustomerPaymentDTO{
				Amount:         amount("1"),
				CustomerID:     existing.ID,
				CustomerName:   "Someone Else",
				AttachmentPath: path(rep),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*t.CustomerID).To(Equal(existing.ID))
		})

		It("requires a customer reference", func() {
			_, err := service.RecordCustomerPayment(ctx, rep, transaction.CustomerPaymentDTO{Amount: amount("1"), AttachmentPath: path(rep)})
			appErr, _ := apperrors.IsAppError(err)
			Expect(appErr.Details.(apperrors.ValidationErrors).Errors[0].Code).To(Equal(string(apperrors.ErrCodeCustomerRequired)))
		})

		It("rejects attachments outside the collector's prefix", func() {
			_, err := service.RecordCustomerPayment(ctx, rep, transaction.CustomerPaymentDTO{
				Amount:         amount("1"),
				CustomerName:   "X",
				AttachmentPath: path(alice),
			})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeValidationFailed))
			Expect(balanceOf(repCustody)).To(Equal("0.00"))
		})

		It("is limited to sales reps", func() {
			_, err := service.RecordCustomerPayment(ctx, alice, transaction.CustomerPaymentDTO{Amount: amount("1"), CustomerName: "X", AttachmentPath: path(alice)})
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("reads", func() {
		It("lists only what the actor may decide", func() {
			topup, err := service.RequestManualTopup(ctx, accountant, transaction.TopupRequestDTO{ToUserID: alice.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())
			transfer, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())

			inbox, err := service.ListInbox(ctx, bob)
			Expect(err).NotTo(HaveOccurred())
			Expect(inbox).To(HaveLen(1))
			Expect(inbox[0].ID).To(Equal(transfer.ID))

			inbox, err = service.ListInbox(ctx, accountant)
			Expect(err).NotTo(HaveOccurred())
			Expect(inbox).To(HaveLen(1))
			Expect(inbox[0].ID).To(Equal(transfer.ID))

			inbox, err = service.ListInbox(ctx, manager)
			Expect(err).NotTo(HaveOccurred())
			Expect(inbox).To(HaveLen(2))
			ids := []string{inbox[0].ID, inbox[1].ID}
			Expect(ids).To(ConsistOf(topup.ID, transfer.ID))
		})

		It("hides transactions from uninvolved employees", func() {
			t, err := service.RequestTransfer(ctx, alice, transaction.TransferRequestDTO{ToUserID: bob.UserID, Amount: amount("1")})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Get(ctx, bob, t.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Get(ctx, rep, t.ID)
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})
	})
})
