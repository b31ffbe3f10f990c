package notification_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/core/events"
	memberPostgres "github.com/frahmantamala/custody-ledger/internal/member/postgres"
	"github.com/frahmantamala/custody-ledger/internal/notification"
	"github.com/frahmantamala/custody-ledger/internal/notification/postgres"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

type memorySink struct {
	mu   sync.Mutex
	got  []*notification.Notification
	fail bool
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Deliver(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.got = append(s.got, n)
	return nil
}

func (s *memorySink) users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, n := range s.got {
		out[i] = n.UserID
	}
	return out
}

type collector struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (c *collector) Enqueue(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *collector) usersFor(kind notification.Kind) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, n := range c.got {
		if n.Kind == kind {
			out = append(out, n.UserID)
		}
	}
	return out
}

var _ = Describe("Dispatcher", func() {
	It("delivers every enqueued notification to all sinks", func() {
		a, b := &memorySink{}, &memorySink{}
		d := notification.NewDispatcher(notification.DispatcherConfig{Workers: 3, QueueSize: 50}, logger.Discard(), a, b)
		d.Start()
		for i := 0; i < 20; i++ {
			Expect(d.Enqueue(&notification.Notification{UserID: "u"})).To(Succeed())
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(d.Flush(ctx)).To(Succeed())
		d.Shutdown(ctx)

		Expect(a.users()).To(HaveLen(20))
		Expect(b.users()).To(HaveLen(20))
	})

	It("keeps going when a sink fails", func() {
		bad, good := &memorySink{fail: true}, &memorySink{}
		d := notification.NewDispatcher(notification.DispatcherConfig{Workers: 1}, logger.Discard(), bad, good)
		d.Start()
		Expect(d.Enqueue(&notification.Notification{UserID: "u"})).To(Succeed())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.Shutdown(ctx)
		Expect(good.users()).To(Equal([]string{"u"}))
	})

	It("drops when the queue is full", func() {
		d := notification.NewDispatcher(notification.DispatcherConfig{Workers: 1, QueueSize: 1}, logger.Discard(), &memorySink{})
		Expect(d.Enqueue(&notification.Notification{})).To(Succeed())
		Expect(d.Enqueue(&notification.Notification{})).To(MatchError(notification.ErrQueueFull))
	})
})

var _ = Describe("Subscriber", func() {
	var (
		ctx        context.Context
		fx         dbtest.Fixtures
		out        *collector
		sub        *notification.Subscriber
		company    string
		accountant string
		manager    string
		employee   string
		rep        string
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = dbtest.Fixtures{DB: db}
		company = fx.Company("Acme").ID
		accountant = fx.Member(company, "accountant").ID
		manager = fx.Member(company, "manager").ID
		employee = fx.Member(company, "employee").ID
		rep = fx.Member(company, "sales_rep").ID
		fx.Member(fx.Company("Globex").ID, "owner")

		out = &collector{}
		sub = notification.NewSubscriber(memberPostgres.NewMemberRepository(db), out, logger.Discard())
	})

	It("tells the recipient and other deciders about a transfer", func() {
		ev := events.NewTransactionRequestedEvent("tx-1", company, "transfer", "50.00", employee, rep)
		Expect(sub.HandleTransactionRequested(ctx, ev)).To(Succeed())
		Expect(out.usersFor(notification.KindTransferRequested)).To(ConsistOf(rep, accountant, manager))
	})

	It("does not notify the requester among deciders", func() {
		ev := events.NewTransactionRequestedEvent("tx-1", company, "topup", "50.00", accountant, employee)
		Expect(sub.HandleTransactionRequested(ctx, ev)).To(Succeed())
		Expect(out.usersFor(notification.KindTopupRequested)).To(ConsistOf(employee, manager))
	})

	It("tells creator and recipient about a decision but not the decider", func() {
		ev := events.NewTransactionDecidedEvent("tx-1", company, "transfer", "approved", "5.00", employee, rep, rep)
		Expect(sub.HandleTransactionDecided(ctx, ev)).To(Succeed())
		Expect(out.usersFor(notification.KindTransactionDecided)).To(ConsistOf(employee))
	})

	It("routes expense submissions to approvers other than the submitter", func() {
		ev := events.NewExpenseSubmittedEvent("e-1", "a-1", company, manager, "12.00")
		Expect(sub.HandleExpenseSubmitted(ctx, ev)).To(Succeed())
		Expect(out.usersFor(notification.KindExpenseSubmitted)).To(ConsistOf(accountant))
	})

	It("alerts custody managers about integrity violations", func() {
		ev := events.NewIntegrityViolationEvent("c-1", company, "-3.00")
		Expect(sub.HandleIntegrityViolation(ctx, ev)).To(Succeed())
		Expect(out.usersFor(notification.KindIntegrity)).To(ConsistOf(accountant, manager))
	})

	It("rejects mismatched events", func() {
		ev := events.NewExpenseDecidedEvent("e-1", "a-1", company, "approved", "1.00", employee, manager)
		Expect(sub.HandleTransactionDecided(ctx, ev)).NotTo(Succeed())
	})

	It("is wired through the event bus", func() {
		bus := events.NewEventBus(logger.Discard())
		sub.RegisterEventHandlers(bus)
		Expect(bus.PublishSync(ctx, events.NewExpenseDecidedEvent("e-1", "a-1", company, "rejected", "1.00", employee, manager))).To(Succeed())
		Expect(out.usersFor(notification.KindExpenseDecided)).To(Equal([]string{employee}))
	})
})

var _ = Describe("Notification Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		service *notification.Service
		sink    *notification.DBSink
		alice   authz.Actor
		bob     authz.Actor
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		repo := postgres.NewNotificationRepository(db)
		service = notification.NewService(repo, logger.Discard())
		sink = notification.NewDBSink(repo)
		alice = authz.Actor{UserID: "alice", CompanyID: "co"}
		bob = authz.Actor{UserID: "bob", CompanyID: "co"}
	})

	deliver := func(id, user string, at time.Time) {
		Expect(sink.Deliver(ctx, &notification.Notification{
			ID: id, CompanyID: "co", UserID: user, Kind: notification.KindExpenseDecided, Title: "t", CreatedAt: at,
		})).To(Succeed())
	}

	It("lists own notifications newest first and marks them read", func() {
		now := time.Now().UTC()
		deliver("n-1", "alice", now.Add(-time.Minute))
		deliver("n-2", "alice", now)
		deliver("n-3", "bob", now)

		list, err := service.ListForUser(ctx, alice, notification.ListQuery{})
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal("n-2"))

		Expect(service.MarkRead(ctx, alice, "n-2")).To(Succeed())
		Expect(service.MarkRead(ctx, alice, "n-2")).To(Succeed())

		unread, err := service.ListForUser(ctx, alice, notification.ListQuery{UnreadOnly: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(unread).To(HaveLen(1))
		Expect(unread[0].ID).To(Equal("n-1"))
	})

	It("hides other users' notifications", func() {
		deliver("n-1", "alice", time.Now())
		err := service.MarkRead(ctx, bob, "n-1")
		appErr, ok := apperrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(apperrors.ErrCodeNotificationMissing))
	})
})
