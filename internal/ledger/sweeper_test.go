package ledger_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	uowPostgres "github.com/frahmantamala/custody-ledger/internal/core/uow/postgres"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

var _ = Describe("Sweeper", func() {
	var (
		ctx     context.Context
		mr      *miniredis.Miniredis
		rdb     *redis.Client
		locker  *redislock.Client
		sweeper *ledger.Sweeper
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		locker = redislock.New(rdb)

		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx := dbtest.Fixtures{DB: db}
		co := fx.Company("Acme").ID
		emp := fx.Member(co, "employee")
		c := fx.Custody(co, emp.ID, "1.00", "active")
		fx.Deduction(c, "2.00")

		svc := ledger.NewService(uowPostgres.NewGormUoW(db), nil, nil, authz.DefaultPolicy(), logger.Discard())
		sweeper = ledger.NewSweeper(svc, locker, "@every 1h", time.Minute, logger.Discard())
	})

	AfterEach(func() {
		_ = rdb.Close()
		mr.Close()
	})

	It("sweeps when the lock is free and releases it", func() {
		ran, violations, err := sweeper.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
		Expect(violations).To(HaveLen(1))
		Expect(mr.Exists("custody-ledger:integrity-sweep")).To(BeFalse())
	})

	It("skips while another instance holds the lock", func() {
		held, err := locker.Obtain(ctx, "custody-ledger:integrity-sweep", time.Minute, nil)
		Expect(err).NotTo(HaveOccurred())
		defer held.Release(ctx)

		ran, violations, err := sweeper.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeFalse())
		Expect(violations).To(BeEmpty())
	})

	It("runs without a lock client", func() {
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		svc := ledger.NewService(uowPostgres.NewGormUoW(db), nil, nil, authz.DefaultPolicy(), logger.Discard())
		s := ledger.NewSweeper(svc, nil, "@every 1h", time.Minute, logger.Discard())

		ran, violations, err := s.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
		Expect(violations).To(BeEmpty())
	})
})
