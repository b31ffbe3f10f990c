package customer_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
	"github.com/frahmantamala/custody-ledger/internal/customer"
	"github.com/frahmantamala/custody-ledger/internal/customer/postgres"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

// staleLookup misses the first name lookup, as a request does when a concurrent one inserts the
// same customer right after it looked.
type staleLookup struct {
	*postgres.CustomerRepository
	missed bool
}

func (s *staleLookup) FindByName(ctx context.Context, companyID, name string) (*customerdm.Customer, error) {
	if !s.missed {
		s.missed = true
		return nil, uow.ErrNotFound
	}
	return s.CustomerRepository.FindByName(ctx, companyID, name)
}

var _ = Describe("Customer", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		repo      *postgres.CustomerRepository
		service   *customer.Service
		companyID string
		rep       authz.Actor
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx := dbtest.Fixtures{DB: db}
		companyID = fx.Company("Acme").ID
		rep = authz.Actor{UserID: fx.Member(companyID, "sales_rep").ID, CompanyID: companyID, Role: authz.RoleSalesRep}

		repo = postgres.NewCustomerRepository(db)
		service = customer.NewService(repo, logger.Discard())
	})

	Describe("Resolve", func() {
		It("matches names case-insensitively before creating", func() {
			first, created, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: "  Gulf Supplies "})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(first.Name).To(Equal("Gulf Supplies"))

			again, created, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: "GULF SUPPLIES"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(again.ID).To(Equal(first.ID))
		})

		It("returns the row a concurrent request created instead of a duplicate", func() {
			first, _, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: "Najd Traders"})
			Expect(err).NotTo(HaveOccurred())

			got, created, err := customer.Resolve(ctx, &staleLookup{CustomerRepository: repo}, companyID, rep.UserID, customer.Ref{Name: "NAJD traders"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(got.ID).To(Equal(first.ID))

			var n int64
			Expect(db.Model(&customerdm.Customer{}).Where("company_id = ?", companyID).Count(&n).Error).To(Succeed())
			Expect(n).To(Equal(int64(1)))
		})

		It("keeps names unique per company regardless of case", func() {
			_, _, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: "Oasis"})
			Expect(err).NotTo(HaveOccurred())

			dup := &customerdm.Customer{ID: "dup-1", CompanyID: companyID, Name: "OASIS", CreatedBy: rep.UserID}
			Expect(errors.Is(db.Create(dup).Error, gorm.ErrDuplicatedKey)).To(BeTrue())
		})

		It("does not resolve ids from another company", func() {
			c, _, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: "Mine"})
			Expect(err).NotTo(HaveOccurred())

			_, _, err = customer.Resolve(ctx, repo, "other-company", rep.UserID, customer.Ref{ID: c.ID})
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeCustomerNotFound))
		})

		It("needs an id or a name", func() {
			_, _, err := customer.Resolve(ctx, repo, companyID, rep.UserID, customer.Ref{Name: " "})
			Expect(err).To(Equal(customer.ErrRefRequired))
		})
	})

	Describe("Service", func() {
		It("creates once and lists by query", func() {
			_, created, err := service.Create(ctx, rep, customer.CreateCustomerDTO{Name: "Desert Rose", Email: "ops@desertrose.example"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			_, created, err = service.Create(ctx, rep, customer.CreateCustomerDTO{Name: "desert rose"})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			_, _, err = service.Create(ctx, rep, customer.CreateCustomerDTO{Name: "Oasis"})
			Expect(err).NotTo(HaveOccurred())

			list, err := service.List(ctx, rep, "rose", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Email).To(Equal("ops@desertrose.example"))
		})

		It("is closed to plain employees", func() {
			employee := authz.Actor{UserID: "e", CompanyID: companyID, Role: authz.RoleEmployee}
			_, err := service.List(ctx, employee, "", 10)
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})
	})
})
