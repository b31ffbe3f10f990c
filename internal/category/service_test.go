package category_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/category"
	"github.com/frahmantamala/custody-ledger/internal/category/postgres"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

func codeOf(err error) apperrors.ErrorCode {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected AppError, got %v", err)
	return appErr.Code
}

var _ = Describe("Category Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		fx       dbtest.Fixtures
		service  *category.Service
		admin    authz.Actor
		employee authz.Actor
		company  string
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = dbtest.Fixtures{DB: db}
		service = category.NewService(postgres.NewCategoryRepository(db), logger.Discard())

		company = fx.Company("Acme").ID
		admin = authz.Actor{UserID: fx.Member(company, "admin").ID, CompanyID: company, Role: authz.RoleAdmin}
		employee = authz.Actor{UserID: fx.Member(company, "employee").ID, CompanyID: company, Role: authz.RoleEmployee}
	})

	Describe("Create", func() {
		It("creates an active category for the actor's company", func() {
			c, err := service.Create(ctx, admin, category.CreateCategoryDTO{Name: "  Fuel ", Description: "petrol"})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Name).To(Equal("Fuel"))
			Expect(c.CompanyID).To(Equal(company))
			Expect(c.IsActive).To(BeTrue())
		})

		It("requires manage_categories", func() {
			_, err := service.Create(ctx, employee, category.CreateCategoryDTO{Name: "Fuel"})
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})

		It("rejects a duplicate name within the company", func() {
			_, err := service.Create(ctx, admin, category.CreateCategoryDTO{Name: "Fuel"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(ctx, admin, category.CreateCategoryDTO{Name: "Fuel"})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeDuplicate))
		})

		It("allows the same name in another company", func() {
			other := fx.Company("Globex").ID
			otherAdmin := authz.Actor{UserID: fx.Member(other, "owner").ID, CompanyID: other, Role: authz.RoleOwner}
			_, err := service.Create(ctx, admin, category.CreateCategoryDTO{Name: "Fuel"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(ctx, otherAdmin, category.CreateCategoryDTO{Name: "Fuel"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("validates the name", func() {
			_, err := service.Create(ctx, admin, category.CreateCategoryDTO{Name: "x"})
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeValidationFailed))
		})
	})

	Describe("List and Deactivate", func() {
		var fuel, meals string

		BeforeEach(func() {
			fuel = fx.Category(company, "Fuel").ID
			meals = fx.Category(company, "Meals").ID
			fx.Category(fx.Company("Globex").ID, "Hotels")
		})

		It("lists only the company's categories by name", func() {
			list, err := service.List(ctx, employee, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Name).To(Equal("Fuel"))
			Expect(list[1].Name).To(Equal("Meals"))
		})

		It("hides deactivated categories from members", func() {
			c, err := service.Deactivate(ctx, admin, meals)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.IsActive).To(BeFalse())

			list, err := service.List(ctx, employee, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))

			list, err = service.List(ctx, admin, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
		})

		It("refuses another company's category", func() {
			other := fx.Company("Initech").ID
			otherAdmin := authz.Actor{UserID: fx.Member(other, "admin").ID, CompanyID: other, Role: authz.RoleAdmin}
			_, err := service.Deactivate(ctx, otherAdmin, fuel)
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCategoryNotFound))
		})

		It("reports a missing category", func() {
			_, err := service.Deactivate(ctx, admin, "missing")
			Expect(codeOf(err)).To(Equal(apperrors.ErrCodeCategoryNotFound))
		})

		It("answers IsActive per company", func() {
			ok, err := service.IsActive(ctx, company, fuel)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = service.IsActive(ctx, "other-company", fuel)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, err = service.Deactivate(ctx, admin, fuel)
			Expect(err).NotTo(HaveOccurred())
			ok, err = service.IsActive(ctx, company, fuel)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = service.IsActive(ctx, company, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})
})
