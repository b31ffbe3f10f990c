package policy_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/policy"
	"github.com/frahmantamala/custody-ledger/internal/policy/postgres"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

func codeOf(err error) apperrors.ErrorCode {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected AppError, got %v", err)
	return appErr.Code
}

func fieldCodes(err error) map[string]string {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected AppError, got %v", err)
	details, ok := appErr.Details.(apperrors.ValidationErrors)
	Expect(ok).To(BeTrue())
	out := map[string]string{}
	for _, e := range details.Errors {
		out[e.Field] = e.Code
	}
	return out
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var _ = Describe("Policy Service", func() {
	var (
		ctx      context.Context
		fx       dbtest.Fixtures
		service  *policy.Service
		admin    authz.Actor
		employee authz.Actor
		company  string
	)

	BeforeEach(func() {
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		fx = dbtest.Fixtures{DB: db}
		service = policy.NewService(postgres.NewPolicyRepository(db), authz.DefaultPolicy(), logger.Discard())

		company = fx.Company("Acme").ID
		admin = authz.Actor{UserID: fx.Member(company, "admin").ID, CompanyID: company, Role: authz.RoleAdmin}
		employee = authz.Actor{UserID: fx.Member(company, "employee").ID, CompanyID: company, Role: authz.RoleEmployee}
	})

	Describe("Create", func() {
		It("stores the rules as given", func() {
			p, err := service.Create(ctx, admin, policy.CreatePolicyDTO{
				Name:     " Receipts ",
				Priority: 2,
				Rules:    policy.RulesDTO{RequireAttachmentAbove: dec("500"), BlockedCategories: []string{"cat-1"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("Receipts"))
			Expect(p.IsActive).To(BeTrue())
			Expect(p.CreatedBy).To(Equal(admin.UserID))

			list, err := service.List(ctx, employee, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Rules.RequireAttachmentAbove.String()).To(Equal("500"))
			Expect(list[0].Rules.BlockedCategories).To(ConsistOf("cat-1"))
		})

		It("requires manage_policies", func() {
			_, err := service.Create(ctx, employee, policy.CreatePolicyDTO{Name: "Receipts"})
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})

		It("validates the name and the thresholds", func() {
			_, err := service.Create(ctx, admin, policy.CreatePolicyDTO{
				Name:     "R",
				Priority: -1,
				Rules:    policy.RulesDTO{RequireAttachmentAbove: dec("-5"), AutoApproveAmount: dec("1.005")},
			})
			codes := fieldCodes(err)
			Expect(codes).To(HaveKey("name"))
			Expect(codes).To(HaveKey("priority"))
			Expect(codes).To(HaveKeyWithValue("require_attachment_above", string(apperrors.ErrCodeInvalidAmount)))
			Expect(codes).To(HaveKeyWithValue("auto_approve_amount", string(apperrors.ErrCodeInvalidAmount)))
		})
	})

	Describe("List and Toggle", func() {
		It("orders by priority and hides inactive policies from members", func() {
			off := false
			_, err := service.Create(ctx, admin, policy.CreatePolicyDTO{Name: "Second", Priority: 5})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(ctx, admin, policy.CreatePolicyDTO{Name: "First", Priority: 1})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(ctx, admin, policy.CreatePolicyDTO{Name: "Dormant", IsActive: &off})
			Expect(err).NotTo(HaveOccurred())

			list, err := service.List(ctx, employee, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Name).To(Equal("First"))
			Expect(list[1].Name).To(Equal("Second"))

			list, err = service.List(ctx, admin, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(3))
		})

		It("flips a policy on and off", func() {
			p, err := service.Create(ctx, admin, policy.CreatePolicyDTO{Name: "Receipts", Rules: policy.RulesDTO{RequireAttachmentAbove: dec("10")}})
			Expect(err).NotTo(HaveOccurred())

			toggled, err := service.Toggle(ctx, admin, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(toggled.IsActive).To(BeFalse())
			set, err := service.ActiveSet(ctx, company)
			Expect(err).NotTo(HaveOccurred())
			Expect(set).To(BeEmpty())

			toggled, err = service.Toggle(ctx, admin, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(toggled.IsActive).To(BeTrue())

			_, err = service.Toggle(ctx, employee, p.ID)
			Expect(errors.Is(err, apperrors.ErrForbidden)).To(BeTrue())
		})

		It("treats another company's policy like an unknown one", func() {
			p, err := service.Create(ctx, admin, policy.CreatePolicyDTO{Name: "Receipts"})
			Expect(err).NotTo(HaveOccurred())
			other := fx.Company("Globex").ID
			otherAdmin := authz.Actor{UserID: fx.Member(other, "admin").ID, CompanyID: other, Role: authz.RoleAdmin}

			_, foreign := service.Toggle(ctx, otherAdmin, p.ID)
			_, missing := service.Toggle(ctx, otherAdmin, "missing")
			Expect(codeOf(foreign)).To(Equal(apperrors.ErrCodePolicyNotFound))
			Expect(foreign).To(Equal(missing))
		})
	})
})

var _ = Describe("Set.Check", func() {
	rule := func(name string, r policy.RulesDTO) *policy.Policy {
		p := &policy.Policy{Name: name, IsActive: true}
		p.Rules.RequireAttachmentAbove = r.RequireAttachmentAbove
		p.Rules.AllowedCategories = r.AllowedCategories
		p.Rules.BlockedCategories = r.BlockedCategories
		return p
	}
	amount := decimal.RequireFromString

	It("passes everything when there are no policies", func() {
		Expect(policy.Set(nil).Check("fuel", amount("1000000"), false)).To(Succeed())
	})

	It("requires an attachment strictly above the threshold", func() {
		set := policy.Set{rule("Receipts", policy.RulesDTO{RequireAttachmentAbove: dec("500")})}
		Expect(set.Check("fuel", amount("500.00"), false)).To(Succeed())
		Expect(set.Check("fuel", amount("500.01"), true)).To(Succeed())
		Expect(fieldCodes(set.Check("fuel", amount("500.01"), false))).
			To(HaveKeyWithValue("attachment_path", string(apperrors.ErrCodeAttachRequired)))
	})

	It("applies allowed and blocked categories", func() {
		set := policy.Set{
			rule("No alcohol", policy.RulesDTO{BlockedCategories: []string{"bar"}}),
			rule("Field staff", policy.RulesDTO{AllowedCategories: []string{"fuel", "meals"}}),
		}
		Expect(set.Check("fuel", amount("1"), false)).To(Succeed())
		Expect(fieldCodes(set.Check("bar", amount("1"), false))).
			To(HaveKeyWithValue("category_id", string(apperrors.ErrCodeCategoryBlocked)))
		Expect(fieldCodes(set.Check("hotel", amount("1"), false))).
			To(HaveKeyWithValue("category_id", string(apperrors.ErrCodeCategoryBlocked)))
	})

	It("reports the first policy in priority order", func() {
		set := policy.Set{
			rule("Receipts", policy.RulesDTO{RequireAttachmentAbove: dec("0")}),
			rule("No alcohol", policy.RulesDTO{BlockedCategories: []string{"bar"}}),
		}
		err := set.Check("bar", amount("5"), false)
		Expect(err.Error()).To(ContainSubstring("Receipts"))
	})
})
