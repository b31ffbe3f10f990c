package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/attachment"
	"github.com/frahmantamala/custody-ledger/internal/auth"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/category"
	"github.com/frahmantamala/custody-ledger/internal/custody"
	"github.com/frahmantamala/custody-ledger/internal/customer"
	"github.com/frahmantamala/custody-ledger/internal/expense"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/member"
	"github.com/frahmantamala/custody-ledger/internal/metrics"
	"github.com/frahmantamala/custody-ledger/internal/notification"
	"github.com/frahmantamala/custody-ledger/internal/policy"
	"github.com/frahmantamala/custody-ledger/internal/transaction"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/internal/transport/middleware"
	"github.com/frahmantamala/custody-ledger/internal/transport/swagger"
)

type Handlers struct {
	Auth         *auth.Handler
	Members      *member.Handler
	Categories   *category.Handler
	Policies     *policy.Handler
	Custodies    *custody.Handler
	Ledger       *ledger.Handler
	Transactions *transaction.Handler
	Customers    *customer.Handler
	Expenses     *expense.Handler
	Attachments  *attachment.Handler
	Notify       *notification.Handler
	Health       *HealthHandler
}

// Options carries the cross-cutting pieces. Nil Idempotency or OpenAPI disables them.
type Options struct {
	Base           *transport.BaseHandler
	Resolver       middleware.ActorResolver
	RateLimiter    *middleware.RateLimiter
	Idempotency    *middleware.Idempotency
	OpenAPI        *swagger.Document
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options) {
	base := opts.Base

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(base))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.MetricsEnabled {
		router.Use(metrics.InstrumentHandler)
		router.Handle(opts.MetricsPath, metrics.Handler())
	}
	router.Use(middleware.LoggingMiddleware)

	if opts.OpenAPI != nil {
		router.Handle("/openapi.yml", opts.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	limit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimiter != nil {
		limit = opts.RateLimiter.Middleware(base)
	}
	idempotent := func(next http.Handler) http.Handler { return next }
	if opts.Idempotency != nil {
		idempotent = opts.Idempotency.Middleware(base)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.Health)
		r.Get("/ping", h.Health.Ping)

		r.Route("/auth", func(ar chi.Router) {
			ar.Use(limit)
			ar.Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(opts.Resolver, base))
			pr.Use(limit)
			pr.Use(idempotent)

			pr.Route("/members", func(mr chi.Router) {
				mr.Get("/me", h.Members.GetCurrentMember)
				mr.Get("/", h.Members.ListMembers)
				mr.Group(func(g chi.Router) {
					g.Use(middleware.RequireCapability(base, authz.ManageUsers))
					g.Post("/", h.Members.CreateMember)
					g.Patch("/{id}/role", h.Members.ChangeRole)
				})
			})

			pr.Route("/categories", func(cr chi.Router) {
				cr.Get("/", h.Categories.GetCategories)
				cr.Group(func(g chi.Router) {
					g.Use(middleware.RequireCapability(base, authz.ManageCategories))
					g.Post("/", h.Categories.CreateCategory)
					g.Post("/{id}/deactivate", h.Categories.DeactivateCategory)
				})
			})

			pr.Route("/policies", func(cr chi.Router) {
				cr.Get("/", h.Policies.GetPolicies)
				cr.Group(func(g chi.Router) {
					g.Use(middleware.RequireCapability(base, authz.ManagePolicies))
					g.Post("/", h.Policies.CreatePolicy)
					g.Post("/{id}/toggle", h.Policies.TogglePolicy)
				})
			})

			pr.Route("/custodies", func(cr chi.Router) {
				cr.Get("/", h.Custodies.List)
				cr.Get("/{id}", h.Custodies.Get)
				cr.Get("/{id}/balance", h.Ledger.GetBalance)
				cr.Get("/{id}/transactions", h.Ledger.ListCustodyTransactions)
				cr.Group(func(g chi.Router) {
					g.Use(middleware.RequireCapability(base, authz.ManageCustodies))
					g.Post("/", h.Custodies.Create)
					g.Post("/{id}/freeze", h.Custodies.Freeze)
					g.Post("/{id}/unfreeze", h.Custodies.Unfreeze)
					g.Post("/{id}/close", h.Custodies.Close)
				})
			})

			// Decisions are not capability-gated here: recipients may decide without
			// decide_transaction, and the policy decides.
			pr.Route("/transactions", func(tr chi.Router) {
				tr.With(middleware.RequireCapability(base, authz.RequestTopup)).Post("/topups", h.Transactions.RequestTopup)
				tr.Post("/topups/{id}/decision", h.Transactions.DecideTopup)
				tr.With(middleware.RequireCapability(base, authz.RequestTransfer)).Post("/transfers", h.Transactions.RequestTransfer)
				tr.Post("/transfers/{id}/decision", h.Transactions.DecideTransfer)
				tr.Get("/inbox", h.Transactions.Inbox)
				tr.Get("/{id}", h.Transactions.Get)
			})

			pr.With(middleware.RequireCapability(base, authz.CollectCustomerPayment)).
				Post("/customer-payments", h.Transactions.RecordCustomerPayment)

			pr.Route("/customers", func(cr chi.Router) {
				cr.Get("/", h.Customers.List)
				cr.Post("/", h.Customers.Create)
			})

			pr.Route("/expenses", func(er chi.Router) {
				er.Post("/", h.Expenses.CreateExpense)
				er.Get("/", h.Expenses.ListExpenses)
				er.Get("/{id}", h.Expenses.GetExpense)
				er.Put("/{id}", h.Expenses.UpdateExpense)
				er.With(middleware.RequireCapability(base, authz.SubmitExpense)).Post("/{id}/submit", h.Expenses.SubmitExpense)
			})

			pr.Route("/approvals", func(ar chi.Router) {
				ar.Use(middleware.RequireCapability(base, authz.DecideExpense))
				ar.Get("/pending", h.Expenses.ListPendingApprovals)
				ar.Post("/{id}/decision", h.Expenses.DecideApproval)
			})

			pr.Post("/attachments", h.Attachments.Upload)

			pr.Route("/notifications", func(nr chi.Router) {
				nr.Get("/", h.Notify.List)
				nr.Post("/{id}/read", h.Notify.MarkRead)
			})
		})
	})
}
