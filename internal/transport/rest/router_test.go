package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/internal/transport/middleware"
	"github.com/frahmantamala/custody-ledger/internal/transport/rest"
	"github.com/frahmantamala/custody-ledger/internal/transport/swagger"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

type tokenTable map[string]authz.Actor

func (t tokenTable) ActorForToken(_ context.Context, token string) (authz.Actor, error) {
	a, ok := t[token]
	if !ok {
		return authz.Actor{}, internal.ErrInvalidToken
	}
	return a, nil
}

var _ = Describe("Router", func() {
	var (
		router *chi.Mux
		mr     *miniredis.Miniredis
	)

	BeforeEach(func() {
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())

		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

		doc, err := swagger.Load(context.Background(), "../../../api/openapi.yml")
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Handlers{
			Health: rest.NewHealthHandler(sqlDB, rdb),
		}, rest.Options{
			Base: transport.NewBaseHandler(logger.Discard()),
			Resolver: tokenTable{
				"employee": {UserID: "u1", CompanyID: "c1", Role: authz.RoleEmployee},
			},
			RateLimiter:    middleware.NewRateLimiter(0, 0),
			OpenAPI:        doc,
			AllowedOrigins: []string{"*"},
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
			Logger:         logger.Discard(),
		})
	})

	serve := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader("{}"))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("answers ping and stamps a trace id", func() {
		rec := serve(http.MethodGet, "/api/v1/ping", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})

	It("reports healthy, then degraded when redis goes away", func() {
		var resp rest.HealthResponse
		rec := serve(http.MethodGet, "/api/v1/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveKey("postgres"))
		Expect(resp.Components).To(HaveKey("redis"))

		mr.Close()
		rec = serve(http.MethodGet, "/api/v1/health", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthDegraded))
		Expect(resp.Components["redis"].Status).To(Equal(rest.HealthDegraded))
	})

	It("rejects protected routes without a token", func() {
		rec := serve(http.MethodGet, "/api/v1/custodies", "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))

		rec = serve(http.MethodGet, "/api/v1/custodies", "bogus")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("short-circuits capability-gated routes", func() {
		for _, path := range []string{"/api/v1/members", "/api/v1/custodies", "/api/v1/categories", "/api/v1/policies", "/api/v1/customer-payments", "/api/v1/transactions/topups"} {
			rec := serve(http.MethodPost, path, "employee")
			Expect(rec.Code).To(Equal(http.StatusForbidden), path)
		}
		rec := serve(http.MethodGet, "/api/v1/approvals/pending", "employee")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("serves metrics and the api document", func() {
		serve(http.MethodGet, "/api/v1/ping", "")
		rec := serve(http.MethodGet, "/metrics", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("http_requests_total"))

		rec = serve(http.MethodGet, "/openapi.yml", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Custody Ledger API"))
	})
})
