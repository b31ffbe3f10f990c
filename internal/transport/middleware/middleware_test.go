package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/internal/transport/middleware"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

type resolverFunc func(ctx context.Context, token string) (authz.Actor, error)

func (f resolverFunc) ActorForToken(ctx context.Context, token string) (authz.Actor, error) {
	return f(ctx, token)
}

func envelopeOf(rec *httptest.ResponseRecorder) transport.Envelope {
	var env transport.Envelope
	Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
	return env
}

func withActor(a authz.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), a)))
		})
	}
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

var _ = Describe("Middleware", func() {
	var base *transport.BaseHandler

	BeforeEach(func() {
		base = transport.NewBaseHandler(logger.Discard())
	})

	Describe("RequestID", func() {
		It("echoes a caller trace id and stores it in context", func() {
			var seen string
			h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = internal.TraceIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.TraceHeader, "trace-123")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			Expect(seen).To(Equal("trace-123"))
			Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-123"))
		})

		It("mints one when absent", func() {
			rec := httptest.NewRecorder()
			middleware.RequestID(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Header().Get(middleware.TraceHeader)).To(HaveLen(36))
		})
	})

	Describe("Authenticate", func() {
		actor := authz.Actor{UserID: "u-1", CompanyID: "co-1", Role: authz.RoleEmployee}
		resolver := resolverFunc(func(_ context.Context, token string) (authz.Actor, error) {
			if token == "good" {
				return actor, nil
			}
			return authz.Actor{}, internal.ErrTokenExpired
		})

		It("requires a bearer token", func() {
			rec := httptest.NewRecorder()
			middleware.Authenticate(resolver, base)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(string(envelopeOf(rec).Code)).To(Equal("INVALID_TOKEN"))
		})

		It("maps resolver errors", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer stale")
			rec := httptest.NewRecorder()
			middleware.Authenticate(resolver, base)(ok).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(string(envelopeOf(rec).Code)).To(Equal("TOKEN_EXPIRED"))
		})

		It("puts the actor and ids into context", func() {
			var got authz.Actor
			var company string
			h := middleware.Authenticate(resolver, base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = authz.ActorFromContext(r.Context())
				company = internal.CompanyIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer good")
			h.ServeHTTP(httptest.NewRecorder(), req)
			Expect(got).To(Equal(actor))
			Expect(company).To(Equal("co-1"))
		})
	})

	Describe("RequireCapability", func() {
		It("passes when any capability matches", func() {
			h := withActor(authz.Actor{UserID: "u", CompanyID: "c", Role: authz.RoleSalesRep})(
				middleware.RequireCapability(base, authz.ViewAll, authz.CollectCustomerPayment)(ok))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("forbids otherwise", func() {
			h := withActor(authz.Actor{UserID: "u", CompanyID: "c", Role: authz.RoleEmployee})(
				middleware.RequireCapability(base, authz.ManageUsers)(ok))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(string(envelopeOf(rec).Code)).To(Equal("FORBIDDEN"))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("answers a panic with the failure envelope", func() {
			h := middleware.RecoveryMiddleware(base)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(errors.New("boom"))
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			env := envelopeOf(rec)
			Expect(env.OK).To(BeFalse())
			Expect(env.Error).NotTo(ContainSubstring("boom"))
		})
	})

	Describe("LoggingMiddleware", func() {
		It("leaves the body readable for the handler", func() {
			var body string
			h := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				buf := new(bytes.Buffer)
				_, _ = buf.ReadFrom(r.Body)
				body = buf.String()
				w.WriteHeader(http.StatusBadRequest)
			}))
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			Expect(body).To(Equal(`{"email":"a@b.c","password":"pw"}`))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("masks secrets in the logged request", func() {
			var out bytes.Buffer
			lg := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
			h := middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","password":"hunter2"}`))
			req.Header.Set("Authorization", "Bearer abc")
			req.Header.Set(middleware.IdempotencyHeader, "k-9")
			req = req.WithContext(logger.Into(req.Context(), lg))
			h.ServeHTTP(httptest.NewRecorder(), req)

			Expect(out.String()).NotTo(ContainSubstring("hunter2"))
			Expect(out.String()).NotTo(ContainSubstring("Bearer abc"))
			Expect(out.String()).To(ContainSubstring("k-9"))
			Expect(out.String()).To(ContainSubstring("a@b.c"))
		})
	})

	Describe("RateLimiter", func() {
		It("limits per actor", func() {
			limiter := middleware.NewRateLimiter(1, 2)
			alice := withActor(authz.Actor{UserID: "alice", CompanyID: "c"})(limiter.Middleware(base)(ok))
			bob := withActor(authz.Actor{UserID: "bob", CompanyID: "c"})(limiter.Middleware(base)(ok))

			codes := []int{}
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				alice.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
				codes = append(codes, rec.Code)
			}
			Expect(codes).To(Equal([]int{204, 204, 429}))

			rec := httptest.NewRecorder()
			bob.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		})

		It("is disabled at zero rate", func() {
			h := middleware.NewRateLimiter(0, 0).Middleware(base)(ok)
			for i := 0; i < 5; i++ {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
				Expect(rec.Code).To(Equal(http.StatusNoContent))
			}
		})

		It("keeps fresh buckets on sweep", func() {
			limiter := middleware.NewRateLimiter(5, 5)
			limiter.Middleware(base)(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(limiter.Sweep()).To(Equal(0))
		})
	})

	Describe("Idempotency", func() {
		var (
			mr      *miniredis.Miniredis
			idem    *middleware.Idempotency
			calls   int32
			handler http.Handler
		)

		BeforeEach(func() {
			mr = miniredis.RunT(GinkgoT())
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(client.Close)
			idem = middleware.NewIdempotency(client, 0)
			atomic.StoreInt32(&calls, 0)

			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				base.WriteOK(w, http.StatusCreated, "tx-1", map[string]int32{"call": n})
			})
			handler = withActor(authz.Actor{UserID: "u-1", CompanyID: "co-1"})(idem.Middleware(base)(inner))
		})

		postBody := func(key, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/topups", strings.NewReader(body))
			if key != "" {
				req.Header.Set(middleware.IdempotencyHeader, key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}
		post := func(key string) *httptest.ResponseRecorder {
			return postBody(key, `{}`)
		}

		It("replays the first response for a repeated key", func() {
			first := post("k-1")
			second := post("k-1")
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
			Expect(second.Code).To(Equal(http.StatusCreated))
			Expect(second.Body.String()).To(Equal(first.Body.String()))
			Expect(second.Header().Get(middleware.IdempotencyReplayHeader)).To(Equal("true"))
		})

		It("rejects a reused key with a different body", func() {
			Expect(postBody("k-4", `{"amount":"10.00"}`).Code).To(Equal(http.StatusCreated))
			rec := postBody("k-4", `{"amount":"99.00"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
		})

		It("runs every request without a key", func() {
			post("")
			post("")
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
		})

		It("reports a key that is still in flight", func() {
			Expect(mr.Set("idem:co-1:u-1:POST:/api/v1/transactions/topups:k-2", "pending")).To(Succeed())
			rec := post("k-2")
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(0)))
		})

		It("falls through when redis is down", func() {
			mr.Close()
			rec := post("k-3")
			Expect(rec.Code).To(Equal(http.StatusCreated))
		})
	})
})
