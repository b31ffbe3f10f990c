package category_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/category"
	"github.com/frahmantamala/custody-ledger/internal/category/postgres"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/transport"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

var _ = Describe("Category Handler", func() {
	var (
		router  chi.Router
		company string
		actor   authz.Actor
	)

	BeforeEach(func() {
		db, err := dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx := dbtest.Fixtures{DB: db}
		company = fx.Company("Acme").ID
		actor = authz.Actor{UserID: fx.Member(company, "owner").ID, CompanyID: company, Role: authz.RoleOwner}

		svc := category.NewService(postgres.NewCategoryRepository(db), logger.Discard())
		h := category.NewHandler(transport.NewBaseHandler(logger.Discard()), svc)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
			})
		})
		router.Get("/categories", h.GetCategories)
		router.Post("/categories", h.CreateCategory)
		router.Post("/categories/{id}/deactivate", h.DeactivateCategory)
	})

	do := func(method, path string, body interface{}) (*httptest.ResponseRecorder, transport.Envelope) {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		var env transport.Envelope
		Expect(json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
		return rec, env
	}

	It("creates, lists and deactivates", func() {
		rec, env := do(http.MethodPost, "/categories", map[string]string{"name": "Travel"})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(env.OK).To(BeTrue())
		id := env.ID
		Expect(id).NotTo(BeEmpty())

		rec, env = do(http.MethodGet, "/categories", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(env.Data).To(HaveKeyWithValue("categories", HaveLen(1)))

		rec, _ = do(http.MethodPost, "/categories/"+id+"/deactivate", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))

		_, env = do(http.MethodGet, "/categories", nil)
		Expect(env.Data).To(HaveKeyWithValue("categories", BeEmpty()))
	})

	It("returns a conflict envelope for duplicates", func() {
		do(http.MethodPost, "/categories", map[string]string{"name": "Travel"})
		rec, env := do(http.MethodPost, "/categories", map[string]string{"name": "Travel"})
		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(env.OK).To(BeFalse())
		Expect(string(env.Code)).To(Equal("DUPLICATE"))
	})

	It("rejects unknown fields", func() {
		rec, env := do(http.MethodPost, "/categories", map[string]string{"name": "Travel", "colour": "red"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(string(env.Code)).To(Equal("VALIDATION_FAILED"))
	})
})
