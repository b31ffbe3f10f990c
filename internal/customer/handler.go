package customer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, actor authz.Actor, query string, limit int) ([]*Customer, error)
	Create(ctx context.Context, actor authz.Actor, dto CreateCustomerDTO) (*Customer, bool, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	customers, err := h.Service.List(r.Context(), actor, r.URL.Query().Get("q"), limit)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{"customers": customers})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CreateCustomerDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	c, created, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.WriteOK(w, status, c.ID, c)
}
