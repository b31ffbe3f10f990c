package category

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, actor authz.Actor, includeInactive bool) ([]*Category, error)
	Create(ctx context.Context, actor authz.Actor, dto CreateCategoryDTO) (*Category, error)
	Deactivate(ctx context.Context, actor authz.Actor, id string) (*Category, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	categories, err := h.Service.List(r.Context(), actor, r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, "", CategoriesResponse{Categories: categories})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CreateCategoryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	c, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusCreated, c.ID, c)
}

func (h *Handler) DeactivateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	c, err := h.Service.Deactivate(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, c.ID, c)
}
