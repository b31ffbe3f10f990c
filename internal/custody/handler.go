package custody

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor authz.Actor, dto CreateCustodyDTO) (*View, error)
	Get(ctx context.Context, actor authz.Actor, id string) (*View, error)
	List(ctx context.Context, actor authz.Actor) ([]View, error)
	Freeze(ctx context.Context, actor authz.Actor, id string) (*Custody, error)
	Unfreeze(ctx context.Context, actor authz.Actor, id string) (*Custody, error)
	Close(ctx context.Context, actor authz.Actor, id string) (*Custody, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CreateCustodyDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	view, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusCreated, view.Custody.ID, view.ToResponse())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, view.Custody.ID, view.ToResponse())
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	views, err := h.Service.List(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp := make([]CustodyResponse, len(views))
	for i, v := range views {
		resp[i] = v.ToResponse()
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{"custodies": resp})
}

func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.Freeze)
}

func (h *Handler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.Unfreeze)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.Service.Close)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, fn func(context.Context, authz.Actor, string) (*Custody, error)) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	c, err := fn(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, c.ID, map[string]string{"id": c.ID, "status": c.Status})
}
