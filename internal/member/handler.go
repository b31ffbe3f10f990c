package member

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	Me(ctx context.Context, actor authz.Actor) (*Member, error)
	List(ctx context.Context, actor authz.Actor, limit, offset int) ([]*Member, error)
	Create(ctx context.Context, actor authz.Actor, dto CreateMemberDTO) (*Member, error)
	ChangeRole(ctx context.Context, actor authz.Actor, id string, dto ChangeRoleDTO) (*Member, error)
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

// GetCurrentMember handles GET /members/me
func (h *Handler) GetCurrentMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	m, err := h.Service.Me(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, m.ID, m)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	limit, offset := transport.Pagination(r)
	members, err := h.Service.List(r.Context(), actor, limit, offset)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, "", MembersResponse{Members: members})
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CreateMemberDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	m, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusCreated, m.ID, m)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto ChangeRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	m, err := h.Service.ChangeRole(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, m.ID, m)
}
