package expense

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor authz.Actor, dto ExpenseDTO) (*Expense, error)
	Update(ctx context.Context, actor authz.Actor, id string, dto ExpenseDTO) (*Expense, error)
	Submit(ctx context.Context, actor authz.Actor, id string) (*Expense, *Approval, error)
	DecideApproval(ctx context.Context, actor authz.Actor, approvalID string, dto ApprovalDecisionDTO) (*Approval, error)
	Get(ctx context.Context, actor authz.Actor, id string) (*View, error)
	List(ctx context.Context, actor authz.Actor, q ListQuery) ([]*Expense, error)
	ListPendingApprovals(ctx context.Context, actor authz.Actor) ([]PendingApproval, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto ExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	e, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusCreated, e.ID, e.ToResponse())
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto ExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	e, err := h.Service.Update(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, e.ID, e.ToResponse())
}

func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	e, a, err := h.Service.Submit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, a.ID, a.ToResponse(e))
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	data := map[string]interface{}{"expense": view.Expense.ToResponse()}
	if view.Approval != nil {
		data["approval"] = view.Approval.ToResponse(nil)
	}
	h.WriteOK(w, http.StatusOK, view.Expense.ID, data)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	limit, offset := transport.Pagination(r)
	expenses, err := h.Service.List(r.Context(), actor, ListQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		resp[i] = e.ToResponse()
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{
		"expenses": resp,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	pending, err := h.Service.ListPendingApprovals(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp := make([]ApprovalResponse, len(pending))
	for i, p := range pending {
		resp[i] = p.Approval.ToResponse(p.Expense)
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{"approvals": resp})
}

func (h *Handler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto ApprovalDecisionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	a, err := h.Service.DecideApproval(r.Context(), actor, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, a.ID, a.ToResponse(nil))
}
