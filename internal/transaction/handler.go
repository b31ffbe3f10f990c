package transaction

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/ledger"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	RequestManualTopup(ctx context.Context, actor authz.Actor, dto TopupRequestDTO) (*ledger.Transaction, error)
	RequestTransfer(ctx context.Context, actor authz.Actor, dto TransferRequestDTO) (*ledger.Transaction, error)
	DecideManualTopup(ctx context.Context, actor authz.Actor, id string, dto DecisionDTO) (*ledger.Transaction, error)
	DecideTransfer(ctx context.Context, actor authz.Actor, id string, dto DecisionDTO) (*ledger.Transaction, error)
	RecordCustomerPayment(ctx context.Context, actor authz.Actor, dto CustomerPaymentDTO) (*ledger.Transaction, error)
	Get(ctx context.Context, actor authz.Actor, id string) (*ledger.Transaction, error)
	ListInbox(ctx context.Context, actor authz.Actor) ([]*ledger.Transaction, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) RequestTopup(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto TopupRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	t, err := h.Service.RequestManualTopup(r.Context(), actor, dto)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) RequestTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto TransferRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	t, err := h.Service.RequestTransfer(r.Context(), actor, dto)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) DecideTopup(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.DecideManualTopup)
}

func (h *Handler) DecideTransfer(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Service.DecideTransfer)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, authz.Actor, string, DecisionDTO) (*ledger.Transaction, error)) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto DecisionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	t, err := fn(r.Context(), actor, chi.URLParam(r, "id"), dto)
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) RecordCustomerPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto CustomerPaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	t, err := h.Service.RecordCustomerPayment(r.Context(), actor, dto)
	h.respond(w, r, http.StatusCreated, t, err)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	t, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, t, err)
}

func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	txs, err := h.Service.ListInbox(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{"transactions": ledger.ToResponses(txs)})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, t *ledger.Transaction, err error) {
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, status, t.ID, t.ToResponse())
}
