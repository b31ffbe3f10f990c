package ledger

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	CurrentBalance(ctx context.Context, actor authz.Actor, custodyID string) (*BalanceView, error)
	ListForCustody(ctx context.Context, actor authz.Actor, custodyID string, limit, offset int) ([]*Transaction, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	custodyID := chi.URLParam(r, "id")

	view, err := h.Service.CurrentBalance(r.Context(), actor, custodyID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, view.CustodyID, view)
}

func (h *Handler) ListCustodyTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	limit, offset := transport.Pagination(r)

	txs, err := h.Service.ListForCustody(r.Context(), actor, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusOK, "", map[string]interface{}{
		"transactions": ToResponses(txs),
		"limit":        limit,
		"offset":       offset,
	})
}
