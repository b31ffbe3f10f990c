package attachment

import (
	"context"
	"io"
	"net/http"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/transport"
)

type ServiceAPI interface {
	Upload(ctx context.Context, actor authz.Actor, kind Kind, filename, contentType string, r io.Reader) (*Upload, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	MaxBytes int64
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI, maxBytes int64) *Handler {
	return &Handler{BaseHandler: base, Service: service, MaxBytes: maxBytes}
}

// Upload accepts multipart form data with a "file" part and a "kind" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+(1<<20))
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.HandleServiceError(w, r, errInvalid("expected multipart form data"))
		return
	}

	kind, valid := ParseKind(r.FormValue("kind"))
	if !valid {
		h.HandleServiceError(w, r, apperrors.NewValidationFieldError("kind", "kind must be expense or customer-payments", apperrors.ErrCodeValidationFailed))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.HandleServiceError(w, r, errInvalid("file is required"))
		return
	}
	defer file.Close()

	up, err := h.Service.Upload(r.Context(), actor, kind, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteOK(w, http.StatusCreated, up.Path, up)
}
