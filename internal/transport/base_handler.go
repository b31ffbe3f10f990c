package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// Envelope is the body of every API response.
type Envelope struct {
	OK      bool                `json:"ok"`
	ID      string              `json:"id,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Type    apperrors.ErrorType `json:"type,omitempty"`
	Details interface{}         `json:"details,omitempty"`
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *BaseHandler) WriteOK(w http.ResponseWriter, status int, id string, data interface{}) {
	h.WriteJSON(w, status, Envelope{OK: true, ID: id, Data: data})
}

// WriteError writes a plain failure envelope for transport-level problems.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	errType := apperrors.ErrorTypeInternal
	code := apperrors.ErrorCode("INTERNAL_ERROR")
	switch status {
	case http.StatusBadRequest:
		errType, code = apperrors.ErrorTypeValidation, apperrors.ErrCodeValidationFailed
	case http.StatusUnauthorized:
		errType, code = apperrors.ErrorTypeUnauthorized, apperrors.ErrCodeInvalidToken
	case http.StatusForbidden:
		errType, code = apperrors.ErrorTypeForbidden, apperrors.ErrCodeForbidden
	case http.StatusNotFound:
		errType, code = apperrors.ErrorTypeNotFound, "NOT_FOUND"
	case http.StatusConflict:
		errType, code = apperrors.ErrorTypeConflict, apperrors.ErrCodeDuplicate
	case http.StatusTooManyRequests:
		errType, code = "RATE_LIMITED", "RATE_LIMITED"
	}
	h.WriteJSON(w, status, Envelope{Error: message, Code: code, Type: errType})
}

func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	h.WriteJSON(w, appErr.StatusCode, Envelope{
		Error:   appErr.GetDetailedMessage(),
		Code:    appErr.Code,
		Type:    appErr.Type,
		Details: appErr.Details,
	})
}

// HandleServiceError maps service errors to the failure envelope. Anything that is not an
// AppError is logged and hidden behind a generic 500.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	lg := logger.From(r.Context())
	if appErr, ok := apperrors.IsAppError(err); ok {
		switch {
		case appErr.StatusCode >= 500:
			lg.Error("request failed", "code", appErr.Code, "error", err)
		case appErr.Type == apperrors.ErrorTypeForbidden || appErr.Type == apperrors.ErrorTypeConflict ||
			appErr.Type == apperrors.ErrorTypeInsufficientBalance:
			lg.Warn("request refused", "code", appErr.Code, "error", err)
		}
		h.WriteAppError(w, appErr)
		return
	}
	if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, http.ErrHandlerTimeout) {
		lg.Warn("request aborted", "error", err)
	} else {
		lg.Error("unhandled service error", "error", err)
	}
	h.WriteAppError(w, apperrors.NewInternalError("internal server error", err))
}

// DecodeJSON rejects unknown fields and maps decode failures to a validation error.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request body: "+err.Error(), apperrors.ErrCodeValidationFailed)
	}
	return nil
}

// Actor returns the authenticated actor, writing a 401 when missing.
func (h *BaseHandler) Actor(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok || actor.UserID == "" {
		h.WriteAppError(w, apperrors.ErrInvalidToken)
		return authz.Actor{}, false
	}
	return actor, true
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}
