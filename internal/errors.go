package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation          ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeConflict            ErrorType = "CONFLICT"
	ErrorTypeInsufficientBalance ErrorType = "INSUFFICIENT_BALANCE"
	ErrorTypeIntegrityViolation  ErrorType = "INTEGRITY_VIOLATION"
	ErrorTypeInternal            ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal            ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount    ErrorCode = "INVALID_AMOUNT"
	ErrCodeInvalidDate      ErrorCode = "INVALID_DATE"
	ErrCodeInvalidCategory  ErrorCode = "INVALID_CATEGORY"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeCommentRequired  ErrorCode = "COMMENT_REQUIRED"
	ErrCodeSelfTransfer     ErrorCode = "SELF_TRANSFER"
	ErrCodeInvalidAttach    ErrorCode = "INVALID_ATTACHMENT"
	ErrCodeCustomerRequired ErrorCode = "CUSTOMER_REQUIRED"
	ErrCodeAttachRequired   ErrorCode = "ATTACHMENT_REQUIRED"
	ErrCodeCategoryBlocked  ErrorCode = "CATEGORY_NOT_ALLOWED"

	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeCrossTenant  ErrorCode = "CROSS_TENANT"
	ErrCodeSelfDecision ErrorCode = "SELF_DECISION"

	ErrCodeCustodyNotFound     ErrorCode = "CUSTODY_NOT_FOUND"
	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeExpenseNotFound     ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeApprovalNotFound    ErrorCode = "APPROVAL_NOT_FOUND"
	ErrCodeCustomerNotFound    ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrCodeCategoryNotFound    ErrorCode = "CATEGORY_NOT_FOUND"
	ErrCodeMemberNotFound      ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodePolicyNotFound      ErrorCode = "POLICY_NOT_FOUND"
	ErrCodeNotificationMissing ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeAlreadyDecided      ErrorCode = "ALREADY_DECIDED"
	ErrCodeInvalidStatus       ErrorCode = "INVALID_STATUS"
	ErrCodeCustodyNotActive    ErrorCode = "CUSTODY_NOT_ACTIVE"
	ErrCodeActiveCustodyExists ErrorCode = "ACTIVE_CUSTODY_EXISTS"
	ErrCodeDuplicate           ErrorCode = "DUPLICATE"

	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeNegativeBalance     ErrorCode = "NEGATIVE_BALANCE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so errors.Is works against the shared sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInsufficientBalanceError is kept apart from Conflict so clients can branch on it.
func NewInsufficientBalanceError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientBalance,
		Code:       ErrCodeInsufficientBalance,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewIntegrityViolationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeIntegrityViolation,
		Code:       ErrCodeNegativeBalance,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

var (
	ErrForbidden           = NewForbiddenError("access denied", ErrCodeForbidden)
	ErrCrossTenant         = NewForbiddenError("access denied", ErrCodeCrossTenant)
	ErrSelfDecision        = NewForbiddenError("requester cannot decide their own request", ErrCodeSelfDecision)
	ErrAlreadyDecided      = NewConflictError("already decided", ErrCodeAlreadyDecided)
	ErrCustodyNotActive    = NewConflictError("custody is not active", ErrCodeCustodyNotActive)
	ErrInsufficientBalance = NewInsufficientBalanceError("insufficient balance")
	ErrNegativeBalance     = NewIntegrityViolationError("ledger integrity violation: negative balance on active custody")
	ErrCommentRequired     = NewValidationError("comment is required when rejecting", ErrCodeCommentRequired)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
