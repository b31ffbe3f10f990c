// Package attachment owns the object keys of receipts and payment proofs and the stores that
// hold them.
package attachment

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
)

type Kind string

const (
	KindExpense         Kind = "expense"
	KindCustomerPayment Kind = "customer-payments"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindExpense, KindCustomerPayment:
		return Kind(s), true
	}
	return "", false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with an underscore.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Prefix is the directory an actor may reference for one kind of attachment.
func Prefix(companyID string, kind Kind, creatorID string) string {
	return fmt.Sprintf("%s/%s/%s/", companyID, kind, creatorID)
}

// BuildPath returns {company}/{kind}/{creator}/{unix_millis}_{sanitized}.
func BuildPath(companyID string, kind Kind, creatorID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s%d_%s", Prefix(companyID, kind, creatorID), at.UnixMilli(), SanitizeFilename(filename))
}

// Store is the object store behind attachments.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

func errInvalid(msg string) *apperrors.AppError {
	return apperrors.NewValidationFieldError("attachment_path", msg, apperrors.ErrCodeInvalidAttach)
}

// CheckPath validates the shape of a referenced key without touching the store.
func CheckPath(companyID string, kind Kind, creatorID, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errInvalid("attachment is required")
	}
	if strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		return errInvalid("attachment path is malformed")
	}
	prefix := Prefix(companyID, kind, creatorID)
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) || strings.Contains(path[len(prefix):], "/") {
		return errInvalid("attachment path is outside the allowed location")
	}
	return nil
}
