package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	"github.com/frahmantamala/custody-ledger/internal/core/uow"
)

type Customer struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func FromDataModel(c *customerdm.Customer) *Customer {
	return &Customer{
		ID:        c.ID,
		CompanyID: c.CompanyID,
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
	}
}

// Ref points at a customer either by id or by name. The id wins when both are set.
type Ref struct {
	ID    string
	Name  string
	Phone string
	Email string
}

var ErrRefRequired = apperrors.NewValidationFieldError("customer", "customer_id or customer_name is required", apperrors.ErrCodeCustomerRequired)

// Resolve looks the customer up within the company and, for a name with no case-insensitive
// match, creates it through the same repository. Pass transaction-bound repositories to make
// the creation part of the caller's unit of work.
func Resolve(ctx context.Context, repo uow.CustomerRepository, companyID, actorID string, ref Ref) (*customerdm.Customer, bool, error) {
	if id := strings.TrimSpace(ref.ID); id != "" {
		c, err := repo.GetByID(ctx, id)
		if errors.Is(err, uow.ErrNotFound) || (err == nil && c.CompanyID != companyID) {
			return nil, false, apperrors.NewNotFoundError("customer not found", apperrors.ErrCodeCustomerNotFound)
		}
		return c, false, err
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return nil, false, ErrRefRequired
	}
	existing, err := repo.FindByName(ctx, companyID, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, uow.ErrNotFound) {
		return nil, false, err
	}

	created := &customerdm.Customer{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Name:      name,
		Phone:     strings.TrimSpace(ref.Phone),
		Email:     strings.TrimSpace(ref.Email),
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := repo.CreateIfAbsent(ctx, created)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return created, true, nil
	}
	// A concurrent request created the same name after our lookup.
	existing, err = repo.FindByName(ctx, companyID, name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
