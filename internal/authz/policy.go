package authz

import (
	errors "github.com/frahmantamala/custody-ledger/internal"
)

type InboundKind string

const (
	InboundTopup    InboundKind = "topup"
	InboundTransfer InboundKind = "transfer"
)

// Inbound describes a pending transaction from the point of view of a would-be decider.
type Inbound struct {
	Kind        InboundKind
	CompanyID   string
	CreatedBy   string
	RecipientID string
}

// Policy carries the configurable rules. Tenant isolation is not configurable.
type Policy struct {
	DistinctDecider          bool
	RecipientAcceptsTransfer bool
	RecipientApprovesTopup   bool
}

func DefaultPolicy() Policy {
	return Policy{DistinctDecider: true, RecipientAcceptsTransfer: true}
}

func (p Policy) Require(a Actor, c Capability) error {
	if !a.Can(c) {
		return errors.ErrForbidden
	}
	return nil
}

func (p Policy) RequireSameCompany(a Actor, companyID string) error {
	if a.CompanyID == "" || a.CompanyID != companyID {
		return errors.ErrCrossTenant
	}
	return nil
}

// Scope reports a resource owned by another company with the caller's own not-found error,
// so a foreign id cannot be told apart from an unknown one.
func (p Policy) Scope(a Actor, companyID string, notFound error) error {
	if a.CompanyID == "" || a.CompanyID != companyID {
		return notFound
	}
	return nil
}

// CanDecideTransaction evaluates the decision rules for a pending top-up or transfer.
// The inbox listing and the decision endpoints both go through here.
func (p Policy) CanDecideTransaction(a Actor, in Inbound) error {
	if err := p.RequireSameCompany(a, in.CompanyID); err != nil {
		return err
	}
	if p.DistinctDecider && a.UserID == in.CreatedBy {
		return errors.ErrSelfDecision
	}
	if a.Can(DecideTransaction) {
		return nil
	}
	if a.UserID == in.RecipientID {
		switch in.Kind {
		case InboundTransfer:
			if p.RecipientAcceptsTransfer {
				return nil
			}
		case InboundTopup:
			if p.RecipientApprovesTopup {
				return nil
			}
		}
	}
	return errors.ErrForbidden
}

func (p Policy) CanDecideExpense(a Actor, companyID, createdBy string) error {
	if err := p.RequireSameCompany(a, companyID); err != nil {
		return err
	}
	if !a.Can(DecideExpense) {
		return errors.ErrForbidden
	}
	if p.DistinctDecider && a.UserID == createdBy {
		return errors.ErrSelfDecision
	}
	return nil
}

// CanView allows company members with view_all, or any of the involved users.
func (p Policy) CanView(a Actor, companyID string, involved ...string) error {
	if err := p.RequireSameCompany(a, companyID); err != nil {
		return err
	}
	if a.Can(ViewAll) {
		return nil
	}
	for _, id := range involved {
		if id != "" && id == a.UserID {
			return nil
		}
	}
	return errors.ErrForbidden
}
