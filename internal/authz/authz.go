// Package authz holds the static role to capability matrix and the policy rules that decide who
// may act on a pending request.
package authz

import (
	"context"
	"sort"
)

type Role string

const (
	RoleOwner          Role = "owner"
	RoleAdmin          Role = "admin"
	RoleAccountant     Role = "accountant"
	RoleEmployee       Role = "employee"
	RoleManager        Role = "manager"
	RoleFinanceManager Role = "finance_manager"
	RoleSalesRep       Role = "sales_rep"
)

var AllRoles = []Role{
	RoleOwner, RoleAdmin, RoleAccountant, RoleEmployee, RoleManager, RoleFinanceManager, RoleSalesRep,
}

func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type Capability string

const (
	RequestTopup           Capability = "request_topup"
	DecideTransaction      Capability = "decide_transaction"
	RequestTransfer        Capability = "request_transfer"
	DecideExpense          Capability = "decide_expense"
	SubmitExpense          Capability = "submit_expense"
	CollectCustomerPayment Capability = "collect_customer_payment"
	ManageUsers            Capability = "manage_users"
	ManageCustodies        Capability = "manage_custodies"
	ManageCategories       Capability = "manage_categories"
	ManagePolicies         Capability = "manage_policies"
	ViewAll                Capability = "view_all"
)

func roles(rs ...Role) map[Role]struct{} {
	m := make(map[Role]struct{}, len(rs))
	for _, r := range rs {
		m[r] = struct{}{}
	}
	return m
}

var matrix = map[Capability]map[Role]struct{}{
	RequestTopup:           roles(RoleOwner, RoleAdmin, RoleAccountant, RoleManager),
	DecideTransaction:      roles(RoleOwner, RoleAdmin, RoleAccountant, RoleManager, RoleFinanceManager),
	RequestTransfer:        roles(AllRoles...),
	DecideExpense:          roles(RoleOwner, RoleAdmin, RoleManager, RoleAccountant, RoleFinanceManager),
	SubmitExpense:          roles(AllRoles...),
	CollectCustomerPayment: roles(RoleSalesRep),
	ManageUsers:            roles(RoleOwner, RoleAdmin, RoleManager),
	ManageCustodies:        roles(RoleOwner, RoleAdmin, RoleAccountant, RoleManager),
	ManageCategories:       roles(RoleOwner, RoleAdmin),
	ManagePolicies:         roles(RoleOwner, RoleAdmin),
	ViewAll:                roles(RoleOwner, RoleAdmin, RoleAccountant, RoleManager, RoleFinanceManager),
}

// Can is a pure lookup in the capability matrix. Unknown roles or capabilities are denied.
func Can(role Role, capability Capability) bool {
	allowed, ok := matrix[capability]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}

// Capabilities lists what a role may do, sorted for stable output.
func Capabilities(role Role) []Capability {
	var out []Capability
	for c, allowed := range matrix {
		if _, ok := allowed[role]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RolesWith lists the roles holding a capability, in AllRoles order.
func RolesWith(capability Capability) []Role {
	var out []Role
	for _, r := range AllRoles {
		if Can(r, capability) {
			out = append(out, r)
		}
	}
	return out
}

// Actor is the authenticated member performing an operation.
type Actor struct {
	UserID    string
	CompanyID string
	Role      Role
	Email     string
}

func (a Actor) Can(c Capability) bool {
	return Can(a.Role, c)
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
