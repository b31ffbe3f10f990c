package dbtest

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	categorydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/category"
	companydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/company"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	ledgerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/ledger"
	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
)

// Fixtures inserts rows directly, bypassing services.
type Fixtures struct {
	DB *gorm.DB
}

func (f Fixtures) Company(name string) *companydm.Company {
	c := &companydm.Company{ID: uuid.NewString(), Name: name, Currency: "SAR"}
	must(f.DB.Create(c).Error)
	return c
}

func (f Fixtures) Member(companyID, role string) *memberdm.Member {
	id := uuid.NewString()
	m := &memberdm.Member{
		ID:           id,
		CompanyID:    companyID,
		Email:        id + "@example.com",
		FullName:     role + " " + id[:8],
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	must(f.DB.Create(m).Error)
	return m
}

func (f Fixtures) Custody(companyID, userID, initial, status string) *custodydm.Custody {
	c := &custodydm.Custody{
		ID:            uuid.NewString(),
		CompanyID:     companyID,
		UserID:        userID,
		InitialAmount: decimal.RequireFromString(initial),
		Currency:      "SAR",
		Status:        status,
		CreatedBy:     userID,
	}
	must(f.DB.Create(c).Error)
	return c
}

func (f Fixtures) Category(companyID, name string) *categorydm.ExpenseCategory {
	c := &categorydm.ExpenseCategory{ID: uuid.NewString(), CompanyID: companyID, Name: name, IsActive: true}
	must(f.DB.Create(c).Error)
	return c
}

// Topup books an already approved top-up.
func (f Fixtures) Topup(c *custodydm.Custody, amount string) *ledgerdm.Transaction {
	tx := &ledgerdm.Transaction{
		ID:        uuid.NewString(),
		CompanyID: c.CompanyID,
		CustodyID: c.ID,
		Type:      "topup",
		Source:    "manual_admin",
		Status:    "approved",
		Amount:    decimal.RequireFromString(amount),
		ToUserID:  &c.UserID,
		CreatedBy: c.CreatedBy,
	}
	must(f.DB.Create(tx).Error)
	return tx
}

// Deduction books an approved expense deduction without an expense row.
func (f Fixtures) Deduction(c *custodydm.Custody, amount string) *ledgerdm.Transaction {
	expenseID := uuid.NewString()
	tx := &ledgerdm.Transaction{
		ID:         uuid.NewString(),
		CompanyID:  c.CompanyID,
		CustodyID:  c.ID,
		Type:       "expense_deduction",
		Source:     "expense",
		Status:     "approved",
		Amount:     decimal.RequireFromString(amount),
		FromUserID: &c.UserID,
		ExpenseID:  &expenseID,
		CreatedBy:  c.CreatedBy,
	}
	must(f.DB.Create(tx).Error)
	return tx
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
