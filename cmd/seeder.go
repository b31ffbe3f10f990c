package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/frahmantamala/custody-ledger/internal/authz"
	categorydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/category"
	companydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/company"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
	policydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/policy"
)

const seedCompanyName = "Demo Trading Co"

var (
	clearData    bool
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a demo company with one member per role, expense categories and custodies for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := initLogger(cfg)

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer sqlDB.Close()
		db, err := initGorm(sqlDB, lg)
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}

		return db.Transaction(func(tx *gorm.DB) error {
			var company companydm.Company
			err := tx.Where("name = ?", seedCompanyName).First(&company).Error
			switch {
			case err == nil && clearData:
				if err := clearCompany(tx, company.ID); err != nil {
					return err
				}
				fmt.Println("Cleared demo company data")
			case err == nil:
				fmt.Println("demo company already exists; ensuring members, categories and custodies")
			default:
				company = companydm.Company{ID: uuid.NewString(), Name: seedCompanyName, Currency: cfg.Ledger.DefaultCurrency}
				if err := tx.Create(&company).Error; err != nil {
					return fmt.Errorf("failed to insert company: %w", err)
				}
				fmt.Println("Seeded company:", company.Name)
			}

			members := map[authz.Role]*memberdm.Member{}
			for _, role := range authz.AllRoles {
				m, err := ensureMember(tx, company.ID, role, string(hash))
				if err != nil {
					return err
				}
				members[role] = m
			}

			categories := []struct {
				Name string
				Desc string
			}{
				{"Travel", "business travel and transportation"},
				{"Meals", "meals and client entertainment"},
				{"Office", "office supplies and equipment"},
				{"Fuel", "vehicle fuel"},
				{"Miscellaneous", "other expenses"},
			}
			for _, c := range categories {
				row := categorydm.ExpenseCategory{ID: uuid.NewString(), CompanyID: company.ID, Name: c.Name, Description: c.Desc, IsActive: true}
				res := tx.Where("company_id = ? AND name = ?", company.ID, c.Name).FirstOrCreate(&row)
				if res.Error != nil {
					return fmt.Errorf("failed to insert expense category %s: %w", c.Name, res.Error)
				}
				if res.RowsAffected > 0 {
					fmt.Printf("Seeded expense category: %s\n", c.Name)
				}
			}

			receiptsAbove := decimal.NewFromInt(500)
			receipts := policydm.Policy{
				ID:          uuid.NewString(),
				CompanyID:   company.ID,
				Name:        "Receipts",
				Description: "attach a receipt to expenses above 500",
				Rules:       policydm.Rules{RequireAttachmentAbove: &receiptsAbove},
				IsActive:    true,
				CreatedBy:   members[authz.RoleOwner].ID,
			}
			res := tx.Where("company_id = ? AND name = ?", company.ID, receipts.Name).FirstOrCreate(&receipts)
			if res.Error != nil {
				return fmt.Errorf("failed to insert policy %s: %w", receipts.Name, res.Error)
			}
			if res.RowsAffected > 0 {
				fmt.Printf("Seeded policy: %s\n", receipts.Name)
			}

			funder := members[authz.RoleAccountant]
			for _, role := range []authz.Role{authz.RoleEmployee, authz.RoleSalesRep, authz.RoleManager} {
				holder := members[role]
				row := custodydm.Custody{
					ID:            uuid.NewString(),
					CompanyID:     company.ID,
					UserID:        holder.ID,
					InitialAmount: decimal.NewFromInt(1000),
					Currency:      company.Currency,
					Status:        "active",
					CreatedBy:     funder.ID,
				}
				res := tx.Where("company_id = ? AND user_id = ? AND status = ?", company.ID, holder.ID, "active").FirstOrCreate(&row)
				if res.Error != nil {
					return fmt.Errorf("failed to insert custody for %s: %w", holder.Email, res.Error)
				}
				if res.RowsAffected > 0 {
					fmt.Printf("Seeded custody for %s with %s %s\n", holder.Email, row.InitialAmount.StringFixed(2), row.Currency)
				}
			}

			fmt.Printf("Seed complete. Log in as <role>@demo.local with password %q\n", seedPassword)
			return nil
		})
	},
}

func ensureMember(tx *gorm.DB, companyID string, role authz.Role, hash string) (*memberdm.Member, error) {
	email := string(role) + "@demo.local"
	m := memberdm.Member{
		ID:           uuid.NewString(),
		CompanyID:    companyID,
		Email:        email,
		FullName:     "Demo " + string(role),
		PasswordHash: hash,
		Role:         string(role),
		IsActive:     true,
	}
	res := tx.Where("email = ?", email).FirstOrCreate(&m)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to insert member %s: %w", email, res.Error)
	}
	if res.RowsAffected > 0 {
		fmt.Println("Seeded member:", email)
	}
	return &m, nil
}

// clearCompany removes everything below the company, children first.
func clearCompany(tx *gorm.DB, companyID string) error {
	tables := []string{"notifications", "custody_transactions", "approvals", "expenses", "customers", "custodies", "policies", "expense_categories", "members"}
	for _, t := range tables {
		if err := tx.Exec("DELETE FROM "+t+" WHERE company_id = ?", companyID).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return nil
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing demo data before seeding")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "Password for every seeded member")
}
