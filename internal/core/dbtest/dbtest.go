// Package dbtest opens throwaway SQLite databases with the full schema for package tests.
package dbtest

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	categorydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/category"
	companydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/company"
	custodydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/custody"
	customerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/customer"
	expensedm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/expense"
	ledgerdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/ledger"
	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
	notificationdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/notification"
	policydm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/policy"
)

func Models() []interface{} {
	return []interface{}{
		&companydm.Company{},
		&memberdm.Member{},
		&categorydm.ExpenseCategory{},
		&custodydm.Custody{},
		&ledgerdm.Transaction{},
		&expensedm.Expense{},
		&expensedm.Approval{},
		&customerdm.Customer{},
		&notificationdm.Notification{},
		&policydm.Policy{},
	}
}

// Open returns an in-memory database on a single connection, so transactions serialize the
// same way row locks would on PostgreSQL.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return db, nil
}

// SQLX wraps the same connection for read-side queries.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, "sqlite3"), nil
}
