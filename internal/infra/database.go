package infra

import (
	"fmt"

	"wavyai/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the PostgreSQL store and brings the schema up to date.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the five tables. PostgreSQL-only patches
// run afterwards; other dialects (SQLite in tests) get the plain schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Business{},
		&model.StockItem{},
		&model.StockMovement{},
		&model.PendingAction{},
		&model.SeenReview{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// "oldest pending" lookups used by SEND ORDER and YES
		{"partial index on open pending actions", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_pending_actions_open') THEN
    CREATE INDEX idx_pending_actions_open
        ON pending_actions (business_id, action_type, created_at)
        WHERE status = 'pending';
  END IF;
END $$`},
		{"status check on pending actions", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pending_actions_status') THEN
    ALTER TABLE pending_actions
      ADD CONSTRAINT chk_pending_actions_status CHECK (status IN ('pending', 'completed'));
  END IF;
END $$`},
		{"movement lookup index for the consumption forecast", `
CREATE INDEX IF NOT EXISTS idx_stock_movements_forecast
    ON stock_movements (business_id, item_name, recorded_at)
    WHERE quantity_change < 0`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
