package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementSheetUpdate tags deltas detected while syncing from a spreadsheet.
const MovementSheetUpdate = "sheet_update"

// StockMovement is an append-only record of a quantity change.
// QuantityChange is signed: negative = consumption, positive = restock.
type StockMovement struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BusinessID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_item"`
	ItemName       string          `gorm:"not null;index:idx_stock_movements_item"`
	QuantityChange decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	NewQuantity    decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	Type           string          `gorm:"type:varchar(32);not null"`
	RecordedAt     time.Time       `gorm:"not null;index"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
