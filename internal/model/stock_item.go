package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockItem is the current inventory snapshot: one row per (business, name).
type StockItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BusinessID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_items_business_name"`
	Name             string          `gorm:"not null;uniqueIndex:idx_stock_items_business_name"`
	CurrentQuantity  decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0"`
	Unit             string          `gorm:"not null;default:''"`
	ReorderThreshold decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0"`
	ReorderQuantity  decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0"`
	SupplierName     string
	SupplierWhatsApp string
	LastUpdated      time.Time
}

func (s *StockItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NeedsReorder reports whether the item is at or below its reorder point.
func (s *StockItem) NeedsReorder() bool {
	return s.CurrentQuantity.LessThanOrEqual(s.ReorderThreshold)
}
