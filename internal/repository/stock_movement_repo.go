package repository

import (
	"context"
	"time"

	"wavyai/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StockMovementRepository interface {
	Create(ctx context.Context, m *model.StockMovement) error
	// OutflowSince sums |quantity_change| of negative movements recorded at or after since.
	OutflowSince(ctx context.Context, businessID uuid.UUID, itemName string, since time.Time) (decimal.Decimal, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) Create(ctx context.Context, m *model.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *stockMovementRepo) OutflowSince(ctx context.Context, businessID uuid.UUID, itemName string, since time.Time) (decimal.Decimal, error) {
	var changes []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Where("business_id = ? AND item_name = ? AND quantity_change < 0 AND recorded_at >= ?",
			businessID, itemName, since.UTC()).
		Pluck("quantity_change", &changes).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range changes {
		total = total.Add(c.Abs())
	}
	return total, nil
}
