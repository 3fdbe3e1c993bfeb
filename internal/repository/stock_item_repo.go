package repository

import (
	"context"
	"strings"

	"wavyai/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockItemRepository interface {
	FindByName(ctx context.Context, businessID uuid.UUID, name string) (*model.StockItem, error)
	// SearchByName returns the first item (alphabetical) whose name contains
	// fragment, case-insensitively.
	SearchByName(ctx context.Context, businessID uuid.UUID, fragment string) (*model.StockItem, error)
	Create(ctx context.Context, item *model.StockItem) error
	Update(ctx context.Context, item *model.StockItem) error
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.StockItem, error)
	ListBelowThreshold(ctx context.Context, businessID uuid.UUID) ([]model.StockItem, error)
}

type stockItemRepo struct{ db *gorm.DB }

func NewStockItemRepository(db *gorm.DB) StockItemRepository {
	return &stockItemRepo{db: db}
}

func (r *stockItemRepo) FindByName(ctx context.Context, businessID uuid.UUID, name string) (*model.StockItem, error) {
	var item model.StockItem
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND name = ?", businessID, name).
		First(&item).Error
	return &item, err
}

func (r *stockItemRepo) SearchByName(ctx context.Context, businessID uuid.UUID, fragment string) (*model.StockItem, error) {
	var item model.StockItem
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(fragment))) + "%"
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND LOWER(name) LIKE ? ESCAPE '\\'", businessID, pattern).
		Order("name ASC").
		First(&item).Error
	return &item, err
}

func (r *stockItemRepo) Create(ctx context.Context, item *model.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *stockItemRepo) Update(ctx context.Context, item *model.StockItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *stockItemRepo) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]model.StockItem, error) {
	var items []model.StockItem
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

func (r *stockItemRepo) ListBelowThreshold(ctx context.Context, businessID uuid.UUID) ([]model.StockItem, error) {
	var items []model.StockItem
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND current_quantity <= reorder_threshold", businessID).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
