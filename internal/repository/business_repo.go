package repository

import (
	"context"

	"wavyai/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BusinessRepository interface {
	FindByOwnerPhone(ctx context.Context, phone string) (*model.Business, error)
	List(ctx context.Context) ([]model.Business, error)
	ListWithPlaceID(ctx context.Context) ([]model.Business, error)
	// Upsert inserts or updates by owner_phone.
	Upsert(ctx context.Context, b *model.Business) error
}

type businessRepo struct{ db *gorm.DB }

func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepo{db: db}
}

func (r *businessRepo) FindByOwnerPhone(ctx context.Context, phone string) (*model.Business, error) {
	var b model.Business
	err := r.db.WithContext(ctx).Where("owner_phone = ?", phone).First(&b).Error
	return &b, err
}

func (r *businessRepo) List(ctx context.Context) ([]model.Business, error) {
	var out []model.Business
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *businessRepo) ListWithPlaceID(ctx context.Context) ([]model.Business, error) {
	var out []model.Business
	err := r.db.WithContext(ctx).
		Where("place_id IS NOT NULL AND place_id <> ''").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *businessRepo) Upsert(ctx context.Context, b *model.Business) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "sheets_url", "place_id", "updated_at"}),
	}).Create(b).Error
}
