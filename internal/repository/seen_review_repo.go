package repository

import (
	"context"

	"wavyai/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SeenReviewRepository interface {
	Exists(ctx context.Context, reviewID string) (bool, error)
	CountByBusiness(ctx context.Context, businessID uuid.UUID) (int64, error)
	// Create ignores a duplicate review_id so a replayed review stays a single row.
	Create(ctx context.Context, r *model.SeenReview) error
	MarkReplied(ctx context.Context, reviewID string) error
}

type seenReviewRepo struct{ db *gorm.DB }

func NewSeenReviewRepository(db *gorm.DB) SeenReviewRepository {
	return &seenReviewRepo{db: db}
}

func (r *seenReviewRepo) Exists(ctx context.Context, reviewID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.SeenReview{}).
		Where("review_id = ?", reviewID).
		Count(&n).Error
	return n > 0, err
}

func (r *seenReviewRepo) CountByBusiness(ctx context.Context, businessID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.SeenReview{}).
		Where("business_id = ?", businessID).
		Count(&n).Error
	return n, err
}

func (r *seenReviewRepo) Create(ctx context.Context, sr *model.SeenReview) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "review_id"}}, DoNothing: true}).
		Create(sr).Error
}

func (r *seenReviewRepo) MarkReplied(ctx context.Context, reviewID string) error {
	return r.db.WithContext(ctx).Model(&model.SeenReview{}).
		Where("review_id = ?", reviewID).
		Update("replied", true).Error
}
