package repository

import (
	"context"
	"time"

	"wavyai/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PendingActionRepository interface {
	Create(ctx context.Context, a *model.PendingAction) error
	// CountCreatedSince counts actions of the given type for an item regardless of status.
	CountCreatedSince(ctx context.Context, businessID uuid.UUID, actionType, itemName string, since time.Time) (int64, error)
	// OldestPending orders by created_at then id. Two concurrent readers may
	// receive the same row; callers accept that race.
	OldestPending(ctx context.Context, businessID uuid.UUID, actionType string) (*model.PendingAction, error)
	Complete(ctx context.Context, id uuid.UUID) error
	CompletePendingForItem(ctx context.Context, businessID uuid.UUID, actionType, itemName string) (int64, error)
}

type pendingActionRepo struct{ db *gorm.DB }

func NewPendingActionRepository(db *gorm.DB) PendingActionRepository {
	return &pendingActionRepo{db: db}
}

func (r *pendingActionRepo) Create(ctx context.Context, a *model.PendingAction) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *pendingActionRepo) CountCreatedSince(ctx context.Context, businessID uuid.UUID, actionType, itemName string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PendingAction{}).
		Where("business_id = ? AND action_type = ? AND item_name = ? AND created_at >= ?",
			businessID, actionType, itemName, since.UTC()).
		Count(&n).Error
	return n, err
}

func (r *pendingActionRepo) OldestPending(ctx context.Context, businessID uuid.UUID, actionType string) (*model.PendingAction, error) {
	var a model.PendingAction
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND action_type = ? AND status = ?", businessID, actionType, model.ActionPending).
		Order("created_at ASC").
		Order("id ASC").
		First(&a).Error
	return &a, err
}

func (r *pendingActionRepo) Complete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.PendingAction{}).
		Where("id = ?", id).
		Update("status", model.ActionCompleted).Error
}

func (r *pendingActionRepo) CompletePendingForItem(ctx context.Context, businessID uuid.UUID, actionType, itemName string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.PendingAction{}).
		Where("business_id = ? AND action_type = ? AND item_name = ? AND status = ?",
			businessID, actionType, itemName, model.ActionPending).
		Update("status", model.ActionCompleted)
	return res.RowsAffected, res.Error
}
