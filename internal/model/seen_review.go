package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeenReview is the dedup ledger for external reviews. Immutable once written
// apart from Replied.
type SeenReview struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReviewID     string    `gorm:"uniqueIndex;not null"`
	BusinessID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ReviewerName string
	Rating       int
	ReviewText   string
	ReplyDraft   string
	Replied      bool `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (r *SeenReview) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
