package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action types. The type decides which inbound command may complete the row.
const (
	ActionStockAlert    = "stock_alert"    // completed by ORDER (superseded) or IGNORE
	ActionPurchaseOrder = "purchase_order" // completed by SEND ORDER
	ActionReviewReply   = "review_reply"   // completed by YES
)

const (
	ActionPending   = "pending"
	ActionCompleted = "completed"
)

// PendingAction is a suspended workflow step awaiting the owner's reply.
type PendingAction struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`
	OwnerPhone string    `gorm:"not null"`
	ActionType string    `gorm:"type:varchar(32);not null"`
	ItemName   *string
	ReviewID   *string
	// ItemData is a snapshot of the item or review at the time the action was created.
	ItemData   datatypes.JSON
	DraftReply *string
	Status     string    `gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (p *PendingAction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ActionPending
	}
	return nil
}
