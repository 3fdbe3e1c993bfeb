package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WhatsAppPrefix is the transport prefix carried by inbound and outbound addresses.
const WhatsAppPrefix = "whatsapp:"

// Business is one tenant of the assistant. Rows are created out-of-band
// (cmd/seedbusiness) and are read-only to the engines.
type Business struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"not null"`
	OwnerPhone string    `gorm:"uniqueIndex;not null"`
	SheetsURL  *string
	PlaceID    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *Business) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Sheet returns the configured spreadsheet reference or "".
func (b *Business) Sheet() string {
	if b.SheetsURL == nil {
		return ""
	}
	return strings.TrimSpace(*b.SheetsURL)
}

// Place returns the configured review-source id or "".
func (b *Business) Place() string {
	if b.PlaceID == nil {
		return ""
	}
	return strings.TrimSpace(*b.PlaceID)
}

// NormalizeOwnerPhone strips the transport prefix and surrounding whitespace.
// The result is the join key between inbound senders and businesses.
func NormalizeOwnerPhone(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, WhatsAppPrefix)
	return strings.TrimSpace(addr)
}
