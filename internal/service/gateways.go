package service

import (
	"context"

	"wavyai/internal/dto"
)

// Messenger delivers a text message to a transport address.
type Messenger interface {
	Send(ctx context.Context, addr, text string) error
}

// Completer is a single-turn text completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// SheetReader returns spreadsheet rows keyed by header.
type SheetReader interface {
	Read(ctx context.Context, ref string) ([]map[string]string, error)
}

// ReviewSource looks up places and their reviews.
type ReviewSource interface {
	Enabled() bool
	ResolvePlaceID(ctx context.Context, placeID, businessName string) string
	FetchPlace(ctx context.Context, placeID string) (*dto.PlaceDetails, error)
}
