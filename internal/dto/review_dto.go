package dto

import "time"

// ReviewRecord is a review normalised from either Places API shape.
type ReviewRecord struct {
	Author string
	Rating int
	Text   string
	// Time is zero when the source did not report one.
	Time time.Time
}

// PlaceDetails is the subset of a place lookup the assistant uses.
type PlaceDetails struct {
	ID      string
	Name    string
	Rating  float64
	Total   int
	Reviews []ReviewRecord
}
