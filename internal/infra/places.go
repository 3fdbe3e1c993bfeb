package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wavyai/internal/dto"

	"github.com/rs/zerolog/log"
)

const (
	defaultPlacesBaseURL       = "https://places.googleapis.com"
	defaultPlacesLegacyBaseURL = "https://maps.googleapis.com"
)

type PlacesConfig struct {
	APIKey        string
	BaseURL       string // Places API (New)
	LegacyBaseURL string // Place Details (legacy)
	Timeout       time.Duration
	Retry         RetryPolicy
}

// PlacesClient reads place details and reviews from Google Places. The New
// API is tried first; the legacy Place Details endpoint is the fallback.
type PlacesClient struct {
	cfg        PlacesConfig
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewPlacesClient(cfg PlacesConfig, cb *CircuitBreaker) *PlacesClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPlacesBaseURL
	}
	if cfg.LegacyBaseURL == "" {
		cfg.LegacyBaseURL = defaultPlacesLegacyBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.LegacyBaseURL = strings.TrimSuffix(cfg.LegacyBaseURL, "/")
	if cb == nil {
		cb = NewCircuitBreaker(DefaultCBConfig("places"))
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("places: GOOGLE_PLACES_API_KEY not set, Review Shield disabled")
	}
	return &PlacesClient{cfg: cfg, httpClient: newHTTPClient(cfg.Timeout), cb: cb}
}

func (c *PlacesClient) Enabled() bool { return c.cfg.APIKey != "" }

func (c *PlacesClient) Breaker() *CircuitBreaker { return c.cb }

// IsCanonicalPlaceID reports whether id is already in the ChIJ form.
func IsCanonicalPlaceID(id string) bool {
	return strings.HasPrefix(id, "ChIJ")
}

// IsHexPlaceID reports whether id is a Maps "0x…:0x…" feature id.
func IsHexPlaceID(id string) bool {
	return strings.Contains(id, "0x") && strings.Contains(id, ":")
}

type searchTextResponse struct {
	Places []struct {
		ID string `json:"id"`
	} `json:"places"`
}

// ResolvePlaceID maps a non-canonical id to a ChIJ id via a text search on the
// business name. Any failure returns placeID unchanged.
func (c *PlacesClient) ResolvePlaceID(ctx context.Context, placeID, businessName string) string {
	if IsCanonicalPlaceID(placeID) || !c.Enabled() || strings.TrimSpace(businessName) == "" {
		return placeID
	}
	body, _ := json.Marshal(map[string]string{"textQuery": businessName})

	var resp searchTextResponse
	err := c.call(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/places:searchText", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
		req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName")
		return req, nil
	}, &resp)
	if err != nil {
		log.Warn().Err(err).Str("place_id", placeID).Msg("places: id resolution failed, using stored id")
		return placeID
	}
	if len(resp.Places) == 0 {
		log.Debug().Str("place_id", placeID).Msg("places: searchText returned no places")
		return placeID
	}
	id := strings.TrimPrefix(strings.TrimSpace(resp.Places[0].ID), "places/")
	if id == "" {
		return placeID
	}
	return id
}

// FetchPlace returns the place's rating summary and reviews.
func (c *PlacesClient) FetchPlace(ctx context.Context, placeID string) (*dto.PlaceDetails, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	details, err := c.fetchNew(ctx, placeID)
	if err == nil {
		return details, nil
	}
	if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
		return nil, err
	}
	log.Debug().Err(err).Str("place_id", placeID).Msg("places: New API failed, trying legacy endpoint")

	legacy, lerr := c.fetchLegacy(ctx, placeID)
	if lerr != nil {
		return nil, fmt.Errorf("places: new api: %v; legacy: %w", err, lerr)
	}
	return legacy, nil
}

type newPlaceResponse struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Rating          float64           `json:"rating"`
	UserRatingCount int               `json:"userRatingCount"`
	Reviews         []json.RawMessage `json:"reviews"`
}

func (c *PlacesClient) fetchNew(ctx context.Context, placeID string) (*dto.PlaceDetails, error) {
	escaped := strings.ReplaceAll(placeID, ":", "%3A")
	endpoint := c.cfg.BaseURL + "/v1/places/" + escaped + "?fields=displayName,rating,userRatingCount,reviews"

	var resp newPlaceResponse
	err := c.call(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &dto.PlaceDetails{
		ID:      placeID,
		Name:    resp.DisplayName.Text,
		Rating:  resp.Rating,
		Total:   resp.UserRatingCount,
		Reviews: NormalizeReviews(resp.Reviews),
	}, nil
}

type legacyPlaceResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string            `json:"name"`
		Rating           float64           `json:"rating"`
		UserRatingsTotal int               `json:"user_ratings_total"`
		Reviews          []json.RawMessage `json:"reviews"`
	} `json:"result"`
}

func (c *PlacesClient) fetchLegacy(ctx context.Context, placeID string) (*dto.PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "name,rating,reviews,user_ratings_total")
	q.Set("key", c.cfg.APIKey)
	endpoint := c.cfg.LegacyBaseURL + "/maps/api/place/details/json?" + q.Encode()

	var resp legacyPlaceResponse
	err := c.call(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("places: legacy status %s %s", resp.Status, resp.ErrorMessage)
	}
	return &dto.PlaceDetails{
		ID:      placeID,
		Name:    resp.Result.Name,
		Rating:  resp.Result.Rating,
		Total:   resp.Result.UserRatingsTotal,
		Reviews: NormalizeReviews(resp.Result.Reviews),
	}, nil
}

// call runs one request through the breaker with bounded retry.
func (c *PlacesClient) call(ctx context.Context, build func() (*http.Request, error), out any) error {
	return c.cb.Execute(func() error {
		return WithRetry(ctx, c.cfg.Retry, func(int) error {
			req, err := build()
			if err != nil {
				return fmt.Errorf("places: create request: %w", err)
			}
			return doRequest(ctx, c.httpClient, "places", req, out)
		})
	})
}

// rawReview covers both shapes: the New API nests author and text in
// objects, the legacy API uses flat fields.
type rawReview struct {
	AuthorAttribution *struct {
		DisplayName string `json:"displayName"`
	} `json:"authorAttribution"`
	AuthorName  string          `json:"author_name"`
	Rating      float64         `json:"rating"`
	Text        json.RawMessage `json:"text"`
	PublishTime string          `json:"publishTime"`
	Time        int64           `json:"time"`
}

// NormalizeReviews converts raw review objects into ReviewRecords. Entries
// that are not JSON objects are skipped.
func NormalizeReviews(raw []json.RawMessage) []dto.ReviewRecord {
	out := make([]dto.ReviewRecord, 0, len(raw))
	for _, r := range raw {
		var rv rawReview
		if err := json.Unmarshal(r, &rv); err != nil {
			continue
		}
		rec := dto.ReviewRecord{Rating: int(rv.Rating), Text: reviewText(rv.Text)}
		switch {
		case rv.AuthorAttribution != nil && rv.AuthorAttribution.DisplayName != "":
			rec.Author = rv.AuthorAttribution.DisplayName
		case rv.AuthorName != "":
			rec.Author = rv.AuthorName
		default:
			rec.Author = "Someone"
		}
		if rv.Time > 0 {
			rec.Time = time.Unix(rv.Time, 0).UTC()
		} else if t, err := time.Parse(time.RFC3339, rv.PublishTime); err == nil {
			rec.Time = t.UTC()
		}
		out = append(out, rec)
	}
	return out
}

func reviewText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}
