package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wavyai/internal/dto"
	"wavyai/internal/infra"
	"wavyai/internal/model"
	"wavyai/internal/repository"

	"github.com/rs/zerolog/log"
)

// Review id schemes.
const (
	ReviewIDAuthorText = "author_text" // {place}|{author}|{first 50 runes of text}
	ReviewIDTimestamp  = "timestamp"   // {place}_{unix time}
)

const (
	reviewDraftTokens = 300
	reviewTextPrefix  = 50
)

// ReviewService ingests new Google reviews, drafts replies and alerts the owner.
type ReviewService interface {
	Check(ctx context.Context, b *model.Business) error
	// CheckAll fails only when the business list cannot be loaded.
	CheckAll(ctx context.Context) error
	// LiveSummary is a read-through of the current top reviews; nothing is stored.
	LiveSummary(ctx context.Context, b *model.Business) string
}

type reviewService struct {
	businesses repository.BusinessRepository
	seen       repository.SeenReviewRepository
	actions    repository.PendingActionRepository
	source     ReviewSource
	llm        Completer
	messenger  Messenger
	metrics    *infra.Metrics
	idScheme   string
	now        func() time.Time
}

func NewReviewService(
	businesses repository.BusinessRepository,
	seen repository.SeenReviewRepository,
	actions repository.PendingActionRepository,
	source ReviewSource,
	llm Completer,
	messenger Messenger,
	metrics *infra.Metrics,
	idScheme string,
) ReviewService {
	if idScheme == "" {
		idScheme = ReviewIDAuthorText
	}
	return &reviewService{
		businesses: businesses,
		seen:       seen,
		actions:    actions,
		source:     source,
		llm:        llm,
		messenger:  messenger,
		metrics:    metrics,
		idScheme:   idScheme,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ReviewID derives the dedup key for a review.
func ReviewID(scheme, placeID string, r dto.ReviewRecord) string {
	if scheme == ReviewIDTimestamp && !r.Time.IsZero() {
		return fmt.Sprintf("%s_%d", placeID, r.Time.Unix())
	}
	return fmt.Sprintf("%s|%s|%s", placeID, r.Author, prefix(r.Text, reviewTextPrefix))
}

func (s *reviewService) Check(ctx context.Context, b *model.Business) error {
	placeID := b.Place()
	if placeID == "" || !s.source.Enabled() {
		return nil
	}
	logger := log.With().Str("business_id", b.ID.String()).Str("business", b.Name).Logger()

	resolved := s.source.ResolvePlaceID(ctx, placeID, b.Name)
	if resolved != placeID {
		logger.Info().Str("resolved", resolved).Msg("reviews: resolved place id")
	}
	place, err := s.source.FetchPlace(ctx, resolved)
	if err != nil {
		return fmt.Errorf("fetch reviews: %w", err)
	}
	if len(place.Reviews) == 0 {
		logger.Debug().Msg("reviews: provider returned no reviews")
		return nil
	}

	known, err := s.seen.CountByBusiness(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("count seen reviews: %w", err)
	}
	backfill := known == 0
	if backfill {
		logger.Info().Int("reviews", len(place.Reviews)).Msg("reviews: first run, recording existing reviews without alerts")
	}

	for _, r := range place.Reviews {
		// keyed on the stored id: resolution can fail from one run to the next
		id := ReviewID(s.idScheme, placeID, r)
		exists, err := s.seen.Exists(ctx, id)
		if err != nil {
			logger.Error().Err(err).Str("review_id", id).Msg("reviews: dedup lookup failed")
			continue
		}
		if exists {
			continue
		}

		entry := &model.SeenReview{
			ReviewID:     id,
			BusinessID:   b.ID,
			ReviewerName: r.Author,
			Rating:       r.Rating,
			ReviewText:   r.Text,
			CreatedAt:    s.now(),
		}
		if backfill {
			if err := s.seen.Create(ctx, entry); err != nil {
				logger.Error().Err(err).Str("review_id", id).Msg("reviews: failed to record review")
				continue
			}
			s.metrics.ReviewIngested("backfill")
			continue
		}

		entry.ReplyDraft = s.draftReply(ctx, b.Name, r)
		if err := s.seen.Create(ctx, entry); err != nil {
			logger.Error().Err(err).Str("review_id", id).Msg("reviews: failed to record review")
			continue
		}
		s.alert(ctx, b, id, r, entry.ReplyDraft)
		s.metrics.ReviewIngested("alerted")
	}
	return nil
}

func (s *reviewService) draftReply(ctx context.Context, businessName string, r dto.ReviewRecord) string {
	draft, err := s.llm.Complete(ctx, "", reviewPrompt(businessName, r), reviewDraftTokens)
	if err != nil || strings.TrimSpace(draft) == "" {
		log.Warn().Err(err).Msg("reviews: reply draft unavailable, using fallback")
		return MsgReviewFallback
	}
	return strings.TrimSpace(draft)
}

// alert notifies the owner and stores the review_reply action. The action is
// stored even when the send fails; the message itself is in the dead letter queue.
func (s *reviewService) alert(ctx context.Context, b *model.Business, reviewID string, r dto.ReviewRecord, draft string) {
	if err := s.messenger.Send(ctx, b.OwnerPhone, FormatReviewAlert(r, draft)); err != nil && !errors.Is(err, infra.ErrNotConfigured) {
		log.Error().Err(err).Str("review_id", reviewID).Msg("reviews: alert send failed")
	}
	rid, d := reviewID, draft
	action := &model.PendingAction{
		BusinessID: b.ID,
		OwnerPhone: b.OwnerPhone,
		ActionType: model.ActionReviewReply,
		ReviewID:   &rid,
		DraftReply: &d,
		Status:     model.ActionPending,
		CreatedAt:  s.now(),
	}
	if err := s.actions.Create(ctx, action); err != nil {
		log.Error().Err(err).Str("review_id", reviewID).Msg("reviews: failed to record pending reply")
	}
}

func (s *reviewService) CheckAll(ctx context.Context) error {
	businesses, err := s.businesses.ListWithPlaceID(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for i := range businesses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := &businesses[i]
		if err := s.Check(ctx, b); err != nil {
			log.Error().Err(err).Str("business_id", b.ID.String()).Str("business", b.Name).Msg("reviews: check failed")
		}
	}
	return nil
}

func (s *reviewService) LiveSummary(ctx context.Context, b *model.Business) string {
	placeID := b.Place()
	if placeID == "" || !s.source.Enabled() {
		return MsgReviewsOffline
	}
	place, err := s.source.FetchPlace(ctx, s.source.ResolvePlaceID(ctx, placeID, b.Name))
	if err != nil {
		log.Warn().Err(err).Str("business", b.Name).Msg("reviews: live read failed")
		return MsgReviewsOffline
	}
	return FormatLiveReviews(place)
}
