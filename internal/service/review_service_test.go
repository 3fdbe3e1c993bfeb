package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wavyai/internal/dto"
	"wavyai/internal/infra"
	"wavyai/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewFixture struct {
	clock      *fakeClock
	businesses *stubBusinessRepo
	seen       *stubSeenRepo
	actions    *stubPendingRepo
	source     *fakeReviewSource
	llm        *fakeLLM
	messenger  *fakeMessenger
	svc        *reviewService
	biz        *model.Business
}

func newReviewFixture(scheme string) *reviewFixture {
	f := &reviewFixture{
		clock:      newClock(),
		businesses: &stubBusinessRepo{},
		seen:       newStubSeenRepo(),
		actions:    &stubPendingRepo{},
		source:     &fakeReviewSource{resolved: map[string]string{}},
		llm:        &fakeLLM{reply: "Thanks so much, Dana! See you next time."},
		messenger:  &fakeMessenger{},
	}
	f.svc = NewReviewService(f.businesses, f.seen, f.actions, f.source, f.llm, f.messenger, nil, scheme).(*reviewService)
	f.svc.now = f.clock.Now
	f.biz = f.businesses.add("Wavy Garage", "+15550001111", "", "ChIJgarage")
	return f
}

func review(author string, rating int, text string) dto.ReviewRecord {
	return dto.ReviewRecord{Author: author, Rating: rating, Text: text}
}

func (f *reviewFixture) setReviews(rs ...dto.ReviewRecord) {
	f.source.place = &dto.PlaceDetails{ID: "ChIJgarage", Name: "Wavy Garage", Rating: 4.5, Total: 120, Reviews: rs}
}

func TestCheck_FirstRunBackfillsWithoutAlerts(t *testing.T) {
	f := newReviewFixture("")
	ctx := context.Background()
	f.setReviews(review("Ana", 5, "Great service"), review("Ben", 4, "Quick oil change"))

	require.NoError(t, f.svc.Check(ctx, f.biz))
	assert.Len(t, f.seen.rows, 2)
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.actions.rows)
	assert.Empty(t, f.llm.prompts, "backfill drafts no replies")

	f.clock.Advance(30 * time.Minute)
	f.setReviews(review("Cleo", 2, "Waited two hours"), review("Ana", 5, "Great service"), review("Ben", 4, "Quick oil change"))
	require.NoError(t, f.svc.Check(ctx, f.biz))

	assert.Len(t, f.seen.rows, 3)
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "+15550001111", f.messenger.sent[0].To)
	assert.Contains(t, f.messenger.sent[0].Text, "🚨 *URGENT*")
	assert.Contains(t, f.messenger.sent[0].Text, "Thanks so much, Dana! See you next time.")

	replies := f.actions.byType(model.ActionReviewReply)
	require.Len(t, replies, 1)
	assert.Equal(t, "ChIJgarage|Cleo|Waited two hours", *replies[0].ReviewID)
	assert.Equal(t, "Thanks so much, Dana! See you next time.", *replies[0].DraftReply)

	// the same page again changes nothing
	require.NoError(t, f.svc.Check(ctx, f.biz))
	assert.Len(t, f.messenger.sent, 1)
	assert.Len(t, f.actions.rows, 1)
}

func TestCheck_FallbackDraftWhenCompletionFails(t *testing.T) {
	f := newReviewFixture("")
	ctx := context.Background()
	f.setReviews(review("Ana", 5, "Great service"))
	require.NoError(t, f.svc.Check(ctx, f.biz))

	f.llm.err = infra.ErrNotConfigured
	f.setReviews(review("Dev", 5, "Spotless work"))
	require.NoError(t, f.svc.Check(ctx, f.biz))

	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Text, "⭐ *New Review*")
	assert.Contains(t, f.messenger.sent[0].Text, MsgReviewFallback)
	entry := f.seen.rows["ChIJgarage|Dev|Spotless work"]
	require.NotNil(t, entry)
	assert.Equal(t, MsgReviewFallback, entry.ReplyDraft)
}

func TestCheck_ActionRecordedWhenSendFails(t *testing.T) {
	f := newReviewFixture("")
	ctx := context.Background()
	f.setReviews(review("Ana", 5, "Great service"))
	require.NoError(t, f.svc.Check(ctx, f.biz))

	f.messenger.err = errors.New("twilio: upstream returned 500")
	f.setReviews(review("Eve", 1, "Rude staff"))
	require.NoError(t, f.svc.Check(ctx, f.biz))
	assert.Len(t, f.actions.byType(model.ActionReviewReply), 1)
}

func TestCheck_FetchErrorIsReturned(t *testing.T) {
	f := newReviewFixture("")
	f.source.err = errors.New("places: upstream returned 503")

	err := f.svc.Check(context.Background(), f.biz)
	assert.Error(t, err)
	assert.Empty(t, f.seen.rows)
}

func TestCheck_UsesResolvedPlaceID(t *testing.T) {
	f := newReviewFixture("")
	f.source.resolved["ChIJgarage"] = "ChIJcanonical"
	f.setReviews(review("Ana", 5, "Great service"))

	require.NoError(t, f.svc.Check(context.Background(), f.biz))
	assert.Equal(t, []string{"ChIJcanonical"}, f.source.fetched)
	_, ok := f.seen.rows["ChIJgarage|Ana|Great service"]
	assert.True(t, ok, "dedup key uses the stored place id")
}

func TestCheck_FlakyResolutionDoesNotRealert(t *testing.T) {
	f := newReviewFixture("")
	ctx := context.Background()
	hex := f.businesses.add("Hex Garage", "+15550006666", "", "0x1:0x2")
	f.source.resolved["0x1:0x2"] = "ChIJhex"
	f.source.resolveFailsEvery = 2
	f.setReviews(review("Ana", 5, "Great service"), review("Ben", 4, "Quick oil change"))

	for run := 0; run < 4; run++ {
		require.NoError(t, f.svc.Check(ctx, hex))
		f.clock.Advance(30 * time.Minute)
	}

	assert.Equal(t, []string{"ChIJhex", "0x1:0x2", "ChIJhex", "0x1:0x2"}, f.source.fetched)
	assert.Len(t, f.seen.rows, 2)
	_, ok := f.seen.rows["0x1:0x2|Ana|Great service"]
	assert.True(t, ok)
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.actions.byType(model.ActionReviewReply))
}

func TestCheck_SkipsWithoutPlaceOrSource(t *testing.T) {
	f := newReviewFixture("")
	noPlace := f.businesses.add("No Place Cafe", "+15550005555", "", "")
	require.NoError(t, f.svc.Check(context.Background(), noPlace))

	f.source.disabled = true
	require.NoError(t, f.svc.Check(context.Background(), f.biz))
	assert.Empty(t, f.source.fetched)
}

func TestCheckAll_ContinuesPastFailures(t *testing.T) {
	f := newReviewFixture("")
	f.businesses.add("No Place Cafe", "+15550005555", "", "")
	f.source.err = errors.New("boom")

	require.NoError(t, f.svc.CheckAll(context.Background()))
	assert.Equal(t, []string{"ChIJgarage"}, f.source.fetched)

	f.businesses.listErr = errors.New("connection refused")
	assert.Error(t, f.svc.CheckAll(context.Background()))
}

func TestReviewID(t *testing.T) {
	long := "This shop fixed my brakes in under an hour and the price was exactly what they quoted"
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := dto.ReviewRecord{Author: "Ana", Rating: 5, Text: long, Time: at}

	assert.Equal(t, "ChIJx|Ana|"+long[:50], ReviewID(ReviewIDAuthorText, "ChIJx", r))
	assert.Equal(t, "ChIJx_1740830400", ReviewID(ReviewIDTimestamp, "ChIJx", r))

	r.Time = time.Time{}
	assert.Equal(t, "ChIJx|Ana|"+long[:50], ReviewID(ReviewIDTimestamp, "ChIJx", r), "falls back without a timestamp")
}

func TestCheck_TimestampScheme(t *testing.T) {
	f := newReviewFixture(ReviewIDTimestamp)
	r := review("Ana", 5, "Great service")
	r.Time = time.Unix(1740830400, 0).UTC()
	f.setReviews(r)

	require.NoError(t, f.svc.Check(context.Background(), f.biz))
	_, ok := f.seen.rows["ChIJgarage_1740830400"]
	assert.True(t, ok)
}

func TestLiveSummary(t *testing.T) {
	f := newReviewFixture("")
	f.setReviews(review("Ana", 5, "Great service"), review("Ben", 3, "Okay"))

	got := f.svc.LiveSummary(context.Background(), f.biz)
	want := "⭐ 4.5/5 (120 total)\n\n" +
		"*Ana* ⭐⭐⭐⭐⭐\n\"Great service\"\n\n" +
		"*Ben* ⭐⭐⭐\n\"Okay\"\n\n"
	assert.Equal(t, want, got)
	assert.Empty(t, f.seen.rows, "live read stores nothing")

	f.source.err = errors.New("offline")
	assert.Equal(t, MsgReviewsOffline, f.svc.LiveSummary(context.Background(), f.biz))

	f.source.disabled = true
	assert.Equal(t, MsgReviewsOffline, f.svc.LiveSummary(context.Background(), f.biz))
}

func TestFormatReviewAlert(t *testing.T) {
	got := FormatReviewAlert(review("Ana", 4, "Nice"), "Thank you!")
	want := "⭐ *New Review*\n\n*Ana* ⭐⭐⭐⭐\n\"Nice\"\n\n*Suggested reply:*\n\"Thank you!\"\n\nReply *YES* to approve."
	assert.Equal(t, want, got)
}
