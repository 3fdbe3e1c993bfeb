package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"wavyai/internal/dto"
	"wavyai/internal/model"
	"wavyai/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Clock ────────────────────────────────────────────────────────────────────

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// ── In-memory BusinessRepository ─────────────────────────────────────────────

type stubBusinessRepo struct {
	list    []model.Business
	listErr error
}

var _ repository.BusinessRepository = (*stubBusinessRepo)(nil)

func (r *stubBusinessRepo) add(name, phone, sheet, place string) *model.Business {
	b := model.Business{ID: uuid.New(), Name: name, OwnerPhone: phone}
	if sheet != "" {
		b.SheetsURL = &sheet
	}
	if place != "" {
		b.PlaceID = &place
	}
	r.list = append(r.list, b)
	return &r.list[len(r.list)-1]
}

func (r *stubBusinessRepo) FindByOwnerPhone(_ context.Context, phone string) (*model.Business, error) {
	for i := range r.list {
		if r.list[i].OwnerPhone == phone {
			b := r.list[i]
			return &b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubBusinessRepo) List(_ context.Context) ([]model.Business, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]model.Business(nil), r.list...), nil
}

func (r *stubBusinessRepo) ListWithPlaceID(_ context.Context) ([]model.Business, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Business
	for _, b := range r.list {
		if b.Place() != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubBusinessRepo) Upsert(_ context.Context, b *model.Business) error {
	r.list = append(r.list, *b)
	return nil
}

// ── In-memory StockItemRepository ────────────────────────────────────────────

type stubStockItemRepo struct {
	items map[uuid.UUID]*model.StockItem
}

var _ repository.StockItemRepository = (*stubStockItemRepo)(nil)

func newStubStockItemRepo() *stubStockItemRepo {
	return &stubStockItemRepo{items: make(map[uuid.UUID]*model.StockItem)}
}

func (r *stubStockItemRepo) sorted(businessID uuid.UUID, keep func(*model.StockItem) bool) []model.StockItem {
	var out []model.StockItem
	for _, it := range r.items {
		if it.BusinessID == businessID && keep(it) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *stubStockItemRepo) FindByName(_ context.Context, businessID uuid.UUID, name string) (*model.StockItem, error) {
	for _, it := range r.items {
		if it.BusinessID == businessID && it.Name == name {
			cp := *it
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubStockItemRepo) SearchByName(_ context.Context, businessID uuid.UUID, fragment string) (*model.StockItem, error) {
	frag := strings.ToLower(strings.TrimSpace(fragment))
	found := r.sorted(businessID, func(it *model.StockItem) bool {
		return strings.Contains(strings.ToLower(it.Name), frag)
	})
	if len(found) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &found[0], nil
}

func (r *stubStockItemRepo) Create(_ context.Context, item *model.StockItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *stubStockItemRepo) Update(_ context.Context, item *model.StockItem) error {
	if _, ok := r.items[item.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *stubStockItemRepo) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]model.StockItem, error) {
	return r.sorted(businessID, func(*model.StockItem) bool { return true }), nil
}

func (r *stubStockItemRepo) ListBelowThreshold(_ context.Context, businessID uuid.UUID) ([]model.StockItem, error) {
	return r.sorted(businessID, func(it *model.StockItem) bool { return it.NeedsReorder() }), nil
}

// ── In-memory StockMovementRepository ────────────────────────────────────────

type stubMovementRepo struct {
	rows []model.StockMovement
}

var _ repository.StockMovementRepository = (*stubMovementRepo)(nil)

func (r *stubMovementRepo) Create(_ context.Context, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.rows = append(r.rows, *m)
	return nil
}

func (r *stubMovementRepo) OutflowSince(_ context.Context, businessID uuid.UUID, itemName string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range r.rows {
		if m.BusinessID == businessID && m.ItemName == itemName && m.QuantityChange.IsNegative() && !m.RecordedAt.Before(since) {
			total = total.Add(m.QuantityChange.Abs())
		}
	}
	return total, nil
}

// ── In-memory PendingActionRepository ────────────────────────────────────────

type stubPendingRepo struct {
	rows []*model.PendingAction
}

var _ repository.PendingActionRepository = (*stubPendingRepo)(nil)

func (r *stubPendingRepo) Create(_ context.Context, a *model.PendingAction) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = model.ActionPending
	}
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *stubPendingRepo) CountCreatedSince(_ context.Context, businessID uuid.UUID, actionType, itemName string, since time.Time) (int64, error) {
	var n int64
	for _, a := range r.rows {
		if a.BusinessID == businessID && a.ActionType == actionType &&
			a.ItemName != nil && *a.ItemName == itemName && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *stubPendingRepo) OldestPending(_ context.Context, businessID uuid.UUID, actionType string) (*model.PendingAction, error) {
	var best *model.PendingAction
	for _, a := range r.rows {
		if a.BusinessID != businessID || a.ActionType != actionType || a.Status != model.ActionPending {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) ||
			(a.CreatedAt.Equal(best.CreatedAt) && a.ID.String() < best.ID.String()) {
			best = a
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *stubPendingRepo) Complete(_ context.Context, id uuid.UUID) error {
	for _, a := range r.rows {
		if a.ID == id {
			a.Status = model.ActionCompleted
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPendingRepo) CompletePendingForItem(_ context.Context, businessID uuid.UUID, actionType, itemName string) (int64, error) {
	var n int64
	for _, a := range r.rows {
		if a.BusinessID == businessID && a.ActionType == actionType && a.Status == model.ActionPending &&
			a.ItemName != nil && *a.ItemName == itemName {
			a.Status = model.ActionCompleted
			n++
		}
	}
	return n, nil
}

func (r *stubPendingRepo) byType(actionType string) []*model.PendingAction {
	var out []*model.PendingAction
	for _, a := range r.rows {
		if a.ActionType == actionType {
			out = append(out, a)
		}
	}
	return out
}

// ── In-memory SeenReviewRepository ───────────────────────────────────────────

type stubSeenRepo struct {
	rows map[string]*model.SeenReview
}

var _ repository.SeenReviewRepository = (*stubSeenRepo)(nil)

func newStubSeenRepo() *stubSeenRepo {
	return &stubSeenRepo{rows: make(map[string]*model.SeenReview)}
}

func (r *stubSeenRepo) Exists(_ context.Context, reviewID string) (bool, error) {
	_, ok := r.rows[reviewID]
	return ok, nil
}

func (r *stubSeenRepo) CountByBusiness(_ context.Context, businessID uuid.UUID) (int64, error) {
	var n int64
	for _, sr := range r.rows {
		if sr.BusinessID == businessID {
			n++
		}
	}
	return n, nil
}

func (r *stubSeenRepo) Create(_ context.Context, sr *model.SeenReview) error {
	if _, ok := r.rows[sr.ReviewID]; ok {
		return nil
	}
	cp := *sr
	r.rows[sr.ReviewID] = &cp
	return nil
}

func (r *stubSeenRepo) MarkReplied(_ context.Context, reviewID string) error {
	if sr, ok := r.rows[reviewID]; ok {
		sr.Replied = true
	}
	return nil
}

// ── Gateway fakes ────────────────────────────────────────────────────────────

type fakeSheets struct {
	byRef map[string][]map[string]string
	errs  map[string]error
	calls int
}

var _ SheetReader = (*fakeSheets)(nil)

func newFakeSheets() *fakeSheets {
	return &fakeSheets{byRef: map[string][]map[string]string{}, errs: map[string]error{}}
}

func (f *fakeSheets) Read(_ context.Context, ref string) ([]map[string]string, error) {
	f.calls++
	if err := f.errs[ref]; err != nil {
		return nil, err
	}
	return f.byRef[ref], nil
}

type sentMessage struct{ To, Text string }

type fakeMessenger struct {
	sent []sentMessage
	err  error
}

var _ Messenger = (*fakeMessenger)(nil)

func (f *fakeMessenger) Send(_ context.Context, addr, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{To: addr, Text: text})
	return nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
	systems []string
}

var _ Completer = (*fakeLLM)(nil)

func (f *fakeLLM) Complete(_ context.Context, system, user string, _ int) (string, error) {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeReviewSource struct {
	disabled bool
	resolved map[string]string
	// every n-th resolution falls back to the stored id, 0 never
	resolveFailsEvery int
	resolveCalls      int
	place             *dto.PlaceDetails
	err               error
	fetched           []string
}

var _ ReviewSource = (*fakeReviewSource)(nil)

func (f *fakeReviewSource) Enabled() bool { return !f.disabled }

func (f *fakeReviewSource) ResolvePlaceID(_ context.Context, placeID, _ string) string {
	f.resolveCalls++
	if f.resolveFailsEvery > 0 && f.resolveCalls%f.resolveFailsEvery == 0 {
		return placeID
	}
	if id, ok := f.resolved[placeID]; ok {
		return id
	}
	return placeID
}

func (f *fakeReviewSource) FetchPlace(_ context.Context, placeID string) (*dto.PlaceDetails, error) {
	f.fetched = append(f.fetched, placeID)
	if f.err != nil {
		return nil, f.err
	}
	if f.place == nil {
		return nil, errors.New("no place")
	}
	return f.place, nil
}

// sheetRow builds a zipped spreadsheet row.
func sheetRow(name, qty, threshold, reorder, unit, supplier, supplierWA string) map[string]string {
	return map[string]string{
		dto.ColItemName:         name,
		dto.ColCurrentQuantity:  qty,
		dto.ColReorderThreshold: threshold,
		dto.ColReorderQuantity:  reorder,
		dto.ColUnit:             unit,
		dto.ColSupplierName:     supplier,
		dto.ColSupplierWhatsApp: supplierWA,
	}
}
