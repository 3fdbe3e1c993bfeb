package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wavyai/internal/dto"
	"wavyai/internal/infra"
	"wavyai/internal/model"
	"wavyai/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const forecastWindowDays = 7

// StockService keeps StockItems in line with each business's spreadsheet and
// pages the owner when an item reaches its reorder point.
type StockService interface {
	// Reconcile syncs the sheet, then returns every under-threshold item that
	// was applied from this read. Items missing from the sheet or on a malformed
	// row are not evaluated. Alerts inside the cool-down window come back with
	// Suppressed set.
	Reconcile(ctx context.Context, b *model.Business) ([]dto.StockAlert, error)
	// Sync runs only the read and upsert steps and returns the number of rows applied.
	Sync(ctx context.Context, b *model.Business) (int, error)
	// RunAll reconciles every business; one failing business never stops the batch.
	RunAll(ctx context.Context) error
	Summary(ctx context.Context, b *model.Business) (string, error)
	SendWeeklySummaries(ctx context.Context) error
}

type StockConfig struct {
	DefaultSheet string        // used when a business has no sheets_url
	Cooldown     time.Duration // minimum gap between two alerts for the same item
}

type stockService struct {
	businesses repository.BusinessRepository
	items      repository.StockItemRepository
	movements  repository.StockMovementRepository
	actions    repository.PendingActionRepository
	sheets     SheetReader
	messenger  Messenger
	metrics    *infra.Metrics
	cfg        StockConfig
	now        func() time.Time
}

func NewStockService(
	businesses repository.BusinessRepository,
	items repository.StockItemRepository,
	movements repository.StockMovementRepository,
	actions repository.PendingActionRepository,
	sheets SheetReader,
	messenger Messenger,
	metrics *infra.Metrics,
	cfg StockConfig,
) StockService {
	return &stockService{
		businesses: businesses,
		items:      items,
		movements:  movements,
		actions:    actions,
		sheets:     sheets,
		messenger:  messenger,
		metrics:    metrics,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *stockService) sheetRef(b *model.Business) string {
	if ref := b.Sheet(); ref != "" {
		return ref
	}
	return s.cfg.DefaultSheet
}

func (s *stockService) readRows(ctx context.Context, b *model.Business) ([]dto.StockRow, error) {
	records, err := s.sheets.Read(ctx, s.sheetRef(b))
	if errors.Is(err, infra.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows := make([]dto.StockRow, 0, len(records))
	for i, rec := range records {
		row, ok, err := ParseStockRow(rec)
		if err != nil {
			log.Warn().Err(err).Str("business_id", b.ID.String()).Int("row", i+2).Msg("stock: skipping malformed row")
			continue
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *stockService) Sync(ctx context.Context, b *model.Business) (int, error) {
	applied, err := s.sync(ctx, b)
	return len(applied), err
}

// sync upserts every parsed row and returns the names that were applied.
func (s *stockService) sync(ctx context.Context, b *model.Business) (map[string]struct{}, error) {
	rows, err := s.readRows(ctx, b)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if err := s.upsert(ctx, b, row); err != nil {
			// committed rows stay committed; the next sync picks this one up again
			log.Error().Err(err).Str("business_id", b.ID.String()).Str("item", row.Name).Msg("stock: upsert failed")
			continue
		}
		applied[row.Name] = struct{}{}
	}
	return applied, nil
}

func (s *stockService) upsert(ctx context.Context, b *model.Business, row dto.StockRow) error {
	now := s.now()
	existing, err := s.items.FindByName(ctx, b.ID, row.Name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.items.Create(ctx, &model.StockItem{
			BusinessID:       b.ID,
			Name:             row.Name,
			CurrentQuantity:  row.CurrentQuantity,
			Unit:             row.Unit,
			ReorderThreshold: row.ReorderThreshold,
			ReorderQuantity:  row.ReorderQuantity,
			SupplierName:     row.SupplierName,
			SupplierWhatsApp: row.SupplierWhatsApp,
			LastUpdated:      now,
		})
	}
	if err != nil {
		return err
	}

	delta := row.CurrentQuantity.Sub(existing.CurrentQuantity)
	existing.CurrentQuantity = row.CurrentQuantity
	existing.Unit = row.Unit
	existing.ReorderThreshold = row.ReorderThreshold
	existing.ReorderQuantity = row.ReorderQuantity
	existing.SupplierName = row.SupplierName
	existing.SupplierWhatsApp = row.SupplierWhatsApp
	existing.LastUpdated = now
	if err := s.items.Update(ctx, existing); err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	return s.movements.Create(ctx, &model.StockMovement{
		BusinessID:     b.ID,
		ItemName:       row.Name,
		QuantityChange: delta,
		NewQuantity:    row.CurrentQuantity,
		Type:           model.MovementSheetUpdate,
		RecordedAt:     now,
	})
}

func (s *stockService) Reconcile(ctx context.Context, b *model.Business) ([]dto.StockAlert, error) {
	applied, err := s.sync(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(applied) == 0 {
		return nil, nil
	}

	stored, err := s.items.ListBelowThreshold(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list alert candidates: %w", err)
	}

	// stored rows the sheet no longer vouches for carry a stale quantity
	low := stored[:0]
	for _, item := range stored {
		if _, ok := applied[item.Name]; ok {
			low = append(low, item)
		} else {
			log.Debug().Str("business_id", b.ID.String()).Str("item", item.Name).Msg("stock: not in this read, skipping alert")
		}
	}

	alerts := make([]dto.StockAlert, 0, len(low))
	for i := range low {
		item := &low[i]
		alert := dto.StockAlert{
			ItemName:         item.Name,
			CurrentQuantity:  item.CurrentQuantity,
			ReorderThreshold: item.ReorderThreshold,
			ReorderQuantity:  item.ReorderQuantity,
			Unit:             item.Unit,
			SupplierName:     item.SupplierName,
			SupplierWhatsApp: item.SupplierWhatsApp,
			DaysLeft:         s.forecast(ctx, b, item),
		}

		recent, err := s.actions.CountCreatedSince(ctx, b.ID, model.ActionStockAlert, item.Name, s.now().Add(-s.cfg.Cooldown))
		if err != nil {
			log.Error().Err(err).Str("item", item.Name).Msg("stock: cool-down lookup failed, not alerting")
			alert.Suppressed = true
		} else if recent > 0 {
			alert.Suppressed = true
		}
		if alert.Suppressed {
			s.metrics.StockAlert("suppressed")
			alerts = append(alerts, alert)
			continue
		}

		s.raise(ctx, b, alert)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// raise notifies the owner and records the stock_alert action. A failed send
// records nothing so the next run tries again.
func (s *stockService) raise(ctx context.Context, b *model.Business, alert dto.StockAlert) {
	err := s.messenger.Send(ctx, b.OwnerPhone, FormatStockAlert(alert))
	if err != nil && !errors.Is(err, infra.ErrNotConfigured) {
		s.metrics.StockAlert("failed")
		log.Error().Err(err).Str("business_id", b.ID.String()).Str("item", alert.ItemName).Msg("stock: alert send failed")
		return
	}

	snapshot, err := json.Marshal(alert)
	if err != nil {
		log.Error().Err(err).Str("item", alert.ItemName).Msg("stock: failed to encode alert snapshot")
		return
	}
	name := alert.ItemName
	action := &model.PendingAction{
		BusinessID: b.ID,
		OwnerPhone: b.OwnerPhone,
		ActionType: model.ActionStockAlert,
		ItemName:   &name,
		ItemData:   snapshot,
		Status:     model.ActionPending,
		CreatedAt:  s.now(),
	}
	if err := s.actions.Create(ctx, action); err != nil {
		log.Error().Err(err).Str("item", alert.ItemName).Msg("stock: failed to record alert")
		return
	}
	s.metrics.StockAlert("sent")
	log.Info().Str("business_id", b.ID.String()).Str("item", alert.ItemName).Msg("stock: alert raised")
}

// forecast estimates days to stockout from the trailing week of consumption.
func (s *stockService) forecast(ctx context.Context, b *model.Business, item *model.StockItem) *decimal.Decimal {
	since := s.now().Add(-forecastWindowDays * 24 * time.Hour)
	used, err := s.movements.OutflowSince(ctx, b.ID, item.Name, since)
	if err != nil {
		log.Warn().Err(err).Str("item", item.Name).Msg("stock: forecast lookup failed")
		return nil
	}
	return DaysToStockout(item.CurrentQuantity, used)
}

// DaysToStockout divides qty by the average daily outflow over the window,
// rounded to one decimal. Nil when there was no outflow.
func DaysToStockout(qty, outflow decimal.Decimal) *decimal.Decimal {
	if !outflow.IsPositive() {
		return nil
	}
	rate := outflow.Div(decimal.NewFromInt(forecastWindowDays))
	days := qty.Div(rate).Round(1)
	return &days
}

func (s *stockService) RunAll(ctx context.Context) error {
	businesses, err := s.businesses.List(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for i := range businesses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := &businesses[i]
		alerts, err := s.Reconcile(ctx, b)
		if err != nil {
			log.Error().Err(err).Str("business_id", b.ID.String()).Str("business", b.Name).Msg("stock: reconcile failed")
			continue
		}
		sent := 0
		for _, a := range alerts {
			if !a.Suppressed {
				sent++
			}
		}
		log.Info().Str("business", b.Name).Int("candidates", len(alerts)).Int("raised", sent).Msg("stock: reconciled")
	}
	return nil
}

func (s *stockService) Summary(ctx context.Context, b *model.Business) (string, error) {
	items, err := s.items.ListByBusiness(ctx, b.ID)
	if err != nil {
		return "", err
	}
	return FormatStockSummary(b.Name, items), nil
}

func (s *stockService) SendWeeklySummaries(ctx context.Context) error {
	businesses, err := s.businesses.List(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for i := range businesses {
		b := &businesses[i]
		items, err := s.items.ListByBusiness(ctx, b.ID)
		if err != nil {
			log.Error().Err(err).Str("business", b.Name).Msg("stock: weekly summary failed")
			continue
		}
		if len(items) == 0 {
			continue
		}
		if err := s.messenger.Send(ctx, b.OwnerPhone, FormatStockSummary(b.Name, items)); err != nil && !errors.Is(err, infra.ErrNotConfigured) {
			log.Error().Err(err).Str("business", b.Name).Msg("stock: weekly summary send failed")
		}
	}
	return nil
}

// ParseStockRow validates one zipped sheet row. ok is false for rows without
// an item name; err is set when a numeric column does not parse.
func ParseStockRow(rec map[string]string) (row dto.StockRow, ok bool, err error) {
	name := strings.TrimSpace(rec[dto.ColItemName])
	if name == "" {
		return row, false, nil
	}
	qty, err := parseQuantity(rec[dto.ColCurrentQuantity])
	if err != nil {
		return row, false, fmt.Errorf("%s %q: %w", dto.ColCurrentQuantity, name, err)
	}
	threshold, err := parseQuantity(rec[dto.ColReorderThreshold])
	if err != nil {
		return row, false, fmt.Errorf("%s %q: %w", dto.ColReorderThreshold, name, err)
	}
	reorder, err := parseQuantity(rec[dto.ColReorderQuantity])
	if err != nil {
		return row, false, fmt.Errorf("%s %q: %w", dto.ColReorderQuantity, name, err)
	}
	return dto.StockRow{
		Name:             name,
		CurrentQuantity:  qty,
		ReorderThreshold: threshold,
		ReorderQuantity:  reorder,
		Unit:             strings.TrimSpace(rec[dto.ColUnit]),
		SupplierName:     strings.TrimSpace(rec[dto.ColSupplierName]),
		SupplierWhatsApp: strings.TrimSpace(rec[dto.ColSupplierWhatsApp]),
	}, true, nil
}

// parseQuantity accepts plain and thousands-separated numbers; empty is zero.
func parseQuantity(v string) (decimal.Decimal, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}
