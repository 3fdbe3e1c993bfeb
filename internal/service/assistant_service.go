package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wavyai/internal/infra"
	"wavyai/internal/model"
	"wavyai/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const chatMaxTokens = 400

// AssistantService answers one inbound WhatsApp message. Every path returns
// a reply; store and gateway failures become explanatory text.
type AssistantService interface {
	HandleMessage(ctx context.Context, from, body string) string
}

type assistantService struct {
	businesses repository.BusinessRepository
	items      repository.StockItemRepository
	actions    repository.PendingActionRepository
	seen       repository.SeenReviewRepository
	stock      StockService
	reviews    ReviewService
	llm        Completer
	messenger  Messenger
	metrics    *infra.Metrics
	now        func() time.Time
}

func NewAssistantService(
	businesses repository.BusinessRepository,
	items repository.StockItemRepository,
	actions repository.PendingActionRepository,
	seen repository.SeenReviewRepository,
	stock StockService,
	reviews ReviewService,
	llm Completer,
	messenger Messenger,
	metrics *infra.Metrics,
) AssistantService {
	return &assistantService{
		businesses: businesses,
		items:      items,
		actions:    actions,
		seen:       seen,
		stock:      stock,
		reviews:    reviews,
		llm:        llm,
		messenger:  messenger,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var (
	sendOrderCommands = []string{"send order", "yes send", "send it"}
	checkStockPhrases = []string{"check stock", "stock levels", "my stock", "show stock"}
	reviewPhrases     = []string{"check reviews", "my reviews"}
	approveCommands   = []string{"yes", "approve", "post it"}
)

func equalsAny(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

func containsAny(s string, options []string) bool {
	for _, o := range options {
		if strings.Contains(s, o) {
			return true
		}
	}
	return false
}

func (s *assistantService) HandleMessage(ctx context.Context, from, body string) string {
	text := strings.TrimSpace(body)
	lower := strings.ToLower(text)

	b, err := s.businesses.FindByOwnerPhone(ctx, model.NormalizeOwnerPhone(from))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Msg("assistant: business lookup failed")
		}
		s.metrics.InboundCommand("unregistered")
		return MsgNotRegistered
	}

	switch {
	case strings.HasPrefix(lower, "order "):
		s.metrics.InboundCommand("order")
		return s.draftOrder(ctx, b, strings.TrimSpace(text[len("order "):]))
	case strings.HasPrefix(lower, "ignore "):
		s.metrics.InboundCommand("ignore")
		return s.ignore(ctx, b, strings.TrimSpace(text[len("ignore "):]))
	case equalsAny(lower, sendOrderCommands):
		s.metrics.InboundCommand("send_order")
		return s.sendOrder(ctx, b)
	case containsAny(lower, checkStockPhrases):
		s.metrics.InboundCommand("check_stock")
		summary, err := s.stock.Summary(ctx, b)
		if err != nil {
			log.Error().Err(err).Str("business", b.Name).Msg("assistant: stock summary failed")
			return MsgNoStockItems
		}
		return summary
	case lower == "sync stock":
		s.metrics.InboundCommand("sync_stock")
		n, err := s.stock.Sync(ctx, b)
		if err != nil {
			log.Warn().Err(err).Str("business", b.Name).Msg("assistant: sync failed")
		}
		if n == 0 {
			return MsgSheetUnreadable
		}
		return fmt.Sprintf("✅ Synced %d items from your Google Sheet.", n)
	case containsAny(lower, reviewPhrases):
		s.metrics.InboundCommand("check_reviews")
		return s.reviews.LiveSummary(ctx, b)
	case equalsAny(lower, approveCommands):
		if reply, ok := s.approveReply(ctx, b); ok {
			s.metrics.InboundCommand("approve")
			return reply
		}
	}

	s.metrics.InboundCommand("chat")
	return s.chat(ctx, b, text)
}

type orderSnapshot struct {
	Name             string `json:"name"`
	ReorderQuantity  string `json:"reorder_quantity"`
	Unit             string `json:"unit"`
	SupplierName     string `json:"supplier_name"`
	SupplierWhatsApp string `json:"supplier_whatsapp"`
}

func (s *assistantService) draftOrder(ctx context.Context, b *model.Business, fragment string) string {
	notFound := fmt.Sprintf("I couldn't find '%s' in your stock list.", fragment)
	if fragment == "" {
		return notFound
	}
	item, err := s.items.SearchByName(ctx, b.ID, fragment)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Str("business", b.Name).Msg("assistant: item search failed")
		}
		return notFound
	}

	draft := FormatSupplierOrder(b.Name, item)
	snapshot, err := json.Marshal(snapshotOf(item))
	if err != nil {
		log.Error().Err(err).Str("item", item.Name).Msg("assistant: failed to encode order snapshot")
		return "Sorry, I couldn't save that order draft. Please try again."
	}
	name := item.Name
	action := &model.PendingAction{
		BusinessID: b.ID,
		OwnerPhone: b.OwnerPhone,
		ActionType: model.ActionPurchaseOrder,
		ItemName:   &name,
		ItemData:   snapshot,
		DraftReply: &draft,
		Status:     model.ActionPending,
		CreatedAt:  s.now(),
	}
	if err := s.actions.Create(ctx, action); err != nil {
		log.Error().Err(err).Str("item", item.Name).Msg("assistant: failed to store purchase order")
		return "Sorry, I couldn't save that order draft. Please try again."
	}
	// the order answers the stock alert for this item
	if _, err := s.actions.CompletePendingForItem(ctx, b.ID, model.ActionStockAlert, item.Name); err != nil {
		log.Warn().Err(err).Str("item", item.Name).Msg("assistant: failed to close stock alert")
	}
	return FormatOrderDraft(item, draft)
}

func (s *assistantService) ignore(ctx context.Context, b *model.Business, fragment string) string {
	notFound := fmt.Sprintf("I couldn't find '%s' in your stock list.", fragment)
	if fragment == "" {
		return notFound
	}
	item, err := s.items.SearchByName(ctx, b.ID, fragment)
	if err != nil {
		return notFound
	}
	if _, err := s.actions.CompletePendingForItem(ctx, b.ID, model.ActionStockAlert, item.Name); err != nil {
		log.Error().Err(err).Str("item", item.Name).Msg("assistant: failed to snooze alert")
		return "Sorry, I couldn't snooze that alert. Please try again."
	}
	return fmt.Sprintf("😴 Snoozed alerts for %s.", item.Name)
}

func (s *assistantService) sendOrder(ctx context.Context, b *model.Business) string {
	action, err := s.actions.OldestPending(ctx, b.ID, model.ActionPurchaseOrder)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Str("business", b.Name).Msg("assistant: pending order lookup failed")
		}
		return MsgNoPendingOrders
	}

	snap := s.loadOrderSnapshot(ctx, b, action)
	supplier := orEmpty(snap.SupplierName, "your supplier")
	if strings.TrimSpace(snap.SupplierWhatsApp) == "" {
		return fmt.Sprintf("No WhatsApp number for %s. Add it to your Google Sheet.", supplier)
	}

	draft := ""
	if action.DraftReply != nil {
		draft = *action.DraftReply
	}
	err = s.messenger.Send(ctx, snap.SupplierWhatsApp, draft)
	if errors.Is(err, infra.ErrNotConfigured) {
		// same contract as stock alerts: a disabled transport is a no-op
		log.Warn().Str("action_id", action.ID.String()).Msg("assistant: WhatsApp transport disabled, order completed without sending")
		err = nil
	}
	if err != nil {
		log.Error().Err(err).Str("action_id", action.ID.String()).Msg("assistant: order send failed")
		return fmt.Sprintf("Couldn't send the order to %s right now. Reply *SEND ORDER* to try again.", supplier)
	}
	if err := s.actions.Complete(ctx, action.ID); err != nil {
		log.Error().Err(err).Str("action_id", action.ID.String()).Msg("assistant: failed to complete order")
	}
	return fmt.Sprintf("✅ Order sent to %s!", supplier)
}

func snapshotOf(item *model.StockItem) orderSnapshot {
	return orderSnapshot{
		Name:             item.Name,
		ReorderQuantity:  item.ReorderQuantity.String(),
		Unit:             item.Unit,
		SupplierName:     item.SupplierName,
		SupplierWhatsApp: item.SupplierWhatsApp,
	}
}

// loadOrderSnapshot decodes the supplier details stored with the order. A missing
// or unreadable snapshot falls back to the current stock item.
func (s *assistantService) loadOrderSnapshot(ctx context.Context, b *model.Business, action *model.PendingAction) orderSnapshot {
	var snap orderSnapshot
	if len(action.ItemData) > 0 {
		err := json.Unmarshal(action.ItemData, &snap)
		if err == nil {
			return snap
		}
		log.Warn().Err(err).Str("action_id", action.ID.String()).Msg("assistant: unreadable order snapshot, using stock item")
	}
	if action.ItemName == nil {
		return snap
	}
	item, err := s.items.FindByName(ctx, b.ID, *action.ItemName)
	if err != nil {
		log.Warn().Err(err).Str("item", *action.ItemName).Msg("assistant: stock item for order not found")
		return snap
	}
	return snapshotOf(item)
}

// approveReply completes the oldest pending review reply. ok is false when
// there is nothing to approve so the message falls through to chat.
func (s *assistantService) approveReply(ctx context.Context, b *model.Business) (string, bool) {
	action, err := s.actions.OldestPending(ctx, b.ID, model.ActionReviewReply)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Str("business", b.Name).Msg("assistant: pending reply lookup failed")
		}
		return "", false
	}
	if err := s.actions.Complete(ctx, action.ID); err != nil {
		log.Error().Err(err).Str("action_id", action.ID.String()).Msg("assistant: failed to complete reply")
	}
	if action.ReviewID != nil {
		if err := s.seen.MarkReplied(ctx, *action.ReviewID); err != nil {
			log.Warn().Err(err).Str("review_id", *action.ReviewID).Msg("assistant: failed to flag review as replied")
		}
	}
	draft := ""
	if action.DraftReply != nil {
		draft = *action.DraftReply
	}
	return fmt.Sprintf("✅ Reply saved:\n\"%s\"\n\nPaste this into Google Reviews.", draft), true
}

func (s *assistantService) chat(ctx context.Context, b *model.Business, text string) string {
	reply, err := s.llm.Complete(ctx, chatSystemPrompt(b.Name), text, chatMaxTokens)
	if err != nil {
		log.Warn().Err(err).Str("business", b.Name).Msg("assistant: chat completion failed")
		return fmt.Sprintf("Sorry, I couldn't reach the AI: %v", err)
	}
	return reply
}
