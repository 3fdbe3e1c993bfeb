package service

import (
	"fmt"
	"strings"

	"wavyai/internal/dto"
	"wavyai/internal/model"
)

const (
	MsgNotRegistered   = "Welcome to Wavy AI! You're not registered yet."
	MsgNoPendingOrders = "No pending purchase orders found."
	MsgNoStockItems    = "No stock items yet. Type *sync stock* to load from your Google Sheet."
	MsgSheetUnreadable = "Couldn't read sheet. Add sheets_url to your business or set SHEET_URL."
	MsgReviewsOffline  = "Google Reviews not connected (set place_id on your business)."
	MsgReviewFallback  = "Thank you for your feedback. We appreciate you taking the time to share your experience."
)

func orEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func FormatStockAlert(a dto.StockAlert) string {
	days := ""
	if a.DaysLeft != nil {
		days = fmt.Sprintf("\n⏰ Estimated stockout in *%s days*", a.DaysLeft.StringFixed(1))
	}
	return fmt.Sprintf("📦 *Stock Alert — %s*\n\n"+
		"Current: *%s %s*\n"+
		"Reorder point: %s %s%s\n"+
		"Supplier: %s\n\n"+
		"Reply *ORDER %s* to draft a purchase order\n"+
		"Reply *IGNORE %s* to snooze",
		a.ItemName,
		a.CurrentQuantity.String(), a.Unit,
		a.ReorderThreshold.String(), a.Unit, days,
		orEmpty(a.SupplierName, "Not set"),
		a.ItemName, a.ItemName)
}

// FormatStockSummary renders the two-section stock report. Items must be
// in display order.
func FormatStockSummary(businessName string, items []model.StockItem) string {
	if len(items) == 0 {
		return MsgNoStockItems
	}
	var low, ok []model.StockItem
	for _, it := range items {
		if it.NeedsReorder() {
			low = append(low, it)
		} else {
			ok = append(ok, it)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 *Stock — %s*\n\n", businessName)
	if len(low) > 0 {
		sb.WriteString("🔴 *Needs Reordering:*\n")
		for _, it := range low {
			fmt.Fprintf(&sb, "• %s: %s %s\n", it.Name, it.CurrentQuantity.String(), it.Unit)
		}
		sb.WriteString("\n")
	}
	if len(ok) > 0 {
		sb.WriteString("✅ *OK:*\n")
		for _, it := range ok {
			fmt.Fprintf(&sb, "• %s: %s %s\n", it.Name, it.CurrentQuantity.String(), it.Unit)
		}
	}
	return sb.String()
}

// FormatSupplierOrder is the message sent to the supplier on SEND ORDER.
func FormatSupplierOrder(businessName string, it *model.StockItem) string {
	return fmt.Sprintf("Hi %s,\n\n"+
		"We'd like to place an order:\n"+
		"• %s: %s %s\n\n"+
		"Please confirm availability and delivery time.\n\n"+
		"Thanks,\n%s",
		orEmpty(it.SupplierName, "there"),
		it.Name, it.ReorderQuantity.String(), it.Unit,
		businessName)
}

func FormatOrderDraft(it *model.StockItem, draft string) string {
	return fmt.Sprintf("📋 *Purchase Order Draft*\n"+
		"Item: %s — %s %s\n"+
		"Supplier: %s\n\n"+
		"Message:\n\"%s\"\n\n"+
		"Reply *SEND ORDER* to send to supplier via WhatsApp",
		it.Name, it.ReorderQuantity.String(), it.Unit,
		orEmpty(it.SupplierName, "Unknown"),
		draft)
}

func stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("⭐", rating)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func FormatReviewAlert(r dto.ReviewRecord, draft string) string {
	head := "⭐ *New Review*\n\n"
	if r.Rating <= 3 {
		head = "🚨 *URGENT*\n\n"
	}
	return fmt.Sprintf("%s*%s* %s\n\"%s\"\n\n*Suggested reply:*\n\"%s\"\n\nReply *YES* to approve.",
		head, r.Author, stars(r.Rating), prefix(r.Text, 300), draft)
}

func FormatLiveReviews(p *dto.PlaceDetails) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ %s/5 (%d total)\n\n", formatRating(p.Rating), p.Total)
	for i, r := range p.Reviews {
		if i == 5 {
			break
		}
		fmt.Fprintf(&sb, "*%s* %s\n\"%s\"\n\n", r.Author, stars(r.Rating), prefix(r.Text, 100))
	}
	return sb.String()
}

func formatRating(r float64) string {
	s := fmt.Sprintf("%.1f", r)
	return strings.TrimSuffix(s, ".0")
}

func reviewPrompt(businessName string, r dto.ReviewRecord) string {
	return fmt.Sprintf("Write a professional reply for %s to this %d/5 star Google review from %s: '%s'. "+
		"Under 100 words, warm and specific. Just the reply.",
		businessName, r.Rating, r.Author, r.Text)
}

func chatSystemPrompt(businessName string) string {
	return fmt.Sprintf("You are Wavy AI for %s.\n"+
		"Commands: \"check stock\", \"sync stock\", \"order [item]\", \"send order\", \"check reviews\", \"ignore [item]\"\n"+
		"Be concise, under 150 words.", businessName)
}
