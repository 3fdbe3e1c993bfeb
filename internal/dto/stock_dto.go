package dto

import "github.com/shopspring/decimal"

// Spreadsheet column headers.
const (
	ColItemName         = "Item Name"
	ColCurrentQuantity  = "Current Quantity"
	ColReorderThreshold = "Reorder Threshold"
	ColReorderQuantity  = "Reorder Quantity"
	ColUnit             = "Unit"
	ColSupplierName     = "Supplier Name"
	ColSupplierWhatsApp = "Supplier WhatsApp"
)

// StockRow is one validated spreadsheet row.
type StockRow struct {
	Name             string
	CurrentQuantity  decimal.Decimal
	ReorderThreshold decimal.Decimal
	ReorderQuantity  decimal.Decimal
	Unit             string
	SupplierName     string
	SupplierWhatsApp string
}

// StockAlert is an under-threshold item. DaysLeft is nil when there was no
// consumption in the forecast window.
type StockAlert struct {
	ItemName         string           `json:"item_name"`
	CurrentQuantity  decimal.Decimal  `json:"current_quantity"`
	ReorderThreshold decimal.Decimal  `json:"reorder_threshold"`
	ReorderQuantity  decimal.Decimal  `json:"reorder_quantity"`
	Unit             string           `json:"unit"`
	SupplierName     string           `json:"supplier_name"`
	SupplierWhatsApp string           `json:"supplier_whatsapp,omitempty"`
	DaysLeft         *decimal.Decimal `json:"days_left,omitempty"`
	// Suppressed is set when an alert for the item was already raised inside the cool-down window.
	Suppressed bool `json:"-"`
}
