package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemCategory classifies inventory items for reporting.
type ItemCategory string

// Inventory item categories.
const (
	CategoryPrescription  ItemCategory = "prescription"
	CategoryOTC           ItemCategory = "otc"
	CategorySupplement    ItemCategory = "supplement"
	CategoryMedicalDevice ItemCategory = "medical_device"
	CategoryPersonalCare  ItemCategory = "personal_care"
	CategoryOther         ItemCategory = "other"
)

// ItemStatus is the derived lifecycle classification of an inventory item.
type ItemStatus string

// Item statuses. The value is always a function of stock levels and days until expiry.
const (
	StatusInStock    ItemStatus = "in_stock"
	StatusLowStock   ItemStatus = "low_stock"
	StatusOutOfStock ItemStatus = "out_of_stock"
	StatusNearExpiry ItemStatus = "near_expiry"
	StatusExpired    ItemStatus = "expired"
)

// MovementType records the direction of a stock change.
type MovementType string

// Stock movement types.
const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// AlertType names an inventory condition worth surfacing.
type AlertType string

// Inventory alert types.
const (
	AlertLowStock         AlertType = "low_stock"
	AlertCriticalLowStock AlertType = "critical_low_stock"
	AlertOutOfStock       AlertType = "out_of_stock"
	AlertExpiryWarning    AlertType = "expiry_warning"
	AlertExpired          AlertType = "expired"
	AlertOverstock        AlertType = "overstock"
)

// AlertSeverity ranks alerts across all engines.
type AlertSeverity string

// Alert severities.
const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Rank orders severities from low (1) to critical (4); unknown values rank 0.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ProductInfo describes what the item is.
type ProductInfo struct {
	Name         string       `json:"name"`
	GenericName  string       `json:"genericName,omitempty"`
	Category     ItemCategory `json:"category"`
	Manufacturer string       `json:"manufacturer"`
	BatchNumber  string       `json:"batchNumber"`
	Description  string       `json:"description,omitempty"`
}

// StockInfo holds quantities. MaximumStock of zero means no maximum is defined.
type StockInfo struct {
	CurrentStock  int    `json:"currentStock"`
	MinimumStock  int    `json:"minimumStock"`
	MaximumStock  int    `json:"maximumStock,omitempty"`
	Unit          string `json:"unit"`
	Location      string `json:"location,omitempty"`
	ReservedStock int    `json:"reservedStock"`
}

// Available returns stock not held by reservations.
func (s StockInfo) Available() int {
	if s.ReservedStock >= s.CurrentStock {
		return 0
	}
	return s.CurrentStock - s.ReservedStock
}

// ExpiryInfo carries the expiry date and the fields derived from it.
type ExpiryInfo struct {
	ExpiryDate      time.Time `json:"expiryDate"`
	DaysUntilExpiry int       `json:"daysUntilExpiry"`
	IsExpired       bool      `json:"isExpired"`
	IsNearExpiry    bool      `json:"isNearExpiry"`
}

// SupplierInfo records where the item is bought and at what unit cost.
type SupplierInfo struct {
	Name          string          `json:"name"`
	Contact       string          `json:"contact,omitempty"`
	UnitCost      decimal.Decimal `json:"unitCost"`
	LastOrderDate *time.Time      `json:"lastOrderDate,omitempty"`
}

// RecordMetadata holds audit fields shared by mutable records.
type RecordMetadata struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// InventoryItem is a stocked product batch.
type InventoryItem struct {
	ID       string         `json:"id"`
	Product  ProductInfo    `json:"productInfo"`
	Stock    StockInfo      `json:"stockInfo"`
	Expiry   ExpiryInfo     `json:"expiryInfo"`
	Supplier SupplierInfo   `json:"supplierInfo"`
	Metadata RecordMetadata `json:"metadata"`
	Status   ItemStatus     `json:"status"`
}

// InventoryFormData is the caller-supplied shape for add and update.
type InventoryFormData struct {
	Product    ProductInfo
	Stock      StockInfo
	ExpiryDate time.Time
	Supplier   SupplierInfo
}

// StockMovement is an immutable ledger entry.
type StockMovement struct {
	ID            string       `json:"id"`
	ItemID        string       `json:"itemId"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previousStock"`
	NewStock      int          `json:"newStock"`
	Reason        string       `json:"reason"`
	PerformedBy   string       `json:"performedBy"`
	Timestamp     time.Time    `json:"timestamp"`
}

// InventoryAlert is an unresolved-until-acted-on inventory condition.
type InventoryAlert struct {
	ID         string            `json:"id"`
	ItemID     string            `json:"itemId"`
	Type       AlertType         `json:"type"`
	Severity   AlertSeverity     `json:"severity"`
	Message    string            `json:"message"`
	CreatedAt  time.Time         `json:"createdAt"`
	IsRead     bool              `json:"isRead"`
	IsResolved bool              `json:"isResolved"`
	ResolvedBy string            `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
