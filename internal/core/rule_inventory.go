package core

import (
	"fmt"

	"pharmacore/pkg/domain"
)

// Alert thresholds.
const (
	criticalStockRatio = 0.25
	overstockRatio     = 1.5
	urgentExpiryDays   = 7
)

// alertCandidate is what a rule proposes; the engine decides whether it is new.
type alertCandidate struct {
	kind      string
	severity  domain.AlertSeverity
	message   string
	notice    Notice
	overrides *Overrides
	metadata  map[string]string
}

// InventoryRule inspects one item and proposes at most one alert.
type InventoryRule interface {
	Name() string
	Evaluate(item domain.InventoryItem) (alertCandidate, bool)
}

func defaultInventoryRules() []InventoryRule {
	return []InventoryRule{
		lowStockRule{},
		criticalLowStockRule{},
		outOfStockRule{},
		expiryWarningRule{},
		expiredRule{},
		overstockRule{},
	}
}

// criticalFloor is floor(minimum × 0.25).
func criticalFloor(minimum int) int {
	return int(float64(minimum) * criticalStockRatio)
}

func itemMetadata(item domain.InventoryItem) map[string]string {
	return map[string]string{
		"itemName":     item.Product.Name,
		"batchNumber":  item.Product.BatchNumber,
		"currentStock": fmt.Sprint(item.Stock.CurrentStock),
	}
}

type lowStockRule struct{}

func (lowStockRule) Name() string { return string(domain.AlertLowStock) }

func (lowStockRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	if item.Status != domain.StatusLowStock {
		return alertCandidate{}, false
	}
	return alertCandidate{
		kind:     string(domain.AlertLowStock),
		severity: domain.SeverityMedium,
		message:  fmt.Sprintf("%s is low on stock: %d %s remaining (minimum %d)", item.Product.Name, item.Stock.CurrentStock, item.Stock.Unit, item.Stock.MinimumStock),
		notice:   LowStockNotice{ItemName: item.Product.Name, Quantity: item.Stock.CurrentStock, Unit: item.Stock.Unit},
		metadata: itemMetadata(item),
	}, true
}

type criticalLowStockRule struct{}

func (criticalLowStockRule) Name() string { return string(domain.AlertCriticalLowStock) }

func (criticalLowStockRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	stock := item.Stock.CurrentStock
	if stock <= 0 || stock > criticalFloor(item.Stock.MinimumStock) {
		return alertCandidate{}, false
	}
	return alertCandidate{
		kind:     string(domain.AlertCriticalLowStock),
		severity: domain.SeverityHigh,
		message:  fmt.Sprintf("%s is critically low: %d %s remaining", item.Product.Name, stock, item.Stock.Unit),
		notice:   CriticalLowStockNotice{ItemName: item.Product.Name, Quantity: stock, Minimum: item.Stock.MinimumStock, Unit: item.Stock.Unit},
		metadata: itemMetadata(item),
	}, true
}

type outOfStockRule struct{}

func (outOfStockRule) Name() string { return string(domain.AlertOutOfStock) }

func (outOfStockRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	if item.Status != domain.StatusOutOfStock {
		return alertCandidate{}, false
	}
	return alertCandidate{
		kind:     string(domain.AlertOutOfStock),
		severity: domain.SeverityCritical,
		message:  fmt.Sprintf("%s is out of stock", item.Product.Name),
		notice:   OutOfStockNotice{ItemName: item.Product.Name},
		metadata: itemMetadata(item),
	}, true
}

type expiryWarningRule struct{}

func (expiryWarningRule) Name() string { return string(domain.AlertExpiryWarning) }

func (expiryWarningRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	if item.Status != domain.StatusNearExpiry {
		return alertCandidate{}, false
	}
	days := item.Expiry.DaysUntilExpiry
	severity := domain.SeverityMedium
	var overrides *Overrides
	if days <= urgentExpiryDays {
		severity = domain.SeverityHigh
		overrides = &Overrides{Priority: domain.PriorityHigh}
	}
	md := itemMetadata(item)
	md["daysUntilExpiry"] = fmt.Sprint(days)
	return alertCandidate{
		kind:      string(domain.AlertExpiryWarning),
		severity:  severity,
		message:   fmt.Sprintf("%s (batch %s) expires in %d days", item.Product.Name, item.Product.BatchNumber, days),
		notice:    ExpiringSoonNotice{ItemName: item.Product.Name, BatchNumber: item.Product.BatchNumber, Days: days},
		overrides: overrides,
		metadata:  md,
	}, true
}

type expiredRule struct{}

func (expiredRule) Name() string { return string(domain.AlertExpired) }

func (expiredRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	if item.Status != domain.StatusExpired {
		return alertCandidate{}, false
	}
	return alertCandidate{
		kind:     string(domain.AlertExpired),
		severity: domain.SeverityCritical,
		message:  fmt.Sprintf("%s (batch %s) has expired", item.Product.Name, item.Product.BatchNumber),
		notice:   ExpiredItemNotice{ItemName: item.Product.Name, BatchNumber: item.Product.BatchNumber},
		metadata: itemMetadata(item),
	}, true
}

type overstockRule struct{}

func (overstockRule) Name() string { return string(domain.AlertOverstock) }

func (overstockRule) Evaluate(item domain.InventoryItem) (alertCandidate, bool) {
	maximum := item.Stock.MaximumStock
	if maximum <= 0 || float64(item.Stock.CurrentStock) <= float64(maximum)*overstockRatio {
		return alertCandidate{}, false
	}
	return alertCandidate{
		kind:     string(domain.AlertOverstock),
		severity: domain.SeverityLow,
		message:  fmt.Sprintf("%s is overstocked: %d %s against a maximum of %d", item.Product.Name, item.Stock.CurrentStock, item.Stock.Unit, maximum),
		notice:   OverstockNotice{ItemName: item.Product.Name, Quantity: item.Stock.CurrentStock, Maximum: maximum, Unit: item.Stock.Unit},
		metadata: itemMetadata(item),
	}, true
}
