package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pharmacore/pkg/domain"
)

const recentMovementCount = 10

// InventoryStats aggregates the current item list. It is recomputed on every call.
type InventoryStats struct {
	TotalItems       int                         `json:"totalItems"`
	ByStatus         map[domain.ItemStatus]int   `json:"byStatus"`
	ByCategory       map[domain.ItemCategory]int `json:"byCategory"`
	TotalUnits       int                         `json:"totalUnits"`
	ReservedUnits    int                         `json:"reservedUnits"`
	TotalValue       decimal.Decimal             `json:"totalValue"`
	UnresolvedAlerts int                         `json:"unresolvedAlerts"`
	RecentMovements  []domain.StockMovement      `json:"recentMovements"`
}

// GetStats counts items by status and category, values stock at supplier unit
// cost and includes the 10 most recent movements.
func (inv *InventoryEngine) GetStats() InventoryStats {
	inv.mu.Lock()
	stats := InventoryStats{
		TotalItems:       len(inv.items),
		ByStatus:         make(map[domain.ItemStatus]int),
		ByCategory:       make(map[domain.ItemCategory]int),
		TotalValue:       decimal.Zero,
		UnresolvedAlerts: len(inv.open),
	}
	for _, item := range inv.items {
		stats.ByStatus[item.Status]++
		stats.ByCategory[item.Product.Category]++
		stats.TotalUnits += item.Stock.CurrentStock
		stats.ReservedUnits += item.Stock.ReservedStock
		stats.TotalValue = stats.TotalValue.Add(item.Supplier.UnitCost.Mul(decimal.NewFromInt(int64(item.Stock.CurrentStock))))
	}
	inv.mu.Unlock()
	stats.RecentMovements = inv.GetMovements("", recentMovementCount)
	return stats
}

// HealthStatus grades overall inventory condition.
type HealthStatus string

// Health grades from best to worst.
const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthCritical  HealthStatus = "critical"
)

// HealthIssue groups the items sharing one problem.
type HealthIssue struct {
	Type     domain.AlertType     `json:"type"`
	Severity domain.AlertSeverity `json:"severity"`
	Count    int                  `json:"count"`
	Items    []string             `json:"items"`
}

// HealthReport is the result of RunHealthCheck.
type HealthReport struct {
	Status           HealthStatus  `json:"status"`
	Issues           []HealthIssue `json:"issues"`
	Recommendations  []string      `json:"recommendations"`
	UnresolvedAlerts int           `json:"unresolvedAlerts"`
	CheckedAt        time.Time     `json:"checkedAt"`
}

// RunHealthCheck classifies the inventory: out-of-stock or expired items make it
// critical, critically low stock poor, and any other issue fair. With no current
// issues it is good while alerts remain unresolved and excellent otherwise.
func (inv *InventoryEngine) RunHealthCheck() HealthReport {
	now := inv.now()
	groups := map[domain.AlertType]*HealthIssue{}
	order := []domain.AlertType{
		domain.AlertOutOfStock, domain.AlertExpired, domain.AlertCriticalLowStock,
		domain.AlertLowStock, domain.AlertExpiryWarning, domain.AlertOverstock,
	}
	add := func(t domain.AlertType, sev domain.AlertSeverity, name string) {
		g, ok := groups[t]
		if !ok {
			g = &HealthIssue{Type: t, Severity: sev}
			groups[t] = g
		}
		g.Count++
		g.Items = append(g.Items, name)
	}
	for _, item := range inv.GetItems() {
		item.Refresh(now)
		for _, rule := range inv.rules {
			if cand, ok := rule.Evaluate(item); ok {
				add(domain.AlertType(cand.kind), cand.severity, item.Product.Name)
			}
		}
	}

	report := HealthReport{Status: HealthExcellent, UnresolvedAlerts: inv.UnresolvedAlertCount(), CheckedAt: now}
	for _, t := range order {
		if g, ok := groups[t]; ok {
			report.Issues = append(report.Issues, *g)
		}
	}
	has := func(t domain.AlertType) bool {
		_, ok := groups[t]
		return ok
	}
	switch {
	case has(domain.AlertOutOfStock) || has(domain.AlertExpired):
		report.Status = HealthCritical
	case has(domain.AlertCriticalLowStock):
		report.Status = HealthPoor
	case len(groups) > 0:
		report.Status = HealthFair
	case report.UnresolvedAlerts > 0:
		report.Status = HealthGood
	}
	report.Recommendations = recommendations(groups)
	return report
}

func recommendations(groups map[domain.AlertType]*HealthIssue) []string {
	var recs []string
	if g, ok := groups[domain.AlertOutOfStock]; ok {
		recs = append(recs, fmt.Sprintf("Reorder %d out-of-stock item(s) immediately", g.Count))
	}
	if g, ok := groups[domain.AlertExpired]; ok {
		recs = append(recs, fmt.Sprintf("Remove %d expired item(s) from dispensing stock", g.Count))
	}
	if g, ok := groups[domain.AlertCriticalLowStock]; ok {
		recs = append(recs, fmt.Sprintf("Expedite orders for %d critically low item(s)", g.Count))
	}
	if g, ok := groups[domain.AlertLowStock]; ok {
		recs = append(recs, fmt.Sprintf("Schedule reorders for %d low-stock item(s)", g.Count))
	}
	if g, ok := groups[domain.AlertExpiryWarning]; ok {
		recs = append(recs, fmt.Sprintf("Prioritise dispensing %d item(s) nearing expiry", g.Count))
	}
	if g, ok := groups[domain.AlertOverstock]; ok {
		recs = append(recs, fmt.Sprintf("Review purchasing for %d overstocked item(s)", g.Count))
	}
	if len(recs) == 0 {
		recs = append(recs, "Inventory levels are healthy")
	}
	return recs
}

// ReorderPriority ranks reorder suggestions.
type ReorderPriority string

// Reorder priorities, most pressing first.
const (
	ReorderUrgent ReorderPriority = "urgent"
	ReorderHigh   ReorderPriority = "high"
	ReorderMedium ReorderPriority = "medium"
	ReorderLow    ReorderPriority = "low"
)

func (p ReorderPriority) rank() int {
	switch p {
	case ReorderUrgent:
		return 0
	case ReorderHigh:
		return 1
	case ReorderMedium:
		return 2
	default:
		return 3
	}
}

// ReorderSuggestion proposes a purchase for one item.
type ReorderSuggestion struct {
	ItemID            string            `json:"itemId"`
	ItemName          string            `json:"itemName"`
	Status            domain.ItemStatus `json:"status"`
	CurrentStock      int               `json:"currentStock"`
	MinimumStock      int               `json:"minimumStock"`
	SuggestedQuantity int               `json:"suggestedQuantity"`
	Priority          ReorderPriority   `json:"priority"`
	Supplier          string            `json:"supplier"`
	EstimatedCost     decimal.Decimal   `json:"estimatedCost"`
}

// ReorderSuggestions lists out-of-stock and low-stock items with a quantity
// that refills them to the maximum (or twice the minimum when no maximum is
// set), most pressing first.
func (inv *InventoryEngine) ReorderSuggestions() []ReorderSuggestion {
	var out []ReorderSuggestion
	for _, item := range inv.GetItems() {
		if item.Status != domain.StatusOutOfStock && item.Status != domain.StatusLowStock {
			continue
		}
		target := item.Stock.MaximumStock
		if target <= 0 {
			target = 2 * item.Stock.MinimumStock
		}
		qty := target - item.Stock.CurrentStock
		if qty <= 0 {
			continue
		}
		out = append(out, ReorderSuggestion{
			ItemID:            item.ID,
			ItemName:          item.Product.Name,
			Status:            item.Status,
			CurrentStock:      item.Stock.CurrentStock,
			MinimumStock:      item.Stock.MinimumStock,
			SuggestedQuantity: qty,
			Priority:          reorderPriority(item),
			Supplier:          item.Supplier.Name,
			EstimatedCost:     item.Supplier.UnitCost.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.rank(), out[j].Priority.rank(); ri != rj {
			return ri < rj
		}
		return out[i].ItemName < out[j].ItemName
	})
	return out
}

func reorderPriority(item domain.InventoryItem) ReorderPriority {
	stock, minimum := item.Stock.CurrentStock, item.Stock.MinimumStock
	switch {
	case item.Status == domain.StatusOutOfStock:
		return ReorderUrgent
	case stock <= criticalFloor(minimum):
		return ReorderHigh
	case float64(stock) <= float64(minimum)*0.5:
		return ReorderMedium
	default:
		return ReorderLow
	}
}
