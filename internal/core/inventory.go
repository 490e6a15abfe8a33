package core

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pharmacore/pkg/domain"
)

// MaxStockMovements caps the movement ledger; the oldest entries are dropped.
const MaxStockMovements = 1000

// ErrNegativeQuantity rejects stock levels and reservations below zero.
var ErrNegativeQuantity = errors.New("quantity must not be negative")

// pendingNotice is a notification queued while an engine lock is held.
type pendingNotice struct {
	notice    Notice
	overrides *Overrides
}

// InventoryEngine owns items, the stock movement ledger and inventory alerts.
type InventoryEngine struct {
	*env
	notifier *NotificationEngine
	rules    []InventoryRule

	mu        sync.Mutex
	items     []domain.InventoryItem
	movements []domain.StockMovement
	alerts    []domain.InventoryAlert
	open      alertIndex
}

func newInventoryEngine(ctx context.Context, e *env, notifier *NotificationEngine) (*InventoryEngine, error) {
	items, err := loadList[domain.InventoryItem](ctx, e.store, KeyInventory)
	if err != nil {
		return nil, err
	}
	movements, err := loadList[domain.StockMovement](ctx, e.store, KeyStockMovements)
	if err != nil {
		return nil, err
	}
	alerts, err := loadList[domain.InventoryAlert](ctx, e.store, KeyInventoryAlerts)
	if err != nil {
		return nil, err
	}
	if len(movements) > MaxStockMovements {
		movements = movements[len(movements)-MaxStockMovements:]
	}
	inv := &InventoryEngine{
		env:       e,
		notifier:  notifier,
		rules:     defaultInventoryRules(),
		items:     items,
		movements: movements,
		alerts:    alerts,
		open:      make(alertIndex),
	}
	for _, a := range alerts {
		if !a.IsResolved {
			inv.open.add(a.ItemID, string(a.Type), a.ID)
		}
	}
	return inv, nil
}

// AddItem creates an item with derived expiry and status, records the initial
// "in" movement and evaluates alerts.
func (inv *InventoryEngine) AddItem(ctx context.Context, form domain.InventoryFormData, actor string) (_ domain.InventoryItem, err error) {
	defer inv.observe(ctx, "add_item", inv.now(), &err)
	if form.Stock.CurrentStock < 0 {
		return domain.InventoryItem{}, ErrNegativeQuantity
	}
	now := inv.now()
	item := domain.InventoryItem{
		ID:       inv.newID(),
		Product:  form.Product,
		Stock:    form.Stock,
		Expiry:   domain.ExpiryInfo{ExpiryDate: form.ExpiryDate},
		Supplier: form.Supplier,
		Metadata: domain.RecordMetadata{CreatedAt: now, UpdatedAt: now, CreatedBy: actor, UpdatedBy: actor},
	}
	clampReserved(&item.Stock)
	item.Refresh(now)

	inv.mu.Lock()
	inv.items = append(inv.items, item)
	inv.appendMovementLocked(domain.StockMovement{
		ItemID:      item.ID,
		Type:        domain.MovementIn,
		Quantity:    item.Stock.CurrentStock,
		NewStock:    item.Stock.CurrentStock,
		Reason:      "Initial stock",
		PerformedBy: actor,
		Timestamp:   now,
	})
	pending := inv.checkAndCreateAlertsLocked(item)
	err = inv.persistLocked(ctx, true, true, len(pending) > 0)
	inv.mu.Unlock()

	inv.dispatch(ctx, pending)
	if err != nil {
		return item, err
	}
	inv.logger.Info("inventory item added", "id", item.ID, "name", item.Product.Name, "status", item.Status)
	return item, nil
}

// UpdateItem replaces the item's field groups. It returns nil when id is unknown.
func (inv *InventoryEngine) UpdateItem(ctx context.Context, id string, form domain.InventoryFormData, actor string) (_ *domain.InventoryItem, err error) {
	defer inv.observe(ctx, "update_item", inv.now(), &err)
	if form.Stock.CurrentStock < 0 {
		return nil, ErrNegativeQuantity
	}
	now := inv.now()

	inv.mu.Lock()
	idx := inv.indexLocked(id)
	if idx < 0 {
		inv.mu.Unlock()
		return nil, nil
	}
	item := &inv.items[idx]
	previous := item.Stock.CurrentStock
	item.Product = form.Product
	item.Stock = form.Stock
	clampReserved(&item.Stock)
	item.Expiry.ExpiryDate = form.ExpiryDate
	item.Supplier = form.Supplier
	item.Metadata.UpdatedAt = now
	item.Metadata.UpdatedBy = actor
	item.Refresh(now)
	moved := previous != item.Stock.CurrentStock
	if moved {
		inv.appendMovementLocked(domain.StockMovement{
			ItemID:        id,
			Type:          domain.MovementAdjustment,
			Quantity:      item.Stock.CurrentStock - previous,
			PreviousStock: previous,
			NewStock:      item.Stock.CurrentStock,
			Reason:        "Item updated",
			PerformedBy:   actor,
			Timestamp:     now,
		})
	}
	updated := *item
	pending := inv.checkAndCreateAlertsLocked(updated)
	err = inv.persistLocked(ctx, true, moved, len(pending) > 0)
	inv.mu.Unlock()

	inv.dispatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	inv.logger.Info("inventory item updated", "id", id, "status", updated.Status)
	return &updated, nil
}

// UpdateStock sets the current stock and records a movement whose Quantity is
// the signed delta: "in" when the level rose, "out" otherwise. It returns false
// for an unknown id.
func (inv *InventoryEngine) UpdateStock(ctx context.Context, id string, quantity int, reason, actor string) (_ bool, err error) {
	defer inv.observe(ctx, "update_stock", inv.now(), &err)
	if quantity < 0 {
		return false, ErrNegativeQuantity
	}
	now := inv.now()

	inv.mu.Lock()
	idx := inv.indexLocked(id)
	if idx < 0 {
		inv.mu.Unlock()
		return false, nil
	}
	item := &inv.items[idx]
	previous := item.Stock.CurrentStock
	item.Stock.CurrentStock = quantity
	clampReserved(&item.Stock)
	item.Metadata.UpdatedAt = now
	item.Metadata.UpdatedBy = actor
	item.Refresh(now)
	movement := domain.StockMovement{
		ItemID:        id,
		Type:          domain.MovementOut,
		Quantity:      quantity - previous,
		PreviousStock: previous,
		NewStock:      quantity,
		Reason:        reason,
		PerformedBy:   actor,
		Timestamp:     now,
	}
	if quantity > previous {
		movement.Type = domain.MovementIn
	}
	inv.appendMovementLocked(movement)
	updated := *item
	pending := inv.checkAndCreateAlertsLocked(updated)
	err = inv.persistLocked(ctx, true, true, len(pending) > 0)
	inv.mu.Unlock()

	inv.dispatch(ctx, pending)
	if err != nil {
		return false, err
	}
	inv.logger.Info("stock updated", "id", id, "previous", previous, "current", quantity, "reason", reason)
	return true, nil
}

// DeleteItem removes the item from the active list. Its movements and alerts are kept.
func (inv *InventoryEngine) DeleteItem(ctx context.Context, id string) (_ bool, err error) {
	defer inv.observe(ctx, "delete_item", inv.now(), &err)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	idx := inv.indexLocked(id)
	if idx < 0 {
		return false, nil
	}
	inv.items = append(inv.items[:idx:idx], inv.items[idx+1:]...)
	if err := inv.persistLocked(ctx, true, false, false); err != nil {
		return false, err
	}
	inv.logger.Info("inventory item deleted", "id", id)
	return true, nil
}

// ReserveStock holds quantity units against the available stock.
func (inv *InventoryEngine) ReserveStock(ctx context.Context, id string, quantity int) (_ bool, err error) {
	defer inv.observe(ctx, "reserve_stock", inv.now(), &err)
	if quantity < 0 {
		return false, ErrNegativeQuantity
	}
	return inv.adjustReserved(ctx, id, func(s *domain.StockInfo) bool {
		if quantity > s.Available() {
			return false
		}
		s.ReservedStock += quantity
		return true
	})
}

// ReleaseStock returns up to quantity reserved units to the available stock.
func (inv *InventoryEngine) ReleaseStock(ctx context.Context, id string, quantity int) (_ bool, err error) {
	defer inv.observe(ctx, "release_stock", inv.now(), &err)
	if quantity < 0 {
		return false, ErrNegativeQuantity
	}
	return inv.adjustReserved(ctx, id, func(s *domain.StockInfo) bool {
		s.ReservedStock -= min(quantity, s.ReservedStock)
		return true
	})
}

func (inv *InventoryEngine) adjustReserved(ctx context.Context, id string, fn func(*domain.StockInfo) bool) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	idx := inv.indexLocked(id)
	if idx < 0 || !fn(&inv.items[idx].Stock) {
		return false, nil
	}
	inv.items[idx].Metadata.UpdatedAt = inv.now()
	if err := inv.persistLocked(ctx, true, false, false); err != nil {
		return false, err
	}
	return true, nil
}

// GetItems returns every item.
func (inv *InventoryEngine) GetItems() []domain.InventoryItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]domain.InventoryItem(nil), inv.items...)
}

// GetItem returns the item or nil.
func (inv *InventoryEngine) GetItem(id string) *domain.InventoryItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if idx := inv.indexLocked(id); idx >= 0 {
		item := inv.items[idx]
		return &item
	}
	return nil
}

// SearchItems matches query case-insensitively against name, generic name,
// manufacturer and batch number. An empty category matches all categories.
func (inv *InventoryEngine) SearchItems(query string, category domain.ItemCategory) []domain.InventoryItem {
	q := strings.ToLower(strings.TrimSpace(query))
	return inv.filter(func(item domain.InventoryItem) bool {
		if category != "" && item.Product.Category != category {
			return false
		}
		if q == "" {
			return true
		}
		for _, field := range []string{item.Product.Name, item.Product.GenericName, item.Product.Manufacturer, item.Product.BatchNumber} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	})
}

// GetItemsByStatus returns items whose derived status equals status.
func (inv *InventoryEngine) GetItemsByStatus(status domain.ItemStatus) []domain.InventoryItem {
	return inv.filter(func(item domain.InventoryItem) bool { return item.Status == status })
}

// GetExpiringItems returns unexpired items expiring within days (30 when
// days <= 0), soonest first.
func (inv *InventoryEngine) GetExpiringItems(days int) []domain.InventoryItem {
	if days <= 0 {
		days = domain.NearExpiryDays
	}
	now := inv.now()
	out := inv.filter(func(item domain.InventoryItem) bool {
		if item.Expiry.ExpiryDate.IsZero() {
			return false
		}
		d := domain.DaysUntilExpiry(item.Expiry.ExpiryDate, now)
		return d > 0 && d <= days
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Expiry.ExpiryDate.Before(out[j].Expiry.ExpiryDate) })
	return out
}

func (inv *InventoryEngine) filter(keep func(domain.InventoryItem) bool) []domain.InventoryItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []domain.InventoryItem
	for _, item := range inv.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// GetMovements returns movements newest first, optionally for one item and
// bounded by limit when limit > 0.
func (inv *InventoryEngine) GetMovements(itemID string, limit int) []domain.StockMovement {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []domain.StockMovement
	for i := len(inv.movements) - 1; i >= 0; i-- {
		m := inv.movements[i]
		if itemID != "" && m.ItemID != itemID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// AlertFilter narrows GetAlerts. Zero values match everything.
type AlertFilter struct {
	ItemID         string
	Type           domain.AlertType
	UnresolvedOnly bool
	UnreadOnly     bool
}

// GetAlerts returns matching inventory alerts newest first.
func (inv *InventoryEngine) GetAlerts(filter AlertFilter) []domain.InventoryAlert {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []domain.InventoryAlert
	for i := len(inv.alerts) - 1; i >= 0; i-- {
		a := inv.alerts[i]
		switch {
		case filter.ItemID != "" && a.ItemID != filter.ItemID,
			filter.Type != "" && a.Type != filter.Type,
			filter.UnresolvedOnly && a.IsResolved,
			filter.UnreadOnly && a.IsRead:
			continue
		}
		out = append(out, a)
	}
	return out
}

// UnresolvedAlertCount counts open inventory alerts.
func (inv *InventoryEngine) UnresolvedAlertCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.open)
}

// MarkAlertAsRead flags one alert as read.
func (inv *InventoryEngine) MarkAlertAsRead(ctx context.Context, id string) (_ bool, err error) {
	defer inv.observe(ctx, "mark_inventory_alert_read", inv.now(), &err)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range inv.alerts {
		if inv.alerts[i].ID == id {
			inv.alerts[i].IsRead = true
			if err := inv.persistLocked(ctx, false, false, true); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// ResolveAlert resolves one alert so its condition may alert again later.
func (inv *InventoryEngine) ResolveAlert(ctx context.Context, id, actor string) (_ bool, err error) {
	defer inv.observe(ctx, "resolve_inventory_alert", inv.now(), &err)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range inv.alerts {
		if inv.alerts[i].ID != id {
			continue
		}
		if inv.alerts[i].IsResolved {
			return true, nil
		}
		inv.resolveLocked(i, actor)
		if err := inv.persistLocked(ctx, false, false, true); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// ResolveAlertsForItem resolves every open alert of an item and returns how many were resolved.
func (inv *InventoryEngine) ResolveAlertsForItem(ctx context.Context, itemID, actor string) (resolved int, err error) {
	defer inv.observe(ctx, "resolve_item_alerts", inv.now(), &err)
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range inv.alerts {
		if inv.alerts[i].ItemID == itemID && !inv.alerts[i].IsResolved {
			inv.resolveLocked(i, actor)
			resolved++
		}
	}
	if resolved == 0 {
		return 0, nil
	}
	if err := inv.persistLocked(ctx, false, false, true); err != nil {
		return 0, err
	}
	return resolved, nil
}

func (inv *InventoryEngine) resolveLocked(i int, actor string) {
	now := inv.now()
	a := &inv.alerts[i]
	a.IsResolved = true
	a.ResolvedBy = actor
	a.ResolvedAt = &now
	inv.open.remove(a.ItemID, string(a.Type), a.ID)
}

// InventoryMonitorResult summarises one monitoring pass.
type InventoryMonitorResult struct {
	Checked       int
	StatusChanged int
	NewAlerts     int
	Escalated     int
}

// PerformAutomatedMonitoring re-derives expiry and status for every item at
// the current clock and re-evaluates alerts.
func (inv *InventoryEngine) PerformAutomatedMonitoring(ctx context.Context) (_ InventoryMonitorResult, err error) {
	defer inv.observe(ctx, "inventory_monitoring", inv.now(), &err)
	now := inv.now()
	var res InventoryMonitorResult

	inv.mu.Lock()
	var pending []pendingNotice
	alertsBefore := len(inv.alerts)
	for i := range inv.items {
		before := inv.items[i].Status
		inv.items[i].Refresh(now)
		if inv.items[i].Status != before {
			res.StatusChanged++
		}
		pending = append(pending, inv.checkAndCreateAlertsLocked(inv.items[i])...)
	}
	res.Checked = len(inv.items)
	res.NewAlerts = len(inv.alerts) - alertsBefore
	res.Escalated = len(pending) - res.NewAlerts
	err = inv.persistLocked(ctx, true, false, len(pending) > 0)
	inv.mu.Unlock()

	inv.dispatch(ctx, pending)
	if err != nil {
		return res, err
	}
	inv.logger.Info("inventory monitoring complete", "checked", res.Checked, "status_changed", res.StatusChanged, "new_alerts", res.NewAlerts, "escalated", res.Escalated)
	return res, nil
}

// checkAndCreateAlertsLocked runs every rule against item and appends alerts
// for conditions that have no unresolved alert yet. An open alert whose
// condition has grown more severe is raised in place and notified again.
func (inv *InventoryEngine) checkAndCreateAlertsLocked(item domain.InventoryItem) []pendingNotice {
	var pending []pendingNotice
	for _, rule := range inv.rules {
		cand, ok := rule.Evaluate(item)
		if !ok {
			continue
		}
		if openID, ok := inv.open.get(item.ID, cand.kind); ok {
			if inv.escalateLocked(openID, cand) {
				pending = append(pending, pendingNotice{notice: cand.notice, overrides: cand.overrides})
				continue
			}
			inv.logger.Debug("duplicate inventory alert suppressed", "item", item.ID, "type", cand.kind)
			continue
		}
		alert := domain.InventoryAlert{
			ID:        inv.newID(),
			ItemID:    item.ID,
			Type:      domain.AlertType(cand.kind),
			Severity:  cand.severity,
			Message:   cand.message,
			CreatedAt: inv.now(),
			Metadata:  cand.metadata,
		}
		inv.alerts = append(inv.alerts, alert)
		inv.open.add(item.ID, cand.kind, alert.ID)
		if cand.notice != nil {
			pending = append(pending, pendingNotice{notice: cand.notice, overrides: cand.overrides})
		}
	}
	return pending
}

// escalateLocked raises the open alert to the candidate's severity when that is
// higher, marking it unread again.
func (inv *InventoryEngine) escalateLocked(alertID string, cand alertCandidate) bool {
	for i := range inv.alerts {
		a := &inv.alerts[i]
		if a.ID != alertID {
			continue
		}
		if cand.severity.Rank() <= a.Severity.Rank() {
			return false
		}
		inv.logger.Info("inventory alert escalated", "alert", a.ID, "from", a.Severity, "to", cand.severity)
		a.Severity = cand.severity
		a.Message = cand.message
		a.Metadata = cand.metadata
		a.IsRead = false
		return true
	}
	return false
}

func (inv *InventoryEngine) dispatch(ctx context.Context, pending []pendingNotice) {
	if inv.notifier == nil {
		return
	}
	for _, p := range pending {
		inv.notifier.emit(ctx, p.notice, p.overrides)
	}
}

func (inv *InventoryEngine) appendMovementLocked(m domain.StockMovement) {
	m.ID = inv.newID()
	inv.movements = append(inv.movements, m)
	if over := len(inv.movements) - MaxStockMovements; over > 0 {
		inv.movements = append(inv.movements[:0:0], inv.movements[over:]...)
	}
}

func (inv *InventoryEngine) indexLocked(id string) int {
	for i := range inv.items {
		if inv.items[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the selected collections back in full. It stops at the first failure.
func (inv *InventoryEngine) persistLocked(ctx context.Context, items, movements, alerts bool) error {
	if items {
		if err := saveList(ctx, inv.store, KeyInventory, inv.items); err != nil {
			return err
		}
	}
	if movements {
		if err := saveList(ctx, inv.store, KeyStockMovements, inv.movements); err != nil {
			return err
		}
	}
	if alerts {
		if err := saveList(ctx, inv.store, KeyInventoryAlerts, inv.alerts); err != nil {
			return err
		}
	}
	return nil
}

func clampReserved(s *domain.StockInfo) {
	if s.ReservedStock < 0 {
		s.ReservedStock = 0
	}
	if s.ReservedStock > s.CurrentStock {
		s.ReservedStock = max(s.CurrentStock, 0)
	}
}
