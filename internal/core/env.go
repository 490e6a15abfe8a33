package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmacore/pkg/domain"
)

// Storage keys. Each engine persists its full collection under its own key.
const (
	KeyInventory          = "pharmacy_inventory"
	KeyStockMovements     = "pharmacy_stock_movements"
	KeyInventoryAlerts    = "pharmacy_inventory_alerts"
	KeyNotifications      = "pharmacy_notifications"
	KeyPatients           = "pharmacy_patients"
	KeyPatientAlerts      = "pharmacy_patient_alerts"
	KeyPrescriptions      = "pharmacy_prescriptions"
	KeyPrescriptionAlerts = "pharmacy_prescription_alerts"
)

// env carries the collaborators shared by every engine.
type env struct {
	store   domain.KVStore
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	newID   IDGenerator
}

func (e *env) now() time.Time { return e.clock.Now() }

// observe records one operation outcome; call it deferred with a pointer to the named error.
func (e *env) observe(ctx context.Context, op string, started time.Time, err *error) {
	e.metrics.Observe(ctx, op, err == nil || *err == nil, e.clock.Now().Sub(started))
}

// loadList decodes the JSON array stored at key. A missing key yields an empty list.
func loadList[T any](ctx context.Context, store domain.KVStore, key string) ([]T, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// saveList writes the full list back under key.
func saveList[T any](ctx context.Context, store domain.KVStore, key string, list []T) error {
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
