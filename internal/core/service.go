package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pharmacore/pkg/domain"
)

// Service wires the four engines over one key-value store. Engines are
// created eagerly and share the clock, logger, metrics and id source.
type Service struct {
	env           *env
	notifications *NotificationEngine
	inventory     *InventoryEngine
	patients      *PatientEngine
	prescriptions *PrescriptionEngine
}

// NewService loads every engine's collections from store.
func NewService(ctx context.Context, store domain.KVStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &env{store: store, clock: o.clock, logger: o.logger, metrics: o.metrics, newID: o.newID}

	notifications, err := newNotificationEngine(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	inventory, err := newInventoryEngine(ctx, e, notifications)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	patients, err := newPatientEngine(ctx, e, notifications, o.inactivityMonths)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	var randMu sync.Mutex
	randN := func(n int) int {
		randMu.Lock()
		defer randMu.Unlock()
		return o.rand.IntN(n)
	}
	prescriptions, err := newPrescriptionEngine(ctx, e, notifications, randN)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions: %w", err)
	}
	return &Service{
		env:           e,
		notifications: notifications,
		inventory:     inventory,
		patients:      patients,
		prescriptions: prescriptions,
	}, nil
}

// Inventory returns the inventory engine.
func (s *Service) Inventory() *InventoryEngine { return s.inventory }

// Notifications returns the notification engine.
func (s *Service) Notifications() *NotificationEngine { return s.notifications }

// Patients returns the patient engine.
func (s *Service) Patients() *PatientEngine { return s.patients }

// Prescriptions returns the prescription engine.
func (s *Service) Prescriptions() *PrescriptionEngine { return s.prescriptions }

// StorageKeys lists every key the engines persist under.
func (s *Service) StorageKeys() []string {
	return []string{
		KeyInventory,
		KeyStockMovements,
		KeyInventoryAlerts,
		KeyNotifications,
		KeyPatients,
		KeyPatientAlerts,
		KeyPrescriptions,
		KeyPrescriptionAlerts,
	}
}

// TickReport collects the results of one monitoring pass.
type TickReport struct {
	At            time.Time
	Inventory     InventoryMonitorResult
	Patients      PatientMonitorResult
	Prescriptions PrescriptionMonitorResult
	Unresolved    map[string]int
}

// Tick runs inventory, patient and prescription monitoring in that order.
// A failing engine stops the pass and the partial report is returned.
func (s *Service) Tick(ctx context.Context) (report TickReport, err error) {
	defer s.env.observe(ctx, "tick", s.env.now(), &err)
	report.At = s.env.now()
	if report.Inventory, err = s.inventory.PerformAutomatedMonitoring(ctx); err != nil {
		return report, fmt.Errorf("inventory monitoring: %w", err)
	}
	if report.Patients, err = s.patients.PerformAutomatedMonitoring(ctx); err != nil {
		return report, fmt.Errorf("patient monitoring: %w", err)
	}
	if report.Prescriptions, err = s.prescriptions.PerformAutomatedMonitoring(ctx); err != nil {
		return report, fmt.Errorf("prescription monitoring: %w", err)
	}
	report.Unresolved = map[string]int{
		"inventory":    s.inventory.UnresolvedAlertCount(),
		"patient":      s.patients.UnresolvedAlertCount(),
		"prescription": s.prescriptions.UnresolvedAlertCount(),
	}
	if gauge, ok := s.env.metrics.(AlertGauge); ok {
		for engine, n := range report.Unresolved {
			gauge.SetUnresolvedAlerts(engine, n)
		}
	}
	return report, nil
}

// Run ticks immediately and then every interval until ctx is done. Tick
// errors are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context, interval time.Duration, onTick func(TickReport)) error {
	if interval <= 0 {
		return fmt.Errorf("core: monitor interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := s.Tick(ctx)
		if err != nil {
			s.env.logger.Error("monitoring tick failed", "error", err)
		} else if onTick != nil {
			onTick(report)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
