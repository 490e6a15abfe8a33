package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"pharmacore/pkg/domain"
)

// Pickup thresholds in days.
const (
	OverduePickupDays  = 3
	OverdueEscalateDay = 7
)

// ErrInvalidTransition rejects a status change out of a terminal status.
var ErrInvalidTransition = errors.New("invalid prescription status transition")

// PrescriptionEngine owns prescriptions and prescription alerts.
type PrescriptionEngine struct {
	*env
	notifier *NotificationEngine
	randN    func(n int) int

	mu            sync.Mutex
	prescriptions []domain.Prescription
	alerts        []domain.PrescriptionAlert
	open          alertIndex
}

func newPrescriptionEngine(ctx context.Context, e *env, notifier *NotificationEngine, randN func(int) int) (*PrescriptionEngine, error) {
	list, err := loadList[domain.Prescription](ctx, e.store, KeyPrescriptions)
	if err != nil {
		return nil, err
	}
	alerts, err := loadList[domain.PrescriptionAlert](ctx, e.store, KeyPrescriptionAlerts)
	if err != nil {
		return nil, err
	}
	pr := &PrescriptionEngine{env: e, notifier: notifier, randN: randN, prescriptions: list, alerts: alerts, open: make(alertIndex)}
	for _, a := range alerts {
		if !a.IsResolved {
			pr.open.add(a.PrescriptionID, prescriptionAlertKind(a), a.ID)
		}
	}
	return pr, nil
}

func prescriptionAlertKind(a domain.PrescriptionAlert) string {
	switch a.Type {
	case domain.PrescriptionAlertInteraction:
		return string(a.Type) + ":" + a.Metadata["drugA"] + "|" + a.Metadata["drugB"]
	case domain.PrescriptionAlertControlled:
		return string(a.Type) + ":" + a.Metadata["medication"]
	default:
		return string(a.Type)
	}
}

// CreatePrescription records a pending prescription with a generated number,
// screens it for drug interactions and controlled substances, and raises alerts.
func (pr *PrescriptionEngine) CreatePrescription(ctx context.Context, form domain.PrescriptionFormData, actor string) (_ domain.Prescription, err error) {
	defer pr.observe(ctx, "create_prescription", pr.now(), &err)
	now := pr.now()
	meds := append([]domain.PrescribedMedication(nil), form.Medications...)
	for i := range meds {
		if IsControlledSubstance(meds[i].Name) {
			meds[i].IsControlled = true
		}
	}
	priority := form.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	rx := domain.Prescription{
		ID:          pr.newID(),
		PatientID:   form.PatientID,
		PatientName: form.PatientName,
		Details: domain.PrescriptionDetails{
			PrescriptionNumber: pr.prescriptionNumber(now),
			DoctorName:         form.DoctorName,
			DoctorLicense:      form.DoctorLicense,
			Medications:        meds,
			IssuedAt:           now,
			Notes:              form.Notes,
		},
		Status:     domain.PrescriptionPending,
		Timestamps: domain.PrescriptionTimestamps{CreatedAt: now, UpdatedAt: now, DueAt: form.DueAt},
		Validation: domain.PrescriptionValidation{Interactions: FindInteractions(meds), ValidatedAt: now},
		Metadata:   domain.PrescriptionMetadata{Priority: priority, HasInsurance: form.HasInsurance, CreatedBy: actor, UpdatedBy: actor},
	}

	pr.mu.Lock()
	pr.prescriptions = append(pr.prescriptions, rx)
	pending := pr.screeningAlertsLocked(rx)
	err = pr.persistLocked(ctx, true, len(pending) > 0)
	pr.mu.Unlock()

	pr.dispatch(ctx, pending)
	if err != nil {
		return rx, err
	}
	pr.logger.Info("prescription created", "id", rx.ID, "number", rx.Details.PrescriptionNumber, "interactions", len(rx.Validation.Interactions))
	return rx, nil
}

// prescriptionNumber is RX-YYYYMMDD-NNNN with a random suffix.
func (pr *PrescriptionEngine) prescriptionNumber(now time.Time) string {
	return fmt.Sprintf("RX-%s-%04d", now.Format("20060102"), pr.randN(10000))
}

func (pr *PrescriptionEngine) screeningAlertsLocked(rx domain.Prescription) []pendingNotice {
	var pending []pendingNotice
	for _, in := range rx.Validation.Interactions {
		if in.Severity != domain.InteractionMajor && in.Severity != domain.InteractionContraindicated {
			continue
		}
		severity := domain.SeverityHigh
		var overrides *Overrides
		if in.Severity == domain.InteractionContraindicated {
			severity = domain.SeverityCritical
			overrides = &Overrides{Priority: domain.PriorityCritical}
		}
		a := domain.PrescriptionAlert{
			Type:     domain.PrescriptionAlertInteraction,
			Severity: severity,
			Message:  fmt.Sprintf("%s interaction between %s and %s: %s", in.Severity, in.DrugA, in.DrugB, in.Description),
			Metadata: map[string]string{"drugA": in.DrugA, "drugB": in.DrugB, "severity": string(in.Severity)},
		}
		if pr.appendAlertLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{
				notice:    DrugInteractionNotice{DrugA: in.DrugA, DrugB: in.DrugB, Severity: in.Severity, PatientName: rx.PatientName},
				overrides: overrides,
			})
		}
	}
	for _, med := range rx.Details.Medications {
		if !med.IsControlled {
			continue
		}
		a := domain.PrescriptionAlert{
			Type:     domain.PrescriptionAlertControlled,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("Prescription %s includes controlled substance %s", rx.Details.PrescriptionNumber, med.Name),
			Metadata: map[string]string{"medication": med.Name},
		}
		if pr.appendAlertLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{notice: ControlledSubstanceNotice{PrescriptionNumber: rx.Details.PrescriptionNumber, Medication: med.Name}})
		}
	}
	return pending
}

// UpdatePrescriptionStatus moves a prescription to status, stamping the
// matching timestamp. Entering ready raises a pickup alert, dispensing resolves
// pickup alerts, and cancelling or returning resolves every alert. It returns
// nil for an unknown id and ErrInvalidTransition when leaving a terminal status.
func (pr *PrescriptionEngine) UpdatePrescriptionStatus(ctx context.Context, id string, status domain.PrescriptionStatus, actor string) (_ *domain.Prescription, err error) {
	defer pr.observe(ctx, "update_prescription_status", pr.now(), &err)
	now := pr.now()

	pr.mu.Lock()
	idx := pr.indexLocked(id)
	if idx < 0 {
		pr.mu.Unlock()
		return nil, nil
	}
	rx := &pr.prescriptions[idx]
	if rx.Status == status {
		current := *rx
		pr.mu.Unlock()
		return &current, nil
	}
	if rx.Status.Terminal() {
		from := rx.Status
		pr.mu.Unlock()
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, status)
	}
	pending := pr.transitionLocked(rx, status, actor, now)
	updated := *rx
	err = pr.persistLocked(ctx, true, true)
	pr.mu.Unlock()

	pr.dispatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	pr.logger.Info("prescription status changed", "id", id, "status", status, "by", actor)
	return &updated, nil
}

func (pr *PrescriptionEngine) transitionLocked(rx *domain.Prescription, status domain.PrescriptionStatus, actor string, now time.Time) []pendingNotice {
	rx.Status = status
	rx.Timestamps.UpdatedAt = now
	rx.Metadata.UpdatedBy = actor
	stamp := now
	var pending []pendingNotice
	switch status {
	case domain.PrescriptionProcessing:
		rx.Timestamps.ProcessingAt = &stamp
	case domain.PrescriptionReady:
		rx.Timestamps.ReadyAt = &stamp
		a := domain.PrescriptionAlert{
			Type:     domain.PrescriptionAlertPickup,
			Severity: domain.SeverityLow,
			Message:  fmt.Sprintf("Prescription %s for %s is ready for pickup", rx.Details.PrescriptionNumber, rx.PatientName),
		}
		if pr.appendAlertLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{notice: PrescriptionReadyNotice{PrescriptionNumber: rx.Details.PrescriptionNumber, PatientName: rx.PatientName}})
		}
	case domain.PrescriptionDispensed:
		rx.Timestamps.DispensedAt = &stamp
		pr.resolveLocked(rx.ID, actor, now, domain.PrescriptionAlertPickup, domain.PrescriptionAlertOverdue)
	case domain.PrescriptionCancelled:
		rx.Timestamps.CancelledAt = &stamp
		pr.resolveLocked(rx.ID, actor, now)
	case domain.PrescriptionReturned:
		rx.Timestamps.ReturnedAt = &stamp
		pr.resolveLocked(rx.ID, actor, now)
	case domain.PrescriptionExpired:
		rx.Timestamps.ExpiredAt = &stamp
		pr.resolveLocked(rx.ID, actor, now, domain.PrescriptionAlertPickup, domain.PrescriptionAlertOverdue)
		a := domain.PrescriptionAlert{
			Type:     domain.PrescriptionAlertExpired,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("Prescription %s for %s expired before dispensing", rx.Details.PrescriptionNumber, rx.PatientName),
		}
		if pr.appendAlertLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{notice: PrescriptionExpiredNotice{PrescriptionNumber: rx.Details.PrescriptionNumber, PatientName: rx.PatientName}})
		}
	case domain.PrescriptionOnHold:
		rx.Timestamps.OnHoldAt = &stamp
	}
	return pending
}

// GetPrescription returns the prescription or nil.
func (pr *PrescriptionEngine) GetPrescription(id string) *domain.Prescription {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if idx := pr.indexLocked(id); idx >= 0 {
		rx := pr.prescriptions[idx]
		return &rx
	}
	return nil
}

// PrescriptionFilter narrows GetPrescriptions. Zero values match everything.
type PrescriptionFilter struct {
	PatientID string
	Status    domain.PrescriptionStatus
}

// GetPrescriptions returns matching prescriptions in creation order.
func (pr *PrescriptionEngine) GetPrescriptions(filter PrescriptionFilter) []domain.Prescription {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	var out []domain.Prescription
	for _, rx := range pr.prescriptions {
		if filter.PatientID != "" && rx.PatientID != filter.PatientID {
			continue
		}
		if filter.Status != "" && rx.Status != filter.Status {
			continue
		}
		out = append(out, rx)
	}
	return out
}

// PrescriptionAlertFilter narrows GetAlerts. Zero values match everything.
type PrescriptionAlertFilter struct {
	PrescriptionID string
	Type           domain.PrescriptionAlertType
	UnresolvedOnly bool
}

// GetAlerts returns matching prescription alerts newest first.
func (pr *PrescriptionEngine) GetAlerts(filter PrescriptionAlertFilter) []domain.PrescriptionAlert {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	var out []domain.PrescriptionAlert
	for i := len(pr.alerts) - 1; i >= 0; i-- {
		a := pr.alerts[i]
		if filter.PrescriptionID != "" && a.PrescriptionID != filter.PrescriptionID ||
			filter.Type != "" && a.Type != filter.Type ||
			filter.UnresolvedOnly && a.IsResolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

// UnresolvedAlertCount counts open prescription alerts.
func (pr *PrescriptionEngine) UnresolvedAlertCount() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.open)
}

// ResolveAlert resolves one prescription alert.
func (pr *PrescriptionEngine) ResolveAlert(ctx context.Context, id, actor string) (_ bool, err error) {
	defer pr.observe(ctx, "resolve_prescription_alert", pr.now(), &err)
	now := pr.now()
	pr.mu.Lock()
	defer pr.mu.Unlock()
	for i := range pr.alerts {
		a := &pr.alerts[i]
		if a.ID != id {
			continue
		}
		if !a.IsResolved {
			pr.markResolvedLocked(a, actor, now)
			if err := pr.persistLocked(ctx, false, true); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

// PrescriptionMonitorResult summarises one monitoring pass.
type PrescriptionMonitorResult struct {
	Checked   int
	Overdue   int
	Escalated int
	Expired   int
}

// PerformAutomatedMonitoring expires prescriptions past their due time that
// were never dispensed, then flags prescriptions ready for more than three days.
func (pr *PrescriptionEngine) PerformAutomatedMonitoring(ctx context.Context) (_ PrescriptionMonitorResult, err error) {
	defer pr.observe(ctx, "prescription_monitoring", pr.now(), &err)
	now := pr.now()
	var res PrescriptionMonitorResult

	pr.mu.Lock()
	var pending []pendingNotice
	changed := false
	for i := range pr.prescriptions {
		rx := &pr.prescriptions[i]
		if !rx.Status.Terminal() && rx.Timestamps.DueAt != nil && now.After(*rx.Timestamps.DueAt) {
			pending = append(pending, pr.transitionLocked(rx, domain.PrescriptionExpired, "system", now)...)
			res.Expired++
			changed = true
			continue
		}
		if rx.Status != domain.PrescriptionReady || rx.Timestamps.ReadyAt == nil {
			continue
		}
		days := int(math.Floor(now.Sub(*rx.Timestamps.ReadyAt).Hours() / 24))
		if days <= OverduePickupDays {
			continue
		}
		severity := domain.SeverityMedium
		var overrides *Overrides
		if days >= OverdueEscalateDay {
			severity = domain.SeverityHigh
			overrides = &Overrides{Priority: domain.PriorityHigh}
		}
		a := domain.PrescriptionAlert{
			Type:     domain.PrescriptionAlertOverdue,
			Severity: severity,
			Message:  fmt.Sprintf("Prescription %s for %s has been ready for %d days", rx.Details.PrescriptionNumber, rx.PatientName, days),
			Metadata: map[string]string{"daysReady": fmt.Sprint(days)},
		}
		if pr.appendAlertLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{
				notice:    PrescriptionOverdueNotice{PrescriptionNumber: rx.Details.PrescriptionNumber, PatientName: rx.PatientName, Days: days},
				overrides: overrides,
			})
			res.Overdue++
			changed = true
		} else if pr.escalateLocked(rx.ID, a) {
			pending = append(pending, pendingNotice{
				notice:    PrescriptionOverdueNotice{PrescriptionNumber: rx.Details.PrescriptionNumber, PatientName: rx.PatientName, Days: days},
				overrides: overrides,
			})
			res.Escalated++
			changed = true
		}
	}
	res.Checked = len(pr.prescriptions)
	err = pr.persistLocked(ctx, res.Expired > 0, changed)
	pr.mu.Unlock()

	pr.dispatch(ctx, pending)
	if err != nil {
		return res, err
	}
	pr.logger.Info("prescription monitoring complete", "checked", res.Checked, "overdue", res.Overdue, "escalated", res.Escalated, "expired", res.Expired)
	return res, nil
}

// appendAlertLocked stores the alert unless an unresolved one of the same kind
// exists for the prescription. It reports whether the alert was added.
func (pr *PrescriptionEngine) appendAlertLocked(prescriptionID string, a domain.PrescriptionAlert) bool {
	a.PrescriptionID = prescriptionID
	kind := prescriptionAlertKind(a)
	if pr.open.has(prescriptionID, kind) {
		pr.logger.Debug("duplicate prescription alert suppressed", "prescription", prescriptionID, "type", a.Type)
		return false
	}
	a.ID = pr.newID()
	a.CreatedAt = pr.now()
	pr.alerts = append(pr.alerts, a)
	pr.open.add(prescriptionID, kind, a.ID)
	return true
}

// escalateLocked raises the open alert matching a to a's severity when that is
// higher, refreshing its message and marking it unread. It reports whether
// anything changed.
func (pr *PrescriptionEngine) escalateLocked(prescriptionID string, a domain.PrescriptionAlert) bool {
	openID, ok := pr.open.get(prescriptionID, prescriptionAlertKind(a))
	if !ok {
		return false
	}
	for i := range pr.alerts {
		cur := &pr.alerts[i]
		if cur.ID != openID {
			continue
		}
		if a.Severity.Rank() <= cur.Severity.Rank() {
			return false
		}
		pr.logger.Info("prescription alert escalated", "alert", cur.ID, "from", cur.Severity, "to", a.Severity)
		cur.Severity = a.Severity
		cur.Message = a.Message
		cur.Metadata = a.Metadata
		cur.IsRead = false
		return true
	}
	return false
}

// resolveLocked resolves the prescription's open alerts of the given types, or all of them when none are given.
func (pr *PrescriptionEngine) resolveLocked(prescriptionID, actor string, now time.Time, types ...domain.PrescriptionAlertType) {
	for i := range pr.alerts {
		a := &pr.alerts[i]
		if a.PrescriptionID != prescriptionID || a.IsResolved {
			continue
		}
		if len(types) > 0 && !containsType(types, a.Type) {
			continue
		}
		pr.markResolvedLocked(a, actor, now)
	}
}

func (pr *PrescriptionEngine) markResolvedLocked(a *domain.PrescriptionAlert, actor string, now time.Time) {
	a.IsResolved = true
	a.ResolvedBy = actor
	a.ResolvedAt = &now
	pr.open.remove(a.PrescriptionID, prescriptionAlertKind(*a), a.ID)
}

func containsType(types []domain.PrescriptionAlertType, t domain.PrescriptionAlertType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (pr *PrescriptionEngine) dispatch(ctx context.Context, pending []pendingNotice) {
	if pr.notifier == nil {
		return
	}
	for _, p := range pending {
		pr.notifier.emit(ctx, p.notice, p.overrides)
	}
}

func (pr *PrescriptionEngine) indexLocked(id string) int {
	for i := range pr.prescriptions {
		if pr.prescriptions[i].ID == id {
			return i
		}
	}
	return -1
}

func (pr *PrescriptionEngine) persistLocked(ctx context.Context, prescriptions, alerts bool) error {
	if prescriptions {
		if err := saveList(ctx, pr.store, KeyPrescriptions, pr.prescriptions); err != nil {
			return err
		}
	}
	if alerts {
		if err := saveList(ctx, pr.store, KeyPrescriptionAlerts, pr.alerts); err != nil {
			return err
		}
	}
	return nil
}
