package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pharmacore/pkg/domain"
)

// InsuranceWarningDays is how far ahead insurance expiry is flagged.
const InsuranceWarningDays = 30

// PatientEngine owns patient records and patient alerts.
type PatientEngine struct {
	*env
	notifier         *NotificationEngine
	inactivityMonths int

	mu       sync.Mutex
	patients []domain.Patient
	alerts   []domain.PatientAlert
	open     alertIndex
}

func newPatientEngine(ctx context.Context, e *env, notifier *NotificationEngine, inactivityMonths int) (*PatientEngine, error) {
	patients, err := loadList[domain.Patient](ctx, e.store, KeyPatients)
	if err != nil {
		return nil, err
	}
	alerts, err := loadList[domain.PatientAlert](ctx, e.store, KeyPatientAlerts)
	if err != nil {
		return nil, err
	}
	pe := &PatientEngine{env: e, notifier: notifier, inactivityMonths: inactivityMonths, patients: patients, alerts: alerts, open: make(alertIndex)}
	for _, a := range alerts {
		if !a.IsResolved {
			pe.open.add(a.PatientID, patientAlertKind(a), a.ID)
		}
	}
	return pe, nil
}

// patientAlertKind is the dedup key of an alert. Allergy alerts are keyed per
// allergen and conflicts per allergen and medication.
func patientAlertKind(a domain.PatientAlert) string {
	switch a.Type {
	case domain.PatientAlertAllergy:
		return allergyKind(a.Metadata["allergen"])
	case domain.PatientAlertAllergyConflict:
		return conflictKind(a.Metadata["allergen"], a.Metadata["medication"])
	default:
		return string(a.Type)
	}
}

func allergyKind(allergen string) string {
	return string(domain.PatientAlertAllergy) + ":" + strings.ToLower(allergen)
}

func conflictKind(allergen, medication string) string {
	return string(domain.PatientAlertAllergyConflict) + ":" + strings.ToLower(allergen) + "|" + strings.ToLower(medication)
}

// AddPatient creates a patient, computing age from the date of birth when it
// is not supplied, and raises alerts for severe allergies and insurance expiry.
func (pe *PatientEngine) AddPatient(ctx context.Context, form domain.PatientFormData, actor string) (_ domain.Patient, err error) {
	defer pe.observe(ctx, "add_patient", pe.now(), &err)
	now := pe.now()
	patient := domain.Patient{
		ID:          pe.newID(),
		Personal:    form.Personal,
		Medical:     form.Medical,
		Preferences: form.Preferences,
		Metadata:    domain.PatientMetadata{IsActive: true, CreatedAt: now, UpdatedAt: now, CreatedBy: actor},
	}
	if patient.Personal.Age == 0 {
		patient.Personal.Age = domain.AgeAt(patient.Personal.DateOfBirth, now)
	}

	pe.mu.Lock()
	pe.patients = append(pe.patients, patient)
	pending := pe.allergyAlertsLocked(patient, severeAllergies(patient.Medical.Allergies))
	pending = append(pending, pe.insuranceAlertLocked(patient, now)...)
	err = pe.persistLocked(ctx, true, len(pending) > 0)
	pe.mu.Unlock()

	pe.dispatch(ctx, pending)
	if err != nil {
		return patient, err
	}
	pe.logger.Info("patient added", "id", patient.ID, "name", patient.Personal.FullName())
	return patient, nil
}

// UpdatePatient replaces the patient's details. Only severe allergies that were
// not already on record raise new alerts. It returns nil when id is unknown.
func (pe *PatientEngine) UpdatePatient(ctx context.Context, id string, form domain.PatientFormData, actor string) (_ *domain.Patient, err error) {
	defer pe.observe(ctx, "update_patient", pe.now(), &err)
	now := pe.now()

	pe.mu.Lock()
	idx := pe.indexLocked(id)
	if idx < 0 {
		pe.mu.Unlock()
		return nil, nil
	}
	p := &pe.patients[idx]
	known := make(map[string]bool, len(p.Medical.Allergies))
	for _, a := range p.Medical.Allergies {
		if a.Severity == domain.AllergySevere {
			known[strings.ToLower(a.Name)] = true
		}
	}
	var added []domain.Allergy
	for _, a := range severeAllergies(form.Medical.Allergies) {
		if !known[strings.ToLower(a.Name)] {
			added = append(added, a)
		}
	}
	dobChanged := !form.Personal.DateOfBirth.Equal(p.Personal.DateOfBirth)
	p.Personal = form.Personal
	if p.Personal.Age == 0 || dobChanged {
		p.Personal.Age = domain.AgeAt(p.Personal.DateOfBirth, now)
	}
	p.Medical = form.Medical
	p.Preferences = form.Preferences
	p.Metadata.UpdatedAt = now
	updated := *p
	pending := pe.allergyAlertsLocked(updated, added)
	pending = append(pending, pe.insuranceAlertLocked(updated, now)...)
	err = pe.persistLocked(ctx, true, len(pending) > 0)
	pe.mu.Unlock()

	pe.dispatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	pe.logger.Info("patient updated", "id", id, "by", actor)
	return &updated, nil
}

// DeletePatient removes a patient record. Alerts are kept.
func (pe *PatientEngine) DeletePatient(ctx context.Context, id string) (_ bool, err error) {
	defer pe.observe(ctx, "delete_patient", pe.now(), &err)
	pe.mu.Lock()
	defer pe.mu.Unlock()
	idx := pe.indexLocked(id)
	if idx < 0 {
		return false, nil
	}
	pe.patients = append(pe.patients[:idx:idx], pe.patients[idx+1:]...)
	if err := pe.persistLocked(ctx, true, false); err != nil {
		return false, err
	}
	pe.logger.Info("patient deleted", "id", id)
	return true, nil
}

// GetPatients returns every patient.
func (pe *PatientEngine) GetPatients() []domain.Patient {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return append([]domain.Patient(nil), pe.patients...)
}

// GetPatient returns the patient or nil.
func (pe *PatientEngine) GetPatient(id string) *domain.Patient {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	if idx := pe.indexLocked(id); idx >= 0 {
		p := pe.patients[idx]
		return &p
	}
	return nil
}

// SearchPatients matches query case-insensitively against name, phone and email.
func (pe *PatientEngine) SearchPatients(query string) []domain.Patient {
	q := strings.ToLower(strings.TrimSpace(query))
	pe.mu.Lock()
	defer pe.mu.Unlock()
	var out []domain.Patient
	for _, p := range pe.patients {
		fields := []string{p.Personal.FullName(), p.Personal.Contact.Phone, p.Personal.Contact.Email}
		for _, f := range fields {
			if q == "" || strings.Contains(strings.ToLower(f), q) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// CheckAllergyConflicts matches each allergy against each medication name by
// case-insensitive substring. Conflicts with severe allergies are critical and
// raise an alert. An unknown patient yields no conflicts.
func (pe *PatientEngine) CheckAllergyConflicts(ctx context.Context, patientID string, medications []string) (_ domain.AllergyCheck, err error) {
	defer pe.observe(ctx, "check_allergy_conflicts", pe.now(), &err)
	check := domain.AllergyCheck{Conflicts: []domain.AllergyConflict{}}

	pe.mu.Lock()
	idx := pe.indexLocked(patientID)
	if idx < 0 {
		pe.mu.Unlock()
		return check, nil
	}
	patient := pe.patients[idx]
	var pending []pendingNotice
	for _, allergy := range patient.Medical.Allergies {
		name := strings.ToLower(strings.TrimSpace(allergy.Name))
		if name == "" {
			continue
		}
		for _, med := range medications {
			lmed := strings.ToLower(strings.TrimSpace(med))
			if lmed == "" || !strings.Contains(lmed, name) && !strings.Contains(name, lmed) {
				continue
			}
			conflict := domain.AllergyConflict{Allergen: allergy.Name, Medication: med, Severity: conflictSeverity(allergy.Severity), Reaction: allergy.Reaction}
			check.Conflicts = append(check.Conflicts, conflict)
			if conflict.Severity != domain.SeverityCritical {
				continue
			}
			kind := conflictKind(allergy.Name, med)
			if pe.open.has(patient.ID, kind) {
				continue
			}
			pe.appendAlertLocked(patient.ID, kind, domain.PatientAlert{
				Type:     domain.PatientAlertAllergyConflict,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("%s conflicts with %s's severe %s allergy", med, patient.Personal.FullName(), allergy.Name),
				Metadata: map[string]string{"allergen": allergy.Name, "medication": med},
			})
			pending = append(pending, pendingNotice{notice: AllergyConflictNotice{PatientName: patient.Personal.FullName(), Allergen: allergy.Name, Medication: med}})
		}
	}
	check.HasConflicts = len(check.Conflicts) > 0
	if len(pending) > 0 {
		err = pe.persistLocked(ctx, false, true)
	}
	pe.mu.Unlock()

	pe.dispatch(ctx, pending)
	return check, err
}

func conflictSeverity(s domain.AllergySeverity) domain.AlertSeverity {
	switch s {
	case domain.AllergySevere:
		return domain.SeverityCritical
	case domain.AllergyModerate:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// RecordPatientVisit increments the visit count, stamps the visit time and
// marks the patient active, resolving any open inactivity alert. It returns
// false for an unknown id.
func (pe *PatientEngine) RecordPatientVisit(ctx context.Context, id string) (_ bool, err error) {
	defer pe.observe(ctx, "record_patient_visit", pe.now(), &err)
	now := pe.now()
	pe.mu.Lock()
	defer pe.mu.Unlock()
	idx := pe.indexLocked(id)
	if idx < 0 {
		return false, nil
	}
	m := &pe.patients[idx].Metadata
	m.VisitCount++
	m.LastVisit = &now
	m.IsActive = true
	m.UpdatedAt = now
	resolved := pe.resolveOpenLocked(id, string(domain.PatientAlertInactive), "system", now)
	if err := pe.persistLocked(ctx, true, resolved); err != nil {
		return false, err
	}
	return true, nil
}

// PatientAlertFilter narrows GetAlerts. Zero values match everything.
type PatientAlertFilter struct {
	PatientID      string
	Type           domain.PatientAlertType
	UnresolvedOnly bool
}

// GetAlerts returns matching patient alerts newest first.
func (pe *PatientEngine) GetAlerts(filter PatientAlertFilter) []domain.PatientAlert {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	var out []domain.PatientAlert
	for i := len(pe.alerts) - 1; i >= 0; i-- {
		a := pe.alerts[i]
		if filter.PatientID != "" && a.PatientID != filter.PatientID ||
			filter.Type != "" && a.Type != filter.Type ||
			filter.UnresolvedOnly && a.IsResolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

// UnresolvedAlertCount counts open patient alerts.
func (pe *PatientEngine) UnresolvedAlertCount() int {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	n := 0
	for _, a := range pe.alerts {
		if !a.IsResolved {
			n++
		}
	}
	return n
}

// ResolveAlert resolves one patient alert.
func (pe *PatientEngine) ResolveAlert(ctx context.Context, id, actor string) (_ bool, err error) {
	defer pe.observe(ctx, "resolve_patient_alert", pe.now(), &err)
	now := pe.now()
	pe.mu.Lock()
	defer pe.mu.Unlock()
	for i := range pe.alerts {
		a := &pe.alerts[i]
		if a.ID != id {
			continue
		}
		if !a.IsResolved {
			a.IsResolved = true
			a.ResolvedBy = actor
			a.ResolvedAt = &now
			pe.open.remove(a.PatientID, patientAlertKind(*a), a.ID)
			if err := pe.persistLocked(ctx, false, true); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

// PatientMonitorResult summarises one monitoring pass.
type PatientMonitorResult struct {
	Checked   int
	Birthdays int
	Inactive  int
	Insurance int
}

// PerformAutomatedMonitoring raises birthday alerts (once per calendar day),
// inactivity alerts for patients with no visit in the configured number of
// months, and insurance expiry alerts.
func (pe *PatientEngine) PerformAutomatedMonitoring(ctx context.Context) (_ PatientMonitorResult, err error) {
	defer pe.observe(ctx, "patient_monitoring", pe.now(), &err)
	now := pe.now()
	cutoff := now.AddDate(0, -pe.inactivityMonths, 0)
	var res PatientMonitorResult

	pe.mu.Lock()
	var pending []pendingNotice
	patientsChanged := false
	for i := range pe.patients {
		p := &pe.patients[i]
		name := p.Personal.FullName()
		if domain.IsBirthday(p.Personal.DateOfBirth, now) && !pe.birthdayAlertedLocked(p.ID, now) {
			age := now.Year() - p.Personal.DateOfBirth.Year()
			pe.appendAlertLocked(p.ID, string(domain.PatientAlertBirthday), domain.PatientAlert{
				Type:     domain.PatientAlertBirthday,
				Severity: domain.SeverityLow,
				Message:  fmt.Sprintf("%s turns %d today", name, age),
				Metadata: map[string]string{"date": now.Format(time.DateOnly)},
			})
			pending = append(pending, pendingNotice{notice: PatientBirthdayNotice{PatientName: name, Age: age}})
			res.Birthdays++
		}
		last := p.Metadata.CreatedAt
		if p.Metadata.LastVisit != nil {
			last = *p.Metadata.LastVisit
		}
		if last.Before(cutoff) {
			if p.Metadata.IsActive {
				p.Metadata.IsActive = false
				patientsChanged = true
			}
			if !pe.open.has(p.ID, string(domain.PatientAlertInactive)) {
				pe.appendAlertLocked(p.ID, string(domain.PatientAlertInactive), domain.PatientAlert{
					Type:     domain.PatientAlertInactive,
					Severity: domain.SeverityLow,
					Message:  fmt.Sprintf("%s has not visited in over %d months", name, pe.inactivityMonths),
				})
				pending = append(pending, pendingNotice{notice: PatientInactiveNotice{PatientName: name, Months: pe.inactivityMonths}})
				res.Inactive++
			}
		}
		ins := pe.insuranceAlertLocked(*p, now)
		res.Insurance += len(ins)
		pending = append(pending, ins...)
	}
	res.Checked = len(pe.patients)
	err = pe.persistLocked(ctx, patientsChanged, len(pending) > 0)
	pe.mu.Unlock()

	pe.dispatch(ctx, pending)
	if err != nil {
		return res, err
	}
	pe.logger.Info("patient monitoring complete", "checked", res.Checked, "birthdays", res.Birthdays, "inactive", res.Inactive, "insurance", res.Insurance)
	return res, nil
}

func (pe *PatientEngine) birthdayAlertedLocked(patientID string, now time.Time) bool {
	for i := len(pe.alerts) - 1; i >= 0; i-- {
		a := pe.alerts[i]
		if a.PatientID == patientID && a.Type == domain.PatientAlertBirthday && domain.SameDay(now, a.CreatedAt) {
			return true
		}
	}
	return false
}

func (pe *PatientEngine) allergyAlertsLocked(p domain.Patient, allergies []domain.Allergy) []pendingNotice {
	var pending []pendingNotice
	name := p.Personal.FullName()
	for _, a := range allergies {
		kind := allergyKind(a.Name)
		if pe.open.has(p.ID, kind) {
			continue
		}
		pe.appendAlertLocked(p.ID, kind, domain.PatientAlert{
			Type:     domain.PatientAlertAllergy,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("%s has a severe allergy to %s", name, a.Name),
			Metadata: map[string]string{"allergen": a.Name, "reaction": a.Reaction},
		})
		pending = append(pending, pendingNotice{notice: AllergyAlertNotice{PatientName: name, Allergen: a.Name}})
	}
	return pending
}

// insuranceAlertLocked flags coverage expiring within 30 days (high within 7)
// or already expired.
func (pe *PatientEngine) insuranceAlertLocked(p domain.Patient, now time.Time) []pendingNotice {
	ins := p.Medical.Insurance
	if ins == nil || ins.ExpiryDate.IsZero() {
		return nil
	}
	days := domain.DaysUntilExpiry(ins.ExpiryDate, now)
	name := p.Personal.FullName()
	md := map[string]string{"provider": ins.Provider, "policyNumber": ins.PolicyNumber}
	switch {
	case days <= 0:
		if pe.open.has(p.ID, string(domain.PatientAlertInsuranceExpired)) {
			return nil
		}
		pe.appendAlertLocked(p.ID, string(domain.PatientAlertInsuranceExpired), domain.PatientAlert{
			Type:     domain.PatientAlertInsuranceExpired,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("%s coverage for %s has expired", ins.Provider, name),
			Metadata: md,
		})
		return []pendingNotice{{notice: InsuranceExpiredNotice{PatientName: name, Provider: ins.Provider}}}
	case days <= InsuranceWarningDays:
		if pe.open.has(p.ID, string(domain.PatientAlertInsuranceExpiring)) {
			return nil
		}
		severity := domain.SeverityMedium
		var overrides *Overrides
		if days <= urgentExpiryDays {
			severity = domain.SeverityHigh
			overrides = &Overrides{Priority: domain.PriorityHigh}
		}
		md["daysUntilExpiry"] = fmt.Sprint(days)
		pe.appendAlertLocked(p.ID, string(domain.PatientAlertInsuranceExpiring), domain.PatientAlert{
			Type:     domain.PatientAlertInsuranceExpiring,
			Severity: severity,
			Message:  fmt.Sprintf("%s coverage for %s expires in %d days", ins.Provider, name, days),
			Metadata: md,
		})
		return []pendingNotice{{notice: InsuranceExpiringNotice{PatientName: name, Provider: ins.Provider, Days: days}, overrides: overrides}}
	default:
		return nil
	}
}

// resolveOpenLocked resolves the open alert of kind for patientID, if any.
func (pe *PatientEngine) resolveOpenLocked(patientID, kind, actor string, now time.Time) bool {
	id, ok := pe.open.get(patientID, kind)
	if !ok {
		return false
	}
	for i := range pe.alerts {
		a := &pe.alerts[i]
		if a.ID != id {
			continue
		}
		a.IsResolved = true
		a.ResolvedBy = actor
		a.ResolvedAt = &now
		pe.open.remove(patientID, kind, id)
		pe.logger.Debug("patient alert resolved by visit", "patient", patientID, "type", kind)
		return true
	}
	return false
}

func (pe *PatientEngine) appendAlertLocked(patientID, kind string, a domain.PatientAlert) {
	a.ID = pe.newID()
	a.PatientID = patientID
	a.CreatedAt = pe.now()
	pe.alerts = append(pe.alerts, a)
	pe.open.add(patientID, kind, a.ID)
}

func (pe *PatientEngine) dispatch(ctx context.Context, pending []pendingNotice) {
	if pe.notifier == nil {
		return
	}
	for _, p := range pending {
		pe.notifier.emit(ctx, p.notice, p.overrides)
	}
}

func (pe *PatientEngine) indexLocked(id string) int {
	for i := range pe.patients {
		if pe.patients[i].ID == id {
			return i
		}
	}
	return -1
}

func (pe *PatientEngine) persistLocked(ctx context.Context, patients, alerts bool) error {
	if patients {
		if err := saveList(ctx, pe.store, KeyPatients, pe.patients); err != nil {
			return err
		}
	}
	if alerts {
		if err := saveList(ctx, pe.store, KeyPatientAlerts, pe.alerts); err != nil {
			return err
		}
	}
	return nil
}

func severeAllergies(in []domain.Allergy) []domain.Allergy {
	var out []domain.Allergy
	for _, a := range in {
		if a.Severity == domain.AllergySevere {
			out = append(out, a)
		}
	}
	return out
}
