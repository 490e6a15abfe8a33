package core

import "pharmacore/pkg/domain"

// Notice is a typed notification payload. Each implementation is bound to
// exactly one template, so rendering a Notice cannot fail.
type Notice interface {
	TemplateKey() string
	Fields() map[string]any
	template() noticeTemplate
}

// LowStockNotice reports an item at or below its minimum.
type LowStockNotice struct {
	ItemName string
	Quantity int
	Unit     string
}

func (LowStockNotice) TemplateKey() string { return tplLowStock.key }
func (LowStockNotice) template() noticeTemplate { return tplLowStock }
func (n LowStockNotice) Fields() map[string]any {
	return map[string]any{"itemName": n.ItemName, "quantity": n.Quantity, "unit": n.Unit}
}

// CriticalLowStockNotice reports an item below a quarter of its minimum.
type CriticalLowStockNotice struct {
	ItemName string
	Quantity int
	Minimum  int
	Unit     string
}

func (CriticalLowStockNotice) TemplateKey() string { return tplCriticalLowStock.key }
func (CriticalLowStockNotice) template() noticeTemplate { return tplCriticalLowStock }
func (n CriticalLowStockNotice) Fields() map[string]any {
	return map[string]any{"itemName": n.ItemName, "quantity": n.Quantity, "minimum": n.Minimum, "unit": n.Unit}
}

// OutOfStockNotice reports an item with no stock.
type OutOfStockNotice struct {
	ItemName string
}

func (OutOfStockNotice) TemplateKey() string { return tplOutOfStock.key }
func (OutOfStockNotice) template() noticeTemplate { return tplOutOfStock }
func (n OutOfStockNotice) Fields() map[string]any { return map[string]any{"itemName": n.ItemName} }

// ExpiringSoonNotice reports an item inside the near-expiry window.
type ExpiringSoonNotice struct {
	ItemName    string
	BatchNumber string
	Days        int
}

func (ExpiringSoonNotice) TemplateKey() string { return tplExpiringSoon.key }
func (ExpiringSoonNotice) template() noticeTemplate { return tplExpiringSoon }
func (n ExpiringSoonNotice) Fields() map[string]any {
	return map[string]any{"itemName": n.ItemName, "batchNumber": n.BatchNumber, "days": n.Days}
}

// ExpiredItemNotice reports an item past its expiry date.
type ExpiredItemNotice struct {
	ItemName    string
	BatchNumber string
}

func (ExpiredItemNotice) TemplateKey() string { return tplExpiredItem.key }
func (ExpiredItemNotice) template() noticeTemplate { return tplExpiredItem }
func (n ExpiredItemNotice) Fields() map[string]any {
	return map[string]any{"itemName": n.ItemName, "batchNumber": n.BatchNumber}
}

// OverstockNotice reports stock well above the configured maximum.
type OverstockNotice struct {
	ItemName string
	Quantity int
	Maximum  int
	Unit     string
}

func (OverstockNotice) TemplateKey() string { return tplOverstock.key }
func (OverstockNotice) template() noticeTemplate { return tplOverstock }
func (n OverstockNotice) Fields() map[string]any {
	return map[string]any{"itemName": n.ItemName, "quantity": n.Quantity, "maximum": n.Maximum, "unit": n.Unit}
}

// DrugInteractionNotice reports a serious interaction inside one prescription.
type DrugInteractionNotice struct {
	DrugA       string
	DrugB       string
	Severity    domain.InteractionSeverity
	PatientName string
}

func (DrugInteractionNotice) TemplateKey() string { return tplDrugInteraction.key }
func (DrugInteractionNotice) template() noticeTemplate { return tplDrugInteraction }
func (n DrugInteractionNotice) Fields() map[string]any {
	return map[string]any{"drugA": n.DrugA, "drugB": n.DrugB, "severity": string(n.Severity), "patientName": n.PatientName}
}

// AllergyAlertNotice reports a newly recorded severe allergy.
type AllergyAlertNotice struct {
	PatientName string
	Allergen    string
}

func (AllergyAlertNotice) TemplateKey() string { return tplAllergyAlert.key }
func (AllergyAlertNotice) template() noticeTemplate { return tplAllergyAlert }
func (n AllergyAlertNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "allergen": n.Allergen}
}

// AllergyConflictNotice reports a medication matching a severe allergy.
type AllergyConflictNotice struct {
	PatientName string
	Allergen    string
	Medication  string
}

func (AllergyConflictNotice) TemplateKey() string { return tplAllergyConflict.key }
func (AllergyConflictNotice) template() noticeTemplate { return tplAllergyConflict }
func (n AllergyConflictNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "allergen": n.Allergen, "medication": n.Medication}
}

// ControlledSubstanceNotice reports a controlled medication on a prescription.
type ControlledSubstanceNotice struct {
	PrescriptionNumber string
	Medication         string
}

func (ControlledSubstanceNotice) TemplateKey() string { return tplControlledSubstance.key }
func (ControlledSubstanceNotice) template() noticeTemplate { return tplControlledSubstance }
func (n ControlledSubstanceNotice) Fields() map[string]any {
	return map[string]any{"prescriptionNumber": n.PrescriptionNumber, "medication": n.Medication}
}

// PrescriptionReadyNotice reports a prescription awaiting pickup.
type PrescriptionReadyNotice struct {
	PrescriptionNumber string
	PatientName        string
}

func (PrescriptionReadyNotice) TemplateKey() string { return tplPrescriptionReady.key }
func (PrescriptionReadyNotice) template() noticeTemplate { return tplPrescriptionReady }
func (n PrescriptionReadyNotice) Fields() map[string]any {
	return map[string]any{"prescriptionNumber": n.PrescriptionNumber, "patientName": n.PatientName}
}

// PrescriptionOverdueNotice reports a ready prescription left uncollected.
type PrescriptionOverdueNotice struct {
	PrescriptionNumber string
	PatientName        string
	Days               int
}

func (PrescriptionOverdueNotice) TemplateKey() string { return tplPrescriptionOverdue.key }
func (PrescriptionOverdueNotice) template() noticeTemplate { return tplPrescriptionOverdue }
func (n PrescriptionOverdueNotice) Fields() map[string]any {
	return map[string]any{"prescriptionNumber": n.PrescriptionNumber, "patientName": n.PatientName, "days": n.Days}
}

// PrescriptionExpiredNotice reports a prescription that passed its due date.
type PrescriptionExpiredNotice struct {
	PrescriptionNumber string
	PatientName        string
}

func (PrescriptionExpiredNotice) TemplateKey() string { return tplPrescriptionExpired.key }
func (PrescriptionExpiredNotice) template() noticeTemplate { return tplPrescriptionExpired }
func (n PrescriptionExpiredNotice) Fields() map[string]any {
	return map[string]any{"prescriptionNumber": n.PrescriptionNumber, "patientName": n.PatientName}
}

// PatientBirthdayNotice reports a patient birthday.
type PatientBirthdayNotice struct {
	PatientName string
	Age         int
}

func (PatientBirthdayNotice) TemplateKey() string { return tplPatientBirthday.key }
func (PatientBirthdayNotice) template() noticeTemplate { return tplPatientBirthday }
func (n PatientBirthdayNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "age": n.Age}
}

// InsuranceExpiringNotice reports coverage ending soon.
type InsuranceExpiringNotice struct {
	PatientName string
	Provider    string
	Days        int
}

func (InsuranceExpiringNotice) TemplateKey() string { return tplInsuranceExpiring.key }
func (InsuranceExpiringNotice) template() noticeTemplate { return tplInsuranceExpiring }
func (n InsuranceExpiringNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "provider": n.Provider, "days": n.Days}
}

// InsuranceExpiredNotice reports lapsed coverage.
type InsuranceExpiredNotice struct {
	PatientName string
	Provider    string
}

func (InsuranceExpiredNotice) TemplateKey() string { return tplInsuranceExpired.key }
func (InsuranceExpiredNotice) template() noticeTemplate { return tplInsuranceExpired }
func (n InsuranceExpiredNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "provider": n.Provider}
}

// PatientInactiveNotice reports a patient with no recent visit.
type PatientInactiveNotice struct {
	PatientName string
	Months      int
}

func (PatientInactiveNotice) TemplateKey() string { return tplPatientInactive.key }
func (PatientInactiveNotice) template() noticeTemplate { return tplPatientInactive }
func (n PatientInactiveNotice) Fields() map[string]any {
	return map[string]any{"patientName": n.PatientName, "months": n.Months}
}

// SystemNotice is a free-form operational message.
type SystemNotice struct {
	Title   string
	Message string
}

func (SystemNotice) TemplateKey() string { return tplSystem.key }
func (SystemNotice) template() noticeTemplate { return tplSystem }
func (n SystemNotice) Fields() map[string]any {
	return map[string]any{"title": n.Title, "message": n.Message}
}
