package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"pharmacore/pkg/domain"
)

// ErrTemplateNotFound is returned by CreateFromTemplate for an unregistered key.
var ErrTemplateNotFound = errors.New("notification template not found")

type noticeTemplate struct {
	key      string
	kind     domain.NotificationType
	category domain.NotificationCategory
	priority domain.Priority
	title    string
	message  string
	actions  []domain.NotificationAction
}

var (
	tplLowStock = noticeTemplate{
		key:      "LOW_STOCK",
		kind:     domain.NotificationInventory,
		category: domain.NoticeInventory,
		priority: domain.PriorityMedium,
		title:    "Low Stock Alert",
		message:  "{itemName} is running low with only {quantity} {unit} remaining",
		actions:  []domain.NotificationAction{{ID: "reorder", Label: "Reorder", Action: "inventory.reorder"}, {ID: "view", Label: "View Item", Action: "inventory.view"}},
	}
	tplCriticalLowStock = noticeTemplate{
		key:      "CRITICAL_LOW_STOCK",
		kind:     domain.NotificationWarning,
		category: domain.NoticeInventory,
		priority: domain.PriorityHigh,
		title:    "Critical Stock Level",
		message:  "{itemName} is critically low at {quantity} {unit} (minimum {minimum})",
		actions:  []domain.NotificationAction{{ID: "reorder", Label: "Reorder Now", Action: "inventory.reorder"}},
	}
	tplOutOfStock = noticeTemplate{
		key:      "OUT_OF_STOCK",
		kind:     domain.NotificationError,
		category: domain.NoticeInventory,
		priority: domain.PriorityCritical,
		title:    "Out of Stock",
		message:  "{itemName} is out of stock",
		actions:  []domain.NotificationAction{{ID: "reorder", Label: "Reorder Now", Action: "inventory.reorder"}},
	}
	tplExpiringSoon = noticeTemplate{
		key:      "EXPIRING_SOON",
		kind:     domain.NotificationWarning,
		category: domain.NoticeInventory,
		priority: domain.PriorityMedium,
		title:    "Item Expiring Soon",
		message:  "{itemName} (batch {batchNumber}) expires in {days} days",
		actions:  []domain.NotificationAction{{ID: "view", Label: "View Item", Action: "inventory.view"}},
	}
	tplExpiredItem = noticeTemplate{
		key:      "EXPIRED_ITEM",
		kind:     domain.NotificationError,
		category: domain.NoticeInventory,
		priority: domain.PriorityCritical,
		title:    "Expired Item",
		message:  "{itemName} (batch {batchNumber}) has expired and must be removed from stock",
		actions:  []domain.NotificationAction{{ID: "remove", Label: "Remove Stock", Action: "inventory.remove"}},
	}
	tplOverstock = noticeTemplate{
		key:      "OVERSTOCK",
		kind:     domain.NotificationInfo,
		category: domain.NoticeInventory,
		priority: domain.PriorityLow,
		title:    "Overstock Notice",
		message:  "{itemName} holds {quantity} {unit}, above the maximum of {maximum}",
	}
	tplDrugInteraction = noticeTemplate{
		key:      "DRUG_INTERACTION",
		kind:     domain.NotificationWarning,
		category: domain.NoticePrescription,
		priority: domain.PriorityHigh,
		title:    "Drug Interaction Detected",
		message:  "{drugA} and {drugB} have a {severity} interaction in the prescription for {patientName}",
		actions:  []domain.NotificationAction{{ID: "review", Label: "Review Prescription", Action: "prescription.review"}},
	}
	tplAllergyAlert = noticeTemplate{
		key:      "ALLERGY_ALERT",
		kind:     domain.NotificationPatient,
		category: domain.NoticePatient,
		priority: domain.PriorityHigh,
		title:    "Severe Allergy Recorded",
		message:  "{patientName} has a severe allergy to {allergen}",
	}
	tplAllergyConflict = noticeTemplate{
		key:      "ALLERGY_CONFLICT",
		kind:     domain.NotificationError,
		category: domain.NoticePatient,
		priority: domain.PriorityCritical,
		title:    "Allergy Conflict",
		message:  "{medication} conflicts with the {allergen} allergy of {patientName}",
		actions:  []domain.NotificationAction{{ID: "review", Label: "Review Patient", Action: "patient.view"}},
	}
	tplControlledSubstance = noticeTemplate{
		key:      "CONTROLLED_SUBSTANCE",
		kind:     domain.NotificationPrescription,
		category: domain.NoticePrescription,
		priority: domain.PriorityMedium,
		title:    "Controlled Substance",
		message:  "Prescription {prescriptionNumber} includes controlled substance {medication}",
	}
	tplPrescriptionReady = noticeTemplate{
		key:      "PRESCRIPTION_READY",
		kind:     domain.NotificationPrescription,
		category: domain.NoticePrescription,
		priority: domain.PriorityMedium,
		title:    "Prescription Ready",
		message:  "Prescription {prescriptionNumber} for {patientName} is ready for pickup",
		actions:  []domain.NotificationAction{{ID: "dispense", Label: "Dispense", Action: "prescription.dispense"}},
	}
	tplPrescriptionOverdue = noticeTemplate{
		key:      "PRESCRIPTION_OVERDUE",
		kind:     domain.NotificationWarning,
		category: domain.NoticePrescription,
		priority: domain.PriorityMedium,
		title:    "Pickup Overdue",
		message:  "Prescription {prescriptionNumber} for {patientName} has waited {days} days for pickup",
		actions:  []domain.NotificationAction{{ID: "contact", Label: "Contact Patient", Action: "patient.contact"}},
	}
	tplPrescriptionExpired = noticeTemplate{
		key:      "PRESCRIPTION_EXPIRED",
		kind:     domain.NotificationWarning,
		category: domain.NoticePrescription,
		priority: domain.PriorityMedium,
		title:    "Prescription Expired",
		message:  "Prescription {prescriptionNumber} for {patientName} expired before it was dispensed",
	}
	tplPatientBirthday = noticeTemplate{
		key:      "PATIENT_BIRTHDAY",
		kind:     domain.NotificationPatient,
		category: domain.NoticePatient,
		priority: domain.PriorityLow,
		title:    "Patient Birthday",
		message:  "{patientName} turns {age} today",
	}
	tplInsuranceExpiring = noticeTemplate{
		key:      "INSURANCE_EXPIRING",
		kind:     domain.NotificationWarning,
		category: domain.NoticePatient,
		priority: domain.PriorityMedium,
		title:    "Insurance Expiring",
		message:  "{provider} coverage for {patientName} expires in {days} days",
	}
	tplInsuranceExpired = noticeTemplate{
		key:      "INSURANCE_EXPIRED",
		kind:     domain.NotificationError,
		category: domain.NoticePatient,
		priority: domain.PriorityHigh,
		title:    "Insurance Expired",
		message:  "{provider} coverage for {patientName} has expired",
	}
	tplPatientInactive = noticeTemplate{
		key:      "PATIENT_INACTIVE",
		kind:     domain.NotificationInfo,
		category: domain.NoticePatient,
		priority: domain.PriorityLow,
		title:    "Inactive Patient",
		message:  "{patientName} has not visited in over {months} months",
	}
	tplSystem = noticeTemplate{
		key:      "SYSTEM",
		kind:     domain.NotificationInfo,
		category: domain.NoticeSystem,
		priority: domain.PriorityLow,
		title:    "{title}",
		message:  "{message}",
	}
)

var templateRegistry = func() map[string]noticeTemplate {
	all := []noticeTemplate{
		tplLowStock, tplCriticalLowStock, tplOutOfStock, tplExpiringSoon, tplExpiredItem, tplOverstock,
		tplDrugInteraction, tplAllergyAlert, tplAllergyConflict, tplControlledSubstance,
		tplPrescriptionReady, tplPrescriptionOverdue, tplPrescriptionExpired,
		tplPatientBirthday, tplInsuranceExpiring, tplInsuranceExpired, tplPatientInactive, tplSystem,
	}
	m := make(map[string]noticeTemplate, len(all))
	for _, t := range all {
		m[t.key] = t
	}
	return m
}()

// TemplateKeys lists the registered template keys in sorted order.
func TemplateKeys() []string {
	keys := make([]string, 0, len(templateRegistry))
	for k := range templateRegistry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupTemplate(key string) (noticeTemplate, error) {
	t, ok := templateRegistry[key]
	if !ok {
		return noticeTemplate{}, fmt.Errorf("notification template %q not found: %w", key, ErrTemplateNotFound)
	}
	return t, nil
}

// interpolate replaces {field} placeholders with values from data. Unknown
// placeholders are left as written.
func interpolate(s string, data map[string]any) string {
	if !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func (t noticeTemplate) render(data map[string]any) domain.Notification {
	n := domain.Notification{
		Type:     t.kind,
		Category: t.category,
		Priority: t.priority,
		Title:    interpolate(t.title, data),
		Message:  interpolate(t.message, data),
	}
	if len(t.actions) > 0 {
		n.Actions = append([]domain.NotificationAction(nil), t.actions...)
	}
	return n
}
