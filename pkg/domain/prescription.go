package domain

import "time"

// PrescriptionStatus tracks a prescription through the pharmacy.
type PrescriptionStatus string

// Prescription statuses. The main path is pending, processing, ready, dispensed.
const (
	PrescriptionPending    PrescriptionStatus = "pending"
	PrescriptionProcessing PrescriptionStatus = "processing"
	PrescriptionReady      PrescriptionStatus = "ready"
	PrescriptionDispensed  PrescriptionStatus = "dispensed"
	PrescriptionCancelled  PrescriptionStatus = "cancelled"
	PrescriptionReturned   PrescriptionStatus = "returned"
	PrescriptionExpired    PrescriptionStatus = "expired"
	PrescriptionOnHold     PrescriptionStatus = "on_hold"
)

// Terminal reports whether no further status change is allowed.
func (s PrescriptionStatus) Terminal() bool {
	switch s {
	case PrescriptionDispensed, PrescriptionCancelled, PrescriptionReturned, PrescriptionExpired:
		return true
	default:
		return false
	}
}

// InteractionSeverity grades a drug-drug interaction.
type InteractionSeverity string

// Interaction severities.
const (
	InteractionMinor           InteractionSeverity = "minor"
	InteractionModerate        InteractionSeverity = "moderate"
	InteractionMajor           InteractionSeverity = "major"
	InteractionContraindicated InteractionSeverity = "contraindicated"
)

// PrescriptionAlertType names a prescription condition worth surfacing.
type PrescriptionAlertType string

// Prescription alert types.
const (
	PrescriptionAlertInteraction PrescriptionAlertType = "drug_interaction"
	PrescriptionAlertControlled  PrescriptionAlertType = "controlled_substance"
	PrescriptionAlertPickup      PrescriptionAlertType = "ready_for_pickup"
	PrescriptionAlertOverdue     PrescriptionAlertType = "overdue_pickup"
	PrescriptionAlertExpired     PrescriptionAlertType = "expired"
)

// PrescribedMedication is one line of a prescription.
type PrescribedMedication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency,omitempty"`
	Quantity     int    `json:"quantity"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	IsControlled bool   `json:"isControlled"`
}

// PrescriptionDetails is what the prescriber wrote.
type PrescriptionDetails struct {
	PrescriptionNumber string                 `json:"prescriptionNumber"`
	DoctorName         string                 `json:"doctorName"`
	DoctorLicense      string                 `json:"doctorLicense,omitempty"`
	Medications        []PrescribedMedication `json:"medications"`
	IssuedAt           time.Time              `json:"issuedAt"`
	Notes              string                 `json:"notes,omitempty"`
}

// PrescriptionTimestamps records when each status was entered.
type PrescriptionTimestamps struct {
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ProcessingAt *time.Time `json:"processingAt,omitempty"`
	ReadyAt      *time.Time `json:"readyAt,omitempty"`
	DispensedAt  *time.Time `json:"dispensedAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	ReturnedAt   *time.Time `json:"returnedAt,omitempty"`
	ExpiredAt    *time.Time `json:"expiredAt,omitempty"`
	OnHoldAt     *time.Time `json:"onHoldAt,omitempty"`
	DueAt        *time.Time `json:"dueAt,omitempty"`
}

// DrugInteraction is a detected interaction between two prescribed medications.
type DrugInteraction struct {
	DrugA       string              `json:"drugA"`
	DrugB       string              `json:"drugB"`
	Severity    InteractionSeverity `json:"severity"`
	Description string              `json:"description"`
}

// PrescriptionValidation holds the screening results.
type PrescriptionValidation struct {
	Interactions []DrugInteraction `json:"interactions"`
	ValidatedAt  time.Time         `json:"validatedAt"`
}

// PrescriptionMetadata carries handling hints.
type PrescriptionMetadata struct {
	Priority     Priority `json:"priority"`
	HasInsurance bool     `json:"hasInsurance"`
	CreatedBy    string   `json:"createdBy"`
	UpdatedBy    string   `json:"updatedBy,omitempty"`
}

// Prescription references its patient by id only.
type Prescription struct {
	ID          string                 `json:"id"`
	PatientID   string                 `json:"patientId"`
	PatientName string                 `json:"patientName,omitempty"`
	Details     PrescriptionDetails    `json:"prescriptionDetails"`
	Status      PrescriptionStatus     `json:"status"`
	Timestamps  PrescriptionTimestamps `json:"timestamps"`
	Validation  PrescriptionValidation `json:"validation"`
	Metadata    PrescriptionMetadata   `json:"metadata"`
}

// PrescriptionFormData is the caller-supplied shape for creation.
type PrescriptionFormData struct {
	PatientID     string
	PatientName   string
	DoctorName    string
	DoctorLicense string
	Medications   []PrescribedMedication
	Notes         string
	Priority      Priority
	HasInsurance  bool
	DueAt         *time.Time
}

// PrescriptionAlert is an unresolved-until-acted-on prescription condition.
type PrescriptionAlert struct {
	ID             string                `json:"id"`
	PrescriptionID string                `json:"prescriptionId"`
	Type           PrescriptionAlertType `json:"type"`
	Severity       AlertSeverity         `json:"severity"`
	Message        string                `json:"message"`
	CreatedAt      time.Time             `json:"createdAt"`
	IsRead         bool                  `json:"isRead"`
	IsResolved     bool                  `json:"isResolved"`
	ResolvedBy     string                `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time            `json:"resolvedAt,omitempty"`
	Metadata       map[string]string     `json:"metadata,omitempty"`
}
