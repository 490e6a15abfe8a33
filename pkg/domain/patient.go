package domain

import "time"

// AllergySeverity grades a recorded allergy.
type AllergySeverity string

// Allergy severities.
const (
	AllergyMild     AllergySeverity = "mild"
	AllergyModerate AllergySeverity = "moderate"
	AllergySevere   AllergySeverity = "severe"
)

// PatientAlertType names a patient condition worth surfacing.
type PatientAlertType string

// Patient alert types.
const (
	PatientAlertAllergy           PatientAlertType = "allergy"
	PatientAlertAllergyConflict   PatientAlertType = "allergy_conflict"
	PatientAlertInsuranceExpiring PatientAlertType = "insurance_expiring"
	PatientAlertInsuranceExpired  PatientAlertType = "insurance_expired"
	PatientAlertBirthday          PatientAlertType = "birthday"
	PatientAlertInactive          PatientAlertType = "inactive"
)

// Allergy is a single recorded allergen.
type Allergy struct {
	Name     string          `json:"name"`
	Severity AllergySeverity `json:"severity"`
	Reaction string          `json:"reaction,omitempty"`
}

// ContactInfo holds how to reach a patient.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// EmergencyContact is the person to call on the patient's behalf.
type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone"`
}

// Insurance describes the patient's coverage.
type Insurance struct {
	Provider     string    `json:"provider"`
	PolicyNumber string    `json:"policyNumber"`
	ExpiryDate   time.Time `json:"expiryDate"`
}

// PersonalInfo identifies the patient.
type PersonalInfo struct {
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	DateOfBirth time.Time   `json:"dateOfBirth"`
	Age         int         `json:"age"`
	Gender      string      `json:"gender,omitempty"`
	Contact     ContactInfo `json:"contact"`
}

// FullName joins first and last names.
func (p PersonalInfo) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// MedicalInfo is the clinical part of a patient record.
type MedicalInfo struct {
	Allergies          []Allergy        `json:"allergies"`
	History            []string         `json:"history,omitempty"`
	EmergencyContact   EmergencyContact `json:"emergencyContact"`
	Insurance          *Insurance       `json:"insurance,omitempty"`
	ChronicConditions  []string         `json:"chronicConditions,omitempty"`
	CurrentMedications []string         `json:"currentMedications,omitempty"`
}

// PatientMetadata tracks visits and audit fields.
type PatientMetadata struct {
	VisitCount int        `json:"visitCount"`
	LastVisit  *time.Time `json:"lastVisit,omitempty"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	CreatedBy  string     `json:"createdBy"`
}

// PatientPreferences captures communication choices.
type PatientPreferences struct {
	ContactMethod string `json:"contactMethod,omitempty"`
	Language      string `json:"language,omitempty"`
	Reminders     bool   `json:"reminders"`
}

// Patient is a pharmacy customer record.
type Patient struct {
	ID          string             `json:"id"`
	Personal    PersonalInfo       `json:"personalInfo"`
	Medical     MedicalInfo        `json:"medicalInfo"`
	Metadata    PatientMetadata    `json:"metadata"`
	Preferences PatientPreferences `json:"preferences"`
}

// PatientFormData is the caller-supplied shape for add and update.
// A zero Age is computed from DateOfBirth.
type PatientFormData struct {
	Personal    PersonalInfo
	Medical     MedicalInfo
	Preferences PatientPreferences
}

// PatientAlert is an unresolved-until-acted-on patient condition.
type PatientAlert struct {
	ID         string            `json:"id"`
	PatientID  string            `json:"patientId"`
	Type       PatientAlertType  `json:"type"`
	Severity   AlertSeverity     `json:"severity"`
	Message    string            `json:"message"`
	CreatedAt  time.Time         `json:"createdAt"`
	IsRead     bool              `json:"isRead"`
	IsResolved bool              `json:"isResolved"`
	ResolvedBy string            `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AllergyConflict pairs an allergy with a medication that matches it.
type AllergyConflict struct {
	Allergen   string        `json:"allergen"`
	Medication string        `json:"medication"`
	Severity   AlertSeverity `json:"severity"`
	Reaction   string        `json:"reaction,omitempty"`
}

// AllergyCheck is the result of screening medications against a patient's allergies.
type AllergyCheck struct {
	HasConflicts bool              `json:"hasConflicts"`
	Conflicts    []AllergyConflict `json:"conflicts"`
}
