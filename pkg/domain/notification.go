package domain

import "time"

// NotificationType drives how a notice is presented.
type NotificationType string

// Notification types.
const (
	NotificationSuccess      NotificationType = "success"
	NotificationWarning      NotificationType = "warning"
	NotificationError        NotificationType = "error"
	NotificationInfo         NotificationType = "info"
	NotificationPrescription NotificationType = "prescription"
	NotificationInventory    NotificationType = "inventory"
	NotificationPatient      NotificationType = "patient"
)

// NotificationCategory groups notices for filtering.
type NotificationCategory string

// Notification categories.
const (
	NoticeInventory    NotificationCategory = "inventory"
	NoticePatient      NotificationCategory = "patient"
	NoticePrescription NotificationCategory = "prescription"
	NoticeSystem       NotificationCategory = "system"
)

// Priority orders notifications.
type Priority string

// Notification priorities.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// NotificationAction is a follow-up offered alongside a notice.
type NotificationAction struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Notification is a user-facing message, possibly generated from an alert.
type Notification struct {
	ID         string               `json:"id"`
	Type       NotificationType     `json:"type"`
	Category   NotificationCategory `json:"category"`
	Priority   Priority             `json:"priority"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Timestamp  time.Time            `json:"timestamp"`
	IsRead     bool                 `json:"isRead"`
	IsArchived bool                 `json:"isArchived"`
	Actions    []NotificationAction `json:"actions,omitempty"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
}
