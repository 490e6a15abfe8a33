package domain

import "fmt"

// EntityType names a record kind for error reporting.
type EntityType string

// Entity kinds.
const (
	EntityInventoryItem EntityType = "inventory_item"
	EntityAlert         EntityType = "alert"
	EntityNotification  EntityType = "notification"
	EntityPatient       EntityType = "patient"
	EntityPrescription  EntityType = "prescription"
)

// ErrNotFound reports a missing record.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
