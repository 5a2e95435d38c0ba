package models

import (
	"time"

	"github.com/google/uuid"
)

type Bundle struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Created     time.Time `json:"created" db:"created"`
}

type Application struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BundleID    uuid.UUID `json:"bundle_id" db:"bundle_id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Created     time.Time `json:"created" db:"created"`
}

// EventType is a named class of event emitted by an application. BundleID is
// denormalized from the owning application when the row is loaded.
type EventType struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	ApplicationID       uuid.UUID `json:"application_id" db:"application_id"`
	BundleID            uuid.UUID `json:"bundle_id" db:"-"`
	Name                string    `json:"name" db:"name"`
	DisplayName         string    `json:"display_name" db:"display_name"`
	Description         string    `json:"description,omitempty" db:"description"`
	Visible             bool      `json:"visible" db:"visible"`
	SubscribedByDefault bool      `json:"subscribed_by_default" db:"subscribed_by_default"`
	SubscriptionLocked  bool      `json:"subscription_locked" db:"subscription_locked"`
}
