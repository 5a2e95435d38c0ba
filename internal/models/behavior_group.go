package models

import (
	"time"

	"github.com/google/uuid"
)

// BehaviorGroup is a named, ordered set of delivery actions. A NULL OrgID marks a
// bundle-wide default group that applies to every organization.
type BehaviorGroup struct {
	ID          uuid.UUID             `json:"id" db:"id"`
	AccountID   *string               `json:"account_id,omitempty" db:"account_id"`
	OrgID       *string               `json:"org_id,omitempty" db:"org_id"`
	BundleID    uuid.UUID             `json:"bundle_id" db:"bundle_id"`
	Bundle      *Bundle               `json:"bundle,omitempty" db:"-"`
	DisplayName string                `json:"display_name" db:"display_name"`
	Default     bool                  `json:"default" db:"-"`
	Actions     []BehaviorGroupAction `json:"actions,omitempty" db:"-"`
	Created     time.Time             `json:"created" db:"created"`
	Updated     *time.Time            `json:"updated,omitempty" db:"updated"`
}

func (g BehaviorGroup) Scope() Scope {
	return ScopeOf(g.OrgID)
}

func (g BehaviorGroup) IsDefault() bool {
	return g.OrgID == nil
}

// BehaviorGroupAction links a behavior group to an endpoint. Position defines
// the firing order inside the group.
type BehaviorGroupAction struct {
	BehaviorGroupID uuid.UUID `json:"behavior_group_id" db:"behavior_group_id"`
	EndpointID      uuid.UUID `json:"endpoint_id" db:"endpoint_id"`
	Position        int       `json:"position" db:"position"`
	Created         time.Time `json:"created" db:"created"`
	Endpoint        *Endpoint `json:"endpoint,omitempty" db:"-"`
}

// EventTypeBehavior links an event type to a behavior group.
type EventTypeBehavior struct {
	EventTypeID     uuid.UUID `json:"event_type_id" db:"event_type_id"`
	BehaviorGroupID uuid.UUID `json:"behavior_group_id" db:"behavior_group_id"`
	Created         time.Time `json:"created" db:"created"`
}

// LinkedEndpoint is one dispatch target reached from an event type through a
// behavior group action.
type LinkedEndpoint struct {
	BehaviorGroupID      uuid.UUID
	BehaviorGroupCreated time.Time
	Position             int
	Endpoint             Endpoint
}
