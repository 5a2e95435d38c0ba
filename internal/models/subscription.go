package models

import (
	"strings"

	"github.com/google/uuid"
)

type SubscriptionType string

const (
	SubscriptionInstant SubscriptionType = "INSTANT"
	SubscriptionDaily   SubscriptionType = "DAILY"
	SubscriptionDrawer  SubscriptionType = "DRAWER"
)

// ParseSubscriptionType accepts the case-insensitive wire name of a subscription type.
func ParseSubscriptionType(raw string) (SubscriptionType, bool) {
	t := SubscriptionType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case SubscriptionInstant, SubscriptionDaily, SubscriptionDrawer:
		return t, true
	default:
		return "", false
	}
}

type EmailSubscription struct {
	OrgID       string           `json:"org_id" db:"org_id"`
	UserID      string           `json:"user_id" db:"user_id"`
	EventTypeID uuid.UUID        `json:"event_type_id" db:"event_type_id"`
	Type        SubscriptionType `json:"subscription_type" db:"subscription_type"`
	Subscribed  bool             `json:"subscribed" db:"subscribed"`
}
