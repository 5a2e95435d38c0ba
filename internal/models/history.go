package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one inbound occurrence of an event type for an organization.
type Event struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrgID       string          `json:"org_id" db:"org_id"`
	AccountID   *string         `json:"account_id,omitempty" db:"account_id"`
	EventTypeID uuid.UUID       `json:"event_type_id" db:"event_type_id"`
	Payload     json.RawMessage `json:"payload,omitempty" db:"payload"`
	Created     time.Time       `json:"created" db:"created"`
}

type HistoryStatus string

const (
	HistoryStatusSuccess    HistoryStatus = "SUCCESS"
	HistoryStatusFailed     HistoryStatus = "FAILED"
	HistoryStatusProcessing HistoryStatus = "PROCESSING"
)

// NotificationHistory records a single delivery attempt. Rows are append only.
type NotificationHistory struct {
	ID               uuid.UUID              `json:"id" db:"id"`
	EventID          uuid.UUID              `json:"event_id" db:"event_id"`
	EndpointID       *uuid.UUID             `json:"endpoint_id,omitempty" db:"endpoint_id"`
	EndpointType     EndpointType           `json:"endpoint_type" db:"endpoint_type"`
	EndpointSubType  *string                `json:"endpoint_sub_type,omitempty" db:"endpoint_sub_type"`
	InvocationTime   time.Duration          `json:"invocation_time" db:"invocation_time"`
	InvocationResult bool                   `json:"invocation_result" db:"invocation_result"`
	Status           HistoryStatus          `json:"status" db:"status"`
	Details          map[string]interface{} `json:"details,omitempty" db:"details"`
	Created          time.Time              `json:"created" db:"created"`
}
