package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EndpointType string

const (
	EndpointTypeWebhook           EndpointType = "WEBHOOK"
	EndpointTypeCamel             EndpointType = "CAMEL"
	EndpointTypeEmailSubscription EndpointType = "EMAIL_SUBSCRIPTION"
	EndpointTypeDrawer            EndpointType = "DRAWER"
)

// ParseEndpointType accepts the case-insensitive wire name of an endpoint type.
func ParseEndpointType(raw string) (EndpointType, bool) {
	t := EndpointType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case EndpointTypeWebhook, EndpointTypeCamel, EndpointTypeEmailSubscription, EndpointTypeDrawer:
		return t, true
	default:
		return "", false
	}
}

// IsSystem reports whether endpoints of this type are platform managed markers
// rather than customer configured targets.
func (t EndpointType) IsSystem() bool {
	return t == EndpointTypeEmailSubscription || t == EndpointTypeDrawer
}

type EndpointStatus string

// Asynchronously provisioned endpoints move PROVISIONING -> READY | FAILED -> DELETING.
const (
	EndpointStatusProvisioning EndpointStatus = "PROVISIONING"
	EndpointStatusReady        EndpointStatus = "READY"
	EndpointStatusFailed       EndpointStatus = "FAILED"
	EndpointStatusDeleting     EndpointStatus = "DELETING"
	EndpointStatusUnknown      EndpointStatus = "UNKNOWN"
)

// EndpointProperties is the type specific half of an endpoint. The concrete
// type always agrees with Endpoint.Type.
type EndpointProperties interface {
	endpointType() EndpointType
}

type WebhookProperties struct {
	URL                    string  `json:"url"`
	Method                 string  `json:"method"`
	DisableSSLVerification bool    `json:"disable_ssl_verification"`
	SecretToken            *string `json:"secret_token,omitempty"`
}

func (WebhookProperties) endpointType() EndpointType { return EndpointTypeWebhook }

// NormalizedMethod returns the upper-cased HTTP method, POST when unset.
func (p WebhookProperties) NormalizedMethod() string {
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		return "POST"
	}
	return method
}

type BasicAuthentication struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CamelProperties struct {
	URL                    string               `json:"url"`
	DisableSSLVerification bool                 `json:"disable_ssl_verification"`
	SecretToken            *string              `json:"secret_token,omitempty"`
	BasicAuthentication    *BasicAuthentication `json:"basic_authentication,omitempty"`
	Extras                 map[string]string    `json:"extras,omitempty"`
}

func (CamelProperties) endpointType() EndpointType { return EndpointTypeCamel }

// SystemSubscriptionProperties configures EMAIL_SUBSCRIPTION and DRAWER endpoints.
type SystemSubscriptionProperties struct {
	Kind       EndpointType `json:"-"`
	OnlyAdmins bool         `json:"only_admins"`
	GroupID    *uuid.UUID   `json:"group_id,omitempty"`
}

func (p SystemSubscriptionProperties) endpointType() EndpointType {
	if p.Kind == "" {
		return EndpointTypeEmailSubscription
	}
	return p.Kind
}

type Endpoint struct {
	ID           uuid.UUID          `json:"id"`
	OrgID        *string            `json:"org_id,omitempty"`
	AccountID    *string            `json:"account_id,omitempty"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Type         EndpointType       `json:"type"`
	SubType      *string            `json:"sub_type,omitempty"`
	Enabled      bool               `json:"enabled"`
	Status       EndpointStatus     `json:"status"`
	ServerErrors int                `json:"server_errors"`
	Properties   EndpointProperties `json:"properties,omitempty"`
	Created      time.Time          `json:"created"`
	Updated      *time.Time         `json:"updated,omitempty"`
}

func (e Endpoint) Scope() Scope {
	return ScopeOf(e.OrgID)
}

// Normalize fills in defaults that every store applies before persisting.
func (e *Endpoint) Normalize() {
	e.Name = strings.TrimSpace(e.Name)
	if e.Status == "" {
		e.Status = EndpointStatusReady
	}
	if p, ok := e.Properties.(WebhookProperties); ok {
		p.Method = p.NormalizedMethod()
		e.Properties = p
	}
}

// Validate checks the tagged union is consistent.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("endpoint name is required")
	}
	if _, ok := ParseEndpointType(string(e.Type)); !ok {
		return fmt.Errorf("unknown endpoint type %q", e.Type)
	}
	if e.Properties == nil {
		return fmt.Errorf("properties are required for %s endpoints", e.Type)
	}
	if got := e.Properties.endpointType(); got != e.Type {
		return fmt.Errorf("properties of type %s do not match endpoint type %s", got, e.Type)
	}
	switch p := e.Properties.(type) {
	case WebhookProperties:
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("webhook url is required")
		}
	case CamelProperties:
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("camel url is required")
		}
		if e.SubType == nil || strings.TrimSpace(*e.SubType) == "" {
			return fmt.Errorf("camel endpoints require a sub type")
		}
	}
	return nil
}

type endpointJSON struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        *string         `json:"org_id,omitempty"`
	AccountID    *string         `json:"account_id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Type         EndpointType    `json:"type"`
	SubType      *string         `json:"sub_type,omitempty"`
	Enabled      bool            `json:"enabled"`
	Status       EndpointStatus  `json:"status"`
	ServerErrors int             `json:"server_errors"`
	Properties   json.RawMessage `json:"properties,omitempty"`
	Created      time.Time       `json:"created"`
	Updated      *time.Time      `json:"updated,omitempty"`
}

func (e Endpoint) MarshalJSON() ([]byte, error) {
	out := endpointJSON{
		ID:           e.ID,
		OrgID:        e.OrgID,
		AccountID:    e.AccountID,
		Name:         e.Name,
		Description:  e.Description,
		Type:         e.Type,
		SubType:      e.SubType,
		Enabled:      e.Enabled,
		Status:       e.Status,
		ServerErrors: e.ServerErrors,
		Created:      e.Created,
		Updated:      e.Updated,
	}
	if e.Properties != nil {
		raw, err := json.Marshal(e.Properties)
		if err != nil {
			return nil, err
		}
		out.Properties = raw
	}
	return json.Marshal(out)
}

func (e *Endpoint) UnmarshalJSON(data []byte) error {
	var in endpointJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Endpoint{
		ID:           in.ID,
		OrgID:        in.OrgID,
		AccountID:    in.AccountID,
		Name:         in.Name,
		Description:  in.Description,
		Type:         EndpointType(strings.ToUpper(string(in.Type))),
		SubType:      in.SubType,
		Enabled:      in.Enabled,
		Status:       in.Status,
		ServerErrors: in.ServerErrors,
		Created:      in.Created,
		Updated:      in.Updated,
	}
	if len(in.Properties) == 0 || string(in.Properties) == "null" {
		return nil
	}
	props, err := DecodeEndpointProperties(e.Type, in.Properties)
	if err != nil {
		return err
	}
	e.Properties = props
	return nil
}

// DecodeEndpointProperties decodes the JSON properties of an endpoint of type t.
func DecodeEndpointProperties(t EndpointType, raw []byte) (EndpointProperties, error) {
	switch t {
	case EndpointTypeWebhook:
		var p WebhookProperties
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode webhook properties: %w", err)
		}
		return p, nil
	case EndpointTypeCamel:
		var p CamelProperties
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode camel properties: %w", err)
		}
		return p, nil
	case EndpointTypeEmailSubscription, EndpointTypeDrawer:
		var p SystemSubscriptionProperties
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode subscription properties: %w", err)
		}
		p.Kind = t
		return p, nil
	default:
		return nil, fmt.Errorf("unknown endpoint type %q", t)
	}
}
