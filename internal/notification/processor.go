// Package notification turns inbound events into delivery attempts and keeps
// the history of those attempts.
package notification

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

// InboundEvent is an event as reported by a producing application.
type InboundEvent struct {
	OrgID       string          `json:"org_id"`
	AccountID   string          `json:"account_id,omitempty"`
	Bundle      string          `json:"bundle"`
	Application string          `json:"application"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type EventTypeFinder interface {
	FindEventTypeByNames(ctx context.Context, bundleName, applicationName, eventTypeName string) (*models.EventType, error)
}

type EndpointResolver interface {
	ResolveEndpoints(ctx context.Context, orgID string, eventTypeID uuid.UUID) ([]models.Endpoint, error)
}

// Result is the persisted event and one history row per resolved endpoint.
type Result struct {
	Event   models.Event                 `json:"event"`
	History []models.NotificationHistory `json:"history"`
}

type Processor struct {
	catalog   EventTypeFinder
	resolver  EndpointResolver
	history   *HistoryService
	events    repository.NotificationHistoryRepository
	notifiers map[models.EndpointType]Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProcessor wires the dispatch path. Nil notifiers are skipped; endpoints of
// a type without a notifier are recorded as failed.
func NewProcessor(catalog EventTypeFinder, resolver EndpointResolver, events repository.NotificationHistoryRepository, logger zerolog.Logger, notifiers map[models.EndpointType]Notifier) *Processor {
	active := make(map[models.EndpointType]Notifier, len(notifiers))
	for t, notifier := range notifiers {
		if notifier != nil {
			active[t] = notifier
		}
	}
	return &Processor{
		catalog:   catalog,
		resolver:  resolver,
		history:   NewHistoryService(events, logger, models.DefaultPageLimit, models.MaxPageLimit),
		events:    events,
		notifiers: active,
		logger:    logger.With().Str("component", "event_processor").Logger(),
		now:       time.Now,
	}
}

// Process persists the event and notifies every endpoint resolved for it.
// Delivery failures are recorded and never retried; only store failures are
// returned.
func (p *Processor) Process(ctx context.Context, in InboundEvent) (Result, error) {
	in.OrgID = strings.TrimSpace(in.OrgID)
	if in.OrgID == "" {
		return Result{}, apperror.Invalid("org id is required")
	}
	if strings.TrimSpace(in.Bundle) == "" || strings.TrimSpace(in.Application) == "" || strings.TrimSpace(in.EventType) == "" {
		return Result{}, apperror.Invalid("bundle, application and event type are required")
	}

	eventType, err := p.catalog.FindEventTypeByNames(ctx, in.Bundle, in.Application, in.EventType)
	if err != nil {
		return Result{}, err
	}

	event := models.Event{
		OrgID:       in.OrgID,
		EventTypeID: eventType.ID,
		Payload:     in.Payload,
	}
	if account := strings.TrimSpace(in.AccountID); account != "" {
		event.AccountID = &account
	}
	if err := p.events.CreateEvent(ctx, &event); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType.Name).Msg("failed to persist event")
		return Result{}, err
	}

	endpoints, err := p.resolver.ResolveEndpoints(ctx, in.OrgID, eventType.ID)
	if err != nil {
		return Result{}, err
	}

	result := Result{Event: event, History: make([]models.NotificationHistory, 0, len(endpoints))}
	for _, endpoint := range endpoints {
		entry := p.deliver(ctx, Delivery{Event: event, EventType: *eventType, Endpoint: endpoint})
		if err := p.history.Record(ctx, &entry); err != nil {
			return result, err
		}
		result.History = append(result.History, entry)
	}

	p.logger.Info().
		Str("event_id", event.ID.String()).
		Str("org_id", event.OrgID).
		Str("event_type", eventType.Name).
		Int("endpoints", len(endpoints)).
		Msg("event processed")
	return result, nil
}

func (p *Processor) deliver(ctx context.Context, d Delivery) models.NotificationHistory {
	endpointID := d.Endpoint.ID
	entry := models.NotificationHistory{
		EventID:         d.Event.ID,
		EndpointID:      &endpointID,
		EndpointType:    d.Endpoint.Type,
		EndpointSubType: d.Endpoint.SubType,
	}

	notifier, ok := p.notifiers[d.Endpoint.Type]
	if !ok {
		entry.Status = models.HistoryStatusFailed
		entry.Details = map[string]interface{}{"error": "no notifier configured for " + string(d.Endpoint.Type)}
		p.logger.Warn().Str("endpoint_type", string(d.Endpoint.Type)).Msg("no notifier configured")
		return entry
	}

	start := p.now()
	details, err := notifier.Notify(ctx, d)
	entry.InvocationTime = p.now().Sub(start)
	if details == nil {
		details = map[string]interface{}{}
	}
	if err != nil {
		logNotifyError(p.logger, err, notifierChannelName(notifier), d)
		details["error"] = err.Error()
		entry.Status = models.HistoryStatusFailed
	} else {
		entry.InvocationResult = true
		entry.Status = models.HistoryStatusSuccess
	}
	entry.Details = details
	return entry
}
