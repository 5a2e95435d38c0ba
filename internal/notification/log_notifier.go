package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/models"
)

// LogNotifier stands in for the webhook and camel transports. It logs the
// target instead of calling it.
type LogNotifier struct {
	enabled bool
	logger  zerolog.Logger
}

func NewLogNotifier(enabled bool, logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		enabled: enabled,
		logger:  logger.With().Str("notifier", "log").Logger(),
	}
}

func (n *LogNotifier) Notify(_ context.Context, d Delivery) (map[string]interface{}, error) {
	details := map[string]interface{}{"type": string(d.Endpoint.Type)}
	switch p := d.Endpoint.Properties.(type) {
	case models.WebhookProperties:
		details["target"] = p.URL
		details["method"] = p.Method
	case models.CamelProperties:
		details["target"] = p.URL
		if d.Endpoint.SubType != nil {
			details["sub_type"] = *d.Endpoint.SubType
		}
	default:
		return details, fmt.Errorf("log notifier cannot deliver to %s endpoints", d.Endpoint.Type)
	}
	if !n.enabled {
		details["dispatched"] = false
		return details, nil
	}

	n.logger.Info().
		Str("event_id", d.Event.ID.String()).
		Str("event_type", d.EventType.Name).
		Str("endpoint_id", d.Endpoint.ID.String()).
		Interface("target", details["target"]).
		Msg("notification dispatched (mock)")
	details["dispatched"] = true
	return details, nil
}

func (n *LogNotifier) String() string {
	if !n.enabled {
		return "LogNotifier(disabled)"
	}
	return "LogNotifier"
}
