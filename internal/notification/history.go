package notification

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/repository"
)

// HistoryService reads and appends delivery history. Every read is scoped to
// the org that received the event.
type HistoryService struct {
	repo         repository.NotificationHistoryRepository
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

func NewHistoryService(repo repository.NotificationHistoryRepository, logger zerolog.Logger, defaultLimit, maxLimit int) *HistoryService {
	return &HistoryService{
		repo:         repo,
		logger:       logger.With().Str("component", "notification_history").Logger(),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Record appends a history row. Rows are never updated afterwards.
func (s *HistoryService) Record(ctx context.Context, entry *models.NotificationHistory) error {
	if entry.EventID == uuid.Nil {
		return apperror.Invalid("event id is required")
	}
	if entry.Status == "" {
		entry.Status = models.HistoryStatusFailed
		if entry.InvocationResult {
			entry.Status = models.HistoryStatusSuccess
		}
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("event_id", entry.EventID.String()).Msg("failed to record notification history")
		return err
	}
	return nil
}

func (s *HistoryService) ListByEvent(ctx context.Context, orgID string, eventID uuid.UUID) ([]models.NotificationHistory, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperror.Invalid("org id is required")
	}
	return s.repo.ListByEvent(ctx, orgID, eventID)
}

func (s *HistoryService) ListByEndpoint(ctx context.Context, orgID string, endpointID uuid.UUID, page models.Page) ([]models.NotificationHistory, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperror.Invalid("org id is required")
	}
	return s.repo.ListByEndpoint(ctx, orgID, endpointID, page.Clamp(s.defaultLimit, s.maxLimit))
}

func (s *HistoryService) GetDetails(ctx context.Context, orgID string, historyID uuid.UUID) (map[string]interface{}, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, apperror.Invalid("org id is required")
	}
	return s.repo.GetDetails(ctx, orgID, historyID)
}
