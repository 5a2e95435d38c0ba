// Package behavior resolves which endpoints are notified for an event type and
// manages the behavior groups, event type links and ordered actions behind it.
package behavior

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	defaultLimit int
	maxLimit     int
}

type Option func(*Service)

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPageDefaults sets the default and maximum page size of paginated reads.
func WithPageDefaults(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
	}
}

func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "behavior_groups").Logger(),
		now:    func() time.Time { return time.Now().UTC() },

		defaultLimit: models.DefaultPageLimit,
		maxLimit:     models.MaxPageLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func orgScope(orgID string) (models.Scope, error) {
	scope := models.OrgScope(orgID)
	if scope.IsDefault() {
		return scope, apperror.Invalid("org id is required")
	}
	return scope, nil
}

// CreateBehaviorGroup creates a group owned by orgID.
func (s *Service) CreateBehaviorGroup(ctx context.Context, orgID string, group models.BehaviorGroup) (models.BehaviorGroup, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return models.BehaviorGroup{}, err
	}
	return s.create(ctx, scope, group)
}

// CreateDefaultBehaviorGroup creates a bundle-wide default group.
func (s *Service) CreateDefaultBehaviorGroup(ctx context.Context, group models.BehaviorGroup) (models.BehaviorGroup, error) {
	return s.create(ctx, models.DefaultScope(), group)
}

func (s *Service) create(ctx context.Context, scope models.Scope, group models.BehaviorGroup) (models.BehaviorGroup, error) {
	group.DisplayName = strings.TrimSpace(group.DisplayName)
	if group.DisplayName == "" {
		return models.BehaviorGroup{}, apperror.Invalid("display name is required")
	}
	if group.Default != scope.IsDefault() {
		return models.BehaviorGroup{}, apperror.Invalid("Unexpected default behavior group status")
	}
	if group.BundleID == uuid.Nil {
		return models.BehaviorGroup{}, apperror.Invalid("bundle id is required")
	}

	group.ID = uuid.New()
	group.OrgID = scope.OrgIDPtr()
	if scope.IsDefault() {
		group.AccountID = nil
	}
	group.Created = s.now()
	group.Updated = nil
	group.Actions = nil

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		exists, err := tx.BundleExists(ctx, group.BundleID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("bundle %s not found", group.BundleID)
		}
		duplicate, err := tx.BehaviorGroupNameExists(ctx, scope, group.BundleID, group.DisplayName, uuid.Nil)
		if err != nil {
			return err
		}
		if duplicate {
			return apperror.Conflict(nil, "a behavior group with display name %q already exists", group.DisplayName)
		}
		return tx.InsertBehaviorGroup(ctx, &group)
	})
	if err != nil {
		return models.BehaviorGroup{}, err
	}

	s.logger.Info().
		Str("behavior_group_id", group.ID.String()).
		Str("scope", scope.String()).
		Str("bundle_id", group.BundleID.String()).
		Msg("behavior group created")

	// The bundle is not serialized back to the caller.
	group.Bundle = nil
	group.Default = scope.IsDefault()
	return group, nil
}

// UpdateBehaviorGroup renames a group owned by orgID. It reports false when no
// row of orgID matched.
func (s *Service) UpdateBehaviorGroup(ctx context.Context, orgID string, group models.BehaviorGroup) (bool, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return false, err
	}
	return s.update(ctx, scope, group)
}

func (s *Service) UpdateDefaultBehaviorGroup(ctx context.Context, group models.BehaviorGroup) (bool, error) {
	return s.update(ctx, models.DefaultScope(), group)
}

func (s *Service) update(ctx context.Context, scope models.Scope, group models.BehaviorGroup) (bool, error) {
	name := strings.TrimSpace(group.DisplayName)
	if name == "" {
		return false, apperror.Invalid("display name is required")
	}

	var updated bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := checkScope(ctx, tx, scope, group.ID)
		if err != nil {
			return err
		}
		if existing.Scope() == scope {
			duplicate, err := tx.BehaviorGroupNameExists(ctx, scope, existing.BundleID, name, existing.ID)
			if err != nil {
				return err
			}
			if duplicate {
				return apperror.Conflict(nil, "a behavior group with display name %q already exists", name)
			}
		}
		updated, err = tx.UpdateBehaviorGroupName(ctx, scope, group.ID, name)
		return err
	})
	if err != nil {
		return false, err
	}
	if updated {
		s.logger.Info().Str("behavior_group_id", group.ID.String()).Str("scope", scope.String()).Msg("behavior group updated")
	}
	return updated, nil
}

// DeleteBehaviorGroup removes a group owned by orgID along with its links.
func (s *Service) DeleteBehaviorGroup(ctx context.Context, orgID string, behaviorGroupID uuid.UUID) (bool, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return false, err
	}
	return s.delete(ctx, scope, behaviorGroupID)
}

func (s *Service) DeleteDefaultBehaviorGroup(ctx context.Context, behaviorGroupID uuid.UUID) (bool, error) {
	return s.delete(ctx, models.DefaultScope(), behaviorGroupID)
}

func (s *Service) delete(ctx context.Context, scope models.Scope, behaviorGroupID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := checkScope(ctx, tx, scope, behaviorGroupID); err != nil {
			return err
		}
		var err error
		deleted, err = tx.DeleteBehaviorGroup(ctx, scope, behaviorGroupID)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info().Str("behavior_group_id", behaviorGroupID.String()).Str("scope", scope.String()).Msg("behavior group deleted")
	}
	return deleted, nil
}

// checkScope loads a group for a mutation and rejects calls whose default
// status disagrees with the stored row. Ownership by another org is left to the
// scoped statement that follows, which then matches nothing.
func checkScope(ctx context.Context, tx Tx, scope models.Scope, behaviorGroupID uuid.UUID) (*models.BehaviorGroup, error) {
	existing, err := tx.GetBehaviorGroup(ctx, behaviorGroupID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperror.NotFound("behavior group %s not found", behaviorGroupID)
	}
	switch {
	case scope.IsDefault() && !existing.IsDefault():
		return nil, apperror.Invalid("Default behavior groups must have a null accountId")
	case !scope.IsDefault() && existing.IsDefault():
		return nil, apperror.Invalid("Only default behavior groups have a null accountId")
	}
	return existing, nil
}

// GetBehaviorGroup returns a group owned by orgID or a default group, with its actions.
func (s *Service) GetBehaviorGroup(ctx context.Context, orgID string, behaviorGroupID uuid.UUID) (models.BehaviorGroup, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return models.BehaviorGroup{}, err
	}
	var group models.BehaviorGroup
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.GetBehaviorGroup(ctx, behaviorGroupID)
		if err != nil {
			return err
		}
		if existing == nil || !scope.Visible(existing.OrgID) {
			return apperror.NotFound("behavior group %s not found", behaviorGroupID)
		}
		groups, err := withActions(ctx, tx, []models.BehaviorGroup{*existing})
		if err != nil {
			return err
		}
		group = groups[0]
		return nil
	})
	return group, err
}

// FindBehaviorGroupsByBundleID lists the groups of a bundle that apply to orgID:
// its own groups and the bundle's default groups.
func (s *Service) FindBehaviorGroupsByBundleID(ctx context.Context, orgID string, bundleID uuid.UUID) ([]models.BehaviorGroup, error) {
	scope, err := orgScope(orgID)
	if err != nil {
		return nil, err
	}
	return s.findByBundle(ctx, scope, bundleID)
}

func (s *Service) FindDefaultBehaviorGroupsByBundleID(ctx context.Context, bundleID uuid.UUID) ([]models.BehaviorGroup, error) {
	return s.findByBundle(ctx, models.DefaultScope(), bundleID)
}

func (s *Service) findByBundle(ctx context.Context, scope models.Scope, bundleID uuid.UUID) ([]models.BehaviorGroup, error) {
	var groups []models.BehaviorGroup
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		exists, err := tx.BundleExists(ctx, bundleID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NotFound("bundle %s not found", bundleID)
		}
		found, err := tx.ListBehaviorGroupsByBundle(ctx, scope, bundleID)
		if err != nil {
			return err
		}
		groups, err = withActions(ctx, tx, found)
		return err
	})
	return groups, err
}

func withActions(ctx context.Context, tx Tx, groups []models.BehaviorGroup) ([]models.BehaviorGroup, error) {
	if len(groups) == 0 {
		return groups, nil
	}
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	actions, err := tx.ListActions(ctx, ids)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[uuid.UUID][]models.BehaviorGroupAction, len(groups))
	for _, a := range actions {
		byGroup[a.BehaviorGroupID] = append(byGroup[a.BehaviorGroupID], a)
	}
	for i := range groups {
		groups[i].Actions = byGroup[groups[i].ID]
		groups[i].Default = groups[i].IsDefault()
	}
	return groups, nil
}
