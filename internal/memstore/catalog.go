package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/notifications-api/internal/apperror"
	"github.com/stanstork/notifications-api/internal/models"
)

func (s *Store) CreateBundle(_ context.Context, bundle *models.Bundle) error {
	var err error
	s.write(func(st *state) {
		for _, b := range st.bundles {
			if b.Name == bundle.Name {
				err = apperror.Conflict(nil, "bundle %q already exists", bundle.Name)
				return
			}
		}
		stamp(&bundle.ID, &bundle.Created, s.now)
		st.bundles[bundle.ID] = *bundle
	})
	return err
}

func (s *Store) CreateApplication(_ context.Context, app *models.Application) error {
	var err error
	s.write(func(st *state) {
		if _, ok := st.bundles[app.BundleID]; !ok {
			err = apperror.NotFound("bundle %s not found", app.BundleID)
			return
		}
		for _, a := range st.applications {
			if a.BundleID == app.BundleID && a.Name == app.Name {
				err = apperror.Conflict(nil, "application %q already exists", app.Name)
				return
			}
		}
		stamp(&app.ID, &app.Created, s.now)
		st.applications[app.ID] = *app
	})
	return err
}

func (s *Store) CreateEventType(_ context.Context, eventType *models.EventType) error {
	var err error
	s.write(func(st *state) {
		app, ok := st.applications[eventType.ApplicationID]
		if !ok {
			err = apperror.NotFound("application %s not found", eventType.ApplicationID)
			return
		}
		for _, et := range st.eventTypes {
			if et.ApplicationID == eventType.ApplicationID && et.Name == eventType.Name {
				err = apperror.Conflict(nil, "event type %q already exists", eventType.Name)
				return
			}
		}
		if eventType.ID == uuid.Nil {
			eventType.ID = uuid.New()
		}
		eventType.BundleID = app.BundleID
		st.eventTypes[eventType.ID] = *eventType
	})
	return err
}

func (s *Store) GetEventType(_ context.Context, eventTypeID uuid.UUID) (*models.EventType, error) {
	var et *models.EventType
	s.read(func(st *state) { et = st.eventType(eventTypeID) })
	if et == nil {
		return nil, apperror.NotFound("event type %s not found", eventTypeID)
	}
	return et, nil
}

func (s *Store) FindEventType(_ context.Context, applicationID uuid.UUID, name string) (*models.EventType, error) {
	var found *models.EventType
	s.read(func(st *state) {
		for id, et := range st.eventTypes {
			if et.ApplicationID == applicationID && et.Name == name {
				found = st.eventType(id)
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NotFound("event type %q not found", name)
	}
	return found, nil
}

func (s *Store) FindEventTypeByNames(_ context.Context, bundleName, applicationName, eventTypeName string) (*models.EventType, error) {
	var found *models.EventType
	s.read(func(st *state) {
		for id, et := range st.eventTypes {
			if et.Name != eventTypeName {
				continue
			}
			app, ok := st.applications[et.ApplicationID]
			if !ok || app.Name != applicationName {
				continue
			}
			if b, ok := st.bundles[app.BundleID]; ok && b.Name == bundleName {
				found = st.eventType(id)
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NotFound("event type %s/%s/%s not found", bundleName, applicationName, eventTypeName)
	}
	return found, nil
}

func (s *Store) GetBundleOf(_ context.Context, eventTypeID uuid.UUID) (*models.Bundle, error) {
	var bundle *models.Bundle
	s.read(func(st *state) {
		et := st.eventType(eventTypeID)
		if et == nil {
			return
		}
		if b, ok := st.bundles[et.BundleID]; ok {
			bundle = &b
		}
	})
	if bundle == nil {
		return nil, apperror.NotFound("bundle of event type %s not found", eventTypeID)
	}
	return bundle, nil
}

func (s *Store) ListEventTypes(_ context.Context, applicationID uuid.UUID) ([]models.EventType, error) {
	var eventTypes []models.EventType
	s.read(func(st *state) {
		for id, et := range st.eventTypes {
			if et.ApplicationID == applicationID {
				eventTypes = append(eventTypes, *st.eventType(id))
			}
		}
	})
	sort.Slice(eventTypes, func(i, j int) bool { return eventTypes[i].Name < eventTypes[j].Name })
	return eventTypes, nil
}

func stamp(id *uuid.UUID, created *time.Time, now func() time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if created.IsZero() {
		*created = now()
	}
}
