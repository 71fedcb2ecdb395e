package session

import (
	"context"
	"fmt"

	"github.com/matchmore/alps-go/pkg/model"
)

// CreateSubscription creates sub for deviceID, or for the main device when
// deviceID is empty, and records it. A backend failure leaves the
// recorded state unchanged.
func (s *Session) CreateSubscription(ctx context.Context, deviceID string, sub model.Subscription) (model.Subscription, error) {
	if s.isClosed() {
		return model.Subscription{}, ErrSessionClosed
	}
	id, err := s.resolveDevice(deviceID)
	if err != nil {
		return model.Subscription{}, err
	}

	created, err := s.backend.CreateSubscription(ctx, id, sub)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("create subscription for %s: %w", id, err)
	}
	if err := s.store.AddSubscription(ctx, created); err != nil {
		return created, fmt.Errorf("persist subscription: %w", err)
	}
	return created, nil
}

// CreatePublication creates pub for deviceID, or for the main device when
// deviceID is empty, and records it.
func (s *Session) CreatePublication(ctx context.Context, deviceID string, pub model.Publication) (model.Publication, error) {
	if s.isClosed() {
		return model.Publication{}, ErrSessionClosed
	}
	id, err := s.resolveDevice(deviceID)
	if err != nil {
		return model.Publication{}, err
	}

	created, err := s.backend.CreatePublication(ctx, id, pub)
	if err != nil {
		return model.Publication{}, fmt.Errorf("create publication for %s: %w", id, err)
	}
	if err := s.store.AddPublication(ctx, created); err != nil {
		return created, fmt.Errorf("persist publication: %w", err)
	}
	return created, nil
}

// UpdateLocation reports loc for deviceID, or for the main device when
// deviceID is empty. A missing altitude is sent as 0.
func (s *Session) UpdateLocation(ctx context.Context, deviceID string, loc model.Location) (model.Location, error) {
	if s.isClosed() {
		return model.Location{}, ErrSessionClosed
	}
	id, err := s.resolveDevice(deviceID)
	if err != nil {
		return model.Location{}, err
	}

	created, err := s.backend.CreateLocation(ctx, id, loc.WithDefaultAltitude())
	if err != nil {
		return model.Location{}, fmt.Errorf("update location of %s: %w", id, err)
	}
	return created, nil
}

// GetMatches returns the current match list of deviceID, or of the main
// device when deviceID is empty.
func (s *Session) GetMatches(ctx context.Context, deviceID string) ([]model.Match, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	id, err := s.resolveDevice(deviceID)
	if err != nil {
		return nil, err
	}

	matches, err := s.backend.GetMatches(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get matches of %s: %w", id, err)
	}
	return matches, nil
}

// ActiveSubscriptions returns the unexpired subscriptions.
func (s *Session) ActiveSubscriptions(ctx context.Context) []model.Subscription {
	return s.store.ActiveSubscriptions(ctx)
}

// ActivePublications returns the unexpired publications.
func (s *Session) ActivePublications(ctx context.Context) []model.Publication {
	return s.store.ActivePublications(ctx)
}

// WipeData deletes all recorded state, the main device included.
func (s *Session) WipeData(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.Wipe(ctx)
}
