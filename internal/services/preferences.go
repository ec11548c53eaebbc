package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahmetk3436/routerwatch/internal/models"
	"github.com/ahmetk3436/routerwatch/internal/store"
)

const preferencesKey = "preferences"

// PreferencesStore keeps feed intervals per identity (host:user). Stored
// values hold only what the user set; defaults are applied on read.
type PreferencesStore struct {
	mu       sync.Mutex
	kv       store.KV
	defaults models.Preferences
	bounds   models.IntervalBounds
	prefs    map[string]models.Preferences
}

// NewPreferencesStore loads stored preferences. Zero bounds mean
// models.DefaultIntervalBounds.
func NewPreferencesStore(ctx context.Context, kv store.KV, defaults models.Preferences, bounds models.IntervalBounds) (*PreferencesStore, error) {
	prefs := make(map[string]models.Preferences)
	if _, err := kv.Load(ctx, preferencesKey, &prefs); err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	if prefs == nil {
		prefs = make(map[string]models.Preferences)
	}
	return &PreferencesStore{kv: kv, defaults: defaults, bounds: bounds.OrDefault(), prefs: prefs}, nil
}

func (s *PreferencesStore) Defaults() models.Preferences {
	return s.defaults
}

func (s *PreferencesStore) Bounds() models.IntervalBounds {
	return s.bounds
}

func (s *PreferencesStore) Get(identity string) models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs[identity].WithDefaults(s.defaults)
}

// Update merges the set fields of partial into the stored preferences.
func (s *PreferencesStore) Update(ctx context.Context, identity string, partial models.Preferences) (models.Preferences, error) {
	if err := validatePreferences(partial, s.bounds); err != nil {
		return models.Preferences{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.prefs[identity]
	s.prefs[identity] = prev.Merge(partial)
	if err := s.kv.Save(ctx, preferencesKey, s.prefs); err != nil {
		if had {
			s.prefs[identity] = prev
		} else {
			delete(s.prefs, identity)
		}
		return models.Preferences{}, fmt.Errorf("saving preferences: %w", err)
	}
	return s.prefs[identity].WithDefaults(s.defaults), nil
}

func (s *PreferencesStore) Reset(ctx context.Context, identity string) (models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.prefs[identity]
	delete(s.prefs, identity)
	if err := s.kv.Save(ctx, preferencesKey, s.prefs); err != nil {
		if had {
			s.prefs[identity] = prev
		}
		return models.Preferences{}, fmt.Errorf("saving preferences: %w", err)
	}
	return s.defaults, nil
}

// validatePreferences checks the set fields of p; zero means unset.
func validatePreferences(p models.Preferences, bounds models.IntervalBounds) error {
	for name, v := range p.Fields() {
		if v < 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
		if v == 0 {
			continue
		}
		if err := bounds.Check(name, v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}
