// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package registry manages the named destination profiles a broadcaster
// can publish to. One profile is the protected default: it always exists,
// cannot be edited or removed, and is recreated on load if missing.
// Selection is explicit; deleting the selected profile leaves nothing
// selected rather than falling back to another profile.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/model"
	"github.com/airlift-media/airlift/store"
)

var (
	ErrStoreRequired   = errors.New("a durable store is required")
	ErrProfileNotFound = errors.New("no such connection profile")
	ErrInvalidProfile  = errors.New("invalid connection profile")
)

const (
	profileKeyPrefix = "profiles/item/"
	selectionKey     = "profiles/selected"

	// DefaultProfileID is the fixed id of the protected default profile.
	DefaultProfileID = "default"

	DefaultProfileName = "Default"

	defaultDestinationURL = "rtmp://ingest.airlift.example/live"
)

var profileValidator = validator.New()

type profileInput struct {
	Name           string `validate:"required,min=1,max=64"`
	DestinationURL string `validate:"required,url"`
}

// Config contains the knobs for a Registry.
type Config struct {
	// Store persists profiles and the selection pointer. Required.
	Store store.S

	// DefaultDestinationURL seeds the protected default profile.
	// (Optional) A built-in ingest URL is used when empty.
	DefaultDestinationURL string

	// Logger to be used by the registry.
	// (Optional) By default sallust's default logger is used.
	Logger *zap.Logger

	// Now is the clock. (Optional) Defaults to time.Now.
	Now func() time.Time
}

// Registry is the in-memory working set over the durable profile store.
// Safe for concurrent use.
type Registry struct {
	lock     sync.Mutex
	profiles map[string]model.ConnectionProfile
	selected string

	store  store.S
	logger *zap.Logger
	now    func() time.Time
}

// New loads the registry from the store, recreating the default profile
// if it is absent and discarding a selection pointer that no longer
// refers to an existing profile.
func New(config Config) (*Registry, error) {
	if config.Store == nil {
		return nil, ErrStoreRequired
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.DefaultDestinationURL == "" {
		config.DefaultDestinationURL = defaultDestinationURL
	}

	r := &Registry{
		profiles: map[string]model.ConnectionProfile{},
		store:    config.Store,
		logger:   config.Logger,
		now:      config.Now,
	}
	if err := r.load(config.DefaultDestinationURL); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns every profile, default first, then oldest first.
func (r *Registry) List() []model.ConnectionProfile {
	r.lock.Lock()
	defer r.lock.Unlock()

	profiles := make([]model.ConnectionProfile, 0, len(r.profiles))
	for _, profile := range r.profiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Default != profiles[j].Default {
			return profiles[i].Default
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles
}

// Add creates a new user profile.
func (r *Registry) Add(name, destinationURL string) (model.ConnectionProfile, error) {
	if err := validateProfileInput(name, destinationURL); err != nil {
		return model.ConnectionProfile{}, err
	}

	profile := model.ConnectionProfile{
		ID:             uuid.NewString(),
		Name:           name,
		DestinationURL: destinationURL,
		CreatedAt:      r.now(),
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.profiles[profile.ID] = profile
	if err := r.persist(profile); err != nil {
		delete(r.profiles, profile.ID)
		return model.ConnectionProfile{}, err
	}
	return profile, nil
}

// Rename changes a profile's display name. Renaming the default profile
// is a silent no-op.
func (r *Registry) Rename(id, name string) error {
	return r.mutate(id, func(profile *model.ConnectionProfile) error {
		if err := validateProfileInput(name, profile.DestinationURL); err != nil {
			return err
		}
		profile.Name = name
		return nil
	})
}

// SetDestination changes a profile's destination URL. Editing the default
// profile is a silent no-op.
func (r *Registry) SetDestination(id, destinationURL string) error {
	return r.mutate(id, func(profile *model.ConnectionProfile) error {
		if err := validateProfileInput(profile.Name, destinationURL); err != nil {
			return err
		}
		profile.DestinationURL = destinationURL
		return nil
	})
}

// Remove deletes a profile. Removing the default profile is a silent
// no-op. Removing the currently selected profile clears the selection;
// the caller must select again explicitly.
func (r *Registry) Remove(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	profile, ok := r.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if profile.Default {
		return nil
	}

	if err := r.store.Delete(profileKeyPrefix + id); err != nil {
		return err
	}
	delete(r.profiles, id)

	if r.selected == id {
		r.selected = ""
		if err := r.store.Delete(selectionKey); err != nil {
			r.logger.Warn("failed clearing persisted selection", zap.Error(err))
		}
	}
	return nil
}

// Select makes the given profile the active publish target.
func (r *Registry) Select(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	r.selected = id
	return r.store.Put(selectionKey, []byte(id))
}

// Selected returns the active profile, if any. There is no implicit
// fallback: after a removal or on first run, nothing is selected.
func (r *Registry) Selected() (model.ConnectionProfile, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.selected == "" {
		return model.ConnectionProfile{}, false
	}
	profile, ok := r.profiles[r.selected]
	return profile, ok
}

func (r *Registry) mutate(id string, apply func(*model.ConnectionProfile) error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	profile, ok := r.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if profile.Default {
		return nil
	}

	updated := profile
	if err := apply(&updated); err != nil {
		return err
	}
	if err := r.persist(updated); err != nil {
		return err
	}
	r.profiles[id] = updated
	return nil
}

func (r *Registry) persist(profile model.ConnectionProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.store.Put(profileKeyPrefix+profile.ID, data)
}

func (r *Registry) load(defaultDestinationURL string) error {
	keys, err := r.store.Keys(profileKeyPrefix)
	if err != nil {
		return err
	}

	for _, key := range keys {
		data, err := r.store.Get(key)
		if err != nil {
			return err
		}
		var profile model.ConnectionProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			// a corrupt row is dropped, not fatal
			r.logger.Warn("dropping undecodable profile", zap.String("key", key), zap.Error(err))
			if err := r.store.Delete(key); err != nil {
				r.logger.Warn("failed deleting undecodable profile", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		r.profiles[profile.ID] = profile
	}

	if _, ok := r.profiles[DefaultProfileID]; !ok {
		defaultProfile := model.ConnectionProfile{
			ID:             DefaultProfileID,
			Name:           DefaultProfileName,
			DestinationURL: defaultDestinationURL,
			CreatedAt:      r.now(),
			Default:        true,
		}
		r.profiles[DefaultProfileID] = defaultProfile
		if err := r.persist(defaultProfile); err != nil {
			return err
		}
	}

	selected, err := r.store.Get(selectionKey)
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return nil
	case err != nil:
		return err
	}

	id := string(selected)
	if _, ok := r.profiles[id]; !ok {
		// a dangling pointer is discarded, never redirected
		r.logger.Warn("discarding selection of a profile that no longer exists", zap.String("id", id))
		return r.store.Delete(selectionKey)
	}
	r.selected = id
	return nil
}

func validateProfileInput(name, destinationURL string) error {
	err := profileValidator.Struct(profileInput{Name: name, DestinationURL: destinationURL})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, err.Error())
	}
	return nil
}
