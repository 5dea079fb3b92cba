// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/store/inmem"
)

type RegistryTestSuite struct {
	suite.Suite
	store    *inmem.InMem
	registry *Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.store = inmem.New()
	s.registry = s.newRegistry()
}

func (s *RegistryTestSuite) newRegistry() *Registry {
	registry, err := New(Config{
		Store:  s.store,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC) },
	})
	s.Require().NoError(err)
	return registry
}

func (s *RegistryTestSuite) countDefaults() int {
	defaults := 0
	for _, profile := range s.registry.List() {
		if profile.Default {
			defaults++
		}
	}
	return defaults
}

func (s *RegistryTestSuite) TestNewRequiresStore() {
	_, err := New(Config{})
	s.Equal(ErrStoreRequired, err)
}

func (s *RegistryTestSuite) TestDefaultProfileCreatedOnFirstRun() {
	profiles := s.registry.List()
	s.Require().Len(profiles, 1)
	s.True(profiles[0].Default)
	s.Equal(DefaultProfileID, profiles[0].ID)
	s.Equal(DefaultProfileName, profiles[0].Name)
	s.NotEmpty(profiles[0].DestinationURL)
}

func (s *RegistryTestSuite) TestDefaultProfileIsImmutable() {
	s.NoError(s.registry.Rename(DefaultProfileID, "Hijacked"))
	s.NoError(s.registry.SetDestination(DefaultProfileID, "rtmp://evil.example/live"))
	s.NoError(s.registry.Remove(DefaultProfileID))

	profiles := s.registry.List()
	s.Require().Len(profiles, 1)
	s.Equal(DefaultProfileName, profiles[0].Name)
	s.Equal(1, s.countDefaults())
}

func (s *RegistryTestSuite) TestAddRenameRemove() {
	added, err := s.registry.Add("Studio", "rtmp://studio.example/live")
	s.Require().NoError(err)
	s.False(added.Default)
	s.Equal(2, len(s.registry.List()))
	s.Equal(1, s.countDefaults())

	s.Require().NoError(s.registry.Rename(added.ID, "Studio B"))
	s.Require().NoError(s.registry.SetDestination(added.ID, "rtmp://studio-b.example/live"))

	var renamed bool
	for _, profile := range s.registry.List() {
		if profile.ID == added.ID {
			s.Equal("Studio B", profile.Name)
			s.Equal("rtmp://studio-b.example/live", profile.DestinationURL)
			renamed = true
		}
	}
	s.True(renamed)

	s.Require().NoError(s.registry.Remove(added.ID))
	s.Equal(1, len(s.registry.List()))
}

func (s *RegistryTestSuite) TestValidationRejectsBadInput() {
	_, err := s.registry.Add("", "rtmp://studio.example/live")
	s.True(errors.Is(err, ErrInvalidProfile))

	_, err = s.registry.Add("Studio", "not a url")
	s.True(errors.Is(err, ErrInvalidProfile))

	added, err := s.registry.Add("Studio", "rtmp://studio.example/live")
	s.Require().NoError(err)
	s.True(errors.Is(s.registry.Rename(added.ID, ""), ErrInvalidProfile))
}

func (s *RegistryTestSuite) TestMutatingMissingProfile() {
	s.True(errors.Is(s.registry.Rename("nope", "x"), ErrProfileNotFound))
	s.True(errors.Is(s.registry.Remove("nope"), ErrProfileNotFound))
	s.True(errors.Is(s.registry.Select("nope"), ErrProfileNotFound))
}

func (s *RegistryTestSuite) TestSelectionClearsOnDeletion() {
	added, err := s.registry.Add("Studio", "rtmp://studio.example/live")
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Select(added.ID))

	selected, ok := s.registry.Selected()
	s.True(ok)
	s.Equal(added.ID, selected.ID)

	s.Require().NoError(s.registry.Remove(added.ID))
	_, ok = s.registry.Selected()
	s.False(ok, "selection must clear, not fall back")
}

func (s *RegistryTestSuite) TestPersistenceAcrossRestart() {
	added, err := s.registry.Add("Studio", "rtmp://studio.example/live")
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Select(added.ID))

	reloaded := s.newRegistry()
	s.Equal(2, len(reloaded.List()))
	selected, ok := reloaded.Selected()
	s.True(ok)
	s.Equal(added.ID, selected.ID)
}

func (s *RegistryTestSuite) TestDanglingSelectionDiscardedOnLoad() {
	s.Require().NoError(s.store.Put(selectionKey, []byte("gone")))

	reloaded := s.newRegistry()
	_, ok := reloaded.Selected()
	s.False(ok)

	_, err := s.store.Get(selectionKey)
	s.Error(err, "dangling pointer should be deleted from the store")
}

func (s *RegistryTestSuite) TestCorruptProfileRowIsDropped() {
	s.Require().NoError(s.store.Put(profileKeyPrefix+"junk", []byte("{nope")))

	reloaded := s.newRegistry()
	s.Equal(1, len(reloaded.List()))
	_, err := s.store.Get(profileKeyPrefix + "junk")
	s.Error(err)
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
