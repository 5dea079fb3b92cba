// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package listings serves channel and content listings through the tiered
// cache. Reads hit the cache first and fall back to the API; the Fetcher
// doubles as the cache's refresh hook so stale listings re-fetch themselves
// in the background.
package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/backend"
	"github.com/airlift-media/airlift/cache"
	"github.com/airlift-media/airlift/model"
)

// Errors that can be returned by this package. Tests should use errors.Is.
var (
	ErrBackendRequired  = errors.New("a backend client is required")
	ErrFetcherRequired  = errors.New("a fetcher is required")
	ErrUnknownKeyFamily = errors.New("key belongs to no known listing family")
)

// Backend is the slice of the API client listings need. *backend.Client
// satisfies it.
type Backend interface {
	ListChannels(ctx context.Context, input backend.ListChannelsInput) (backend.ListChannelsOutput, error)
	ListContent(ctx context.Context, input backend.ListContentInput) (backend.ListContentOutput, error)
}

// Fetcher produces the serialized value for any listings cache key. Its
// Fetch method has the cache.RefreshFunc shape, which is how stale cache
// entries get refreshed without the cache knowing anything about listings.
type Fetcher struct {
	backend Backend
	owner   string
}

// NewFetcher builds a Fetcher bound to one owner identity.
func NewFetcher(b Backend, owner string) (*Fetcher, error) {
	if b == nil {
		return nil, ErrBackendRequired
	}
	return &Fetcher{backend: b, owner: owner}, nil
}

// Fetch resolves key to its family, performs the API call and returns the
// serialized result.
func (f *Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if query, ok := model.ParseChannelListKey(key); ok {
		output, err := f.backend.ListChannels(ctx, backend.ListChannelsInput{
			Query: query,
			Owner: f.owner,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(output)
	}

	if channelID, page, ok := model.ParseContentListKey(key); ok {
		output, err := f.backend.ListContent(ctx, backend.ListContentInput{
			ChannelID: channelID,
			Page:      page,
			Owner:     f.owner,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(output)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownKeyFamily, key)
}

// Config contains the arguments to build a listings Service.
type Config struct {
	// Fetcher performs the API calls. Required.
	Fetcher *Fetcher

	// Cache fronts the fetcher. (Optional) Without it every read goes to
	// the API.
	Cache *cache.Tiered

	// Logger to be used by the service.
	// (Optional) By default sallust's default logger is used.
	Logger *zap.Logger
}

// Service answers listing reads. Safe for concurrent use.
type Service struct {
	fetcher *Fetcher
	cache   *cache.Tiered
	logger  *zap.Logger
}

// New builds a Service from config.
func New(config Config) (*Service, error) {
	if config.Fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return &Service{
		fetcher: config.Fetcher,
		cache:   config.Cache,
		logger:  config.Logger,
	}, nil
}

// Channels returns the channel listing for a search query, cached.
func (s *Service) Channels(ctx context.Context, query string) (backend.ListChannelsOutput, error) {
	var output backend.ListChannelsOutput
	err := s.resolve(ctx, model.ChannelListKey(query), &output)
	return output, err
}

// Content returns one page of a channel's content listing, cached.
func (s *Service) Content(ctx context.Context, channelID, page string) (backend.ListContentOutput, error) {
	var output backend.ListContentOutput
	err := s.resolve(ctx, model.ContentListKey(channelID, page), &output)
	return output, err
}

// resolve answers data for key from the cache when possible, falling back
// to the fetcher and caching what it fetched. A cached value that no
// longer decodes is discarded and fetched over.
func (s *Service) resolve(ctx context.Context, key string, out any) error {
	if s.cache != nil {
		if data, freshness := s.cache.Get(ctx, key); freshness != cache.Miss {
			if err := json.Unmarshal(data, out); err == nil {
				return nil
			}
			s.logger.Warn("discarding undecodable cached listing", zap.String("key", key))
			s.cache.Invalidate(ctx, key)
		}
	}

	data, err := s.fetcher.Fetch(ctx, key)
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Put(ctx, key, data)
	}
	return json.Unmarshal(data, out)
}
