// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/store/inmem"
)

// testClock is a hand-driven clock shared with the cache under test.
type testClock struct {
	lock sync.Mutex
	now  time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func TestNewRejectsNegativeTTL(t *testing.T) {
	_, err := New(Config{TTL: -time.Second})
	assert.Equal(t, ErrNegativeTTL, err)
}

func TestFreshnessWindows(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	clock := newTestClock()
	c, err := New(Config{
		TTL:    time.Hour,
		Logger: zap.NewNop(),
		Now:    clock.Now,
	})
	require.NoError(err)

	ctx := context.Background()
	_, freshness := c.Get(ctx, "channels:")
	assert.Equal(Miss, freshness)

	c.Put(ctx, "channels:", []byte("v1"))

	value, freshness := c.Get(ctx, "channels:")
	assert.Equal(Fresh, freshness)
	assert.Equal([]byte("v1"), value)

	clock.Advance(59 * time.Minute)
	_, freshness = c.Get(ctx, "channels:")
	assert.Equal(Fresh, freshness)

	clock.Advance(2 * time.Minute)
	value, freshness = c.Get(ctx, "channels:")
	assert.Equal(Stale, freshness)
	assert.Equal([]byte("v1"), value)

	clock.Advance(2 * time.Hour)
	_, freshness = c.Get(ctx, "channels:")
	assert.Equal(Miss, freshness)
}

func TestDurablePromotion(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	clock := newTestClock()
	durable := inmem.New()

	first, err := New(Config{TTL: time.Hour, Durable: durable, Logger: zap.NewNop(), Now: clock.Now})
	require.NoError(err)
	first.Put(context.Background(), "content:ch1:p0", []byte("page"))

	// a second cache over the same durable store simulates a restart with
	// a cold memory tier
	second, err := New(Config{TTL: time.Hour, Durable: durable, Logger: zap.NewNop(), Now: clock.Now})
	require.NoError(err)
	value, freshness := second.Get(context.Background(), "content:ch1:p0")
	assert.Equal(Fresh, freshness)
	assert.Equal([]byte("page"), value)
}

func TestCorruptDurableEntryIsAMiss(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	durable := inmem.New()
	require.NoError(durable.Put("cache/channels:", []byte("{not json")))

	c, err := New(Config{TTL: time.Hour, Durable: durable, Logger: zap.NewNop()})
	require.NoError(err)
	_, freshness := c.Get(context.Background(), "channels:")
	assert.Equal(Miss, freshness)

	// the corrupt payload must not be re-read either
	_, err = durable.Get("cache/channels:")
	assert.Error(err)
}

func TestSingleFlightRefresh(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	clock := newTestClock()

	var refreshes int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	refresh := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt32(&refreshes, 1)
		started <- struct{}{}
		<-release
		return []byte("v2"), nil
	}

	c, err := New(Config{TTL: time.Hour, Refresh: refresh, Logger: zap.NewNop(), Now: clock.Now})
	require.NoError(err)

	ctx := context.Background()
	c.Put(ctx, "channels:q", []byte("v1"))
	clock.Advance(90 * time.Minute)

	const readers = 16
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			value, freshness := c.Get(ctx, "channels:q")
			assert.Equal(Stale, freshness)
			assert.Equal([]byte("v1"), value)
		}()
	}
	wg.Wait()

	<-started
	close(release)
	require.Eventually(func() bool {
		_, freshness := c.Get(ctx, "channels:q")
		return freshness == Fresh
	}, time.Second, 5*time.Millisecond)

	assert.Equal(int32(1), atomic.LoadInt32(&refreshes))
	value, _ := c.Get(ctx, "channels:q")
	assert.Equal([]byte("v2"), value)
}

func TestRefreshFailureDegrades(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	clock := newTestClock()

	done := make(chan struct{}, 1)
	refresh := func(ctx context.Context, key string) ([]byte, error) {
		defer func() { done <- struct{}{} }()
		return nil, errors.New("backend down")
	}

	c, err := New(Config{TTL: time.Hour, Refresh: refresh, Logger: zap.NewNop(), Now: clock.Now})
	require.NoError(err)

	ctx := context.Background()
	c.Put(ctx, "channels:", []byte("v1"))
	clock.Advance(90 * time.Minute)

	value, freshness := c.Get(ctx, "channels:")
	assert.Equal(Stale, freshness)
	assert.Equal([]byte("v1"), value)
	<-done

	// still the stale value; the failed refresh never surfaces
	value, freshness = c.Get(ctx, "channels:")
	assert.Equal(Stale, freshness)
	assert.Equal([]byte("v1"), value)
}

func TestInvalidateAllByPrefix(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	durable := inmem.New()
	c, err := New(Config{TTL: time.Hour, Durable: durable, Logger: zap.NewNop()})
	require.NoError(err)

	ctx := context.Background()
	c.Put(ctx, "content:ch1:p0", []byte("a"))
	c.Put(ctx, "content:ch1:p1", []byte("b"))
	c.Put(ctx, "content:ch2:p0", []byte("c"))

	c.InvalidateAll(ctx, "content:ch1:")

	_, freshness := c.Get(ctx, "content:ch1:p0")
	assert.Equal(Miss, freshness)
	_, freshness = c.Get(ctx, "content:ch1:p1")
	assert.Equal(Miss, freshness)
	_, freshness = c.Get(ctx, "content:ch2:p0")
	assert.Equal(Fresh, freshness)

	keys, err := durable.Keys("cache/content:ch1:")
	require.NoError(err)
	assert.Empty(keys)
}

func TestFreshnessString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("fresh", Fresh.String())
	assert.Equal("stale", Stale.String())
	assert.Equal("miss", Miss.String())
}
