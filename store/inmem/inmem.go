// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package inmem provides a map-backed implementation of store.S. It backs
// tests and any configuration that opts out of on-disk persistence.
package inmem

import (
	"sort"
	"strings"
	"sync"

	"github.com/airlift-media/airlift/store"
)

type InMem struct {
	data map[string][]byte
	lock sync.RWMutex
}

func New() *InMem {
	return &InMem{
		data: map[string][]byte{},
	}
}

var _ store.S = (*InMem)(nil)

func (i *InMem) Get(key string) ([]byte, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()
	value, ok := i.data[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

func (i *InMem) Put(key string, value []byte) error {
	copied := make([]byte, len(value))
	copy(copied, value)
	i.lock.Lock()
	defer i.lock.Unlock()
	i.data[key] = copied
	return nil
}

func (i *InMem) Delete(key string) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	delete(i.data, key)
	return nil
}

func (i *InMem) DeletePrefix(prefix string) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	for key := range i.data {
		if strings.HasPrefix(key, prefix) {
			delete(i.data, key)
		}
	}
	return nil
}

func (i *InMem) Keys(prefix string) ([]string, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()
	var keys []string
	for key := range i.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
