// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package store defines the durable key to bytes contract shared by the
// cache's second tier, the connection registry and the publish pipeline's
// ticket persistence.
package store

import "errors"

// ErrKeyNotFound is returned by Get for keys that do not exist. Since it
// may be returned wrapped, use errors.Is() to check for it.
var ErrKeyNotFound = errors.New("key not found")

// S is a durable key to bytes store. Implementations must be safe for
// concurrent use.
type S interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// DeletePrefix removes every key sharing the given prefix.
	DeletePrefix(prefix string) error

	// Keys returns all keys sharing the given prefix.
	Keys(prefix string) ([]string, error)
}
