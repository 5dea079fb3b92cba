// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package badgerdb implements store.S on top of an embedded BadgerDB
// instance. This is the durable tier on a device: cheap point reads,
// native prefix iteration for family invalidation, and no external
// database to reach.
package badgerdb

import (
	"fmt"
	"time"

	"emperror.dev/emperror"
	"github.com/dgraph-io/badger/v4"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/store"
)

// Config holds the knobs for the embedded store.
type Config struct {
	// Path is the directory for the database files. Required unless
	// InMemory is set.
	Path string

	// InMemory keeps everything off disk. Used by tests.
	InMemory bool

	// SyncWrites forces an fsync per write. Durable-tier writes are
	// best-effort for the cache, so this defaults off.
	SyncWrites bool

	// GCInterval is how often value log garbage collection runs.
	// Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage fraction that triggers a value log
	// rewrite. Defaults to 0.5.
	GCDiscardRatio float64

	// Logger receives badger's internal logging. Defaults to sallust's
	// default logger.
	Logger *zap.Logger
}

// Store is a badger-backed store.S.
type Store struct {
	db   *badger.DB
	stop chan struct{}
}

var _ store.S = (*Store)(nil)

// Open opens (creating if necessary) the database described by config.
func Open(config Config) (*Store, error) {
	if config.Path == "" && !config.InMemory {
		return nil, fmt.Errorf("badgerdb: a path is required for a persistent store")
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	if config.GCDiscardRatio == 0 {
		config.GCDiscardRatio = 0.5
	}

	path := config.Path
	if config.InMemory {
		path = ""
	}
	options := badger.DefaultOptions(path).
		WithInMemory(config.InMemory).
		WithSyncWrites(config.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zapBadgerLogger{logger: config.Logger})

	db, err := badger.Open(options)
	if err != nil {
		return nil, emperror.WrapWith(err, "opening badger database failed", "path", config.Path)
	}

	s := &Store{
		db:   db,
		stop: make(chan struct{}),
	}
	if config.GCInterval > 0 && !config.InMemory {
		go s.runGC(config.GCInterval, config.GCDiscardRatio)
	}
	return s, nil
}

// Close stops background maintenance and closes the database.
func (s *Store) Close() error {
	close(s.stop)
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", store.ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, emperror.WrapWith(err, "badger read failed", "key", key)
	}
	return value, nil
}

func (s *Store) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return emperror.WrapWith(err, "badger write failed", "key", key)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return emperror.WrapWith(err, "badger delete failed", "key", key)
	}
	return nil
}

func (s *Store) DeletePrefix(prefix string) error {
	err := s.db.DropPrefix([]byte(prefix))
	if err != nil {
		return emperror.WrapWith(err, "badger prefix drop failed", "prefix", prefix)
	}
	return nil
}

func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, emperror.WrapWith(err, "badger key scan failed", "prefix", prefix)
	}
	return keys, nil
}

func (s *Store) runGC(interval time.Duration, discardRatio float64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth collecting.
			for {
				if err := s.db.RunValueLogGC(discardRatio); err != nil {
					break
				}
			}
		}
	}
}

// zapBadgerLogger adapts zap to badger's printf-style Logger interface.
type zapBadgerLogger struct {
	logger *zap.Logger
}

func (l zapBadgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l zapBadgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l zapBadgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l zapBadgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
