// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
)

// Key layout:
//
//	mkbsc/v1/expansion/<fingerprint> -> JSON kbsc.ExpansionRecord
const (
	keyPrefix       = "mkbsc/v1/"
	expansionPrefix = keyPrefix + "expansion/"
)

// ErrEmptyKey is returned for an empty fingerprint.
var ErrEmptyKey = errors.New("empty cache key")

// GameStore implements kbsc.Store on top of a DB.
//
// Thread Safety: Safe for concurrent use.
type GameStore struct {
	db  *DB
	ttl time.Duration
}

var _ kbsc.Store = (*GameStore)(nil)

// StoreOption configures a GameStore.
type StoreOption func(*GameStore)

// WithTTL expires cached expansions after d. Zero keeps them forever.
func WithTTL(d time.Duration) StoreOption {
	return func(s *GameStore) { s.ttl = d }
}

// NewGameStore creates a store backed by db. The caller owns db.
func NewGameStore(db *DB, opts ...StoreOption) *GameStore {
	s := &GameStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func expansionKey(key string) []byte {
	return []byte(expansionPrefix + key)
}

// Load implements kbsc.Store.
//
// Outputs:
//
//	*kbsc.ExpansionRecord - The decoded record.
//	error - kbsc.ErrCacheMiss if nothing is stored, kbsc.ErrCorruptRecord
//	        if the stored bytes do not decode.
func (s *GameStore) Load(ctx context.Context, key string) (*kbsc.ExpansionRecord, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var rec kbsc.ExpansionRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(expansionKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("%w: %v", kbsc.ErrCorruptRecord, err)
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kbsc.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load expansion %s: %w", key, err)
	}
	return &rec, nil
}

// Save implements kbsc.Store. An existing record under key is replaced.
func (s *GameStore) Save(ctx context.Context, key string, rec *kbsc.ExpansionRecord) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode expansion: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		e := badger.NewEntry(expansionKey(key), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Len returns the number of cached expansions.
func (s *GameStore) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(expansionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge removes every cached expansion.
func (s *GameStore) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := s.db.DropPrefix([]byte(expansionPrefix)); err != nil {
		return fmt.Errorf("purge expansions: %w", err)
	}
	return nil
}
