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
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/internal/fixtures"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/isomorph"
	"github.com/AleutianAI/AleutianEpistemic/services/epistemic/kbsc"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.ErrorIs(t, err, ErrPathRequired)
}

func TestOpen_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())
}

func TestOpen_InMemory(t *testing.T) {
	db := openTestDB(t)
	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())
}

func TestDB_WithTxn(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	var got []byte
	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, db.WithTxn(cancelled, func(*badger.Txn) error { return nil }), context.Canceled)
	assert.ErrorIs(t, db.WithReadTxn(cancelled, func(*badger.Txn) error { return nil }), context.Canceled)
}

func TestGameStore_MissAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewGameStore(openTestDB(t))

	_, err := store.Load(ctx, "nothing")
	assert.ErrorIs(t, err, kbsc.ErrCacheMiss)

	base := fixtures.CupGame()
	exp, err := kbsc.NewMKBSC(base).Build(ctx)
	require.NoError(t, err)
	key, err := kbsc.Fingerprint(base)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, key, exp.Record()))
	rec, err := store.Load(ctx, key)
	require.NoError(t, err)

	restored, err := rec.Restore(base)
	require.NoError(t, err)
	assert.Equal(t, exp.Game.Spec(), restored.Game.Spec())
	assert.Equal(t, exp.Tuples, restored.Tuples)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Purge(ctx))
	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, kbsc.ErrCacheMiss)
}

func TestGameStore_EmptyKey(t *testing.T) {
	store := NewGameStore(openTestDB(t))
	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, store.Save(context.Background(), "", &kbsc.ExpansionRecord{}), ErrEmptyKey)
}

func TestGameStore_CorruptValue(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(expansionKey("bad"), []byte("{not json"))
	}))

	_, err := NewGameStore(db).Load(ctx, "bad")
	assert.ErrorIs(t, err, kbsc.ErrCorruptRecord)
}

func TestGameStore_BacksStack(t *testing.T) {
	ctx := context.Background()
	store := NewGameStore(openTestDB(t))

	first := kbsc.NewStack(fixtures.CupGame(), kbsc.WithStore(store))
	for range 2 {
		_, err := first.Push(ctx)
		require.NoError(t, err)
	}
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second := kbsc.NewStack(fixtures.CupGame(), kbsc.WithStore(store))
	for range 2 {
		_, err := second.Push(ctx)
		require.NoError(t, err)
	}
	assert.True(t, isomorph.IsIsomorphic(first.Top(), second.Top(), true))
	assert.Equal(t, first.Top().Spec(), second.Top().Spec())

	n, err = store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "cache hits write nothing new")
}
