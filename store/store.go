// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists bridge state that must survive a restart: applied
// replay marks and relayer delivery checkpoints. Everything else is
// reconstructible and stays in memory.
package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/luxfi/ids"
	"github.com/timshannon/badgerhold/v4"
)

const storeDir = "bridge"

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err indicates a missing record
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// replayMark is one applied (chain, nonce) key
type replayMark struct {
	Key     string `badgerhold:"key"`
	ChainID string
	Nonce   uint64
}

// checkpoint is the highest contiguously delivered nonce for one route
type checkpoint struct {
	RouteID string `badgerhold:"key"`
	Nonce   uint64
}

// Store is a badger-backed key-value store for bridge persistence. A single
// store is shared by the durable replay ledger and the relayer checkpointer.
type Store struct {
	db *badgerhold.Store
}

// Open opens (or creates) the store under baseDir. An empty baseDir opens an
// in-memory store, used by tests.
func Open(baseDir string) (*Store, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, storeDir)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if len(dir) == 0 {
		opts.InMemory = true
	}
	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func markKey(chainID ids.ID, nonce uint64) string {
	return fmt.Sprintf("%s:%d", chainID, nonce)
}

// PutMark records an applied replay key
func (s *Store) PutMark(chainID ids.ID, nonce uint64) error {
	mark := replayMark{
		Key:     markKey(chainID, nonce),
		ChainID: chainID.String(),
		Nonce:   nonce,
	}
	if err := s.db.Upsert(mark.Key, &mark); err != nil {
		return fmt.Errorf("failed to persist replay mark: %w", err)
	}
	return nil
}

// DeleteMark removes a replay key written by an immediately preceding PutMark
func (s *Store) DeleteMark(chainID ids.ID, nonce uint64) error {
	err := s.db.Delete(markKey(chainID, nonce), &replayMark{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

// ForEachMark invokes fn for every persisted replay key
func (s *Store) ForEachMark(fn func(chainID ids.ID, nonce uint64) error) error {
	var marks []replayMark
	if err := s.db.Find(&marks, nil); err != nil {
		return fmt.Errorf("failed to load replay marks: %w", err)
	}
	for _, mark := range marks {
		chainID, err := ids.FromString(mark.ChainID)
		if err != nil {
			return fmt.Errorf("corrupt replay mark %q: %w", mark.Key, err)
		}
		if err := fn(chainID, mark.Nonce); err != nil {
			return err
		}
	}
	return nil
}

// PutCheckpoint records the highest contiguously delivered nonce for a route
func (s *Store) PutCheckpoint(routeID string, nonce uint64) error {
	cp := checkpoint{RouteID: routeID, Nonce: nonce}
	if err := s.db.Upsert(routeID, &cp); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the persisted checkpoint for a route, or ErrNotFound
func (s *Store) GetCheckpoint(routeID string) (uint64, error) {
	var cp checkpoint
	err := s.db.Get(routeID, &cp)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return 0, fmt.Errorf("%w: checkpoint %q", ErrNotFound, routeID)
	}
	if err != nil {
		return 0, err
	}
	return cp.Nonce, nil
}
