// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"fmt"
	"sync"

	"github.com/luxfi/bridge/replay"
	"github.com/luxfi/ids"
)

// DurableLedger is a replay.Ledger whose marks survive a restart. Gap and
// replay semantics live in the wrapped in-memory ledger; this type only adds
// write-through persistence. A mark is reported as applied only once the
// store write succeeded, so a crash between mutation and persist re-applies
// the message rather than silently dropping it.
type DurableLedger struct {
	mu    sync.Mutex
	mem   *replay.MemoryLedger
	store *Store
}

// NewDurableLedger wraps store with replay semantics, reloading every
// previously persisted mark.
func NewDurableLedger(store *Store, opts ...replay.Option) (*DurableLedger, error) {
	l := &DurableLedger{
		mem:   replay.NewMemoryLedger(opts...),
		store: store,
	}
	err := store.ForEachMark(func(chainID ids.ID, nonce uint64) error {
		if _, err := l.mem.Mark(chainID, nonce); err != nil {
			return fmt.Errorf("failed to replay persisted mark: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// IsProcessed reports whether (chainID, nonce) has been applied
func (l *DurableLedger) IsProcessed(chainID ids.ID, nonce uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem.IsProcessed(chainID, nonce)
}

// Mark records (chainID, nonce) as applied and persists it
func (l *DurableLedger) Mark(chainID ids.ID, nonce uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gap, err := l.mem.Mark(chainID, nonce)
	if err != nil {
		return gap, err
	}
	if err := l.store.PutMark(chainID, nonce); err != nil {
		l.mem.Unmark(chainID, nonce)
		return 0, err
	}
	return gap, nil
}

// Unmark removes a key recorded by an immediately preceding Mark
func (l *DurableLedger) Unmark(chainID ids.ID, nonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mem.Unmark(chainID, nonce)
	// Best effort; the in-memory state is authoritative for this process
	_ = l.store.DeleteMark(chainID, nonce)
}
