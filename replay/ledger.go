// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package replay records which inbound messages have already been applied.
// Keys are (origin chain, nonce) pairs; a key transitions from absent to
// present exactly once and is never deleted. The ledger distinguishes a
// replayed nonce (a key already present, always an error) from a nonce gap
// (a key ahead of the contiguous high-water mark, an observability signal:
// messages may have been dropped upstream, but delivery order is the
// gateway's concern, not this protocol's).
package replay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
)

var (
	// ErrAlreadyProcessed is returned when a key is marked twice
	ErrAlreadyProcessed = errors.New("message already processed")
	// ErrNonceGap is returned by strict ledgers when a mark would skip nonces
	ErrNonceGap = errors.New("nonce gap detected")
)

// Ledger is the replay-protection record consulted on every inbound apply.
// Mark must be invoked atomically with the state mutation it guards: the
// caller applies the mutation only after Mark succeeds and calls Unmark to
// compensate if the mutation itself fails.
type Ledger interface {
	// IsProcessed reports whether (chainID, nonce) has been applied
	IsProcessed(chainID ids.ID, nonce uint64) bool

	// Mark records (chainID, nonce) as applied. Returns the number of
	// not-yet-seen nonces skipped below the new mark (zero when delivery is
	// in order), or ErrAlreadyProcessed if the key is present.
	Mark(chainID ids.ID, nonce uint64) (gap uint64, err error)

	// Unmark removes a key recorded by an immediately preceding Mark whose
	// guarded mutation failed. It is a compensation hook, not a delete:
	// per-chain execution is serial, so no observer can see the transient
	// mark.
	Unmark(chainID ids.ID, nonce uint64)
}

// chainRecord tracks applied nonces for one origin chain: a contiguous
// high-water mark plus the sparse set of nonces applied ahead of it.
type chainRecord struct {
	// highWater is the nonce below which every nonce has been applied
	highWater uint64
	ahead     map[uint64]struct{}
}

func (r *chainRecord) has(nonce uint64) bool {
	if nonce < r.highWater {
		return true
	}
	_, ok := r.ahead[nonce]
	return ok
}

func (r *chainRecord) add(nonce uint64) (gap uint64) {
	if nonce > r.highWater {
		gap = nonce - r.highWater
		for n := r.highWater; n < nonce; n++ {
			if _, ok := r.ahead[n]; ok {
				gap--
			}
		}
	}
	r.ahead[nonce] = struct{}{}
	for {
		if _, ok := r.ahead[r.highWater]; !ok {
			break
		}
		delete(r.ahead, r.highWater)
		r.highWater++
	}
	return gap
}

// MemoryLedger is the in-memory Ledger implementation
type MemoryLedger struct {
	mu     sync.RWMutex
	chains map[ids.ID]*chainRecord

	// strict makes nonce gaps hard failures instead of observations
	strict bool
}

// Option configures a MemoryLedger
type Option func(*MemoryLedger)

// WithStrictOrdering makes Mark fail with ErrNonceGap when nonces are skipped
func WithStrictOrdering() Option {
	return func(l *MemoryLedger) {
		l.strict = true
	}
}

// NewMemoryLedger creates an empty in-memory replay ledger
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		chains: make(map[ids.ID]*chainRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsProcessed reports whether (chainID, nonce) has been applied
func (l *MemoryLedger) IsProcessed(chainID ids.ID, nonce uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.chains[chainID]
	return ok && record.has(nonce)
}

// Mark records (chainID, nonce) as applied
func (l *MemoryLedger) Mark(chainID ids.ID, nonce uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.chains[chainID]
	if !ok {
		record = &chainRecord{ahead: make(map[uint64]struct{})}
		l.chains[chainID] = record
	}
	if record.has(nonce) {
		return 0, fmt.Errorf("%w: chain %s nonce %d", ErrAlreadyProcessed, chainID, nonce)
	}
	if l.strict && nonce > record.highWater {
		return nonce - record.highWater, fmt.Errorf(
			"%w: chain %s nonce %d ahead of %d", ErrNonceGap, chainID, nonce, record.highWater)
	}
	return record.add(nonce), nil
}

// Unmark removes a key recorded by an immediately preceding Mark
func (l *MemoryLedger) Unmark(chainID ids.ID, nonce uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.chains[chainID]
	if !ok || !record.has(nonce) {
		return
	}
	// The key is either still ahead of the high-water mark or was the one
	// that just advanced it. Rebuild the ahead set for the latter case.
	if _, isAhead := record.ahead[nonce]; isAhead {
		delete(record.ahead, nonce)
		return
	}
	if nonce < record.highWater {
		for n := nonce + 1; n < record.highWater; n++ {
			record.ahead[n] = struct{}{}
		}
		record.highWater = nonce
	}
}
