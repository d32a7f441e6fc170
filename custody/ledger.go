// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody is the local bookkeeping of bridged assets: which
// non-fungible records exist and who owns them, which fungible balances are
// held, and which assets are locked pending an outbound transfer. A locked
// asset has no owner able to move it until the transfer resolves.
package custody

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

var (
	// ErrNotOwner is returned when the caller does not own the asset
	ErrNotOwner = errors.New("caller does not own asset")
	// ErrAlreadyLocked is returned when the asset is already in flight
	ErrAlreadyLocked = errors.New("asset is already in flight")
	// ErrUnknownAsset is returned for operations on a nonexistent record
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrAssetExists is returned when a mint or restore would collide
	ErrAssetExists = errors.New("asset already exists")
	// ErrInsufficientBalance is returned when a debit exceeds the balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBalanceOverflow is returned when a credit would overflow
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrNotLocked is returned when burning an asset that is not in flight
	ErrNotLocked = errors.New("asset is not in flight")
)

// Snapshot captures everything needed to recreate a byte-identical asset
// record: it is the durable continuation attached to an outbound transfer so
// a revert can restore state without re-deriving it.
type Snapshot struct {
	AssetID       [32]byte
	Owner         []byte
	URI           string
	OriginChainID ids.ID
}

type assetRecord struct {
	owner         []byte
	uri           string
	originChainID ids.ID
	locked        bool
}

// Ledger tracks non-fungible records and fungible balances for one chain
type Ledger struct {
	mu       sync.RWMutex
	assets   map[[32]byte]*assetRecord
	balances map[string]*uint256.Int
}

// NewLedger creates an empty custody ledger
func NewLedger() *Ledger {
	return &Ledger{
		assets:   make(map[[32]byte]*assetRecord),
		balances: make(map[string]*uint256.Int),
	}
}

// Mint creates a brand-new local record for an inbound or first-time asset
func (l *Ledger) Mint(assetID [32]byte, owner []byte, uri string, originChainID ids.ID) error {
	if len(owner) == 0 {
		return fmt.Errorf("%w: empty owner", ErrNotOwner)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[assetID]; ok {
		return fmt.Errorf("%w: %x", ErrAssetExists, assetID)
	}
	l.assets[assetID] = &assetRecord{
		owner:         append([]byte(nil), owner...),
		uri:           uri,
		originChainID: originChainID,
	}
	return nil
}

// Lock marks the asset in flight and returns the snapshot that can
// reconstruct it. The owner loses the ability to move the asset until the
// transfer resolves.
func (l *Ledger) Lock(assetID [32]byte, owner []byte) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.assets[assetID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %x", ErrUnknownAsset, assetID)
	}
	if record.locked {
		return Snapshot{}, fmt.Errorf("%w: %x", ErrAlreadyLocked, assetID)
	}
	if !bytes.Equal(record.owner, owner) {
		return Snapshot{}, fmt.Errorf("%w: %x", ErrNotOwner, assetID)
	}
	record.locked = true
	return Snapshot{
		AssetID:       assetID,
		Owner:         append([]byte(nil), record.owner...),
		URI:           record.uri,
		OriginChainID: record.originChainID,
	}, nil
}

// Unlock reverses a Lock whose transfer never left the chain
func (l *Ledger) Unlock(assetID [32]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.assets[assetID]
	if !ok {
		return fmt.Errorf("%w: %x", ErrUnknownAsset, assetID)
	}
	if !record.locked {
		return fmt.Errorf("%w: %x", ErrNotLocked, assetID)
	}
	record.locked = false
	return nil
}

// Burn destroys a locked record once its transfer message has been handed to
// the gateway. The record ceases to exist locally; the snapshot captured at
// lock time is the only remaining representation.
func (l *Ledger) Burn(assetID [32]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.assets[assetID]
	if !ok {
		return fmt.Errorf("%w: %x", ErrUnknownAsset, assetID)
	}
	if !record.locked {
		return fmt.Errorf("%w: %x", ErrNotLocked, assetID)
	}
	delete(l.assets, assetID)
	return nil
}

// Restore recreates a record attribute-for-attribute identical to the
// pre-transfer snapshot. Used by the revert path.
func (l *Ledger) Restore(snapshot Snapshot) error {
	if len(snapshot.Owner) == 0 {
		return fmt.Errorf("%w: empty owner", ErrNotOwner)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[snapshot.AssetID]; ok {
		return fmt.Errorf("%w: %x", ErrAssetExists, snapshot.AssetID)
	}
	l.assets[snapshot.AssetID] = &assetRecord{
		owner:         append([]byte(nil), snapshot.Owner...),
		uri:           snapshot.URI,
		originChainID: snapshot.OriginChainID,
	}
	return nil
}

// Owner returns the current owner of an asset, or ErrUnknownAsset
func (l *Ledger) Owner(assetID [32]byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownAsset, assetID)
	}
	return append([]byte(nil), record.owner...), nil
}

// URI returns the metadata URI of an asset, or ErrUnknownAsset
func (l *Ledger) URI(assetID [32]byte) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.assets[assetID]
	if !ok {
		return "", fmt.Errorf("%w: %x", ErrUnknownAsset, assetID)
	}
	return record.uri, nil
}

// IsLocked reports whether the asset is in flight
func (l *Ledger) IsLocked(assetID [32]byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	record, ok := l.assets[assetID]
	return ok && record.locked
}

// Credit adds amount to the owner's fungible balance, overflow-checked
func (l *Ledger) Credit(owner []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := string(owner)
	balance, ok := l.balances[key]
	if !ok {
		balance = uint256.NewInt(0)
	}
	sum := new(uint256.Int)
	if _, overflow := sum.AddOverflow(balance, amount); overflow {
		return fmt.Errorf("%w: credit of %s", ErrBalanceOverflow, amount)
	}
	l.balances[key] = sum
	return nil
}

// Debit removes amount from the owner's fungible balance. A debit is the
// fungible equivalent of lock-and-burn: the value ceases to exist locally.
func (l *Ledger) Debit(owner []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := string(owner)
	balance, ok := l.balances[key]
	if !ok || balance.Lt(amount) {
		return fmt.Errorf("%w: debit of %s", ErrInsufficientBalance, amount)
	}
	l.balances[key] = new(uint256.Int).Sub(balance, amount)
	return nil
}

// Balance returns the owner's fungible balance (zero if absent)
func (l *Ledger) Balance(owner []byte) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance, ok := l.balances[string(owner)]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(balance)
}
