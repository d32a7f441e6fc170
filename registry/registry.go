// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry tracks the trusted counterpart address registered for each
// connected remote chain. Every mutation is authority-checked against the
// stored admin; the authority is passed explicitly per call rather than read
// from ambient context. Each deployment owns one independent table: the
// origin and destination sides of a connection are administered separately
// and never assumed symmetric.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

var (
	// ErrUnknownChain is returned when no counterpart is registered
	ErrUnknownChain = errors.New("unknown destination chain")
	// ErrUnauthorized is returned when the caller is not the stored authority
	ErrUnauthorized = errors.New("caller is not the registry authority")
	// ErrEmptyAddress is returned for empty counterpart or authority addresses
	ErrEmptyAddress = errors.New("empty address")
)

// Update describes a committed registry mutation, emitted to the optional
// update hook for observability.
type Update struct {
	ChainID     ids.ID
	Counterpart []byte
	Version     uint64
}

// Registry maps connected chain IDs to trusted counterpart addresses
type Registry struct {
	logger log.Logger

	mu           sync.RWMutex
	authority    []byte
	gateway      []byte
	counterparts map[ids.ID][]byte
	version      uint64

	onUpdate func(Update)
}

// Option configures a Registry
type Option func(*Registry)

// WithUpdateHook registers fn to be called after every committed mutation
func WithUpdateHook(fn func(Update)) Option {
	return func(r *Registry) {
		r.onUpdate = fn
	}
}

// New creates a registry administered by authority
func New(authority []byte, logger log.Logger, opts ...Option) (*Registry, error) {
	if len(authority) == 0 {
		return nil, fmt.Errorf("%w: authority", ErrEmptyAddress)
	}
	r := &Registry{
		logger:       logger,
		authority:    authority,
		counterparts: make(map[ids.ID][]byte),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// SetConnected registers (or intentionally re-points) the trusted counterpart
// for chainID. Overwriting an existing mapping is allowed.
func (r *Registry) SetConnected(authority []byte, chainID ids.ID, counterpart []byte) error {
	if len(counterpart) == 0 {
		return fmt.Errorf("%w: counterpart", ErrEmptyAddress)
	}

	r.mu.Lock()
	if !bytes.Equal(authority, r.authority) {
		r.mu.Unlock()
		return ErrUnauthorized
	}
	r.counterparts[chainID] = append([]byte(nil), counterpart...)
	r.version++
	update := Update{
		ChainID:     chainID,
		Counterpart: counterpart,
		Version:     r.version,
	}
	r.mu.Unlock()

	r.logger.Info("registry updated",
		log.Stringer("chainID", chainID),
		log.Uint64("version", update.Version),
	)
	if r.onUpdate != nil {
		r.onUpdate(update)
	}
	return nil
}

// Resolve returns the registered counterpart for chainID
func (r *Registry) Resolve(chainID ids.ID) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counterpart, ok := r.counterparts[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return append([]byte(nil), counterpart...), nil
}

// IsCounterpart reports whether sender is the registered counterpart for chainID
func (r *Registry) IsCounterpart(chainID ids.ID, sender []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counterpart, ok := r.counterparts[chainID]
	return ok && bytes.Equal(counterpart, sender)
}

// SetAuthority transfers admin control to next
func (r *Registry) SetAuthority(current, next []byte) error {
	if len(next) == 0 {
		return fmt.Errorf("%w: authority", ErrEmptyAddress)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !bytes.Equal(current, r.authority) {
		return ErrUnauthorized
	}
	r.authority = append([]byte(nil), next...)
	r.version++
	return nil
}

// UpdateGateway re-points the trusted gateway reference
func (r *Registry) UpdateGateway(authority, gateway []byte) error {
	if len(gateway) == 0 {
		return fmt.Errorf("%w: gateway", ErrEmptyAddress)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !bytes.Equal(authority, r.authority) {
		return ErrUnauthorized
	}
	r.gateway = append([]byte(nil), gateway...)
	r.version++
	return nil
}

// Gateway returns the trusted gateway reference, or nil if unset
func (r *Registry) Gateway() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.gateway == nil {
		return nil
	}
	return append([]byte(nil), r.gateway...)
}

// Version returns the current mutation counter
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
