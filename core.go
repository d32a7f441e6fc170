// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge implements the chain-side core of a burn-and-mint asset
// bridge: assets exist on exactly one chain at a time and move between
// chains through an authenticated messaging gateway. The core owns outbound
// transfer initiation, inbound application, and revert/abort restoration;
// message authentication and delivery are the gateway's concern.
package bridge

import (
	"fmt"
	"sync"

	"github.com/luxfi/bridge/custody"
	"github.com/luxfi/bridge/registry"
	"github.com/luxfi/bridge/replay"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// TransferState is the lifecycle position of one outbound transfer
type TransferState uint8

const (
	TransferIdle TransferState = iota
	TransferLocked
	TransferSent
	TransferDelivered
	TransferReverted
	TransferAborted
)

func (s TransferState) String() string {
	switch s {
	case TransferIdle:
		return "idle"
	case TransferLocked:
		return "locked"
	case TransferSent:
		return "sent"
	case TransferDelivered:
		return "delivered"
	case TransferReverted:
		return "reverted"
	case TransferAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// CoreConfig configures a chain core
type CoreConfig struct {
	// ChainID identifies the local chain
	ChainID ids.ID
	// LocalAddress is this deployment's own address, embedded as the logical
	// sender of outbound messages and verified by remote counterparts
	LocalAddress []byte
	// Authority administers the connected-chain registry
	Authority []byte
	// Gateway submits outbound messages to the hub
	Gateway Gateway
	// GatewayAddress is the trusted gateway identity checked on every
	// inbound call
	GatewayAddress []byte
	// ComputeBudget caps destination execution for outbound messages
	ComputeBudget uint64
	Logger        log.Logger

	// InboundLedger and RevertLedger override the default in-memory replay
	// ledgers, e.g. with a durable store-backed implementation
	InboundLedger replay.Ledger
	RevertLedger  replay.Ledger
	// ValueTransferor performs incidental native value refunds; optional
	ValueTransferor ValueTransferor
}

// Core is one chain's bridge deployment. The execution environment of each
// chain serializes its state transitions; Core mirrors that with a single
// mutex, so there is no intra-chain parallel mutation of an asset record or
// replay entry.
type Core struct {
	chainID       ids.ID
	localAddress  []byte
	computeBudget uint64
	logger        log.Logger

	gateway  Gateway
	registry *registry.Registry
	custody  *custody.Ledger
	// inbound and reverts are separate tables with the same discipline:
	// forward nonces are allocated by remote chains, revert nonces by this
	// one, and the two namespaces must not collide.
	inbound replay.Ledger
	reverts replay.Ledger
	events  *Emitter
	value   ValueTransferor

	mu    sync.Mutex
	nonce uint64
}

// NewCore creates a chain core
func NewCore(cfg CoreConfig) (*Core, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if len(cfg.LocalAddress) == 0 {
		return nil, fmt.Errorf("local address is required")
	}
	// An unset gateway reference would let a nil CallContext.Gateway pass the
	// caller check, so it is mandatory from the start.
	if len(cfg.GatewayAddress) == 0 {
		return nil, fmt.Errorf("gateway address is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoOpLogger()
	}

	c := &Core{
		chainID:       cfg.ChainID,
		localAddress:  append([]byte(nil), cfg.LocalAddress...),
		computeBudget: cfg.ComputeBudget,
		logger:        logger,
		gateway:       cfg.Gateway,
		custody:       custody.NewLedger(),
		inbound:       cfg.InboundLedger,
		reverts:       cfg.RevertLedger,
		value:         cfg.ValueTransferor,
		events:        NewEmitter(logger),
	}
	if c.inbound == nil {
		c.inbound = replay.NewMemoryLedger()
	}
	if c.reverts == nil {
		c.reverts = replay.NewMemoryLedger()
	}

	reg, err := registry.New(cfg.Authority, logger, registry.WithUpdateHook(func(u registry.Update) {
		c.events.Emit(Event{
			Type:    EventRegistryUpdated,
			ChainID: c.chainID,
			Nonce:   u.Version,
		})
	}))
	if err != nil {
		return nil, err
	}
	c.registry = reg

	if err := reg.UpdateGateway(cfg.Authority, cfg.GatewayAddress); err != nil {
		return nil, err
	}
	return c, nil
}

// ChainID returns the local chain identifier
func (c *Core) ChainID() ids.ID {
	return c.chainID
}

// LocalAddress returns this deployment's own address
func (c *Core) LocalAddress() []byte {
	return append([]byte(nil), c.localAddress...)
}

// Custody exposes the local asset ledger
func (c *Core) Custody() *custody.Ledger {
	return c.custody
}

// Registry exposes the connected-chain registry
func (c *Core) Registry() *registry.Registry {
	return c.registry
}

// Events exposes the observability emitter
func (c *Core) Events() *Emitter {
	return c.events
}

// SetConnected registers the trusted counterpart for a remote chain.
// Admin-only; overwriting is intentional re-pointing.
func (c *Core) SetConnected(authority []byte, chainID ids.ID, counterpart []byte) error {
	return c.registry.SetConnected(authority, chainID, counterpart)
}

// SetAuthority transfers registry administration
func (c *Core) SetAuthority(current, next []byte) error {
	return c.registry.SetAuthority(current, next)
}

// UpdateGatewayReference re-points the trusted gateway identity
func (c *Core) UpdateGatewayReference(authority, gateway []byte) error {
	return c.registry.UpdateGateway(authority, gateway)
}
