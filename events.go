// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// EventType identifies a transfer lifecycle event
type EventType uint8

const (
	EventTransferInitiated EventType = iota
	EventTransferReceived
	EventTransferReverted
	EventTransferAborted
	EventRegistryUpdated
)

func (t EventType) String() string {
	switch t {
	case EventTransferInitiated:
		return "transfer-initiated"
	case EventTransferReceived:
		return "transfer-received"
	case EventTransferReverted:
		return "transfer-reverted"
	case EventTransferAborted:
		return "transfer-aborted"
	case EventRegistryUpdated:
		return "registry-updated"
	default:
		return "unknown"
	}
}

// Event carries enough identifiers to reconstruct a transfer's lifecycle
// from logs alone. Delivery is fire-and-forget; no guarantee is required.
type Event struct {
	Type EventType
	// ChainID is the chain the event was emitted on
	ChainID ids.ID
	// PeerChainID is the other side of the transfer (destination for
	// outbound events, origin for inbound ones); empty for registry updates
	PeerChainID ids.ID
	AssetID     [32]byte
	Amount      *uint256.Int
	Recipient   []byte
	Nonce       uint64
	MessageID   ids.ID
	// NonceGap is the number of not-yet-seen nonces skipped below this one,
	// set on transfer-received events when delivery arrived out of order
	NonceGap uint64
}

// Sink consumes events. Accept must not block; a slow or failing sink only
// affects itself.
type Sink interface {
	Accept(Event)
}

// Emitter fans events out to registered sinks
type Emitter struct {
	logger log.Logger

	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewEmitter creates an emitter with no sinks
func NewEmitter(logger log.Logger) *Emitter {
	return &Emitter{
		logger: logger,
		sinks:  make(map[string]Sink),
	}
}

// Register adds a named sink, replacing any sink with the same name
func (e *Emitter) Register(name string, sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks[name] = sink
}

// Deregister removes a named sink
func (e *Emitter) Deregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sinks, name)
}

// Emit delivers the event to every sink and logs it. Never fails.
func (e *Emitter) Emit(event Event) {
	e.logger.Info(event.Type.String(),
		log.Stringer("chainID", event.ChainID),
		log.Stringer("peerChainID", event.PeerChainID),
		log.Uint64("nonce", event.Nonce),
		log.Stringer("messageID", event.MessageID),
	)

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, sink := range e.sinks {
		sink.Accept(event)
	}
}
