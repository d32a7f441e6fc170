// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer carries messages between registered chain cores. The hub
// plays the gateway role end to end: it authenticates the sending core at
// registration time, delivers with retries, and routes failures back to the
// origin as reverts or aborts. Delivery is asynchronous; a send only means
// the hub accepted the message.
package relayer

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/cache"
	"github.com/luxfi/bridge/metrics"
	"github.com/luxfi/bridge/store"
)

// Outcome is the terminal result of one delivery
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeDelivered
	OutcomeReverted
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeReverted:
		return "reverted"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Delivery is the hub's record of one accepted message
type Delivery struct {
	ID                 uuid.UUID
	MessageID          ids.ID
	SourceChainID      ids.ID
	DestinationChainID ids.ID
	Nonce              uint64
	Attempts           int
	Outcome            Outcome
	// Reason explains a revert or abort
	Reason string
}

type endpoint struct {
	address  []byte
	receiver bridge.Receiver
}

type task struct {
	id    uuid.UUID
	msg   *bridge.Message
	value *uint256.Int
	opts  bridge.RelayOptions
}

// HubOption configures optional hub collaborators
type HubOption func(*Hub)

// WithMetrics attaches delivery metrics
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithStore uses an externally owned store instead of opening one
func WithStore(db *store.Store) HubOption {
	return func(h *Hub) {
		h.store = db
		h.ownStore = false
	}
}

// WithDropRule installs a transit failure rule: messages the rule matches are
// never delivered and resolve as aborts on the origin. Used to exercise the
// abort path in tests.
func WithDropRule(rule func(*bridge.Message) bool) HubOption {
	return func(h *Hub) {
		h.drop = rule
	}
}

// Hub is an in-process message hub implementing bridge.Gateway for every
// registered chain.
type Hub struct {
	logger   log.Logger
	cfg      Config
	identity []byte
	metrics  *metrics.Metrics
	store    *store.Store
	ownStore bool
	drop     func(*bridge.Message) bool

	mu            sync.RWMutex
	chains        set.Set[ids.ID]
	endpoints     map[ids.ID]endpoint
	checkpointers map[string]*checkpointer
	closed        bool

	committed *cache.TTLCache[string, uint64]
	recent    *cache.LRUCache[uuid.UUID, Delivery]

	queue   chan task
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// NewHub creates a hub with the given gateway identity and starts its
// delivery workers. Unless WithStore is used, the hub opens its own store at
// cfg.StoreDir (in memory when empty) and closes it on Close.
func NewHub(cfg Config, identity []byte, logger log.Logger, opts ...HubOption) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(identity) == 0 {
		return nil, fmt.Errorf("hub identity is required")
	}

	h := &Hub{
		logger:        logger,
		cfg:           cfg,
		identity:      append([]byte(nil), identity...),
		endpoints:     make(map[ids.ID]endpoint),
		checkpointers: make(map[string]*checkpointer),
		ownStore:      true,
		committed:     cache.NewTTLCache[string, uint64](cfg.CheckpointTTL),
		recent:        cache.NewLRUCache[uuid.UUID, Delivery](cfg.DeliveryHistorySize),
		queue:         make(chan task, cfg.Workers*64),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.store == nil {
		db, err := store.Open(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		h.store = db
	}

	for i := 0; i < cfg.Workers; i++ {
		h.workers.Add(1)
		go func() {
			defer h.workers.Done()
			for t := range h.queue {
				h.process(t)
			}
		}()
	}
	return h, nil
}

// Identity returns the gateway identity the hub attests with
func (h *Hub) Identity() []byte {
	return append([]byte(nil), h.identity...)
}

// Register connects a chain to the hub. The address is the chain's bridge
// deployment; the hub attests it as the sender of every message that chain
// submits.
func (h *Hub) Register(chainID ids.ID, address []byte, receiver bridge.Receiver) error {
	if len(address) == 0 {
		return fmt.Errorf("endpoint address is required")
	}
	if receiver == nil {
		return fmt.Errorf("endpoint receiver is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chains.Contains(chainID) {
		return fmt.Errorf("chain %s already registered", chainID)
	}
	h.chains.Add(chainID)
	h.endpoints[chainID] = endpoint{
		address:  append([]byte(nil), address...),
		receiver: receiver,
	}

	h.logger.Info("registered chain",
		log.Stringer("chainID", chainID),
	)
	return nil
}

// Chains returns the registered chain IDs
func (h *Hub) Chains() []ids.ID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chains.List()
}

// Send implements bridge.Gateway
func (h *Hub) Send(ctx context.Context, msg *bridge.Message, opts bridge.RelayOptions) error {
	return h.enqueue(msg, nil, opts)
}

// SendWithValue implements bridge.Gateway
func (h *Hub) SendWithValue(
	ctx context.Context,
	msg *bridge.Message,
	value *uint256.Int,
	opts bridge.RelayOptions,
) error {
	return h.enqueue(msg, value, opts)
}

func (h *Hub) enqueue(msg *bridge.Message, value *uint256.Int, opts bridge.RelayOptions) error {
	h.mu.RLock()
	closed := h.closed
	_, known := h.endpoints[msg.SourceChainID]
	if !closed && known {
		// Counted under the lock so Close cannot miss an in-flight enqueue
		h.pending.Add(1)
	}
	h.mu.RUnlock()
	if closed {
		return fmt.Errorf("hub is closed")
	}
	if !known {
		return fmt.Errorf("source chain %s is not registered", msg.SourceChainID)
	}

	t := task{
		id:    uuid.New(),
		msg:   msg,
		value: value,
		opts:  opts,
	}
	h.recent.Put(t.id, Delivery{
		ID:                 t.id,
		MessageID:          msg.ID(),
		SourceChainID:      msg.SourceChainID,
		DestinationChainID: msg.DestinationChainID,
		Nonce:              msg.Nonce,
	})
	if h.metrics != nil {
		h.metrics.HandleSent()
	}

	h.queue <- t
	return nil
}

// Drain blocks until every accepted message has resolved
func (h *Hub) Drain() {
	h.pending.Wait()
}

// Close drains in-flight deliveries, stops the workers and checkpointers,
// and releases the store if the hub owns it.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.pending.Wait()
	close(h.queue)
	h.workers.Wait()

	for _, cp := range h.checkpointers {
		cp.close()
	}
	if h.ownStore {
		return h.store.Close()
	}
	return nil
}

// Status returns the hub's record of a delivery, if still retained
func (h *Hub) Status(id uuid.UUID) (Delivery, bool) {
	return h.recent.Peek(id)
}

func routeID(source, destination ids.ID) string {
	return fmt.Sprintf("%s:%s", source, destination)
}

// CommittedCount returns the count of contiguously delivered nonces for a
// route. Served through a TTL cache; slightly stale reads are acceptable.
func (h *Hub) CommittedCount(source, destination ids.ID) (uint64, error) {
	route := routeID(source, destination)
	return h.committed.Get(route, func(route string) (uint64, error) {
		h.mu.RLock()
		cp, ok := h.checkpointers[route]
		h.mu.RUnlock()
		if ok {
			return cp.committedCount(), nil
		}
		count, err := h.store.GetCheckpoint(route)
		if store.IsNotFoundError(err) {
			return 0, nil
		}
		return count, err
	}, false)
}

func (h *Hub) process(t task) {
	defer h.pending.Done()

	h.mu.RLock()
	src, srcOK := h.endpoints[t.msg.SourceChainID]
	dst, dstOK := h.endpoints[t.msg.DestinationChainID]
	h.mu.RUnlock()
	if !srcOK {
		// Registration cannot be undone, so this is unreachable; guard
		// against it anyway rather than panic in a worker
		h.logger.Error("source endpoint disappeared",
			log.Stringer("sourceChainID", t.msg.SourceChainID),
		)
		return
	}

	if h.drop != nil && h.drop(t.msg) {
		h.abort(t, src, "dropped in transit")
		return
	}
	if !dstOK {
		h.abort(t, src, fmt.Sprintf("unknown destination chain %s", t.msg.DestinationChainID))
		return
	}
	// The envelope address comes from the sender's registry; a mismatch with
	// the registered endpoint means the counterpart is mis-registered.
	if !bytes.Equal(t.msg.DestinationAddress, dst.address) {
		h.abort(t, src, fmt.Sprintf("destination address %x is not the endpoint registered for chain %s",
			t.msg.DestinationAddress, t.msg.DestinationChainID))
		return
	}

	attempts := 0
	err := withRetriesTimeout(h.logger, func() error {
		attempts++
		if attempts > 1 && h.metrics != nil {
			h.metrics.HandleRetry(t.msg.DestinationChainID.String())
		}

		err := dst.receiver.OnCall(context.Background(), bridge.CallContext{
			Gateway:       h.identity,
			SourceChainID: t.msg.SourceChainID,
			Sender:        src.address,
			AttachedValue: t.value,
		}, t.msg.Bytes())
		if err == nil {
			return nil
		}
		switch bridge.Kind(err) {
		case bridge.KindIncidental:
			// The transfer committed; only the fee refund failed. Surfaced
			// to operators, not retried.
			h.logger.Warn("delivery committed with failed incidental transfer",
				log.Stringer("messageID", t.msg.ID()),
				log.Err(err),
			)
			return nil
		case bridge.KindUnknown:
			return err
		default:
			return backoff.Permanent(err)
		}
	}, h.cfg.RetryTimeout)
	if err != nil {
		h.revert(t, src, attempts, err)
		return
	}

	h.stageCheckpoint(t.msg)
	if h.metrics != nil {
		h.metrics.HandleDelivered(
			t.msg.SourceChainID.String(),
			t.msg.DestinationChainID.String(),
		)
	}
	h.resolve(t, attempts, OutcomeDelivered, "")

	h.logger.Debug("delivered message",
		log.Stringer("messageID", t.msg.ID()),
		log.Stringer("destinationChainID", t.msg.DestinationChainID),
		log.Uint64("nonce", t.msg.Nonce),
	)
}

// revert routes a rejected delivery back to the origin chain
func (h *Hub) revert(t task, src endpoint, attempts int, cause error) {
	reason := bridge.Kind(cause).String()
	err := withRetriesTimeout(h.logger, func() error {
		err := src.receiver.OnRevert(context.Background(), bridge.RevertContext{
			Gateway:       h.identity,
			SourceChainID: t.msg.DestinationChainID,
			RevertPayload: t.opts.RevertPayload,
		})
		if err == nil {
			return nil
		}
		// Permanent rejections of the revert itself cannot be fixed by
		// retrying here
		if bridge.Kind(err) != bridge.KindUnknown {
			return backoff.Permanent(err)
		}
		return err
	}, h.cfg.RetryTimeout)
	if err != nil {
		h.logger.Error("failed to revert transfer",
			log.Stringer("messageID", t.msg.ID()),
			log.Uint64("nonce", t.msg.Nonce),
			log.Err(err),
		)
	}

	if h.metrics != nil {
		h.metrics.HandleReverted(
			t.msg.SourceChainID.String(),
			t.msg.DestinationChainID.String(),
			reason,
		)
	}
	h.resolve(t, attempts, OutcomeReverted, reason)

	h.logger.Info("reverted transfer",
		log.Stringer("messageID", t.msg.ID()),
		log.Uint64("nonce", t.msg.Nonce),
		log.String("reason", reason),
	)
}

// abort resolves a message that never reached the destination
func (h *Hub) abort(t task, src endpoint, reason string) {
	err := src.receiver.OnAbort(context.Background(), bridge.RevertContext{
		Gateway:       h.identity,
		SourceChainID: t.msg.SourceChainID,
		RevertPayload: t.opts.RevertPayload,
	})
	if err != nil {
		h.logger.Error("failed to abort transfer",
			log.Stringer("messageID", t.msg.ID()),
			log.Uint64("nonce", t.msg.Nonce),
			log.Err(err),
		)
	}

	if h.metrics != nil {
		h.metrics.HandleAborted(
			t.msg.SourceChainID.String(),
			t.msg.DestinationChainID.String(),
		)
	}
	h.resolve(t, 0, OutcomeAborted, reason)

	h.logger.Info("aborted transfer",
		log.Stringer("messageID", t.msg.ID()),
		log.Uint64("nonce", t.msg.Nonce),
		log.String("reason", reason),
	)
}

func (h *Hub) stageCheckpoint(msg *bridge.Message) {
	route := routeID(msg.SourceChainID, msg.DestinationChainID)

	h.mu.Lock()
	cp, ok := h.checkpointers[route]
	if !ok {
		var err error
		cp, err = newCheckpointer(h.logger, h.store, route, h.cfg.FlushInterval)
		if err != nil {
			h.mu.Unlock()
			h.logger.Error("failed to create checkpointer",
				log.String("routeID", route),
				log.Err(err),
			)
			return
		}
		cp.run()
		h.checkpointers[route] = cp
	}
	h.mu.Unlock()

	cp.stage(msg.Nonce)
}

func (h *Hub) resolve(t task, attempts int, outcome Outcome, reason string) {
	h.recent.Put(t.id, Delivery{
		ID:                 t.id,
		MessageID:          t.msg.ID(),
		SourceChainID:      t.msg.SourceChainID,
		DestinationChainID: t.msg.DestinationChainID,
		Nonce:              t.msg.Nonce,
		Attempts:           attempts,
		Outcome:            outcome,
		Reason:             reason,
	})
}
