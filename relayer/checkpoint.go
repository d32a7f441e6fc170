// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/luxfi/bridge/store"
	log "github.com/luxfi/log"
)

// checkpointer persists the count of contiguously delivered nonces for one
// route. Deliveries can complete out of order, so completed nonces are staged
// on a min-heap and the committed count only advances while the next expected
// nonce is at the top. Writes are batched on a flush interval.
type checkpointer struct {
	logger  log.Logger
	store   *store.Store
	routeID string

	mu sync.Mutex
	// committed is the count of contiguously delivered nonces: every nonce
	// below it has been delivered
	committed uint64
	pending   *uint64Heap
	dirty     bool

	flushInterval time.Duration
	done          chan struct{}
	stopped       sync.WaitGroup
}

func newCheckpointer(
	logger log.Logger,
	db *store.Store,
	routeID string,
	flushInterval time.Duration,
) (*checkpointer, error) {
	h := &uint64Heap{}
	heap.Init(h)

	committed, err := db.GetCheckpoint(routeID)
	if err != nil && !store.IsNotFoundError(err) {
		return nil, err
	}

	return &checkpointer{
		logger:        logger,
		store:         db,
		routeID:       routeID,
		committed:     committed,
		pending:       h,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}, nil
}

// run starts the background flush loop
func (c *checkpointer) run() {
	c.stopped.Add(1)
	go func() {
		defer c.stopped.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush()
			case <-c.done:
				c.flush()
				return
			}
		}
	}()
}

// close stops the flush loop after a final write
func (c *checkpointer) close() {
	close(c.done)
	c.stopped.Wait()
}

// stage records nonce as delivered. The committed count advances only when
// every lower nonce has also been staged.
func (c *checkpointer) stage(nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if nonce < c.committed {
		c.logger.Debug("staging nonce below committed count, skipping",
			log.Uint64("nonce", nonce),
			log.Uint64("committed", c.committed),
			log.String("routeID", c.routeID),
		)
		return
	}

	heap.Push(c.pending, nonce)
	for c.pending.Len() > 0 && c.pending.Peek() == c.committed {
		heap.Pop(c.pending)
		c.committed++
		c.dirty = true
	}
}

// committedCount returns the in-memory committed count
func (c *checkpointer) committedCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

func (c *checkpointer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return
	}

	if err := c.store.PutCheckpoint(c.routeID, c.committed); err != nil {
		c.logger.Error("failed to write checkpoint",
			log.Err(err),
			log.String("routeID", c.routeID),
		)
		return
	}
	c.dirty = false
}
