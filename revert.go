// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/luxfi/bridge/custody"
	"github.com/luxfi/bridge/payload"
	log "github.com/luxfi/log"
)

// OnRevert restores the pre-transfer asset record after the destination chain
// rejected delivery. The snapshot carried in the relay options is the sole
// source of truth; nothing is re-derived from the forward intent. Reverts are
// replay-protected by transfer nonce, so a transfer resolves through at most
// one of OnRevert and OnAbort.
func (c *Core) OnRevert(ctx context.Context, rev RevertContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.acceptRevert(rev)
	if err != nil {
		return err
	}

	if err := c.restore(snapshot); err != nil {
		c.reverts.Unmark(c.chainID, snapshot.TransferNonce)
		return err
	}

	c.events.Emit(Event{
		Type:        EventTransferReverted,
		ChainID:     c.chainID,
		PeerChainID: rev.SourceChainID,
		AssetID:     snapshot.AssetID,
		Amount:      snapshot.Amount,
		Recipient:   snapshot.Owner,
		Nonce:       snapshot.TransferNonce,
	})
	return nil
}

// OnAbort restores the pre-transfer asset record after the message failed in
// transit, before reaching the destination. Unlike a revert, the attached
// relay-fee value never left the origin chain and is refunded to the owner.
func (c *Core) OnAbort(ctx context.Context, rev RevertContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.acceptRevert(rev)
	if err != nil {
		return err
	}

	if err := c.restore(snapshot); err != nil {
		c.reverts.Unmark(c.chainID, snapshot.TransferNonce)
		return err
	}

	c.events.Emit(Event{
		Type:        EventTransferAborted,
		ChainID:     c.chainID,
		PeerChainID: rev.SourceChainID,
		AssetID:     snapshot.AssetID,
		Amount:      snapshot.Amount,
		Recipient:   snapshot.Owner,
		Nonce:       snapshot.TransferNonce,
	})

	if snapshot.AttachedValue != nil && !snapshot.AttachedValue.IsZero() {
		if c.value == nil {
			return fmt.Errorf("%w: no value transferor configured", ErrIncidentalTransfer)
		}
		if err := c.value.TransferValue(snapshot.Owner, snapshot.AttachedValue); err != nil {
			c.logger.Warn("incidental value refund failed",
				log.Uint64("transferNonce", snapshot.TransferNonce),
				log.Err(err),
			)
			return fmt.Errorf("%w: %s", ErrIncidentalTransfer, err)
		}
	}
	return nil
}

// acceptRevert authenticates and replay-marks a revert or abort callback.
// On success the (local chain, transfer nonce) key is marked; the caller
// unmarks it if restoration fails.
func (c *Core) acceptRevert(rev RevertContext) (*payload.RevertSnapshot, error) {
	if !bytes.Equal(rev.Gateway, c.registry.Gateway()) {
		return nil, ErrUnauthorizedCaller
	}

	snapshot, err := payload.ParseRevertSnapshot(rev.RevertPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	// Keyed by the local chain: transfer nonces were allocated here, so the
	// revert namespace never collides with inbound forward nonces.
	gap, err := c.reverts.Mark(c.chainID, snapshot.TransferNonce)
	if err != nil {
		return nil, err
	}
	if gap > 0 {
		// Expected whenever any transfer succeeds: delivered transfers never
		// produce a revert, so their nonces stay unmarked here forever.
		c.logger.Debug("revert nonce gap",
			log.Uint64("transferNonce", snapshot.TransferNonce),
			log.Uint64("gap", gap),
		)
	}
	return snapshot, nil
}

// restore puts the asset back exactly as the snapshot recorded it
func (c *Core) restore(snapshot *payload.RevertSnapshot) error {
	switch snapshot.Kind {
	case payload.KindNonFungible:
		return c.custody.Restore(custody.Snapshot{
			AssetID:       snapshot.AssetID,
			Owner:         snapshot.Owner,
			URI:           snapshot.URI,
			OriginChainID: snapshot.OriginChainID,
		})
	case payload.KindFungible:
		return c.custody.Credit(snapshot.Owner, snapshot.Amount)
	default:
		return fmt.Errorf("%w: unknown asset kind %d", ErrMalformedMessage, snapshot.Kind)
	}
}
