// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/bridge/custody"
	"github.com/luxfi/bridge/payload"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
)

// TransferRequest describes one user-initiated outbound transfer
type TransferRequest struct {
	// Caller must own the asset (or balance) being transferred; it is
	// embedded as the sender for refunds and reverts
	Caller             []byte
	DestinationChainID ids.ID
	Recipient          []byte
	// Kind is payload.KindNonFungible or payload.KindFungible
	Kind    uint8
	AssetID [32]byte
	// Amount is required for fungible transfers
	Amount *uint256.Int
	// AttachedValue is optional relay-fee value submitted with the message
	AttachedValue *uint256.Int
}

// Receipt reports a successfully initiated transfer
type Receipt struct {
	MessageID ids.ID
	Nonce     uint64
	State     TransferState
}

// Transfer burns or debits the local asset and hands the transfer message to
// the gateway: Idle -> Locked -> Sent. Validation and destination resolution
// happen before any custody mutation, so a failed transfer leaves the asset
// exactly as it was. Once Sent there is no cancellation; the transfer
// resolves as Delivered on the destination or comes back through OnRevert or
// OnAbort.
func (c *Core) Transfer(ctx context.Context, req TransferRequest) (*Receipt, error) {
	if len(req.Recipient) == 0 {
		return nil, ErrZeroRecipient
	}
	if len(req.Caller) == 0 {
		return nil, fmt.Errorf("%w: caller", ErrZeroRecipient)
	}
	// Checked here so local and cross-chain transfers agree; the cross-chain
	// path would reject a zero amount at intent build time anyway.
	if req.Kind == payload.KindFungible && (req.Amount == nil || req.Amount.IsZero()) {
		return nil, fmt.Errorf("%w: fungible transfer requires positive amount", ErrMalformedMessage)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Destination = local is a degenerate case: move the asset immediately
	// instead of a wasted round trip through the hub.
	if req.DestinationChainID == c.chainID {
		return c.transferLocal(req)
	}

	// Resolve before burning, so an unknown chain fails with nothing locked
	counterpart, err := c.registry.Resolve(req.DestinationChainID)
	if err != nil {
		return nil, err
	}

	nonce := c.nonce
	c.nonce++

	var (
		snapshot custody.Snapshot
		uri      string
		origin   ids.ID
	)
	switch req.Kind {
	case payload.KindNonFungible:
		snapshot, err = c.custody.Lock(req.AssetID, req.Caller)
		if err != nil {
			return nil, err
		}
		uri = snapshot.URI
		origin = snapshot.OriginChainID
	case payload.KindFungible:
		if err := c.custody.Debit(req.Caller, req.Amount); err != nil {
			return nil, err
		}
		origin = c.chainID
	default:
		return nil, fmt.Errorf("%w: unknown asset kind %d", ErrMalformedMessage, req.Kind)
	}

	receipt, err := c.send(ctx, req, counterpart, nonce, uri, origin)
	if err != nil {
		// Nothing left the chain; put the asset back exactly as it was
		switch req.Kind {
		case payload.KindNonFungible:
			if unlockErr := c.custody.Unlock(req.AssetID); unlockErr != nil {
				c.logger.Error("failed to unlock after send failure",
					log.Err(unlockErr),
				)
			}
		case payload.KindFungible:
			if creditErr := c.custody.Credit(req.Caller, req.Amount); creditErr != nil {
				c.logger.Error("failed to recredit after send failure",
					log.Err(creditErr),
				)
			}
		}
		return nil, err
	}

	// Burn-for-transfer: the local record ceases to exist; the snapshot in
	// the relay options is its only remaining representation.
	if req.Kind == payload.KindNonFungible {
		if err := c.custody.Burn(req.AssetID); err != nil {
			return nil, err
		}
	}

	c.events.Emit(Event{
		Type:        EventTransferInitiated,
		ChainID:     c.chainID,
		PeerChainID: req.DestinationChainID,
		AssetID:     req.AssetID,
		Amount:      req.Amount,
		Recipient:   req.Recipient,
		Nonce:       nonce,
		MessageID:   receipt.MessageID,
	})
	return receipt, nil
}

func (c *Core) send(
	ctx context.Context,
	req TransferRequest,
	counterpart []byte,
	nonce uint64,
	uri string,
	origin ids.ID,
) (*Receipt, error) {
	intent, err := payload.NewTransferIntent(
		req.Kind,
		req.AssetID,
		origin,
		c.localAddress,
		req.Recipient,
		req.Amount,
		uri,
		nonce,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	snapshot, err := payload.NewRevertSnapshot(
		req.Kind,
		req.AssetID,
		origin,
		req.Caller,
		uri,
		req.Amount,
		req.AttachedValue,
		nonce,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}

	msg, err := NewMessage(c.chainID, req.DestinationChainID, counterpart, nonce, intent.Bytes())
	if err != nil {
		return nil, err
	}

	opts := RelayOptions{
		ComputeBudget: c.computeBudget,
		RevertAddress: c.localAddress,
		RevertPayload: snapshot.Bytes(),
	}
	if req.AttachedValue != nil && !req.AttachedValue.IsZero() {
		err = c.gateway.SendWithValue(ctx, msg, req.AttachedValue, opts)
	} else {
		err = c.gateway.Send(ctx, msg, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("gateway send failed: %w", err)
	}

	return &Receipt{
		MessageID: msg.ID(),
		Nonce:     nonce,
		State:     TransferSent,
	}, nil
}

// transferLocal moves an asset between owners on the same chain
func (c *Core) transferLocal(req TransferRequest) (*Receipt, error) {
	switch req.Kind {
	case payload.KindNonFungible:
		snapshot, err := c.custody.Lock(req.AssetID, req.Caller)
		if err != nil {
			return nil, err
		}
		if err := c.custody.Burn(req.AssetID); err != nil {
			return nil, err
		}
		if err := c.custody.Mint(req.AssetID, req.Recipient, snapshot.URI, snapshot.OriginChainID); err != nil {
			return nil, err
		}
	case payload.KindFungible:
		if err := c.custody.Debit(req.Caller, req.Amount); err != nil {
			return nil, err
		}
		if err := c.custody.Credit(req.Recipient, req.Amount); err != nil {
			// Undo the debit; local transfers are all-or-nothing
			if creditErr := c.custody.Credit(req.Caller, req.Amount); creditErr != nil {
				c.logger.Error("failed to recredit after local transfer failure",
					log.Err(creditErr),
				)
			}
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown asset kind %d", ErrMalformedMessage, req.Kind)
	}

	nonce := c.nonce
	c.nonce++

	c.events.Emit(Event{
		Type:        EventTransferReceived,
		ChainID:     c.chainID,
		PeerChainID: c.chainID,
		AssetID:     req.AssetID,
		Amount:      req.Amount,
		Recipient:   req.Recipient,
		Nonce:       nonce,
	})
	return &Receipt{
		Nonce: nonce,
		State: TransferDelivered,
	}, nil
}
