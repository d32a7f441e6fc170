// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/luxfi/bridge/payload"
	log "github.com/luxfi/log"
)

// OnCall applies an inbound transfer delivered by the gateway. The call is
// rejected before any mutation unless the caller is the trusted gateway, the
// attested sender is the registered counterpart for the source chain, and
// the (source chain, nonce) pair has never been applied. Mint/Credit happens
// under the replay mark; a failed mutation unmarks so a later redelivery can
// still succeed.
func (c *Core) OnCall(ctx context.Context, call CallContext, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !bytes.Equal(call.Gateway, c.registry.Gateway()) {
		return ErrUnauthorizedCaller
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	if msg.SourceChainID != call.SourceChainID {
		return fmt.Errorf("%w: envelope source %s does not match attested source %s",
			ErrMalformedMessage, msg.SourceChainID, call.SourceChainID)
	}
	if msg.DestinationChainID != c.chainID {
		return fmt.Errorf("%w: message destined for chain %s", ErrMalformedMessage, msg.DestinationChainID)
	}
	if !c.registry.IsCounterpart(call.SourceChainID, call.Sender) {
		return ErrUnauthorizedSender
	}

	intent, err := payload.ParseTransferIntent(msg.Payload)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	// The envelope nonce is what the replay ledger keys on; a payload that
	// disagrees is not a well-formed transfer.
	if intent.Nonce != msg.Nonce {
		return fmt.Errorf("%w: intent nonce %d does not match envelope nonce %d",
			ErrMalformedMessage, intent.Nonce, msg.Nonce)
	}

	gap, err := c.inbound.Mark(call.SourceChainID, msg.Nonce)
	if err != nil {
		return err
	}
	if gap > 0 {
		c.logger.Warn("nonce gap on inbound transfer",
			log.Stringer("sourceChainID", call.SourceChainID),
			log.Uint64("nonce", msg.Nonce),
			log.Uint64("gap", gap),
		)
	}

	switch intent.Kind {
	case payload.KindNonFungible:
		err = c.custody.Mint(intent.AssetID, intent.Recipient, intent.URI, intent.OriginChainID)
	case payload.KindFungible:
		err = c.custody.Credit(intent.Recipient, intent.Amount)
	default:
		err = fmt.Errorf("%w: unknown asset kind %d", ErrMalformedMessage, intent.Kind)
	}
	if err != nil {
		c.inbound.Unmark(call.SourceChainID, msg.Nonce)
		return err
	}

	c.events.Emit(Event{
		Type:        EventTransferReceived,
		ChainID:     c.chainID,
		PeerChainID: call.SourceChainID,
		AssetID:     intent.AssetID,
		Amount:      intent.Amount,
		Recipient:   intent.Recipient,
		Nonce:       msg.Nonce,
		MessageID:   msg.ID(),
		NonceGap:    gap,
	})

	// The transfer is committed at this point. A failed fee refund is
	// reported but never unwinds it.
	if call.AttachedValue != nil && !call.AttachedValue.IsZero() {
		if c.value == nil {
			return fmt.Errorf("%w: no value transferor configured", ErrIncidentalTransfer)
		}
		if err := c.value.TransferValue(intent.Recipient, call.AttachedValue); err != nil {
			c.logger.Warn("incidental value transfer failed",
				log.Stringer("sourceChainID", call.SourceChainID),
				log.Uint64("nonce", msg.Nonce),
				log.Err(err),
			)
			return fmt.Errorf("%w: %s", ErrIncidentalTransfer, err)
		}
	}
	return nil
}
