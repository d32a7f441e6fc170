// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// RelayOptions configures destination-side execution and the refund path for
// an outbound message.
type RelayOptions struct {
	// ComputeBudget caps destination execution cost
	ComputeBudget uint64
	// RevertAddress receives the revert callback on the origin chain
	RevertAddress []byte
	// RevertPayload is handed back verbatim when delivery fails. The core
	// attaches the custody snapshot here so reverts never re-derive state
	// from the forward message.
	RevertPayload []byte
}

// Gateway is the chain's native messaging bridge. The core only consumes its
// send operations and trusts its authenticity guarantee; how the hub reaches
// agreement on a message is outside this protocol.
type Gateway interface {
	Send(ctx context.Context, msg *Message, opts RelayOptions) error
	SendWithValue(ctx context.Context, msg *Message, value *uint256.Int, opts RelayOptions) error
}

// CallContext is the per-call proof that an inbound invocation originated
// from the trusted gateway. It is checked on every call and never persisted.
type CallContext struct {
	// Gateway is the identity of the calling gateway, compared against the
	// stored gateway reference
	Gateway []byte
	// SourceChainID is the chain the hub authenticated the message from
	SourceChainID ids.ID
	// Sender is the logical origin-chain sender the hub attests to. Gateway
	// authentication proves a message arrived; this field is what the
	// counterpart check validates against the registry.
	Sender []byte
	// AttachedValue is incidental native value delivered with the call
	// (e.g. a relay-fee refund)
	AttachedValue *uint256.Int
}

// RevertContext carries a failed delivery back to the origin chain
type RevertContext struct {
	Gateway []byte
	// SourceChainID is the chain the failure was observed on
	SourceChainID ids.ID
	// RevertPayload is the RelayOptions.RevertPayload of the failed message
	RevertPayload []byte
}

// Receiver is the chain-side surface the gateway invokes. Implemented by
// Core; consumed by gateway adapters and the in-process relayer.
type Receiver interface {
	OnCall(ctx context.Context, call CallContext, msg []byte) error
	OnRevert(ctx context.Context, rev RevertContext) error
	OnAbort(ctx context.Context, rev RevertContext) error
}

// ValueTransferor moves native value on the local chain, used for relay-fee
// refunds. A failure after the primary asset mutation committed is reported
// as ErrIncidentalTransfer, never rolled back.
type ValueTransferor interface {
	TransferValue(to []byte, amount *uint256.Int) error
}
