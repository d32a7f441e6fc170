// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"errors"

	"github.com/luxfi/bridge/custody"
	"github.com/luxfi/bridge/registry"
	"github.com/luxfi/bridge/replay"
)

// Sentinel errors surfaced by the protocol core. Ledger and registry
// sentinels are re-exported so callers can classify every failure from this
// package alone with errors.Is and Kind.
var (
	// Validation failures are rejected before any state mutation.
	ErrZeroRecipient    = errors.New("recipient is empty")
	ErrMalformedMessage = errors.New("malformed message")

	// Authorization failures are fatal for the call and never retried.
	ErrUnauthorizedCaller = errors.New("caller is not the trusted gateway")
	ErrUnauthorizedSender = errors.New("sender is not the registered counterpart")
	ErrUnauthorizedAdmin  = registry.ErrUnauthorized

	// Replay failures are fatal for that specific message.
	ErrAlreadyProcessed = replay.ErrAlreadyProcessed
	ErrNonceGap         = replay.ErrNonceGap

	// State failures must be resolved by the caller before retrying.
	ErrUnknownChain        = registry.ErrUnknownChain
	ErrNotOwner            = custody.ErrNotOwner
	ErrAlreadyLocked       = custody.ErrAlreadyLocked
	ErrUnknownAsset        = custody.ErrUnknownAsset
	ErrAssetExists         = custody.ErrAssetExists
	ErrInsufficientBalance = custody.ErrInsufficientBalance

	// ErrIncidentalTransfer reports a failed value refund after the primary
	// asset mutation committed. Non-fatal to the transfer itself: the caller
	// must not retry or roll back the transfer.
	ErrIncidentalTransfer = errors.New("incidental value transfer failed")
)

// ErrorKind classifies a protocol error for observability and retry policy
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuthorization
	KindReplay
	KindState
	KindIncidental
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindReplay:
		return "replay"
	case KindState:
		return "state"
	case KindIncidental:
		return "incidental"
	default:
		return "unknown"
	}
}

// Kind returns the taxonomy bucket for err, or KindUnknown if err does not
// wrap one of the protocol sentinels.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrZeroRecipient),
		errors.Is(err, ErrMalformedMessage):
		return KindValidation
	case errors.Is(err, ErrUnauthorizedCaller),
		errors.Is(err, ErrUnauthorizedSender),
		errors.Is(err, ErrUnauthorizedAdmin):
		return KindAuthorization
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrNonceGap):
		return KindReplay
	case errors.Is(err, ErrUnknownChain),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrAlreadyLocked),
		errors.Is(err, ErrUnknownAsset),
		errors.Is(err, ErrAssetExists),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, custody.ErrNotLocked),
		errors.Is(err, custody.ErrBalanceOverflow):
		return KindState
	case errors.Is(err, ErrIncidentalTransfer):
		return KindIncidental
	default:
		return KindUnknown
	}
}
