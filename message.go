// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/luxfi/ids"
)

const (
	CodecVersion   = 0
	MaxMessageSize = 256 * KiB
)

// Message is the chain-agnostic envelope carried by the gateway. The payload
// is an opaque byte string produced by the payload package; the envelope only
// pins routing identity and the replay nonce. Messages are append-only facts:
// once built they are never mutated, only consumed exactly once.
type Message struct {
	SourceChainID      ids.ID `serialize:"true"`
	DestinationChainID ids.ID `serialize:"true"`
	// DestinationAddress is the registered counterpart on the destination
	// chain, resolved from the connected-chain registry and never
	// attacker-supplied.
	DestinationAddress []byte `serialize:"true"`
	Nonce              uint64 `serialize:"true"`
	Payload            []byte `serialize:"true"`
}

// NewMessage creates a new envelope and validates its format
func NewMessage(
	sourceChainID ids.ID,
	destinationChainID ids.ID,
	destinationAddress []byte,
	nonce uint64,
	payload []byte,
) (*Message, error) {
	msg := &Message{
		SourceChainID:      sourceChainID,
		DestinationChainID: destinationChainID,
		DestinationAddress: destinationAddress,
		Nonce:              nonce,
		Payload:            payload,
	}
	if err := msg.Verify(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Verify verifies the envelope format
func (m *Message) Verify() error {
	if len(m.DestinationAddress) == 0 {
		return fmt.Errorf("%w: empty destination address", ErrMalformedMessage)
	}
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	b, err := Codec.Marshal(CodecVersion, m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(b) > MaxMessageSize {
		return fmt.Errorf("%w: message size %d exceeds maximum %d", ErrMalformedMessage, len(b), MaxMessageSize)
	}
	return nil
}

// Bytes returns the byte representation of the envelope
func (m *Message) Bytes() []byte {
	b, _ := Codec.Marshal(CodecVersion, m)
	return b
}

// ID returns the hash of the envelope
func (m *Message) ID() ids.ID {
	return ids.ID(ComputeHash256Array(m.Bytes()))
}

// ParseMessage parses an envelope from bytes
func ParseMessage(b []byte) (*Message, error) {
	msg := &Message{}
	if _, err := Codec.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	if err := msg.Verify(); err != nil {
		return nil, err
	}
	return msg, nil
}
