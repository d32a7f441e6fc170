// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package payload defines the chain-agnostic byte encoding of bridge transfer
// intents and revert snapshots. The encoding is deterministic, big-endian,
// and self-describing (leading version and kind bytes) so a decoder on an
// unrelated chain family can parse it without schema negotiation.
package payload

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// Asset kinds
const (
	// KindNonFungible transfers a unique token identified by AssetID
	KindNonFungible uint8 = iota
	// KindFungible transfers Amount units of the asset
	KindFungible
)

const (
	// TransferVersion is the current transfer intent encoding version
	TransferVersion uint8 = 1

	// MaxURILen bounds the metadata URI carried for non-fungible assets
	MaxURILen = 2048
)

// ErrInvalidPayload is returned when a payload is malformed
var ErrInvalidPayload = errors.New("invalid payload")

// TransferIntent is the immutable cross-chain transfer payload. Sender is the
// origin-chain address captured for refunds and reverts; Nonce is the
// per-origin-chain monotonic counter used for replay protection.
type TransferIntent struct {
	Version       uint8
	Kind          uint8
	AssetID       [32]byte
	OriginChainID ids.ID
	Sender        []byte
	Recipient     []byte
	Amount        *uint256.Int
	URI           string
	Nonce         uint64
}

// NewTransferIntent creates a validated transfer intent
func NewTransferIntent(
	kind uint8,
	assetID [32]byte,
	originChainID ids.ID,
	sender, recipient []byte,
	amount *uint256.Int,
	uri string,
	nonce uint64,
) (*TransferIntent, error) {
	p := &TransferIntent{
		Version:       TransferVersion,
		Kind:          kind,
		AssetID:       assetID,
		OriginChainID: originChainID,
		Sender:        sender,
		Recipient:     recipient,
		Amount:        amount,
		URI:           uri,
		Nonce:         nonce,
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// Verify performs format validation
func (p *TransferIntent) Verify() error {
	if p.Version != TransferVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, p.Version)
	}
	if p.Kind != KindNonFungible && p.Kind != KindFungible {
		return fmt.Errorf("%w: unknown asset kind %d", ErrInvalidPayload, p.Kind)
	}
	if len(p.Sender) == 0 {
		return fmt.Errorf("%w: empty sender", ErrInvalidPayload)
	}
	if len(p.Recipient) == 0 {
		return fmt.Errorf("%w: empty recipient", ErrInvalidPayload)
	}
	if p.Kind == KindFungible && (p.Amount == nil || p.Amount.IsZero()) {
		return fmt.Errorf("%w: fungible transfer requires positive amount", ErrInvalidPayload)
	}
	if len(p.URI) > MaxURILen {
		return fmt.Errorf("%w: uri length %d exceeds maximum %d", ErrInvalidPayload, len(p.URI), MaxURILen)
	}
	return nil
}

// KindName returns the human-readable asset kind
func (p *TransferIntent) KindName() string {
	switch p.Kind {
	case KindNonFungible:
		return "NonFungible"
	case KindFungible:
		return "Fungible"
	default:
		return "Unknown"
	}
}

// Bytes serializes the transfer intent
func (p *TransferIntent) Bytes() []byte {
	size := 1 + 1 + 32 + 32 + // version, kind, assetID, originChain
		4 + len(p.Sender) + 4 + len(p.Recipient) + // addresses with length prefix
		32 + // amount, 32-byte big-endian
		2 + len(p.URI) + // uri with u16 length prefix
		8 // nonce

	buf := make([]byte, size)
	offset := 0

	buf[offset] = p.Version
	offset++
	buf[offset] = p.Kind
	offset++

	copy(buf[offset:], p.AssetID[:])
	offset += 32
	copy(buf[offset:], p.OriginChainID[:])
	offset += 32

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(p.Sender)))
	offset += 4
	copy(buf[offset:], p.Sender)
	offset += len(p.Sender)

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(p.Recipient)))
	offset += 4
	copy(buf[offset:], p.Recipient)
	offset += len(p.Recipient)

	amount := p.Amount
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	b32 := amount.Bytes32()
	copy(buf[offset:], b32[:])
	offset += 32

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(p.URI)))
	offset += 2
	copy(buf[offset:], p.URI)
	offset += len(p.URI)

	binary.BigEndian.PutUint64(buf[offset:], p.Nonce)

	return buf
}

// ParseTransferIntent deserializes a transfer intent
func ParseTransferIntent(data []byte) (*TransferIntent, error) {
	const minLen = 1 + 1 + 32 + 32 + 4 + 4 + 32 + 2 + 8
	if len(data) < minLen {
		return nil, fmt.Errorf("%w: payload too short", ErrInvalidPayload)
	}

	offset := 0
	p := &TransferIntent{}

	p.Version = data[offset]
	offset++
	if p.Version != TransferVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, p.Version)
	}
	p.Kind = data[offset]
	offset++

	copy(p.AssetID[:], data[offset:offset+32])
	offset += 32
	copy(p.OriginChainID[:], data[offset:offset+32])
	offset += 32

	var err error
	p.Sender, offset, err = readBytes(data, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: sender: %s", ErrInvalidPayload, err)
	}
	p.Recipient, offset, err = readBytes(data, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %s", ErrInvalidPayload, err)
	}

	if offset+32 > len(data) {
		return nil, fmt.Errorf("%w: truncated amount", ErrInvalidPayload)
	}
	p.Amount = new(uint256.Int).SetBytes(data[offset : offset+32])
	offset += 32

	if offset+2 > len(data) {
		return nil, fmt.Errorf("%w: missing uri length", ErrInvalidPayload)
	}
	uriLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if uriLen > MaxURILen {
		return nil, fmt.Errorf("%w: uri length %d exceeds maximum %d", ErrInvalidPayload, uriLen, MaxURILen)
	}
	if offset+uriLen > len(data) {
		return nil, fmt.Errorf("%w: truncated uri", ErrInvalidPayload)
	}
	p.URI = string(data[offset : offset+uriLen])
	offset += uriLen

	if offset+8 > len(data) {
		return nil, fmt.Errorf("%w: truncated nonce", ErrInvalidPayload)
	}
	p.Nonce = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, len(data)-offset)
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return p, nil
}

// readBytes reads a u32-length-prefixed byte string starting at offset and
// returns the value and the new offset.
func readBytes(data []byte, offset int) ([]byte, int, error) {
	if offset+4 > len(data) {
		return nil, 0, errors.New("missing length prefix")
	}
	n := binary.BigEndian.Uint32(data[offset:])
	offset += 4
	if n > uint32(len(data)) || offset+int(n) > len(data) {
		return nil, 0, errors.New("length exceeds payload")
	}
	v := make([]byte, n)
	copy(v, data[offset:offset+int(n)])
	return v, offset + int(n), nil
}
