// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// RevertVersion is the current revert snapshot encoding version
const RevertVersion uint8 = 1

// RevertSnapshot is attached to every outbound transfer as the refund
// continuation. When delivery fails, the gateway hands it back verbatim so
// the origin chain can reconstruct the pre-transfer asset record without
// re-deriving it from the forward intent. TransferNonce identifies the
// transfer being reverted; the revert itself is replay-protected by it.
type RevertSnapshot struct {
	Version       uint8
	Kind          uint8
	AssetID       [32]byte
	OriginChainID ids.ID
	// Owner is the pre-transfer owner the asset is restored to
	Owner []byte
	// URI is the exact metadata captured at lock time
	URI    string
	Amount *uint256.Int
	// AttachedValue is relay-fee value that never left the origin chain and
	// must be refunded on abort
	AttachedValue *uint256.Int
	TransferNonce uint64
}

// NewRevertSnapshot creates a validated revert snapshot
func NewRevertSnapshot(
	kind uint8,
	assetID [32]byte,
	originChainID ids.ID,
	owner []byte,
	uri string,
	amount *uint256.Int,
	attachedValue *uint256.Int,
	transferNonce uint64,
) (*RevertSnapshot, error) {
	s := &RevertSnapshot{
		Version:       RevertVersion,
		Kind:          kind,
		AssetID:       assetID,
		OriginChainID: originChainID,
		Owner:         owner,
		URI:           uri,
		Amount:        amount,
		AttachedValue: attachedValue,
		TransferNonce: transferNonce,
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// Verify performs format validation
func (s *RevertSnapshot) Verify() error {
	if s.Version != RevertVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, s.Version)
	}
	if s.Kind != KindNonFungible && s.Kind != KindFungible {
		return fmt.Errorf("%w: unknown asset kind %d", ErrInvalidPayload, s.Kind)
	}
	if len(s.Owner) == 0 {
		return fmt.Errorf("%w: empty owner", ErrInvalidPayload)
	}
	if len(s.URI) > MaxURILen {
		return fmt.Errorf("%w: uri length %d exceeds maximum %d", ErrInvalidPayload, len(s.URI), MaxURILen)
	}
	return nil
}

// Bytes serializes the revert snapshot
func (s *RevertSnapshot) Bytes() []byte {
	size := 1 + 1 + 32 + 32 +
		4 + len(s.Owner) +
		2 + len(s.URI) +
		32 + 32 +
		8

	buf := make([]byte, size)
	offset := 0

	buf[offset] = s.Version
	offset++
	buf[offset] = s.Kind
	offset++

	copy(buf[offset:], s.AssetID[:])
	offset += 32
	copy(buf[offset:], s.OriginChainID[:])
	offset += 32

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(s.Owner)))
	offset += 4
	copy(buf[offset:], s.Owner)
	offset += len(s.Owner)

	binary.BigEndian.PutUint16(buf[offset:], uint16(len(s.URI)))
	offset += 2
	copy(buf[offset:], s.URI)
	offset += len(s.URI)

	amount := s.Amount
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	a32 := amount.Bytes32()
	copy(buf[offset:], a32[:])
	offset += 32

	value := s.AttachedValue
	if value == nil {
		value = uint256.NewInt(0)
	}
	v32 := value.Bytes32()
	copy(buf[offset:], v32[:])
	offset += 32

	binary.BigEndian.PutUint64(buf[offset:], s.TransferNonce)

	return buf
}

// ParseRevertSnapshot deserializes a revert snapshot
func ParseRevertSnapshot(data []byte) (*RevertSnapshot, error) {
	const minLen = 1 + 1 + 32 + 32 + 4 + 2 + 32 + 32 + 8
	if len(data) < minLen {
		return nil, fmt.Errorf("%w: snapshot too short", ErrInvalidPayload)
	}

	offset := 0
	s := &RevertSnapshot{}

	s.Version = data[offset]
	offset++
	if s.Version != RevertVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, s.Version)
	}
	s.Kind = data[offset]
	offset++

	copy(s.AssetID[:], data[offset:offset+32])
	offset += 32
	copy(s.OriginChainID[:], data[offset:offset+32])
	offset += 32

	var err error
	s.Owner, offset, err = readBytes(data, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %s", ErrInvalidPayload, err)
	}

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
	s.URI = string(data[offset : offset+uriLen])
	offset += uriLen

	if offset+32+32+8 > len(data) {
		return nil, fmt.Errorf("%w: truncated snapshot", ErrInvalidPayload)
	}
	s.Amount = new(uint256.Int).SetBytes(data[offset : offset+32])
	offset += 32
	s.AttachedValue = new(uint256.Int).SetBytes(data[offset : offset+32])
	offset += 32
	s.TransferNonce = binary.BigEndian.Uint64(data[offset:])
	offset += 8

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidPayload, len(data)-offset)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}
