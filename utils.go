// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"crypto/sha256"
)

// KiB is 1024 bytes
const KiB = 1024

// ComputeHash256Array computes the SHA256 hash of data as a fixed array
func ComputeHash256Array(data []byte) [32]byte {
	return sha256.Sum256(data)
}
