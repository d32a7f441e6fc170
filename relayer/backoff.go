// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/luxfi/log"
)

// withRetriesTimeout runs the operation with exponential backoff until it
// succeeds, returns a backoff.Permanent error, or the timeout elapses.
func withRetriesTimeout(
	logger log.Logger,
	operation backoff.Operation,
	timeout time.Duration,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(timeout),
	)
	notify := func(err error, duration time.Duration) {
		logger.Warn("operation failed, retrying",
			log.Err(err),
			log.Duration("backoff", duration),
		)
	}
	return backoff.RetryNotify(operation, expBackOff, notify)
}
