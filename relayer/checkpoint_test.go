// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"errors"
	"testing"
	"time"

	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge/store"
)

func newTestCheckpointer(t *testing.T) (*checkpointer, *store.Store) {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cp, err := newCheckpointer(log.NewNoOpLogger(), db, "a:b", 10*time.Millisecond)
	require.NoError(t, err)
	return cp, db
}

func TestCheckpointerInOrder(t *testing.T) {
	require := require.New(t)

	cp, _ := newTestCheckpointer(t)
	cp.stage(0)
	cp.stage(1)
	cp.stage(2)
	require.Equal(uint64(3), cp.committedCount())
}

func TestCheckpointerOutOfOrder(t *testing.T) {
	require := require.New(t)

	cp, _ := newTestCheckpointer(t)

	// Completion order 2, 0, 1: the committed count may only advance over
	// contiguous nonces
	cp.stage(2)
	require.Equal(uint64(0), cp.committedCount())

	cp.stage(0)
	require.Equal(uint64(1), cp.committedCount())

	cp.stage(1)
	require.Equal(uint64(3), cp.committedCount())
}

func TestCheckpointerStaleStage(t *testing.T) {
	require := require.New(t)

	cp, _ := newTestCheckpointer(t)
	cp.stage(0)
	cp.stage(0)
	require.Equal(uint64(1), cp.committedCount())
}

func TestCheckpointerFlushAndReload(t *testing.T) {
	require := require.New(t)

	cp, db := newTestCheckpointer(t)
	cp.run()
	cp.stage(0)
	cp.stage(1)
	cp.close()

	count, err := db.GetCheckpoint("a:b")
	require.NoError(err)
	require.Equal(uint64(2), count)

	// A new checkpointer for the same route resumes from the stored count
	reloaded, err := newCheckpointer(log.NewNoOpLogger(), db, "a:b", 10*time.Millisecond)
	require.NoError(err)
	require.Equal(uint64(2), reloaded.committedCount())

	reloaded.stage(2)
	require.Equal(uint64(3), reloaded.committedCount())
}

func TestWithRetriesTimeout(t *testing.T) {
	require := require.New(t)

	attempts := 0
	err := withRetriesTimeout(log.NewNoOpLogger(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5*time.Second)
	require.NoError(err)
	require.Equal(3, attempts)
}
