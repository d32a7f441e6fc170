// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	log "github.com/luxfi/log"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

var (
	admin       = []byte{0x01}
	counterpart = []byte{0xc0, 0xde}
)

func TestRegistrySetAndResolve(t *testing.T) {
	r, err := New(admin, log.NewNoOpLogger())
	require.NoError(t, err)

	chainID := ids.GenerateTestID()

	// Unset chain fails
	_, err = r.Resolve(chainID)
	require.ErrorIs(t, err, ErrUnknownChain)

	require.NoError(t, r.SetConnected(admin, chainID, counterpart))

	got, err := r.Resolve(chainID)
	require.NoError(t, err)
	require.Equal(t, counterpart, got)
	require.True(t, r.IsCounterpart(chainID, counterpart))
	require.False(t, r.IsCounterpart(chainID, []byte{0xbe, 0xef}))
}

func TestRegistryOverwriteIsRepointing(t *testing.T) {
	r, err := New(admin, log.NewNoOpLogger())
	require.NoError(t, err)

	chainID := ids.GenerateTestID()
	require.NoError(t, r.SetConnected(admin, chainID, counterpart))
	v1 := r.Version()

	next := []byte{0xfa, 0xce}
	require.NoError(t, r.SetConnected(admin, chainID, next))
	require.Greater(t, r.Version(), v1)

	got, err := r.Resolve(chainID)
	require.NoError(t, err)
	require.Equal(t, next, got)
}

func TestRegistryAuthorityChecks(t *testing.T) {
	r, err := New(admin, log.NewNoOpLogger())
	require.NoError(t, err)

	chainID := ids.GenerateTestID()
	notAdmin := []byte{0x99}

	require.ErrorIs(t, r.SetConnected(notAdmin, chainID, counterpart), ErrUnauthorized)
	require.ErrorIs(t, r.UpdateGateway(notAdmin, []byte{0x01}), ErrUnauthorized)
	require.ErrorIs(t, r.SetAuthority(notAdmin, notAdmin), ErrUnauthorized)

	// Transfer authority, old admin loses control
	require.NoError(t, r.SetAuthority(admin, notAdmin))
	require.ErrorIs(t, r.SetConnected(admin, chainID, counterpart), ErrUnauthorized)
	require.NoError(t, r.SetConnected(notAdmin, chainID, counterpart))
}

func TestRegistryUpdateHook(t *testing.T) {
	var updates []Update
	r, err := New(admin, log.NewNoOpLogger(), WithUpdateHook(func(u Update) {
		updates = append(updates, u)
	}))
	require.NoError(t, err)

	chainID := ids.GenerateTestID()
	require.NoError(t, r.SetConnected(admin, chainID, counterpart))
	require.Len(t, updates, 1)
	require.Equal(t, chainID, updates[0].ChainID)
	require.Equal(t, counterpart, updates[0].Counterpart)
	require.Equal(t, uint64(1), updates[0].Version)
}

func TestRegistryEmptyAddresses(t *testing.T) {
	_, err := New(nil, log.NewNoOpLogger())
	require.ErrorIs(t, err, ErrEmptyAddress)

	r, err := New(admin, log.NewNoOpLogger())
	require.NoError(t, err)
	require.ErrorIs(t, r.SetConnected(admin, ids.GenerateTestID(), nil), ErrEmptyAddress)
	require.ErrorIs(t, r.UpdateGateway(admin, nil), ErrEmptyAddress)
	require.ErrorIs(t, r.SetAuthority(admin, nil), ErrEmptyAddress)
}
