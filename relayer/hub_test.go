// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/metrics"
	"github.com/luxfi/bridge/payload"
	"github.com/luxfi/bridge/store"
)

var (
	testAuthority = []byte("authority")
	alice         = []byte("alice")
	bob           = []byte("bob")
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.RetryTimeout = 300 * time.Millisecond
	cfg.FlushInterval = 20 * time.Millisecond
	cfg.CheckpointTTL = time.Millisecond
	return cfg
}

func newHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	hub, err := NewHub(testConfig(), []byte("hub"), log.NewNoOpLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = hub.Close()
	})
	return hub
}

// newChain creates a core wired to the hub as its gateway and registers it
// as an endpoint.
func newChain(t *testing.T, hub *Hub, chainID ids.ID) *bridge.Core {
	t.Helper()
	core, err := bridge.NewCore(bridge.CoreConfig{
		ChainID:        chainID,
		LocalAddress:   append([]byte("bridge-"), chainID[:4]...),
		Authority:      testAuthority,
		Gateway:        hub,
		GatewayAddress: hub.Identity(),
		Logger:         log.NewNoOpLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, hub.Register(chainID, core.LocalAddress(), core))
	return core
}

func connect(t *testing.T, a, b *bridge.Core) {
	t.Helper()
	require.NoError(t, a.SetConnected(testAuthority, b.ChainID(), b.LocalAddress()))
	require.NoError(t, b.SetConnected(testAuthority, a.ChainID(), a.LocalAddress()))
}

func testAssetID(b byte) [32]byte {
	var id [32]byte
	id[31] = b
	return id
}

func TestHubDelivery(t *testing.T) {
	require := require.New(t)

	hub := newHub(t)
	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())
	connect(t, coreA, coreB)

	assetID := testAssetID(42)
	require.NoError(coreA.Custody().Mint(assetID, alice, "ipfs://asset-42", coreA.ChainID()))

	receipt, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: coreB.ChainID(),
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)
	require.Equal(bridge.TransferSent, receipt.State)

	hub.Drain()

	owner, err := coreB.Custody().Owner(assetID)
	require.NoError(err)
	require.Equal(bob, owner)

	count, err := hub.CommittedCount(coreA.ChainID(), coreB.ChainID())
	require.NoError(err)
	require.Equal(uint64(1), count)
}

func TestHubRevertsRejectedDelivery(t *testing.T) {
	require := require.New(t)

	hub := newHub(t)
	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())

	// A trusts B, but B never registered A as a counterpart: delivery is
	// rejected on B and must revert on A
	require.NoError(coreA.SetConnected(testAuthority, coreB.ChainID(), coreB.LocalAddress()))

	assetID := testAssetID(1)
	require.NoError(coreA.Custody().Mint(assetID, alice, "ipfs://asset-1", coreA.ChainID()))

	_, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: coreB.ChainID(),
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)

	hub.Drain()

	// Nothing was minted on B; alice has the asset back on A
	_, err = coreB.Custody().Owner(assetID)
	require.ErrorIs(err, bridge.ErrUnknownAsset)

	owner, err := coreA.Custody().Owner(assetID)
	require.NoError(err)
	require.Equal(alice, owner)
	require.False(coreA.Custody().IsLocked(assetID))
}

func TestHubAbortsUndeliverableMessage(t *testing.T) {
	require := require.New(t)

	hub := newHub(t, WithDropRule(func(*bridge.Message) bool { return true }))
	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())
	connect(t, coreA, coreB)

	assetID := testAssetID(2)
	require.NoError(coreA.Custody().Mint(assetID, alice, "", coreA.ChainID()))

	_, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: coreB.ChainID(),
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)

	hub.Drain()

	owner, err := coreA.Custody().Owner(assetID)
	require.NoError(err)
	require.Equal(alice, owner)
}

func TestHubAbortsMisroutedMessage(t *testing.T) {
	require := require.New(t)

	hub := newHub(t)
	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())

	// A's registry points at an address that is not the endpoint the hub
	// registered for chain B
	require.NoError(coreA.SetConnected(testAuthority, coreB.ChainID(), []byte("elsewhere")))
	require.NoError(coreB.SetConnected(testAuthority, coreA.ChainID(), coreA.LocalAddress()))

	assetID := testAssetID(4)
	require.NoError(coreA.Custody().Mint(assetID, alice, "", coreA.ChainID()))

	_, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: coreB.ChainID(),
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)

	hub.Drain()

	// The message never reached B; the asset is back with alice on A
	_, err = coreB.Custody().Owner(assetID)
	require.ErrorIs(err, bridge.ErrUnknownAsset)

	owner, err := coreA.Custody().Owner(assetID)
	require.NoError(err)
	require.Equal(alice, owner)
	require.False(coreA.Custody().IsLocked(assetID))
}

// flakyReceiver fails the first failures OnCall invocations with a transient
// error, then delegates.
type flakyReceiver struct {
	bridge.Receiver

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyReceiver) OnCall(ctx context.Context, call bridge.CallContext, msg []byte) error {
	f.mu.Lock()
	f.calls++
	failing := f.calls <= f.failures
	f.mu.Unlock()
	if failing {
		return errors.New("destination temporarily unavailable")
	}
	return f.Receiver.OnCall(ctx, call, msg)
}

func TestHubRetriesTransientFailures(t *testing.T) {
	require := require.New(t)

	hub := newHub(t)
	coreA := newChain(t, hub, ids.GenerateTestID())

	chainB := ids.GenerateTestID()
	coreB, err := bridge.NewCore(bridge.CoreConfig{
		ChainID:        chainB,
		LocalAddress:   []byte("bridge-b"),
		Authority:      testAuthority,
		Gateway:        hub,
		GatewayAddress: hub.Identity(),
	})
	require.NoError(err)
	flaky := &flakyReceiver{Receiver: coreB, failures: 2}
	require.NoError(hub.Register(chainB, coreB.LocalAddress(), flaky))
	connect(t, coreA, coreB)

	assetID := testAssetID(3)
	require.NoError(coreA.Custody().Mint(assetID, alice, "", coreA.ChainID()))

	_, err = coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: chainB,
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)

	hub.Drain()

	owner, err := coreB.Custody().Owner(assetID)
	require.NoError(err)
	require.Equal(bob, owner)

	flaky.mu.Lock()
	defer flaky.mu.Unlock()
	require.Greater(flaky.calls, flaky.failures)
}

func TestHubCheckpointPersists(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db, err := store.Open(dir)
	require.NoError(err)
	defer db.Close()

	hub, err := NewHub(testConfig(), []byte("hub"), log.NewNoOpLogger(), WithStore(db))
	require.NoError(err)

	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())
	connect(t, coreA, coreB)

	for i := byte(0); i < 3; i++ {
		assetID := testAssetID(i)
		require.NoError(coreA.Custody().Mint(assetID, alice, "", coreA.ChainID()))
		_, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
			Caller:             alice,
			DestinationChainID: coreB.ChainID(),
			Recipient:          bob,
			Kind:               payload.KindNonFungible,
			AssetID:            assetID,
		})
		require.NoError(err)
	}

	require.NoError(hub.Close())

	count, err := db.GetCheckpoint(routeID(coreA.ChainID(), coreB.ChainID()))
	require.NoError(err)
	require.Equal(uint64(3), count)
}

func TestHubMetrics(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	hub := newHub(t, WithMetrics(metrics.NewMetrics(registry)))
	coreA := newChain(t, hub, ids.GenerateTestID())
	coreB := newChain(t, hub, ids.GenerateTestID())
	connect(t, coreA, coreB)

	assetID := testAssetID(7)
	require.NoError(coreA.Custody().Mint(assetID, alice, "", coreA.ChainID()))
	_, err := coreA.Transfer(context.Background(), bridge.TransferRequest{
		Caller:             alice,
		DestinationChainID: coreB.ChainID(),
		Recipient:          bob,
		Kind:               payload.KindNonFungible,
		AssetID:            assetID,
	})
	require.NoError(err)

	hub.Drain()

	families, err := registry.Gather()
	require.NoError(err)
	values := map[string]float64{}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[family.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[family.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(float64(1), values["delivered_message_count"])
	require.Equal(float64(0), values["in_flight_message_count"])
}

func TestHubRejectsUnregisteredSource(t *testing.T) {
	require := require.New(t)

	hub := newHub(t)
	msg, err := bridge.NewMessage(
		ids.GenerateTestID(),
		ids.GenerateTestID(),
		[]byte{1},
		0,
		[]byte{1},
	)
	require.NoError(err)
	err = hub.Send(context.Background(), msg, bridge.RelayOptions{})
	require.ErrorContains(err, "not registered")
}
