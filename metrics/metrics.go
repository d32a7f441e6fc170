// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes bridge activity as prometheus collectors. The
// Metrics type doubles as an event sink, so registering it on a core's
// emitter is the only wiring needed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/bridge"
)

type Metrics struct {
	transferEventCount *prometheus.CounterVec

	deliveredMessageCount *prometheus.CounterVec
	revertedMessageCount  *prometheus.CounterVec
	abortedMessageCount   *prometheus.CounterVec
	deliveryRetryCount    *prometheus.CounterVec
	nonceGapCount         *prometheus.CounterVec
	inFlightMessageCount  prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		transferEventCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_event_count",
				Help: "Number of transfer lifecycle events, by chain and event type",
			},
			[]string{"chain_id", "event"},
		),
		deliveredMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivered_message_count",
				Help: "Number of messages delivered to their destination chain",
			},
			[]string{"source_chain_id", "destination_chain_id"},
		),
		revertedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reverted_message_count",
				Help: "Number of messages rejected by the destination and reverted on the origin",
			},
			[]string{"source_chain_id", "destination_chain_id", "failure_reason"},
		),
		abortedMessageCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aborted_message_count",
				Help: "Number of messages that failed in transit and were aborted on the origin",
			},
			[]string{"source_chain_id", "destination_chain_id"},
		),
		deliveryRetryCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_retry_count",
				Help: "Number of delivery attempts beyond the first",
			},
			[]string{"destination_chain_id"},
		),
		nonceGapCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nonce_gap_count",
				Help: "Number of nonces skipped below a newly applied mark",
			},
			[]string{"source_chain_id"},
		),
		inFlightMessageCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "in_flight_message_count",
				Help: "Number of messages sent but not yet delivered, reverted, or aborted",
			},
		),
	}

	registerer.MustRegister(m.transferEventCount)
	registerer.MustRegister(m.deliveredMessageCount)
	registerer.MustRegister(m.revertedMessageCount)
	registerer.MustRegister(m.abortedMessageCount)
	registerer.MustRegister(m.deliveryRetryCount)
	registerer.MustRegister(m.nonceGapCount)
	registerer.MustRegister(m.inFlightMessageCount)

	return m
}

// Accept implements bridge.Sink
func (m *Metrics) Accept(event bridge.Event) {
	m.transferEventCount.WithLabelValues(
		event.ChainID.String(),
		event.Type.String(),
	).Inc()
	if event.NonceGap > 0 {
		m.HandleNonceGap(event.PeerChainID.String(), event.NonceGap)
	}
}

// HandleDelivered records a successful delivery
func (m *Metrics) HandleDelivered(sourceChainID, destinationChainID string) {
	m.deliveredMessageCount.WithLabelValues(sourceChainID, destinationChainID).Inc()
	m.inFlightMessageCount.Dec()
}

// HandleReverted records a delivery rejected by the destination
func (m *Metrics) HandleReverted(sourceChainID, destinationChainID, reason string) {
	m.revertedMessageCount.WithLabelValues(sourceChainID, destinationChainID, reason).Inc()
	m.inFlightMessageCount.Dec()
}

// HandleAborted records a message that never reached the destination
func (m *Metrics) HandleAborted(sourceChainID, destinationChainID string) {
	m.abortedMessageCount.WithLabelValues(sourceChainID, destinationChainID).Inc()
	m.inFlightMessageCount.Dec()
}

// HandleSent records a message accepted for delivery
func (m *Metrics) HandleSent() {
	m.inFlightMessageCount.Inc()
}

// HandleRetry records one delivery retry
func (m *Metrics) HandleRetry(destinationChainID string) {
	m.deliveryRetryCount.WithLabelValues(destinationChainID).Inc()
}

// HandleNonceGap records skipped nonces observed at apply time
func (m *Metrics) HandleNonceGap(sourceChainID string, gap uint64) {
	m.nonceGapCount.WithLabelValues(sourceChainID).Add(float64(gap))
}
