// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
)

// FakeGateway is a test implementation of Gateway that records every
// submitted message.
type FakeGateway struct {
	mu   sync.Mutex
	sent []SentMessage

	// SendErr, when set, is returned by every send
	SendErr error
}

// SentMessage is one recorded gateway submission
type SentMessage struct {
	Message *Message
	Value   *uint256.Int
	Options RelayOptions
}

func (g *FakeGateway) Send(_ context.Context, msg *Message, opts RelayOptions) error {
	if g.SendErr != nil {
		return g.SendErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, SentMessage{Message: msg, Options: opts})
	return nil
}

func (g *FakeGateway) SendWithValue(_ context.Context, msg *Message, value *uint256.Int, opts RelayOptions) error {
	if g.SendErr != nil {
		return g.SendErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, SentMessage{Message: msg, Value: value, Options: opts})
	return nil
}

// Sent returns a copy of all recorded submissions
func (g *FakeGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}
