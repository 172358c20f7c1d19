// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// handshakeOutcome is what a fakeHandshake's Wait returns.
type handshakeOutcome struct {
	credential string
	err        error
}

// fakeHandshake completes when a test sends on outcome.
type fakeHandshake struct {
	url     string
	outcome chan handshakeOutcome
	closes  atomic.Int32
}

func newFakeHandshake(url string) *fakeHandshake {
	return &fakeHandshake{url: url, outcome: make(chan handshakeOutcome, 1)}
}

func (h *fakeHandshake) URL() string { return h.url }

func (h *fakeHandshake) Wait(ctx context.Context) (string, error) {
	select {
	case o := <-h.outcome:
		return o.credential, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *fakeHandshake) Close() error {
	h.closes.Add(1)
	return nil
}

// fakeConn streams events pushed by the test until it fails or ctx ends.
type fakeConn struct {
	events chan ChannelEvent
	fail   chan error
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan ChannelEvent, 16), fail: make(chan error, 1)}
}

func (c *fakeConn) Run(ctx context.Context, handle func(context.Context, ChannelEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.fail:
			return err
		case evt := <-c.events:
			_ = handle(ctx, evt)
		}
	}
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// fakeProvider hands out fakeHandshakes and fakeConns.
type fakeProvider struct {
	mu         sync.Mutex
	handshakes []*fakeHandshake
	beginErr   error
	// beginGate, when set, blocks BeginPairing until closed.
	beginGate chan struct{}

	connectErr error
	conns      chan *fakeConn
	connects   atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{conns: make(chan *fakeConn, 16)}
}

func (p *fakeProvider) BeginPairing(ctx context.Context) (Handshake, error) {
	if p.beginGate != nil {
		select {
		case <-p.beginGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	hs := newFakeHandshake(fmt.Sprintf("tg://login?token=%d", len(p.handshakes)+1))
	p.handshakes = append(p.handshakes, hs)
	return hs, nil
}

func (p *fakeProvider) lastHandshake(t *testing.T) *fakeHandshake {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handshakes) == 0 {
		t.Fatal("no handshake started")
	}
	return p.handshakes[len(p.handshakes)-1]
}

func (p *fakeProvider) Connect(_ context.Context, credential string) (AccountConn, error) {
	p.connects.Add(1)
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	if credential == "" {
		return nil, errors.New("empty credential")
	}
	c := newFakeConn()
	p.conns <- c
	return c, nil
}

func (p *fakeProvider) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-p.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection opened")
		return nil
	}
}

type sentMessage struct {
	userID UserID
	text   string
}

// fakeSender records texts sent through it.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) SendText(_ context.Context, userID UserID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (s *fakeSender) Texts(userID UserID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.sent {
		if m.userID == userID {
			out = append(out, m.text)
		}
	}
	return out
}

func (s *fakeSender) has(userID UserID, text string) bool {
	for _, got := range s.Texts(userID) {
		if got == text {
			return true
		}
	}
	return false
}

type delivery struct {
	userID  UserID
	channel string
	text    string
}

// recordingDeliverer captures matched posts. onDeliver, when set, runs first.
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	onDeliver  func(d delivery)
}

func (r *recordingDeliverer) Deliver(_ context.Context, userID UserID, channel, text string) {
	d := delivery{userID: userID, channel: channel, text: text}
	if r.onDeliver != nil {
		r.onDeliver(d)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *recordingDeliverer) All() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// pairedRegistries returns registries with the given users holding a
// credential.
func pairedRegistries(users ...UserID) (*CredentialRegistry, *SubscriptionRegistry) {
	creds := NewCredentialRegistry()
	for _, u := range users {
		creds.Set(u, fmt.Sprintf("cred-%d", u))
	}
	return creds, NewSubscriptionRegistry(creds)
}
