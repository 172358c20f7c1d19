// Copyright 2024-2026 Aiku AI

package mtproto

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// directRun stands in for (*telegram.Client).Run without a network: it
// calls f on the given context.
func directRun(ctx context.Context, f func(ctx context.Context) error) error {
	return f(ctx)
}

// blockingSession blocks until its context ends and records that it did.
type blockingSession struct {
	started  chan struct{}
	canceled atomic.Bool
	once     sync.Once
}

func newBlockingSession() *blockingSession {
	return &blockingSession{started: make(chan struct{})}
}

func (s *blockingSession) run(ctx context.Context) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	s.canceled.Store(true)
	return ctx.Err()
}

func newTestConn(session func(ctx context.Context) error) *conn {
	c := newConn(zerolog.Nop())
	c.run = directRun
	c.session = session
	return c
}

func runConn(c *conn, ctx context.Context, handle func(context.Context, relay.ChannelEvent) error) chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, handle) }()
	return done
}

func waitErr(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

// TestConnDeliversInOrder verifies queued updates reach the handler one at a
// time in arrival order, and a failing handler does not stop the stream.
func TestConnDeliversInOrder(t *testing.T) {
	t.Parallel()
	sess := newBlockingSession()
	c := newTestConn(sess.run)

	var (
		mu  sync.Mutex
		got []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runConn(c, ctx, func(_ context.Context, evt relay.ChannelEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.MessageID)
		return errors.New("handler failed")
	})
	<-sess.started

	entities := tg.Entities{Channels: map[int64]*tg.Channel{1: {ID: 1, Username: "newschan"}}}
	for id := 1; id <= 3; id++ {
		msg := &tg.Message{ID: id, PeerID: &tg.PeerChannel{ChannelID: 1}, Message: "post"}
		if err := c.push(ctx, entities, msg); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if err := c.push(ctx, entities, &tg.MessageService{ID: 99}); err != nil {
		t.Fatalf("push service message: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("handled %d events, want 3", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	mu.Lock()
	for i, id := range got {
		if id != i+1 {
			t.Errorf("event %d has message id %d", i, id)
		}
	}
	mu.Unlock()

	cancel()
	if err := waitErr(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if !sess.canceled.Load() {
		t.Error("client session not canceled")
	}
}

// TestConnSessionFailure verifies a failing client session ends Run with its
// error.
func TestConnSessionFailure(t *testing.T) {
	t.Parallel()
	failure := tgerr.New(401, "AUTH_KEY_UNREGISTERED")
	c := newTestConn(func(context.Context) error { return failure })
	err := waitErr(t, runConn(c, context.Background(), func(context.Context, relay.ChannelEvent) error { return nil }))
	if !errors.Is(err, failure) {
		t.Errorf("Run = %v, want %v", err, failure)
	}
}

// TestConnClose verifies Close stops the client and Run returns nil.
func TestConnClose(t *testing.T) {
	t.Parallel()
	sess := newBlockingSession()
	c := newTestConn(sess.run)
	done := runConn(c, context.Background(), func(context.Context, relay.ChannelEvent) error { return nil })
	<-sess.started

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := waitErr(t, done); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if !sess.canceled.Load() {
		t.Error("client session not canceled")
	}

	// A push after Close must not block.
	pushed := make(chan struct{})
	go func() {
		entities := tg.Entities{Channels: map[int64]*tg.Channel{1: {ID: 1, Username: "c"}}}
		for i := range eventBuffer + 1 {
			_ = c.push(context.Background(), entities, &tg.Message{ID: i, PeerID: &tg.PeerChannel{ChannelID: 1}})
		}
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Error("push blocked after Close")
	}
}

// fakeLogin is a loginFunc driven by the test.
type fakeLogin struct {
	urls     []string
	result   chan pairingResult
	canceled atomic.Bool
}

func newFakeLogin(urls ...string) *fakeLogin {
	return &fakeLogin{urls: urls, result: make(chan pairingResult, 1)}
}

func (l *fakeLogin) login(ctx context.Context, show func(string)) (string, error) {
	for _, u := range l.urls {
		show(u)
	}
	select {
	case res := <-l.result:
		return res.credential, res.err
	case <-ctx.Done():
		l.canceled.Store(true)
		return "", ctx.Err()
	}
}

// TestHandshakeSignIn verifies the first token URL is exposed and Wait
// returns the exported credential.
func TestHandshakeSignIn(t *testing.T) {
	t.Parallel()
	l := newFakeLogin("tg://login?token=first", "tg://login?token=second")
	h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
	if err != nil {
		t.Fatalf("startQRHandshake: %v", err)
	}
	defer h.Close()
	if h.URL() != "tg://login?token=first" {
		t.Errorf("URL = %q", h.URL())
	}

	l.result <- pairingResult{credential: "c2Vzc2lvbg=="}
	cred, err := h.Wait(context.Background())
	if err != nil || cred != "c2Vzc2lvbg==" {
		t.Errorf("Wait = %q, %v", cred, err)
	}
}

// TestHandshakeDenied verifies a two-factor refusal surfaces as
// relay.ErrHandshakeDenied from Wait.
func TestHandshakeDenied(t *testing.T) {
	t.Parallel()
	l := newFakeLogin("tg://login?token=abc")
	h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
	if err != nil {
		t.Fatalf("startQRHandshake: %v", err)
	}
	defer h.Close()

	l.result <- pairingResult{err: tgerr.New(401, "SESSION_PASSWORD_NEEDED")}
	if _, err := h.Wait(context.Background()); !errors.Is(err, relay.ErrHandshakeDenied) {
		t.Errorf("Wait err = %v, want ErrHandshakeDenied", err)
	}
}

// TestHandshakeCloseStopsClient verifies Close cancels the transient client
// and waits for it, and may be called repeatedly.
func TestHandshakeCloseStopsClient(t *testing.T) {
	t.Parallel()
	l := newFakeLogin("tg://login?token=abc")
	h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
	if err != nil {
		t.Fatalf("startQRHandshake: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		_ = h.Close()
		_ = h.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if !l.canceled.Load() {
		t.Error("login not canceled by Close")
	}
	select {
	case <-h.done:
	default:
		t.Error("client goroutine still running after Close")
	}
}

// TestHandshakeWaitDeadline verifies Wait honors its context while the login
// is still pending.
func TestHandshakeWaitDeadline(t *testing.T) {
	t.Parallel()
	l := newFakeLogin("tg://login?token=abc")
	h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
	if err != nil {
		t.Fatalf("startQRHandshake: %v", err)
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}
}

// TestHandshakeStartFailures verifies start-up errors release the client.
func TestHandshakeStartFailures(t *testing.T) {
	t.Parallel()

	t.Run("login fails before a token", func(t *testing.T) {
		t.Parallel()
		l := newFakeLogin()
		l.result <- pairingResult{err: errors.New("dial tcp: connection refused")}
		h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
		if err == nil || h != nil {
			t.Errorf("startQRHandshake = %v, %v; want error", h, err)
		}
	})

	t.Run("no token before the deadline", func(t *testing.T) {
		t.Parallel()
		l := newFakeLogin()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := startQRHandshake(ctx, directRun, l.login, zerolog.Nop())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
		if !l.canceled.Load() {
			t.Error("client left running after the deadline")
		}
	})

	t.Run("token then immediate result", func(t *testing.T) {
		t.Parallel()
		l := newFakeLogin("tg://login?token=abc")
		l.result <- pairingResult{credential: "cred"}
		h, err := startQRHandshake(context.Background(), directRun, l.login, zerolog.Nop())
		if err != nil {
			t.Fatalf("startQRHandshake: %v", err)
		}
		defer h.Close()
		if cred, err := h.Wait(context.Background()); err != nil || cred != "cred" {
			t.Errorf("Wait = %q, %v", cred, err)
		}
	})
}
