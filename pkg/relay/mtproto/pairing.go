// Copyright 2024-2026 Aiku AI

package mtproto

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

type pairingResult struct {
	credential string
	err        error
}

// qrHandshake owns the transient client of one QR login. The client runs in
// its own goroutine until the login finishes or Close is called.
type qrHandshake struct {
	url    string
	result chan pairingResult
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

var _ relay.Handshake = (*qrHandshake)(nil)

// runFunc has the shape of (*telegram.Client).Run.
type runFunc func(ctx context.Context, f func(ctx context.Context) error) error

// loginFunc performs a QR login on a running client. show is called with the
// URL of every issued token. On success it returns the exported credential.
type loginFunc func(ctx context.Context, show func(url string)) (string, error)

// qrLogin builds the loginFunc of a gotd client whose update dispatcher
// forwards login-token updates.
func qrLogin(client *telegram.Client, storage *session.StorageMemory, dispatcher *tg.UpdateDispatcher) loginFunc {
	loggedIn := qrlogin.OnLoginToken(dispatcher)
	return func(ctx context.Context, show func(url string)) (string, error) {
		_, err := client.QR().Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			show(token.URL())
			return nil
		})
		if err != nil {
			return "", err
		}
		data, err := storage.LoadSession(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to export session: %w", err)
		}
		return EncodeCredential(data), nil
	}
}

// startQRHandshake runs login on its own client goroutine and returns once
// the first token URL is available.
func startQRHandshake(ctx context.Context, run runFunc, login loginFunc, log zerolog.Logger) (*qrHandshake, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	h := &qrHandshake{
		result: make(chan pairingResult, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	urls := make(chan string, 1)
	show := func(url string) {
		// Only the first token is shown to the user.
		select {
		case urls <- url:
		default:
		}
	}

	go func() {
		defer close(h.done)
		var credential string
		err := run(runCtx, func(ctx context.Context) error {
			var err error
			credential, err = login(ctx, show)
			return err
		})
		if err != nil {
			h.deliver(pairingResult{err: classifyLoginError(err)})
			return
		}
		h.deliver(pairingResult{credential: credential})
	}()

	select {
	case url := <-urls:
		h.url = url
	case res := <-h.result:
		// A token shown before the login ended is still a started pairing.
		select {
		case url := <-urls:
			h.url = url
			h.result <- res
		default:
			h.Close()
			if res.err == nil {
				res.err = errors.New("login finished before a token was issued")
			}
			return nil, res.err
		}
	case <-ctx.Done():
		h.Close()
		return nil, ctx.Err()
	}
	log.Debug().Msg("Received QR login token")
	return h, nil
}

func (h *qrHandshake) deliver(res pairingResult) {
	select {
	case h.result <- res:
	default:
	}
}

func (h *qrHandshake) URL() string {
	return h.url
}

func (h *qrHandshake) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-h.result:
		return res.credential, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *qrHandshake) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		<-h.done
	})
	return nil
}

// classifyLoginError maps the two-factor refusal to relay.ErrHandshakeDenied.
// Accounts with a cloud password cannot finish a QR login without it.
func classifyLoginError(err error) error {
	if errors.Is(err, auth.ErrPasswordAuthNeeded) || tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
		return fmt.Errorf("%w: %w", relay.ErrHandshakeDenied, err)
	}
	return err
}
