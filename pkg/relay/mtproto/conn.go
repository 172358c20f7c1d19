// Copyright 2024-2026 Aiku AI

package mtproto

import (
	"context"
	"sync"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

const eventBuffer = 64

// conn is an authorized MTProto client streaming new-message updates. gotd
// invokes update handlers from its own goroutines, so events are queued and
// handed to the caller from Run one at a time.
type conn struct {
	run runFunc
	// session runs on the connected client until the stream ends.
	session func(ctx context.Context) error
	events  chan relay.ChannelEvent
	log     zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ relay.AccountConn = (*conn)(nil)

func newConn(log zerolog.Logger) *conn {
	return &conn{
		events:   make(chan relay.ChannelEvent, eventBuffer),
		log:      log,
		stopChan: make(chan struct{}),
	}
}

func (c *conn) push(ctx context.Context, e tg.Entities, msg tg.MessageClass) error {
	evt, ok := toChannelEvent(e, msg)
	if !ok {
		return nil
	}
	select {
	case c.events <- evt:
	case <-ctx.Done():
	case <-c.stopChan:
	}
	return nil
}

func (c *conn) Run(ctx context.Context, handle func(ctx context.Context, evt relay.ChannelEvent) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.run(runCtx, c.session)
	}()

	for {
		select {
		case evt := <-c.events:
			if err := handle(ctx, evt); err != nil {
				c.log.Warn().Err(err).Int("message_id", evt.MessageID).Msg("Event handler failed")
			}
		case err := <-errCh:
			return err
		case <-c.stopChan:
			cancel()
			<-errCh
			return nil
		case <-ctx.Done():
			<-errCh
			return ctx.Err()
		}
	}
}

func (c *conn) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	return nil
}
