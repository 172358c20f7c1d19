// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Listener consumes one paired user's account update stream and forwards
// posts from channels that user subscribed to.
type Listener struct {
	userID     UserID
	credential string
	provider   AccountProvider
	subs       *SubscriptionRegistry
	deliverer  Deliverer
	log        zerolog.Logger
}

// NewListener creates a listener for the given user and credential.
func NewListener(userID UserID, credential string, provider AccountProvider, subs *SubscriptionRegistry, deliverer Deliverer, log zerolog.Logger) *Listener {
	return &Listener{
		userID:     userID,
		credential: credential,
		provider:   provider,
		subs:       subs,
		deliverer:  deliverer,
		log:        log.With().Str("component", "listener").Int64("user_id", userID).Logger(),
	}
}

// Run connects and processes events until ctx is done or the connection
// fails. It returns nil only when ctx ended the run.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := l.provider.Connect(ctx, l.credential)
	if err != nil {
		return &ProviderError{Op: "connect", Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			l.log.Warn().Err(err).Msg("Failed to close account connection")
		}
	}()

	l.log.Info().Msg("Listening for channel posts")
	err = conn.Run(ctx, l.handleEvent)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = errors.New("connection closed")
	}
	return &ProviderError{Op: "listen", Err: err}
}

// handleEvent never returns an error: per-event failures, including panics,
// are logged so the stream keeps going.
func (l *Listener) handleEvent(ctx context.Context, evt ChannelEvent) error {
	defer func() {
		if p := recover(); p != nil {
			l.log.Error().Any("panic", p).Int("message_id", evt.MessageID).Msg("Panic while handling event")
		}
	}()
	channel, ok := l.match(evt)
	if !ok {
		return nil
	}
	l.log.Debug().Str("channel", channel).Int("message_id", evt.MessageID).Msg("Forwarding post")
	l.deliverer.Deliver(ctx, l.userID, channel, evt.Text)
	return nil
}

// match applies the forwarding policy. The event's chat must have a public
// username, be registered, and have this listener's own user among its
// subscribers; other subscribers of the same channel are never notified from
// this account's view.
func (l *Listener) match(evt ChannelEvent) (string, bool) {
	channel := NormalizeChannel(evt.ChatUsername)
	if channel == "" {
		return "", false
	}
	if !l.subs.IsSubscribed(channel, l.userID) {
		return "", false
	}
	return channel, true
}
