// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deliverer hands a matched post to its user. Implementations must not
// report failures back to the caller.
type Deliverer interface {
	Deliver(ctx context.Context, userID UserID, channel, text string)
}

// Dispatcher formats forwarded posts and sends them through the bot.
type Dispatcher struct {
	sender   MessageSender
	messages *Messages
	limiter  *rate.Limiter
	log      zerolog.Logger
}

var _ Deliverer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. A nil limiter disables rate limiting.
func NewDispatcher(sender MessageSender, messages *Messages, limiter *rate.Limiter, log zerolog.Logger) *Dispatcher {
	if messages == nil {
		messages = MessagesFor(DefaultLanguage)
	}
	return &Dispatcher{
		sender:   sender,
		messages: messages,
		limiter:  limiter,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Deliver sends the formatted post. Errors are logged and dropped.
func (d *Dispatcher) Deliver(ctx context.Context, userID UserID, channel, text string) {
	log := d.log.With().Int64("user_id", userID).Str("channel", channel).Logger()
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("Dropping post, rate limiter wait aborted")
			return
		}
	}
	if err := d.sender.SendText(ctx, userID, d.messages.FormatPost(channel, text)); err != nil {
		log.Error().Err(err).Msg("Failed to deliver post")
		return
	}
	log.Debug().Msg("Delivered post")
}
