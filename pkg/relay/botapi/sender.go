// Copyright 2024-2026 Aiku AI

// Package botapi connects the relay to the Telegram Bot API: it delivers
// outbound texts and turns inbound updates into orchestrator calls.
package botapi

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// API is the subset of *tgbotapi.BotAPI used for sending.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers plain texts to users' private chats with the bot.
type Sender struct {
	api API
}

var _ relay.MessageSender = (*Sender)(nil)

// NewSender wraps a bot client.
func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// SendText sends text to the private chat of userID.
func (s *Sender) SendText(ctx context.Context, userID relay.UserID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(tgbotapi.NewMessage(userID, text))
}

func (s *Sender) send(c tgbotapi.Chattable) error {
	if _, err := s.api.Send(c); err != nil {
		return fmt.Errorf("bot api send: %w", err)
	}
	return nil
}
