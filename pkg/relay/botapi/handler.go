// Copyright 2024-2026 Aiku AI

package botapi

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/aiku/tg-channel-relay/pkg/relay"
	"github.com/aiku/tg-channel-relay/pkg/relay/trigger"
)

// UpdateSource is the subset of *tgbotapi.BotAPI used for long polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// pollTimeout is the long-poll timeout in seconds.
const pollTimeout = 30

// Handler routes inbound bot messages to the orchestrator and answers them.
type Handler struct {
	sender   *Sender
	orch     *relay.Orchestrator
	parser   *trigger.Parser
	keyboard tgbotapi.ReplyKeyboardMarkup
	log      zerolog.Logger

	wg sync.WaitGroup
}

// NewHandler creates a handler. buttons selects the menu labels shown to
// users; the parser still accepts the labels of every language.
func NewHandler(sender *Sender, orch *relay.Orchestrator, buttons relay.Buttons, log zerolog.Logger) *Handler {
	return &Handler{
		sender:   sender,
		orch:     orch,
		parser:   trigger.Default(),
		keyboard: MainKeyboard(buttons),
		log:      log.With().Str("component", "bot").Logger(),
	}
}

// Run polls for updates until ctx is done, handling each one in its own
// goroutine, and waits for in-flight handlers before returning.
func (h *Handler) Run(ctx context.Context, source UpdateSource) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := source.GetUpdatesChan(cfg)
	defer h.wg.Wait()

	h.log.Info().Msg("Polling bot updates")
	for {
		select {
		case <-ctx.Done():
			source.StopReceivingUpdates()
			h.log.Info().Msg("Stopped polling bot updates")
			return
		case update, ok := <-updates:
			if !ok {
				h.log.Warn().Msg("Update channel closed")
				return
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes a single update. Panics are recovered and logged.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error().Any("panic", p).Int("update_id", update.UpdateID).Msg("Panic while handling update")
		}
	}()
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	var replyTo string
	if msg.ReplyToMessage != nil {
		replyTo = msg.ReplyToMessage.Text
	}
	t := h.parser.Parse(msg.Text, replyTo)
	if t.Kind == trigger.None {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID
	log := h.log.With().Int64("user_id", userID).Stringer("trigger", t.Kind).Logger()
	log.Debug().Msg("Handling trigger")

	messages := h.orch.Messages()
	var out tgbotapi.Chattable
	switch t.Kind {
	case trigger.Start, trigger.Help:
		reply := tgbotapi.NewMessage(chatID, messages.Welcome)
		reply.ReplyMarkup = h.keyboard
		out = reply
	case trigger.Authenticate:
		h.sendPairing(ctx, chatID, h.orch.Authenticate(ctx, userID), log)
		return
	case trigger.PromptAdd, trigger.PromptRemove:
		if denied, ok := h.orch.RequireAuth(userID); !ok {
			out = tgbotapi.NewMessage(chatID, denied.Text)
			break
		}
		text := messages.PromptAdd
		if t.Kind == trigger.PromptRemove {
			text = messages.PromptRemove
		}
		reply := tgbotapi.NewMessage(chatID, text)
		reply.ReplyMarkup = promptMarkup()
		out = reply
	case trigger.ListChannels:
		out = tgbotapi.NewMessage(chatID, h.orch.ListChannels(ctx, userID).Text)
	case trigger.Subscribe:
		out = tgbotapi.NewMessage(chatID, h.orch.Subscribe(ctx, userID, t.Channel).Text)
	case trigger.Unsubscribe:
		out = tgbotapi.NewMessage(chatID, h.orch.Unsubscribe(ctx, userID, t.Channel).Text)
	case trigger.MissingContext:
		out = tgbotapi.NewMessage(chatID, messages.MissingContext)
	default:
		return
	}
	if err := h.sender.send(out); err != nil {
		log.Error().Err(err).Msg("Failed to send reply")
	}
}

func (h *Handler) sendPairing(ctx context.Context, chatID int64, reply relay.Reply, log zerolog.Logger) {
	if reply.PairingURL == "" {
		if err := h.sender.send(tgbotapi.NewMessage(chatID, reply.Text)); err != nil {
			log.Error().Err(err).Msg("Failed to send reply")
		}
		return
	}
	png, err := RenderQR(reply.PairingURL)
	if err == nil {
		if err = h.sender.send(pairingPhoto(chatID, png, reply.Text)); err == nil {
			return
		}
	}
	log.Warn().Err(err).Msg("Failed to send QR code, sending link instead")
	if ctx.Err() != nil {
		return
	}
	if err := h.sender.send(pairingFallback(chatID, reply.PairingURL, reply.Text)); err != nil {
		log.Error().Err(err).Msg("Failed to send pairing link")
	}
}
