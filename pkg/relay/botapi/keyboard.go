// Copyright 2024-2026 Aiku AI

package botapi

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// MainKeyboard builds the persistent menu shown after /start.
func MainKeyboard(b relay.Buttons) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(b.Authenticate),
			tgbotapi.NewKeyboardButton(b.AddChannel),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(b.ListChannels),
			tgbotapi.NewKeyboardButton(b.Unsubscribe),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// promptMarkup asks the client to open a reply to the prompt, so the answer
// carries the prompt text as its reply context.
func promptMarkup() tgbotapi.ForceReply {
	return tgbotapi.ForceReply{ForceReply: true, Selective: true}
}
