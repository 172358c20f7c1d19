// Copyright 2024-2026 Aiku AI

package botapi

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/skip2/go-qrcode"
)

// qrSize is the edge length of the rendered code in pixels.
const qrSize = 256

// RenderQR encodes a pairing URL as a PNG QR code.
func RenderQR(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty pairing url")
	}
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}

// pairingPhoto builds the photo message carrying the QR code, with the
// instructions as caption.
func pairingPhoto(chatID int64, png []byte, caption string) tgbotapi.PhotoConfig {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "login-qr.png", Bytes: png})
	photo.Caption = caption
	return photo
}

// pairingFallback is sent when the QR image cannot be delivered. The URL can
// be opened directly on a device where Telegram is signed in.
func pairingFallback(chatID int64, url, instructions string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, instructions+"\n\n"+url)
	msg.DisableWebPagePreview = true
	return msg
}
