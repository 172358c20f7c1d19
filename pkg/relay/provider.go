// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"time"
)

// AccountProvider opens connections to the account-session protocol.
type AccountProvider interface {
	// BeginPairing opens a transient connection and requests a pairing token.
	// The returned Handshake owns that connection until Close.
	BeginPairing(ctx context.Context) (Handshake, error)
	// Connect opens a long-lived connection authorized by a credential
	// previously produced by a Handshake.
	Connect(ctx context.Context, credential string) (AccountConn, error)
}

// Handshake is one in-flight device-pairing attempt.
type Handshake interface {
	// URL is the pairing payload to be rendered for the user.
	URL() string
	// Wait blocks until the account confirms the pairing, refuses it
	// (ErrHandshakeDenied), the connection fails, or ctx is done. On
	// success it returns the reusable session credential.
	Wait(ctx context.Context) (string, error)
	// Close releases the transient connection. It must be safe to call
	// more than once.
	Close() error
}

// AccountConn is a long-lived connection that streams new-message events
// for every chat visible to the account.
type AccountConn interface {
	// Run calls handle for each event, in arrival order, until ctx is done
	// or the connection fails. Errors returned by handle do not stop Run.
	Run(ctx context.Context, handle func(ctx context.Context, evt ChannelEvent) error) error
	Close() error
}

// ChannelEvent is a new message observed by an account connection.
type ChannelEvent struct {
	// ChatUsername is the public username of the originating chat, or empty
	// when the chat has none.
	ChatUsername string
	MessageID    int
	Text         string
	Date         time.Time
}

// MessageSender pushes a text message to a user over the bot-facing
// delivery channel.
type MessageSender interface {
	SendText(ctx context.Context, userID UserID, text string) error
}
