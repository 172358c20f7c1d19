// Copyright 2024-2026 Aiku AI

// Package mtproto implements the relay's account-session provider on top of
// the Telegram MTProto client from gotd.
package mtproto

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/aiku/tg-channel-relay/pkg/relay"
)

// Provider opens MTProto connections with one application's credentials.
type Provider struct {
	appID   int
	appHash string
	log     zerolog.Logger
}

var _ relay.AccountProvider = (*Provider)(nil)

// NewProvider creates a provider for the given application credentials.
func NewProvider(appID int, appHash string, log zerolog.Logger) (*Provider, error) {
	if appID == 0 || appHash == "" {
		return nil, errors.New("app_id and app_hash are required")
	}
	return &Provider{
		appID:   appID,
		appHash: appHash,
		log:     log.With().Str("component", "mtproto").Logger(),
	}, nil
}

// BeginPairing starts a QR login on a fresh, unauthorized session and
// returns once the first login token is available.
func (p *Provider) BeginPairing(ctx context.Context) (relay.Handshake, error) {
	storage := &session.StorageMemory{}
	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(p.appID, p.appHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  &dispatcher,
	})
	h, err := startQRHandshake(ctx, client.Run, qrLogin(client, storage, &dispatcher), p.log)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Connect prepares a long-lived connection authorized by a credential from
// a completed pairing. The network connection is opened by Run.
func (p *Provider) Connect(ctx context.Context, credential string) (relay.AccountConn, error) {
	data, err := DecodeCredential(credential)
	if err != nil {
		return nil, err
	}
	storage := &session.StorageMemory{}
	if err := storage.StoreSession(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	c := newConn(p.log)
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		return c.push(ctx, e, u.Message)
	})
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		return c.push(ctx, e, u.Message)
	})
	gaps := updates.New(updates.Config{Handler: &dispatcher})
	client := telegram.NewClient(p.appID, p.appHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  gaps,
	})
	c.run = client.Run
	c.session = func(ctx context.Context) error {
		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to validate session: %w", err)
		}
		c.log.Info().Int64("account_id", self.ID).Msg("Account session connected")
		return gaps.Run(ctx, client.API(), self.ID, updates.AuthOptions{})
	}
	return c, nil
}
