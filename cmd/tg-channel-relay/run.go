// Copyright 2024-2026 Aiku AI

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/aiku/tg-channel-relay/pkg/relay"
	"github.com/aiku/tg-channel-relay/pkg/relay/botapi"
	"github.com/aiku/tg-channel-relay/pkg/relay/mtproto"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	var configPath, legacyPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, legacyPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	cmd.Flags().StringVar(&legacyPath, "legacy-config", "", "path to a config.txt holding bot_token@app_id@app_hash")
	cmd.MarkFlagsMutuallyExclusive("config", "legacy-config")
	return cmd
}

func loadConfig(configPath, legacyPath string) (*relay.Config, error) {
	var (
		cfg *relay.Config
		err error
	)
	if legacyPath != "" {
		data, readErr := os.ReadFile(legacyPath)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read legacy config: %w", readErr)
		}
		cfg, err = relay.ParseLegacyConfig(string(data))
	} else {
		cfg, err = relay.LoadConfig(configPath)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *relay.Config) error {
	log, err := cfg.CompileLogger()
	if err != nil {
		return err
	}
	log.Info().Str("version", Tag).Str("commit", Commit).Msg("Starting tg-channel-relay")

	provider, err := mtproto.NewProvider(cfg.AppID, cfg.AppHash, *log)
	if err != nil {
		return err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to connect bot: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("Bot authorized")

	sender := botapi.NewSender(bot)
	messages := cfg.Messages()
	orch := relay.NewOrchestrator(relay.OrchestratorParams{
		Provider:       provider,
		Sender:         sender,
		Messages:       messages,
		Deliverer:      relay.NewDispatcher(sender, messages, cfg.DeliveryLimiter(), *log),
		PairingTimeout: cfg.PairingTimeoutDuration(),
		RestartPolicy:  cfg.RestartPolicy(),
		Log:            *log,
	})
	defer orch.Stop()

	if cfg.AdminAPIAddr != "" {
		srv := orch.NewAdminServer(cfg.AdminAPIAddr)
		go func() {
			log.Info().Str("addr", cfg.AdminAPIAddr).Msg("Admin API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Admin API failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to shut down admin API")
			}
		}()
	}

	botapi.NewHandler(sender, orch, relay.ButtonsFor(cfg.Language), *log).Run(ctx, bot)
	log.Info().Msg("Shutting down")
	return nil
}
