// Copyright 2024-2026 Aiku AI

// Command tg-channel-relay forwards new posts from Telegram channels to bot
// users. Users link their own account by scanning a QR code, pick channels by
// @username, and receive each new post from those channels through the bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tg-channel-relay",
		Short:         "Relay Telegram channel posts to bot users",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(runCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	return fmt.Sprintf("tg-channel-relay %s (commit %s, built %s)", Tag, Commit, BuildTime)
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
