// Copyright 2024-2026 Aiku AI

// Package relay forwards new channel posts from a user's own Telegram account
// to that user through a bot.
//
// Each user links a full account session with a QR device-pairing handshake
// and subscribes to channels by username. Once paired, a per-user listener
// reads the account's live update stream and forwards posts from channels the
// user subscribed to. The bot itself never reads channel content.
//
// # Core Types
//
// [CredentialRegistry] holds the reusable session credential per user.
//
// [SubscriptionRegistry] maps channel usernames to subscriber sets.
//
// [PairingManager] runs the time-bounded pairing handshake, enforcing at most
// one pending pairing per user and releasing the transient connection on
// every outcome.
//
// [Listener] consumes one user's update stream and applies the ownership
// filter: a post is forwarded only to the listener's own user, and only when
// that user subscribed to the channel. [ListenerSupervisor] owns the running
// listeners and their termination status.
//
// [Dispatcher] formats and sends forwarded posts. [Orchestrator] binds user
// triggers to the components above and turns every outcome into a reply.
//
// # Sub-packages
//
//   - trigger maps raw bot text to triggers.
//   - mtproto implements [AccountProvider] over the MTProto client.
//   - botapi implements [MessageSender] and the inbound update loop over the
//     Bot API.
package relay
