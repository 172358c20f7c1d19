// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Reply is the orchestrator's answer to a trigger. PairingURL is set only
// when a pairing started and must be rendered for the user along with Text.
type Reply struct {
	Text       string
	PairingURL string
}

// Status is a snapshot of the relay state for the admin API.
type Status struct {
	PendingPairings int              `json:"pending_pairings"`
	Credentials     int              `json:"credentials"`
	Channels        int              `json:"channels"`
	Subscriptions   []ChannelStatus  `json:"subscriptions"`
	Listeners       []ListenerStatus `json:"listeners"`
}

// ChannelStatus is the subscriber count of one channel entry.
type ChannelStatus struct {
	Channel     string `json:"channel"`
	Subscribers int    `json:"subscribers"`
}

// Orchestrator routes user triggers to the core components and resolves
// every outcome into a reply.
type Orchestrator struct {
	creds      *CredentialRegistry
	subs       *SubscriptionRegistry
	pairing    *PairingManager
	supervisor *ListenerSupervisor
	sender     MessageSender
	messages   *Messages
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OrchestratorParams bundles the orchestrator's collaborators.
type OrchestratorParams struct {
	Provider       AccountProvider
	Sender         MessageSender
	Messages       *Messages
	Deliverer      Deliverer
	PairingTimeout time.Duration
	RestartPolicy  RestartPolicy
	Log            zerolog.Logger
}

// NewOrchestrator wires the registries, pairing manager and listener
// supervisor. Background work runs until Stop. When params.Deliverer is nil
// a Dispatcher without rate limiting is created on params.Sender.
func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	messages := params.Messages
	if messages == nil {
		messages = MessagesFor(DefaultLanguage)
	}
	deliverer := params.Deliverer
	if deliverer == nil {
		deliverer = NewDispatcher(params.Sender, messages, nil, params.Log)
	}
	creds := NewCredentialRegistry()
	subs := NewSubscriptionRegistry(creds)
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		creds:      creds,
		subs:       subs,
		pairing:    NewPairingManager(params.Provider, creds, params.PairingTimeout, params.Log),
		supervisor: NewListenerSupervisor(params.Provider, subs, deliverer, params.RestartPolicy, params.Log),
		sender:     params.Sender,
		messages:   messages,
		log:        params.Log.With().Str("component", "orchestrator").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Stop cancels pending pairings and listeners and waits for them.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
	o.pairing.Abort()
	o.supervisor.Stop()
}

// Messages returns the reply table in use.
func (o *Orchestrator) Messages() *Messages {
	return o.messages
}

// Credentials exposes the credential registry.
func (o *Orchestrator) Credentials() *CredentialRegistry {
	return o.creds
}

// Subscriptions exposes the subscription registry.
func (o *Orchestrator) Subscriptions() *SubscriptionRegistry {
	return o.subs
}

// Supervisor exposes the listener supervisor.
func (o *Orchestrator) Supervisor() *ListenerSupervisor {
	return o.supervisor
}

// Authenticate starts a pairing. The returned reply carries the pairing URL;
// the outcome is sent to the user asynchronously once the handshake ends.
func (o *Orchestrator) Authenticate(ctx context.Context, userID UserID) Reply {
	sess, err := o.pairing.Initiate(ctx, userID)
	switch {
	case errors.Is(err, ErrConflict):
		return Reply{Text: o.messages.PairingActive}
	case err != nil:
		return Reply{Text: o.messages.PairingFailed}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.awaitPairing(o.ctx, userID)
	}()
	return Reply{Text: o.messages.PairingInstructions, PairingURL: sess.URL}
}

func (o *Orchestrator) awaitPairing(ctx context.Context, userID UserID) {
	state, err := o.pairing.AwaitOutcome(ctx, userID)
	var text string
	switch state {
	case PairingSignedIn:
		text = o.messages.PairingSuccess
		if cred, ok := o.creds.Get(userID); ok {
			if _, started := o.supervisor.Start(ctx, userID, cred); !started {
				o.log.Debug().Int64("user_id", userID).Msg("Listener already running")
			}
		}
	case PairingExpired:
		text = o.messages.PairingExpired
	case PairingDenied:
		text = o.messages.PairingDenied
	default:
		if ctx.Err() != nil {
			return
		}
		o.log.Warn().Err(err).Int64("user_id", userID).Msg("Pairing ended with error")
		text = o.messages.PairingFailed
	}
	if err := o.sender.SendText(ctx, userID, text); err != nil {
		o.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to send pairing outcome")
	}
}

// Subscribe handles an "add channel" trigger.
func (o *Orchestrator) Subscribe(_ context.Context, userID UserID, channel string) Reply {
	res, err := o.subs.Subscribe(userID, channel)
	if err != nil {
		return Reply{Text: o.errorText(err)}
	}
	channel = NormalizeChannel(channel)
	o.log.Info().Int64("user_id", userID).Str("channel", channel).Bool("new", res == Subscribed).Msg("Subscribe")
	if res == AlreadySubscribed {
		return Reply{Text: o.messages.AlreadySubscribed}
	}
	return Reply{Text: fmt.Sprintf(o.messages.Subscribed, channel)}
}

// Unsubscribe handles an "unsubscribe" trigger.
func (o *Orchestrator) Unsubscribe(_ context.Context, userID UserID, channel string) Reply {
	res, err := o.subs.Unsubscribe(userID, channel)
	if err != nil {
		return Reply{Text: o.errorText(err)}
	}
	channel = NormalizeChannel(channel)
	o.log.Info().Int64("user_id", userID).Str("channel", channel).Bool("removed", res == Unsubscribed).Msg("Unsubscribe")
	if res == NotSubscribed {
		return Reply{Text: o.messages.NotSubscribed}
	}
	return Reply{Text: fmt.Sprintf(o.messages.Unsubscribed, channel)}
}

// ListChannels handles a "list channels" trigger.
func (o *Orchestrator) ListChannels(_ context.Context, userID UserID) Reply {
	return Reply{Text: o.messages.ChannelList(o.subs.ListSubscriptions(userID))}
}

// RequireAuth returns the auth-required reply for users without a
// credential, for prompts that precede a subscription action.
func (o *Orchestrator) RequireAuth(userID UserID) (Reply, bool) {
	if o.creds.Has(userID) {
		return Reply{}, true
	}
	return Reply{Text: o.messages.AuthRequired}, false
}

// Status returns a snapshot for the admin API.
func (o *Orchestrator) Status() Status {
	return Status{
		PendingPairings: o.pairing.Pending(),
		Credentials:     o.creds.Len(),
		Channels:        o.subs.ChannelCount(),
		Subscriptions:   o.channelStatuses(),
		Listeners:       o.supervisor.Statuses(),
	}
}

func (o *Orchestrator) channelStatuses() []ChannelStatus {
	channels := o.subs.Channels()
	out := make([]ChannelStatus, 0, len(channels))
	for _, channel := range channels {
		users, ok := o.subs.Subscribers(channel)
		if !ok {
			continue
		}
		out = append(out, ChannelStatus{Channel: channel, Subscribers: len(users)})
	}
	return out
}

func (o *Orchestrator) errorText(err error) string {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return o.messages.AuthRequired
	case errors.Is(err, ErrInvalidChannel):
		return o.messages.InvalidChannel
	default:
		o.log.Error().Err(err).Msg("Unexpected error")
		return o.messages.PairingFailed
	}
}
