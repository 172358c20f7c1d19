// Copyright 2024-2026 Aiku AI

package relay

import (
	"slices"
	"sync"

	"go.mau.fi/util/exsync"
)

// SubscribeResult is the non-error outcome of a subscribe request.
type SubscribeResult int

const (
	Subscribed SubscribeResult = iota
	AlreadySubscribed
)

// UnsubscribeResult is the non-error outcome of an unsubscribe request.
type UnsubscribeResult int

const (
	Unsubscribed UnsubscribeResult = iota
	NotSubscribed
)

// SubscriptionRegistry maps channel usernames to the set of subscribed users.
//
// The outer map is only write-locked to allocate a new channel entry. Each
// entry is its own synchronized set, so changes to different channels do not
// contend and a reader never observes a partially applied change. Entries are
// not pruned when their last subscriber leaves.
type SubscriptionRegistry struct {
	creds *CredentialRegistry

	mu       sync.RWMutex
	channels map[string]*exsync.Set[UserID]
}

// NewSubscriptionRegistry creates an empty registry that checks the given
// credentials before every mutation.
func NewSubscriptionRegistry(creds *CredentialRegistry) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		creds:    creds,
		channels: make(map[string]*exsync.Set[UserID]),
	}
}

func (r *SubscriptionRegistry) lookup(channel string) *exsync.Set[UserID] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channels[channel]
}

func (r *SubscriptionRegistry) getOrCreate(channel string) *exsync.Set[UserID] {
	if set := r.lookup(channel); set != nil {
		return set
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[channel]
	if !ok {
		set = exsync.NewSet[UserID]()
		r.channels[channel] = set
	}
	return set
}

// Subscribe adds the user to the channel's subscriber set.
func (r *SubscriptionRegistry) Subscribe(userID UserID, channel string) (SubscribeResult, error) {
	if !r.creds.Has(userID) {
		return 0, ErrAuthRequired
	}
	channel = NormalizeChannel(channel)
	if channel == "" {
		return 0, ErrInvalidChannel
	}
	if !r.getOrCreate(channel).Add(userID) {
		return AlreadySubscribed, nil
	}
	return Subscribed, nil
}

// Unsubscribe removes the user from the channel's subscriber set.
func (r *SubscriptionRegistry) Unsubscribe(userID UserID, channel string) (UnsubscribeResult, error) {
	if !r.creds.Has(userID) {
		return 0, ErrAuthRequired
	}
	channel = NormalizeChannel(channel)
	if channel == "" {
		return 0, ErrInvalidChannel
	}
	set := r.lookup(channel)
	if set == nil || !set.Pop(userID) {
		return NotSubscribed, nil
	}
	return Unsubscribed, nil
}

// ListSubscriptions returns the channels the user is subscribed to, sorted.
func (r *SubscriptionRegistry) ListSubscriptions(userID UserID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for channel, set := range r.channels {
		if set.Has(userID) {
			out = append(out, channel)
		}
	}
	slices.Sort(out)
	return out
}

// IsSubscribed reports whether the channel is registered and the user is in
// its subscriber set.
func (r *SubscriptionRegistry) IsSubscribed(channel string, userID UserID) bool {
	set := r.lookup(NormalizeChannel(channel))
	return set != nil && set.Has(userID)
}

// Subscribers returns a copy of the channel's subscriber set and whether the
// channel has an entry at all.
func (r *SubscriptionRegistry) Subscribers(channel string) ([]UserID, bool) {
	set := r.lookup(NormalizeChannel(channel))
	if set == nil {
		return nil, false
	}
	users := set.AsList()
	slices.Sort(users)
	return users, true
}

// Channels returns every allocated channel entry, sorted.
func (r *SubscriptionRegistry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels))
	for channel := range r.channels {
		out = append(out, channel)
	}
	slices.Sort(out)
	return out
}

// ChannelCount returns the number of allocated channel entries.
func (r *SubscriptionRegistry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
