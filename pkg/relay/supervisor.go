// Copyright 2024-2026 Aiku AI

package relay

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ListenerState is the observable status of a supervised listener.
type ListenerState int

const (
	ListenerRunning ListenerState = iota
	ListenerStopped
	ListenerFailed
)

func (s ListenerState) String() string {
	switch s {
	case ListenerRunning:
		return "running"
	case ListenerStopped:
		return "stopped"
	case ListenerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RestartPolicy decides whether a terminated listener is started again.
// attempt counts restarts already performed for the listener.
type RestartPolicy interface {
	Next(attempt int, err error) (delay time.Duration, restart bool)
}

// NoRestart leaves a terminated listener terminated.
type NoRestart struct{}

func (NoRestart) Next(int, error) (time.Duration, bool) { return 0, false }

// BoundedRestart restarts up to MaxAttempts times, waiting Backoff times the
// attempt number before each restart.
type BoundedRestart struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (b BoundedRestart) Next(attempt int, _ error) (time.Duration, bool) {
	if attempt >= b.MaxAttempts {
		return 0, false
	}
	return b.Backoff * time.Duration(attempt+1), true
}

// ListenerHandle is the supervisor's record of one user's listener.
type ListenerHandle struct {
	ID        string
	UserID    UserID
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    ListenerState
	err      error
	restarts int
}

// State returns the current state.
func (h *ListenerHandle) State() ListenerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error that terminated the listener, if any.
func (h *ListenerHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Restarts returns how many times the listener was restarted.
func (h *ListenerHandle) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// Done is closed once the listener has terminated for good.
func (h *ListenerHandle) Done() <-chan struct{} {
	return h.done
}

func (h *ListenerHandle) set(state ListenerState, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
	h.err = err
}

// ListenerStatus is a point-in-time view of a handle.
type ListenerStatus struct {
	ID        string    `json:"id"`
	UserID    UserID    `json:"user_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Restarts  int       `json:"restarts"`
	Error     string    `json:"error,omitempty"`
}

// ListenerSupervisor runs at most one listener per user and records how each
// one ended.
type ListenerSupervisor struct {
	provider  AccountProvider
	subs      *SubscriptionRegistry
	deliverer Deliverer
	policy    RestartPolicy
	log       zerolog.Logger

	mu      sync.Mutex
	handles map[UserID]*ListenerHandle
	wg      sync.WaitGroup
}

// NewListenerSupervisor creates a supervisor. A nil policy means NoRestart.
func NewListenerSupervisor(provider AccountProvider, subs *SubscriptionRegistry, deliverer Deliverer, policy RestartPolicy, log zerolog.Logger) *ListenerSupervisor {
	if policy == nil {
		policy = NoRestart{}
	}
	return &ListenerSupervisor{
		provider:  provider,
		subs:      subs,
		deliverer: deliverer,
		policy:    policy,
		log:       log,
		handles:   make(map[UserID]*ListenerHandle),
	}
}

// Start launches a listener for the user unless one is already running, in
// which case the running handle is returned with started=false.
func (s *ListenerSupervisor) Start(ctx context.Context, userID UserID, credential string) (handle *ListenerHandle, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[userID]; ok && h.State() == ListenerRunning {
		return h, false
	}
	lctx, cancel := context.WithCancel(ctx)
	h := &ListenerHandle{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     ListenerRunning,
	}
	s.handles[userID] = h
	l := NewListener(userID, credential, s.provider, s.subs, s.deliverer, s.log)
	s.wg.Add(1)
	go s.supervise(lctx, h, l)
	return h, true
}

func (s *ListenerSupervisor) supervise(ctx context.Context, h *ListenerHandle, l *Listener) {
	defer s.wg.Done()
	defer close(h.done)
	defer h.cancel()

	log := s.log.With().Str("component", "supervisor").Int64("user_id", h.UserID).Str("listener_id", h.ID).Logger()
	for attempt := 0; ; {
		err := l.Run(ctx)
		if ctx.Err() != nil {
			h.set(ListenerStopped, nil)
			log.Info().Msg("Listener stopped")
			return
		}
		log.Error().Err(err).Msg("Listener terminated")
		delay, restart := s.policy.Next(attempt, err)
		if !restart {
			h.set(ListenerFailed, err)
			return
		}
		attempt++
		h.mu.Lock()
		h.restarts = attempt
		h.err = err
		h.mu.Unlock()
		log.Info().Dur("delay", delay).Int("attempt", attempt).Msg("Restarting listener")
		select {
		case <-ctx.Done():
			h.set(ListenerStopped, err)
			return
		case <-time.After(delay):
		}
	}
}

// Get returns the user's handle, running or terminated.
func (s *ListenerSupervisor) Get(userID UserID) (*ListenerHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[userID]
	return h, ok
}

// Statuses returns a snapshot of every handle, ordered by user ID.
func (s *ListenerSupervisor) Statuses() []ListenerStatus {
	s.mu.Lock()
	handles := make([]*ListenerHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	out := make([]ListenerStatus, 0, len(handles))
	for _, h := range handles {
		st := ListenerStatus{
			ID:        h.ID,
			UserID:    h.UserID,
			State:     h.State().String(),
			StartedAt: h.StartedAt,
			Restarts:  h.Restarts(),
		}
		if err := h.Err(); err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b ListenerStatus) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

// Stop cancels every listener and waits for them to return.
func (s *ListenerSupervisor) Stop() {
	s.mu.Lock()
	for _, h := range s.handles {
		h.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
