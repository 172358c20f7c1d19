// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPairingTimeout is how long a pairing code stays valid.
const DefaultPairingTimeout = 60 * time.Second

// PairingState is the lifecycle state of a pairing session.
type PairingState int

const (
	PairingPending PairingState = iota
	PairingSignedIn
	PairingExpired
	PairingDenied
	PairingErrored
)

func (s PairingState) String() string {
	switch s {
	case PairingPending:
		return "pending"
	case PairingSignedIn:
		return "signed_in"
	case PairingExpired:
		return "expired"
	case PairingDenied:
		return "denied"
	case PairingErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// PairingSession is one user's in-flight pairing. It is owned by the
// PairingManager and removed on its terminal transition.
type PairingSession struct {
	ID        string
	UserID    UserID
	URL       string
	StartedAt time.Time
	Deadline  time.Time

	handshake  Handshake
	finishOnce sync.Once
}

// PairingManager runs the device-pairing handshake per user.
type PairingManager struct {
	provider AccountProvider
	creds    *CredentialRegistry
	timeout  time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	active map[UserID]*PairingSession
}

// NewPairingManager creates a manager. A non-positive timeout selects
// DefaultPairingTimeout.
func NewPairingManager(provider AccountProvider, creds *CredentialRegistry, timeout time.Duration, log zerolog.Logger) *PairingManager {
	if timeout <= 0 {
		timeout = DefaultPairingTimeout
	}
	return &PairingManager{
		provider: provider,
		creds:    creds,
		timeout:  timeout,
		log:      log.With().Str("component", "pairing").Logger(),
		active:   make(map[UserID]*PairingSession),
	}
}

// Initiate starts a pairing for the user and returns the pending session.
// It fails with ErrConflict while another pairing for the same user is
// being opened or is pending.
func (pm *PairingManager) Initiate(ctx context.Context, userID UserID) (*PairingSession, error) {
	sess := &PairingSession{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	pm.mu.Lock()
	if _, exists := pm.active[userID]; exists {
		pm.mu.Unlock()
		return nil, ErrConflict
	}
	// Reserve the slot before the connection is opened so concurrent
	// callers are rejected rather than racing.
	pm.active[userID] = sess
	pm.mu.Unlock()

	// Opening the connection is bounded by the pairing timeout. The handshake
	// must not tie its own lifetime to beginCtx.
	beginCtx, cancel := context.WithTimeout(ctx, pm.timeout)
	defer cancel()
	hs, err := pm.provider.BeginPairing(beginCtx)
	if err != nil {
		pm.release(sess)
		pm.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to open pairing connection")
		return nil, &ProviderError{Op: "begin pairing", Err: err}
	}

	now := time.Now()
	pm.mu.Lock()
	sess.handshake = hs
	sess.URL = hs.URL()
	sess.StartedAt = now
	sess.Deadline = now.Add(pm.timeout)
	pm.mu.Unlock()

	pm.log.Info().
		Int64("user_id", userID).
		Str("pairing_id", sess.ID).
		Time("deadline", sess.Deadline).
		Msg("Pairing started")
	return sess, nil
}

// AwaitOutcome blocks until the user's pending pairing reaches a terminal
// state. On PairingSignedIn the credential is already stored. The session is
// removed and its connection closed on every outcome.
func (pm *PairingManager) AwaitOutcome(ctx context.Context, userID UserID) (PairingState, error) {
	pm.mu.Lock()
	sess, ok := pm.active[userID]
	ready := ok && sess.handshake != nil
	pm.mu.Unlock()
	if !ready {
		return PairingErrored, ErrNoPairing
	}
	defer pm.finish(sess)

	waitCtx, cancel := context.WithDeadline(ctx, sess.Deadline)
	defer cancel()

	log := pm.log.With().Int64("user_id", userID).Str("pairing_id", sess.ID).Logger()
	credential, err := sess.handshake.Wait(waitCtx)
	switch {
	case err == nil && credential != "":
		pm.creds.Set(userID, credential)
		log.Info().Msg("Pairing signed in")
		return PairingSignedIn, nil
	case err == nil:
		log.Error().Msg("Pairing completed without a credential")
		return PairingErrored, &ProviderError{Op: "await pairing", Err: errors.New("empty session credential")}
	case errors.Is(err, ErrHandshakeDenied):
		log.Info().Msg("Pairing denied")
		return PairingDenied, ErrPairingDenied
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		log.Info().Msg("Pairing expired")
		return PairingExpired, ErrPairingExpired
	default:
		log.Error().Err(err).Msg("Pairing failed")
		return PairingErrored, &ProviderError{Op: "await pairing", Err: err}
	}
}

// finish is the single terminal path of a session: it closes the transient
// connection and removes the entry, once.
func (pm *PairingManager) finish(sess *PairingSession) {
	sess.finishOnce.Do(func() {
		if sess.handshake != nil {
			if err := sess.handshake.Close(); err != nil {
				pm.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("Failed to close pairing connection")
			}
		}
		pm.release(sess)
	})
}

func (pm *PairingManager) release(sess *PairingSession) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.active[sess.UserID] == sess {
		delete(pm.active, sess.UserID)
	}
}

// Active reports whether the user has a pairing in progress.
func (pm *PairingManager) Active(userID UserID) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	_, ok := pm.active[userID]
	return ok
}

// Pending returns the number of pairings in progress.
func (pm *PairingManager) Pending() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.active)
}

// Abort finishes every pending session without waiting on it. Used on
// shutdown for sessions whose waiter never started.
func (pm *PairingManager) Abort() {
	pm.mu.Lock()
	sessions := make([]*PairingSession, 0, len(pm.active))
	for _, sess := range pm.active {
		if sess.handshake != nil {
			sessions = append(sessions, sess)
		}
	}
	pm.mu.Unlock()
	for _, sess := range sessions {
		pm.finish(sess)
	}
}
