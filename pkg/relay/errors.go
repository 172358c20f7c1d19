// Copyright 2024-2026 Aiku AI

package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a user already has a pending pairing.
	ErrConflict = errors.New("pairing already in progress")
	// ErrAuthRequired is returned for subscription actions by users without
	// a stored credential.
	ErrAuthRequired = errors.New("authentication required")
	// ErrPairingExpired is returned when the pairing deadline elapses.
	ErrPairingExpired = errors.New("pairing code expired")
	// ErrPairingDenied is returned when the account refuses the pairing.
	ErrPairingDenied = errors.New("pairing denied")
	// ErrNoPairing is returned when awaiting a user with no pending pairing.
	ErrNoPairing = errors.New("no pending pairing")
	// ErrInvalidChannel is returned for an empty channel username.
	ErrInvalidChannel = errors.New("invalid channel username")

	// ErrHandshakeDenied is reported by Handshake implementations when the
	// account side explicitly refuses the login.
	ErrHandshakeDenied = errors.New("handshake denied by account")
)

// ProviderError wraps a failure of the account-session protocol.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("account provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
