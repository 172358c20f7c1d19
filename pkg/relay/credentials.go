// Copyright 2024-2026 Aiku AI

package relay

import "sync"

// CredentialRegistry holds the reusable account session credential of each
// paired user. It is memory-only; credentials are lost on restart.
type CredentialRegistry struct {
	mu    sync.RWMutex
	creds map[UserID]string
}

// NewCredentialRegistry creates an empty registry.
func NewCredentialRegistry() *CredentialRegistry {
	return &CredentialRegistry{creds: make(map[UserID]string)}
}

// Set stores the credential for a user, replacing any previous one.
func (r *CredentialRegistry) Set(userID UserID, credential string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[userID] = credential
}

// Get returns the stored credential and whether one exists.
func (r *CredentialRegistry) Get(userID UserID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[userID]
	return cred, ok && cred != ""
}

// Has reports whether the user holds a non-empty credential.
func (r *CredentialRegistry) Has(userID UserID) bool {
	_, ok := r.Get(userID)
	return ok
}

// Len returns the number of stored credentials.
func (r *CredentialRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.creds)
}
