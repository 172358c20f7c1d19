// Copyright 2024-2026 Aiku AI

package relay

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleStatus is an HTTP handler for GET /api/status.
func (o *Orchestrator) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(o.Status()); err != nil {
		o.log.Warn().Err(err).Msg("Failed to write status response")
	}
}

// NewAdminServer builds the admin HTTP server. The caller starts and shuts
// it down.
func (o *Orchestrator) NewAdminServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", o.HandleStatus)
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
