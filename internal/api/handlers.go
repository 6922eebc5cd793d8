/*
Package api
File: handlers.go
Description:
    Read-only HTTP handlers over the Server's published state. Every handler
    takes DataLock for reading, so the animation loop never hands out a
    half-updated view.
*/

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/everforgeworks/outbreak/internal/world"
)

// WorldResponse describes the simulated world.
type WorldResponse struct {
	Config    world.Config `json:"config"`
	BatchSize int          `json:"batch_size"` // effective batch size after defaults and capping
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encode response: %v", err)
	}
}

func onlyGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleGetWorld returns the configuration the run was started with.
func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	writeJSON(w, WorldResponse{Config: s.sim.Population().Config(), BatchSize: s.sim.BatchSize()})
}

// handleGetSnapshot returns positions and statuses after the latest step.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	s.DataLock.RLock()
	defer s.DataLock.RUnlock()
	writeJSON(w, s.latest)
}

// handleGetHistory returns the count table so far.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	writeJSON(w, s.History())
}

// handleGetSummary returns the final summary, or 404 while the run is live.
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if !onlyGet(w, r) {
		return
	}
	s.DataLock.RLock()
	defer s.DataLock.RUnlock()
	if s.summary == nil {
		http.Error(w, "Run still in progress", http.StatusNotFound)
		return
	}
	writeJSON(w, s.summary)
}
