// Copyright 2025 Omnilock Labs
//
// Dashboard API Handlers

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omnilock/escrow-relayer/pkg/database"
	"github.com/omnilock/escrow-relayer/pkg/event"
	"github.com/omnilock/escrow-relayer/pkg/proof"
)

// TransactionListResponse wraps the full message list
type TransactionListResponse struct {
	Transactions []*database.Message `json:"transactions"`
	Total        int64               `json:"total"`
}

// TransactionDetailResponse is one message plus its lifecycle and proof
type TransactionDetailResponse struct {
	Transaction *database.Message      `json:"transaction"`
	Events      []event.LifecycleEvent `json:"events"`
	Proof       *proof.Bundle          `json:"proof"`
}

// SimulationRequest controls the traffic generator duration
type SimulationRequest struct {
	DurationMinutes uint64 `json:"duration_minutes"`
}

// SimulationStatus reports the traffic generator state
type SimulationStatus struct {
	Running          bool  `json:"running"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListTransactions handles GET /transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	messages, err := s.messages.GetAll(r.Context())
	if err != nil {
		s.logger.Printf("Error listing transactions: %v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list transactions")
		return
	}

	s.writeJSON(w, http.StatusOK, TransactionListResponse{
		Transactions: messages,
		Total:        int64(len(messages)),
	})
}

// handleGetTransaction handles GET /transactions/{nonce}
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/transactions/")
	nonce, err := strconv.ParseUint(strings.TrimSuffix(path, "/"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_NONCE", "Nonce must be an unsigned integer")
		return
	}

	ctx := r.Context()
	msg, err := s.messages.GetByNonce(ctx, nonce)
	if errors.Is(err, database.ErrMessageNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "No transaction with that nonce")
		return
	}
	if err != nil {
		s.logger.Printf("Error getting transaction: %v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get transaction")
		return
	}

	events, err := s.events.ListByNonce(ctx, nonce)
	if err != nil {
		s.logger.Printf("Error listing events: %v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events")
		return
	}

	// Return the stored proof bundle so the API serves stable hashes
	var bundle *proof.Bundle
	if msg.ProofJSON.Valid {
		var parsed proof.Bundle
		if err := json.Unmarshal([]byte(msg.ProofJSON.String), &parsed); err == nil {
			bundle = &parsed
		}
	}

	s.writeJSON(w, http.StatusOK, TransactionDetailResponse{
		Transaction: msg,
		Events:      events,
		Proof:       bundle,
	})
}

// handleMetrics handles GET /metrics (JSON aggregate counters)
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	metrics, err := s.messages.Metrics(r.Context())
	if err != nil {
		s.logger.Printf("Error computing metrics: %v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute metrics")
		return
	}

	s.writeJSON(w, http.StatusOK, metrics)
}

// handlePause handles POST /control/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	s.control.Pause()
	s.logger.Println("Processor paused")
	s.writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// handleResume handles POST /control/resume
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	s.control.Resume()
	s.logger.Println("Processor resumed")
	s.writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// handleStartSimulation handles POST /control/start-simulation
func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	req := SimulationRequest{DurationMinutes: 60}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be JSON")
			return
		}
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = 60
	}

	s.control.Resume()
	s.control.StartSimulation(time.Duration(req.DurationMinutes) * time.Minute)
	s.logger.Printf("Simulation started for %d minutes", req.DurationMinutes)

	s.writeJSON(w, http.StatusOK, s.simulationStatus())
}

// handleStopSimulation handles POST /control/stop-simulation
func (s *Server) handleStopSimulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	s.control.StopSimulation()
	s.logger.Println("Simulation stopped")
	s.writeJSON(w, http.StatusOK, s.simulationStatus())
}

// handleSimulationStatus handles GET /control/simulation-status
func (s *Server) handleSimulationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.simulationStatus())
}

func (s *Server) simulationStatus() SimulationStatus {
	status := SimulationStatus{Running: s.control.SimulationRunning()}
	if deadline := s.control.SimulationDeadline(); deadline > 0 {
		if remaining := deadline - time.Now().Unix(); remaining > 0 {
			status.RemainingSeconds = remaining
		}
	}
	return status
}

// handleClearData handles POST /control/clear-data (administrative reset)
func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	if err := s.events.ClearAll(r.Context()); err != nil {
		s.logger.Printf("Error clearing data: %v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to clear data")
		return
	}

	s.logger.Println("All messages and events cleared")
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
