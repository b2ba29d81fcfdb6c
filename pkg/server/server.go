// Copyright 2025 Omnilock Labs
//
// Dashboard API Server
// REST endpoints over the message and event stores plus a WebSocket stream
// of live lifecycle events

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/omnilock/escrow-relayer/pkg/database"
	"github.com/omnilock/escrow-relayer/pkg/event"
	"github.com/omnilock/escrow-relayer/pkg/relayer"
)

// Server exposes the relayer state over HTTP and WebSocket
type Server struct {
	messages *database.MessageRepository
	events   *database.EventRepository
	bus      *event.Bus
	control  *relayer.Control
	logger   *log.Logger
}

// NewServer creates a new API server
func NewServer(messages *database.MessageRepository, events *database.EventRepository, bus *event.Bus, control *relayer.Control, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[Server] ", log.LstdFlags)
	}
	return &Server{
		messages: messages,
		events:   events,
		bus:      bus,
		control:  control,
		logger:   logger,
	}
}

// Handler builds the route table with a permissive CORS layer
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/transactions", s.handleListTransactions)
	mux.HandleFunc("/transactions/", s.handleGetTransaction)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/control/pause", s.handlePause)
	mux.HandleFunc("/control/resume", s.handleResume)
	mux.HandleFunc("/control/start-simulation", s.handleStartSimulation)
	mux.HandleFunc("/control/stop-simulation", s.handleStopSimulation)
	mux.HandleFunc("/control/simulation-status", s.handleSimulationStatus)
	mux.HandleFunc("/control/clear-data", s.handleClearData)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return cors.AllowAll().Handler(mux)
}

// Run serves the API on the given port until the listener fails
func (s *Server) Run(port uint16) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	s.logger.Printf("HTTP + WebSocket server listening on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the WebSocket stream is long-lived
	}
	return srv.ListenAndServe()
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("Failed to encode response: %v", err)
	}
}

// writeError writes a structured JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
