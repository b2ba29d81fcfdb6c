// Copyright 2025 Omnilock Labs
//
// Dashboard API Handler Tests

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omnilock/escrow-relayer/pkg/database"
	"github.com/omnilock/escrow-relayer/pkg/event"
	"github.com/omnilock/escrow-relayer/pkg/relayer"
)

func newTestServer(t *testing.T) (*Server, *database.MessageRepository, *database.EventRepository, *relayer.Control) {
	t.Helper()
	client, err := database.NewClient(filepath.Join(t.TempDir(), "server.db"), 5)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	messages := database.NewMessageRepository(client)
	events := database.NewEventRepository(client)
	control := relayer.NewControl()
	srv := NewServer(messages, events, event.NewBus(event.DefaultBufferSize), control, nil)
	return srv, messages, events, control
}

func seedMessage(t *testing.T, messages *database.MessageRepository, nonce uint64) {
	t.Helper()
	if err := messages.InsertIfAbsent(context.Background(), &database.NewMessage{
		Nonce:   nonce,
		TraceID: "0x0101",
		Sender:  "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		Amount:  "500000",
		Payload: "deadbeef",
	}); err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
}

func doRequest(srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleListTransactions(t *testing.T) {
	srv, messages, _, _ := newTestServer(t)
	seedMessage(t, messages, 1)
	seedMessage(t, messages, 2)

	rec := doRequest(srv, http.MethodGet, "/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}

	var resp TransactionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Transactions) != 2 {
		t.Errorf("expected 2 transactions, got total=%d len=%d", resp.Total, len(resp.Transactions))
	}
	// Newest first
	if resp.Transactions[0].Nonce != 2 {
		t.Errorf("ordering mismatch: got nonce %d first", resp.Transactions[0].Nonce)
	}
}

func TestHandleGetTransaction_NotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/transactions/404", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status mismatch: got %d, want 404", rec.Code)
	}
}

func TestHandleGetTransaction_InvalidNonce(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/transactions/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status mismatch: got %d, want 400", rec.Code)
	}
}

func TestHandleGetTransaction_WithEvents(t *testing.T) {
	srv, messages, events, _ := newTestServer(t)
	seedMessage(t, messages, 7)
	if err := events.Insert(context.Background(),
		event.New("0x0101", 7, event.ActorSource, event.StepLocked, event.StatusSuccess)); err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}

	rec := doRequest(srv, http.MethodGet, "/transactions/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}

	var resp TransactionDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Transaction == nil || resp.Transaction.Nonce != 7 {
		t.Errorf("transaction mismatch: %+v", resp.Transaction)
	}
	if len(resp.Events) != 1 || resp.Events[0].Step != event.StepLocked {
		t.Errorf("events mismatch: %+v", resp.Events)
	}
	if resp.Proof != nil {
		t.Errorf("expected no proof for unverified message, got %+v", resp.Proof)
	}
}

func TestHandleMetrics(t *testing.T) {
	srv, messages, _, _ := newTestServer(t)
	seedMessage(t, messages, 1)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}

	var m database.Metrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if m.Total != 1 || m.Pending != 1 {
		t.Errorf("metrics mismatch: %+v", m)
	}
}

func TestHandlePauseAndResume(t *testing.T) {
	srv, _, _, control := newTestServer(t)

	if rec := doRequest(srv, http.MethodPost, "/control/pause", ""); rec.Code != http.StatusOK {
		t.Fatalf("pause status mismatch: got %d", rec.Code)
	}
	if !control.IsPaused() {
		t.Error("expected control to be paused")
	}

	if rec := doRequest(srv, http.MethodPost, "/control/resume", ""); rec.Code != http.StatusOK {
		t.Fatalf("resume status mismatch: got %d", rec.Code)
	}
	if control.IsPaused() {
		t.Error("expected control to be resumed")
	}
}

func TestHandlePause_MethodNotAllowed(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/control/pause", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status mismatch: got %d, want 405", rec.Code)
	}
}

func TestHandleSimulationLifecycle(t *testing.T) {
	srv, _, _, control := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/control/start-simulation", `{"duration_minutes": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status mismatch: got %d", rec.Code)
	}
	if !control.SimulationRunning() {
		t.Error("expected simulation to be running")
	}

	var status SimulationStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !status.Running || status.RemainingSeconds <= 0 || status.RemainingSeconds > 300 {
		t.Errorf("status mismatch: %+v", status)
	}

	rec = doRequest(srv, http.MethodPost, "/control/stop-simulation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status mismatch: got %d", rec.Code)
	}
	if control.SimulationRunning() {
		t.Error("expected simulation to be stopped")
	}
}

func TestHandleStartSimulation_DefaultDuration(t *testing.T) {
	srv, _, _, control := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/control/start-simulation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status mismatch: got %d", rec.Code)
	}

	// Default is 60 minutes
	deadline := control.SimulationDeadline()
	if deadline <= 0 {
		t.Error("expected a simulation deadline")
	}
}

func TestHandleClearData(t *testing.T) {
	srv, messages, _, _ := newTestServer(t)
	seedMessage(t, messages, 1)

	rec := doRequest(srv, http.MethodPost, "/control/clear-data", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status mismatch: got %d", rec.Code)
	}

	msgs, err := messages.GetAll(context.Background())
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages after clear, got %d", len(msgs))
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body mismatch: %s", rec.Body.String())
	}
}
