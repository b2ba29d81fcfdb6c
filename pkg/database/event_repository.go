// Copyright 2025 Omnilock Labs
//
// Event Repository - append-only journal of lifecycle events
// Rows are never updated or deleted except by the administrative clear

package database

import (
	"context"
	"fmt"

	"github.com/omnilock/escrow-relayer/pkg/event"
)

// EventRepository handles lifecycle event journal operations
type EventRepository struct {
	client *Client
}

// NewEventRepository creates a new event repository
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

// Insert appends a lifecycle event to the journal
func (r *EventRepository) Insert(ctx context.Context, ev event.LifecycleEvent) error {
	query := `
		INSERT INTO events (nonce, trace_id, actor, step, status, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	var detail *string
	if ev.Detail != "" {
		detail = &ev.Detail
	}

	_, err := r.client.ExecContext(ctx, query,
		int64(ev.Nonce), ev.TraceID, string(ev.Actor), string(ev.Step),
		string(ev.Status), detail, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListByNonce returns all events for a nonce in insertion order
func (r *EventRepository) ListByNonce(ctx context.Context, nonce uint64) ([]event.LifecycleEvent, error) {
	query := `
		SELECT trace_id, nonce, actor, step, status, detail, timestamp
		FROM events
		WHERE nonce = ?
		ORDER BY id ASC`

	rows, err := r.client.QueryContext(ctx, query, int64(nonce))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []event.LifecycleEvent
	for rows.Next() {
		var ev event.LifecycleEvent
		var rowNonce int64
		var actor, step, status string
		var detail *string
		if err := rows.Scan(&ev.TraceID, &rowNonce, &actor, &step, &status, &detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Nonce = uint64(rowNonce)
		ev.Actor = event.Actor(actor)
		ev.Step = event.Step(step)
		ev.Status = event.Status(status)
		if detail != nil {
			ev.Detail = *detail
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ClearAll deletes all events and messages (administrative reset)
func (r *EventRepository) ClearAll(ctx context.Context) error {
	if _, err := r.client.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if _, err := r.client.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
