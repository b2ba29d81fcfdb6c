// Copyright 2025 Omnilock Labs
//
// Event Repository Tests

package database

import (
	"context"
	"testing"

	"github.com/omnilock/escrow-relayer/pkg/event"
)

func TestEventInsertAndListByNonce(t *testing.T) {
	client := newTestClient(t)
	repo := NewEventRepository(client)
	ctx := context.Background()

	steps := []event.Step{event.StepLocked, event.StepObserved, event.StepVerified}
	for _, step := range steps {
		ev := event.New("0xtrace", 1, event.ActorRelayer, step, event.StatusSuccess).
			WithDetail("detail for " + string(step))
		if err := repo.Insert(ctx, ev); err != nil {
			t.Fatalf("failed to insert event: %v", err)
		}
	}
	// Event for another nonce must not leak into the listing
	if err := repo.Insert(ctx, event.New("0xother", 2, event.ActorSource, event.StepLocked, event.StatusSuccess)); err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}

	events, err := repo.ListByNonce(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, step := range steps {
		if events[i].Step != step {
			t.Errorf("position %d: got step %s, want %s", i, events[i].Step, step)
		}
		if events[i].Nonce != 1 {
			t.Errorf("position %d: got nonce %d, want 1", i, events[i].Nonce)
		}
	}
}

func TestEventInsert_EmptyDetail(t *testing.T) {
	client := newTestClient(t)
	repo := NewEventRepository(client)
	ctx := context.Background()

	if err := repo.Insert(ctx, event.New("0xtrace", 3, event.ActorSource, event.StepLocked, event.StatusSuccess)); err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}

	events, err := repo.ListByNonce(ctx, 3)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Detail != "" {
		t.Errorf("expected empty detail, got %q", events[0].Detail)
	}
}

func TestClearAll(t *testing.T) {
	client := newTestClient(t)
	events := NewEventRepository(client)
	messages := NewMessageRepository(client)
	ctx := context.Background()

	insertTestMessage(t, messages, 1)
	if err := events.Insert(ctx, event.New("0xtrace", 1, event.ActorSource, event.StepLocked, event.StatusSuccess)); err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}

	if err := events.ClearAll(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	msgs, err := messages.GetAll(ctx)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages after clear, got %d", len(msgs))
	}

	evs, err := events.ListByNonce(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("expected no events after clear, got %d", len(evs))
	}
}
