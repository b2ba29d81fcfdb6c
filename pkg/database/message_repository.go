// Copyright 2025 Omnilock Labs
//
// Message Repository - durable per-message rows for the state machine
// The processor is the single writer of state-transition columns

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// MessageRepository handles cross-chain message row operations
type MessageRepository struct {
	client *Client
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(client *Client) *MessageRepository {
	return &MessageRepository{client: client}
}

const messageColumns = `
	id, nonce, trace_id, sender, amount, payload, deadline,
	description, state, result, dest_signature, source_settle_tx, proof_json,
	retry_count, error_message, created_at, updated_at`

// NewMessage carries the fields of a freshly observed request
type NewMessage struct {
	Nonce       uint64
	TraceID     string
	Sender      string
	Amount      string
	Payload     string
	Deadline    int64
	Description *string
}

// InsertIfAbsent creates a message in state 'observed'. If the nonce already
// exists the insert is a no-op (idempotent ingestion).
func (r *MessageRepository) InsertIfAbsent(ctx context.Context, input *NewMessage) error {
	query := `
		INSERT OR IGNORE INTO messages (nonce, trace_id, sender, amount, payload, deadline, description, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'observed')`

	_, err := r.client.ExecContext(ctx, query,
		int64(input.Nonce), input.TraceID, input.Sender, input.Amount,
		input.Payload, input.Deadline, input.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// UpdateState writes the new state and any non-nil artifact fields.
// Nil fields leave the stored values untouched.
func (r *MessageRepository) UpdateState(ctx context.Context, nonce uint64, newState MessageState, update *StateUpdate) error {
	if update == nil {
		update = &StateUpdate{}
	}
	query := `
		UPDATE messages SET
			state = ?,
			result = COALESCE(?, result),
			dest_signature = COALESCE(?, dest_signature),
			source_settle_tx = COALESCE(?, source_settle_tx),
			error_message = COALESCE(?, error_message),
			updated_at = datetime('now')
		WHERE nonce = ?`

	_, err := r.client.ExecContext(ctx, query,
		string(newState), update.Result, update.DestSignature,
		update.SourceSettleTx, update.ErrorMessage, int64(nonce),
	)
	if err != nil {
		return fmt.Errorf("failed to update message state: %w", err)
	}
	return nil
}

// StoreProof persists the serialized proof bundle for a message
func (r *MessageRepository) StoreProof(ctx context.Context, nonce uint64, proofJSON string) error {
	query := `UPDATE messages SET proof_json = ?, updated_at = datetime('now') WHERE nonce = ?`

	_, err := r.client.ExecContext(ctx, query, proofJSON, int64(nonce))
	if err != nil {
		return fmt.Errorf("failed to store proof: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter for a message
func (r *MessageRepository) IncrementRetry(ctx context.Context, nonce uint64) error {
	query := `UPDATE messages SET retry_count = retry_count + 1, updated_at = datetime('now') WHERE nonce = ?`

	_, err := r.client.ExecContext(ctx, query, int64(nonce))
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return nil
}

// GetByState retrieves all messages in a given state, ordered by nonce ascending
func (r *MessageRepository) GetByState(ctx context.Context, state MessageState) ([]*Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE state = ?
		ORDER BY nonce ASC`

	rows, err := r.client.QueryContext(ctx, query, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages by state: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetByNonce retrieves a single message by nonce.
// Returns ErrMessageNotFound if the nonce has no row.
func (r *MessageRepository) GetByNonce(ctx context.Context, nonce uint64) (*Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE nonce = ?`

	msg, err := scanMessage(r.client.QueryRowContext(ctx, query, int64(nonce)))
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetAll retrieves all messages ordered by nonce descending (newest first)
func (r *MessageRepository) GetAll(ctx context.Context) ([]*Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		ORDER BY nonce DESC`

	rows, err := r.client.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Exists reports whether a nonce already has a message row
func (r *MessageRepository) Exists(ctx context.Context, nonce uint64) (bool, error) {
	var count int64
	err := r.client.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE nonce = ?", int64(nonce),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check nonce existence: %w", err)
	}
	return count > 0, nil
}

// Metrics returns the aggregate counters over all messages in one query
func (r *MessageRepository) Metrics(ctx context.Context) (*Metrics, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN state = 'settled' THEN 1 ELSE 0 END), 0) AS settled,
			COALESCE(SUM(CASE WHEN state IN ('failed', 'rolled_back') THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN state NOT IN ('settled', 'failed', 'rolled_back') THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(retry_count), 0) AS retries
		FROM messages`

	m := &Metrics{}
	err := r.client.QueryRowContext(ctx, query).Scan(
		&m.Total, &m.Settled, &m.Failed, &m.Pending, &m.TotalRetries,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	return m, nil
}

// CountByState returns the number of messages in a state
func (r *MessageRepository) CountByState(ctx context.Context, state MessageState) (int64, error) {
	var count int64
	err := r.client.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE state = ?", string(state),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages by state: %w", err)
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(s scanner) (*Message, error) {
	msg := &Message{}
	var nonce int64
	var state string
	err := s.Scan(
		&msg.ID, &nonce, &msg.TraceID, &msg.Sender, &msg.Amount, &msg.Payload, &msg.Deadline,
		&msg.Description, &state, &msg.Result, &msg.DestSignature, &msg.SourceSettleTx, &msg.ProofJSON,
		&msg.RetryCount, &msg.ErrorMessage, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Nonce = uint64(nonce)
	msg.State = MessageState(state)
	return msg, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
