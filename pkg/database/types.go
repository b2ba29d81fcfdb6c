// Copyright 2025 Omnilock Labs
//
// Database Types - message rows, states, and metrics

package database

import (
	"database/sql"
	"encoding/json"
)

// MessageState is the relayer state machine state of a cross-chain message
type MessageState string

const (
	StateObserved   MessageState = "observed"
	StatePersisted  MessageState = "persisted"
	StateVerified   MessageState = "verified"
	StateSentToDest MessageState = "sent_to_dest"
	StateExecuted   MessageState = "executed"
	StateSettled    MessageState = "settled"
	StateFailed     MessageState = "failed"
	StateRolledBack MessageState = "rolled_back"
)

// IsTerminal reports whether no further transitions are allowed from s
func (s MessageState) IsTerminal() bool {
	switch s {
	case StateSettled, StateFailed, StateRolledBack:
		return true
	}
	return false
}

// DriveOrder is the sweep order of the processor's drive phase
var DriveOrder = []MessageState{StatePersisted, StateVerified, StateSentToDest, StateExecuted}

// ResumeOrder is the order the resume controller inspects states in
var ResumeOrder = []MessageState{StateObserved, StatePersisted, StateVerified, StateSentToDest, StateExecuted}

// Message is the durable row for one cross-chain request
type Message struct {
	ID             int64          `json:"id"`
	Nonce          uint64         `json:"nonce"`
	TraceID        string         `json:"trace_id"`
	Sender         string         `json:"sender"`
	Amount         string         `json:"amount"`
	Payload        string         `json:"payload"`
	Deadline       int64          `json:"deadline"`
	Description    sql.NullString `json:"-"`
	State          MessageState   `json:"state"`
	Result         sql.NullString `json:"-"`
	DestSignature  sql.NullString `json:"-"`
	SourceSettleTx sql.NullString `json:"-"`
	ProofJSON      sql.NullString `json:"-"`
	RetryCount     int32          `json:"retry_count"`
	ErrorMessage   sql.NullString `json:"-"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// messageJSON is the wire form of Message with flattened nullable fields
type messageJSON struct {
	ID             int64        `json:"id"`
	Nonce          uint64       `json:"nonce"`
	TraceID        string       `json:"trace_id"`
	Sender         string       `json:"sender"`
	Amount         string       `json:"amount"`
	Payload        string       `json:"payload"`
	Deadline       int64        `json:"deadline"`
	Description    *string      `json:"description"`
	State          MessageState `json:"state"`
	Result         *string      `json:"result"`
	DestSignature  *string      `json:"dest_signature"`
	SourceSettleTx *string      `json:"source_settle_tx"`
	ProofJSON      *string      `json:"proof_json"`
	RetryCount     int32        `json:"retry_count"`
	ErrorMessage   *string      `json:"error_message"`
	CreatedAt      string       `json:"created_at"`
	UpdatedAt      string       `json:"updated_at"`
}

// MarshalJSON flattens nullable columns to plain JSON null
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:             m.ID,
		Nonce:          m.Nonce,
		TraceID:        m.TraceID,
		Sender:         m.Sender,
		Amount:         m.Amount,
		Payload:        m.Payload,
		Deadline:       m.Deadline,
		Description:    nullable(m.Description),
		State:          m.State,
		Result:         nullable(m.Result),
		DestSignature:  nullable(m.DestSignature),
		SourceSettleTx: nullable(m.SourceSettleTx),
		ProofJSON:      nullable(m.ProofJSON),
		RetryCount:     m.RetryCount,
		ErrorMessage:   nullable(m.ErrorMessage),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	})
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// StateUpdate carries the optional artifact fields written alongside a
// state transition. Nil fields leave the stored values untouched.
type StateUpdate struct {
	Result         *string
	DestSignature  *string
	SourceSettleTx *string
	ErrorMessage   *string
}

// Metrics is the aggregate view over all message rows
type Metrics struct {
	Total        int64 `json:"total_transactions"`
	Settled      int64 `json:"settled"`
	Failed       int64 `json:"failed"`
	Pending      int64 `json:"pending"`
	TotalRetries int64 `json:"total_retries"`
}
