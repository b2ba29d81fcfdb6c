// Copyright 2025 Omnilock Labs
//
// Execution Receipt
// Mirrors the on-chain per-nonce receipt account record

package solana

import (
	"encoding/binary"
	"fmt"
)

// ReceiptSize is the serialized size of a receipt record:
// is_initialized(1) + nonce(8) + result(8) + sender(20) + trace_id(32) + executed_at(8)
const ReceiptSize = 1 + 8 + 8 + 20 + 32 + 8

// Receipt is the destination-side record of one executed message
type Receipt struct {
	IsInitialized bool
	Nonce         uint64
	Result        uint64
	Sender        [20]byte
	TraceID       [32]byte
	ExecutedAt    int64

	// Signature is the opaque receipt identifier returned to the relayer;
	// it correlates to this record but is not part of the serialized form
	Signature string
}

// MarshalBinary serializes the receipt in the on-chain account layout
func (r *Receipt) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ReceiptSize)
	if r.IsInitialized {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[1:9], r.Nonce)
	binary.LittleEndian.PutUint64(buf[9:17], r.Result)
	copy(buf[17:37], r.Sender[:])
	copy(buf[37:69], r.TraceID[:])
	binary.LittleEndian.PutUint64(buf[69:77], uint64(r.ExecutedAt))
	return buf, nil
}

// UnmarshalBinary parses a receipt from the on-chain account layout
func (r *Receipt) UnmarshalBinary(data []byte) error {
	if len(data) != ReceiptSize {
		return fmt.Errorf("invalid receipt size: expected %d, got %d", ReceiptSize, len(data))
	}
	r.IsInitialized = data[0] == 1
	r.Nonce = binary.LittleEndian.Uint64(data[1:9])
	r.Result = binary.LittleEndian.Uint64(data[9:17])
	copy(r.Sender[:], data[17:37])
	copy(r.TraceID[:], data[37:69])
	r.ExecutedAt = int64(binary.LittleEndian.Uint64(data[69:77]))
	return nil
}
