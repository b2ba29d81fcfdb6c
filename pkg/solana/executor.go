// Copyright 2025 Omnilock Labs
//
// Destination Executor
// Simulated Solana-style program invocation. Computes the same deterministic
// result (amount * 2, saturating) the on-chain program would produce and
// keeps an idempotent per-nonce receipt registry mirroring the program's
// receipt accounts.
//
// A production deployment would build the program instruction, derive the
// receipt PDA and submit through an RPC client; the result and receipt
// semantics here are identical to the on-chain ones.

package solana

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Executor runs the deterministic destination computation
type Executor struct {
	mu       sync.Mutex
	receipts map[uint64]*Receipt
	logger   *log.Logger
}

// NewExecutor creates an executor with an empty receipt registry
func NewExecutor() *Executor {
	return &Executor{
		receipts: make(map[uint64]*Receipt),
		logger:   log.New(log.Writer(), "[Destination] ", log.LstdFlags),
	}
}

// Execute performs the cross-chain computation for a message.
//
// The computation is deterministic: result = amount * 2, saturating at the
// u64 maximum. A second call for the same nonce observes the existing
// receipt and returns it unchanged.
func (e *Executor) Execute(ctx context.Context, nonce, amount uint64, traceID [32]byte) (string, uint64, error) {
	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.receipts[nonce]; ok {
		return existing.Signature, existing.Result, nil
	}

	result := saturatingDouble(amount)
	sig := fmt.Sprintf("sim_%d_%s", nonce, hex.EncodeToString(traceID[:8]))

	e.receipts[nonce] = &Receipt{
		IsInitialized: true,
		Nonce:         nonce,
		Result:        result,
		TraceID:       traceID,
		ExecutedAt:    time.Now().Unix(),
		Signature:     sig,
	}

	e.logger.Printf("Execution complete nonce=%d sig=%s result=%d", nonce, sig, result)
	return sig, result, nil
}

// GetReceipt returns the stored receipt for a nonce, if any
func (e *Executor) GetReceipt(nonce uint64) (*Receipt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.receipts[nonce]
	return r, ok
}

// saturatingDouble computes amount * 2, clamped to the u64 maximum
func saturatingDouble(amount uint64) uint64 {
	if amount > math.MaxUint64/2 {
		return math.MaxUint64
	}
	return amount * 2
}
