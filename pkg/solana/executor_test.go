// Copyright 2025 Omnilock Labs
//
// Destination Executor Tests

package solana

import (
	"context"
	"fmt"
	"math"
	"testing"
)

func TestExecute_ResultLaw(t *testing.T) {
	e := NewExecutor()
	var trace [32]byte
	trace[0] = 0x01

	sig, result, err := e.Execute(context.Background(), 1, 500_000, trace)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != 1_000_000 {
		t.Errorf("result mismatch: got %d, want 1000000", result)
	}
	wantPrefix := fmt.Sprintf("sim_%d_", 1)
	if len(sig) <= len(wantPrefix) || sig[:len(wantPrefix)] != wantPrefix {
		t.Errorf("signature %q does not match sim_1_ pattern", sig)
	}
}

func TestExecute_SaturatesAtMax(t *testing.T) {
	e := NewExecutor()
	var trace [32]byte

	_, result, err := e.Execute(context.Background(), 2, math.MaxUint64, trace)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != math.MaxUint64 {
		t.Errorf("result mismatch: got %d, want u64 max", result)
	}

	_, result, err = e.Execute(context.Background(), 3, math.MaxUint64/2+1, trace)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != math.MaxUint64 {
		t.Errorf("result mismatch: got %d, want u64 max", result)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	e := NewExecutor()
	var trace [32]byte
	trace[5] = 0xaa

	sig1, result1, err := e.Execute(context.Background(), 7, 100, trace)
	if err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	sig2, result2, err := e.Execute(context.Background(), 7, 999, trace)
	if err != nil {
		t.Fatalf("second execute failed: %v", err)
	}

	// Second call observes the existing receipt, not a recomputation
	if sig1 != sig2 {
		t.Errorf("signature changed on repeat call: %q vs %q", sig1, sig2)
	}
	if result1 != result2 {
		t.Errorf("result changed on repeat call: %d vs %d", result1, result2)
	}

	receipt, ok := e.GetReceipt(7)
	if !ok {
		t.Fatal("expected a stored receipt")
	}
	if !receipt.IsInitialized || receipt.Result != 200 {
		t.Errorf("receipt mismatch: %+v", receipt)
	}
}

func TestReceipt_BinaryLayout(t *testing.T) {
	r := &Receipt{
		IsInitialized: true,
		Nonce:         42,
		Result:        84,
		ExecutedAt:    1_700_000_000,
	}
	copy(r.Sender[:], []byte("0123456789abcdefghij"))
	copy(r.TraceID[:], []byte("trace-id-trace-id-trace-id-tr-id"))

	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(data) != ReceiptSize {
		t.Fatalf("serialized size mismatch: got %d, want %d", len(data), ReceiptSize)
	}

	var decoded Receipt
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	decoded.Signature = r.Signature
	if decoded != *r {
		t.Errorf("round trip mismatch: %+v vs %+v", decoded, *r)
	}
}

func TestReceipt_RejectsWrongSize(t *testing.T) {
	var r Receipt
	if err := r.UnmarshalBinary(make([]byte, ReceiptSize-1)); err == nil {
		t.Error("expected error for short buffer")
	}
}
