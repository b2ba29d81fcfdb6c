// Copyright 2025 Omnilock Labs
//
// Settlement Signing Tests

package ethereum

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSignSettlement_SignatureShape(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	result := make([]byte, 32)
	result[31] = 0x2a

	sig, err := SignSettlement(key, 7, result)
	if err != nil {
		t.Fatalf("failed to sign settlement: %v", err)
	}

	if len(sig) != 65 {
		t.Fatalf("signature length mismatch: got %d, want 65", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("recovery id mismatch: got %d, want 27 or 28", sig[64])
	}
}

func TestSignSettlement_Recoverable(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	result := make([]byte, 32)
	result[31] = 0x01

	sig, err := SignSettlement(key, 99, result)
	if err != nil {
		t.Fatalf("failed to sign settlement: %v", err)
	}

	// Recover the way the escrow contract would: ecrecover over the
	// prefixed settlement hash
	prefixed := accounts.TextHash(SettlementHash(99, result))
	recoverable := append([]byte{}, sig...)
	recoverable[64] -= 27

	pub, err := crypto.SigToPub(prefixed, recoverable)
	if err != nil {
		t.Fatalf("failed to recover signer: %v", err)
	}

	if crypto.PubkeyToAddress(*pub) != AddressOf(key) {
		t.Errorf("recovered signer mismatch: got %s, want %s",
			crypto.PubkeyToAddress(*pub).Hex(), AddressOf(key).Hex())
	}
}

func TestSettlementHash_DependsOnNonceAndResult(t *testing.T) {
	result := make([]byte, 32)

	a := SettlementHash(1, result)
	b := SettlementHash(2, result)
	if string(a) == string(b) {
		t.Error("settlement hash must depend on nonce")
	}

	result[0] = 0xff
	c := SettlementHash(1, result)
	if string(a) == string(c) {
		t.Error("settlement hash must depend on result bytes")
	}
}

func TestParsePrivateKey_AcceptsPrefix(t *testing.T) {
	const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	plain, err := ParsePrivateKey(anvilKey)
	if err != nil {
		t.Fatalf("failed to parse bare key: %v", err)
	}
	prefixed, err := ParsePrivateKey("0x" + anvilKey)
	if err != nil {
		t.Fatalf("failed to parse 0x key: %v", err)
	}

	if AddressOf(plain) != AddressOf(prefixed) {
		t.Error("prefixed and bare keys must resolve to the same address")
	}
}

func TestParsePrivateKey_RejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKey("not-hex"); err == nil {
		t.Error("expected error for invalid key")
	}
}
