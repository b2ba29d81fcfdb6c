// Copyright 2025 Omnilock Labs
//
// Escrow Event Decoding Tests

package ethereum

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func makeLog(t *testing.T, traceID common.Hash, nonce uint64, sender common.Address, amount *big.Int, payload []byte, deadline *big.Int) types.Log {
	t.Helper()
	data, err := PackRequestData(sender, amount, payload, deadline)
	if err != nil {
		t.Fatalf("failed to pack request data: %v", err)
	}
	return types.Log{
		Topics: []common.Hash{
			RequestEventTopic,
			traceID,
			common.BigToHash(new(big.Int).SetUint64(nonce)),
		},
		Data:        data,
		BlockNumber: 17,
		TxHash:      common.HexToHash("0x1234"),
	}
}

func TestParseRequestLog_RoundTrip(t *testing.T) {
	traceID := common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132")
	sender := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	amount := big.NewInt(500_000)
	payload := []byte("payload bytes with some length")
	deadline := big.NewInt(1_900_000_000)

	lg := makeLog(t, traceID, 42, sender, amount, payload, deadline)

	req, err := ParseRequestLog(&lg)
	if err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}

	if req.TraceID != traceID {
		t.Errorf("trace id mismatch: got %s", req.TraceID.Hex())
	}
	if req.Nonce != 42 {
		t.Errorf("nonce mismatch: got %d, want 42", req.Nonce)
	}
	if req.Sender != sender {
		t.Errorf("sender mismatch: got %s", req.Sender.Hex())
	}
	if req.Amount.Cmp(amount) != 0 {
		t.Errorf("amount mismatch: got %s", req.Amount)
	}
	if !bytes.Equal(req.Payload, payload) {
		t.Errorf("payload mismatch: got %x", req.Payload)
	}
	if req.Deadline.Cmp(deadline) != 0 {
		t.Errorf("deadline mismatch: got %s", req.Deadline)
	}
	if req.BlockNumber != 17 {
		t.Errorf("block number mismatch: got %d", req.BlockNumber)
	}
	if req.TxHash != common.HexToHash("0x1234") {
		t.Errorf("tx hash mismatch: got %s", req.TxHash.Hex())
	}
}

func TestParseRequestLog_EmptyPayload(t *testing.T) {
	lg := makeLog(t, common.Hash{}, 1, common.Address{}, big.NewInt(1), []byte{}, big.NewInt(0))

	req, err := ParseRequestLog(&lg)
	if err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if len(req.Payload) != 0 {
		t.Errorf("expected empty payload, got %x", req.Payload)
	}
}

func TestParseRequestLog_MissingTopics(t *testing.T) {
	lg := types.Log{Topics: []common.Hash{RequestEventTopic}}
	if _, err := ParseRequestLog(&lg); err == nil {
		t.Error("expected error for missing topics")
	}
}

func TestParseRequestLog_WrongTopic(t *testing.T) {
	lg := makeLog(t, common.Hash{}, 1, common.Address{}, big.NewInt(1), nil, big.NewInt(0))
	lg.Topics[0] = common.HexToHash("0xff")
	if _, err := ParseRequestLog(&lg); err == nil {
		t.Error("expected error for wrong event topic")
	}
}

func TestParseRequestLog_TruncatedData(t *testing.T) {
	lg := makeLog(t, common.Hash{}, 1, common.Address{}, big.NewInt(1), []byte("abc"), big.NewInt(0))
	lg.Data = lg.Data[:64]
	if _, err := ParseRequestLog(&lg); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestRequestEventTopic_MatchesSignature(t *testing.T) {
	if RequestEventTopic == (common.Hash{}) {
		t.Error("event topic must not be zero")
	}
	recomputed := crypto.Keccak256Hash([]byte(RequestEventSignature))
	if RequestEventTopic != recomputed {
		t.Errorf("event topic mismatch: got %s, want %s", RequestEventTopic.Hex(), recomputed.Hex())
	}
}
