// Copyright 2025 Omnilock Labs
//
// Escrow Event Decoding
// CrossChainRequest logs carry the indexed trace id and nonce in topics and
// an ABI-encoded (address, uint256, bytes, uint256) body in data

package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RequestEventSignature is the canonical escrow event signature
const RequestEventSignature = "CrossChainRequest(bytes32,uint64,address,uint256,bytes,uint256)"

// RequestEventTopic is topic 0 of every CrossChainRequest log
var RequestEventTopic = crypto.Keccak256Hash([]byte(RequestEventSignature))

var (
	addressTy, _ = abi.NewType("address", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)
	bytesTy, _   = abi.NewType("bytes", "", nil)

	// requestDataArgs is the non-indexed body of a CrossChainRequest log
	requestDataArgs = abi.Arguments{
		{Name: "sender", Type: addressTy},
		{Name: "amount", Type: uint256Ty},
		{Name: "payload", Type: bytesTy},
		{Name: "deadline", Type: uint256Ty},
	}
)

// CrossChainRequest is a decoded funds-lock event from the escrow contract
type CrossChainRequest struct {
	TraceID     common.Hash
	Nonce       uint64
	Sender      common.Address
	Amount      *big.Int
	Payload     []byte
	Deadline    *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// ParseRequestLog decodes a raw log into a CrossChainRequest.
//
// topic[0] = event signature
// topic[1] = traceId (indexed bytes32)
// topic[2] = nonce (indexed uint64, big-endian left-padded to 32 bytes)
func ParseRequestLog(lg *types.Log) (*CrossChainRequest, error) {
	if len(lg.Topics) < 3 {
		return nil, fmt.Errorf("log has %d topics, expected 3", len(lg.Topics))
	}
	if lg.Topics[0] != RequestEventTopic {
		return nil, fmt.Errorf("unexpected event topic %s", lg.Topics[0].Hex())
	}

	traceID := lg.Topics[1]
	nonce := new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64()

	values, err := requestDataArgs.Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode log body: %w", err)
	}

	sender, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected sender type %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amount type %T", values[1])
	}
	payload, ok := values[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", values[2])
	}
	deadline, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected deadline type %T", values[3])
	}

	return &CrossChainRequest{
		TraceID:     traceID,
		Nonce:       nonce,
		Sender:      sender,
		Amount:      amount,
		Payload:     payload,
		Deadline:    deadline,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}

// PackRequestData ABI-encodes the non-indexed body of a CrossChainRequest
// log. The inverse of the body decoding in ParseRequestLog.
func PackRequestData(sender common.Address, amount *big.Int, payload []byte, deadline *big.Int) ([]byte, error) {
	data, err := requestDataArgs.Pack(sender, amount, payload, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}
