// Copyright 2025 Omnilock Labs
//
// Proof Bundle Builder
// Deterministic single-validator proof bundles: SHA-256 derived hashes
// plus one ECDSA signature over keccak256(block_header || event_root || nonce).
// This is the validator-signature model used by early production bridges;
// the security contract is exactly the secrecy of the signing key.

package proof

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
)

// InclusionProofNodes is the fixed number of sibling hashes in a bundle
const InclusionProofNodes = 3

// Bundle is a deterministically constructed proof record for one message
type Bundle struct {
	BlockHeader        string   `json:"block_header"`
	EventRoot          string   `json:"event_root"`
	InclusionProof     []string `json:"inclusion_proof"`
	ValidatorSignature string   `json:"validator_signature"`
	RelayerAddress     string   `json:"relayer_address"`
	Nonce              uint64   `json:"nonce"`
	Verified           bool     `json:"verified"`
}

// Build constructs a proof bundle for the given message and signs it with
// the relayer key. Verified is always false on a fresh bundle; only the
// verifier sets it.
func Build(nonce, blockNumber uint64, txHash string, eventData []byte, key *ecdsa.PrivateKey) (*Bundle, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	blockHeader := hashBlockHeader(blockNumber, txHash)
	eventRoot := hashEventRoot(eventData)

	inclusionProof := make([]string, InclusionProofNodes)
	for i := 0; i < InclusionProofNodes; i++ {
		inclusionProof[i] = hashProofNode(i, nonce, eventData)
	}

	message := SigningMessage(blockHeader, eventRoot, nonce)
	signature, err := crypto.Sign(message, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign proof bundle: %w", err)
	}
	// Normalize recovery id to the Ethereum (r,s,v) convention
	signature[64] += 27

	return &Bundle{
		BlockHeader:        blockHeader,
		EventRoot:          eventRoot,
		InclusionProof:     inclusionProof,
		ValidatorSignature: hex.EncodeToString(signature),
		RelayerAddress:     crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Nonce:              nonce,
		Verified:           false,
	}, nil
}

// SigningMessage computes keccak256(block_header || event_root || be64(nonce))
func SigningMessage(blockHeader, eventRoot string, nonce uint64) []byte {
	var nonceBE [8]byte
	binary.BigEndian.PutUint64(nonceBE[:], nonce)

	data := make([]byte, 0, len(blockHeader)+len(eventRoot)+8)
	data = append(data, blockHeader...)
	data = append(data, eventRoot...)
	data = append(data, nonceBE[:]...)
	return crypto.Keccak256(data)
}

// hashBlockHeader derives the block header hash from real ingestion data
func hashBlockHeader(blockNumber uint64, txHash string) string {
	h := sha256.New()
	h.Write([]byte("block_header:"))
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], blockNumber)
	h.Write(le[:])
	h.Write([]byte(txHash))
	return hex.EncodeToString(h.Sum(nil))
}

// hashEventRoot derives the event root hash from the raw event bytes
func hashEventRoot(eventData []byte) string {
	h := sha256.New()
	h.Write([]byte("event_root:"))
	h.Write(eventData)
	return hex.EncodeToString(h.Sum(nil))
}

// hashProofNode derives one inclusion proof sibling, seeded by index and nonce
func hashProofNode(index int, nonce uint64, eventData []byte) string {
	h := sha256.New()
	h.Write([]byte("proof_node:"))
	h.Write([]byte(strconv.Itoa(index)))
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)
	h.Write(le[:])
	h.Write(eventData)
	return hex.EncodeToString(h.Sum(nil))
}
