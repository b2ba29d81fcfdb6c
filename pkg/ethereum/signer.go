// Copyright 2025 Omnilock Labs
//
// Settlement Signing
// The escrow contract releases funds against an ECDSA signature over
// keccak256(be64(nonce) || result) under the eth_sign prefix convention

package ethereum

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey parses a hex-encoded secp256k1 private key (0x optional)
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// AddressOf returns the address controlled by a private key
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// SettlementHash computes keccak256(be64(nonce) || result), the message the
// escrow contract reconstructs on-chain
func SettlementHash(nonce uint64, result []byte) []byte {
	var nonceBE [8]byte
	binary.BigEndian.PutUint64(nonceBE[:], nonce)

	msg := make([]byte, 0, 8+len(result))
	msg = append(msg, nonceBE[:]...)
	msg = append(msg, result...)
	return crypto.Keccak256(msg)
}

// SignSettlement produces the 65-byte (r,s,v) settlement signature over the
// prefixed settlement hash
func SignSettlement(key *ecdsa.PrivateKey, nonce uint64, result []byte) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}

	hash := SettlementHash(nonce, result)
	prefixed := accounts.TextHash(hash)

	signature, err := crypto.Sign(prefixed, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign settlement: %w", err)
	}
	// Contract-side ecrecover expects v in {27, 28}
	signature[64] += 27

	return signature, nil
}
