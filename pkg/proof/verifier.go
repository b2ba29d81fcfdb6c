// Copyright 2025 Omnilock Labs
//
// Proof Bundle Verifier
// Recovers the secp256k1 signer from the bundle signature and checks it
// against the claimed relayer address

package proof

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Verify checks a proof bundle by ECDSA public-key recovery.
//
// 1. Reject structurally incomplete bundles
// 2. Recompute the signing message from block_header, event_root, nonce
// 3. Recover the signer address from the signature
// 4. Compare (case-insensitive) to the claimed relayer address
func Verify(bundle *Bundle) (bool, error) {
	if bundle == nil {
		return false, fmt.Errorf("proof bundle is nil")
	}
	if bundle.BlockHeader == "" {
		return false, fmt.Errorf("missing block header")
	}
	if bundle.EventRoot == "" {
		return false, fmt.Errorf("missing event root")
	}
	if len(bundle.InclusionProof) == 0 {
		return false, fmt.Errorf("missing inclusion proof")
	}
	if bundle.ValidatorSignature == "" {
		return false, fmt.Errorf("missing validator signature")
	}
	if bundle.Nonce == 0 {
		return false, fmt.Errorf("invalid nonce in proof bundle")
	}

	message := SigningMessage(bundle.BlockHeader, bundle.EventRoot, bundle.Nonce)

	sig, err := hex.DecodeString(strings.TrimPrefix(bundle.ValidatorSignature, "0x"))
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return false, fmt.Errorf("invalid signature length: expected %d, got %d", crypto.SignatureLength, len(sig))
	}

	// Accept both 0/1 and 27/28 recovery ids
	recoverable := make([]byte, crypto.SignatureLength)
	copy(recoverable, sig)
	if recoverable[64] >= 27 {
		recoverable[64] -= 27
	}

	pubKey, err := crypto.SigToPub(message, recoverable)
	if err != nil {
		return false, fmt.Errorf("signature recovery failed: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	if !strings.EqualFold(recovered, bundle.RelayerAddress) {
		return false, fmt.Errorf("ECDSA verification failed: recovered %s but expected %s",
			recovered, bundle.RelayerAddress)
	}

	return true, nil
}
