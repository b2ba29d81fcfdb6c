// Copyright 2025 Omnilock Labs
//
// Synthetic Traffic Generator
// Locks funds in the escrow contract on a fixed cadence while the
// simulation flag is on, producing realistic payment descriptions

package traffic

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/omnilock/escrow-relayer/pkg/relayer"
)

// sendInterval is the pacing between generated transactions
const sendInterval = 5 * time.Second

// idleInterval is how often the generator re-checks the simulation flag
const idleInterval = 500 * time.Millisecond

// lockGasLimit covers the escrow lockFunds(bytes) call
const lockGasLimit = 500_000

// userNames are human-readable names mapped to the funded dev accounts
var userNames = []string{
	"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Hank", "Ivy",
}

var paymentActions = []string{
	"shovelling the driveway",
	"dog walking",
	"freelance web design",
	"car detailing",
	"guitar lessons",
	"birthday cake order",
	"lawn mowing",
	"tutoring session",
	"photography gig",
	"catering deposit",
	"house painting estimate",
	"yoga class pack",
	"vintage record collection",
	"roof repair quote",
	"moving truck rental",
	"wedding DJ deposit",
	"pottery class",
	"piano tuning",
	"pet sitting",
	"snow plowing",
}

// devKeys are the Anvil default accounts 1-5 (account 0 is the relayer).
// Local development only.
var devKeys = []string{
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
}

var (
	bytesTy, _ = abi.NewType("bytes", "", nil)

	lockArgs     = abi.Arguments{{Name: "payload", Type: bytesTy}}
	lockSelector = crypto.Keccak256([]byte("lockFunds(bytes)"))[:4]
)

// Generator submits synthetic lock transactions to the escrow contract
type Generator struct {
	rpcURL  string
	escrow  common.Address
	control *relayer.Control
	logger  *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a traffic generator against the given escrow
func NewGenerator(rpcURL, escrowAddress string, control *relayer.Control) (*Generator, error) {
	if !common.IsHexAddress(escrowAddress) {
		return nil, fmt.Errorf("invalid escrow address %q", escrowAddress)
	}
	return &Generator{
		rpcURL:  rpcURL,
		escrow:  common.HexToAddress(escrowAddress),
		control: control,
		logger:  log.New(log.Writer(), "[Traffic] ", log.LstdFlags),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run generates traffic whenever the simulation flag is on, auto-stopping
// (and pausing the processor) when the deadline passes
func (g *Generator) Run(ctx context.Context) {
	g.logger.Println("Traffic generator started (waiting for simulation start)")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !g.control.SimulationRunning() {
			sleepCtx(ctx, idleInterval)
			continue
		}

		if deadline := g.control.SimulationDeadline(); deadline > 0 && time.Now().Unix() >= deadline {
			g.logger.Println("Simulation deadline reached, auto-stopping")
			g.control.SetSimulationRunning(false)
			g.control.Pause()
			continue
		}

		if err := g.sendOne(ctx); err != nil {
			g.logger.Printf("Failed to send transaction: %v", err)
		}

		sleepCtx(ctx, sendInterval)
	}
}

// sendOne submits a single lockFunds transaction from a random dev account
func (g *Generator) sendOne(ctx context.Context) error {
	g.mu.Lock()
	walletIdx := g.rng.Intn(len(devKeys))
	sender := userNames[walletIdx]
	recipient := userNames[g.rng.Intn(len(userNames))]
	action := paymentActions[g.rng.Intn(len(paymentActions))]
	amount := int64(100_000 + g.rng.Intn(900_001))
	traceID := uuid.New()
	description := fmt.Sprintf("%s's payment to %s for %s", sender, recipient, action)
	payload := g.buildPayload(traceID, description)
	g.mu.Unlock()

	client, err := ethclient.DialContext(ctx, g.rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to source chain: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(devKeys[walletIdx], "0x"))
	if err != nil {
		return fmt.Errorf("failed to parse dev key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	encoded, err := lockArgs.Pack(payload)
	if err != nil {
		return fmt.Errorf("failed to encode lock call: %w", err)
	}
	calldata := append(append([]byte{}, lockSelector...), encoded...)

	txNonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to get account nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(txNonce, g.escrow, big.NewInt(amount), lockGasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, client, signedTx)
	if err != nil {
		return fmt.Errorf("transaction dropped: %w", err)
	}

	g.logger.Printf("Transaction confirmed tx=%s desc=%q amount=%d trace=%s status=%d",
		receipt.TxHash.Hex(), description, amount, traceID, receipt.Status)
	return nil
}

// buildPayload assembles trace_id(16) || desc_len(2, BE) || desc || 4..16
// random tail bytes
func (g *Generator) buildPayload(traceID uuid.UUID, description string) []byte {
	desc := []byte(description)

	payload := make([]byte, 0, 16+2+len(desc)+16)
	payload = append(payload, traceID[:]...)

	var descLen [2]byte
	binary.BigEndian.PutUint16(descLen[:], uint16(len(desc)))
	payload = append(payload, descLen[:]...)
	payload = append(payload, desc...)

	tail := make([]byte, 4+g.rng.Intn(13))
	g.rng.Read(tail)
	return append(payload, tail...)
}

// sleepCtx sleeps for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
