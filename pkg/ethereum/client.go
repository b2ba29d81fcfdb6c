package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// settleGasLimit covers the escrow settle() call including signature recovery
const settleGasLimit = 500_000

var (
	uint64Ty, _ = abi.NewType("uint64", "", nil)

	// settleArgs is the argument tuple of settle(uint64,bytes,bytes)
	settleArgs = abi.Arguments{
		{Name: "nonce", Type: uint64Ty},
		{Name: "result", Type: bytesTy},
		{Name: "signature", Type: bytesTy},
	}

	settleSelector = crypto.Keccak256([]byte("settle(uint64,bytes,bytes)"))[:4]
)

// Client wraps an Ethereum RPC connection for the escrow contract
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
	escrow  common.Address
	logger  *log.Logger
}

// NewClient connects to the source chain RPC endpoint
func NewClient(url string, chainID int64, escrowAddress string) (*Client, error) {
	if !common.IsHexAddress(escrowAddress) {
		return nil, fmt.Errorf("invalid escrow address %q", escrowAddress)
	}

	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source chain: %w", err)
	}

	return &Client{
		client:  client,
		chainID: big.NewInt(chainID),
		escrow:  common.HexToAddress(escrowAddress),
		logger:  log.New(log.Writer(), "[SourceChain] ", log.LstdFlags),
	}, nil
}

// BlockNumber returns the current block height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return height, nil
}

// FilterRequests fetches CrossChainRequest logs from the escrow contract
// starting at fromBlock
func (c *Client) FilterRequests(ctx context.Context, fromBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.escrow},
		Topics:    [][]common.Hash{{RequestEventTopic}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, nil
}

// Settle submits settle(nonce, result, signature) to the escrow contract,
// waits for it to be mined and returns the confirmed transaction hash.
func (c *Client) Settle(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, result, signature []byte) (string, error) {
	encoded, err := settleArgs.Pack(nonce, result, signature)
	if err != nil {
		return "", fmt.Errorf("failed to encode settle call: %w", err)
	}
	calldata := append(append([]byte{}, settleSelector...), encoded...)

	from := crypto.PubkeyToAddress(key.PublicKey)

	txNonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to get account nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(txNonce, c.escrow, big.NewInt(0), settleGasLimit, gasPrice, calldata)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send settle transaction: %w", err)
	}

	c.logger.Printf("Settlement transaction sent nonce=%d tx=%s", nonce, signedTx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.client, signedTx)
	if err != nil {
		return "", fmt.Errorf("settle transaction was dropped: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("settle transaction reverted: %s", receipt.TxHash.Hex())
	}

	return receipt.TxHash.Hex(), nil
}

// Close releases the underlying RPC connection
func (c *Client) Close() {
	c.client.Close()
}
