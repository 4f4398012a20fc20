package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMClient is the subset of the Ethereum RPC used to observe payments and submit mints.
type EVMClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// Dial opens an RPC client for endpoint (Celo mainnet or Alfajores).
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// ParseTxHash accepts a 0x-prefixed 32-byte transaction hash.
func ParseTxHash(ref string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(ref))
	if err != nil {
		return common.Hash{}, fmt.Errorf("transaction hash %q: %w", ref, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("transaction hash %q: want %d bytes, got %d", ref, common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

// receiptFor returns nil without error while the transaction is not yet mined.
func receiptFor(ctx context.Context, client EVMClient, txHash common.Hash) (*gethtypes.Receipt, error) {
	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch receipt: %w", err)
	}
	return receipt, nil
}

// hasConfirmations reports whether the receipt's block is buried at least `want` deep, counting itself.
func hasConfirmations(ctx context.Context, client EVMClient, receipt *gethtypes.Receipt, want uint64) (bool, error) {
	if want == 0 {
		return true, nil
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("fetch head: %w", err)
	}
	if header == nil || header.Number == nil || receipt.BlockNumber == nil {
		return false, fmt.Errorf("block metadata unavailable")
	}
	if header.Number.Cmp(receipt.BlockNumber) < 0 {
		return false, nil
	}
	confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
	confirmed.Add(confirmed, big.NewInt(1))
	return confirmed.Cmp(new(big.Int).SetUint64(want)) >= 0, nil
}
