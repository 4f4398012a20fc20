package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

type fakeClient struct {
	mu       sync.Mutex
	receipts map[common.Hash]*gethtypes.Receipt
	head     int64
	nonce    uint64
	sent     []*gethtypes.Transaction
}

func newFakeClient() *fakeClient {
	return &fakeClient{receipts: make(map[common.Hash]*gethtypes.Receipt), head: 100}
}

func (c *fakeClient) TransactionReceipt(_ context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *fakeClient) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &gethtypes.Header{Number: big.NewInt(c.head)}, nil
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(5_000_000_000), nil
}

func (c *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	c.nonce++
	return nil
}

func (c *fakeClient) mine(txHash common.Hash, block int64, status uint64, logs ...*gethtypes.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[txHash] = &gethtypes.Receipt{
		Status:      status,
		BlockNumber: big.NewInt(block),
		TxHash:      txHash,
		Logs:        logs,
	}
}
