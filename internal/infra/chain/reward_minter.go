package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RewardMinter signs and submits mintReward calls with the minter key.
type RewardMinter struct {
	client        EVMClient
	contract      common.Address
	key           *ecdsa.PrivateKey
	from          common.Address
	signer        gethtypes.Signer
	confirmations uint64

	// nonce assignment and submission must not interleave
	mu sync.Mutex
}

func NewRewardMinter(client EVMClient, contract common.Address, keyHex string, chainID *big.Int, confirmations uint64) (*RewardMinter, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("minter key: %w", err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id required")
	}
	return &RewardMinter{
		client:        client,
		contract:      contract,
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		signer:        gethtypes.LatestSignerForChainID(chainID),
		confirmations: confirmations,
	}, nil
}

// Address is the account mints are sent from.
func (m *RewardMinter) Address() common.Address {
	return m.from
}

// MintReward submits mintReward(player, score, paymentHash) and returns the transaction hash.
func (m *RewardMinter) MintReward(ctx context.Context, player common.Address, score int, paymentHash common.Hash) (string, error) {
	data, err := tokenABI.Pack("mintReward", player, big.NewInt(int64(score)), [32]byte(paymentHash))
	if err != nil {
		return "", fmt.Errorf("pack mintReward: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nonce, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	gas, err := m.client.EstimateGas(ctx, ethereum.CallMsg{From: m.from, To: &m.contract, Data: data})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &m.contract,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := gethtypes.SignTx(tx, m.signer, m.key)
	if err != nil {
		return "", fmt.Errorf("sign mint: %w", err)
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send mint: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// MintStatus reports on a submitted mint. A mined mint without a TokensMinted event counts as failed.
func (m *RewardMinter) MintStatus(ctx context.Context, ref string) (domain.ConfirmationStatus, error) {
	txHash, err := ParseTxHash(ref)
	if err != nil {
		return domain.ConfirmationFailed, nil
	}
	receipt, err := receiptFor(ctx, m.client, txHash)
	if err != nil {
		return "", err
	}
	if receipt == nil {
		return domain.ConfirmationPending, nil
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return domain.ConfirmationFailed, nil
	}
	ok, err := hasConfirmations(ctx, m.client, receipt, m.confirmations)
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.ConfirmationPending, nil
	}

	minted := tokenABI.Events["TokensMinted"].ID
	for _, log := range receipt.Logs {
		if log != nil && log.Address == m.contract && len(log.Topics) > 0 && log.Topics[0] == minted {
			return domain.ConfirmationConfirmed, nil
		}
	}
	return domain.ConfirmationFailed, nil
}
