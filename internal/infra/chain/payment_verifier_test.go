package chain

import (
	"context"
	"math/big"
	"testing"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	paymentContract = common.HexToAddress("0x1000000000000000000000000000000000000001")
	player          = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func paymentLog(t *testing.T, contract, from common.Address, amount *big.Int) *gethtypes.Log {
	t.Helper()
	event := paymentABI.Events["PaymentReceived"]
	data, err := event.Inputs.NonIndexed().Pack(amount, [32]byte{0x01})
	require.NoError(t, err)
	return &gethtypes.Log{
		Address: contract,
		Topics:  []common.Hash{event.ID, common.BytesToHash(from.Bytes())},
		Data:    data,
	}
}

func TestPaymentStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	verifier := NewPaymentVerifier(client, paymentContract, 3)

	txHash := common.HexToHash("0xabc1")
	ref := txHash.Hex()

	receipt, err := verifier.PaymentStatus(ctx, ref, player)
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationPending, receipt.Status)

	client.mine(txHash, 99, gethtypes.ReceiptStatusSuccessful, paymentLog(t, paymentContract, player, domain.DefaultQuizFee()))
	receipt, err = verifier.PaymentStatus(ctx, ref, player)
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationPending, receipt.Status, "two confirmations of three")

	client.head = 101
	receipt, err = verifier.PaymentStatus(ctx, ref, player)
	require.NoError(t, err)
	require.Equal(t, domain.ConfirmationConfirmed, receipt.Status)
	require.Zero(t, receipt.Amount.Cmp(domain.DefaultQuizFee()))
	require.Equal(t, ref, receipt.Reference)
	require.Equal(t, common.Hash{0x01}, receipt.PaymentHash, "contract payment hash from the event")
}

func TestPaymentStatusFailures(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	verifier := NewPaymentVerifier(client, paymentContract, 0)
	other := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	reverted := common.HexToHash("0x01")
	client.mine(reverted, 10, gethtypes.ReceiptStatusFailed)

	wrongPlayer := common.HexToHash("0x02")
	client.mine(wrongPlayer, 10, gethtypes.ReceiptStatusSuccessful, paymentLog(t, paymentContract, other, domain.DefaultQuizFee()))

	wrongContract := common.HexToHash("0x03")
	client.mine(wrongContract, 10, gethtypes.ReceiptStatusSuccessful, paymentLog(t, common.HexToAddress("0x09"), player, domain.DefaultQuizFee()))

	for name, ref := range map[string]string{
		"malformed":      "not-a-hash",
		"short":          "0x1234",
		"reverted":       reverted.Hex(),
		"wrong player":   wrongPlayer.Hex(),
		"wrong contract": wrongContract.Hex(),
	} {
		receipt, err := verifier.PaymentStatus(ctx, ref, player)
		require.NoError(t, err, name)
		require.Equal(t, domain.ConfirmationFailed, receipt.Status, name)
		require.NotEmpty(t, receipt.Reason, name)
	}
}
