package chain

import (
	"context"
	"fmt"
	"math/big"

	"celo-quiz-settlement/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// PaymentVerifier confirms payForQuiz transactions by their PaymentReceived event.
type PaymentVerifier struct {
	client        EVMClient
	contract      common.Address
	confirmations uint64
}

func NewPaymentVerifier(client EVMClient, contract common.Address, confirmations uint64) *PaymentVerifier {
	return &PaymentVerifier{client: client, contract: contract, confirmations: confirmations}
}

// PaymentStatus reports on the transaction ref sent by player. RPC errors are
// returned as errors; a malformed or unrelated transaction is a failed payment.
func (v *PaymentVerifier) PaymentStatus(ctx context.Context, ref string, player common.Address) (domain.PaymentReceipt, error) {
	txHash, err := ParseTxHash(ref)
	if err != nil {
		return failedPayment(ref, err.Error()), nil
	}
	receipt, err := receiptFor(ctx, v.client, txHash)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}
	if receipt == nil {
		return domain.PaymentReceipt{Status: domain.ConfirmationPending, Reference: ref}, nil
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return failedPayment(ref, "transaction reverted"), nil
	}
	ok, err := hasConfirmations(ctx, v.client, receipt, v.confirmations)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}
	if !ok {
		return domain.PaymentReceipt{Status: domain.ConfirmationPending, Reference: ref}, nil
	}

	amount, paymentHash, found, err := v.paymentEvent(receipt, player)
	if err != nil {
		return domain.PaymentReceipt{}, err
	}
	if !found {
		return failedPayment(ref, fmt.Sprintf("no PaymentReceived event for %s", player.Hex())), nil
	}
	return domain.PaymentReceipt{
		Status:      domain.ConfirmationConfirmed,
		Amount:      amount,
		Reference:   ref,
		PaymentHash: paymentHash,
	}, nil
}

// paymentEvent decodes the amount and contract payment hash of player's PaymentReceived log.
func (v *PaymentVerifier) paymentEvent(receipt *gethtypes.Receipt, player common.Address) (*big.Int, common.Hash, bool, error) {
	event := paymentABI.Events["PaymentReceived"]
	for _, log := range receipt.Logs {
		if log == nil || log.Address != v.contract {
			continue
		}
		if len(log.Topics) < 2 || log.Topics[0] != event.ID {
			continue
		}
		if common.BytesToAddress(log.Topics[1].Bytes()) != player {
			continue
		}
		values, err := paymentABI.Unpack("PaymentReceived", log.Data)
		if err != nil {
			return nil, common.Hash{}, false, fmt.Errorf("decode PaymentReceived: %w", err)
		}
		if len(values) != 2 {
			return nil, common.Hash{}, false, fmt.Errorf("decode PaymentReceived: got %d values", len(values))
		}
		amount, ok := values[0].(*big.Int)
		if !ok {
			return nil, common.Hash{}, false, fmt.Errorf("decode PaymentReceived: unexpected amount type %T", values[0])
		}
		hash, ok := values[1].([32]byte)
		if !ok {
			return nil, common.Hash{}, false, fmt.Errorf("decode PaymentReceived: unexpected hash type %T", values[1])
		}
		return amount, common.Hash(hash), true, nil
	}
	return nil, common.Hash{}, false, nil
}

func failedPayment(ref, reason string) domain.PaymentReceipt {
	return domain.PaymentReceipt{Status: domain.ConfirmationFailed, Reference: ref, Reason: reason}
}
