package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Subsets of the payment and reward token contract ABIs this service touches.
const paymentContractABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "player", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "paymentHash", "type": "bytes32"}
    ],
    "name": "PaymentReceived",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "payForQuiz",
    "outputs": [{"internalType": "bytes32", "name": "", "type": "bytes32"}],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const tokenContractABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "player", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "score", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "paymentHash", "type": "bytes32"}
    ],
    "name": "TokensMinted",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "player", "type": "address"},
      {"internalType": "uint256", "name": "score", "type": "uint256"},
      {"internalType": "bytes32", "name": "paymentHash", "type": "bytes32"}
    ],
    "name": "mintReward",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	paymentABI = mustParseABI(paymentContractABI)
	tokenABI   = mustParseABI(tokenContractABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
