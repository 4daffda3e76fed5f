package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Gateway surface used by the relayer: the MessageSent event observed on the
// source side and the executeMessage method called on the destination side.
const gatewayABIJSON = `[
  {
    "type": "event",
    "name": "MessageSent",
    "inputs": [
      {"name": "nonce", "type": "uint64", "indexed": true},
      {"name": "dstChainId", "type": "uint32", "indexed": true},
      {"name": "receiver", "type": "bytes", "indexed": false},
      {"name": "payload", "type": "bytes", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "function",
    "name": "executeMessage",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "srcChainId", "type": "uint32"},
      {"name": "srcGateway", "type": "bytes"},
      {"name": "receiver", "type": "bytes"},
      {"name": "nonce", "type": "uint64"},
      {"name": "payload", "type": "bytes"},
      {"name": "signature", "type": "bytes"}
    ],
    "outputs": []
  }
]`

var gatewayABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(gatewayABIJSON))
	if err != nil {
		panic("invalid gateway abi: " + err.Error())
	}
	gatewayABI = parsed
}

// MessageSentEventID is the topic hash listeners filter gateway logs by.
func MessageSentEventID() string {
	return gatewayABI.Events["MessageSent"].ID.Hex()
}
