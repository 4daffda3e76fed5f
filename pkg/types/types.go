package types

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ChainID identifies a supported chain. The ids mirror the values registered
// in the gateway contracts' supported_chains dictionary.
type ChainID uint32

const (
	ChainEthereum ChainID = 1
	ChainBsc      ChainID = 2
	ChainCasper   ChainID = 3
)

var chainNames = map[ChainID]string{
	ChainEthereum: "ethereum",
	ChainBsc:      "bsc",
	ChainCasper:   "casper",
}

func (c ChainID) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chain|%d", uint32(c))
}

// IsSupported reports whether the chain id belongs to the closed set of
// chains the relayer knows how to talk to.
func (c ChainID) IsSupported() bool {
	_, ok := chainNames[c]
	return ok
}

// ChainIDFromName resolves a chain name used in config files to its id.
func ChainIDFromName(name string) (ChainID, error) {
	for id, n := range chainNames {
		if strings.EqualFold(n, name) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown chain name %q", name)
}

// RelayMessage is the canonical cross-chain envelope produced by a listener
// and consumed by exactly one sender. It is immutable after creation;
// de-duplication of re-observed events is the destination gateway's job via
// the nonce check.
type RelayMessage struct {
	MessageID          string    `json:"messageId"`
	Nonce              uint64    `json:"nonce"`
	SourceChain        ChainID   `json:"sourceChain"`
	DestinationChain   ChainID   `json:"destinationChain"`
	SourceGateway      string    `json:"sourceGateway"`
	DestinationGateway string    `json:"destinationGateway"`
	Payload            []byte    `json:"payload"`
	PayloadHash        string    `json:"payloadHash"`
	Timestamp          time.Time `json:"timestamp"`
}

// NewRelayMessage assigns the message id, payload hash and creation timestamp.
// Listeners must build messages through this constructor so the
// payloadHash == hash(payload) invariant holds for the message's lifetime.
func NewRelayMessage(nonce uint64, srcChain, dstChain ChainID, srcGateway, dstGateway string, payload []byte) *RelayMessage {
	return &RelayMessage{
		MessageID:          uuid.NewString(),
		Nonce:              nonce,
		SourceChain:        srcChain,
		DestinationChain:   dstChain,
		SourceGateway:      srcGateway,
		DestinationGateway: dstGateway,
		Payload:            payload,
		PayloadHash:        HashPayload(payload),
		Timestamp:          time.Now().UTC(),
	}
}

// HashPayload returns the hex encoded blake2b-256 digest of the payload,
// the same digest family the gateway contracts use for message keys.
func HashPayload(payload []byte) string {
	digest := blake2b.Sum256(payload)
	return "0x" + hex.EncodeToString(digest[:])
}

// VerifyPayloadHash re-computes the payload digest and compares it against
// the stored one.
func (m *RelayMessage) VerifyPayloadHash() bool {
	return m.PayloadHash == HashPayload(m.Payload)
}

// RelayResult is the terminal outcome of one delivery attempt sequence for a
// RelayMessage. Exactly one result is produced per call to the retrying send
// operation, not per individual attempt.
type RelayResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId"`
	TxHash    string    `json:"transactionHash,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSuccessResult records a delivered message with its transaction hash.
func NewSuccessResult(messageID, txHash string) *RelayResult {
	return &RelayResult{
		Success:   true,
		MessageID: messageID,
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
	}
}

// NewFailureResult records a terminally failed delivery.
func NewFailureResult(messageID string, err error) *RelayResult {
	return &RelayResult{
		Success:   false,
		MessageID: messageID,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}
