package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainID(t *testing.T) {
	assert.Equal(t, "ethereum", ChainEthereum.String())
	assert.Equal(t, "bsc", ChainBsc.String())
	assert.Equal(t, "casper", ChainCasper.String())
	assert.Equal(t, "chain|42", ChainID(42).String())

	assert.True(t, ChainCasper.IsSupported())
	assert.False(t, ChainID(42).IsSupported())

	id, err := ChainIDFromName("Ethereum")
	require.NoError(t, err)
	assert.Equal(t, ChainEthereum, id)
	_, err = ChainIDFromName("solana")
	require.Error(t, err)
}

func TestNewRelayMessage(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	msg := NewRelayMessage(7, ChainCasper, ChainEthereum, "0xaa", "0xbb", payload)

	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, uint64(7), msg.Nonce)
	assert.Equal(t, ChainCasper, msg.SourceChain)
	assert.Equal(t, ChainEthereum, msg.DestinationChain)
	assert.Equal(t, HashPayload(payload), msg.PayloadHash)
	assert.True(t, msg.VerifyPayloadHash())
	assert.False(t, msg.Timestamp.IsZero())

	other := NewRelayMessage(7, ChainCasper, ChainEthereum, "0xaa", "0xbb", payload)
	assert.NotEqual(t, msg.MessageID, other.MessageID, "every message gets its own id")
}

func TestVerifyPayloadHashDetectsTampering(t *testing.T) {
	msg := NewRelayMessage(1, ChainEthereum, ChainCasper, "0xaa", "0xbb", []byte("hello"))
	msg.Payload = []byte("tampered")
	assert.False(t, msg.VerifyPayloadHash())
}

func TestRelayMessageJSONShape(t *testing.T) {
	msg := NewRelayMessage(9, ChainEthereum, ChainCasper, "0xaa", "0xbb", []byte{0x01})
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{
		"messageId", "nonce", "sourceChain", "destinationChain",
		"sourceGateway", "destinationGateway", "payload", "payloadHash", "timestamp",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.EqualValues(t, 1, decoded["sourceChain"])
	assert.EqualValues(t, 3, decoded["destinationChain"])

	var roundTripped RelayMessage
	require.NoError(t, json.Unmarshal(raw, &roundTripped))
	assert.Equal(t, *msg, roundTripped)
}

func TestRelayResults(t *testing.T) {
	success := NewSuccessResult("id-1", "0xhash")
	assert.True(t, success.Success)
	assert.Equal(t, "0xhash", success.TxHash)
	assert.Empty(t, success.Error)

	failure := NewFailureResult("id-2", errors.New("boom"))
	assert.False(t, failure.Success)
	assert.Equal(t, "boom", failure.Error)
	assert.Empty(t, failure.TxHash)
}

func TestErrorTaxonomy(t *testing.T) {
	cfgErr := NewConfigurationError("missing %s", "key")
	assert.True(t, IsConfigurationError(cfgErr))
	assert.True(t, IsConfigurationError(fmt.Errorf("wrap: %w", cfgErr)))
	assert.False(t, IsConfigurationError(errors.New("other")))

	rtErr := NewRetryableError(errors.New("rate limit"))
	assert.True(t, IsRetryableError(rtErr))
	assert.ErrorContains(t, rtErr, "rate limit")
	assert.False(t, IsRetryableError(cfgErr))

	exErr := &ExecutionError{TxHash: "0xabc", GasUsed: 21000, Cost: "100", Description: "reverted"}
	assert.True(t, IsExecutionError(fmt.Errorf("deliver: %w", exErr)))
	assert.Contains(t, exErr.Error(), "reverted")
	assert.Contains(t, exErr.Error(), "0xabc")
}
