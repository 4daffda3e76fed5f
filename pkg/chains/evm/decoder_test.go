package evm

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/knotx/relayer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageSentLog(t *testing.T, nonce uint64, dstChain uint32, receiver, payload []byte) ethtypes.Log {
	t.Helper()
	event := gatewayABI.Events["MessageSent"]
	data, err := event.Inputs.NonIndexed().Pack(receiver, payload)
	require.NoError(t, err)

	var nonceTopic, dstTopic common.Hash
	binary.BigEndian.PutUint64(nonceTopic[24:], nonce)
	binary.BigEndian.PutUint32(dstTopic[28:], dstChain)
	return ethtypes.Log{
		Topics: []common.Hash{event.ID, nonceTopic, dstTopic},
		Data:   data,
	}
}

func TestGatewayDecoderDecode(t *testing.T) {
	decoder := NewGatewayDecoder(types.ChainEthereum, "0x1111")
	receiver := []byte{0x22, 0x22}
	payload := []byte("cross chain payload")
	lg := messageSentLog(t, 42, uint32(types.ChainCasper), receiver, payload)

	msg, err := decoder.Decode(lg)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), msg.Nonce)
	assert.Equal(t, types.ChainEthereum, msg.SourceChain)
	assert.Equal(t, types.ChainCasper, msg.DestinationChain)
	assert.Equal(t, "0x1111", msg.SourceGateway)
	assert.Equal(t, "0x2222", msg.DestinationGateway)
	assert.Equal(t, payload, msg.Payload)
	assert.True(t, msg.VerifyPayloadHash())
}

func TestGatewayDecoderRejectsForeignLog(t *testing.T) {
	decoder := NewGatewayDecoder(types.ChainEthereum, "0x1111")
	_, err := decoder.Decode(ethtypes.Log{Topics: []common.Hash{{0x01}}})
	require.Error(t, err)
}

func TestGatewayDecoderRejectsUnsupportedChain(t *testing.T) {
	decoder := NewGatewayDecoder(types.ChainEthereum, "0x1111")
	lg := messageSentLog(t, 1, 99, []byte{0x01}, []byte{0x02})
	_, err := decoder.Decode(lg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported destination chain")
}

func TestMessageSentEventID(t *testing.T) {
	id := MessageSentEventID()
	assert.Len(t, id, 66)
	assert.Equal(t, gatewayABI.Events["MessageSent"].ID.Hex(), id)
}
