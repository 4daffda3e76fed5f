package evm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/knotx/relayer/pkg/types"
)

// EventDecoder turns one gateway log into a canonical relay message.
// The default implementation decodes the MessageSent event; deployments with
// a custom gateway surface can plug their own.
type EventDecoder interface {
	Decode(lg ethtypes.Log) (*types.RelayMessage, error)
}

type GatewayDecoder struct {
	srcChain   types.ChainID
	srcGateway string
}

func NewGatewayDecoder(srcChain types.ChainID, srcGateway string) *GatewayDecoder {
	return &GatewayDecoder{srcChain: srcChain, srcGateway: srcGateway}
}

func (d *GatewayDecoder) Decode(lg ethtypes.Log) (*types.RelayMessage, error) {
	event := gatewayABI.Events["MessageSent"]
	if len(lg.Topics) != 3 || lg.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not a MessageSent event")
	}
	// Indexed integers are left-padded to 32 bytes.
	nonce := binary.BigEndian.Uint64(lg.Topics[1][24:])
	dstChain := types.ChainID(binary.BigEndian.Uint32(lg.Topics[2][28:]))
	if !dstChain.IsSupported() {
		return nil, fmt.Errorf("unsupported destination chain id %d in MessageSent event", uint32(dstChain))
	}

	values, err := event.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack MessageSent data: %w", err)
	}
	receiver, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected receiver type in MessageSent event")
	}
	payload, ok := values[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type in MessageSent event")
	}

	return types.NewRelayMessage(
		nonce,
		d.srcChain,
		dstChain,
		d.srcGateway,
		"0x"+hex.EncodeToString(receiver),
		payload,
	), nil
}
