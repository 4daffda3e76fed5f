package casper

import (
	"encoding/hex"
	"fmt"

	"github.com/knotx/relayer/pkg/types"
)

// DeployDecoder turns one executed deploy into a canonical relay message.
// A (nil, nil) return means the deploy is not a gateway send and is skipped.
type DeployDecoder interface {
	Decode(deploy *getDeployResult) (*types.RelayMessage, error)
}

// GatewayDeployDecoder matches successful send_message calls against the
// configured gateway contract. The gateway assigns nonces sequentially, so
// the decoder tracks the next expected nonce from the value the listener
// reads at initialize time and advances it per observed send.
type GatewayDeployDecoder struct {
	gatewayHash string
	srcGateway  string
	nextNonce   uint64
}

func NewGatewayDeployDecoder(gateway string) *GatewayDeployDecoder {
	normalized := normalizeHash(gateway)
	return &GatewayDeployDecoder{
		gatewayHash: normalized,
		srcGateway:  normalized,
	}
}

// SeedNonce positions the nonce cursor; the listener calls it with the
// gateway's current nonce before watching new blocks.
func (d *GatewayDeployDecoder) SeedNonce(nonce uint64) {
	d.nextNonce = nonce
}

func (d *GatewayDeployDecoder) Decode(res *getDeployResult) (*types.RelayMessage, error) {
	session := res.Deploy.Session.StoredContractByHash
	if session == nil ||
		normalizeHash(session.Hash) != d.gatewayHash ||
		session.EntryPoint != "send_message" {
		return nil, nil
	}
	if !executedSuccessfully(res.ExecutionResults) {
		return nil, nil
	}

	args := make(map[string]clValueJSON, len(session.Args))
	for _, arg := range session.Args {
		args[arg.Name] = arg.Value
	}
	dstArg, ok := args["dst_chain_id"]
	if !ok {
		return nil, fmt.Errorf("send_message deploy %s has no dst_chain_id arg", res.Deploy.Hash)
	}
	dstRaw, err := parseU32(dstArg.Bytes)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", res.Deploy.Hash, err)
	}
	dstChain := types.ChainID(dstRaw)
	if !dstChain.IsSupported() {
		return nil, fmt.Errorf("deploy %s targets unsupported chain id %d", res.Deploy.Hash, dstRaw)
	}
	receiverArg, ok := args["receiver"]
	if !ok {
		return nil, fmt.Errorf("send_message deploy %s has no receiver arg", res.Deploy.Hash)
	}
	receiver, err := parseByteList(receiverArg.Bytes)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", res.Deploy.Hash, err)
	}
	payloadArg, ok := args["payload"]
	if !ok {
		return nil, fmt.Errorf("send_message deploy %s has no payload arg", res.Deploy.Hash)
	}
	payload, err := parseByteList(payloadArg.Bytes)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", res.Deploy.Hash, err)
	}

	nonce := d.nextNonce
	d.nextNonce++
	return types.NewRelayMessage(
		nonce,
		types.ChainCasper,
		dstChain,
		d.srcGateway,
		"0x"+hex.EncodeToString(receiver),
		payload,
	), nil
}

func executedSuccessfully(results []executionResultEntry) bool {
	for _, entry := range results {
		if entry.Result.Success != nil {
			return true
		}
	}
	return false
}
