package casper

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/knotx/relayer/pkg/chains/codec"
	"github.com/knotx/relayer/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// secp256k1 key algorithm tag used in Casper public key and signature hex
// encodings.
const secp256k1Tag = "02"

// Deploy is the wire shape account_put_deploy expects.
type Deploy struct {
	Hash      string          `json:"hash"`
	Header    DeployHeader    `json:"header"`
	Payment   *ExecutableItem `json:"payment"`
	Session   *ExecutableItem `json:"session"`
	Approvals []Approval      `json:"approvals"`
}

type DeployHeader struct {
	Account      string   `json:"account"`
	Timestamp    string   `json:"timestamp"`
	TTL          string   `json:"ttl"`
	GasPrice     uint64   `json:"gas_price"`
	BodyHash     string   `json:"body_hash"`
	Dependencies []string `json:"dependencies"`
	ChainName    string   `json:"chain_name"`
}

type Approval struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// ExecutableItem is either a ModuleBytes payment or a stored contract call.
type ExecutableItem struct {
	ModuleBytes          *ModuleBytesItem    `json:"ModuleBytes,omitempty"`
	StoredContractByHash *StoredContractItem `json:"StoredContractByHash,omitempty"`
}

type ModuleBytesItem struct {
	ModuleBytes string     `json:"module_bytes"`
	Args        []NamedArg `json:"args"`
}

type StoredContractItem struct {
	Hash       string     `json:"hash"`
	EntryPoint string     `json:"entry_point"`
	Args       []NamedArg `json:"args"`
}

// ToBytes serializes the item for the body hash: a variant tag followed by
// the item fields and its named args.
func (item *ExecutableItem) ToBytes() []byte {
	switch {
	case item.ModuleBytes != nil:
		raw, _ := hex.DecodeString(item.ModuleBytes.ModuleBytes)
		out := []byte{0}
		out = append(out, binary.LittleEndian.AppendUint32(nil, uint32(len(raw)))...)
		out = append(out, raw...)
		out = append(out, serializeArgs(item.ModuleBytes.Args)...)
		return out
	case item.StoredContractByHash != nil:
		hash, _ := hex.DecodeString(normalizeHash(item.StoredContractByHash.Hash))
		out := []byte{1}
		out = append(out, hash...)
		out = append(out, serializeString(item.StoredContractByHash.EntryPoint)...)
		out = append(out, serializeArgs(item.StoredContractByHash.Args)...)
		return out
	default:
		return nil
	}
}

func normalizeHash(value string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "hash-")
	return strings.ToLower(strings.TrimPrefix(trimmed, "0x"))
}

// DeployBuilder constructs the chain-specific delivery deploy for one relay
// message. The default implementation calls the gateway's execute_message
// entry point with a relayer signature over the canonical message bytes.
type DeployBuilder interface {
	BuildDeploy(msg *types.RelayMessage) (*Deploy, error)
}

type executeMessageDeployBuilder struct {
	config *NetworkConfig
	key    *ecdsa.PrivateKey
}

func (b *executeMessageDeployBuilder) BuildDeploy(msg *types.RelayMessage) (*Deploy, error) {
	messageBytes, err := codec.MessageBytes(msg)
	if err != nil {
		return nil, err
	}
	signature, err := codec.SignMessage(messageBytes, b.key)
	if err != nil {
		return nil, err
	}
	srcGateway, err := codec.DecodeHex(msg.SourceGateway)
	if err != nil {
		return nil, err
	}
	receiver, err := codec.DecodeHex(msg.DestinationGateway)
	if err != nil {
		return nil, err
	}

	paymentAmount, ok := new(big.Int).SetString(b.config.PaymentAmount, 10)
	if !ok {
		return nil, types.NewConfigurationError("invalid payment amount %q", b.config.PaymentAmount)
	}
	payment := &ExecutableItem{
		ModuleBytes: &ModuleBytesItem{
			ModuleBytes: "",
			Args: []NamedArg{
				{Name: "amount", Value: U512Value(paymentAmount)},
			},
		},
	}
	session := &ExecutableItem{
		StoredContractByHash: &StoredContractItem{
			Hash:       normalizeHash(b.config.Gateway),
			EntryPoint: "execute_message",
			Args: []NamedArg{
				{Name: "src_chain_id", Value: U32Value(uint32(msg.SourceChain))},
				{Name: "src_gateway", Value: ByteListValue(srcGateway)},
				{Name: "receiver", Value: ByteListValue(receiver)},
				{Name: "nonce", Value: U64Value(msg.Nonce)},
				{Name: "payload", Value: ByteListValue(msg.Payload)},
				{Name: "signature", Value: ByteListValue(signature)},
			},
		},
	}

	bodyHash := blake2b.Sum256(append(payment.ToBytes(), session.ToBytes()...))
	accountHex := secp256k1Tag + hex.EncodeToString(crypto.CompressPubkey(&b.key.PublicKey))
	header := DeployHeader{
		Account:      accountHex,
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		TTL:          b.config.DeployTTL.String(),
		GasPrice:     b.config.GasPrice,
		BodyHash:     hex.EncodeToString(bodyHash[:]),
		Dependencies: []string{},
		ChainName:    b.config.ChainName,
	}
	deployHash, err := header.hash()
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(deployHash, b.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign deploy: %w", err)
	}
	return &Deploy{
		Hash:    hex.EncodeToString(deployHash),
		Header:  header,
		Payment: payment,
		Session: session,
		Approvals: []Approval{{
			Signer:    accountHex,
			Signature: secp256k1Tag + hex.EncodeToString(sig[:64]),
		}},
	}, nil
}

// hash serializes the header fields and returns their blake2b-256 digest,
// which doubles as the deploy hash the approvals sign.
func (h *DeployHeader) hash() ([]byte, error) {
	account, err := hex.DecodeString(h.Account)
	if err != nil {
		return nil, fmt.Errorf("invalid account key %q: %w", h.Account, err)
	}
	bodyHash, err := hex.DecodeString(h.BodyHash)
	if err != nil {
		return nil, fmt.Errorf("invalid body hash %q: %w", h.BodyHash, err)
	}
	timestamp, err := time.Parse("2006-01-02T15:04:05.000Z", h.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid deploy timestamp %q: %w", h.Timestamp, err)
	}
	ttl, err := time.ParseDuration(h.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid deploy ttl %q: %w", h.TTL, err)
	}

	out := append([]byte{}, account...)
	out = binary.LittleEndian.AppendUint64(out, uint64(timestamp.UnixMilli()))
	out = binary.LittleEndian.AppendUint64(out, uint64(ttl.Milliseconds()))
	out = binary.LittleEndian.AppendUint64(out, h.GasPrice)
	out = append(out, bodyHash...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(h.Dependencies)))
	out = append(out, serializeString(h.ChainName)...)

	digest := blake2b.Sum256(out)
	return digest[:], nil
}
