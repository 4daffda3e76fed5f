// Package codec builds the canonical message byte layout both gateway
// contracts verify before executing a delivery:
//
//	srcChainID u32 BE || dstChainID u32 BE || srcGateway || receiver || nonce u64 BE || payload
//
// The destination gateway checks a secp256k1 relayer signature over these
// bytes and rejects replays by the blake2b-256 message key.
package codec

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/knotx/relayer/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// DecodeHex parses a hex address/identifier, tolerating a 0x prefix.
func DecodeHex(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value %q: %w", value, err)
	}
	return raw, nil
}

// MessageBytes serializes a relay message into the canonical gateway layout.
func MessageBytes(msg *types.RelayMessage) ([]byte, error) {
	srcGateway, err := DecodeHex(msg.SourceGateway)
	if err != nil {
		return nil, fmt.Errorf("source gateway: %w", err)
	}
	receiver, err := DecodeHex(msg.DestinationGateway)
	if err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	out := make([]byte, 0, 4+4+len(srcGateway)+len(receiver)+8+len(msg.Payload))
	out = binary.BigEndian.AppendUint32(out, uint32(msg.SourceChain))
	out = binary.BigEndian.AppendUint32(out, uint32(msg.DestinationChain))
	out = append(out, srcGateway...)
	out = append(out, receiver...)
	out = binary.BigEndian.AppendUint64(out, msg.Nonce)
	out = append(out, msg.Payload...)
	return out, nil
}

// MessageKey is the hex blake2b-256 digest the gateways use for replay
// rejection.
func MessageKey(messageBytes []byte) string {
	digest := blake2b.Sum256(messageBytes)
	return hex.EncodeToString(digest[:])
}

// SignMessage produces the 64-byte secp256k1 relayer signature over the
// blake2b-256 digest of the canonical message bytes.
func SignMessage(messageBytes []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := blake2b.Sum256(messageBytes)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message bytes: %w", err)
	}
	// Drop the recovery id; the gateways verify plain (r, s).
	return sig[:64], nil
}

// VerifyMessageSignature checks a 64-byte signature against the uncompressed
// relayer public key (without the 0x04 prefix, as stored by the gateways).
func VerifyMessageSignature(messageBytes, signature, pubkey []byte) bool {
	if len(signature) != 64 || len(pubkey) != 64 {
		return false
	}
	digest := blake2b.Sum256(messageBytes)
	return crypto.VerifySignature(append([]byte{0x04}, pubkey...), digest[:], signature)
}
