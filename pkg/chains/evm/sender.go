package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/chains/codec"
	"github.com/knotx/relayer/pkg/rpcpool"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	receiptPollInterval = 3 * time.Second
	receiptWaitTimeout  = 2 * time.Minute
)

// TransactionBuilder packs and signs the chain-specific delivery
// transaction for one relay message. The default implementation calls the
// gateway's executeMessage method; custom gateway surfaces plug their own.
type TransactionBuilder interface {
	BuildTransaction(ctx context.Context, client *ethclient.Client, msg *types.RelayMessage) (*ethtypes.Transaction, error)
}

type executeTxBuilder struct {
	config      *NetworkConfig
	key         *ecdsa.PrivateKey
	from        common.Address
	gatewayAddr common.Address
}

func (b *executeTxBuilder) BuildTransaction(ctx context.Context, client *ethclient.Client, msg *types.RelayMessage) (*ethtypes.Transaction, error) {
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
	input, err := gatewayABI.Pack("executeMessage",
		uint32(msg.SourceChain), srcGateway, receiver, msg.Nonce, msg.Payload, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeMessage calldata: %w", err)
	}

	nonce, err := client.PendingNonceAt(ctx, b.from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %w", err)
	}
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &b.gatewayAddr,
		Gas:      b.config.GasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signer := ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(b.config.EvmChainID))
	return ethtypes.SignTx(tx, signer, b.key)
}

// Sender delivers relay messages to one EVM gateway.
type Sender struct {
	*chains.SenderCore
	config  *NetworkConfig
	pool    *rpcpool.Pool[*ethclient.Client]
	builder TransactionBuilder
}

// NewSender builds a sender owning its own endpoint pool. A nil builder
// selects the default executeMessage builder, which requires a signing key
// in the network config.
func NewSender(cfg *NetworkConfig, endpoints []rpcpool.Endpoint, builder TransactionBuilder, observer chains.RetryObserver) (*Sender, error) {
	cfg.ApplyDefaults()
	chainID, err := cfg.ChainID()
	if err != nil {
		return nil, types.NewConfigurationError("evm sender: %v", err)
	}
	pool, err := newClientPool(fmt.Sprintf("%s-sender", cfg.Chain), endpoints)
	if err != nil {
		return nil, err
	}
	if builder == nil {
		if cfg.PrivateKey == "" {
			return nil, types.NewConfigurationError("no signing key configured for %s sender", cfg.Chain)
		}
		key, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			return nil, types.NewConfigurationError("invalid signing key for %s sender: %v", cfg.Chain, err)
		}
		builder = &executeTxBuilder{
			config:      cfg,
			key:         key,
			from:        crypto.PubkeyToAddress(key.PublicKey),
			gatewayAddr: common.HexToAddress(cfg.Gateway),
		}
	}
	return &Sender{
		SenderCore: chains.NewSenderCore(chainID, observer),
		config:     cfg,
		pool:       pool,
		builder:    builder,
	}, nil
}

// SendMessage performs a single delivery attempt: build and submit the
// executeMessage transaction, then wait for its receipt. On-chain execution
// failure is reported in the result, not as an error.
func (s *Sender) SendMessage(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	if s.builder == nil {
		return nil, types.NewConfigurationError("%s sender is not initialized", s.config.Chain)
	}
	txHash, err := rpcpool.ExecuteWithRotation(ctx, s.pool, 0,
		func(ctx context.Context, client *ethclient.Client) (common.Hash, error) {
			callCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
			defer cancel()
			tx, err := s.builder.BuildTransaction(callCtx, client, msg)
			if err != nil {
				return common.Hash{}, err
			}
			if err := client.SendTransaction(callCtx, tx); err != nil {
				return common.Hash{}, fmt.Errorf("failed to submit transaction: %w", err)
			}
			return tx.Hash(), nil
		})
	if err != nil {
		if types.IsConfigurationError(err) {
			return nil, err
		}
		return types.NewFailureResult(msg.MessageID, err), nil
	}
	log.Info().
		Str("chain", s.config.Chain).
		Str("messageId", msg.MessageID).
		Str("txHash", txHash.Hex()).
		Msg("[EvmSender] [SendMessage] delivery transaction submitted")

	receipt, err := s.waitReceipt(ctx, txHash)
	if err != nil {
		return types.NewFailureResult(msg.MessageID, err), nil
	}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		execErr := &types.ExecutionError{
			TxHash:      txHash.Hex(),
			GasUsed:     receipt.GasUsed,
			Cost:        receiptCost(receipt),
			Description: "gateway executeMessage reverted",
		}
		log.Error().
			Str("chain", s.config.Chain).
			Str("messageId", msg.MessageID).
			Str("txHash", txHash.Hex()).
			Uint64("gasUsed", receipt.GasUsed).
			Msg("[EvmSender] [SendMessage] delivery transaction reverted")
		return types.NewFailureResult(msg.MessageID, execErr), nil
	}
	return types.NewSuccessResult(msg.MessageID, txHash.Hex()), nil
}

// SendMessageWithRetry wraps SendMessage with the shared bounded retry.
func (s *Sender) SendMessageWithRetry(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	return s.SendWithRetry(ctx, msg, s.SendMessage)
}

// Close releases the sender's endpoint pool.
func (s *Sender) Close() {
	s.pool.Close()
}

// receiptCost reports the wei spent on a mined transaction. Some nodes omit
// effectiveGasPrice from the receipt payload.
func receiptCost(receipt *ethtypes.Receipt) string {
	if receipt.EffectiveGasPrice == nil {
		return "0"
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice).String()
}

func (s *Sender) waitReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(receiptWaitTimeout)
	for {
		receipt, err := rpcpool.ExecuteWithRotation(ctx, s.pool, 0,
			func(ctx context.Context, client *ethclient.Client) (*ethtypes.Receipt, error) {
				callCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
				defer cancel()
				r, err := client.TransactionReceipt(callCtx, txHash)
				if errors.Is(err, ethereum.NotFound) {
					return nil, nil
				}
				return r, err
			})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
		}
		if receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transaction %s not mined within %s", txHash.Hex(), receiptWaitTimeout)
		}
		select {
		case <-time.After(receiptPollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
