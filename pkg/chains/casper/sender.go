package casper

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/rpcpool"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	deployPollInterval = 5 * time.Second
	deployWaitTimeout  = 3 * time.Minute
)

// Sender delivers relay messages to the Casper gateway as execute_message
// deploys.
type Sender struct {
	*chains.SenderCore
	config  *NetworkConfig
	client  *Client
	builder DeployBuilder
}

// NewSender builds a sender owning its own endpoint pool. A nil builder
// selects the default execute_message builder, which requires the relayer's
// secp256k1 key in the network config.
func NewSender(cfg *NetworkConfig, endpoints []rpcpool.Endpoint, builder DeployBuilder, observer chains.RetryObserver) (*Sender, error) {
	cfg.ApplyDefaults()
	client, err := NewClient("casper-sender", endpoints)
	if err != nil {
		return nil, err
	}
	if builder == nil {
		if cfg.PrivateKey == "" {
			return nil, types.NewConfigurationError("no signing key configured for casper sender")
		}
		key, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			return nil, types.NewConfigurationError("invalid signing key for casper sender: %v", err)
		}
		builder = &executeMessageDeployBuilder{config: cfg, key: key}
	}
	return &Sender{
		SenderCore: chains.NewSenderCore(types.ChainCasper, observer),
		config:     cfg,
		client:     client,
		builder:    builder,
	}, nil
}

// SendMessage performs a single delivery attempt: build the execute_message
// deploy, submit it and wait for its execution result. On-chain execution
// failure is reported in the result, not as an error.
func (s *Sender) SendMessage(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	if s.builder == nil {
		return nil, types.NewConfigurationError("casper sender is not initialized")
	}
	deploy, err := s.builder.BuildDeploy(msg)
	if err != nil {
		if types.IsConfigurationError(err) {
			return nil, err
		}
		return types.NewFailureResult(msg.MessageID, err), nil
	}
	deployHash, err := s.client.PutDeploy(ctx, deploy)
	if err != nil {
		return types.NewFailureResult(msg.MessageID, err), nil
	}
	log.Info().
		Str("messageId", msg.MessageID).
		Str("deployHash", deployHash).
		Msg("[CasperSender] [SendMessage] delivery deploy submitted")

	result, err := s.waitExecution(ctx, deployHash)
	if err != nil {
		return types.NewFailureResult(msg.MessageID, err), nil
	}
	if result.Failure != nil {
		execErr := &types.ExecutionError{
			TxHash:      deployHash,
			Cost:        result.Failure.Cost,
			Description: result.Failure.ErrorMessage,
		}
		log.Error().
			Str("messageId", msg.MessageID).
			Str("deployHash", deployHash).
			Str("cost", result.Failure.Cost).
			Str("error", result.Failure.ErrorMessage).
			Msg("[CasperSender] [SendMessage] delivery deploy failed on chain")
		return types.NewFailureResult(msg.MessageID, execErr), nil
	}
	return types.NewSuccessResult(msg.MessageID, deployHash), nil
}

// SendMessageWithRetry wraps SendMessage with the shared bounded retry.
func (s *Sender) SendMessageWithRetry(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	return s.SendWithRetry(ctx, msg, s.SendMessage)
}

// Close releases the sender's endpoint pool.
func (s *Sender) Close() {
	s.client.Close()
}

func (s *Sender) waitExecution(ctx context.Context, deployHash string) (*executionResult, error) {
	deadline := time.Now().Add(deployWaitTimeout)
	for {
		deploy, err := s.client.GetDeploy(ctx, deployHash)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch deploy %s: %w", deployHash, err)
		}
		for _, entry := range deploy.ExecutionResults {
			if entry.Result.Success != nil || entry.Result.Failure != nil {
				return &entry.Result, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("deploy %s not executed within %s", deployHash, deployWaitTimeout)
		}
		select {
		case <-time.After(deployPollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
