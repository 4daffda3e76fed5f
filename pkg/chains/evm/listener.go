package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/rpcpool"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

const rpcCallTimeout = 10 * time.Second

func dialClient(ctx context.Context, endpoint rpcpool.Endpoint) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
	defer cancel()
	rpcClient, err := rpc.DialContext(dialCtx, endpoint.RequestURL())
	if err != nil {
		return nil, fmt.Errorf("failed to dial evm endpoint %s: %w", endpoint.URL, err)
	}
	return ethclient.NewClient(rpcClient), nil
}

func newClientPool(role string, endpoints []rpcpool.Endpoint) (*rpcpool.Pool[*ethclient.Client], error) {
	return rpcpool.NewPool(role, endpoints, dialClient,
		rpcpool.WithCloseFunc(func(c *ethclient.Client) { c.Close() }))
}

// Listener watches one EVM gateway for MessageSent events by polling logs
// behind the chain's finality delay and emits the decoded canonical
// messages.
type Listener struct {
	*chains.ListenerCore
	config      *NetworkConfig
	pool        *rpcpool.Pool[*ethclient.Client]
	decoder     EventDecoder
	gatewayAddr common.Address
	lastBlock   uint64
}

// NewListener builds a listener owning its own endpoint pool. A nil decoder
// selects the default MessageSent decoder.
func NewListener(cfg *NetworkConfig, endpoints []rpcpool.Endpoint, decoder EventDecoder) (*Listener, error) {
	cfg.ApplyDefaults()
	chainID, err := cfg.ChainID()
	if err != nil {
		return nil, types.NewConfigurationError("evm listener: %v", err)
	}
	pool, err := newClientPool(fmt.Sprintf("%s-listener", cfg.Chain), endpoints)
	if err != nil {
		return nil, err
	}
	if decoder == nil {
		decoder = NewGatewayDecoder(chainID, cfg.Gateway)
	}
	return &Listener{
		ListenerCore: chains.NewListenerCore(chainID),
		config:       cfg,
		pool:         pool,
		decoder:      decoder,
		gatewayAddr:  common.HexToAddress(cfg.Gateway),
	}, nil
}

func (l *Listener) Initialize(ctx context.Context) error {
	return l.RunInitialize(ctx, l.connect)
}

func (l *Listener) StartListening(ctx context.Context) error {
	return l.Start(ctx, l.connect, l.watch)
}

func (l *Listener) StopListening() {
	l.ListenerCore.Stop()
	l.pool.Close()
}

// connect confirms the chain head is reachable and positions the log cursor.
func (l *Listener) connect(ctx context.Context) error {
	head, err := l.blockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach %s chain head: %w", l.config.Chain, err)
	}
	if l.config.StartBlock > 0 {
		l.lastBlock = l.config.StartBlock - 1
	} else {
		l.lastBlock = head
	}
	log.Info().
		Str("chain", l.config.Chain).
		Uint64("head", head).
		Uint64("cursor", l.lastBlock).
		Msg("[EvmListener] [connect] connected to gateway network")
	return nil
}

func (l *Listener) watch(ctx context.Context) {
	ticker := time.NewTicker(l.config.BlockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.poll(ctx); err != nil {
				log.Error().Err(err).
					Str("chain", l.config.Chain).
					Msg("[EvmListener] [watch] poll failed")
			}
		}
	}
}

// poll fetches gateway logs from the cursor up to the finality-delayed head
// and emits each decoded message.
func (l *Listener) poll(ctx context.Context) error {
	head, err := l.blockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= l.config.Finality {
		return nil
	}
	target := head - l.config.Finality
	if target <= l.lastBlock {
		return nil
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(l.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(target),
		Addresses: []common.Address{l.gatewayAddr},
		Topics:    [][]common.Hash{{gatewayABI.Events["MessageSent"].ID}},
	}
	logs, err := rpcpool.ExecuteWithRotation(ctx, l.pool, 0,
		func(ctx context.Context, client *ethclient.Client) ([]ethtypes.Log, error) {
			callCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
			defer cancel()
			return client.FilterLogs(callCtx, query)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch gateway logs: %w", err)
	}

	for _, lg := range logs {
		msg, err := l.decoder.Decode(lg)
		if err != nil {
			log.Error().Err(err).
				Str("chain", l.config.Chain).
				Str("txHash", lg.TxHash.Hex()).
				Uint("logIndex", lg.Index).
				Msg("[EvmListener] [poll] failed to decode gateway event")
			continue
		}
		log.Info().
			Str("chain", l.config.Chain).
			Str("messageId", msg.MessageID).
			Uint64("nonce", msg.Nonce).
			Str("destinationChain", msg.DestinationChain.String()).
			Msg("[EvmListener] [poll] observed gateway message")
		if !l.Emit(ctx, msg) {
			return nil
		}
	}
	l.lastBlock = target
	return nil
}

func (l *Listener) blockNumber(ctx context.Context) (uint64, error) {
	return rpcpool.ExecuteWithRotation(ctx, l.pool, 0,
		func(ctx context.Context, client *ethclient.Client) (uint64, error) {
			callCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
			defer cancel()
			return client.BlockNumber(callCtx)
		})
}
