package casper

import (
	"context"
	"fmt"
	"time"

	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/rpcpool"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

// Listener watches the Casper gateway for executed send_message deploys and
// emits the decoded canonical messages.
type Listener struct {
	*chains.ListenerCore
	config     *NetworkConfig
	client     *Client
	decoder    DeployDecoder
	seeder     *GatewayDeployDecoder
	lastHeight uint64
}

// NewListener builds a listener owning its own endpoint pool. A nil decoder
// selects the default send_message deploy decoder.
func NewListener(cfg *NetworkConfig, endpoints []rpcpool.Endpoint, decoder DeployDecoder) (*Listener, error) {
	cfg.ApplyDefaults()
	client, err := NewClient("casper-listener", endpoints)
	if err != nil {
		return nil, err
	}
	var seeder *GatewayDeployDecoder
	if decoder == nil {
		gatewayDecoder := NewGatewayDeployDecoder(cfg.Gateway)
		decoder = gatewayDecoder
		seeder = gatewayDecoder
	}
	return &Listener{
		ListenerCore: chains.NewListenerCore(types.ChainCasper),
		config:       cfg,
		client:       client,
		decoder:      decoder,
		seeder:       seeder,
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
	l.client.Close()
}

// connect confirms the node is reachable, positions the height cursor and
// seeds the decoder's nonce cursor from the gateway contract.
func (l *Listener) connect(ctx context.Context) error {
	status, err := l.client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach casper node: %w", err)
	}
	if status.LastAddedBlockInfo == nil {
		return fmt.Errorf("casper node has no chain head yet")
	}
	if l.config.StartHeight > 0 {
		l.lastHeight = l.config.StartHeight - 1
	} else {
		l.lastHeight = status.LastAddedBlockInfo.Height
	}
	if l.seeder != nil {
		nonce, err := l.client.GatewayNonce(ctx, l.config.Gateway)
		if err != nil {
			return fmt.Errorf("failed to seed gateway nonce: %w", err)
		}
		l.seeder.SeedNonce(nonce)
	}
	log.Info().
		Str("network", status.ChainspecName).
		Uint64("head", status.LastAddedBlockInfo.Height).
		Uint64("cursor", l.lastHeight).
		Msg("[CasperListener] [connect] connected to gateway network")
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
				log.Error().Err(err).Msg("[CasperListener] [watch] poll failed")
			}
		}
	}
}

// poll walks the blocks between the cursor and the current head, decoding
// every deploy that hit the gateway.
func (l *Listener) poll(ctx context.Context) error {
	head, err := l.client.LatestBlock(ctx)
	if err != nil {
		return err
	}
	for height := l.lastHeight + 1; height <= head.Header.Height; height++ {
		block, err := l.client.BlockAtHeight(ctx, height)
		if err != nil {
			return fmt.Errorf("failed to fetch block %d: %w", height, err)
		}
		for _, deployHash := range block.Body.DeployHashes {
			deploy, err := l.client.GetDeploy(ctx, deployHash)
			if err != nil {
				return fmt.Errorf("failed to fetch deploy %s: %w", deployHash, err)
			}
			msg, err := l.decoder.Decode(deploy)
			if err != nil {
				log.Error().Err(err).
					Str("deployHash", deployHash).
					Msg("[CasperListener] [poll] failed to decode gateway deploy")
				continue
			}
			if msg == nil {
				continue
			}
			log.Info().
				Str("messageId", msg.MessageID).
				Uint64("nonce", msg.Nonce).
				Str("destinationChain", msg.DestinationChain.String()).
				Msg("[CasperListener] [poll] observed gateway message")
			if !l.Emit(ctx, msg) {
				return nil
			}
		}
		l.lastHeight = height
	}
	return nil
}
