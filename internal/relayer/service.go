package relayer

import (
	"context"
	"fmt"

	"github.com/knotx/relayer/config"
	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/chains/casper"
	"github.com/knotx/relayer/pkg/chains/evm"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

type closer interface{ Close() }

// Service wires the configured chain listeners and senders to the dispatcher
// and owns their lifecycle.
type Service struct {
	Dispatcher *Dispatcher
	Listeners  []chains.Listener
	senders    []closer
}

func NewService(cfg *config.Config) (*Service, error) {
	dispatcher := NewDispatcher(NewResultStore(0))
	service := &Service{Dispatcher: dispatcher}

	for i := range cfg.EvmNetworks {
		network := &cfg.EvmNetworks[i]
		endpoints, err := config.EndpointsFor(network.Chain)
		if err != nil {
			return nil, err
		}
		listener, err := evm.NewListener(network, endpoints, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create evm listener for %s: %w", network.Chain, err)
		}
		service.Listeners = append(service.Listeners, listener)

		sender, err := evm.NewSender(network, endpoints, nil, retryObserver)
		if err != nil {
			return nil, fmt.Errorf("failed to create evm sender for %s: %w", network.Chain, err)
		}
		dispatcher.RegisterSender(sender)
		service.senders = append(service.senders, sender)
	}

	if cfg.CasperNetwork != nil {
		endpoints, err := config.EndpointsFor(cfg.CasperNetwork.Chain)
		if err != nil {
			return nil, err
		}
		listener, err := casper.NewListener(cfg.CasperNetwork, endpoints, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create casper listener: %w", err)
		}
		service.Listeners = append(service.Listeners, listener)

		sender, err := casper.NewSender(cfg.CasperNetwork, endpoints, nil, retryObserver)
		if err != nil {
			return nil, fmt.Errorf("failed to create casper sender: %w", err)
		}
		dispatcher.RegisterSender(sender)
		service.senders = append(service.senders, sender)
	}

	if len(service.Listeners) == 0 {
		return nil, types.NewConfigurationError("no chain networks configured")
	}
	return service, nil
}

// Start brings every listener up and attaches it to the dispatcher. A
// listener that fails to start takes the whole service down; partial relaying
// would silently strand one direction of the bridge.
func (s *Service) Start(ctx context.Context) error {
	for _, listener := range s.Listeners {
		if err := listener.StartListening(ctx); err != nil {
			return fmt.Errorf("failed to start listener for %s: %w", listener.Chain(), err)
		}
		s.Dispatcher.AttachListener(ctx, listener)
	}
	log.Info().Int("listeners", len(s.Listeners)).Msg("[Relayer] [Start] service started")
	return nil
}

// Stop shuts listeners down first so their channels close, then waits for
// in-flight deliveries and releases the sender pools.
func (s *Service) Stop() {
	for _, listener := range s.Listeners {
		listener.StopListening()
	}
	s.Dispatcher.Wait()
	for _, sender := range s.senders {
		sender.Close()
	}
	log.Info().Msg("[Relayer] [Stop] service stopped")
}

func retryObserver(msg *types.RelayMessage, attempt uint, err error) {
	log.Warn().Err(err).
		Str("messageId", msg.MessageID).
		Uint("attempt", attempt).
		Msg("[Relayer] [retryObserver] delivery attempt failed, will retry")
}
