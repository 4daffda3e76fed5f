package relayer

import (
	"context"
	"sync"

	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/metrics"
	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes observed messages to the sender registered for their
// destination chain. Delivery is at-least-once with no durable queue: a
// message a listener has emitted but the dispatcher has not delivered is lost
// on shutdown.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[types.ChainID]chains.Sender
	results *ResultStore
	wg      sync.WaitGroup
}

func NewDispatcher(results *ResultStore) *Dispatcher {
	if results == nil {
		results = NewResultStore(0)
	}
	return &Dispatcher{
		senders: make(map[types.ChainID]chains.Sender),
		results: results,
	}
}

func (d *Dispatcher) RegisterSender(sender chains.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[sender.Chain()] = sender
	log.Info().Str("chain", sender.Chain().String()).
		Msg("[Dispatcher] [RegisterSender] sender registered")
}

func (d *Dispatcher) senderFor(chain types.ChainID) (chains.Sender, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sender, ok := d.senders[chain]
	return sender, ok
}

func (d *Dispatcher) Results() *ResultStore { return d.results }

// AttachListener consumes the listener's message channel until it is closed,
// spawning one delivery goroutine per message. Returns when the channel
// closes; in-flight deliveries are waited for by Wait.
func (d *Dispatcher) AttachListener(ctx context.Context, listener chains.Listener) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range listener.Messages() {
			metrics.MessagesObserved.WithLabelValues(msg.SourceChain.String()).Inc()
			d.dispatch(ctx, msg)
		}
		log.Info().Str("chain", listener.Chain().String()).
			Msg("[Dispatcher] [AttachListener] listener channel closed")
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *types.RelayMessage) {
	sender, ok := d.senderFor(msg.DestinationChain)
	if !ok {
		// No result is recorded for drops; they never reached a delivery
		// attempt.
		metrics.MessagesDropped.WithLabelValues(msg.DestinationChain.String()).Inc()
		log.Warn().
			Str("messageId", msg.MessageID).
			Str("sourceChain", msg.SourceChain.String()).
			Str("destinationChain", msg.DestinationChain.String()).
			Msg("[Dispatcher] [dispatch] no sender for destination chain, dropping message")
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(ctx, sender, msg)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, sender chains.Sender, msg *types.RelayMessage) {
	result, err := sender.SendMessageWithRetry(ctx, msg)
	if err != nil {
		metrics.MessagesFailed.WithLabelValues(msg.DestinationChain.String()).Inc()
		log.Error().Err(err).
			Str("messageId", msg.MessageID).
			Str("destinationChain", msg.DestinationChain.String()).
			Msg("[Dispatcher] [deliver] sender rejected message")
		d.results.Record(types.NewFailureResult(msg.MessageID, err))
		return
	}
	d.results.Record(result)
	if result.Success {
		metrics.MessagesRelayed.WithLabelValues(msg.DestinationChain.String()).Inc()
		log.Info().
			Str("messageId", msg.MessageID).
			Str("txHash", result.TxHash).
			Str("destinationChain", msg.DestinationChain.String()).
			Msg("[Dispatcher] [deliver] message relayed")
	} else {
		metrics.MessagesFailed.WithLabelValues(msg.DestinationChain.String()).Inc()
		log.Error().
			Str("messageId", msg.MessageID).
			Str("error", result.Error).
			Str("destinationChain", msg.DestinationChain.String()).
			Msg("[Dispatcher] [deliver] delivery failed")
	}
}

// Wait blocks until every attached listener channel has closed and all
// in-flight deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
