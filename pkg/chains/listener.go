package chains

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

type ListenerState int32

const (
	StateUninitialized ListenerState = iota
	StateInitializing
	StateListening
	StateStopped
)

func (s ListenerState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const defaultMessageBuffer = 64

// ListenerCore carries the lifecycle state machine and the emission channel
// shared by every chain listener. Adapters embed it and plug their own
// connect and watch logic into Start.
type ListenerCore struct {
	chain  types.ChainID
	state  atomic.Int32
	mu     sync.Mutex
	out    chan *types.RelayMessage
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed sync.Once
}

func NewListenerCore(chain types.ChainID) *ListenerCore {
	return &ListenerCore{
		chain: chain,
		out:   make(chan *types.RelayMessage, defaultMessageBuffer),
	}
}

func (c *ListenerCore) Chain() types.ChainID { return c.chain }

func (c *ListenerCore) State() ListenerState {
	return ListenerState(c.state.Load())
}

func (c *ListenerCore) IsListening() bool {
	return c.State() == StateListening
}

func (c *ListenerCore) Messages() <-chan *types.RelayMessage {
	return c.out
}

// RunInitialize drives Uninitialized -> Initializing. A failed connect
// reverts to Uninitialized and surfaces the error; calling it when already
// past Uninitialized is a no-op.
func (c *ListenerCore) RunInitialize(ctx context.Context, connect func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runInitializeLocked(ctx, connect)
}

func (c *ListenerCore) runInitializeLocked(ctx context.Context, connect func(ctx context.Context) error) error {
	state := c.State()
	if state == StateStopped {
		return types.NewConfigurationError("listener for %s is stopped", c.chain)
	}
	if state != StateUninitialized {
		return nil
	}
	c.state.Store(int32(StateInitializing))
	if err := connect(ctx); err != nil {
		c.state.Store(int32(StateUninitialized))
		return err
	}
	return nil
}

// Start drives the transition to Listening: a no-op when already listening,
// initializing first when needed, then running watch on its own goroutine
// until StopListening cancels it.
func (c *ListenerCore) Start(ctx context.Context, connect func(ctx context.Context) error, watch func(ctx context.Context)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.State() {
	case StateListening:
		log.Info().Str("chain", c.chain.String()).
			Msg("[ChainListener] [Start] already listening, nothing to do")
		return nil
	case StateStopped:
		return types.NewConfigurationError("listener for %s is stopped", c.chain)
	}
	if err := c.runInitializeLocked(ctx, connect); err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		watch(watchCtx)
	}()
	c.state.Store(int32(StateListening))
	log.Info().Str("chain", c.chain.String()).Msg("[ChainListener] [Start] listening")
	return nil
}

// Emit hands a message to the dispatcher side of the channel. It returns
// false once the watch context is cancelled so a stopping listener never
// blocks on a full channel.
func (c *ListenerCore) Emit(ctx context.Context, msg *types.RelayMessage) bool {
	select {
	case c.out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop synchronously cancels the watch loop and closes the emission channel.
// Safe to call multiple times and from any state.
func (c *ListenerCore) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()
	c.state.Store(int32(StateStopped))
	c.closed.Do(func() { close(c.out) })
	log.Info().Str("chain", c.chain.String()).Msg("[ChainListener] [Stop] stopped")
}
