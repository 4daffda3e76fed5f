package chains

import (
	"context"

	"github.com/knotx/relayer/pkg/types"
)

// Listener observes one chain's gateway activity and emits canonical relay
// messages. Implementations own their rpc endpoint pool and run an
// independent observation loop; they must not retain references to messages
// after emitting them.
type Listener interface {
	Chain() types.ChainID
	// Initialize establishes connectivity (the current chain head must be
	// reachable) before the listener may transition to Listening. On failure
	// the listener stays Uninitialized and the error surfaces to the caller.
	Initialize(ctx context.Context) error
	// StartListening is idempotent: a listener that is already Listening logs
	// and returns nil. An uninitialized listener initializes first.
	StartListening(ctx context.Context) error
	// StopListening is safe to call multiple times and from any state. It
	// synchronously cancels all pending waits and subscriptions; no message
	// is emitted after it returns.
	StopListening()
	IsListening() bool
	State() ListenerState
	// Messages is the listener's emission channel. It is closed by
	// StopListening.
	Messages() <-chan *types.RelayMessage
}

// Sender delivers relay messages as transactions on its destination chain.
type Sender interface {
	Chain() types.ChainID
	// SendMessage performs exactly one delivery attempt. Ordinary on-chain
	// execution failure is reported in the result, not as an error; errors
	// are reserved for configuration faults (no signing key, not
	// initialized).
	SendMessage(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error)
	// SendMessageWithRetry wraps SendMessage with a bounded retry: up to 3
	// attempts, 2 s apart. Idempotency under resubmission is delegated to
	// the destination gateway's nonce check.
	SendMessageWithRetry(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error)
}
