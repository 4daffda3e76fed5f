package chains

import (
	"context"
	"fmt"
	"time"

	"github.com/knotx/relayer/pkg/types"
	"github.com/knotx/relayer/pkg/utils/retry"
	"github.com/rs/zerolog/log"
)

const (
	SendMaxAttempts = 3
	SendRetryDelay  = 2 * time.Second
)

// RetryObserver is notified on every retried delivery attempt with the
// 1-based attempt number and the error that triggered the retry.
type RetryObserver func(msg *types.RelayMessage, attempt uint, err error)

// SenderCore wraps a chain-specific single-attempt send with the bounded
// retry policy shared by every sender. Each attempt is independent;
// idempotency under resubmission is the destination gateway's nonce check.
type SenderCore struct {
	chain    types.ChainID
	executor *retry.Executor
	observer RetryObserver
}

func NewSenderCore(chain types.ChainID, observer RetryObserver) *SenderCore {
	classifier := func(err error) bool {
		return !types.IsConfigurationError(err)
	}
	return &SenderCore{
		chain:    chain,
		executor: retry.NewExecutor(SendMaxAttempts, SendRetryDelay, classifier),
		observer: observer,
	}
}

func (s *SenderCore) Chain() types.ChainID { return s.chain }

// SendWithRetry drives send up to SendMaxAttempts times. A failed
// RelayResult counts as a failed attempt. Configuration errors abort
// immediately and propagate; retry exhaustion yields exactly one failed
// RelayResult wrapping the last underlying error.
func (s *SenderCore) SendWithRetry(ctx context.Context, msg *types.RelayMessage, send func(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error)) (*types.RelayResult, error) {
	var result *types.RelayResult
	attempts, err := s.executor.Execute(ctx, func(ctx context.Context) error {
		res, sendErr := send(ctx, msg)
		if sendErr != nil {
			return sendErr
		}
		if !res.Success {
			return fmt.Errorf("delivery attempt failed: %s", res.Error)
		}
		result = res
		return nil
	}, func(attempt uint, attemptErr error) {
		log.Warn().Err(attemptErr).
			Str("chain", s.chain.String()).
			Str("messageId", msg.MessageID).
			Uint("attempt", attempt).
			Msg("[ChainSender] [SendWithRetry] delivery attempt failed, retrying")
		if s.observer != nil {
			s.observer(msg, attempt, attemptErr)
		}
	})
	if err != nil {
		if types.IsConfigurationError(err) {
			return nil, err
		}
		return types.NewFailureResult(msg.MessageID,
			fmt.Errorf("delivery failed after %d attempts: %w", attempts, err)), nil
	}
	return result, nil
}
