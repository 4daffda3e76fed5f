package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go"
)

// Classifier decides whether an error is worth another attempt.
// A nil classifier retries everything.
type Classifier func(err error) bool

// Observer is invoked once per failed attempt with the 1-based attempt
// number and the error that triggered the retry.
type Observer func(attempt uint, err error)

// Executor is a bounded-retry primitive with a fixed delay between attempts.
// The endpoint pool and the chain senders are both specializations of it,
// with different classifiers and delays.
type Executor struct {
	attempts   uint
	delay      time.Duration
	classifier Classifier
}

func NewExecutor(attempts uint, delay time.Duration, classifier Classifier) *Executor {
	if attempts == 0 {
		attempts = 1
	}
	return &Executor{
		attempts:   attempts,
		delay:      delay,
		classifier: classifier,
	}
}

// Execute runs op until it succeeds, the classifier rejects an error, or the
// attempt budget is exhausted. It returns the number of attempts actually
// made and, on exhaustion, the last underlying error. The delay between
// attempts is cancellable through ctx.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error, observer Observer) (uint, error) {
	var attempts uint
	err := retrygo.Do(
		func() error {
			attempts++
			return op(ctx)
		},
		retrygo.Attempts(e.attempts),
		retrygo.Delay(e.delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.Context(ctx),
		retrygo.RetryIf(func(err error) bool {
			if e.classifier == nil {
				return true
			}
			return e.classifier(err)
		}),
		retrygo.OnRetry(func(n uint, err error) {
			if observer != nil {
				observer(n+1, err)
			}
		}),
	)
	return attempts, err
}
