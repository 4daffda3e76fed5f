package rpcpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/knotx/relayer/pkg/types"
	"github.com/rs/zerolog/log"
)

const (
	// Fixed wait between rotation attempts after a retryable failure.
	DefaultRotationBackoff = time.Second
	// How long a failing endpoint stays out of rotation.
	DefaultQuarantineTTL = 5 * time.Minute
)

// Dialer constructs a chain client bound to one endpoint.
type Dialer[C any] func(ctx context.Context, endpoint Endpoint) (C, error)

// Pool hands out working chain clients on demand, rotating across its
// endpoints and quarantining the ones that are currently failing. A pool
// instance owns its rotation cursor and quarantine set exclusively; the safe
// default is one pool per logical connection role (one per listener, one per
// sender).
type Pool[C any] struct {
	name          string
	endpoints     []Endpoint
	dial          Dialer[C]
	closeClient   func(C)
	backoff       time.Duration
	quarantineTTL time.Duration

	mu          sync.Mutex
	cursor      int
	quarantined map[int]time.Time

	done      chan struct{}
	closeOnce sync.Once
}

type Option[C any] func(*Pool[C])

// WithRotationBackoff overrides the wait between rotation attempts.
func WithRotationBackoff[C any](d time.Duration) Option[C] {
	return func(p *Pool[C]) { p.backoff = d }
}

// WithQuarantineTTL overrides how long an endpoint stays quarantined.
func WithQuarantineTTL[C any](d time.Duration) Option[C] {
	return func(p *Pool[C]) { p.quarantineTTL = d }
}

// WithCloseFunc releases a client once the operation using it returns.
func WithCloseFunc[C any](closeFn func(C)) Option[C] {
	return func(p *Pool[C]) { p.closeClient = closeFn }
}

func NewPool[C any](name string, endpoints []Endpoint, dial Dialer[C], opts ...Option[C]) (*Pool[C], error) {
	if len(endpoints) == 0 {
		return nil, types.NewConfigurationError("no rpc endpoints configured for pool %s", name)
	}
	pool := &Pool[C]{
		name:          name,
		endpoints:     endpoints,
		dial:          dial,
		backoff:       DefaultRotationBackoff,
		quarantineTTL: DefaultQuarantineTTL,
		quarantined:   make(map[int]time.Time),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}
	go pool.sweepQuarantine()
	return pool, nil
}

// Size returns the number of configured endpoints, which is also the default
// attempt budget for ExecuteWithRotation.
func (p *Pool[C]) Size() int {
	return len(p.endpoints)
}

// QuarantinedCount reports how many endpoints are currently out of rotation.
func (p *Pool[C]) QuarantinedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, since := range p.quarantined {
		if time.Since(since) < p.quarantineTTL {
			count++
		}
	}
	return count
}

// Close stops the background quarantine sweeper.
func (p *Pool[C]) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// sweepQuarantine expires quarantine entries on a fixed interval so a
// transiently bad endpoint is retried periodically even under light load.
func (p *Pool[C]) sweepQuarantine() {
	ticker := time.NewTicker(p.quarantineTTL)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			for idx, since := range p.quarantined {
				if time.Since(since) >= p.quarantineTTL {
					delete(p.quarantined, idx)
					log.Debug().Str("pool", p.name).Int("endpoint", idx).
						Msg("[RpcPool] [sweepQuarantine] quarantine expired")
				}
			}
			p.mu.Unlock()
		}
	}
}

// nextEndpoint selects the next non-quarantined endpoint starting from the
// cursor, wrapping around. If every endpoint is quarantined the set is
// cleared entirely (fail-open) rather than deadlocking.
func (p *Pool[C]) nextEndpoint() (int, Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for offset := 0; offset < len(p.endpoints); offset++ {
		idx := (p.cursor + offset) % len(p.endpoints)
		since, bad := p.quarantined[idx]
		if bad && time.Since(since) >= p.quarantineTTL {
			delete(p.quarantined, idx)
			bad = false
		}
		if !bad {
			p.cursor = idx
			return idx, p.endpoints[idx]
		}
	}
	log.Warn().Str("pool", p.name).Int("endpoints", len(p.endpoints)).
		Msg("[RpcPool] [nextEndpoint] all endpoints quarantined, resetting quarantine set")
	p.quarantined = make(map[int]time.Time)
	idx := p.cursor % len(p.endpoints)
	p.cursor = idx
	return idx, p.endpoints[idx]
}

// markFailed quarantines the endpoint and advances the cursor past it.
func (p *Pool[C]) markFailed(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quarantined[idx] = time.Now()
	p.cursor = (idx + 1) % len(p.endpoints)
}

// ExecuteWithRotation runs op against a client bound to the currently
// selected endpoint, rotating to the next endpoint on retryable failures up
// to maxRetries attempts (the pool's endpoint count when maxRetries <= 0).
// The first successful attempt returns immediately; non-retryable errors
// propagate without rotating. On exhaustion the most recent error is
// returned, wrapped.
func ExecuteWithRotation[C, R any](ctx context.Context, p *Pool[C], maxRetries int, op func(ctx context.Context, client C) (R, error)) (R, error) {
	var zero R
	if maxRetries <= 0 {
		maxRetries = len(p.endpoints)
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		idx, endpoint := p.nextEndpoint()
		client, err := p.dial(ctx, endpoint)
		if err == nil {
			var result R
			result, err = op(ctx, client)
			if p.closeClient != nil {
				p.closeClient(client)
			}
			if err == nil {
				return result, nil
			}
		}
		if !Retryable(err) {
			return zero, err
		}
		lastErr = err
		p.markFailed(idx)
		log.Warn().Err(err).
			Str("pool", p.name).
			Str("endpoint", endpoint.URL).
			Int("attempt", attempt+1).
			Int("maxRetries", maxRetries).
			Msg("[RpcPool] [ExecuteWithRotation] endpoint failed, rotating")
		if attempt+1 < maxRetries {
			select {
			case <-time.After(p.backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, fmt.Errorf("all %d rpc attempts failed for pool %s: %w", maxRetries, p.name, lastErr)
}
