package chains

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/knotx/relayer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopWatch(ctx context.Context) { <-ctx.Done() }

func TestListenerInitializeTransitions(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	assert.Equal(t, StateUninitialized, core.State())

	require.NoError(t, core.RunInitialize(context.Background(),
		func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateInitializing, core.State())

	// A second initialize is a no-op.
	calls := 0
	require.NoError(t, core.RunInitialize(context.Background(),
		func(ctx context.Context) error { calls++; return nil }))
	assert.Equal(t, 0, calls)
}

func TestListenerInitializeFailureReverts(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	err := core.RunInitialize(context.Background(),
		func(ctx context.Context) error { return errors.New("node unreachable") })
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, core.State())

	// The listener can be initialized again after a failed attempt.
	require.NoError(t, core.RunInitialize(context.Background(),
		func(ctx context.Context) error { return nil }))
	assert.Equal(t, StateInitializing, core.State())
}

func TestListenerStartIsIdempotent(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	connects := int32(0)
	connect := func(ctx context.Context) error {
		atomic.AddInt32(&connects, 1)
		return nil
	}
	require.NoError(t, core.Start(context.Background(), connect, noopWatch))
	assert.True(t, core.IsListening())

	require.NoError(t, core.Start(context.Background(), connect, noopWatch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&connects))

	core.Stop()
}

func TestListenerStartAfterInitialize(t *testing.T) {
	core := NewListenerCore(types.ChainCasper)
	require.NoError(t, core.RunInitialize(context.Background(),
		func(ctx context.Context) error { return nil }))

	connects := 0
	require.NoError(t, core.Start(context.Background(),
		func(ctx context.Context) error { connects++; return nil }, noopWatch))
	assert.Equal(t, 0, connects, "an initialized listener does not reconnect")
	core.Stop()
}

func TestListenerStopIsTerminal(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	require.NoError(t, core.Start(context.Background(),
		func(ctx context.Context) error { return nil }, noopWatch))

	core.Stop()
	assert.Equal(t, StateStopped, core.State())
	assert.False(t, core.IsListening())

	// Channel is closed, no further messages arrive.
	_, open := <-core.Messages()
	assert.False(t, open)

	err := core.Start(context.Background(),
		func(ctx context.Context) error { return nil }, noopWatch)
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))

	err = core.RunInitialize(context.Background(),
		func(ctx context.Context) error { return nil })
	require.Error(t, err)

	// Repeated stops are safe.
	core.Stop()
}

func TestListenerEmitAndStop(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	emitted := make(chan bool, 1)
	watch := func(ctx context.Context) {
		msg := types.NewRelayMessage(1, types.ChainEthereum, types.ChainCasper, "0xaa", "0xbb", nil)
		emitted <- core.Emit(ctx, msg)
		<-ctx.Done()
	}
	require.NoError(t, core.Start(context.Background(),
		func(ctx context.Context) error { return nil }, watch))

	select {
	case ok := <-emitted:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch loop never emitted")
	}

	msg, open := <-core.Messages()
	require.True(t, open)
	assert.Equal(t, uint64(1), msg.Nonce)

	core.Stop()
	_, open = <-core.Messages()
	assert.False(t, open)
}

func TestListenerEmitAbortsOnCancel(t *testing.T) {
	core := NewListenerCore(types.ChainEthereum)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Fill the buffer so Emit would block without the cancel path.
	for i := 0; i < defaultMessageBuffer; i++ {
		core.out <- types.NewRelayMessage(uint64(i), types.ChainEthereum, types.ChainCasper, "0xaa", "0xbb", nil)
	}
	ok := core.Emit(ctx, types.NewRelayMessage(99, types.ChainEthereum, types.ChainCasper, "0xaa", "0xbb", nil))
	assert.False(t, ok)
}
