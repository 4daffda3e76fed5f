package relayer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/knotx/relayer/pkg/chains"
	"github.com/knotx/relayer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	*chains.ListenerCore
}

func newFakeListener(chain types.ChainID) *fakeListener {
	return &fakeListener{ListenerCore: chains.NewListenerCore(chain)}
}

func (l *fakeListener) Initialize(ctx context.Context) error {
	return l.RunInitialize(ctx, func(ctx context.Context) error { return nil })
}

func (l *fakeListener) StartListening(ctx context.Context) error {
	return l.Start(ctx,
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) { <-ctx.Done() })
}

func (l *fakeListener) StopListening() { l.Stop() }

func (l *fakeListener) emit(t *testing.T, msg *types.RelayMessage) {
	t.Helper()
	require.True(t, l.Emit(context.Background(), msg))
}

type fakeSender struct {
	chain     types.ChainID
	mu        sync.Mutex
	sent      []*types.RelayMessage
	result    func(msg *types.RelayMessage) (*types.RelayResult, error)
	delivered chan string
}

func newFakeSender(chain types.ChainID) *fakeSender {
	s := &fakeSender{chain: chain, delivered: make(chan string, 16)}
	s.result = func(msg *types.RelayMessage) (*types.RelayResult, error) {
		return types.NewSuccessResult(msg.MessageID, "0xhash"), nil
	}
	return s
}

func (s *fakeSender) Chain() types.ChainID { return s.chain }

func (s *fakeSender) SendMessage(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	return s.SendMessageWithRetry(ctx, msg)
}

func (s *fakeSender) SendMessageWithRetry(ctx context.Context, msg *types.RelayMessage) (*types.RelayResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	res, err := s.result(msg)
	s.delivered <- msg.MessageID
	return res, err
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func waitDelivered(t *testing.T, s *fakeSender) string {
	t.Helper()
	select {
	case id := <-s.delivered:
		return id
	case <-time.After(time.Second):
		t.Fatal("message never reached the sender")
		return ""
	}
}

func relayMessageTo(dst types.ChainID) *types.RelayMessage {
	return types.NewRelayMessage(1, types.ChainCasper, dst, "0xaa", "0xbb", []byte("payload"))
}

func TestDispatcherRoutesByDestinationChain(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	ethSender := newFakeSender(types.ChainEthereum)
	casperSender := newFakeSender(types.ChainCasper)
	dispatcher.RegisterSender(ethSender)
	dispatcher.RegisterSender(casperSender)

	listener := newFakeListener(types.ChainCasper)
	require.NoError(t, listener.StartListening(context.Background()))
	dispatcher.AttachListener(context.Background(), listener)

	msg := relayMessageTo(types.ChainEthereum)
	listener.emit(t, msg)

	assert.Equal(t, msg.MessageID, waitDelivered(t, ethSender))
	assert.Equal(t, 0, casperSender.sentCount())

	listener.StopListening()
	dispatcher.Wait()

	results := dispatcher.Results().Recent()
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, msg.MessageID, results[0].MessageID)
}

func TestDispatcherDropsUnroutableMessages(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	ethSender := newFakeSender(types.ChainEthereum)
	dispatcher.RegisterSender(ethSender)

	listener := newFakeListener(types.ChainCasper)
	require.NoError(t, listener.StartListening(context.Background()))
	dispatcher.AttachListener(context.Background(), listener)

	listener.emit(t, relayMessageTo(types.ChainBsc))
	routed := relayMessageTo(types.ChainEthereum)
	listener.emit(t, routed)

	assert.Equal(t, routed.MessageID, waitDelivered(t, ethSender))
	listener.StopListening()
	dispatcher.Wait()

	// Dropped messages never produce a RelayResult.
	results := dispatcher.Results().Recent()
	require.Len(t, results, 1)
	assert.Equal(t, routed.MessageID, results[0].MessageID)
}

func TestDispatcherRecordsFailures(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	sender := newFakeSender(types.ChainEthereum)
	sender.result = func(msg *types.RelayMessage) (*types.RelayResult, error) {
		return types.NewFailureResult(msg.MessageID, errors.New("delivery failed after 3 attempts")), nil
	}
	dispatcher.RegisterSender(sender)

	listener := newFakeListener(types.ChainCasper)
	require.NoError(t, listener.StartListening(context.Background()))
	dispatcher.AttachListener(context.Background(), listener)

	listener.emit(t, relayMessageTo(types.ChainEthereum))
	waitDelivered(t, sender)
	listener.StopListening()
	dispatcher.Wait()

	results := dispatcher.Results().Recent()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "delivery failed")

	delivered, failed := dispatcher.Results().Counts()
	assert.Equal(t, uint64(0), delivered)
	assert.Equal(t, uint64(1), failed)
}

func TestDispatcherRecordsSenderErrors(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	sender := newFakeSender(types.ChainEthereum)
	sender.result = func(msg *types.RelayMessage) (*types.RelayResult, error) {
		return nil, types.NewConfigurationError("no signing key")
	}
	dispatcher.RegisterSender(sender)

	listener := newFakeListener(types.ChainCasper)
	require.NoError(t, listener.StartListening(context.Background()))
	dispatcher.AttachListener(context.Background(), listener)

	listener.emit(t, relayMessageTo(types.ChainEthereum))
	waitDelivered(t, sender)
	listener.StopListening()
	dispatcher.Wait()

	results := dispatcher.Results().Recent()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "configuration error")
}
