package chains

import (
	"context"
	"errors"
	"testing"

	"github.com/knotx/relayer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() *types.RelayMessage {
	return types.NewRelayMessage(1, types.ChainCasper, types.ChainEthereum, "0xaa", "0xbb", []byte("payload"))
}

func TestSendWithRetrySuccessFirstAttempt(t *testing.T) {
	var observed []uint
	core := NewSenderCore(types.ChainEthereum, func(msg *types.RelayMessage, attempt uint, err error) {
		observed = append(observed, attempt)
	})
	msg := testMessage()
	calls := 0
	result, err := core.SendWithRetry(context.Background(), msg,
		func(ctx context.Context, m *types.RelayMessage) (*types.RelayResult, error) {
			calls++
			return types.NewSuccessResult(m.MessageID, "0xhash"), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, result.Success)
	assert.Equal(t, "0xhash", result.TxHash)
	assert.Empty(t, observed)
}

func TestSendWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	var observed []uint
	core := NewSenderCore(types.ChainEthereum, func(msg *types.RelayMessage, attempt uint, err error) {
		observed = append(observed, attempt)
	})
	msg := testMessage()
	calls := 0
	result, err := core.SendWithRetry(context.Background(), msg,
		func(ctx context.Context, m *types.RelayMessage) (*types.RelayResult, error) {
			calls++
			if calls < 3 {
				return types.NewFailureResult(m.MessageID, errors.New("nonce too low")), nil
			}
			return types.NewSuccessResult(m.MessageID, "0xhash"), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, result.Success)
	assert.Equal(t, []uint{1, 2}, observed, "observer fires once per failed attempt")
}

func TestSendWithRetryExhaustion(t *testing.T) {
	var observed []uint
	core := NewSenderCore(types.ChainEthereum, func(msg *types.RelayMessage, attempt uint, err error) {
		observed = append(observed, attempt)
	})
	msg := testMessage()
	calls := 0
	result, err := core.SendWithRetry(context.Background(), msg,
		func(ctx context.Context, m *types.RelayMessage) (*types.RelayResult, error) {
			calls++
			return nil, errors.New("connection refused")
		})
	require.NoError(t, err, "exhaustion yields a failed result, not an error")
	assert.Equal(t, SendMaxAttempts, calls)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "delivery failed after 3 attempts")
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, []uint{1, 2, 3}, observed)
}

func TestSendWithRetryConfigurationErrorAborts(t *testing.T) {
	core := NewSenderCore(types.ChainEthereum, nil)
	msg := testMessage()
	calls := 0
	result, err := core.SendWithRetry(context.Background(), msg,
		func(ctx context.Context, m *types.RelayMessage) (*types.RelayResult, error) {
			calls++
			return nil, types.NewConfigurationError("no signing key")
		})
	require.Error(t, err)
	assert.True(t, types.IsConfigurationError(err))
	assert.Nil(t, result)
	assert.Equal(t, 1, calls, "configuration errors are never retried")
}
