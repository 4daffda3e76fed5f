package relayer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/knotx/relayer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStoreNewestFirst(t *testing.T) {
	store := NewResultStore(4)
	for i := 0; i < 3; i++ {
		store.Record(types.NewSuccessResult(fmt.Sprintf("id-%d", i), "0xhash"))
	}
	recent := store.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "id-2", recent[0].MessageID)
	assert.Equal(t, "id-0", recent[2].MessageID)
}

func TestResultStoreRingOverwrite(t *testing.T) {
	store := NewResultStore(3)
	for i := 0; i < 5; i++ {
		store.Record(types.NewSuccessResult(fmt.Sprintf("id-%d", i), "0xhash"))
	}
	recent := store.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "id-4", recent[0].MessageID)
	assert.Equal(t, "id-2", recent[2].MessageID)
}

func TestResultStoreCounts(t *testing.T) {
	store := NewResultStore(0)
	store.Record(types.NewSuccessResult("a", "0x1"))
	store.Record(types.NewSuccessResult("b", "0x2"))
	store.Record(types.NewFailureResult("c", errors.New("boom")))

	delivered, failed := store.Counts()
	assert.Equal(t, uint64(2), delivered)
	assert.Equal(t, uint64(1), failed)
}

func TestResultStoreDefaultCapacity(t *testing.T) {
	store := NewResultStore(0)
	assert.Empty(t, store.Recent())
	store.Record(types.NewSuccessResult("a", "0x1"))
	assert.Len(t, store.Recent(), 1)
}
