package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/watchoor/internal/ethrpc"
)

func historyNumbers(h *History) []uint64 {
	blocks := h.Blocks()

	nums := make([]uint64, len(blocks))
	for i, b := range blocks {
		nums[i] = b.Number
	}

	return nums
}

func TestHistoryPushFront(t *testing.T) {
	h := NewHistory(3)

	_, ok := h.Newest()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	h.PushFront(ethrpc.BlockInfo{Number: 100})
	h.PushFront(ethrpc.BlockInfo{Number: 101})

	newest, ok := h.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(101), newest.Number)
	assert.Equal(t, []uint64{101, 100}, historyNumbers(h))
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)

	for num := uint64(1); num <= 5; num++ {
		h.PushFront(ethrpc.BlockInfo{Number: num})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []uint64{5, 4, 3}, historyNumbers(h))

	newest, ok := h.Newest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), newest.Number)
}

func TestHistoryBlocksIsACopy(t *testing.T) {
	h := NewHistory(4)
	h.PushFront(ethrpc.BlockInfo{Number: 7})

	blocks := h.Blocks()
	blocks[0].Number = 999

	newest, _ := h.Newest()
	assert.Equal(t, uint64(7), newest.Number)
}
