package collector

import "github.com/ethpandaops/watchoor/internal/ethrpc"

// History is a bounded newest-first block list backed by a fixed ring.
// Pushing a new front entry automatically evicts the oldest once the
// ring is full.
type History struct {
	buf   []ethrpc.BlockInfo
	head  int // index of the newest entry
	count int
}

// NewHistory creates a history bounded to the given number of blocks.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultMaxBlockHistory
	}

	return &History{buf: make([]ethrpc.BlockInfo, capacity)}
}

// PushFront inserts a block as the newest entry.
func (h *History) PushFront(block ethrpc.BlockInfo) {
	h.head = (h.head + 1) % len(h.buf)
	h.buf[h.head] = block

	if h.count < len(h.buf) {
		h.count++
	}
}

// Newest returns the most recent entry.
func (h *History) Newest() (ethrpc.BlockInfo, bool) {
	if h.count == 0 {
		return ethrpc.BlockInfo{}, false
	}

	return h.buf[h.head], true
}

// Len returns the number of stored blocks.
func (h *History) Len() int {
	return h.count
}

// Blocks returns a copy of the entries, newest first.
func (h *History) Blocks() []ethrpc.BlockInfo {
	out := make([]ethrpc.BlockInfo, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head-i+len(h.buf))%len(h.buf)]
	}

	return out
}
