package txpool

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBody = `{
	"transactions": [
		{"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"},
		{"hash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e",
		 "from": "0x95222290dd7278aa3ddd389cc1e1d165cc4bafe5"}
	],
	"cursor": {"txnHash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e"}
}`

func newAggregator(t *testing.T, mux *http.ServeMux, cfg Config) *Aggregator {
	t.Helper()

	server := newTestServer(t, mux)
	cfg.Endpoint = server.URL

	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return NewAggregator(testLog(), cfg)
}

func TestFetchSnapshotHealthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(listBody))
	mux.HandleFunc("/bundles", newJSONHandler(`{"bundles": [{}]}`))
	mux.HandleFunc("/signed-orders", newJSONHandler(`[]`))

	agg := newAggregator(t, mux, Config{MaxRows: 10})
	snap := agg.FetchSnapshot(context.Background())

	assert.True(t, snap.Healthy)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.LastUpdated.IsZero())

	require.NotNil(t, snap.TransactionsCount)
	assert.Equal(t, uint64(2), *snap.TransactionsCount)
	require.NotNil(t, snap.BundlesCount)
	assert.Equal(t, uint64(1), *snap.BundlesCount)
	require.NotNil(t, snap.SignedOrdersCount)
	assert.Equal(t, uint64(0), *snap.SignedOrdersCount)

	assert.Len(t, snap.Transactions, 2)
	assert.True(t, snap.HasMore)
}

func TestFetchSnapshotCountsDownListUp(t *testing.T) {
	// The counts all fail but the listing succeeds: the snapshot must
	// be unhealthy yet still carry the two fetched rows.
	var transactionCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, _ *http.Request) {
		if transactionCalls.Add(1) == 1 {
			http.Error(w, "cache down", http.StatusServiceUnavailable)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listBody))
	})
	mux.HandleFunc("/bundles", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cache down", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/signed-orders", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cache down", http.StatusServiceUnavailable)
	})

	agg := newAggregator(t, mux, Config{MaxRows: 10})
	snap := agg.FetchSnapshot(context.Background())

	assert.False(t, snap.Healthy)
	assert.Contains(t, snap.Error, "unexpected status 503")

	assert.Nil(t, snap.TransactionsCount)
	assert.Nil(t, snap.BundlesCount)
	assert.Nil(t, snap.SignedOrdersCount)

	assert.Len(t, snap.Transactions, 2)
}

func TestFetchSnapshotUnknownCountShape(t *testing.T) {
	// A recognized 2xx response with an unreadable shape is not an
	// error; the count is just unknown.
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(`{"total": 7}`))
	mux.HandleFunc("/bundles", newJSONHandler(`{"total": 1}`))
	mux.HandleFunc("/signed-orders", newJSONHandler(`{"total": 0}`))

	agg := newAggregator(t, mux, Config{DisableList: true})
	snap := agg.FetchSnapshot(context.Background())

	assert.True(t, snap.Healthy)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.TransactionsCount)
	assert.Nil(t, snap.BundlesCount)
	assert.Nil(t, snap.SignedOrdersCount)
}

func TestFetchSnapshotTruncatesRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(listBody))
	mux.HandleFunc("/bundles", newJSONHandler(`[]`))
	mux.HandleFunc("/signed-orders", newJSONHandler(`[]`))

	agg := newAggregator(t, mux, Config{MaxRows: 1})
	snap := agg.FetchSnapshot(context.Background())

	assert.Len(t, snap.Transactions, 1)
	// HasMore tracks the cursor, not the truncation.
	assert.True(t, snap.HasMore)
}

func TestFetchSnapshotContractFilter(t *testing.T) {
	body := `[
		{"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		 "to": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"hash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		 "to": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		{"hash": "0x6e78b69d33f5ac87c24a0b0f05a07581907ba034a829b837610c0187ecca8eef",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"}
	]`

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(body))
	mux.HandleFunc("/bundles", newJSONHandler(`[]`))
	mux.HandleFunc("/signed-orders", newJSONHandler(`[]`))

	agg := newAggregator(t, mux, Config{
		MaxRows: 10,
		// Filter casing is irrelevant; the third row is a deployment
		// (no to address) and can never match.
		FilterContracts: []string{"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
	})
	snap := agg.FetchSnapshot(context.Background())

	assert.True(t, snap.Healthy)
	require.Len(t, snap.Transactions, 1)
	require.NotNil(t, snap.Transactions[0].To)
	assert.Equal(t,
		common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		*snap.Transactions[0].To,
	)
}

func TestFetchSnapshotListDisabled(t *testing.T) {
	var transactionCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, _ *http.Request) {
		transactionCalls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/bundles", newJSONHandler(`[]`))
	mux.HandleFunc("/signed-orders", newJSONHandler(`[]`))

	agg := newAggregator(t, mux, Config{DisableList: true})
	snap := agg.FetchSnapshot(context.Background())

	assert.True(t, snap.Healthy)
	assert.Nil(t, snap.Transactions)
	assert.False(t, snap.HasMore)
	assert.Equal(t, int64(1), transactionCalls.Load())
}
