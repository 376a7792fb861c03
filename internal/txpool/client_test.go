package txpool

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func newJSONHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestCountShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *uint64
	}{
		{name: "bare array", body: `[{}, {}, {}]`, want: ptr(uint64(3))},
		{name: "items wrapper", body: `{"items": [{}, {}]}`, want: ptr(uint64(2))},
		{name: "data wrapper", body: `{"data": []}`, want: ptr(uint64(0))},
		{name: "resource wrapper", body: `{"transactions": [{}]}`, want: ptr(uint64(1))},
		{name: "snake case wrapper", body: `{"signed_orders": [{}, {}, {}, {}]}`, want: ptr(uint64(4))},
		{name: "unknown shape", body: `{"total": 7}`, want: nil},
		{name: "scalar body", body: `42`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/transactions", newJSONHandler(tt.body))

			server := newTestServer(t, mux)
			client := NewClient(testLog(), Config{
				Endpoint: server.URL,
				Timeout:  5 * time.Second,
			})

			count, err := client.CountTransactions(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestCountFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bundles", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	mux.HandleFunc("/signed-orders", newJSONHandler(`not json`))

	server := newTestServer(t, mux)
	client := NewClient(testLog(), Config{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	_, err := client.CountBundles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")

	_, err = client.CountSignedOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestListTransactions(t *testing.T) {
	body := `{
		"transactions": [
			{
				"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
				"from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
				"to": "0x2c6a8d4e696ac7f4b0a4e1d1e4d2a364a2e04bbf",
				"value": "0xde0b6b3a7640000",
				"nonce": 7,
				"gasLimit": "21000",
				"maxFeePerGas": "0x77359400",
				"maxPriorityFeePerGas": "0x5f5e100",
				"type": 2
			},
			{
				"hash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e",
				"from": "0x95222290dd7278aa3ddd389cc1e1d165cc4bafe5"
			}
		],
		"cursor": {
			"txnHash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e",
			"score": "1200000000",
			"globalTransactionScoreKey": "gts-77"
		}
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(body))

	server := newTestServer(t, mux)
	client := NewClient(testLog(), Config{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	page, err := client.ListTransactions(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, page.Transactions, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.Cursor)
	assert.Equal(t, "gts-77", page.Cursor.GlobalTransactionScoreKey)

	first := page.Transactions[0]
	assert.Equal(t, common.HexToAddress("0x71c7656ec7ab88b098defb751b7401b5f6d8976f"), first.From)
	require.NotNil(t, first.To)
	assert.Equal(t, common.HexToAddress("0x2c6a8d4e696ac7f4b0a4e1d1e4d2a364a2e04bbf"), *first.To)

	wei, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, wei, first.Value.BigInt())
	assert.Equal(t, big.NewInt(7), first.Nonce.BigInt())
	assert.Equal(t, big.NewInt(21000), first.GasLimit.BigInt())
	require.NotNil(t, first.Type)
	assert.Equal(t, uint8(2), *first.Type)

	second := page.Transactions[1]
	assert.Nil(t, second.To)
	assert.Nil(t, second.Value)
}

func TestListTransactionsBareArray(t *testing.T) {
	body := `[
		{"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"}
	]`

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(body))

	server := newTestServer(t, mux)
	client := NewClient(testLog(), Config{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	page, err := client.ListTransactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.Cursor)
}

func TestListTransactionsDropsMalformedRows(t *testing.T) {
	// The middle row has no sender and the last one carries invalid
	// hex; both are dropped without failing the fetch.
	body := `{"transactions": [
		{"hash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
		 "from": "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"},
		{"hash": "0x4a1b3e05cbf0a5260e88f7cfb21ef4fb90ac2b79cc335b0e26a4a9bdfdd50c7e"},
		{"from": "0xnothex"}
	]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", newJSONHandler(body))

	server := newTestServer(t, mux)
	client := NewClient(testLog(), Config{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	page, err := client.ListTransactions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t,
		common.HexToAddress("0x71c7656ec7ab88b098defb751b7401b5f6d8976f"),
		page.Transactions[0].From,
	)
}

func TestListTransactionsCursorParams(t *testing.T) {
	var gotQuery map[string][]string

	mux := http.NewServeMux()
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	server := newTestServer(t, mux)
	client := NewClient(testLog(), Config{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	cursor := &Cursor{
		TxnHash:                   "0xabc",
		Score:                     NewQuantity(1200),
		GlobalTransactionScoreKey: "gts-77",
	}

	_, err := client.ListTransactions(context.Background(), cursor)
	require.NoError(t, err)

	assert.Equal(t, []string{"0xabc"}, gotQuery["txnHash"])
	assert.Equal(t, []string{"1200"}, gotQuery["score"])
	assert.Equal(t, []string{"gts-77"}, gotQuery["globalTransactionScoreKey"])
}

func ptr[T any](v T) *T {
	return &v
}
