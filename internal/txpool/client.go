package txpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// countKeys are the wrapper keys the service is known to nest item
// arrays under when a response is not a bare array.
var countKeys = []string{
	"items",
	"data",
	"transactions",
	"bundles",
	"signedOrders",
	"signed_orders",
}

var errMissingSender = errors.New("transaction record has no sender address")

// Client defines the interface for interacting with a tx-pool web
// service.
type Client interface {
	// CountTransactions returns the number of cached transactions, or
	// nil when the response shape is not recognized.
	CountTransactions(ctx context.Context) (*uint64, error)
	// CountBundles returns the number of cached bundles, or nil when
	// the response shape is not recognized.
	CountBundles(ctx context.Context) (*uint64, error)
	// CountSignedOrders returns the number of cached signed orders, or
	// nil when the response shape is not recognized.
	CountSignedOrders(ctx context.Context) (*uint64, error)
	// ListTransactions fetches one page of transaction detail. A nil
	// cursor starts from the top of the listing. Malformed rows are
	// dropped individually.
	ListTransactions(ctx context.Context, cursor *Cursor) (*TransactionPage, error)
}

type client struct {
	log     logrus.FieldLogger
	baseURL string
	http    *http.Client
}

// NewClient creates a new pool service client.
func NewClient(log logrus.FieldLogger, cfg Config) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &client{
		log:     log.WithField("component", "txpool"),
		baseURL: strings.TrimRight(cfg.Endpoint, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *client) CountTransactions(ctx context.Context) (*uint64, error) {
	return c.count(ctx, "/transactions")
}

func (c *client) CountBundles(ctx context.Context) (*uint64, error) {
	return c.count(ctx, "/bundles")
}

func (c *client) CountSignedOrders(ctx context.Context) (*uint64, error) {
	return c.count(ctx, "/signed-orders")
}

func (c *client) count(ctx context.Context, path string) (*uint64, error) {
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", path, err)
	}

	return itemCount(payload), nil
}

// itemCount extracts the entry count from a body that is either a bare
// array or an object nesting an array under one of the known wrapper
// keys. Unrecognized shapes yield nil, not an error: the service
// answered, we just cannot read a count out of it.
func itemCount(payload any) *uint64 {
	switch v := payload.(type) {
	case []any:
		n := uint64(len(v))

		return &n
	case map[string]any:
		for _, key := range countKeys {
			if nested, ok := v[key].([]any); ok {
				n := uint64(len(nested))

				return &n
			}
		}
	}

	return nil
}

func (c *client) ListTransactions(ctx context.Context, cursor *Cursor) (*TransactionPage, error) {
	var query url.Values

	if cursor != nil {
		query = url.Values{}

		if cursor.TxnHash != "" {
			query.Set("txnHash", cursor.TxnHash)
		}

		if cursor.Score != nil && cursor.Score.Int != nil {
			query.Set("score", cursor.Score.Dec())
		}

		if cursor.GlobalTransactionScoreKey != "" {
			query.Set("globalTransactionScoreKey", cursor.GlobalTransactionScoreKey)
		}
	}

	body, err := c.get(ctx, "/transactions", query)
	if err != nil {
		return nil, err
	}

	rows, next, err := decodeListing(body)
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{
		Cursor:  next,
		HasMore: next != nil,
	}

	for _, raw := range rows {
		tx, err := decodeTransaction(raw)
		if err != nil {
			c.log.WithError(err).Debug("Dropping malformed pool transaction")

			continue
		}

		page.Transactions = append(page.Transactions, tx)
	}

	return page, nil
}

// decodeListing accepts either a bare array of rows or a wrapper
// object carrying the rows plus an optional continuation cursor.
func decodeListing(body []byte) ([]json.RawMessage, *Cursor, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil, nil
	}

	var wrapper struct {
		Transactions []json.RawMessage `json:"transactions"`
		Items        []json.RawMessage `json:"items"`
		Data         []json.RawMessage `json:"data"`
		Cursor       *Cursor           `json:"cursor"`
	}

	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("decoding response from /transactions: %w", err)
	}

	switch {
	case wrapper.Transactions != nil:
		rows = wrapper.Transactions
	case wrapper.Items != nil:
		rows = wrapper.Items
	case wrapper.Data != nil:
		rows = wrapper.Data
	}

	return rows, wrapper.Cursor, nil
}

func decodeTransaction(raw json.RawMessage) (*Transaction, error) {
	var wire struct {
		Hash                 *common.Hash    `json:"hash"`
		From                 *common.Address `json:"from"`
		To                   *common.Address `json:"to"`
		Value                *Quantity       `json:"value"`
		Nonce                *Quantity       `json:"nonce"`
		GasLimit             *Quantity       `json:"gasLimit"`
		GasPrice             *Quantity       `json:"gasPrice"`
		MaxFeePerGas         *Quantity       `json:"maxFeePerGas"`
		MaxPriorityFeePerGas *Quantity       `json:"maxPriorityFeePerGas"`
		Type                 *uint8          `json:"type"`
		Score                *Quantity       `json:"score"`
	}

	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	if wire.From == nil {
		return nil, errMissingSender
	}

	tx := &Transaction{
		From:                 *wire.From,
		To:                   wire.To,
		Value:                wire.Value,
		Nonce:                wire.Nonce,
		GasLimit:             wire.GasLimit,
		GasPrice:             wire.GasPrice,
		MaxFeePerGas:         wire.MaxFeePerGas,
		MaxPriorityFeePerGas: wire.MaxPriorityFeePerGas,
		Type:                 wire.Type,
		Score:                wire.Score,
	}

	if wire.Hash != nil {
		tx.Hash = *wire.Hash
	}

	return tx, nil
}

func (c *client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf(
			"unexpected status %d from %s: %s",
			resp.StatusCode,
			path,
			strings.TrimSpace(string(body)),
		)
	}

	return body, nil
}
