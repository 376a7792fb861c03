package txpool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Transaction is one row of the pool's transaction listing. Every
// field except Hash and From is optional on the wire.
type Transaction struct {
	Hash                 common.Hash     `json:"hash"`
	From                 common.Address  `json:"from"`
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

// Cursor is the continuation marker of the transaction listing. Its
// presence in a response means more rows are available.
type Cursor struct {
	TxnHash                   string    `json:"txnHash,omitempty"`
	Score                     *Quantity `json:"score,omitempty"`
	GlobalTransactionScoreKey string    `json:"globalTransactionScoreKey,omitempty"`
}

// TransactionPage is one page of the transaction listing.
type TransactionPage struct {
	Transactions []*Transaction

	// Cursor continues the listing when HasMore is true.
	Cursor  *Cursor
	HasMore bool
}

// Snapshot is the per-cycle aggregate over the pool service. Healthy
// and data completeness are orthogonal: an unhealthy snapshot still
// carries whatever sub-fetches succeeded.
type Snapshot struct {
	Healthy     bool
	LastUpdated time.Time

	// Error holds the first sub-fetch failure of the cycle, empty when
	// healthy.
	Error   string
	BaseURL string

	// Counts are nil when the sub-fetch failed or the response shape
	// was not recognized.
	TransactionsCount *uint64
	BundlesCount      *uint64
	SignedOrdersCount *uint64

	// Transactions holds up to MaxRows listing rows.
	Transactions []*Transaction
	HasMore      bool
}
