package txpool

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Aggregator turns the four independent pool sub-fetches into a single
// Snapshot. Failures never escape FetchSnapshot: they are captured into
// the snapshot's Healthy/Error fields while partial data is retained.
type Aggregator struct {
	log       logrus.FieldLogger
	client    Client
	baseURL   string
	maxRows   int
	fetchList bool
	filter    map[common.Address]struct{}
}

// NewAggregator creates a pool aggregator for one service endpoint.
func NewAggregator(log logrus.FieldLogger, cfg Config) *Aggregator {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 10
	}

	log = log.WithField("component", "txpool")

	var filter map[common.Address]struct{}

	if len(cfg.FilterContracts) > 0 {
		filter = make(map[common.Address]struct{}, len(cfg.FilterContracts))

		for _, raw := range cfg.FilterContracts {
			if !common.IsHexAddress(raw) {
				log.WithField("address", raw).Warn("Ignoring invalid filter contract address")

				continue
			}

			filter[common.HexToAddress(raw)] = struct{}{}
		}
	}

	return &Aggregator{
		log:       log,
		client:    NewClient(log, cfg),
		baseURL:   cfg.Endpoint,
		maxRows:   maxRows,
		fetchList: !cfg.DisableList,
		filter:    filter,
	}
}

// FetchSnapshot runs the count and listing sub-fetches and folds the
// results into a snapshot. Healthy is true iff every sub-fetch
// succeeded; Error carries the first failure of the cycle.
func (a *Aggregator) FetchSnapshot(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Healthy: true,
		BaseURL: a.baseURL,
	}

	fail := func(stage string, err error) {
		a.log.WithError(err).WithField("stage", stage).Debug("Pool sub-fetch failed")

		snap.Healthy = false
		if snap.Error == "" {
			snap.Error = err.Error()
		}
	}

	if count, err := a.client.CountTransactions(ctx); err != nil {
		fail("transactions_count", err)
	} else {
		snap.TransactionsCount = count
	}

	if count, err := a.client.CountBundles(ctx); err != nil {
		fail("bundles_count", err)
	} else {
		snap.BundlesCount = count
	}

	if count, err := a.client.CountSignedOrders(ctx); err != nil {
		fail("signed_orders_count", err)
	} else {
		snap.SignedOrdersCount = count
	}

	if a.fetchList {
		if page, err := a.client.ListTransactions(ctx, nil); err != nil {
			fail("transactions_list", err)
		} else {
			rows := a.filterRows(page.Transactions)
			if len(rows) > a.maxRows {
				rows = rows[:a.maxRows]
			}

			snap.Transactions = rows
			snap.HasMore = page.HasMore
		}
	}

	snap.LastUpdated = time.Now()

	return snap
}

// filterRows applies the contract filter: only calls into one of the
// configured contracts survive. An empty filter keeps every row.
func (a *Aggregator) filterRows(rows []*Transaction) []*Transaction {
	if len(a.filter) == 0 {
		return rows
	}

	kept := make([]*Transaction, 0, len(rows))

	for _, tx := range rows {
		if tx.To == nil {
			continue
		}

		if _, ok := a.filter[*tx.To]; ok {
			kept = append(kept, tx)
		}
	}

	return kept
}
