package collector

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/watchoor/internal/ethrpc"
	"github.com/ethpandaops/watchoor/internal/export"
	"github.com/ethpandaops/watchoor/internal/fees"
	"github.com/ethpandaops/watchoor/internal/txpool"
)

// Collector aggregates one endpoint's raw, independently failing
// network calls into a single coherent snapshot. The snapshot is
// mutated only by Poll and CheckStaleness; readers always get a
// consistent copy.
type Collector struct {
	log    logrus.FieldLogger
	cfg    Config
	client ethrpc.Client
	pool   *txpool.Aggregator
	health *export.HealthMetrics

	mu      sync.RWMutex
	history *History
	snap    Snapshot
}

// New creates a collector for one endpoint. pool and health may be
// nil: pool aggregation and metrics are both optional.
func New(
	log logrus.FieldLogger,
	cfg Config,
	client ethrpc.Client,
	pool *txpool.Aggregator,
	health *export.HealthMetrics,
) *Collector {
	cfg = cfg.withDefaults()

	return &Collector{
		log:     log.WithField("component", "collector").WithField("endpoint", cfg.Name),
		cfg:     cfg,
		client:  client,
		pool:    pool,
		health:  health,
		history: NewHistory(cfg.MaxBlockHistory),
		snap: Snapshot{
			RPCURL:              cfg.RPCURL,
			ConnectionStatus:    ConnectionStatus{State: StateDisconnected},
			BlockDelayThreshold: cfg.BlockDelayThreshold,
			LastUpdated:         time.Now(),
		},
	}
}

// Name returns the endpoint's display name.
func (c *Collector) Name() string {
	return c.cfg.Name
}

// SpikeMultiplier returns the configured volatility alert threshold.
func (c *Collector) SpikeMultiplier() float64 {
	return c.cfg.SpikeMultiplier
}

// StaleAfter returns the silence window after which the endpoint is
// considered stale.
func (c *Collector) StaleAfter() time.Duration {
	return c.cfg.StaleAfter
}

// Snapshot returns a consistent copy of the current state.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snap

	return &snap
}

// Poll runs one collection cycle and returns the resulting snapshot.
// Failures never escape: each stage folds its error into the snapshot,
// and a stage can only demote the connection status, never resurrect
// it, so the status message always names the first failing stage.
func (c *Collector) Poll(ctx context.Context) *Snapshot {
	started := time.Now()
	next := c.Snapshot()

	// Chain id is the liveness probe: when it fails the remaining RPC
	// stages are skipped for this cycle.
	status := ConnectionStatus{State: StateConnected}

	if chainID, err := c.client.ChainID(ctx); err != nil {
		status = c.errorStatus("Chain ID", "chain_id", err)
	} else {
		next.ChainID = &chainID
	}

	if status.State == StateConnected {
		if blockNumber, err := c.client.BlockNumber(ctx); err != nil {
			status = c.errorStatus("Block number", "block_number", err)
		} else {
			next.BlockNumber = &blockNumber
		}
	}

	if status.State == StateConnected && next.BlockNumber != nil {
		c.backfill(ctx, next, *next.BlockNumber)
	}

	if status.State == StateConnected {
		if gasPrice, err := c.client.GasPrice(ctx); err != nil {
			status = c.errorStatus("Gas price", "gas_price", err)
		} else {
			next.GasPriceWei = gasPrice
		}
	}

	if status.State == StateConnected {
		c.collectFees(ctx, next)
	}

	// Peer count is informational: failure neither demotes the status
	// nor clears the last known value.
	if peers, err := c.client.PeerCount(ctx); err == nil {
		next.PeerCount = &peers
	} else {
		c.countError("peer_count")
	}

	next.ConnectionStatus = status
	next.LastUpdated = time.Now()

	if status.State == StateConnected {
		ok := next.LastUpdated
		next.LastSuccessful = &ok
	}

	if c.pool != nil {
		next.TxPool = c.pool.FetchSnapshot(ctx)
	}

	next.BlockHistory = c.history.Blocks()

	c.mu.Lock()
	c.snap = *next
	c.mu.Unlock()

	c.observePoll(next, started)

	return next
}

// CheckStaleness demotes Connected to Stale when the last successful
// poll is older than the configured threshold. It never transitions
// out of Disconnected or Error; recovery to Connected happens only
// inside Poll on the liveness probe succeeding.
func (c *Collector) CheckStaleness() {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.snap.ConnectionStatus.State
	if state != StateConnected && state != StateStale {
		return
	}

	if c.snap.LastSuccessful == nil {
		return
	}

	if time.Since(*c.snap.LastSuccessful) > c.cfg.StaleAfter {
		c.snap.ConnectionStatus = ConnectionStatus{State: StateStale}

		if state == StateConnected && c.health != nil {
			c.health.StaleTransitions.WithLabelValues(c.cfg.Name).Inc()
		}
	}
}

// backfill maintains the newest-first history: an empty history
// records just the latest block, otherwise the gap up to the latest
// block is fetched, capped to the newest MaxBackfillPerCycle numbers
// so one cycle never chases an unbounded backlog.
func (c *Collector) backfill(ctx context.Context, next *Snapshot, latest uint64) {
	var nums []uint64

	newest, ok := c.history.Newest()

	switch {
	case !ok:
		nums = []uint64{latest}
	case latest > newest.Number:
		start := newest.Number + 1
		if latest-start+1 > c.cfg.MaxBackfillPerCycle {
			start = latest - c.cfg.MaxBackfillPerCycle + 1
		}

		for num := latest; num >= start; num-- {
			nums = append(nums, num)
		}
	}

	if len(nums) == 0 {
		return
	}

	// Fetch newest-first so a truncated budget still covers the head.
	fetched := make([]ethrpc.BlockInfo, 0, len(nums))

	for _, num := range nums {
		block, err := c.client.BlockByNumber(ctx, num)
		if err != nil {
			// Best effort: an individual miss is skipped silently.
			c.log.WithError(err).WithField("block", num).Debug("Skipping unfetchable block")
			c.countError("block_fetch")

			continue
		}

		fetched = append(fetched, *block)

		if next.LatestBlockTimestampUnix == nil || block.Timestamp > *next.LatestBlockTimestampUnix {
			ts := block.Timestamp
			next.LatestBlockTimestampUnix = &ts
		}
	}

	// Insert oldest-first so the front stays strictly descending with
	// the newest block first.
	for i := len(fetched) - 1; i >= 0; i-- {
		c.history.PushFront(fetched[i])
	}

	if c.health != nil && len(fetched) > 0 {
		c.health.BlocksFetched.WithLabelValues(c.cfg.Name).Add(float64(len(fetched)))
	}
}

// collectFees refreshes the derived fee fields from a fresh
// eth_feeHistory sample. The calls are informational: failures clear
// the derived fields but never touch the connection status.
func (c *Collector) collectFees(ctx context.Context, next *Snapshot) {
	sample, err := c.client.FeeHistory(ctx, c.cfg.FeeHistoryBlocks, c.cfg.FeePercentiles)
	if err != nil {
		c.log.WithError(err).Debug("Fee history fetch failed")
		c.countError("fee_history")

		next.FeeHistory = nil
		next.BaseFeePerGas = nil
		next.NextBaseFeePerGas = nil
		next.SuggestedFees = nil
		next.GasUtilizationMovingAvgPct = nil
		next.GasVolatilityPct = nil
	} else {
		est := fees.Compute(sample, c.cfg.RampFactor)

		next.FeeHistory = sample
		next.BaseFeePerGas = est.BaseFee
		next.NextBaseFeePerGas = est.NextBaseFee
		next.SuggestedFees = &SuggestedFees{
			Safe:     est.Safe,
			Standard: est.Standard,
			Fast:     est.Fast,
		}
		next.GasUtilizationMovingAvgPct = est.UtilizationPct

		if est.Volatility != nil {
			pct := *est.Volatility * 100
			next.GasVolatilityPct = &pct
		} else {
			next.GasVolatilityPct = nil
		}
	}

	if tip, err := c.client.MaxPriorityFee(ctx); err != nil {
		c.log.WithError(err).Debug("Priority fee fetch failed")
		c.countError("priority_fee")

		next.MaxPriorityFeeSuggested = nil
	} else {
		next.MaxPriorityFeeSuggested = tip
	}
}

func (c *Collector) errorStatus(stage, metricStage string, err error) ConnectionStatus {
	c.log.WithError(err).WithField("stage", metricStage).Debug("Poll stage failed")
	c.countError(metricStage)

	return ConnectionStatus{
		State: StateError,
		Err:   fmt.Sprintf("%s: %v", stage, err),
	}
}

func (c *Collector) countError(stage string) {
	if c.health != nil {
		c.health.PollErrors.WithLabelValues(c.cfg.Name, stage).Inc()
	}
}

func (c *Collector) observePoll(next *Snapshot, started time.Time) {
	if c.health == nil {
		return
	}

	endpoint := c.cfg.Name
	status := strings.ToLower(next.ConnectionStatus.State.String())

	c.health.PollsTotal.WithLabelValues(endpoint, status).Inc()
	c.health.PollDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	c.health.BlockHistoryLength.WithLabelValues(endpoint).Set(float64(len(next.BlockHistory)))

	if next.BlockNumber != nil {
		c.health.BlockHeight.WithLabelValues(endpoint).Set(float64(*next.BlockNumber))
	}

	if next.GasPriceWei != nil {
		value, _ := new(big.Float).SetInt(next.GasPriceWei).Float64()
		c.health.GasPriceWei.WithLabelValues(endpoint).Set(value)
	}

	if next.NextBaseFeePerGas != nil {
		value, _ := new(big.Float).SetInt(next.NextBaseFeePerGas).Float64()
		c.health.NextBaseFeeWei.WithLabelValues(endpoint).Set(value)
	}

	if next.PeerCount != nil {
		c.health.PeerCount.WithLabelValues(endpoint).Set(float64(*next.PeerCount))
	}

	if next.TxPool != nil {
		healthy := 0.0
		if next.TxPool.Healthy {
			healthy = 1
		}

		c.health.PoolHealthy.WithLabelValues(endpoint).Set(healthy)

		setPoolItems := func(resource string, count *uint64) {
			if count != nil {
				c.health.PoolItems.WithLabelValues(endpoint, resource).Set(float64(*count))
			}
		}

		setPoolItems("transactions", next.TxPool.TransactionsCount)
		setPoolItems("bundles", next.TxPool.BundlesCount)
		setPoolItems("signed_orders", next.TxPool.SignedOrdersCount)
	}
}
