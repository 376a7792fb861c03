package collector

import "time"

// Defaults for the aggregation parameters.
const (
	DefaultStaleAfter          = 20 * time.Second
	DefaultMaxBlockHistory     = 20
	DefaultMaxBackfillPerCycle = 6
	DefaultBlockDelayThreshold = 60 * time.Second
	DefaultFeeHistoryBlocks    = 10
	DefaultRampFactor          = 2.0
	DefaultSpikeMultiplier     = 1.2
)

// DefaultFeePercentiles is the reward percentile set requested from
// eth_feeHistory. The estimator's tier fallback chains operate on
// these values.
var DefaultFeePercentiles = []float64{10, 25, 50, 75, 90}

// Config holds the aggregation parameters of one monitored endpoint.
type Config struct {
	// Name identifies the endpoint in logs and metrics, e.g. "host".
	Name string `yaml:"name"`

	// RPCURL identifies the monitored node on the snapshot. Filled in
	// by the dashboard from the endpoint's RPC config.
	RPCURL string `yaml:"-"`

	// StaleAfter demotes Connected to Stale once the last successful
	// poll is older than this. Defaults to 20s.
	StaleAfter time.Duration `yaml:"stale_after"`

	// MaxBlockHistory bounds the recent blocks list. Defaults to 20.
	MaxBlockHistory int `yaml:"max_block_history"`

	// MaxBackfillPerCycle caps how many missed blocks one poll cycle
	// fetches, keeping per-cycle cost bounded under sustained block
	// production. Defaults to 6.
	MaxBackfillPerCycle uint64 `yaml:"max_backfill_per_cycle"`

	// BlockDelayThreshold is the render-time alert threshold for the
	// age of the newest observed block. Defaults to 60s.
	BlockDelayThreshold time.Duration `yaml:"block_delay_threshold"`

	// FeeHistoryBlocks is the eth_feeHistory sample size. Defaults
	// to 10.
	FeeHistoryBlocks uint64 `yaml:"fee_history_blocks"`

	// FeePercentiles is the reward percentile set requested from
	// eth_feeHistory. Defaults to {10, 25, 50, 75, 90}.
	FeePercentiles []float64 `yaml:"fee_percentiles"`

	// RampFactor scales a tier's priority fee into its max fee
	// headroom. Defaults to 2.0.
	RampFactor float64 `yaml:"ramp_factor"`

	// SpikeMultiplier is the render-time volatility alert threshold.
	// Defaults to 1.2.
	SpikeMultiplier float64 `yaml:"spike_multiplier"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.StaleAfter == 0 {
		c.StaleAfter = DefaultStaleAfter
	}

	if c.MaxBlockHistory <= 0 {
		c.MaxBlockHistory = DefaultMaxBlockHistory
	}

	if c.MaxBackfillPerCycle == 0 {
		c.MaxBackfillPerCycle = DefaultMaxBackfillPerCycle
	}

	if c.BlockDelayThreshold == 0 {
		c.BlockDelayThreshold = DefaultBlockDelayThreshold
	}

	if c.FeeHistoryBlocks == 0 {
		c.FeeHistoryBlocks = DefaultFeeHistoryBlocks
	}

	if len(c.FeePercentiles) == 0 {
		c.FeePercentiles = DefaultFeePercentiles
	}

	if c.RampFactor == 0 {
		c.RampFactor = DefaultRampFactor
	}

	if c.SpikeMultiplier == 0 {
		c.SpikeMultiplier = DefaultSpikeMultiplier
	}

	return c
}
