package fees

import (
	"math/big"

	"github.com/ethpandaops/watchoor/internal/ethrpc"
)

// Fallback chains per suggestion tier. Thin blocks can report zero or
// missing reward entries for a percentile, so each tier walks a chain
// of percentiles before giving up.
var (
	safeChain = []float64{25, 10, 50}
	fastChain = []float64{75, 90}
)

// Tier is one suggested fee level. The zero value means the tier could
// not be computed from the sample.
type Tier struct {
	PriorityFee *big.Int
	MaxFee      *big.Int
}

// Known reports whether the tier was computable this cycle.
func (t Tier) Known() bool {
	return t.PriorityFee != nil && t.MaxFee != nil
}

// Estimate holds the signals derived from one eth_feeHistory sample.
// Nil fields mean the sample was too short to derive them.
type Estimate struct {
	// BaseFee is the base fee of the newest sampled block.
	BaseFee *big.Int

	// NextBaseFee is the node's estimate for the next block, nil when
	// the sample has fewer than two base fee entries.
	NextBaseFee *big.Int

	// UtilizationPct is the mean gas-used ratio across the sample,
	// 0..100.
	UtilizationPct *float64

	// Volatility is the relative deviation of the newest base fee from
	// the sample average, e.g. 0.15 means 15% above average.
	Volatility *float64

	Safe     Tier
	Standard Tier
	Fast     Tier
}

// Spike reports whether volatility crosses the configured multiplier,
// i.e. 1 + volatility >= multiplier.
func (e *Estimate) Spike(multiplier float64) bool {
	return e.Volatility != nil && 1+*e.Volatility >= multiplier
}

// Compute derives all fee signals from one fee-history sample. Every
// field is recomputed from scratch; no state is carried between
// cycles, so the sample's length and shape may vary freely. A nil or
// empty sample yields a zero estimate.
func Compute(sample *ethrpc.FeeHistory, rampFactor float64) *Estimate {
	est := &Estimate{}
	if sample == nil {
		return est
	}

	// The base fee series carries one trailing entry for the next,
	// not yet mined block.
	switch n := len(sample.BaseFees); {
	case n >= 2:
		est.BaseFee = sample.BaseFees[n-2]
		est.NextBaseFee = sample.BaseFees[n-1]
	case n == 1:
		est.BaseFee = sample.BaseFees[0]
	}

	if len(sample.GasUsedRatio) > 0 {
		sum := 0.0
		for _, ratio := range sample.GasUsedRatio {
			sum += ratio
		}

		pct := sum / float64(len(sample.GasUsedRatio)) * 100
		est.UtilizationPct = &pct
	}

	est.Volatility = volatility(sample.BaseFees)

	safe := lastReward(sample, safeChain...)

	standard := lastReward(sample, 50)
	if standard == nil {
		standard = safe
	}

	fast := lastReward(sample, fastChain...)
	if fast == nil {
		fast = standard
	}

	est.Safe = newTier(safe, est.NextBaseFee, rampFactor)
	est.Standard = newTier(standard, est.NextBaseFee, rampFactor)
	est.Fast = newTier(fast, est.NextBaseFee, rampFactor)

	return est
}

// volatility compares the newest mined base fee against the average of
// the sample, both taken without the trailing next-block estimate.
// Needs at least two entries and a non-zero average.
func volatility(baseFees []*big.Int) *float64 {
	if len(baseFees) < 2 {
		return nil
	}

	sample := baseFees[:len(baseFees)-1]

	sum := 0.0

	for _, fee := range sample {
		if fee == nil {
			return nil
		}

		v, _ := new(big.Float).SetInt(fee).Float64()
		sum += v
	}

	avg := sum / float64(len(sample))
	if avg == 0 {
		return nil
	}

	latest, _ := new(big.Float).SetInt(sample[len(sample)-1]).Float64()
	vol := (latest - avg) / avg

	return &vol
}

// lastReward returns the newest block's reward for the first
// percentile in the chain that carries a usable value. Zero and
// missing values fall through to the next percentile.
func lastReward(sample *ethrpc.FeeHistory, chain ...float64) *big.Int {
	if len(sample.Reward) == 0 {
		return nil
	}

	row := sample.Reward[len(sample.Reward)-1]

	for _, pct := range chain {
		idx := percentileIndex(sample.Percentiles, pct)
		if idx < 0 || idx >= len(row) {
			continue
		}

		value := row[idx]
		if value == nil || value.Sign() == 0 {
			continue
		}

		return value
	}

	return nil
}

func percentileIndex(percentiles []float64, pct float64) int {
	for i, p := range percentiles {
		if p == pct {
			return i
		}
	}

	return -1
}

// newTier combines a tier's priority fee with the next-block base fee:
// maxFee = nextBaseFee + round(priorityFee * rampFactor). Both inputs
// must be known, otherwise the tier stays zero.
func newTier(priority, nextBaseFee *big.Int, rampFactor float64) Tier {
	if priority == nil || nextBaseFee == nil {
		return Tier{}
	}

	headroom := new(big.Float).SetPrec(128).SetInt(priority)
	headroom.Mul(headroom, big.NewFloat(rampFactor))
	headroom.Add(headroom, big.NewFloat(0.5))

	rounded, _ := headroom.Int(nil)

	return Tier{
		PriorityFee: priority,
		MaxFee:      new(big.Int).Add(nextBaseFee, rounded),
	}
}
