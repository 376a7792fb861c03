package collector

import (
	"math/big"
	"time"

	"github.com/ethpandaops/watchoor/internal/ethrpc"
	"github.com/ethpandaops/watchoor/internal/fees"
	"github.com/ethpandaops/watchoor/internal/txpool"
)

// ConnectionState classifies the endpoint's reachability.
type ConnectionState int

const (
	// StateDisconnected is the initial state before the first poll.
	StateDisconnected ConnectionState = iota
	// StateConnected means the last poll's liveness probe succeeded.
	StateConnected
	// StateStale means the endpoint was reachable but the last
	// successful poll is older than the stale threshold.
	StateStale
	// StateError means a poll stage failed; the message names the
	// first failing stage.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateStale:
		return "Stale"
	case StateError:
		return "Error"
	default:
		return "Disconnected"
	}
}

// ConnectionStatus pairs the state with the verbatim error message of
// the stage that produced it.
type ConnectionStatus struct {
	State ConnectionState
	Err   string
}

func (s ConnectionStatus) String() string {
	if s.State == StateError && s.Err != "" {
		return "Error: " + s.Err
	}

	return s.State.String()
}

// SuggestedFees groups the three fee tiers derived from a fee-history
// sample. Individual tiers may be unknown (zero) on thin blocks.
type SuggestedFees struct {
	Safe     fees.Tier
	Standard fees.Tier
	Fast     fees.Tier
}

// Snapshot is the display state of one monitored endpoint. All
// optional fields are nil until a poll populates them; the renderer
// must tolerate any of them being absent.
type Snapshot struct {
	// RPCURL identifies the monitored node. Immutable.
	RPCURL string

	ConnectionStatus ConnectionStatus

	ChainID     *uint64
	BlockNumber *uint64
	GasPriceWei *big.Int
	PeerCount   *uint64

	// Fee fields are recomputed from each cycle's fee-history sample
	// and cleared wholesale when that sample cannot be fetched.
	BaseFeePerGas              *big.Int
	NextBaseFeePerGas          *big.Int
	MaxPriorityFeeSuggested    *big.Int
	SuggestedFees              *SuggestedFees
	FeeHistory                 *ethrpc.FeeHistory
	GasUtilizationMovingAvgPct *float64
	GasVolatilityPct           *float64

	// BlockHistory is newest-first, strictly descending by number,
	// bounded by the configured history length.
	BlockHistory []ethrpc.BlockInfo

	// LatestBlockTimestampUnix is the maximum block timestamp ever
	// observed, which guards against out-of-order arrival.
	LatestBlockTimestampUnix *uint64

	LastUpdated    time.Time
	LastSuccessful *time.Time

	// BlockDelayThreshold is carried for the renderer's delay alert.
	// Immutable.
	BlockDelayThreshold time.Duration

	TxPool *txpool.Snapshot
}

// SpikeAlert reports whether base fee volatility crossed the spike
// multiplier, i.e. 1 + volatility >= multiplier.
func (s *Snapshot) SpikeAlert(multiplier float64) bool {
	return s.GasVolatilityPct != nil && 1+*s.GasVolatilityPct/100 >= multiplier
}

// BlockDelayAlert reports whether the newest observed block timestamp
// lags the wall clock by more than the configured threshold.
func (s *Snapshot) BlockDelayAlert(now time.Time) bool {
	if s.LatestBlockTimestampUnix == nil || s.BlockDelayThreshold <= 0 {
		return false
	}

	age := now.Unix() - int64(*s.LatestBlockTimestampUnix)

	return age > int64(s.BlockDelayThreshold/time.Second)
}
