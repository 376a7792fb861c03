package ethrpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BlockInfo is the subset of an execution block header the dashboard
// displays and derives metrics from.
type BlockInfo struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
	TxCount    int
	GasUsed    uint64
	GasLimit   uint64

	// BaseFee is nil for blocks before the london fork.
	BaseFee *big.Int
}

// UtilizationPct returns gasUsed/gasLimit as a percentage, or 0 when
// the gas limit is zero.
func (b *BlockInfo) UtilizationPct() float64 {
	if b.GasLimit == 0 {
		return 0
	}

	return float64(b.GasUsed) / float64(b.GasLimit) * 100
}

// FeeHistory is the decoded result of an eth_feeHistory call.
type FeeHistory struct {
	// OldestBlock is the number of the first block in the sample range.
	OldestBlock uint64

	// BaseFees holds one entry per sampled block plus one trailing
	// entry: the estimated base fee of the next (not yet mined) block.
	BaseFees []*big.Int

	// GasUsedRatio holds gasUsed/gasLimit per sampled block, 0..1.
	GasUsedRatio []float64

	// Reward holds one row per sampled block, each row aligned with
	// Percentiles. Empty when no percentiles were requested.
	Reward [][]*big.Int

	// Percentiles are the reward percentiles that were requested.
	Percentiles []float64
}

// NextBaseFee returns the estimated base fee of the next block, i.e.
// the trailing entry of the base fee series. Returns nil when the
// series is empty.
func (fh *FeeHistory) NextBaseFee() *big.Int {
	if len(fh.BaseFees) == 0 {
		return nil
	}

	return fh.BaseFees[len(fh.BaseFees)-1]
}

// RewardSeries returns the reward values for one requested percentile
// across all sampled blocks, preserving block order. Rows too short to
// cover the percentile are skipped.
func (fh *FeeHistory) RewardSeries(pct float64) []*big.Int {
	idx := -1

	for i, p := range fh.Percentiles {
		if p == pct {
			idx = i

			break
		}
	}

	if idx < 0 {
		return nil
	}

	series := make([]*big.Int, 0, len(fh.Reward))

	for _, row := range fh.Reward {
		if idx < len(row) {
			series = append(series, row[idx])
		}
	}

	return series
}
