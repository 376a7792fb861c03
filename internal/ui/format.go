package ui

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethpandaops/watchoor/internal/fees"
	"github.com/ethpandaops/watchoor/internal/txpool"
)

const notAvailable = "N/A"

var (
	gweiUnit = big.NewFloat(1e9)
	ethUnit  = big.NewFloat(1e18)
)

// Age renders the elapsed time since t, "< 1s ago" under one second.
func Age(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Second {
		return "< 1s ago"
	}

	return fmt.Sprintf("%ds ago", int(d.Seconds()))
}

// BlockAge renders the age of a unix block timestamp, "--" when no
// block has been observed yet.
func BlockAge(ts *uint64, now time.Time) string {
	if ts == nil {
		return "--"
	}

	age := now.Unix() - int64(*ts)
	if age < 0 {
		age = 0
	}

	return fmt.Sprintf("%ds ago", age)
}

// Uint formats an optional counter.
func Uint(v *uint64) string {
	if v == nil {
		return notAvailable
	}

	return strconv.FormatUint(*v, 10)
}

// Gwei renders a wei amount in gwei with its unit.
func Gwei(wei *big.Int) string {
	if wei == nil {
		return notAvailable
	}

	return GweiNumber(wei) + " Gwei"
}

// GweiNumber renders a wei amount in gwei without a unit suffix.
func GweiNumber(wei *big.Int) string {
	if wei == nil {
		return notAvailable
	}

	value, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), gweiUnit).Float64()

	return strconv.FormatFloat(value, 'f', 2, 64)
}

// Wei renders the raw wei amount.
func Wei(wei *big.Int) string {
	if wei == nil {
		return notAvailable
	}

	return wei.String() + " wei"
}

// Percent renders an optional percentage with one decimal.
func Percent(v *float64) string {
	if v == nil {
		return notAvailable
	}

	return fmt.Sprintf("%.1f%%", *v)
}

// ShortHash keeps the leading four bytes of a hash, enough to eyeball
// identity in a narrow column.
func ShortHash(h common.Hash) string {
	return h.Hex()[:10]
}

// ShortAddress compacts an address to its leading and trailing bytes.
func ShortAddress(a common.Address) string {
	hex := a.Hex()

	return hex[:8] + ".." + hex[len(hex)-4:]
}

// EthValue renders a wei quantity as ether with four decimals, "--"
// when the row carried no value.
func EthValue(q *txpool.Quantity) string {
	wei := q.BigInt()
	if wei == nil {
		return "--"
	}

	value, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), ethUnit).Float64()

	return strconv.FormatFloat(value, 'f', 4, 64) + " ETH"
}

// TierLine renders one suggested fee tier as "tip / max Gwei".
func TierLine(t fees.Tier) string {
	if !t.Known() {
		return notAvailable
	}

	return fmt.Sprintf("%s tip / %s max Gwei", GweiNumber(t.PriorityFee), GweiNumber(t.MaxFee))
}
