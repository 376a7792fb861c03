package txpool

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Quantity wraps uint256.Int to decode the numeric encodings the pool
// service emits: JSON numbers, decimal strings and 0x-prefixed hex
// strings. EVM amounts exceed 64 bits, so values are kept at full
// width until display.
type Quantity struct {
	*uint256.Int
}

// NewQuantity creates a Quantity from a uint64.
func NewQuantity(v uint64) *Quantity {
	return &Quantity{uint256.NewInt(v)}
}

// BigInt returns the value as a big.Int, or nil when the quantity is
// unset. Safe on a nil receiver.
func (q *Quantity) BigInt() *big.Int {
	if q == nil || q.Int == nil {
		return nil
	}

	return q.ToBig()
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding quantity: %w", err)
		}
	}

	var (
		value *uint256.Int
		err   error
	)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		value, err = uint256.FromHex(strings.ToLower(s))
	} else {
		value, err = uint256.FromDecimal(s)
	}

	if err != nil {
		return fmt.Errorf("decoding quantity %q: %w", s, err)
	}

	q.Int = value

	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.Int == nil {
		return []byte(`"0"`), nil
	}

	return []byte(`"` + q.Dec() + `"`), nil
}
