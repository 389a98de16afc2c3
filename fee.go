package starkattest

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DataAvailabilityMode selects where transaction data is published.
type DataAvailabilityMode uint32

const (
	// DAModeL1 posts the data to the settlement layer.
	DAModeL1 DataAvailabilityMode = iota

	// DAModeL2 keeps the data off the settlement layer.
	DAModeL2
)

// String returns the wire name of the mode.
func (m DataAvailabilityMode) String() string {
	switch m {
	case DAModeL1:
		return "L1"
	case DAModeL2:
		return "L2"
	default:
		return fmt.Sprintf("DataAvailabilityMode(%d)", uint32(m))
	}
}

// MarshalJSON encodes the mode as "L1" or "L2".
func (m DataAvailabilityMode) MarshalJSON() ([]byte, error) {
	if m != DAModeL1 && m != DAModeL2 {
		return nil, fmt.Errorf("starkattest: unknown data availability mode %d", uint32(m))
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes "L1" or "L2".
func (m *DataAvailabilityMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode, err := ParseDAMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseDAMode parses "L1" or "L2".
func ParseDAMode(s string) (DataAvailabilityMode, error) {
	switch s {
	case "L1":
		return DAModeL1, nil
	case "L2":
		return DAModeL2, nil
	default:
		return 0, fmt.Errorf("starkattest: unknown data availability mode %q", s)
	}
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ResourceLimit caps one gas kind: at most MaxAmount units at MaxPricePerUnit
// FRI each.
type ResourceLimit struct {
	MaxAmount       uint64
	MaxPricePerUnit *big.Int
}

// MaxCost returns MaxAmount * MaxPricePerUnit.
func (l ResourceLimit) MaxCost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(l.MaxAmount), l.price())
}

func (l ResourceLimit) price() *big.Int {
	if l.MaxPricePerUnit == nil {
		return new(big.Int)
	}
	return l.MaxPricePerUnit
}

func (l ResourceLimit) bound() ResourceBound {
	return ResourceBound{
		MaxAmount:       hexutil.EncodeUint64(l.MaxAmount),
		MaxPricePerUnit: hexutil.EncodeBig(l.price()),
	}
}

// FeePolicy holds the fixed fee constants used to build every transaction.
type FeePolicy struct {
	L1Gas     ResourceLimit
	L1DataGas ResourceLimit
	L2Gas     ResourceLimit

	// Tip is offered to the sequencer on top of the resource price.
	Tip uint64

	// MaxFee is the pre-V3 fee ceiling. V3 transactions carry no such field;
	// it is kept for reporting only.
	MaxFee *big.Int

	FeeDAMode   DataAvailabilityMode
	NonceDAMode DataAvailabilityMode
}

// Default fee constants, tuned for a local devnet.
const (
	DefaultL1GasMaxAmount = 1_800_000
	DefaultL2GasMaxAmount = 50_000_000
	DefaultMaxPricePerGas = 12_000_000_000 // FRI; 1 FRI = 1e-18 STRK
	DefaultTip            = 10_000_000_000_000
	DefaultLegacyMaxFee   = 1_000_000_000_000_000
)

// DefaultFeePolicy returns the sandbox fee policy: 1.8M units of L1 gas and
// L1 data gas, 50M units of L2 gas, all at 12 gwei-FRI per unit.
func DefaultFeePolicy() FeePolicy {
	price := func() *big.Int { return big.NewInt(DefaultMaxPricePerGas) }
	return FeePolicy{
		L1Gas:       ResourceLimit{MaxAmount: DefaultL1GasMaxAmount, MaxPricePerUnit: price()},
		L1DataGas:   ResourceLimit{MaxAmount: DefaultL1GasMaxAmount, MaxPricePerUnit: price()},
		L2Gas:       ResourceLimit{MaxAmount: DefaultL2GasMaxAmount, MaxPricePerUnit: price()},
		Tip:         DefaultTip,
		MaxFee:      big.NewInt(DefaultLegacyMaxFee),
		FeeDAMode:   DAModeL1,
		NonceDAMode: DAModeL1,
	}
}

// Validate checks every price fits in 128 bits and both DA modes are known.
// Amounts are uint64 by construction.
func (p FeePolicy) Validate() error {
	limits := []struct {
		name  string
		limit ResourceLimit
	}{
		{"l1_gas", p.L1Gas},
		{"l1_data_gas", p.L1DataGas},
		{"l2_gas", p.L2Gas},
	}
	for _, l := range limits {
		price := l.limit.price()
		if price.Sign() < 0 || price.Cmp(maxUint128) > 0 {
			return fmt.Errorf("%w: %s max price per unit %s exceeds u128", ErrValueOutOfRange, l.name, price)
		}
	}
	for _, m := range []DataAvailabilityMode{p.FeeDAMode, p.NonceDAMode} {
		if m != DAModeL1 && m != DAModeL2 {
			return fmt.Errorf("starkattest: unknown data availability mode %d", uint32(m))
		}
	}
	return nil
}

// MaxAuthorizedCost is the L1 gas ceiling: max amount times max unit price.
func (p FeePolicy) MaxAuthorizedCost() *big.Int {
	return p.L1Gas.MaxCost()
}

// MaxTotalCost sums the ceilings of all three gas kinds plus the tip paid
// on L2 gas.
func (p FeePolicy) MaxTotalCost() *big.Int {
	total := new(big.Int).Add(p.L1Gas.MaxCost(), p.L1DataGas.MaxCost())
	total.Add(total, p.L2Gas.MaxCost())
	tip := new(big.Int).Mul(new(big.Int).SetUint64(p.Tip), new(big.Int).SetUint64(p.L2Gas.MaxAmount))
	return total.Add(total, tip)
}

// ResourceBounds encodes the policy for the wire.
func (p FeePolicy) ResourceBounds() ResourceBounds {
	return ResourceBounds{
		L1Gas:     p.L1Gas.bound(),
		L1DataGas: p.L1DataGas.bound(),
		L2Gas:     p.L2Gas.bound(),
	}
}

// ResourceBound is the wire form of one bound: base-16 strings with a 0x
// prefix and no leading zeros.
type ResourceBound struct {
	MaxAmount       string `json:"max_amount"`
	MaxPricePerUnit string `json:"max_price_per_unit"`
}

// ResourceBounds is the wire form of the three bounds of a V3 transaction.
type ResourceBounds struct {
	L1Gas     ResourceBound `json:"l1_gas"`
	L1DataGas ResourceBound `json:"l1_data_gas"`
	L2Gas     ResourceBound `json:"l2_gas"`
}

// resourceValues is the numeric form of ResourceBounds, used for hashing.
type resourceValues struct {
	L1Gas, L1DataGas, L2Gas ResourceLimit
}

func (b ResourceBounds) values() (resourceValues, error) {
	var out resourceValues
	parse := func(name string, rb ResourceBound) (ResourceLimit, error) {
		amount, err := hexutil.DecodeUint64(rb.MaxAmount)
		if err != nil {
			return ResourceLimit{}, fmt.Errorf("starkattest: %s max_amount: %w", name, err)
		}
		price, err := hexutil.DecodeBig(rb.MaxPricePerUnit)
		if err != nil {
			return ResourceLimit{}, fmt.Errorf("starkattest: %s max_price_per_unit: %w", name, err)
		}
		if price.Cmp(maxUint128) > 0 {
			return ResourceLimit{}, fmt.Errorf("%w: %s max price per unit exceeds u128", ErrValueOutOfRange, name)
		}
		return ResourceLimit{MaxAmount: amount, MaxPricePerUnit: price}, nil
	}
	var err error
	if out.L1Gas, err = parse("l1_gas", b.L1Gas); err != nil {
		return out, err
	}
	if out.L1DataGas, err = parse("l1_data_gas", b.L1DataGas); err != nil {
		return out, err
	}
	if out.L2Gas, err = parse("l2_gas", b.L2Gas); err != nil {
		return out, err
	}
	return out, nil
}
