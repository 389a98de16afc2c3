package starkattest

import (
	"math/big"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	// mask250 keeps the low 250 bits of a Keccak digest.
	mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

	// queryVersionBase is added to the version of transactions that are only
	// simulated or estimated, so a signature over them can't be replayed.
	queryVersionBase = new(big.Int).Lsh(big.NewInt(1), 128)

	invokePrefix = shortStringFelt("invoke")

	resourceL1Gas     = shortStringFelt("L1_GAS")
	resourceL2Gas     = shortStringFelt("L2_GAS")
	resourceL1DataGas = shortStringFelt("L1_DATA")
)

func shortStringFelt(s string) *felt.Felt {
	f, err := EncodeShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// StarknetKeccak is Keccak-256 truncated to 250 bits.
func StarknetKeccak(data []byte) *felt.Felt {
	h := new(big.Int).SetBytes(ethcrypto.Keccak256(data))
	return new(felt.Felt).SetBigInt(h.And(h, mask250))
}

// Selector returns the entry point selector for a function name.
func Selector(name string) *felt.Felt {
	return StarknetKeccak([]byte(name))
}

// resourceBoundFelt packs one resource bound as
// name << 192 | max_amount << 128 | max_price_per_unit.
func resourceBoundFelt(name *felt.Felt, maxAmount uint64, maxPrice *big.Int) *felt.Felt {
	v := FeltToBig(name)
	v.Lsh(v, 64)
	v.Or(v, new(big.Int).SetUint64(maxAmount))
	v.Lsh(v, 128)
	v.Or(v, maxPrice)
	return new(felt.Felt).SetBigInt(v)
}

// invokeHashInput carries the numeric fields of an INVOKE V3 transaction.
type invokeHashInput struct {
	version        *big.Int
	sender         *felt.Felt
	tip            uint64
	bounds         resourceValues
	paymasterData  []*felt.Felt
	chainID        *felt.Felt
	nonce          *felt.Felt
	nonceDAMode    DataAvailabilityMode
	feeDAMode      DataAvailabilityMode
	deploymentData []*felt.Felt
	calldata       []*felt.Felt
}

// invokeV3Hash computes the Poseidon transaction hash of an INVOKE V3
// transaction, including the L1 data gas bound.
func invokeV3Hash(in invokeHashInput) *felt.Felt {
	feeFields := crypto.PoseidonArray(
		FeltFromUint64(in.tip),
		resourceBoundFelt(resourceL1Gas, in.bounds.L1Gas.MaxAmount, in.bounds.L1Gas.MaxPricePerUnit),
		resourceBoundFelt(resourceL2Gas, in.bounds.L2Gas.MaxAmount, in.bounds.L2Gas.MaxPricePerUnit),
		resourceBoundFelt(resourceL1DataGas, in.bounds.L1DataGas.MaxAmount, in.bounds.L1DataGas.MaxPricePerUnit),
	)

	daModes := new(big.Int).SetUint64(uint64(in.nonceDAMode))
	daModes.Lsh(daModes, 32)
	daModes.Add(daModes, new(big.Int).SetUint64(uint64(in.feeDAMode)))

	return crypto.PoseidonArray(
		invokePrefix,
		new(felt.Felt).SetBigInt(in.version),
		in.sender,
		feeFields,
		crypto.PoseidonArray(in.paymasterData...),
		in.chainID,
		in.nonce,
		new(felt.Felt).SetBigInt(daModes),
		crypto.PoseidonArray(in.deploymentData...),
		crypto.PoseidonArray(in.calldata...),
	)
}
