package starkattest

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// TxVersion identifies the transaction format an account signs.
type TxVersion uint8

const (
	// TxVersionV3 uses resource bounds and pays fees in STRK.
	TxVersionV3 TxVersion = 3
)

// BlockID selects the block a read is evaluated against. Exactly one of
// Tag, Hash or Number is used; the zero value means "latest".
type BlockID struct {
	Tag    string
	Hash   string
	Number *uint64
}

// BlockTag returns a BlockID for a tag such as "latest" or "pre_confirmed".
func BlockTag(tag string) BlockID {
	return BlockID{Tag: tag}
}

// MarshalJSON encodes a tag as a bare string and hashes/numbers as objects.
func (b BlockID) MarshalJSON() ([]byte, error) {
	switch {
	case b.Hash != "":
		return json.Marshal(map[string]string{"block_hash": b.Hash})
	case b.Number != nil:
		return json.Marshal(map[string]uint64{"block_number": *b.Number})
	case b.Tag != "":
		return json.Marshal(b.Tag)
	default:
		return json.Marshal("latest")
	}
}

// FunctionCall is the request of starknet_call.
type FunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// InvokeTxnV3 is the broadcast form of an INVOKE V3 transaction.
type InvokeTxnV3 struct {
	Type                  string               `json:"type"`
	SenderAddress         string               `json:"sender_address"`
	Calldata              []string             `json:"calldata"`
	Version               string               `json:"version"`
	Signature             []string             `json:"signature"`
	Nonce                 string               `json:"nonce"`
	ResourceBounds        ResourceBounds       `json:"resource_bounds"`
	Tip                   string               `json:"tip"`
	PaymasterData         []string             `json:"paymaster_data"`
	AccountDeploymentData []string             `json:"account_deployment_data"`
	NonceDAMode           DataAvailabilityMode `json:"nonce_data_availability_mode"`
	FeeDAMode             DataAvailabilityMode `json:"fee_data_availability_mode"`
}

// AddInvokeResult is the answer of starknet_addInvokeTransaction.
type AddInvokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// FeeEstimate is one entry of the starknet_estimateFee answer.
type FeeEstimate struct {
	L1GasConsumed     string `json:"l1_gas_consumed"`
	L1GasPrice        string `json:"l1_gas_price"`
	L1DataGasConsumed string `json:"l1_data_gas_consumed"`
	L1DataGasPrice    string `json:"l1_data_gas_price"`
	L2GasConsumed     string `json:"l2_gas_consumed"`
	L2GasPrice        string `json:"l2_gas_price"`
	OverallFee        string `json:"overall_fee"`
	Unit              string `json:"unit"`
}

// Overall returns the overall fee as an integer.
func (e FeeEstimate) Overall() (*big.Int, error) {
	v, ok := parseBig(e.OverallFee)
	if !ok {
		return nil, fmt.Errorf("starkattest: malformed overall_fee %q", e.OverallFee)
	}
	return v, nil
}

// Finality statuses reported by starknet_getTransactionStatus.
const (
	StatusReceived     = "RECEIVED"
	StatusRejected     = "REJECTED"
	StatusAcceptedOnL2 = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 = "ACCEPTED_ON_L1"
)

// Execution statuses reported in receipts.
const (
	ExecutionSucceeded = "SUCCEEDED"
	ExecutionReverted  = "REVERTED"
)

// TransactionStatus is the answer of starknet_getTransactionStatus.
type TransactionStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// Included reports whether the transaction made it into a block.
func (s TransactionStatus) Included() bool {
	return s.FinalityStatus == StatusAcceptedOnL2 || s.FinalityStatus == StatusAcceptedOnL1
}

// FeePayment is the fee actually charged.
type FeePayment struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// UnmarshalJSON accepts both the object form and the bare string used by
// nodes that predate fee units.
func (f *FeePayment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Amount, f.Unit = s, "WEI"
		return nil
	}
	type plain FeePayment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FeePayment(p)
	return nil
}

// Value returns the fee amount as an integer.
func (f FeePayment) Value() (*big.Int, error) {
	v, ok := parseBig(f.Amount)
	if !ok {
		return nil, fmt.Errorf("starkattest: malformed fee amount %q", f.Amount)
	}
	return v, nil
}

// Event is an event emitted during execution.
type Event struct {
	FromAddress string   `json:"from_address"`
	Keys        []string `json:"keys"`
	Data        []string `json:"data"`
}

// Receipt is the answer of starknet_getTransactionReceipt.
type Receipt struct {
	Type            string     `json:"type"`
	TransactionHash string     `json:"transaction_hash"`
	ActualFee       FeePayment `json:"actual_fee"`
	ExecutionStatus string     `json:"execution_status"`
	FinalityStatus  string     `json:"finality_status"`
	BlockHash       string     `json:"block_hash,omitempty"`
	BlockNumber     uint64     `json:"block_number,omitempty"`
	RevertReason    string     `json:"revert_reason,omitempty"`
	Events          []Event    `json:"events,omitempty"`
}

// IsSuccess reports whether execution succeeded.
func (r *Receipt) IsSuccess() bool {
	return r.ExecutionStatus == ExecutionSucceeded
}

// ContractClass is the subset of starknet_getClassAt this package needs.
type ContractClass struct {
	ContractClassVersion string          `json:"contract_class_version,omitempty"`
	ABI                  json.RawMessage `json:"abi"`
}
