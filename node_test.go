package starkattest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	testChainID        = "0x534e5f5345504f4c4941" // SN_SEPOLIA
	testAccountAddress = "0x64b48806902a367c8598f4f95c305e8c1a1acba5f082d294a43793113115691"
	testPrivateKey     = "0x71d7bb07b9a64f6f78ac4c816aff4da9"
	testContract       = "0x68f842547c076a2ab01e66e6a63e1f24ec7b5a0da942fc0812789038921ee8b"
)

// testContractABI is a cut-down PrimusZKTL interface.
const testContractABI = `[
	{"type": "impl", "name": "ZKTLImpl", "interface_name": "zktl::IZKTL"},
	{"type": "struct", "name": "core::integer::u256", "members": [
		{"name": "low", "type": "core::integer::u128"},
		{"name": "high", "type": "core::integer::u128"}
	]},
	{"type": "struct", "name": "zktl::NetworkRequest", "members": [
		{"name": "url", "type": "core::byte_array::ByteArray"},
		{"name": "header", "type": "core::byte_array::ByteArray"},
		{"name": "method", "type": "core::byte_array::ByteArray"},
		{"name": "body", "type": "core::byte_array::ByteArray"}
	]},
	{"type": "struct", "name": "zktl::Attestor", "members": [
		{"name": "attestorAddr", "type": "core::starknet::eth_address::EthAddress"},
		{"name": "url", "type": "core::byte_array::ByteArray"}
	]},
	{"type": "interface", "name": "zktl::IZKTL", "items": [
		{"type": "function", "name": "encodeRequest", "state_mutability": "view",
			"inputs": [{"name": "request", "type": "zktl::NetworkRequest"}],
			"outputs": [{"type": "core::integer::u256"}]},
		{"type": "function", "name": "setAttestor", "state_mutability": "external",
			"inputs": [{"name": "attestor", "type": "zktl::Attestor"}],
			"outputs": []}
	]},
	{"type": "event", "name": "zktl::Event", "kind": "enum", "variants": []}
]`

// nodeError is a JSON-RPC error with a Starknet error code.
type nodeError struct {
	code int
	msg  string
}

func (e *nodeError) Error() string  { return e.msg }
func (e *nodeError) ErrorCode() int { return e.code }

type fakeTx struct {
	txn    InvokeTxnV3
	polls  int
	status string
}

// fakeNode answers the starknet_* methods the package uses. Exported
// methods are served over JSON-RPC.
type fakeNode struct {
	mu sync.Mutex

	specVersion string
	chainID     *felt.Felt
	accounts    map[string]*KeyPair
	nonces      map[string]uint64
	classes     map[string]string
	results     map[string][]string // keyed by selector

	// receivedPolls is how many status polls report RECEIVED before
	// inclusion; neverInclude keeps the transaction RECEIVED forever.
	receivedPolls int
	neverInclude  bool
	rejectReason  string
	revertReason  string
	minL2Gas      uint64
	actualFee     string

	calls     []FunctionCall
	submitted []InvokeTxnV3
	estimated []InvokeTxnV3
	txs       map[string]*fakeTx
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	keys, err := NewKeyPair(testPrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeNode{
		specVersion: "0.8.1",
		chainID:     MustParseFelt(testChainID),
		accounts:    map[string]*KeyPair{testAccountAddress: keys},
		nonces:      map[string]uint64{},
		classes:     map[string]string{testContract: testContractABI},
		results:     map[string][]string{},
		actualFee:   "0x2d79883d2000",
		txs:         map[string]*fakeTx{},
	}
}

// dial serves the node in-process and connects a Provider to it.
func (n *fakeNode) dial(t *testing.T, opts ...ProviderOption) *Provider {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("starknet", n); err != nil {
		t.Fatal(err)
	}
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	p, err := NewProvider(context.Background(), client, opts...)
	if err != nil {
		t.Fatalf("Expected handshake to succeed, got %v", err)
	}
	return p
}

// account connects the test account through a fresh provider.
func (n *fakeNode) account(t *testing.T) *Account {
	t.Helper()
	acc, err := NewAccount(n.dial(t), testAccountAddress, n.accounts[testAccountAddress], TxVersionV3)
	if err != nil {
		t.Fatal(err)
	}
	return acc
}

// fastWait keeps polling tests quick.
func fastWait() []SubmitOption {
	return []SubmitOption{WithPollInterval(5 * time.Millisecond), WithWaitTimeout(2 * time.Second)}
}

func (n *fakeNode) lastSubmitted(t *testing.T) InvokeTxnV3 {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.submitted) == 0 {
		t.Fatal("Expected a submitted transaction")
	}
	return n.submitted[len(n.submitted)-1]
}

func (n *fakeNode) SpecVersion() string {
	return n.specVersion
}

func (n *fakeNode) ChainId() string {
	return FeltHex(n.chainID)
}

func (n *fakeNode) GetNonce(block json.RawMessage, address string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key, err := n.known(address)
	if err != nil {
		return "", err
	}
	return hexutil.EncodeUint64(n.nonces[key]), nil
}

func (n *fakeNode) GetClassAt(block json.RawMessage, address string) (*ContractClass, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key, err := n.known(address)
	if err != nil {
		return nil, err
	}
	abi, ok := n.classes[key]
	if !ok {
		return nil, &nodeError{codeContractNotFound, "Contract not found"}
	}
	// Sierra classes serve the ABI as a JSON string.
	raw, _ := json.Marshal(abi)
	return &ContractClass{ContractClassVersion: "0.1.0", ABI: raw}, nil
}

func (n *fakeNode) Call(call FunctionCall, block json.RawMessage) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.known(call.ContractAddress); err != nil {
		return nil, err
	}
	n.calls = append(n.calls, call)
	sel, err := ParseFelt(call.EntryPointSelector)
	if err != nil {
		return nil, &nodeError{-32602, err.Error()}
	}
	result, ok := n.results[FeltHex(sel)]
	if !ok {
		return nil, &nodeError{40, "Contract error: entry point not found"}
	}
	return result, nil
}

func (n *fakeNode) EstimateFee(txns []InvokeTxnV3, flags []string, block json.RawMessage) ([]FeeEstimate, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]FeeEstimate, 0, len(txns))
	for _, txn := range txns {
		version, err := hexutil.DecodeBig(txn.Version)
		if err != nil || version.Cmp(queryVersionBase) < 0 {
			return nil, &nodeError{-32602, fmt.Sprintf("estimate requires a query version, got %s", txn.Version)}
		}
		if _, err := n.validate(txn); err != nil {
			return nil, err
		}
		n.estimated = append(n.estimated, txn)
		out = append(out, FeeEstimate{
			L1GasConsumed:     "0x0",
			L1GasPrice:        "0x1",
			L1DataGasConsumed: "0x80",
			L1DataGasPrice:    "0x1",
			L2GasConsumed:     "0x9b340",
			L2GasPrice:        "0x1",
			OverallFee:        "0x9b3c0",
			Unit:              "FRI",
		})
	}
	return out, nil
}

func (n *fakeNode) AddInvokeTransaction(txn InvokeTxnV3) (*AddInvokeResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	hash, err := n.validate(txn)
	if err != nil {
		return nil, err
	}
	bounds, _ := txn.ResourceBounds.values()
	if bounds.L2Gas.MaxAmount < n.minL2Gas {
		return nil, &nodeError{codeInsufficientResources, "Max fee is smaller than the minimal transaction cost (validation plus fee transfer)"}
	}
	key, _ := n.known(txn.SenderAddress)
	n.nonces[key]++
	n.submitted = append(n.submitted, txn)
	n.txs[FeltHex(hash)] = &fakeTx{txn: txn, status: StatusReceived}
	return &AddInvokeResult{TransactionHash: FeltHex(hash)}, nil
}

func (n *fakeNode) GetTransactionStatus(hash string) (*TransactionStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx, ok := n.txs[hash]
	if !ok {
		return nil, &nodeError{codeTxnHashNotFound, "Transaction hash not found"}
	}
	tx.polls++
	if n.rejectReason != "" {
		tx.status = StatusRejected
		return &TransactionStatus{FinalityStatus: StatusRejected, FailureReason: n.rejectReason}, nil
	}
	if n.neverInclude || tx.polls <= n.receivedPolls {
		return &TransactionStatus{FinalityStatus: StatusReceived}, nil
	}
	tx.status = StatusAcceptedOnL2
	exec := ExecutionSucceeded
	if n.revertReason != "" {
		exec = ExecutionReverted
	}
	return &TransactionStatus{FinalityStatus: tx.status, ExecutionStatus: exec}, nil
}

func (n *fakeNode) GetTransactionReceipt(hash string) (*Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx, ok := n.txs[hash]
	if !ok || tx.status == StatusReceived {
		return nil, &nodeError{codeTxnHashNotFound, "Transaction hash not found"}
	}
	r := &Receipt{
		Type:            "INVOKE",
		TransactionHash: hash,
		ActualFee:       FeePayment{Amount: n.actualFee, Unit: "FRI"},
		ExecutionStatus: ExecutionSucceeded,
		FinalityStatus:  tx.status,
		BlockHash:       "0x1",
		BlockNumber:     7,
	}
	if n.revertReason != "" {
		r.ExecutionStatus = ExecutionReverted
		r.RevertReason = n.revertReason
	}
	return r, nil
}

// known canonicalizes an address and checks it is deployed.
func (n *fakeNode) known(address string) (string, error) {
	f, err := ParseFelt(address)
	if err != nil {
		return "", &nodeError{-32602, err.Error()}
	}
	key := FeltHex(f)
	if !n.addresses()[key] {
		return "", &nodeError{codeContractNotFound, "Contract not found"}
	}
	return key, nil
}

func (n *fakeNode) addresses() map[string]bool {
	out := make(map[string]bool)
	for addr := range n.accounts {
		out[FeltHex(MustParseFelt(addr))] = true
	}
	for addr := range n.classes {
		out[FeltHex(MustParseFelt(addr))] = true
	}
	return out
}

// validate recomputes the transaction hash from the wire form and checks
// nonce and signature the way an account's __validate__ would.
func (n *fakeNode) validate(txn InvokeTxnV3) (*felt.Felt, error) {
	key, err := n.known(txn.SenderAddress)
	if err != nil {
		return nil, err
	}
	var keys *KeyPair
	for addr, kp := range n.accounts {
		if FeltHex(MustParseFelt(addr)) == key {
			keys = kp
		}
	}
	if keys == nil {
		return nil, &nodeError{codeValidationFailure, "Account validation failed: not an account"}
	}

	version, err := hexutil.DecodeBig(txn.Version)
	if err != nil {
		return nil, &nodeError{-32602, "bad version"}
	}
	if v := new(big.Int).Mod(version, queryVersionBase); v.Uint64() != 3 {
		return nil, &nodeError{61, "The transaction version is not supported"}
	}
	nonce, err := ParseFelt(txn.Nonce)
	if err != nil {
		return nil, &nodeError{-32602, "bad nonce"}
	}
	if FeltToBig(nonce).Uint64() != n.nonces[key] {
		return nil, &nodeError{codeInvalidNonce, "Invalid transaction nonce"}
	}
	bounds, err := txn.ResourceBounds.values()
	if err != nil {
		return nil, &nodeError{-32602, err.Error()}
	}
	tip, err := hexutil.DecodeUint64(txn.Tip)
	if err != nil {
		return nil, &nodeError{-32602, "bad tip"}
	}
	calldata, err := feltsFromHex(txn.Calldata)
	if err != nil {
		return nil, &nodeError{-32602, err.Error()}
	}
	hash := invokeV3Hash(invokeHashInput{
		version:     version,
		sender:      MustParseFelt(txn.SenderAddress),
		tip:         tip,
		bounds:      bounds,
		chainID:     n.chainID,
		nonce:       nonce,
		nonceDAMode: txn.NonceDAMode,
		feeDAMode:   txn.FeeDAMode,
		calldata:    calldata,
	})
	sig, err := feltsFromHex(txn.Signature)
	if err != nil || len(sig) != 2 || !keys.Verify(hash, sig[0], sig[1]) {
		return nil, &nodeError{codeValidationFailure, "Account validation failed: invalid signature"}
	}
	return hash, nil
}
