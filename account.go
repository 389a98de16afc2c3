package starkattest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
)

// Account signs and submits transactions on behalf of an on-chain account
// contract. An Account is meant for one submitter at a time: concurrent
// submissions would race on the nonce.
type Account struct {
	provider     *Provider
	address      *felt.Felt
	keys         *KeyPair
	version      TxVersion
	cairoVersion CairoVersion
	logger       log.Logger

	mu      sync.Mutex
	chainID *felt.Felt

	optErr error
}

// NewAccount binds a key pair to an account address. No network call is
// made; a key that does not match the on-chain signer is only detected when
// the first transaction fails validation with ErrSignature.
func NewAccount(p *Provider, address string, keys *KeyPair, version TxVersion, opts ...AccountOption) (*Account, error) {
	if version != TxVersionV3 {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedTxVersion, version)
	}
	if p == nil {
		return nil, fmt.Errorf("starkattest: nil provider")
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: nil key pair", ErrInvalidPrivateKey)
	}
	addr, err := ParseFelt(address)
	if err != nil {
		return nil, fmt.Errorf("starkattest: invalid account address %q: %w", address, err)
	}

	a := &Account{
		provider:     p,
		address:      addr,
		keys:         keys,
		version:      version,
		cairoVersion: Cairo1,
		logger:       p.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.optErr != nil {
		return nil, a.optErr
	}
	return a, nil
}

// Address returns the account address.
func (a *Account) Address() *felt.Felt {
	return a.address
}

// PublicKey returns the stark key the account signs with.
func (a *Account) PublicKey() *felt.Felt {
	return a.keys.PublicKey()
}

// Version returns the transaction version the account signs.
func (a *Account) Version() TxVersion {
	return a.version
}

// Provider returns the provider the account submits through.
func (a *Account) Provider() *Provider {
	return a.provider
}

// String renders the account for log output.
func (a *Account) String() string {
	return fmt.Sprintf("Account{address: %s, publicKey: %s, version: V%d, cairo: %d}",
		FeltHex(a.address), FeltHex(a.keys.PublicKey()), a.version, a.cairoVersion)
}

func (a *Account) chain(ctx context.Context) (*felt.Felt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chainID != nil {
		return a.chainID, nil
	}
	id, err := a.provider.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	a.chainID = id
	return id, nil
}

// buildInvoke assembles and signs an INVOKE V3 transaction for calls.
// query marks a transaction that is only estimated, never broadcast.
func (a *Account) buildInvoke(ctx context.Context, calls []*Call, policy FeePolicy, query bool) (InvokeTxnV3, *felt.Felt, error) {
	if err := policy.Validate(); err != nil {
		return InvokeTxnV3{}, nil, err
	}
	calldata, err := NewMulticall(calls...).ExecuteCalldata(a.cairoVersion)
	if err != nil {
		return InvokeTxnV3{}, nil, err
	}
	chainID, err := a.chain(ctx)
	if err != nil {
		return InvokeTxnV3{}, nil, err
	}
	nonce, err := a.provider.Nonce(ctx, a.address)
	if err != nil {
		return InvokeTxnV3{}, nil, err
	}

	version := new(big.Int).SetUint64(uint64(a.version))
	if query {
		version.Add(version, queryVersionBase)
	}
	bounds := policy.ResourceBounds()
	values, err := bounds.values()
	if err != nil {
		return InvokeTxnV3{}, nil, err
	}

	hash := invokeV3Hash(invokeHashInput{
		version:     version,
		sender:      a.address,
		tip:         policy.Tip,
		bounds:      values,
		chainID:     chainID,
		nonce:       nonce,
		nonceDAMode: policy.NonceDAMode,
		feeDAMode:   policy.FeeDAMode,
		calldata:    calldata,
	})
	r, s, err := a.keys.Sign(hash)
	if err != nil {
		return InvokeTxnV3{}, nil, err
	}

	txn := InvokeTxnV3{
		Type:                  "INVOKE",
		SenderAddress:         FeltHex(a.address),
		Calldata:              feltsToHex(calldata),
		Version:               hexutil.EncodeBig(version),
		Signature:             feltsToHex([]*felt.Felt{r, s}),
		Nonce:                 FeltHex(nonce),
		ResourceBounds:        bounds,
		Tip:                   hexutil.EncodeUint64(policy.Tip),
		PaymasterData:         []string{},
		AccountDeploymentData: []string{},
		NonceDAMode:           policy.NonceDAMode,
		FeeDAMode:             policy.FeeDAMode,
	}
	return txn, hash, nil
}

// Execute signs and broadcasts one transaction carrying calls, in order, and
// returns its hash. It does not wait for inclusion.
func (a *Account) Execute(ctx context.Context, calls []*Call, opts ...SubmitOption) (string, error) {
	cfg := newSubmitConfig(opts)
	txn, hash, err := a.buildInvoke(ctx, calls, cfg.policy, false)
	if err != nil {
		return "", err
	}

	a.logger.Debug("Submitting transaction", "sender", txn.SenderAddress, "nonce", txn.Nonce,
		"calls", len(calls), "hash", FeltHex(hash))

	res, err := a.provider.AddInvokeTransaction(ctx, txn)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	if want := FeltHex(hash); res.TransactionHash != "" && res.TransactionHash != want {
		a.logger.Warn("Node reported a different transaction hash", "local", want, "node", res.TransactionHash)
	}
	return res.TransactionHash, nil
}

// EstimateFee asks the node what calls would cost. The estimate is purely
// informational; nothing adjusts the fee policy from it.
func (a *Account) EstimateFee(ctx context.Context, calls []*Call, opts ...SubmitOption) (*FeeEstimate, error) {
	cfg := newSubmitConfig(opts)
	txn, _, err := a.buildInvoke(ctx, calls, cfg.policy, true)
	if err != nil {
		return nil, err
	}
	estimates, err := a.provider.EstimateFee(ctx, []InvokeTxnV3{txn})
	if err != nil {
		return nil, err
	}
	if len(estimates) != 1 {
		return nil, fmt.Errorf("starkattest: expected 1 fee estimate, got %d", len(estimates))
	}
	return &estimates[0], nil
}
