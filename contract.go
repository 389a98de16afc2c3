package starkattest

import (
	"context"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
)

// Contract wraps a deployed Cairo contract: its address, its ABI and the
// provider used for reads. Mutating calls are signed by the account the
// contract is connected to.
type Contract struct {
	address  *felt.Felt
	abi      *ABI
	provider *Provider
	account  *Account
	submit   []SubmitOption
}

// ContractOption configures a Contract.
type ContractOption func(*Contract)

// WithSubmitOptions sets the options Invoke passes to SubmitAndWait.
func WithSubmitOptions(opts ...SubmitOption) ContractOption {
	return func(c *Contract) {
		c.submit = append(c.submit, opts...)
	}
}

// NewContract wraps the contract at address with an already-parsed ABI.
func NewContract(address string, contractABI *ABI, p *Provider, opts ...ContractOption) (*Contract, error) {
	addr, err := ParseFelt(address)
	if err != nil {
		return nil, fmt.Errorf("starkattest: invalid contract address %q: %w", address, err)
	}
	c := &Contract{
		address:  addr,
		abi:      contractABI,
		provider: p,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewContractAt fetches the class deployed at address and wraps it. An
// address without a deployed class fails with ErrContractNotFound.
func NewContractAt(ctx context.Context, p *Provider, address string, opts ...ContractOption) (*Contract, error) {
	addr, err := ParseFelt(address)
	if err != nil {
		return nil, fmt.Errorf("starkattest: invalid contract address %q: %w", address, err)
	}
	class, err := p.ClassAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseABI(class.ABI)
	if err != nil {
		return nil, err
	}
	p.Logger().Debug("Loaded contract interface", "address", FeltHex(addr), "functions", len(parsed.Functions))
	return NewContract(address, parsed, p, opts...)
}

// Address returns the contract address.
func (c *Contract) Address() *felt.Felt {
	return c.address
}

// ABI returns the contract ABI.
func (c *Contract) ABI() *ABI {
	return c.abi
}

// Connect binds the contract to an account; every later Invoke is signed by
// it. Rebinding replaces the signer for all future calls.
func (c *Contract) Connect(account *Account) *Contract {
	c.account = account
	return c
}

// Account returns the bound account, or nil.
func (c *Contract) Account() *Account {
	return c.account
}

// Populate serializes a call to the named function.
func (c *Contract) Populate(name string, args ...any) (*Call, error) {
	fn, ok := c.abi.Function(name)
	if !ok {
		return nil, &FunctionNotFoundError{Contract: FeltHex(c.address), Function: name}
	}
	calldata, err := c.abi.EncodeInputs(fn, args)
	if err != nil {
		return nil, err
	}
	call := NewCall(c.address, name, calldata)
	call.function = fn
	return call, nil
}

// MustPopulate is like Populate but panics on error.
func (c *Contract) MustPopulate(name string, args ...any) *Call {
	call, err := c.Populate(name, args...)
	if err != nil {
		panic(err)
	}
	return call
}

// HasFunction returns true if the ABI declares the named function.
func (c *Contract) HasFunction(name string) bool {
	_, ok := c.abi.Function(name)
	return ok
}

// FunctionNames returns all function names in the ABI, sorted.
func (c *Contract) FunctionNames() []string {
	return c.abi.FunctionNames()
}

// Call evaluates a function without a transaction and decodes its outputs.
// No account is needed.
func (c *Contract) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	call, err := c.Populate(name, args...)
	if err != nil {
		return nil, err
	}
	result, err := c.provider.Call(ctx, call.request())
	if err != nil {
		return nil, err
	}
	return c.abi.DecodeOutputs(call.function, result)
}

// Invoke submits a transaction calling the named function through the bound
// account and waits for its receipt.
func (c *Contract) Invoke(ctx context.Context, name string, args ...any) (*Receipt, error) {
	if c.account == nil {
		return nil, ErrNotConnected
	}
	call, err := c.Populate(name, args...)
	if err != nil {
		return nil, err
	}
	return c.account.SubmitAndWait(ctx, []*Call{call}, c.submit...)
}
