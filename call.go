package starkattest

import (
	"github.com/NethermindEth/juno/core/felt"
)

// Call is a single contract invocation: target, entry point and serialized
// arguments. Call is immutable; accessors return copies.
type Call struct {
	to         *felt.Felt
	entryPoint string
	selector   *felt.Felt
	function   *Function // nil for calls built from raw calldata
	calldata   []*felt.Felt
}

// NewCall builds a call from already-serialized calldata.
func NewCall(to *felt.Felt, entryPoint string, calldata []*felt.Felt) *Call {
	cd := make([]*felt.Felt, len(calldata))
	copy(cd, calldata)
	return &Call{
		to:         to,
		entryPoint: entryPoint,
		selector:   Selector(entryPoint),
		calldata:   cd,
	}
}

// To returns the target contract address.
func (c *Call) To() *felt.Felt {
	return c.to
}

// EntryPoint returns the function name.
func (c *Call) EntryPoint() string {
	return c.entryPoint
}

// Selector returns the entry point selector.
func (c *Call) Selector() *felt.Felt {
	return c.selector
}

// Function returns the ABI declaration the call was populated from, if any.
func (c *Call) Function() *Function {
	return c.function
}

// Calldata returns a copy of the serialized arguments.
func (c *Call) Calldata() []*felt.Felt {
	cd := make([]*felt.Felt, len(c.calldata))
	copy(cd, c.calldata)
	return cd
}

// HasReturnValue returns true if the function declares outputs.
func (c *Call) HasReturnValue() bool {
	return c.function != nil && len(c.function.Outputs) > 0
}

// request returns the starknet_call form of the call.
func (c *Call) request() FunctionCall {
	return FunctionCall{
		ContractAddress:    FeltHex(c.to),
		EntryPointSelector: FeltHex(c.selector),
		Calldata:           feltsToHex(c.calldata),
	}
}

// String renders the call for log output.
func (c *Call) String() string {
	return c.entryPoint + "@" + FeltHex(c.to)
}
