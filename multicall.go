package starkattest

import (
	"github.com/NethermindEth/juno/core/felt"
)

// ExecuteEntryPoint is the account entry point that dispatches a multicall.
const ExecuteEntryPoint = "__execute__"

// Multicall is an ordered list of calls executed atomically by one
// transaction.
type Multicall struct {
	calls []*Call
}

// NewMulticall creates a multicall from calls, in order.
func NewMulticall(calls ...*Call) *Multicall {
	m := &Multicall{calls: make([]*Call, 0, len(calls))}
	for _, c := range calls {
		m.Add(c)
	}
	return m
}

// Add appends a call and returns the multicall for chaining.
func (m *Multicall) Add(call *Call) *Multicall {
	if call != nil {
		m.calls = append(m.calls, call)
	}
	return m
}

// Calls returns the calls in execution order.
func (m *Multicall) Calls() []*Call {
	out := make([]*Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Len returns the number of calls.
func (m *Multicall) Len() int {
	return len(m.calls)
}

// ExecuteCalldata encodes the calls as the __execute__ argument of an
// account with the given Cairo version.
//
// Cairo 1:
//
//	[n_calls, to_0, selector_0, len_0, data_0..., to_1, ...]
//
// Cairo 0:
//
//	[n_calls, (to, selector, data_offset, data_len)..., total_len, data...]
func (m *Multicall) ExecuteCalldata(version CairoVersion) ([]*felt.Felt, error) {
	if len(m.calls) == 0 {
		return nil, ErrNoCalls
	}

	out := []*felt.Felt{FeltFromUint64(uint64(len(m.calls)))}
	if version == Cairo0 {
		var flat []*felt.Felt
		for _, c := range m.calls {
			out = append(out,
				c.to,
				c.selector,
				FeltFromUint64(uint64(len(flat))),
				FeltFromUint64(uint64(len(c.calldata))),
			)
			flat = append(flat, c.calldata...)
		}
		out = append(out, FeltFromUint64(uint64(len(flat))))
		return append(out, flat...), nil
	}

	for _, c := range m.calls {
		out = append(out, c.to, c.selector, FeltFromUint64(uint64(len(c.calldata))))
		out = append(out, c.calldata...)
	}
	return out, nil
}
