package starkattest

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions.
var (
	// ErrInvalidPrivateKey indicates the private key is zero, malformed, or
	// not below the Stark curve order.
	ErrInvalidPrivateKey = errors.New("starkattest: invalid private key")

	// ErrUnsupportedTxVersion indicates an account was asked to sign with a
	// transaction version other than V3.
	ErrUnsupportedTxVersion = errors.New("starkattest: unsupported transaction version (only V3)")

	// ErrNotConnected indicates a mutating call on a contract with no bound account.
	ErrNotConnected = errors.New("starkattest: contract is not connected to an account")

	// ErrNoCalls indicates a transaction was requested with an empty call list.
	ErrNoCalls = errors.New("starkattest: no calls to execute")

	// ErrShortData indicates a felt sequence ended before a value was fully decoded.
	ErrShortData = errors.New("starkattest: not enough data to decode value")

	// ErrValueOutOfRange indicates a value does not fit its Cairo type.
	ErrValueOutOfRange = errors.New("starkattest: value out of range")

	// ErrHashMismatch indicates a computed hash differs from the expected literal.
	ErrHashMismatch = errors.New("starkattest: hash mismatch")

	// ErrTimeout indicates a transaction was not included within the polling window.
	ErrTimeout = errors.New("starkattest: timed out waiting for transaction")

	// ErrContractNotFound is reported by the node for addresses without a deployed class.
	ErrContractNotFound = errors.New("starkattest: contract not found")

	// ErrTransactionNotFound is reported by the node for unknown transaction hashes.
	ErrTransactionNotFound = errors.New("starkattest: transaction hash not found")

	// ErrInvalidNonce indicates the node rejected the transaction nonce.
	ErrInvalidNonce = errors.New("starkattest: invalid transaction nonce")

	// ErrInsufficientResources indicates a resource bound is below what the
	// node's fee estimator requires.
	ErrInsufficientResources = errors.New("starkattest: insufficient resource bounds")

	// ErrInsufficientBalance indicates the account cannot cover the maximum fee.
	ErrInsufficientBalance = errors.New("starkattest: insufficient account balance")

	// ErrRejected indicates the sequencer rejected a submitted transaction
	// without including it.
	ErrRejected = errors.New("starkattest: transaction rejected by the sequencer")

	// ErrSignature indicates the account's validation rejected the signature,
	// usually because the key does not match the on-chain signer.
	ErrSignature = errors.New("starkattest: signature validation failed")
)

// Starknet JSON-RPC error codes that map onto sentinel errors.
const (
	codeContractNotFound      = 20
	codeTxnHashNotFound       = 29
	codeInvalidNonce          = 52
	codeInsufficientResources = 53
	codeInsufficientBalance   = 54
	codeValidationFailure     = 55
)

var rpcCodeErrors = map[int]error{
	codeContractNotFound:      ErrContractNotFound,
	codeTxnHashNotFound:       ErrTransactionNotFound,
	codeInvalidNonce:          ErrInvalidNonce,
	codeInsufficientResources: ErrInsufficientResources,
	codeInsufficientBalance:   ErrInsufficientBalance,
	codeValidationFailure:     ErrSignature,
}

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("starkattest: %s: rpc error %d: %s (%v)", e.Method, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("starkattest: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Is reports whether the error code corresponds to target.
func (e *RPCError) Is(target error) bool {
	sentinel := CodeSentinel(e.Code)
	return sentinel != nil && sentinel == target
}

// CodeSentinel returns the sentinel error a Starknet JSON-RPC error code maps
// to, or nil if the code has none.
func CodeSentinel(code int) error {
	return rpcCodeErrors[code]
}

// ConnectivityError indicates the node could not be reached or answered the
// handshake with something unusable.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("starkattest: cannot connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// SubmissionError indicates a signed transaction was rejected before inclusion.
type SubmissionError struct {
	TxHash string // empty if the node never acknowledged the transaction
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("starkattest: transaction %s rejected: %v", e.TxHash, e.Err)
	}
	return fmt.Sprintf("starkattest: transaction rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RevertedError indicates the transaction was included but its execution reverted.
// The receipt is still returned alongside this error.
type RevertedError struct {
	TxHash string
	Reason string
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("starkattest: transaction %s reverted: %s", e.TxHash, e.Reason)
}

// TimeoutError indicates inclusion was not observed within the polling window.
type TimeoutError struct {
	TxHash string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("starkattest: transaction %s not included after %s", e.TxHash, e.Waited)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ValidationError indicates a locally computed value did not match its expectation.
type ValidationError struct {
	What     string
	Expected string
	Got      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("starkattest: %s: expected %s, got %s", e.What, e.Expected, e.Got)
}

func (e *ValidationError) Unwrap() error {
	return ErrHashMismatch
}

// FunctionNotFoundError indicates the contract ABI doesn't declare the requested function.
type FunctionNotFoundError struct {
	Contract string
	Function string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("starkattest: function %q not found in contract %s", e.Function, e.Contract)
}

// ArgumentError indicates an issue with a function argument.
type ArgumentError struct {
	Function string
	Index    int
	Err      error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("starkattest: argument %d for function %q: %v", e.Index, e.Function, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// TypeMismatchError indicates a Go value can't represent the expected Cairo type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("starkattest: type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// EncodingError indicates a failure while serializing or deserializing a Cairo value.
type EncodingError struct {
	Type string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("starkattest: encoding %s: %v", e.Type, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
