// Package starkattest drives contract calls against a Starknet JSON-RPC node:
// it derives a Stark key, signs V3 invoke transactions for an account,
// serializes arguments from a contract's Cairo ABI, and waits for receipts.
//
// # Basic Usage
//
// Connect, bind a contract to an account, and invoke:
//
//	keys, err := starkattest.NewKeyPair(privateKeyHex)
//	provider, err := starkattest.Dial(ctx, "http://127.0.0.1:5050/rpc")
//	account, err := starkattest.NewAccount(provider, accountAddress, keys, starkattest.TxVersionV3)
//
//	contract, err := starkattest.NewContractAt(ctx, provider, contractAddress)
//	contract.Connect(account)
//
//	// Read-only: no transaction, no account needed.
//	out, err := contract.Call(ctx, "encodeRequest", request)
//
//	// Mutating: one signed transaction, blocks until included.
//	receipt, err := contract.Invoke(ctx, "setAttestor", attestor)
//
// # Transactions
//
// Every transaction is INVOKE version 3. Its resource bounds, tip and data
// availability modes come from a FeePolicy; DefaultFeePolicy holds values
// suited to a local devnet. Several calls can be submitted atomically with
// Account.SubmitAndWait, which encodes them as one __execute__ multicall.
//
// SubmitAndWait submits exactly once. Errors are typed:
//
//   - *ConnectivityError: the node is unreachable or the handshake failed
//   - *SubmissionError: the node rejected the transaction; errors.Is matches
//     ErrInsufficientResources, ErrSignature, ErrInvalidNonce, ...
//   - *TimeoutError: inclusion was not observed in the polling window
//   - *RevertedError: included, but execution reverted (the receipt is
//     returned as well)
//
// # Values
//
// Arguments are plain Go values converted according to the ABI: integers,
// *big.Int and numeric strings for felts and integers, strings for
// ByteArray, common.Address for EthAddress, slices for Array and Span,
// map[string]any or tagged structs for structs, and Enum for enums.
package starkattest
