package starkattest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is a connection to a Starknet JSON-RPC node.
// It is safe for concurrent use.
type Provider struct {
	client      *rpc.Client
	endpoint    string
	specVersion string
	blockID     BlockID
	logger      log.Logger
}

// Dial connects to the node at endpoint (http, https, ws, wss or an IPC
// path) and performs the specVersion handshake. Any failure, including a
// malformed version answer, is reported as a *ConnectivityError.
func Dial(ctx context.Context, endpoint string, opts ...ProviderOption) (*Provider, error) {
	cfg := defaultProviderConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []rpc.ClientOption{rpc.WithHeaders(cfg.headers)}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, rpc.WithHTTPClient(cfg.httpClient))
	}
	client, err := rpc.DialOptions(ctx, endpoint, clientOpts...)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: endpoint, Err: err}
	}

	p, err := newProvider(ctx, client, endpoint, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

// NewProvider wraps an existing RPC client and performs the handshake.
func NewProvider(ctx context.Context, client *rpc.Client, opts ...ProviderOption) (*Provider, error) {
	cfg := defaultProviderConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newProvider(ctx, client, "rpc client", cfg)
}

func newProvider(ctx context.Context, client *rpc.Client, endpoint string, cfg *providerConfig) (*Provider, error) {
	p := &Provider{
		client:   client,
		endpoint: endpoint,
		blockID:  cfg.blockID,
		logger:   cfg.logger,
	}

	version, err := p.SpecVersion(ctx)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: endpoint, Err: err}
	}
	if !validSpecVersion(version) {
		return nil, &ConnectivityError{Endpoint: endpoint, Err: fmt.Errorf("malformed spec version %q", version)}
	}
	p.specVersion = version
	p.logger.Info("Connected to Starknet node", "endpoint", endpoint, "specVersion", version)
	return p, nil
}

// validSpecVersion accepts MAJOR.MINOR or MAJOR.MINOR.PATCH, optionally
// followed by a "-" pre-release suffix, which may itself contain dots.
func validSpecVersion(v string) bool {
	core, pre, hasPre := strings.Cut(v, "-")
	if hasPre && pre == "" {
		return false
	}
	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 32); err != nil {
			return false
		}
	}
	return true
}

// Close releases the underlying connection.
func (p *Provider) Close() {
	p.client.Close()
}

// Endpoint returns the URL the provider is bound to.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// NodeSpecVersion returns the version negotiated at connection time.
func (p *Provider) NodeSpecVersion() string {
	return p.specVersion
}

// Logger returns the provider's logger.
func (p *Provider) Logger() log.Logger {
	return p.logger
}

func (p *Provider) call(ctx context.Context, result any, method string, args ...any) error {
	err := p.client.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		e := &RPCError{Method: method, Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			e.Data = dataErr.ErrorData()
		}
		return e
	}
	return fmt.Errorf("starkattest: %s: %w", method, err)
}

// SpecVersion calls starknet_specVersion.
func (p *Provider) SpecVersion(ctx context.Context) (string, error) {
	var version string
	if err := p.call(ctx, &version, "starknet_specVersion"); err != nil {
		return "", err
	}
	return version, nil
}

// ChainID calls starknet_chainId.
func (p *Provider) ChainID(ctx context.Context) (*felt.Felt, error) {
	var id string
	if err := p.call(ctx, &id, "starknet_chainId"); err != nil {
		return nil, err
	}
	return ParseFelt(id)
}

// Nonce returns the nonce of the account at address.
func (p *Provider) Nonce(ctx context.Context, address *felt.Felt) (*felt.Felt, error) {
	var nonce string
	if err := p.call(ctx, &nonce, "starknet_getNonce", p.blockID, FeltHex(address)); err != nil {
		return nil, err
	}
	return ParseFelt(nonce)
}

// ClassAt fetches the class deployed at address.
func (p *Provider) ClassAt(ctx context.Context, address *felt.Felt) (*ContractClass, error) {
	var class ContractClass
	if err := p.call(ctx, &class, "starknet_getClassAt", p.blockID, FeltHex(address)); err != nil {
		return nil, err
	}
	return &class, nil
}

// Call executes a read-only function call and returns the raw result felts.
func (p *Provider) Call(ctx context.Context, call FunctionCall) ([]*felt.Felt, error) {
	var result []string
	if err := p.call(ctx, &result, "starknet_call", call, p.blockID); err != nil {
		return nil, err
	}
	return feltsFromHex(result)
}

// EstimateFee estimates the fees of query-version transactions.
func (p *Provider) EstimateFee(ctx context.Context, txns []InvokeTxnV3) ([]FeeEstimate, error) {
	var estimates []FeeEstimate
	if err := p.call(ctx, &estimates, "starknet_estimateFee", txns, []string{}, p.blockID); err != nil {
		return nil, err
	}
	return estimates, nil
}

// AddInvokeTransaction broadcasts a signed transaction.
func (p *Provider) AddInvokeTransaction(ctx context.Context, txn InvokeTxnV3) (*AddInvokeResult, error) {
	var result AddInvokeResult
	if err := p.call(ctx, &result, "starknet_addInvokeTransaction", txn); err != nil {
		return nil, err
	}
	return &result, nil
}

// TransactionStatus calls starknet_getTransactionStatus.
func (p *Provider) TransactionStatus(ctx context.Context, txHash string) (*TransactionStatus, error) {
	var status TransactionStatus
	if err := p.call(ctx, &status, "starknet_getTransactionStatus", txHash); err != nil {
		return nil, err
	}
	return &status, nil
}

// TransactionReceipt calls starknet_getTransactionReceipt.
func (p *Provider) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw json.RawMessage
	if err := p.call(ctx, &raw, "starknet_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("starkattest: malformed receipt for %s: %w", txHash, err)
	}
	return &receipt, nil
}
