package starkattest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	headers    http.Header
	httpClient *http.Client
	logger     log.Logger
	blockID    BlockID
}

func defaultProviderConfig() *providerConfig {
	return &providerConfig{
		headers: make(http.Header),
		logger:  log.Root(),
		blockID: BlockTag("latest"),
	}
}

// WithHTTPHeader adds a header to every request, e.g. an API key.
func WithHTTPHeader(key, value string) ProviderOption {
	return func(c *providerConfig) {
		c.headers.Add(key, value)
	}
}

// WithHTTPClient sets the HTTP client used for http(s) endpoints.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(c *providerConfig) {
		c.httpClient = client
	}
}

// WithProviderLogger sets the provider's logger. Default is log.Root().
func WithProviderLogger(logger log.Logger) ProviderOption {
	return func(c *providerConfig) {
		c.logger = logger
	}
}

// WithBlockID sets the block that reads (call, nonce, class) are evaluated
// against. Default is "latest".
func WithBlockID(id BlockID) ProviderOption {
	return func(c *providerConfig) {
		c.blockID = id
	}
}

// CairoVersion selects the __execute__ calldata layout of an account.
type CairoVersion uint8

const (
	// Cairo1 accounts take [n_calls, (to, selector, len, data...)...].
	Cairo1 CairoVersion = 1

	// Cairo0 accounts take a call array followed by the flattened calldata.
	Cairo0 CairoVersion = 0
)

// AccountOption configures an Account.
type AccountOption func(*Account)

// WithCairoVersion sets the account's calldata layout. Default is Cairo1.
func WithCairoVersion(v CairoVersion) AccountOption {
	return func(a *Account) {
		a.cairoVersion = v
	}
}

// WithChainID fixes the chain id used in transaction hashes, skipping the
// starknet_chainId lookup.
func WithChainID(chainID string) AccountOption {
	return func(a *Account) {
		if f, err := ParseFelt(chainID); err == nil {
			a.chainID = f
		} else if f, err := EncodeShortString(chainID); err == nil {
			a.chainID = f
		} else {
			a.optErr = fmt.Errorf("starkattest: invalid chain id %q: %w", chainID, err)
		}
	}
}

// WithAccountLogger sets the account's logger. Default is the provider's.
func WithAccountLogger(logger log.Logger) AccountOption {
	return func(a *Account) {
		a.logger = logger
	}
}

// SubmitOption configures SubmitAndWait.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	policy       FeePolicy
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// Defaults for the receipt polling loop.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultWaitTimeout  = 5 * time.Minute
)

func defaultSubmitConfig() *submitConfig {
	return &submitConfig{
		policy:       DefaultFeePolicy(),
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
	}
}

func newSubmitConfig(opts []SubmitOption) *submitConfig {
	cfg := defaultSubmitConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithFeePolicy replaces the default fee policy.
func WithFeePolicy(p FeePolicy) SubmitOption {
	return func(c *submitConfig) {
		c.policy = p
	}
}

// WithPollInterval sets how often the transaction status is polled.
// Non-positive values are ignored.
func WithPollInterval(d time.Duration) SubmitOption {
	return func(c *submitConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithWaitTimeout sets how long to wait for inclusion before giving up with
// a TimeoutError. Non-positive values are ignored.
func WithWaitTimeout(d time.Duration) SubmitOption {
	return func(c *submitConfig) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}
