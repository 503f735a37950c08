// Package ethereum deploys, attaches to and drives contracts on an Ethereum
// JSON-RPC node, typically a local dev node or a mainnet fork (anvil, hardhat).
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	defaultReceiptPollInterval = 100 * time.Millisecond

	// Namespaces of the impersonation RPCs of the common fork nodes.
	NamespaceAnvil   = "anvil"
	NamespaceHardhat = "hardhat"
)

var (
	// ErrNoArtifact is wrapped in a DeploymentError for an unknown contract type.
	ErrNoArtifact = errors.New("no build artifact for contract type")
	// ErrNoCode is wrapped in an AttachmentError when the address holds no code.
	ErrNoCode = errors.New("no contract code at address")
	// ErrTxFailed is returned when a mined transaction has status 0.
	ErrTxFailed = errors.New("transaction failed")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for a Backend.
type Config struct {
	// URL is the node endpoint, used by Dial.
	URL string
	// Artifacts are the deployable contract types, keyed by name.
	Artifacts map[string]*Artifact
	// Namespace selects the impersonation RPCs ("anvil" or "hardhat"). Empty
	// disables impersonation: every sender must then be unlocked on the node.
	Namespace string
	// GasAllowance is the ether balance given to impersonated senders that
	// hold less.
	GasAllowance *big.Int
	// ReceiptPollInterval defaults to 100ms.
	ReceiptPollInterval time.Duration
	Logger              Logger
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	switch c.Namespace {
	case "", NamespaceAnvil, NamespaceHardhat:
	default:
		return fmt.Errorf("config: unknown impersonation namespace %q", c.Namespace)
	}
	if c.GasAllowance != nil && c.GasAllowance.Sign() < 0 {
		return errors.New("config: GasAllowance must be non-negative")
	}
	return nil
}

// Backend implements contract.Backend over JSON-RPC. Transactions are sent
// unsigned through eth_sendTransaction, so senders must be node-managed or
// impersonated.
type Backend struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	artifacts    map[string]*Artifact
	namespace    string
	gasAllowance *big.Int
	pollInterval time.Duration
	impersonated mapset.Set[common.Address]
	logger       Logger
}

// Dial connects to cfg.URL and returns a Backend over it.
func Dial(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URL == "" {
		return nil, errors.New("config: URL is required")
	}
	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	b, err := NewBackend(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

// NewBackend wraps an existing RPC client.
func NewBackend(client *rpc.Client, cfg Config) (*Backend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if cfg.GasAllowance == nil {
		cfg.GasAllowance = new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil) // 100 ether
	}
	if cfg.Artifacts == nil {
		cfg.Artifacts = map[string]*Artifact{}
	}
	return &Backend{
		rpc:          client,
		eth:          ethclient.NewClient(client),
		artifacts:    cfg.Artifacts,
		namespace:    cfg.Namespace,
		gasAllowance: cfg.GasAllowance,
		pollInterval: cfg.ReceiptPollInterval,
		impersonated: mapset.NewSet[common.Address](),
		logger:       cfg.Logger,
	}, nil
}

// Close closes the underlying RPC connection.
func (b *Backend) Close() {
	b.rpc.Close()
}

// Deploy creates a contract of the named artifact type from sender from.
func (b *Backend) Deploy(ctx context.Context, kind string, from common.Address, args ...any) (contract.Contract, error) {
	art, ok := b.artifacts[kind]
	if !ok {
		return nil, &contract.DeploymentError{Kind: kind, Err: ErrNoArtifact}
	}
	if len(art.Bytecode) == 0 {
		return nil, &contract.DeploymentError{Kind: kind, Err: errors.New("artifact has no bytecode")}
	}

	coerced, err := coerceArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: err}
	}
	packed, err := art.ABI.Pack("", coerced...)
	if err != nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: fmt.Errorf("pack constructor: %w", err)}
	}
	data := make([]byte, 0, len(art.Bytecode)+len(packed))
	data = append(data, art.Bytecode...)
	data = append(data, packed...)

	rcpt, err := b.sendAndWait(ctx, from, nil, data)
	if err != nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: err}
	}
	if rcpt.ContractAddress == nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: errors.New("receipt has no contract address")}
	}

	b.logger.Debug("Deployed contract", "kind", kind, "address", *rcpt.ContractAddress, "from", from, "tx", rcpt.TxHash)
	return b.bind(*rcpt.ContractAddress, kind, &art.ABI), nil
}

// Attach binds to the contract at address. The ERC20 interface is always
// available; kind's artifact ABI, when known, is layered on top.
func (b *Backend) Attach(ctx context.Context, address common.Address, kind string) (contract.Contract, error) {
	code, err := b.eth.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, &contract.AttachmentError{Address: address, Err: err}
	}
	if len(code) == 0 {
		return nil, &contract.AttachmentError{Address: address, Err: ErrNoCode}
	}

	var extra *abi.ABI
	if art, ok := b.artifacts[kind]; ok {
		extra = &art.ABI
	}
	return b.bind(address, kind, extra), nil
}

func (b *Backend) bind(address common.Address, kind string, extra *abi.ABI) *boundContract {
	return &boundContract{
		backend: b,
		address: address,
		kind:    kind,
		abi:     mergeABI(erc20ABI, extra),
	}
}

// impersonate unlocks sender on the fork and tops up its gas money, once per
// sender for the life of the backend.
func (b *Backend) impersonate(ctx context.Context, sender common.Address) error {
	if b.namespace == "" || b.impersonated.Contains(sender) {
		return nil
	}
	if err := b.rpc.CallContext(ctx, nil, b.namespace+"_impersonateAccount", sender); err != nil {
		return fmt.Errorf("impersonate %s: %w", sender.Hex(), err)
	}
	balance, err := b.eth.BalanceAt(ctx, sender, nil)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", sender.Hex(), err)
	}
	if balance.Cmp(b.gasAllowance) < 0 {
		if err := b.rpc.CallContext(ctx, nil, b.namespace+"_setBalance", sender, (*hexutil.Big)(b.gasAllowance)); err != nil {
			return fmt.Errorf("fund gas of %s: %w", sender.Hex(), err)
		}
	}
	b.impersonated.Add(sender)
	b.logger.Debug("Impersonating account", "address", sender, "namespace", b.namespace)
	return nil
}

type receipt struct {
	TxHash          common.Hash     `json:"transactionHash"`
	Status          hexutil.Uint64  `json:"status"`
	ContractAddress *common.Address `json:"contractAddress"`
}

// sendAndWait submits an unsigned transaction from sender and blocks until
// it is mined. A reverted transaction is an error.
func (b *Backend) sendAndWait(ctx context.Context, from common.Address, to *common.Address, data []byte) (*receipt, error) {
	if err := b.impersonate(ctx, from); err != nil {
		return nil, err
	}

	args := map[string]any{
		"from": from,
		"data": hexutil.Bytes(data),
	}
	if to != nil {
		args["to"] = *to
	}

	var hash common.Hash
	if err := b.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	for {
		var rcpt *receipt
		if err := b.rpc.CallContext(ctx, &rcpt, "eth_getTransactionReceipt", hash); err != nil {
			return nil, fmt.Errorf("receipt of %s: %w", hash.Hex(), err)
		}
		if rcpt != nil {
			if rcpt.Status == 0 {
				return rcpt, fmt.Errorf("%w: %s", ErrTxFailed, hash.Hex())
			}
			return rcpt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}
	}
}

// ChainID returns the chain ID reported by the node.
func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.eth.ChainID(ctx)
}
