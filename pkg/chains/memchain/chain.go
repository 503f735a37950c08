// Package memchain is an in-memory chain that understands the mock contract
// types the coin fixtures deploy: plain and no-return ERC20 mocks, privileged
// mintable tokens, Curve-style LP tokens and every wrapped-coin family in the
// default method map. It backs local mode when no dev node is available and is
// the chain double for unit tests.
package memchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	// ErrNoCode is wrapped in an AttachmentError when nothing is deployed at an address.
	ErrNoCode = errors.New("no contract code at address")
	// ErrUnknownKind is wrapped in a DeploymentError for contract types memchain cannot emulate.
	ErrUnknownKind = errors.New("unknown contract kind")
	// ErrUnknownMethod is returned when calling a method the contract does not expose.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrReverted mirrors an EVM revert: the call had no effect.
	ErrReverted = errors.New("execution reverted")
)

// Transfer is one recorded balance movement.
type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Deployment is one recorded contract creation.
type Deployment struct {
	Kind    string
	Address common.Address
	From    common.Address
	Args    []any
}

// Chain holds all contract state. It is safe for concurrent use.
type Chain struct {
	mu          sync.Mutex
	contracts   map[common.Address]*instance
	nonces      map[common.Address]uint64
	rejected    map[string]error
	transfers   []Transfer
	deployments []Deployment
	calls       map[string]int
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{
		contracts: make(map[common.Address]*instance),
		nonces:    make(map[common.Address]uint64),
		rejected:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Deploy creates a contract of the given kind. The address is derived from
// the sender and its nonce, as on a real chain.
func (c *Chain) Deploy(ctx context.Context, kind string, from common.Address, args ...any) (contract.Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.rejected[kind]; ok {
		return nil, &contract.DeploymentError{Kind: kind, Err: err}
	}

	nonce := c.nonces[from]
	addr := crypto.CreateAddress(from, nonce)
	if err := c.create(addr, kind, from, args); err != nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: err}
	}
	c.nonces[from] = nonce + 1
	c.deployments = append(c.deployments, Deployment{Kind: kind, Address: addr, From: from, Args: args})

	return &bound{chain: c, address: addr, kind: kind}, nil
}

// Install places a contract at a fixed address, the way a fork exposes
// mainnet contracts at their real addresses.
func (c *Chain) Install(addr common.Address, kind string, owner common.Address, args ...any) (contract.Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.contracts[addr]; exists {
		return nil, &contract.DeploymentError{Kind: kind, Err: fmt.Errorf("address %s already in use", addr.Hex())}
	}
	if err := c.create(addr, kind, owner, args); err != nil {
		return nil, &contract.DeploymentError{Kind: kind, Err: err}
	}
	return &bound{chain: c, address: addr, kind: kind}, nil
}

// Attach binds to an existing contract. The requested kind is informational:
// the instance keeps the kind it was created with.
func (c *Chain) Attach(ctx context.Context, address common.Address, kind string) (contract.Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.contracts[address]
	if !ok {
		return nil, &contract.AttachmentError{Address: address, Err: ErrNoCode}
	}
	return &bound{chain: c, address: address, kind: inst.kind}, nil
}

// Reject makes every later deployment of kind fail with err.
func (c *Chain) Reject(kind string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejected[kind] = err
}

// BalanceOf reads a token balance directly, bypassing the contract interface.
func (c *Chain) BalanceOf(token, owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.contracts[token]
	if !ok {
		return new(big.Int)
	}
	return inst.balance(owner).ToBig()
}

// Transfers returns a copy of every balance movement so far.
func (c *Chain) Transfers() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transfer, len(c.transfers))
	copy(out, c.transfers)
	return out
}

// Deployments returns a copy of every contract creation so far.
func (c *Chain) Deployments() []Deployment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Deployment, len(c.deployments))
	copy(out, c.deployments)
	return out
}

// Calls returns how many times method was invoked on token, reads and writes alike.
func (c *Chain) Calls(token common.Address, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[callKey(token, method)]
}

func (c *Chain) create(addr common.Address, kind string, owner common.Address, args []any) error {
	k, ok := kinds[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	inst := &instance{
		address:  addr,
		kind:     kind,
		owner:    owner,
		balances: make(map[common.Address]*uint256.Int),
		supply:   new(uint256.Int),
		rate:     uint256.NewInt(1e18),
	}
	if k.ctor != nil {
		if err := k.ctor(c, inst, args); err != nil {
			return err
		}
	}
	c.contracts[addr] = inst
	return nil
}

func (c *Chain) invoke(addr common.Address, from common.Address, name string, write bool, args []any) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.contracts[addr]
	if !ok {
		return nil, ErrNoCode
	}
	name = methodName(name)
	m, ok := kinds[inst.kind].methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, inst.kind, name)
	}
	if !write && !m.view {
		return nil, fmt.Errorf("%s.%s is not a view method", inst.kind, name)
	}
	c.calls[callKey(addr, name)]++
	return m.fn(c, inst, from, args)
}

// move shifts amount of inst's token between two accounts and records it.
func (c *Chain) move(inst *instance, from, to common.Address, amount *uint256.Int) error {
	bal := inst.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s balance of %s is %s, need %s", ErrReverted, inst.symbol, from.Hex(), bal.Dec(), amount.Dec())
	}
	inst.balances[from] = new(uint256.Int).Sub(bal, amount)
	inst.balances[to] = new(uint256.Int).Add(inst.balance(to), amount)
	c.transfers = append(c.transfers, Transfer{Token: inst.address, From: from, To: to, Amount: amount.ToBig()})
	return nil
}

func callKey(addr common.Address, method string) string {
	return addr.Hex() + "." + methodName(method)
}

// methodName strips the argument list from a full signature.
func methodName(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		return name[:i]
	}
	return name
}

// bound is a contract.Contract view over one memchain instance.
type bound struct {
	chain   *Chain
	address common.Address
	kind    string
}

func (b *bound) Address() common.Address { return b.address }

func (b *bound) Kind() string { return b.kind }

func (b *bound) HasMethod(name string) bool {
	_, ok := kinds[b.kind].methods[methodName(name)]
	return ok
}

func (b *bound) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	return b.chain.invoke(b.address, common.Address{}, method, false, args)
}

func (b *bound) Transact(ctx context.Context, from common.Address, method string, args ...any) error {
	_, err := b.chain.invoke(b.address, from, method, true, args)
	return err
}
