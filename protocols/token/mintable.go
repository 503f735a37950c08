package token

import (
	"context"
	"math/big"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/ethereum/go-ethereum/common"
)

// MockToken is a locally deployed mock whose contract exposes _mint_for_testing.
type MockToken struct {
	Handle
	minter common.Address
}

// NewMock wraps a mock contract. minter signs the _mint_for_testing calls.
func NewMock(c contract.Contract, minter common.Address) *MockToken {
	return &MockToken{Handle: Handle{c: c}, minter: minter}
}

func (m *MockToken) Mint(ctx context.Context, target common.Address, amount *big.Int) error {
	return m.c.Transact(ctx, m.minter, "_mint_for_testing", target, amount)
}

// PlainToken is a deployed contract with no test minting, such as a pool LP
// token whose supply only grows through liquidity deposits.
type PlainToken struct {
	Handle
}

// NewPlain wraps a contract that cannot mint for testing.
func NewPlain(c contract.Contract) *PlainToken {
	return &PlainToken{Handle: Handle{c: c}}
}

func (p *PlainToken) Mint(context.Context, common.Address, *big.Int) error {
	return ErrUnsupported
}

// Funder produces balances of a real token on a forked chain.
type Funder interface {
	Fund(ctx context.Context, c contract.Contract, target common.Address, amount *big.Int) error
}

// ForkedToken is a real token attached on a forked chain. Minting is
// delegated to a Funder.
type ForkedToken struct {
	Handle
	funder Funder
}

// NewForked wraps an attached contract.
func NewForked(c contract.Contract, funder Funder) *ForkedToken {
	return &ForkedToken{Handle: Handle{c: c}, funder: funder}
}

func (f *ForkedToken) Mint(ctx context.Context, target common.Address, amount *big.Int) error {
	return f.funder.Fund(ctx, f.c, target, amount)
}

// InitialHolderToken decorates a token that cannot mint for testing (a pool
// LP token) so that Mint transfers from the account that holds its supply.
type InitialHolderToken struct {
	Token
	holder common.Address
}

// WithInitialHolder returns t with Mint backed by transfers from holder.
func WithInitialHolder(t Token, holder common.Address) *InitialHolderToken {
	return &InitialHolderToken{Token: t, holder: holder}
}

// Holder returns the account Mint draws from.
func (i *InitialHolderToken) Holder() common.Address {
	return i.holder
}

func (i *InitialHolderToken) Mint(ctx context.Context, target common.Address, amount *big.Int) error {
	return i.Token.Transfer(ctx, i.holder, target, amount)
}
