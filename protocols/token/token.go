package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/ethereum/go-ethereum/common"
)

// ErrUnsupported is returned when a handle lacks the native method behind a
// standard capability.
var ErrUnsupported = errors.New("token: capability not supported")

// Token is the uniform handle tests use for every provisioned coin.
type Token interface {
	Address() common.Address
	Contract() contract.Contract
	Name(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error

	// Mint credits target with amount for testing. How depends on the handle:
	// a mock mints, a forked token redistributes real balances.
	Mint(ctx context.Context, target common.Address, amount *big.Int) error
}

// WrappedToken adds the wrapped-coin capabilities, aliased from each family's
// native method names.
type WrappedToken interface {
	Token

	// Wrap deposits amount of the underlying coin from sender via the family's
	// native mint method.
	Wrap(ctx context.Context, from common.Address, amount *big.Int) error

	// Rate returns the wrapped-to-underlying exchange rate.
	Rate(ctx context.Context) (*big.Int, error)
}

// Handle implements the read and transfer half of Token over a contract.
// Concrete handles embed it and add Mint.
type Handle struct {
	c contract.Contract
}

func (h Handle) Address() common.Address {
	return h.c.Address()
}

func (h Handle) Contract() contract.Contract {
	return h.c
}

func (h Handle) Name(ctx context.Context) (string, error) {
	return NameOf(ctx, h.c)
}

func (h Handle) Decimals(ctx context.Context) (uint8, error) {
	out, err := h.c.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	// vyper tokens declare decimals as uint256
	if len(out) == 1 {
		if n, ok := out[0].(*big.Int); ok {
			if !n.IsUint64() || n.Uint64() > 255 {
				return 0, fmt.Errorf("token: decimals %s out of range", n)
			}
			return uint8(n.Uint64()), nil
		}
	}
	return single[uint8](out, "decimals")
}

func (h Handle) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return BalanceOf(ctx, h.c, owner)
}

func (h Handle) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return h.c.Transact(ctx, from, "transfer", to, amount)
}

// BalanceOf reads an ERC20 balance from any contract.
func BalanceOf(ctx context.Context, c contract.Contract, owner common.Address) (*big.Int, error) {
	out, err := c.Call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return single[*big.Int](out, "balanceOf")
}

// NameOf reads an ERC20 name from any contract.
func NameOf(ctx context.Context, c contract.Contract) (string, error) {
	out, err := c.Call(ctx, "name")
	if err != nil {
		return "", err
	}
	return single[string](out, "name")
}

// single extracts the only output of a call.
func single[T any](out []any, method string) (T, error) {
	var zero T
	if len(out) != 1 {
		return zero, fmt.Errorf("token: %s returned %d values, want 1", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("token: %s returned %T, want %T", method, out[0], zero)
	}
	return v, nil
}
