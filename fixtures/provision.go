// Package fixtures provisions the coins a pool test needs: underlying coins,
// their wrapped variants, the pool LP token and the base-pool LP token, either
// as fresh mocks (local mode) or as real contracts on a fork (forked mode).
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/defistate/defi-coin-fixtures-go/protocols/pool"
	"github.com/defistate/defi-coin-fixtures-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
)

// Mock contract types deployed for underlying coins in local mode.
const (
	KindERC20Mock         = "ERC20Mock"
	KindERC20MockNoReturn = "ERC20MockNoReturn"
)

// Mode selects between deploying mocks and attaching to forked contracts.
type Mode int

const (
	Local Mode = iota
	Forked
)

func (m Mode) String() string {
	switch m {
	case Local:
		return "local"
	case Forked:
		return "forked"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses "local" or "forked".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "local", "":
		return Local, nil
	case "forked":
		return Forked, nil
	}
	return Local, fmt.Errorf("fixtures: unknown mode %q", s)
}

// ErrMissingBasePoolToken is returned when a base-pool-token slot has no
// base-pool handle to substitute in local mode.
var ErrMissingBasePoolToken = errors.New("fixtures: base pool token slot without a base pool token")

// ProvisionUnderlying produces one handle per coin slot, in slot order.
//
// Local mode deploys an ERC20 mock per slot, the no-return variant for
// tethered coins. Forked mode attaches to each slot's underlying address.
// Slots flagged as base-pool tokens receive basePoolToken itself.
func ProvisionUnderlying(
	ctx context.Context,
	backend contract.Backend,
	deployer common.Address,
	specs []pool.CoinSpec,
	mode Mode,
	basePoolToken token.Token,
	funder token.Funder,
) ([]token.Token, error) {
	coins := make([]token.Token, 0, len(specs))

	for i, spec := range specs {
		if spec.BasePoolToken {
			if basePoolToken != nil {
				coins = append(coins, basePoolToken)
				continue
			}
			if mode == Local {
				return nil, fmt.Errorf("coin %d: %w", i, ErrMissingBasePoolToken)
			}
		}

		switch mode {
		case Forked:
			c, err := backend.Attach(ctx, spec.UnderlyingAddress, "")
			if err != nil {
				return nil, err
			}
			coins = append(coins, token.NewForked(c, funder))

		default:
			kind := KindERC20Mock
			if spec.Tethered {
				kind = KindERC20MockNoReturn
			}
			c, err := backend.Deploy(ctx, kind, deployer,
				fmt.Sprintf("Underlying Coin %d", i),
				fmt.Sprintf("UC%d", i),
				spec.Decimals,
			)
			if err != nil {
				return nil, err
			}
			coins = append(coins, token.NewMock(c, deployer))
		}
	}

	return coins, nil
}

// ProvisionWrapped produces the wrapped counterpart of every underlying coin.
//
// A pool without a wrapped contract type gets underlying back unchanged, and
// every non-wrapped slot keeps its underlying handle. Wrapped slots are
// deployed (local) or attached (forked) and adapted onto WrappedToken through
// methods.
func ProvisionWrapped(
	ctx context.Context,
	backend contract.Backend,
	deployer common.Address,
	underlying []token.Token,
	data *pool.Data,
	mode Mode,
	funder token.Funder,
	methods token.MethodMap,
) ([]token.Token, error) {
	if !data.HasWrapped() {
		return underlying, nil
	}
	if len(underlying) != len(data.Coins) {
		return nil, fmt.Errorf("fixtures: pool %s has %d coins but %d underlying handles", data.Name, len(data.Coins), len(underlying))
	}

	family := data.WrappedContract
	coins := make([]token.Token, 0, len(data.Coins))

	for i, spec := range data.Coins {
		if !spec.Wrapped {
			coins = append(coins, underlying[i])
			continue
		}

		var inner token.Token
		switch mode {
		case Forked:
			c, err := backend.Attach(ctx, spec.WrappedAddress, family)
			if err != nil {
				return nil, err
			}
			inner = token.NewForked(c, funder)

		default:
			c, err := backend.Deploy(ctx, family, deployer,
				data.CoinName(i),
				data.CoinSymbol(i),
				spec.WrappedDecimals,
				underlying[i].Address(),
			)
			if err != nil {
				return nil, err
			}
			if spec.WithdrawalFee != nil && spec.WithdrawalFee.Sign() > 0 {
				if err := c.Transact(ctx, deployer, "_set_withdrawal_fee", spec.WithdrawalFee); err != nil {
					return nil, fmt.Errorf("coin %d: set withdrawal fee: %w", i, err)
				}
			}
			inner = token.NewMock(c, deployer)
		}

		wrapped, err := token.NewWrapped(inner, family, methods)
		if err != nil {
			return nil, err
		}
		coins = append(coins, wrapped)
	}

	return coins, nil
}

// DeployPoolToken deploys a pool's LP token from deployer with no initial supply.
func DeployPoolToken(ctx context.Context, deployer contract.Deployer, from common.Address, data *pool.Data) (token.Token, error) {
	c, err := deployer.Deploy(ctx, data.LPContract, from,
		fmt.Sprintf("Curve %s LP Token", data.Name),
		fmt.Sprintf("%sCRV", data.Name),
		uint8(18),
		new(big.Int),
	)
	if err != nil {
		return nil, err
	}
	return token.NewPlain(c), nil
}
