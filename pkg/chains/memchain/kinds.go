package memchain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type methodFunc func(c *Chain, inst *instance, from common.Address, args []any) ([]any, error)

type method struct {
	view bool
	fn   methodFunc
}

type kind struct {
	ctor    func(c *Chain, inst *instance, args []any) error
	methods map[string]method
}

type instance struct {
	address  common.Address
	kind     string
	name     string
	symbol   string
	decimals uint8
	owner    common.Address
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int

	// wrapped coins only
	underlying    common.Address
	rate          *uint256.Int
	withdrawalFee *uint256.Int
}

func (i *instance) balance(owner common.Address) *uint256.Int {
	if b, ok := i.balances[owner]; ok {
		return b
	}
	return new(uint256.Int)
}

func (i *instance) mint(to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(i.supply, amount)
	if overflow {
		return fmt.Errorf("%w: total supply overflow", ErrReverted)
	}
	i.supply = supply
	i.balances[to] = new(uint256.Int).Add(i.balance(to), amount)
	return nil
}

var oneEther = uint256.NewInt(1e18)

// kinds is the table of contract types memchain can emulate.
var kinds = map[string]kind{}

func init() {
	kinds["ERC20Mock"] = kind{ctor: erc20Ctor, methods: with(erc20Methods(true), testMint)}
	kinds["ERC20MockNoReturn"] = kind{ctor: erc20Ctor, methods: with(erc20Methods(false), testMint)}
	kinds["ERC20Privileged"] = kind{ctor: erc20Ctor, methods: with(erc20Methods(true), privilegedMint)}

	for _, lp := range []string{"CurveTokenV1", "CurveTokenV2", "CurveTokenV3", "CurveTokenV4"} {
		kinds[lp] = kind{ctor: lpCtor, methods: with(erc20Methods(true), lpMint)}
	}

	families := map[string]map[string]methodFunc{
		"ATokenMock": {"mint": wrap, "_get_rate": getRate},
		"cERC20":     {"mint": wrap, "exchangeRateStored": getRate, "exchangeRateCurrent": getRate},
		"IdleToken":  {"mintIdleToken": wrap, "tokenPrice": getRate},
		"renERC20":   {"exchangeRateCurrent": getRate},
		"yERC20":     {"deposit": wrap, "getPricePerFullShare": getRate},
		"aETH":       {"ratio": getRate},
		"rETH":       {"getExchangeRate": getRate},
	}
	for family, natives := range families {
		methods := with(erc20Methods(true), testMint, wrapperAdmin)
		for name, fn := range natives {
			// wrapping mutates balances; rate getters are views
			methods[name] = method{view: name != "mint" && name != "deposit" && name != "mintIdleToken", fn: fn}
		}
		kinds[family] = kind{ctor: wrappedCtor, methods: methods}
	}
}

func with(base map[string]method, extras ...func(map[string]method)) map[string]method {
	for _, extra := range extras {
		extra(base)
	}
	return base
}

func erc20Methods(returnsBool bool) map[string]method {
	return map[string]method{
		"name":        {view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) { return []any{i.name}, nil }},
		"symbol":      {view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) { return []any{i.symbol}, nil }},
		"decimals":    {view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) { return []any{i.decimals}, nil }},
		"totalSupply": {view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) { return []any{i.supply.ToBig()}, nil }},
		"balanceOf": {view: true, fn: func(_ *Chain, i *instance, _ common.Address, args []any) ([]any, error) {
			owner, err := argAddress(args, 0)
			if err != nil {
				return nil, err
			}
			return []any{i.balance(owner).ToBig()}, nil
		}},
		"transfer": {fn: func(c *Chain, i *instance, from common.Address, args []any) ([]any, error) {
			to, err := argAddress(args, 0)
			if err != nil {
				return nil, err
			}
			amount, err := argUint(args, 1)
			if err != nil {
				return nil, err
			}
			if err := c.move(i, from, to, amount); err != nil {
				return nil, err
			}
			if returnsBool {
				return []any{true}, nil
			}
			return nil, nil
		}},
	}
}

func testMint(m map[string]method) {
	m["_mint_for_testing"] = method{fn: func(_ *Chain, i *instance, _ common.Address, args []any) ([]any, error) {
		to, amount, err := addressAndAmount(args)
		if err != nil {
			return nil, err
		}
		return nil, i.mint(to, amount)
	}}
}

// privilegedMint models tokens that only a designated account can mint or
// deposit into, the two special-cased mainnet tokens.
func privilegedMint(m map[string]method) {
	fn := func(_ *Chain, i *instance, from common.Address, args []any) ([]any, error) {
		if from != i.owner {
			return nil, fmt.Errorf("%w: caller %s is not the minter", ErrReverted, from.Hex())
		}
		to, amount, err := addressAndAmount(args)
		if err != nil {
			return nil, err
		}
		return nil, i.mint(to, amount)
	}
	m["mint"] = method{fn: fn}
	m["deposit"] = method{fn: fn}
}

func lpMint(m map[string]method) {
	m["mint"] = method{fn: func(_ *Chain, i *instance, from common.Address, args []any) ([]any, error) {
		if from != i.owner {
			return nil, fmt.Errorf("%w: caller %s is not the minter", ErrReverted, from.Hex())
		}
		to, amount, err := addressAndAmount(args)
		if err != nil {
			return nil, err
		}
		return []any{true}, i.mint(to, amount)
	}}
	m["set_minter"] = method{fn: func(_ *Chain, i *instance, from common.Address, args []any) ([]any, error) {
		if from != i.owner {
			return nil, fmt.Errorf("%w: caller %s is not the minter", ErrReverted, from.Hex())
		}
		minter, err := argAddress(args, 0)
		if err != nil {
			return nil, err
		}
		i.owner = minter
		return nil, nil
	}}
}

func wrapperAdmin(m map[string]method) {
	m["_set_withdrawal_fee"] = method{fn: func(_ *Chain, i *instance, _ common.Address, args []any) ([]any, error) {
		fee, err := argUint(args, 0)
		if err != nil {
			return nil, err
		}
		i.withdrawalFee = fee
		return nil, nil
	}}
	m["_withdrawal_fee"] = method{view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) {
		if i.withdrawalFee == nil {
			return []any{new(big.Int)}, nil
		}
		return []any{i.withdrawalFee.ToBig()}, nil
	}}
	m["_set_exchange_rate"] = method{fn: func(_ *Chain, i *instance, _ common.Address, args []any) ([]any, error) {
		rate, err := argUint(args, 0)
		if err != nil {
			return nil, err
		}
		if rate.IsZero() {
			return nil, fmt.Errorf("%w: zero exchange rate", ErrReverted)
		}
		i.rate = rate
		return nil, nil
	}}
	m["underlying"] = method{view: true, fn: func(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) {
		return []any{i.underlying}, nil
	}}
}

// wrap pulls amount of the underlying coin from the sender into the wrapper
// and mints amount * 1e18 / rate wrapped coins back.
func wrap(c *Chain, i *instance, from common.Address, args []any) ([]any, error) {
	amount, err := argUint(args, 0)
	if err != nil {
		return nil, err
	}
	under, ok := c.contracts[i.underlying]
	if !ok {
		return nil, fmt.Errorf("%w: underlying %s not deployed", ErrReverted, i.underlying.Hex())
	}
	minted, overflow := new(uint256.Int).MulOverflow(amount, oneEther)
	if overflow {
		return nil, fmt.Errorf("%w: wrap amount overflow", ErrReverted)
	}
	minted.Div(minted, i.rate)
	if err := c.move(under, from, i.address, amount); err != nil {
		return nil, err
	}
	if err := i.mint(from, minted); err != nil {
		return nil, err
	}
	return []any{new(big.Int)}, nil
}

func getRate(_ *Chain, i *instance, _ common.Address, _ []any) ([]any, error) {
	return []any{i.rate.ToBig()}, nil
}

// erc20Ctor: (name, symbol, decimals)
func erc20Ctor(_ *Chain, inst *instance, args []any) error {
	if len(args) != 3 {
		return fmt.Errorf("constructor takes (name, symbol, decimals), got %d args", len(args))
	}
	var err error
	if inst.name, err = argString(args, 0); err != nil {
		return err
	}
	if inst.symbol, err = argString(args, 1); err != nil {
		return err
	}
	inst.decimals, err = argUint8(args, 2)
	return err
}

// lpCtor: (name, symbol, decimals, supply); supply is in whole tokens and
// minted to the deployer, who also becomes the minter.
func lpCtor(c *Chain, inst *instance, args []any) error {
	if len(args) != 4 {
		return fmt.Errorf("constructor takes (name, symbol, decimals, supply), got %d args", len(args))
	}
	if err := erc20Ctor(c, inst, args[:3]); err != nil {
		return err
	}
	supply, err := argUint(args, 3)
	if err != nil {
		return err
	}
	if supply.IsZero() {
		return nil
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(inst.decimals)))
	return inst.mint(inst.owner, new(uint256.Int).Mul(supply, scale))
}

// wrappedCtor: (name, symbol, decimals, underlying)
func wrappedCtor(c *Chain, inst *instance, args []any) error {
	if len(args) != 4 {
		return fmt.Errorf("constructor takes (name, symbol, decimals, underlying), got %d args", len(args))
	}
	if err := erc20Ctor(c, inst, args[:3]); err != nil {
		return err
	}
	underlying, err := argAddress(args, 3)
	if err != nil {
		return err
	}
	inst.underlying = underlying
	return nil
}

var errBadArg = errors.New("bad argument")

func addressAndAmount(args []any) (common.Address, *uint256.Int, error) {
	to, err := argAddress(args, 0)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := argUint(args, 1)
	return to, amount, err
}

func argAt(args []any, i int) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", errBadArg, i)
	}
	return args[i], nil
}

func argAddress(args []any, i int) (common.Address, error) {
	v, err := argAt(args, i)
	if err != nil {
		return common.Address{}, err
	}
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		return *a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("%w: %q is not an address", errBadArg, a)
		}
		return common.HexToAddress(a), nil
	}
	return common.Address{}, fmt.Errorf("%w: argument %d is %T, want address", errBadArg, i, v)
}

func argUint(args []any, i int) (*uint256.Int, error) {
	v, err := argAt(args, i)
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case *big.Int:
		if n == nil || n.Sign() < 0 {
			return nil, fmt.Errorf("%w: argument %d must be a non-negative integer", errBadArg, i)
		}
		u, overflow := uint256.FromBig(n)
		if overflow {
			return nil, fmt.Errorf("%w: argument %d overflows uint256", errBadArg, i)
		}
		return u, nil
	case *uint256.Int:
		return new(uint256.Int).Set(n), nil
	case uint64:
		return uint256.NewInt(n), nil
	case uint8:
		return uint256.NewInt(uint64(n)), nil
	case int:
		if n < 0 {
			return nil, fmt.Errorf("%w: argument %d must be non-negative", errBadArg, i)
		}
		return uint256.NewInt(uint64(n)), nil
	}
	return nil, fmt.Errorf("%w: argument %d is %T, want integer", errBadArg, i, v)
}

func argUint8(args []any, i int) (uint8, error) {
	u, err := argUint(args, i)
	if err != nil {
		return 0, err
	}
	if !u.IsUint64() || u.Uint64() > 255 {
		return 0, fmt.Errorf("%w: argument %d overflows uint8", errBadArg, i)
	}
	return uint8(u.Uint64()), nil
}

func argString(args []any, i int) (string, error) {
	v, err := argAt(args, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, want string", errBadArg, i, v)
	}
	return s, nil
}
