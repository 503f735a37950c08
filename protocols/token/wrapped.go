package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Standard capability names used as keys of a MethodMap row.
const (
	StandardMint = "mint"
	StandardRate = "get_rate"
)

// ErrUnknownFamily is returned for a wrapped-coin family missing from the method map.
var ErrUnknownFamily = errors.New("token: unknown wrapped coin family")

// MethodMap maps a wrapped-coin family (the wrapper contract type) to its
// standard -> native method names.
type MethodMap map[string]map[string]string

// DefaultMethodMap covers the wrapper families the pool tests know about.
var DefaultMethodMap = MethodMap{
	"ATokenMock": {StandardRate: "_get_rate", StandardMint: "mint"},
	"cERC20":     {StandardRate: "exchangeRateStored", StandardMint: "mint"},
	"IdleToken":  {StandardRate: "tokenPrice", StandardMint: "mintIdleToken"},
	"renERC20":   {StandardRate: "exchangeRateCurrent"},
	"yERC20":     {StandardRate: "getPricePerFullShare", StandardMint: "deposit"},
	"aETH":       {StandardRate: "ratio"},
	"rETH":       {StandardRate: "getExchangeRate"},
}

// LoadMethodMap reads a method map from a YAML file.
func LoadMethodMap(path string) (MethodMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m MethodMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("token: decode method map: %w", err)
	}
	return m, nil
}

// Merge returns a copy of m with the families in other added or replaced.
func (m MethodMap) Merge(other MethodMap) MethodMap {
	out := make(MethodMap, len(m)+len(other))
	for family, row := range m {
		out[family] = row
	}
	for family, row := range other {
		out[family] = row
	}
	return out
}

// Wrapped adapts a wrapped coin's native API onto WrappedToken. Native names
// are resolved once, when the adapter is built.
type Wrapped struct {
	Token
	family  string
	aliases map[string]string
}

// NewWrapped resolves family's row of methods against inner's contract. A
// standard name whose native method the contract lacks stays unbound and its
// capability returns ErrUnsupported.
func NewWrapped(inner Token, family string, methods MethodMap) (*Wrapped, error) {
	row, ok := methods[family]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	aliases := make(map[string]string, len(row))
	c := inner.Contract()
	for standard, native := range row {
		if c.HasMethod(native) {
			aliases[standard] = native
		}
	}
	return &Wrapped{Token: inner, family: family, aliases: aliases}, nil
}

// Family returns the wrapper contract type.
func (w *Wrapped) Family() string {
	return w.family
}

// Native returns the native method bound to a standard name.
func (w *Wrapped) Native(standard string) (string, bool) {
	n, ok := w.aliases[standard]
	return n, ok
}

// Unwrap returns the handle the adapter was built over.
func (w *Wrapped) Unwrap() Token {
	return w.Token
}

func (w *Wrapped) Wrap(ctx context.Context, from common.Address, amount *big.Int) error {
	native, ok := w.aliases[StandardMint]
	if !ok {
		return fmt.Errorf("%w: %s has no %s", ErrUnsupported, w.family, StandardMint)
	}
	return w.Contract().Transact(ctx, from, native, amount)
}

func (w *Wrapped) Rate(ctx context.Context) (*big.Int, error) {
	native, ok := w.aliases[StandardRate]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s", ErrUnsupported, w.family, StandardRate)
	}
	out, err := w.Contract().Call(ctx, native)
	if err != nil {
		return nil, err
	}
	return single[*big.Int](out, native)
}
