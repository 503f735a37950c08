package token

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Index provides fast lookup over an ordered coin list, by pool position or
// by contract address.
type Index struct {
	byAddress map[common.Address]int
	all       []Token
}

// NewIndex indexes tokens. Position i in the list is pool coin index i.
func NewIndex(tokens []Token) *Index {
	byAddress := make(map[common.Address]int, len(tokens))
	for i, t := range tokens {
		// a coin listed twice keeps its first position
		if _, seen := byAddress[t.Address()]; !seen {
			byAddress[t.Address()] = i
		}
	}

	return &Index{
		byAddress: byAddress,
		all:       tokens,
	}
}

// GetByPosition retrieves the coin at pool index i.
func (x *Index) GetByPosition(i int) (Token, bool) {
	if i < 0 || i >= len(x.all) {
		return nil, false
	}
	return x.all[i], true
}

// GetByAddress retrieves a coin by its contract address.
func (x *Index) GetByAddress(address common.Address) (Token, int, bool) {
	i, ok := x.byAddress[address]
	if !ok {
		return nil, -1, false
	}
	return x.all[i], i, true
}

// Resolve accepts either a decimal pool index or a hex contract address.
func (x *Index) Resolve(ref string) (Token, error) {
	if common.IsHexAddress(ref) {
		t, _, ok := x.GetByAddress(common.HexToAddress(ref))
		if !ok {
			return nil, fmt.Errorf("token: no coin at address %s", ref)
		}
		return t, nil
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("token: %q is neither a coin index nor an address", ref)
	}
	t, ok := x.GetByPosition(i)
	if !ok {
		return nil, fmt.Errorf("token: coin index %d out of range [0, %d)", i, len(x.all))
	}
	return t, nil
}

// Len returns the number of indexed coins.
func (x *Index) Len() int {
	return len(x.all)
}

// All returns a copy of the indexed coins, in pool order.
func (x *Index) All() []Token {
	allCopy := make([]Token, len(x.all))
	copy(allCopy, x.all)
	return allCopy
}
