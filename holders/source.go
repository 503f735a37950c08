// Package holders ranks the top holders of real tokens and caches the
// ranking for the life of the process.
package holders

//go:generate mockgen -destination=mocks/source_mock.go -package=mocks . Source

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultLimit is how many top holders are requested per token.
const DefaultLimit = 50

// Holder is one entry of a ranking. Only the order of addresses is relied on;
// Balance is the source's own display figure.
type Holder struct {
	Address common.Address
	Balance float64
}

// Source ranks the top holders of a token, highest balance first.
type Source interface {
	TopHolders(ctx context.Context, token common.Address, limit int) ([]Holder, error)
}

// Static serves fixed rankings, for offline runs and tests.
type Static map[common.Address][]common.Address

func (s Static) TopHolders(_ context.Context, token common.Address, limit int) ([]Holder, error) {
	addrs, ok := s[token]
	if !ok {
		return nil, fmt.Errorf("holders: no static ranking for %s", token.Hex())
	}
	if limit > 0 && len(addrs) > limit {
		addrs = addrs[:limit]
	}
	out := make([]Holder, len(addrs))
	for i, a := range addrs {
		out[i] = Holder{Address: a}
	}
	return out, nil
}
