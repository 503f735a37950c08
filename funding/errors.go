package funding

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientSupply matches every *InsufficientSupplyError.
var ErrInsufficientSupply = errors.New("insufficient supply")

// InsufficientSupplyError reports that a token's ranked holders could not
// cover a funding request. Transfers made before exhaustion stay committed.
type InsufficientSupplyError struct {
	Token     common.Address
	Name      string
	Remaining *big.Int
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("insufficient tokens available to mint %s (%s): %s short", e.Name, e.Token.Hex(), e.Remaining)
}

func (e *InsufficientSupplyError) Is(target error) bool {
	return target == ErrInsufficientSupply
}
