package pool

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// CoinSpec is the static configuration of one coin slot in a pool. Slot order
// is the pool's coin index.
type CoinSpec struct {
	Decimals        uint8    `yaml:"decimals" json:"decimals"`
	Wrapped         bool     `yaml:"wrapped" json:"wrapped"`
	WrappedDecimals uint8    `yaml:"wrapped_decimals" json:"wrapped_decimals"`
	Tethered        bool     `yaml:"tethered" json:"tethered"`
	WithdrawalFee   *big.Int `yaml:"withdrawal_fee" json:"withdrawal_fee"`
	BasePoolToken   bool     `yaml:"base_pool_token" json:"base_pool_token"`
	Name            string   `yaml:"name" json:"name"`
	Symbol          string   `yaml:"symbol" json:"symbol"`

	// forked mode only
	UnderlyingAddress common.Address `yaml:"underlying_address" json:"underlying_address"`
	WrappedAddress    common.Address `yaml:"wrapped_address" json:"wrapped_address"`
}

// Data describes a pool: its LP token contract, its optional wrapped-coin
// family and its ordered coin slots.
type Data struct {
	Name            string         `yaml:"name" json:"name"`
	LPContract      string         `yaml:"lp_contract" json:"lp_contract"`
	WrappedContract string         `yaml:"wrapped_contract" json:"wrapped_contract"`
	LPTokenAddress  common.Address `yaml:"lp_token_address" json:"lp_token_address"`
	Coins           []CoinSpec     `yaml:"coins" json:"coins"`
}

// HasWrapped reports whether the pool declares a wrapped-coin family.
func (d *Data) HasWrapped() bool {
	return d.WrappedContract != ""
}

// CoinName returns the configured display name of coin i or the default.
func (d *Data) CoinName(i int) string {
	if n := d.Coins[i].Name; n != "" {
		return n
	}
	return fmt.Sprintf("Coin %d", i)
}

// CoinSymbol returns the configured symbol of coin i or the default.
func (d *Data) CoinSymbol(i int) string {
	if s := d.Coins[i].Symbol; s != "" {
		return s
	}
	if n := d.Coins[i].Name; n != "" {
		return n
	}
	return fmt.Sprintf("C%d", i)
}

// Validate checks the fields every fixture relies on. Forked-only addresses
// are checked by ValidateForked.
func (d *Data) Validate() error {
	if d.Name == "" {
		return errors.New("pool: name is required")
	}
	if d.LPContract == "" {
		return fmt.Errorf("pool %s: lp_contract is required", d.Name)
	}
	if len(d.Coins) < 2 {
		return fmt.Errorf("pool %s: at least 2 coins required, got %d", d.Name, len(d.Coins))
	}
	for i, c := range d.Coins {
		if c.Wrapped && !d.HasWrapped() {
			return fmt.Errorf("pool %s: coin %d is wrapped but no wrapped_contract is set", d.Name, i)
		}
		if c.WithdrawalFee != nil && c.WithdrawalFee.Sign() < 0 {
			return fmt.Errorf("pool %s: coin %d has a negative withdrawal_fee", d.Name, i)
		}
	}
	return nil
}

// ValidateForked checks that every slot carries the addresses forked mode attaches to.
func (d *Data) ValidateForked() error {
	if err := d.Validate(); err != nil {
		return err
	}
	for i, c := range d.Coins {
		if (c.UnderlyingAddress == common.Address{}) && !c.BasePoolToken {
			return fmt.Errorf("pool %s: coin %d has no underlying_address", d.Name, i)
		}
		if c.Wrapped && (c.WrappedAddress == common.Address{}) {
			return fmt.Errorf("pool %s: coin %d is wrapped but has no wrapped_address", d.Name, i)
		}
	}
	return nil
}

// Load reads pool data from a YAML (or JSON) file and validates it.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes and validates pool data.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("pool: decode: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
