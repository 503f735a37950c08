package pool

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compoundYAML = `
name: compound
lp_contract: CurveTokenV1
wrapped_contract: cERC20
coins:
  - decimals: 18
    wrapped: true
    wrapped_decimals: 8
    name: cDAI
    underlying_address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
    wrapped_address: "0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643"
  - decimals: 6
    wrapped: true
    wrapped_decimals: 8
    withdrawal_fee: 5000000
    underlying_address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    wrapped_address: "0x39AA39c021dfbaE8faC545936693aC917d5E7563"
`

func TestParse(t *testing.T) {
	d, err := Parse([]byte(compoundYAML))
	require.NoError(t, err)

	assert.Equal(t, "compound", d.Name)
	assert.True(t, d.HasWrapped())
	require.Len(t, d.Coins, 2)
	assert.Equal(t, uint8(8), d.Coins[1].WrappedDecimals)
	assert.Equal(t, big.NewInt(5000000), d.Coins[1].WithdrawalFee)
	assert.Nil(t, d.Coins[0].WithdrawalFee)
	assert.Equal(t, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), d.Coins[0].UnderlyingAddress)
	assert.NoError(t, d.ValidateForked())
}

func TestParse_JSON(t *testing.T) {
	raw := `{"name":"3pool","lp_contract":"CurveTokenV2","coins":[{"decimals":18},{"decimals":6},{"decimals":6,"tethered":true}]}`
	d, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.False(t, d.HasWrapped())
	assert.True(t, d.Coins[2].Tethered)
}

func TestCoinDefaults(t *testing.T) {
	d := &Data{Coins: []CoinSpec{{Name: "cDAI"}, {}, {Name: "yUSDC", Symbol: "yUSDC-sym"}}}

	assert.Equal(t, "cDAI", d.CoinName(0))
	assert.Equal(t, "cDAI", d.CoinSymbol(0), "symbol falls back to the name")
	assert.Equal(t, "Coin 1", d.CoinName(1))
	assert.Equal(t, "C1", d.CoinSymbol(1))
	assert.Equal(t, "yUSDC-sym", d.CoinSymbol(2))
}

func TestValidate(t *testing.T) {
	valid := func() *Data {
		return &Data{
			Name:       "p",
			LPContract: "CurveTokenV3",
			Coins:      []CoinSpec{{Decimals: 18}, {Decimals: 6}},
		}
	}

	testCases := []struct {
		name   string
		mutate func(d *Data)
	}{
		{"missing name", func(d *Data) { d.Name = "" }},
		{"missing lp contract", func(d *Data) { d.LPContract = "" }},
		{"single coin", func(d *Data) { d.Coins = d.Coins[:1] }},
		{"wrapped without family", func(d *Data) { d.Coins[0].Wrapped = true }},
		{"negative fee", func(d *Data) { d.Coins[1].WithdrawalFee = big.NewInt(-1) }},
	}

	require.NoError(t, valid().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid()
			tc.mutate(d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestValidateForked(t *testing.T) {
	d := &Data{
		Name:       "meta",
		LPContract: "CurveTokenV3",
		Coins: []CoinSpec{
			{Decimals: 18, UnderlyingAddress: common.HexToAddress("0x1")},
			{Decimals: 18, BasePoolToken: true},
		},
	}
	require.NoError(t, d.ValidateForked(), "a base pool token slot needs no address")

	d.Coins[0].UnderlyingAddress = common.Address{}
	assert.Error(t, d.ValidateForked())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pooldata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(compoundYAML), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cERC20", d.WrappedContract)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
