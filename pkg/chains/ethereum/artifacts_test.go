package ethereum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brownieArtifact = `{
	"contractName": "ERC20Mock",
	"abi": [{"type":"constructor","inputs":[{"name":"_name","type":"string"},{"name":"_symbol","type":"string"},{"name":"_decimals","type":"uint256"}],"stateMutability":"nonpayable"},
	        {"type":"function","name":"_mint_for_testing","inputs":[{"name":"_target","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}],
	"bytecode": "0x6001600055"
}`

const foundryArtifact = `{
	"abi": [{"type":"function","name":"exchangeRateStored","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}],
	"bytecode": {"object": "0x60ff", "sourceMap": ""}
}`

func TestParseArtifact(t *testing.T) {
	art, err := ParseArtifact([]byte(brownieArtifact))
	require.NoError(t, err)
	assert.Equal(t, "ERC20Mock", art.Name)
	assert.Equal(t, []byte{0x60, 0x01, 0x60, 0x00, 0x55}, art.Bytecode)
	assert.Len(t, art.ABI.Constructor.Inputs, 3)
	assert.Contains(t, art.ABI.Methods, "_mint_for_testing")

	art, err = ParseArtifact([]byte(foundryArtifact))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0xff}, art.Bytecode)

	_, err = ParseArtifact([]byte(`{"contractName":"x"}`))
	assert.Error(t, err, "abi is required")
	_, err = ParseArtifact([]byte(`{"abi":[{"type":"function","name":"f","inputs":[{"type":"notatype"}]}]}`))
	assert.Error(t, err)
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ERC20Mock.json"), []byte(brownieArtifact), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cERC20.json"), []byte(foundryArtifact), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	arts, err := LoadArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Contains(t, arts, "ERC20Mock")
	assert.Contains(t, arts, "cERC20", "named after the file when the artifact has no name")
}

func TestMergeABI(t *testing.T) {
	art, err := ParseArtifact([]byte(brownieArtifact))
	require.NoError(t, err)

	merged := mergeABI(erc20ABI, &art.ABI)
	assert.Contains(t, merged.Methods, "transfer")
	assert.Contains(t, merged.Methods, "_mint_for_testing")
	assert.Len(t, merged.Constructor.Inputs, 3)
	assert.NotContains(t, erc20ABI.Methods, "_mint_for_testing", "the base is not mutated")

	plain := mergeABI(erc20ABI, nil)
	assert.Len(t, plain.Methods, len(erc20ABI.Methods))
}
