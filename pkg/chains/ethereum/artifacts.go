package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is a compiled contract type: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// artifactJSON covers the build output of brownie, hardhat and foundry.
type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifacts reads every *.json build artifact in dir, keyed by contract
// name (or file name when the artifact does not carry one).
func LoadArtifacts(dir string) (map[string]*Artifact, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Artifact, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		art, err := ParseArtifact(raw)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", p, err)
		}
		if art.Name == "" {
			art.Name = strings.TrimSuffix(filepath.Base(p), ".json")
		}
		out[art.Name] = art
	}
	return out, nil
}

// ParseArtifact decodes one build artifact.
func ParseArtifact(raw []byte) (*Artifact, error) {
	var aj artifactJSON
	if err := json.Unmarshal(raw, &aj); err != nil {
		return nil, err
	}
	if len(aj.ABI) == 0 {
		return nil, fmt.Errorf("missing abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(aj.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	code, err := decodeBytecode(aj.Bytecode)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: aj.ContractName, ABI: parsed, Bytecode: code}, nil
}

// decodeBytecode accepts a hex string (with or without 0x) or foundry's
// {"object": "0x..."} form.
func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("bytecode: %w", err)
		}
		s = obj.Object
	}
	return common.FromHex(s), nil
}

// erc20ABIJSON is the standard ERC-20 interface (EIP-20), used for every
// attached contract so balance reads and transfers work without an artifact.
const erc20ABIJSON = `[
	{"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// mergeABI returns base with every method of extra added; extra wins on
// name clashes.
func mergeABI(base abi.ABI, extra *abi.ABI) abi.ABI {
	merged := abi.ABI{
		Constructor: base.Constructor,
		Methods:     make(map[string]abi.Method, len(base.Methods)),
		Events:      base.Events,
		Errors:      base.Errors,
	}
	for name, m := range base.Methods {
		merged.Methods[name] = m
	}
	if extra != nil {
		for name, m := range extra.Methods {
			merged.Methods[name] = m
		}
		merged.Constructor = extra.Constructor
	}
	return merged
}
