package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// boundContract is a contract.Contract backed by an ABI at a fixed address.
type boundContract struct {
	backend *Backend
	address common.Address
	kind    string
	abi     abi.ABI
}

var _ contract.Contract = (*boundContract)(nil)

func (c *boundContract) Address() common.Address { return c.address }
func (c *boundContract) Kind() string            { return c.kind }

func (c *boundContract) HasMethod(name string) bool {
	_, ok := c.lookup(name, -1)
	return ok
}

// Call executes a read-only method and returns its decoded outputs.
func (c *boundContract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	m, data, err := c.pack(method, args)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.eth.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.address.Hex(), method, err)
	}
	if len(m.Outputs) == 0 {
		return nil, nil
	}
	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", c.address.Hex(), method, err)
	}
	return values, nil
}

// Transact sends a state-changing call from sender and waits for it to be mined.
func (c *boundContract) Transact(ctx context.Context, from common.Address, method string, args ...any) error {
	_, data, err := c.pack(method, args)
	if err != nil {
		return err
	}
	rcpt, err := c.backend.sendAndWait(ctx, from, &c.address, data)
	if err != nil {
		return fmt.Errorf("transact %s.%s from %s: %w", c.address.Hex(), method, from.Hex(), err)
	}
	c.backend.logger.Debug("Transaction mined", "contract", c.address, "method", method, "from", from, "tx", rcpt.TxHash)
	return nil
}

func (c *boundContract) pack(method string, args []any) (abi.Method, []byte, error) {
	m, ok := c.lookup(method, len(args))
	if !ok {
		var err error
		if m, err = methodFromSignature(method); err != nil {
			return abi.Method{}, nil, fmt.Errorf("%s has no method %q", c.address.Hex(), method)
		}
	}
	coerced, err := coerceArgs(m.Inputs, args)
	if err != nil {
		return abi.Method{}, nil, fmt.Errorf("%s: %w", method, err)
	}
	packed, err := m.Inputs.Pack(coerced...)
	if err != nil {
		return abi.Method{}, nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return m, append(append([]byte{}, m.ID...), packed...), nil
}

// lookup finds method by plain name or by full signature such as
// "deposit(address,uint256)". Overloads are told apart by argument count;
// arity < 0 accepts any.
func (c *boundContract) lookup(method string, arity int) (abi.Method, bool) {
	if strings.Contains(method, "(") {
		sig := strings.ReplaceAll(method, " ", "")
		for _, m := range c.abi.Methods {
			if m.Sig == sig {
				return m, true
			}
		}
		return abi.Method{}, false
	}
	if m, ok := c.abi.Methods[method]; ok && (arity < 0 || len(m.Inputs) == arity) {
		return m, true
	}
	for _, m := range c.abi.Methods {
		if m.RawName == method && (arity < 0 || len(m.Inputs) == arity) {
			return m, true
		}
	}
	return abi.Method{}, false
}

// methodFromSignature builds a method with no outputs from a signature like
// "mint(address,uint256)", for contracts whose artifact is unknown.
func methodFromSignature(sig string) (abi.Method, error) {
	sig = strings.ReplaceAll(sig, " ", "")
	open := strings.Index(sig, "(")
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return abi.Method{}, fmt.Errorf("not a method signature: %q", sig)
	}
	name := sig[:open]
	params := sig[open+1 : len(sig)-1]

	var inputs abi.Arguments
	if params != "" {
		for i, t := range strings.Split(params, ",") {
			typ, err := abi.NewType(t, "", nil)
			if err != nil {
				return abi.Method{}, fmt.Errorf("signature %q: %w", sig, err)
			}
			inputs = append(inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
		}
	}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil), nil
}

// coerceArgs converts loosely typed arguments into the Go types the ABI
// packer requires for each input: *big.Int for wide integers, sized Go
// integers for narrow ones.
func coerceArgs(inputs abi.Arguments, args []any) ([]any, error) {
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("argument count mismatch: want %d, got %d", len(inputs), len(args))
	}
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := coerce(inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, inputs[i].Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, arg any) (any, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := toBig(arg)
		if err != nil {
			return nil, err
		}
		goType := t.GetType()
		if goType == reflect.TypeOf((*big.Int)(nil)) {
			return n, nil
		}
		rv := reflect.New(goType).Elem()
		if t.T == abi.UintTy {
			if n.Sign() < 0 {
				return nil, fmt.Errorf("negative value %s for %s", n, t.String())
			}
			if !n.IsUint64() {
				return nil, fmt.Errorf("%s overflows %s", n, t.String())
			}
			rv.SetUint(n.Uint64())
			if rv.Uint() != n.Uint64() {
				return nil, fmt.Errorf("%s overflows %s", n, t.String())
			}
		} else {
			if !n.IsInt64() {
				return nil, fmt.Errorf("%s overflows %s", n, t.String())
			}
			rv.SetInt(n.Int64())
			if rv.Int() != n.Int64() {
				return nil, fmt.Errorf("%s overflows %s", n, t.String())
			}
		}
		return rv.Interface(), nil

	case abi.AddressTy:
		switch a := arg.(type) {
		case common.Address:
			return a, nil
		case *common.Address:
			return *a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("invalid address %q", a)
			}
			return common.HexToAddress(a), nil
		}
	}
	return arg, nil
}

func toBig(arg any) (*big.Int, error) {
	switch v := arg.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return v, nil
	case *uint256.Int:
		if v == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return v.ToBig(), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	}
	return nil, fmt.Errorf("cannot use %T as an integer", arg)
}
