package ethereum

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenABI = `[
	{"type":"constructor","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"decimals","type":"uint8"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"_mint_for_testing","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"deposit","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// fakeNode is a toy dev node: one ERC20 contract type, unsigned
// transactions, receipts that are pending for one poll.
type fakeNode struct {
	mu       sync.Mutex
	abi      abi.ABI
	bytecode []byte

	code     map[common.Address][]byte
	names    map[common.Address]string
	decimals map[common.Address]uint8
	balances map[common.Address]map[common.Address]*big.Int
	ether    map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*receipt
	polled   map[common.Hash]bool

	impersonated []common.Address
	funded       []common.Address
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testTokenABI))
	require.NoError(t, err)
	return &fakeNode{
		abi:      parsed,
		bytecode: common.FromHex("0x600160005260206000f3"),
		code:     make(map[common.Address][]byte),
		names:    make(map[common.Address]string),
		decimals: make(map[common.Address]uint8),
		balances: make(map[common.Address]map[common.Address]*big.Int),
		ether:    make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*receipt),
		polled:   make(map[common.Hash]bool),
	}
}

func (n *fakeNode) balance(tok, owner common.Address) *big.Int {
	if b, ok := n.balances[tok][owner]; ok {
		return b
	}
	return new(big.Int)
}

type fakeEth struct{ n *fakeNode }

type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
}

func (a txArgs) payload() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

func (e *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1))
}

func (e *fakeEth) GetCode(addr common.Address, _ string) hexutil.Bytes {
	e.n.mu.Lock()
	defer e.n.mu.Unlock()
	return e.n.code[addr]
}

func (e *fakeEth) GetBalance(addr common.Address, _ string) *hexutil.Big {
	e.n.mu.Lock()
	defer e.n.mu.Unlock()
	if b, ok := e.n.ether[addr]; ok {
		return (*hexutil.Big)(b)
	}
	return (*hexutil.Big)(new(big.Int))
}

func (e *fakeEth) Call(args txArgs, _ string) (hexutil.Bytes, error) {
	n := e.n
	n.mu.Lock()
	defer n.mu.Unlock()

	data := args.payload()
	m, err := n.abi.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	in, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	switch m.Name {
	case "name":
		return m.Outputs.Pack(n.names[*args.To])
	case "decimals":
		return m.Outputs.Pack(n.decimals[*args.To])
	case "balanceOf":
		return m.Outputs.Pack(n.balance(*args.To, in[0].(common.Address)))
	}
	return nil, errors.New("execution reverted")
}

func (e *fakeEth) SendTransaction(args txArgs) (common.Hash, error) {
	n := e.n
	n.mu.Lock()
	defer n.mu.Unlock()

	nonce := n.nonces[args.From]
	n.nonces[args.From] = nonce + 1
	hash := crypto.Keccak256Hash(args.From.Bytes(), new(big.Int).SetUint64(nonce).Bytes())
	rcpt := &receipt{TxHash: hash, Status: 1}
	data := args.payload()

	if args.To == nil {
		ctorArgs, err := n.abi.Constructor.Inputs.Unpack(data[len(n.bytecode):])
		if err != nil {
			return common.Hash{}, err
		}
		addr := crypto.CreateAddress(args.From, nonce)
		n.code[addr] = n.bytecode
		n.names[addr] = ctorArgs[0].(string)
		n.decimals[addr] = ctorArgs[2].(uint8)
		n.balances[addr] = make(map[common.Address]*big.Int)
		rcpt.ContractAddress = &addr
	} else {
		tok := *args.To
		m, err := n.abi.MethodById(data[:4])
		if err != nil {
			return common.Hash{}, err
		}
		in, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			return common.Hash{}, err
		}
		to, amount := in[0].(common.Address), in[1].(*big.Int)
		switch m.Name {
		case "transfer":
			from := n.balance(tok, args.From)
			if from.Cmp(amount) < 0 {
				rcpt.Status = 0
				break
			}
			n.balances[tok][args.From] = new(big.Int).Sub(from, amount)
			n.balances[tok][to] = new(big.Int).Add(n.balance(tok, to), amount)
		case "_mint_for_testing", "deposit":
			n.balances[tok][to] = new(big.Int).Add(n.balance(tok, to), amount)
		}
	}
	n.receipts[hash] = rcpt
	return hash, nil
}

// GetTransactionReceipt reports every transaction as pending on its first poll.
func (e *fakeEth) GetTransactionReceipt(hash common.Hash) *receipt {
	e.n.mu.Lock()
	defer e.n.mu.Unlock()
	if !e.n.polled[hash] {
		e.n.polled[hash] = true
		return nil
	}
	return e.n.receipts[hash]
}

type fakeAnvil struct{ n *fakeNode }

func (a *fakeAnvil) ImpersonateAccount(addr common.Address) error {
	a.n.mu.Lock()
	defer a.n.mu.Unlock()
	a.n.impersonated = append(a.n.impersonated, addr)
	return nil
}

func (a *fakeAnvil) SetBalance(addr common.Address, bal *hexutil.Big) error {
	a.n.mu.Lock()
	defer a.n.mu.Unlock()
	a.n.funded = append(a.n.funded, addr)
	a.n.ether[addr] = (*big.Int)(bal)
	return nil
}

func newTestBackend(t *testing.T, namespace string) (*Backend, *fakeNode) {
	t.Helper()
	node := newFakeNode(t)

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &fakeEth{n: node}))
	require.NoError(t, server.RegisterName("anvil", &fakeAnvil{n: node}))
	t.Cleanup(server.Stop)

	client := rpc.DialInProc(server)
	b, err := NewBackend(client, Config{
		Artifacts:           map[string]*Artifact{"ERC20Mock": {Name: "ERC20Mock", ABI: node.abi, Bytecode: node.bytecode}},
		Namespace:           namespace,
		ReceiptPollInterval: time.Millisecond,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, node
}

func TestNewBackend_Validation(t *testing.T) {
	_, err := NewBackend(nil, Config{})
	assert.Error(t, err, "logger required")
	_, err = NewBackend(nil, Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Namespace: "ganache"})
	assert.Error(t, err)
	_, err = Dial(context.Background(), Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	assert.Error(t, err, "url required")
}

func TestBackend_DeployCallTransact(t *testing.T) {
	ctx := context.Background()
	b, node := newTestBackend(t, "")

	chainID, err := b.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chainID.Uint64())

	// decimals arrives as a plain int and is coerced to the ABI's uint8
	c, err := b.Deploy(ctx, "ERC20Mock", alice, "Underlying Coin 0", "UC0", 6)
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(alice, 0), c.Address())
	assert.Equal(t, "ERC20Mock", c.Kind())
	assert.True(t, c.HasMethod("transfer"))
	assert.True(t, c.HasMethod("deposit(address,uint256)"))
	assert.False(t, c.HasMethod("exchangeRateStored"))

	out, err := c.Call(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"Underlying Coin 0"}, out)
	out, err = c.Call(ctx, "decimals")
	require.NoError(t, err)
	assert.Equal(t, []any{uint8(6)}, out)

	require.NoError(t, c.Transact(ctx, alice, "_mint_for_testing", bob, big.NewInt(1000)))
	require.NoError(t, c.Transact(ctx, bob, "transfer", alice, uint64(400)))

	out, err = c.Call(ctx, "balanceOf", bob)
	require.NoError(t, err)
	assert.Equal(t, []any{big.NewInt(600)}, out)

	err = c.Transact(ctx, bob, "transfer", alice, big.NewInt(601))
	assert.ErrorIs(t, err, ErrTxFailed)

	_, err = c.Call(ctx, "symbol")
	assert.Error(t, err, "the node reverts unknown reads")

	assert.Empty(t, node.impersonated, "no namespace, no impersonation")
}

func TestBackend_DeployErrors(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, "")

	_, err := b.Deploy(ctx, "cERC20", alice)
	var depErr *contract.DeploymentError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "cERC20", depErr.Kind)
	assert.ErrorIs(t, err, ErrNoArtifact)

	_, err = b.Deploy(ctx, "ERC20Mock", alice, "only a name")
	require.ErrorAs(t, err, &depErr)

	_, err = b.Deploy(ctx, "ERC20Mock", alice, "n", "s", 256)
	assert.Error(t, err, "decimals overflow uint8")
}

func TestBackend_Attach(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t, "")

	_, err := b.Attach(ctx, bob, "")
	var attErr *contract.AttachmentError
	require.ErrorAs(t, err, &attErr)
	assert.Equal(t, bob, attErr.Address)
	assert.ErrorIs(t, err, ErrNoCode)

	deployed, err := b.Deploy(ctx, "ERC20Mock", alice, "USD Coin", "USDC", uint8(6))
	require.NoError(t, err)

	// attached without a known type: only the ERC20 interface is bound, and
	// other methods need a full signature
	c, err := b.Attach(ctx, deployed.Address(), "")
	require.NoError(t, err)
	assert.Equal(t, "", c.Kind())
	assert.True(t, c.HasMethod("balanceOf"))
	assert.False(t, c.HasMethod("deposit"))

	require.NoError(t, c.Transact(ctx, alice, "deposit(address,uint256)", bob, big.NewInt(77)))
	out, err := c.Call(ctx, "balanceOf", bob)
	require.NoError(t, err)
	assert.Equal(t, []any{big.NewInt(77)}, out)

	assert.Error(t, c.Transact(ctx, alice, "deposit", bob, big.NewInt(1)), "bare unknown name")
}

func TestBackend_Impersonation(t *testing.T) {
	ctx := context.Background()
	b, node := newTestBackend(t, NamespaceAnvil)
	whale := common.HexToAddress("0x47ac0Fb4F2D84898e4D9E7b4DaB3C24507a6D503")

	c, err := b.Deploy(ctx, "ERC20Mock", alice, "Dai", "DAI", uint8(18))
	require.NoError(t, err)
	require.NoError(t, c.Transact(ctx, alice, "_mint_for_testing", whale, big.NewInt(10)))
	require.NoError(t, c.Transact(ctx, whale, "transfer", bob, big.NewInt(4)))
	require.NoError(t, c.Transact(ctx, whale, "transfer", bob, big.NewInt(4)))

	assert.Equal(t, []common.Address{alice, whale}, node.impersonated, "each sender is impersonated once")
	assert.Equal(t, []common.Address{alice, whale}, node.funded, "senders below the gas allowance are topped up")
	assert.Equal(t, 0, node.ether[whale].Cmp(b.gasAllowance))
}

func TestCoerce(t *testing.T) {
	uint8Ty, _ := abi.NewType("uint8", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	int128Ty, _ := abi.NewType("int128", "", nil)
	addrTy, _ := abi.NewType("address", "", nil)

	v, err := coerce(uint8Ty, 18)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), v)

	v, err = coerce(uint8Ty, big.NewInt(6))
	require.NoError(t, err)
	assert.Equal(t, uint8(6), v)

	_, err = coerce(uint8Ty, 256)
	assert.Error(t, err)
	_, err = coerce(uint8Ty, -1)
	assert.Error(t, err)

	v, err = coerce(uint256Ty, uint64(7))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), v)

	v, err = coerce(int128Ty, -3)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-3), v)

	int64Ty, _ := abi.NewType("int64", "", nil)
	uint64Ty, _ := abi.NewType("uint64", "", nil)
	aboveInt64 := new(big.Int).Lsh(big.NewInt(1), 63)

	_, err = coerce(int64Ty, aboveInt64)
	assert.Error(t, err, "2^63 does not fit int64")
	_, err = coerce(int64Ty, uint64(math.MaxUint64))
	assert.Error(t, err)
	v, err = coerce(int64Ty, int64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	v, err = coerce(uint64Ty, aboveInt64)
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<63, v)
	_, err = coerce(uint64Ty, new(big.Int).Lsh(big.NewInt(1), 64))
	assert.Error(t, err)

	v, err = coerce(addrTy, "0x0000000000000000000000000000000000000b0b")
	require.NoError(t, err)
	assert.Equal(t, bob, v)
	_, err = coerce(addrTy, "bob")
	assert.Error(t, err)

	_, err = coerce(uint256Ty, "12")
	assert.Error(t, err)
}

func TestMethodFromSignature(t *testing.T) {
	m, err := methodFromSignature("mint(address, uint256)")
	require.NoError(t, err)
	assert.Equal(t, "mint(address,uint256)", m.Sig)
	assert.Equal(t, crypto.Keccak256([]byte("mint(address,uint256)"))[:4], m.ID)

	_, err = methodFromSignature("mint")
	assert.Error(t, err)
	_, err = methodFromSignature("mint(address,notatype)")
	assert.Error(t, err)
}
