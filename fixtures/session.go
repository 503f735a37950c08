package fixtures

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/defistate/defi-coin-fixtures-go/protocols/pool"
	"github.com/defistate/defi-coin-fixtures-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for a Session.
type Config struct {
	Backend contract.Backend
	Mode    Mode

	// Alice deploys the pool's coins and LP token. Charlie deploys the base
	// pool LP token and holds its initial supply.
	Alice   common.Address
	Charlie common.Address

	Pool     *pool.Data
	BasePool *pool.Data

	// Methods defaults to token.DefaultMethodMap.
	Methods token.MethodMap

	// Funder mints forked tokens. Required in forked mode.
	Funder token.Funder

	// AddBasePoolLiquidity, when set, runs once after the base pool token
	// resolves and before the pool's underlying coins are provisioned. It is
	// where the harness seeds Charlie's base LP balance.
	AddBasePoolLiquidity func(ctx context.Context, basePoolToken token.Token) error

	Logger Logger
}

func (c *Config) validate() error {
	if c.Backend == nil {
		return errors.New("config: Backend is required")
	}
	if c.Pool == nil {
		return errors.New("config: Pool is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Mode == Forked && c.Funder == nil {
		return errors.New("config: Funder is required in forked mode")
	}
	for _, d := range []*pool.Data{c.Pool, c.BasePool} {
		if d == nil {
			continue
		}
		validate := d.Validate
		if c.Mode == Forked {
			validate = d.ValidateForked
		}
		if err := validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Mode == Forked && c.BasePool != nil && (c.BasePool.LPTokenAddress == common.Address{}) {
		return fmt.Errorf("config: base pool %s has no lp_token_address", c.BasePool.Name)
	}
	return nil
}

// Session resolves and memoizes the fixtures of one test module. Every
// accessor resolves at most once; a failure is memoized too, so a module whose
// fixture failed keeps failing instead of redeploying.
type Session struct {
	cfg Config

	poolToken      lazy[token.Token]
	basePoolToken  lazy[token.Token]
	poolUnderlying lazy[[]token.Token]
	baseCoins      lazy[[]token.Token]
	wrappedCoins   lazy[[]token.Token]
}

// NewSession creates a session. Nothing is deployed until an accessor is called.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Methods == nil {
		cfg.Methods = token.DefaultMethodMap
	}
	return &Session{cfg: cfg}, nil
}

// Mode returns the session's provisioning mode.
func (s *Session) Mode() Mode {
	return s.cfg.Mode
}

// PoolToken returns the pool's LP token, deployed by Alice.
func (s *Session) PoolToken(ctx context.Context) (token.Token, error) {
	return s.poolToken.get(func() (token.Token, error) {
		t, err := DeployPoolToken(ctx, s.cfg.Backend, s.cfg.Alice, s.cfg.Pool)
		if err != nil {
			return nil, err
		}
		s.cfg.Logger.Info("Deployed pool token", "pool", s.cfg.Pool.Name, "address", t.Address())
		return t, nil
	})
}

// BasePoolToken returns the base pool's LP token, or nil when the pool has no
// base pool. Locally it is deployed by Charlie and mints by transferring from
// Charlie's balance. Forked, it is the real LP token funded like any other,
// adapted through the base pool's wrapped family when it declares one.
func (s *Session) BasePoolToken(ctx context.Context) (token.Token, error) {
	return s.basePoolToken.get(func() (token.Token, error) {
		base := s.cfg.BasePool
		if base == nil {
			return nil, nil
		}

		if s.cfg.Mode == Forked {
			c, err := s.cfg.Backend.Attach(ctx, base.LPTokenAddress, base.LPContract)
			if err != nil {
				return nil, err
			}
			var t token.Token = token.NewForked(c, s.cfg.Funder)
			if base.HasWrapped() {
				if t, err = token.NewWrapped(t, base.WrappedContract, s.cfg.Methods); err != nil {
					return nil, err
				}
			}
			return t, nil
		}

		t, err := DeployPoolToken(ctx, s.cfg.Backend, s.cfg.Charlie, base)
		if err != nil {
			return nil, err
		}
		s.cfg.Logger.Info("Deployed base pool token", "pool", base.Name, "address", t.Address())
		return token.WithInitialHolder(t, s.cfg.Charlie), nil
	})
}

// PoolUnderlying returns the pool's own underlying coins, one per pool slot.
func (s *Session) PoolUnderlying(ctx context.Context) ([]token.Token, error) {
	return s.poolUnderlying.get(func() ([]token.Token, error) {
		base, err := s.BasePoolToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("base pool token: %w", err)
		}
		if base != nil && s.cfg.AddBasePoolLiquidity != nil {
			if err := s.cfg.AddBasePoolLiquidity(ctx, base); err != nil {
				return nil, fmt.Errorf("add base pool liquidity: %w", err)
			}
		}

		coins, err := ProvisionUnderlying(ctx, s.cfg.Backend, s.cfg.Alice, s.cfg.Pool.Coins, s.cfg.Mode, base, s.cfg.Funder)
		if err != nil {
			return nil, err
		}
		s.cfg.Logger.Info("Provisioned underlying coins", "pool", s.cfg.Pool.Name, "mode", s.cfg.Mode, "count", len(coins))
		return coins, nil
	})
}

// BaseCoins returns the base pool's underlying coins, or nil when the pool
// has no base pool.
func (s *Session) BaseCoins(ctx context.Context) ([]token.Token, error) {
	return s.baseCoins.get(func() ([]token.Token, error) {
		if s.cfg.BasePool == nil {
			return nil, nil
		}
		return ProvisionUnderlying(ctx, s.cfg.Backend, s.cfg.Alice, s.cfg.BasePool.Coins, s.cfg.Mode, nil, s.cfg.Funder)
	})
}

// UnderlyingCoins returns the coins a test trades against. For a pool with a
// base pool this is the pool's first coin followed by the base pool's coins;
// otherwise it is the pool's own underlying coins.
func (s *Session) UnderlyingCoins(ctx context.Context) ([]token.Token, error) {
	own, err := s.PoolUnderlying(ctx)
	if err != nil {
		return nil, err
	}
	base, err := s.BaseCoins(ctx)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return own, nil
	}
	out := make([]token.Token, 0, 1+len(base))
	out = append(out, own[0])
	return append(out, base...), nil
}

// WrappedCoins returns the wrapped counterpart of each pool slot.
func (s *Session) WrappedCoins(ctx context.Context) ([]token.Token, error) {
	return s.wrappedCoins.get(func() ([]token.Token, error) {
		underlying, err := s.PoolUnderlying(ctx)
		if err != nil {
			return nil, err
		}
		coins, err := ProvisionWrapped(ctx, s.cfg.Backend, s.cfg.Alice, underlying, s.cfg.Pool, s.cfg.Mode, s.cfg.Funder, s.cfg.Methods)
		if err != nil {
			return nil, err
		}
		if s.cfg.Pool.HasWrapped() {
			s.cfg.Logger.Info("Provisioned wrapped coins", "pool", s.cfg.Pool.Name, "family", s.cfg.Pool.WrappedContract, "count", len(coins))
		}
		return coins, nil
	})
}

// lazy memoizes one fixture value and its error.
type lazy[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (l *lazy[T]) get(resolve func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.v, l.err = resolve()
	})
	return l.v, l.err
}
