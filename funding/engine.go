// Package funding produces arbitrary balances of real tokens on a forked chain
// by redistributing what their top holders own.
package funding

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/defistate/defi-coin-fixtures-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// HolderCache supplies the ranked holders of a token.
type HolderCache interface {
	Holders(ctx context.Context, token common.Address) ([]common.Address, error)
}

// Config holds the configuration for an Engine.
type Config struct {
	Holders            HolderCache
	SpecialCases       []SpecialCase
	Logger             Logger
	PrometheusRegistry prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Holders == nil {
		return errors.New("config: Holders is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.PrometheusRegistry == nil {
		return errors.New("config: PrometheusRegistry is required")
	}
	seen := make(map[common.Address]struct{}, len(c.SpecialCases))
	for _, sc := range c.SpecialCases {
		if sc.Method == "" {
			return fmt.Errorf("config: special case for %s has no method", sc.Token.Hex())
		}
		if _, dup := seen[sc.Token]; dup {
			return fmt.Errorf("config: duplicate special case for %s", sc.Token.Hex())
		}
		seen[sc.Token] = struct{}{}
	}
	return nil
}

// Engine answers "give target amount of this token" on a forked chain.
//
// Funding is not idempotent: every transfer is committed on the fork, and a
// failed call leaves earlier transfers in place.
type Engine struct {
	holders HolderCache
	special map[common.Address]SpecialCase
	logger  Logger
	metrics *Metrics
}

// NewEngine creates a funding engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	special := make(map[common.Address]SpecialCase, len(cfg.SpecialCases))
	for _, sc := range cfg.SpecialCases {
		special[sc.Token] = sc
	}
	return &Engine{
		holders: cfg.Holders,
		special: special,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.PrometheusRegistry),
	}, nil
}

// Fund credits target with exactly amount of the token c.
//
// Tokens with a special case are minted or deposited by their privileged
// account. Every other token is drained from its ranked holders in order,
// skipping the token contract itself, until amount is met. If the holders run
// out first the result is an *InsufficientSupplyError.
func (e *Engine) Fund(ctx context.Context, c contract.Contract, target common.Address, amount *big.Int) error {
	start := time.Now()
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("fund %s: amount must be non-negative", c.Address().Hex())
	}

	if sc, ok := e.special[c.Address()]; ok {
		err := e.fundSpecial(ctx, c, sc, target, amount)
		e.metrics.observe(pathSpecial, start, err)
		return err
	}

	err := e.drain(ctx, c, target, amount)
	e.metrics.observe(pathDrain, start, err)
	return err
}

func (e *Engine) fundSpecial(ctx context.Context, c contract.Contract, sc SpecialCase, target common.Address, amount *big.Int) error {
	e.logger.Debug("Funding through privileged account",
		"token", c.Address(),
		"method", sc.Method,
		"sender", sc.Sender,
		"target", target,
		"amount", amount,
	)
	if err := c.Transact(ctx, sc.Sender, sc.Method, target, amount); err != nil {
		return fmt.Errorf("fund %s via %s: %w", c.Address().Hex(), sc.Method, err)
	}
	return nil
}

func (e *Engine) drain(ctx context.Context, c contract.Contract, target common.Address, amount *big.Int) error {
	addr := c.Address()
	remaining := new(big.Int).Set(amount)
	if remaining.Sign() == 0 {
		return nil
	}

	holders, err := e.holders.Holders(ctx, addr)
	if err != nil {
		return err
	}

	for _, holder := range holders {
		// never drain the token's own reserve, and never move the target's
		// balance onto itself
		if holder == addr || holder == target {
			continue
		}

		balance, err := token.BalanceOf(ctx, c, holder)
		if err != nil {
			return fmt.Errorf("fund %s: balance of %s: %w", addr.Hex(), holder.Hex(), err)
		}
		if balance.Sign() == 0 {
			continue
		}

		if remaining.Cmp(balance) > 0 {
			if err := e.transfer(ctx, c, holder, target, balance); err != nil {
				return err
			}
			remaining.Sub(remaining, balance)
			continue
		}

		return e.transfer(ctx, c, holder, target, remaining)
	}

	name, err := token.NameOf(ctx, c)
	if err != nil {
		e.logger.Warn("Could not read token name for insufficient supply error", "token", addr, "error", err)
		name = addr.Hex()
	}
	return &InsufficientSupplyError{Token: addr, Name: name, Remaining: remaining}
}

func (e *Engine) transfer(ctx context.Context, c contract.Contract, from, to common.Address, amount *big.Int) error {
	e.logger.Debug("Draining holder", "token", c.Address(), "holder", from, "target", to, "amount", amount)
	if err := c.Transact(ctx, from, "transfer", to, new(big.Int).Set(amount)); err != nil {
		return fmt.Errorf("fund %s: transfer from %s: %w", c.Address().Hex(), from.Hex(), err)
	}
	e.metrics.holdersDrained.Inc()
	return nil
}
