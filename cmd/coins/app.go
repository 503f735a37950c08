package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/defistate/defi-coin-fixtures-go/cmd/coins/config"
	"github.com/defistate/defi-coin-fixtures-go/fixtures"
	"github.com/defistate/defi-coin-fixtures-go/funding"
	"github.com/defistate/defi-coin-fixtures-go/holders"
	"github.com/defistate/defi-coin-fixtures-go/pkg/chains"
	ethpkg "github.com/defistate/defi-coin-fixtures-go/pkg/chains/ethereum"
	"github.com/defistate/defi-coin-fixtures-go/pkg/chains/memchain"
	"github.com/defistate/defi-coin-fixtures-go/pkg/contract"
	"github.com/defistate/defi-coin-fixtures-go/protocols/pool"
	"github.com/defistate/defi-coin-fixtures-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// baseLiquidity is the base-pool LP balance seeded to Charlie in local mode.
var baseLiquidity = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

// app carries everything a command needs. The chain backend is only
// connected by commands that touch the chain.
type app struct {
	cfg    *config.CoinsConfig
	logger *slog.Logger
	close  []func()

	mode    fixtures.Mode
	cache   *holders.Cache
	engine  *funding.Engine
	backend contract.Backend
	session *fixtures.Session
}

func newApp(path string) (*app, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	rootLogger, closeLog, err := newLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: rootLogger, close: []func(){closeLog}}

	a.mode, err = fixtures.ParseMode(cfg.Mode)
	if err != nil {
		a.Close()
		return nil, err
	}

	prometheusRegistry := prometheus.DefaultRegisterer
	a.cache, err = holders.NewCache(holders.CacheConfig{
		Source:             rankingSource(cfg),
		Limit:              cfg.Ethplorer.Limit,
		PrometheusRegistry: prometheusRegistry,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine, err = funding.NewEngine(funding.Config{
		Holders:            a.cache,
		SpecialCases:       specialCases(cfg),
		Logger:             rootLogger.With("component", "funding-engine"),
		PrometheusRegistry: prometheusRegistry,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
}

// connect builds the chain backend and the fixture session.
func (a *app) connect(ctx context.Context) error {
	switch a.cfg.Backend {
	case config.BackendMemory:
		a.backend = memchain.New()

	default:
		var artifacts map[string]*ethpkg.Artifact
		if a.cfg.ArtifactsDir != "" {
			var err error
			if artifacts, err = ethpkg.LoadArtifacts(a.cfg.ArtifactsDir); err != nil {
				return fmt.Errorf("load artifacts: %w", err)
			}
		}
		b, err := ethpkg.Dial(ctx, ethpkg.Config{
			URL:       a.cfg.RPCURL,
			Artifacts: artifacts,
			Namespace: a.cfg.Impersonation,
			Logger:    a.logger.With("component", "ethereum-backend"),
		})
		if err != nil {
			return err
		}
		a.close = append(a.close, b.Close)
		a.backend = b

		chainID, err := b.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		if a.mode == fixtures.Forked && chainID.Uint64() != chains.Mainnet {
			a.logger.Warn("Forked chain is not mainnet; holder rankings and special cases describe mainnet tokens", "chain_id", chainID)
		}
	}

	poolData, err := pool.Load(a.cfg.PoolData)
	if err != nil {
		return err
	}
	var basePool *pool.Data
	if a.cfg.BasePoolData != "" {
		if basePool, err = pool.Load(a.cfg.BasePoolData); err != nil {
			return err
		}
	}
	methods := token.DefaultMethodMap
	if a.cfg.MethodMap != "" {
		extra, err := token.LoadMethodMap(a.cfg.MethodMap)
		if err != nil {
			return err
		}
		methods = methods.Merge(extra)
	}

	charlie := a.cfg.Charlie()
	a.session, err = fixtures.NewSession(fixtures.Config{
		Backend:  a.backend,
		Mode:     a.mode,
		Alice:    a.cfg.Alice(),
		Charlie:  charlie,
		Pool:     poolData,
		BasePool: basePool,
		Methods:  methods,
		Funder:   a.engine,
		AddBasePoolLiquidity: func(ctx context.Context, base token.Token) error {
			if a.mode == fixtures.Forked {
				return nil
			}
			// the local base LP token was deployed by Charlie, who is its minter
			return base.Contract().Transact(ctx, charlie, "mint", charlie, baseLiquidity)
		},
		Logger: a.logger.With("component", "fixtures"),
	})
	return err
}

// resolveCoin finds a provisioned coin by pool index or address. In forked
// mode any other token address is attached and funded through the engine.
func (a *app) resolveCoin(ctx context.Context, ref string, wrapped bool) (token.Token, error) {
	coins, err := a.session.UnderlyingCoins(ctx)
	if wrapped {
		coins, err = a.session.WrappedCoins(ctx)
	}
	if err != nil {
		return nil, err
	}

	t, err := token.NewIndex(coins).Resolve(ref)
	if err == nil {
		return t, nil
	}
	if a.mode != fixtures.Forked || !common.IsHexAddress(ref) {
		return nil, err
	}
	c, err := a.backend.Attach(ctx, common.HexToAddress(ref), "")
	if err != nil {
		return nil, err
	}
	return token.NewForked(c, a.engine), nil
}

func rankingSource(cfg *config.CoinsConfig) holders.Source {
	if len(cfg.StaticHolders) > 0 {
		static := make(holders.Static, len(cfg.StaticHolders))
		for tok, addrs := range cfg.StaticHolders {
			ranked := make([]common.Address, len(addrs))
			for i, a := range addrs {
				ranked[i] = common.HexToAddress(a)
			}
			static[common.HexToAddress(tok)] = ranked
		}
		return static
	}
	return holders.NewEthplorer(holders.EthplorerConfig{
		BaseURL: cfg.Ethplorer.URL,
		APIKey:  cfg.Ethplorer.APIKey,
		RPS:     cfg.Ethplorer.RPS,
	})
}

func specialCases(cfg *config.CoinsConfig) []funding.SpecialCase {
	if len(cfg.SpecialCases) == 0 {
		return funding.DefaultSpecialCases
	}
	out := make([]funding.SpecialCase, len(cfg.SpecialCases))
	for i, sc := range cfg.SpecialCases {
		out[i] = funding.SpecialCase{
			Token:  common.HexToAddress(sc.Token),
			Method: sc.Method,
			Sender: common.HexToAddress(sc.Sender),
		}
	}
	return out
}
