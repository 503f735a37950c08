package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"

	"github.com/defistate/defi-coin-fixtures-go/protocols/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision every coin of the configured pool and list them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connect(ctx); err != nil {
			return err
		}

		poolToken, err := a.session.PoolToken(ctx)
		if err != nil {
			return fmt.Errorf("pool token: %w", err)
		}
		baseToken, err := a.session.BasePoolToken(ctx)
		if err != nil {
			return fmt.Errorf("base pool token: %w", err)
		}
		underlying, err := a.session.UnderlyingCoins(ctx)
		if err != nil {
			return fmt.Errorf("underlying coins: %w", err)
		}
		wrapped, err := a.session.WrappedCoins(ctx)
		if err != nil {
			return fmt.Errorf("wrapped coins: %w", err)
		}

		fmt.Printf("%sMode:%s %s%s%s\n", Green, Reset, Bold, a.mode, Reset)

		header("LP TOKENS")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		fmt.Fprintln(w, "ROLE\tADDRESS\tNAME\t")
		fmt.Fprintln(w, "----\t-------\t----\t")
		printTokenRow(ctx, w, "pool", poolToken)
		if baseToken != nil {
			printTokenRow(ctx, w, "base pool", baseToken)
		}
		w.Flush()

		printCoinTable(ctx, "UNDERLYING COINS", underlying)
		printCoinTable(ctx, "WRAPPED COINS", wrapped)
		return nil
	},
}

var (
	fundWrapped bool
	fundWhole   bool
)

var fundCmd = &cobra.Command{
	Use:   "fund <coin> <target> <amount>",
	Short: "Credit target with amount of a coin",
	Long: `fund credits target with amount of a provisioned coin. <coin> is a pool
index or a token address; in forked mode any token address works. <amount> is in
base units unless --whole is given.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !common.IsHexAddress(args[1]) {
			return fmt.Errorf("target %q is not an address", args[1])
		}
		target := common.HexToAddress(args[1])
		amount, ok := new(big.Int).SetString(args[2], 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("amount %q is not a non-negative integer", args[2])
		}

		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.connect(ctx); err != nil {
			return err
		}

		t, err := a.resolveCoin(ctx, args[0], fundWrapped)
		if err != nil {
			return err
		}
		if fundWhole {
			decimals, err := t.Decimals(ctx)
			if err != nil {
				return fmt.Errorf("decimals: %w", err)
			}
			amount.Mul(amount, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
		}

		if err := t.Mint(ctx, target, amount); err != nil {
			return err
		}
		balance, err := t.BalanceOf(ctx, target)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		a.logger.Info("Funded account", "token", t.Address(), "target", target, "amount", amount)

		fmt.Printf("%sFUNDED  ::%s %s%s%s received %s of %s | balance %s%s%s\n",
			Green, Reset,
			Bold, target.Hex(), Reset,
			amount, t.Address().Hex(),
			Bold, balance, Reset,
		)
		return nil
	},
}

var holdersCmd = &cobra.Command{
	Use:   "holders <token>",
	Short: "Show the ranked holders a forked fund would drain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("token %q is not an address", args[0])
		}
		tokenAddr := common.HexToAddress(args[0])

		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ranked, err := a.cache.Holders(cmd.Context(), tokenAddr)
		if err != nil {
			return err
		}
		if len(ranked) == 0 {
			fmt.Println(Yellow + "[INFO] No holders ranked for this token." + Reset)
			return nil
		}

		header(fmt.Sprintf("TOP HOLDERS OF %s", tokenAddr.Hex()))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		fmt.Fprintln(w, "RANK\tADDRESS\tNOTE\t")
		fmt.Fprintln(w, "----\t-------\t----\t")
		for i, h := range ranked {
			note := ""
			if h == tokenAddr {
				note = Gray + "token contract, skipped" + Reset
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t\n", i+1, h.Hex(), note)
		}
		w.Flush()
		return nil
	},
}

func init() {
	fundCmd.Flags().BoolVar(&fundWrapped, "wrapped", false, "resolve <coin> among the wrapped coins")
	fundCmd.Flags().BoolVar(&fundWhole, "whole", false, "treat <amount> as whole tokens and scale by decimals")
}

// --- HELPERS ---

func printCoinTable(ctx context.Context, title string, coins []token.Token) {
	header(title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "INDEX\tADDRESS\tNAME\tDECIMALS\tKIND\t")
	fmt.Fprintln(w, "-----\t-------\t----\t--------\t----\t")
	for i, t := range coins {
		name, decimals := describe(ctx, t)
		kind := t.Contract().Kind()
		if wt, ok := t.(*token.Wrapped); ok {
			kind = Cyan + wt.Family() + Reset
		}
		if kind == "" {
			kind = Gray + "attached" + Reset
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", i, t.Address().Hex(), name, decimals, kind)
	}
	w.Flush()
}

func printTokenRow(ctx context.Context, w *tabwriter.Writer, role string, t token.Token) {
	name, _ := describe(ctx, t)
	fmt.Fprintf(w, "%s\t%s\t%s\t\n", role, t.Address().Hex(), name)
}

// describe reads display metadata, marking what the contract would not answer.
func describe(ctx context.Context, t token.Token) (name, decimals string) {
	name, decimals = Red+"?"+Reset, Red+"?"+Reset
	if n, err := t.Name(ctx); err == nil {
		name = n
	}
	if d, err := t.Decimals(ctx); err == nil {
		decimals = fmt.Sprintf("%d", d)
	}
	return name, decimals
}
