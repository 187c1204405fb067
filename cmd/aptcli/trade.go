package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/nft"
)

// dexAggregator wires every supported venue, or only the named ones
func (e *env) dexAggregator(venues []string) (*dex.Aggregator, error) {
	all := dex.DefaultAdapters(e.facade)
	if len(venues) == 0 {
		agg, err := dex.NewAggregator(e.facade, all...)
		if err != nil {
			return nil, err
		}
		agg.SetLogger(e.logger.WithPrefix("dex"))
		return agg, nil
	}

	byName := make(map[string]dex.Adapter, len(all))
	for _, a := range all {
		byName[a.Name()] = a
	}
	picked := make([]dex.Adapter, 0, len(venues))
	for _, name := range venues {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown venue %s", name)
		}
		picked = append(picked, a)
	}
	agg, err := dex.NewAggregator(e.facade, picked...)
	if err != nil {
		return nil, err
	}
	agg.SetLogger(e.logger.WithPrefix("dex"))
	return agg, nil
}

func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil || amount == 0 {
		return 0, fmt.Errorf("amount must be a positive integer, got %s", s)
	}
	return amount, nil
}

func quoteCommand() *cobra.Command {
	var venues []string

	cmd := &cobra.Command{
		Use:   "quote <token-in> <token-out> <amount-in>",
		Short: "Compare swap quotes across every venue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.dexAggregator(venues)
			if err != nil {
				return err
			}

			quotes, err := agg.CompareAllPrices(cmd.Context(), args[0], args[1], amount)
			if err != nil {
				return err
			}
			if len(quotes) == 0 {
				return dex.ErrNoRoute
			}
			prettyPrint(map[string]interface{}{
				"best":   quotes[0],
				"quotes": quotes,
			})
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Restrict to these venues")
	return cmd
}

func swapCommand() *cobra.Command {
	var venues []string
	var slippage float64

	cmd := &cobra.Command{
		Use:   "swap <token-in> <token-out> <amount-in>",
		Short: "Swap on the venue with the best quote",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			e, err := newEnv()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("slippage") {
				slippage = e.cfg.DefaultSlippage
			}
			agg, err := e.dexAggregator(venues)
			if err != nil {
				return err
			}
			w, err := e.wallet()
			if err != nil {
				return err
			}
			defer w.Erase()

			exec, err := agg.ExecuteBestSwap(cmd.Context(), w, args[0], args[1], amount, slippage)
			if exec != nil {
				prettyPrint(exec)
			}
			if err != nil {
				return err
			}
			if exec.Result != nil && !exec.Result.Success {
				return fmt.Errorf("swap failed: %s", exec.Result.ErrorMessage())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Restrict to these venues")
	cmd.Flags().Float64Var(&slippage, "slippage", 0.005, "Accepted loss on the quoted output, in [0, 1)")
	return cmd
}

func poolsCommand() *cobra.Command {
	var prices bool
	var metadata bool

	cmd := &cobra.Command{
		Use:   "pools <token>",
		Short: "List liquidity pools pairing a token with the base tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.dexAggregator(nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pools, err := agg.FindTokenLiquidityPools(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"token": args[0],
				"pools": pools,
			}
			if prices {
				p, err := agg.GetTokenPrice(ctx, args[0])
				if err != nil {
					return err
				}
				out["prices"] = p
			}
			if metadata {
				m, err := agg.GetTokenMetadata(ctx, args[0])
				if err != nil {
					return err
				}
				out["metadata"] = m
			}
			prettyPrint(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&prices, "prices", false, "Also show the APT price on each venue")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Also show the coin metadata")
	return cmd
}

func nftCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nft",
		Short: "NFT marketplace aggregation",
	}

	cmd.AddCommand(
		nftSearchCommand(),
		nftBuyCommand(),
		nftListCommand(),
		nftStatusCommand(),
	)
	return cmd
}

func (e *env) nftAggregator() (*nft.Aggregator, error) {
	agg, err := nft.NewAggregator(e.facade)
	if err != nil {
		return nil, err
	}
	agg.SetLogger(e.logger.WithPrefix("nft"))
	return agg, nil
}

func nftSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <token-id>",
		Short: "Show the order book of a token across marketplaces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.nftAggregator()
			if err != nil {
				return err
			}
			book, err := agg.OrderBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(book)
			return nil
		},
	}
}

func nftBuyCommand() *cobra.Command {
	var market string
	var maxPrice uint64

	cmd := &cobra.Command{
		Use:   "buy <token-id>",
		Short: "Buy the cheapest listing of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.nftAggregator()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			listings, err := agg.SearchListings(ctx, args[0])
			if err != nil {
				return err
			}
			var pick *nft.Listing
			for i := range listings {
				if market == "" || listings[i].MarketplaceName == market {
					pick = &listings[i]
					break
				}
			}
			if pick == nil {
				return fmt.Errorf("no listing found for %s", args[0])
			}
			if maxPrice > 0 && pick.Price > maxPrice {
				return fmt.Errorf("cheapest listing costs %d, above the limit of %d", pick.Price, maxPrice)
			}

			w, err := e.wallet()
			if err != nil {
				return err
			}
			defer w.Erase()

			res, err := agg.Purchase(ctx, w, *pick)
			if err != nil {
				return err
			}
			prettyPrint(res)
			if !res.Success {
				return fmt.Errorf("purchase failed: %s", res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&market, "market", "", "Only buy on this marketplace")
	cmd.Flags().Uint64Var(&maxPrice, "max-price", 0, "Refuse listings above this price, 0 for no limit")
	return cmd
}

func nftListCommand() *cobra.Command {
	var markets []string

	cmd := &cobra.Command{
		Use:   "list <token-id> <price>",
		Short: "List a token for sale on one or more marketplaces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if len(markets) == 0 {
				return fmt.Errorf("--market is required")
			}
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.nftAggregator()
			if err != nil {
				return err
			}
			w, err := e.wallet()
			if err != nil {
				return err
			}
			defer w.Erase()

			results := agg.ListOnMarkets(cmd.Context(), w, args[0], price, markets)
			prettyPrint(results)
			if len(results) == 0 {
				return fmt.Errorf("token %s was not listed anywhere", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&markets, "market", nil, "Marketplaces to list on")
	return cmd
}

func nftStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <token-id>",
		Short: "Show on which marketplaces a token is listed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			agg, err := e.nftAggregator()
			if err != nil {
				return err
			}
			status, err := agg.ListingStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(status)
			return nil
		},
	}
}
