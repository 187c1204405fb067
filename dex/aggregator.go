package dex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
)

// ErrNoRoute is returned when no venue can quote a swap
var ErrNoRoute = errors.New("no suitable DEX found for swap")

// TokenPrice is the price of a token on one venue
type TokenPrice struct {
	Venue        string    `json:"dex"`
	TokenAddress string    `json:"token_address"`
	BaseToken    string    `json:"base_token"`
	Price        float64   `json:"price"`
	Liquidity    uint64    `json:"liquidity"`
	Timestamp    time.Time `json:"timestamp"`
}

// LiquidityPool describes a pool found on a venue
type LiquidityPool struct {
	Venue     string  `json:"dex"`
	TokenA    string  `json:"token_a"`
	TokenB    string  `json:"token_b"`
	Liquidity uint64  `json:"liquidity"`
	ReserveA  uint64  `json:"reserve_a"`
	ReserveB  uint64  `json:"reserve_b"`
	FeeRate   float64 `json:"fee_rate"`
}

// TokenMetadata is the coin information published with a coin type
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply,omitempty"`
}

// SwapExecution is the outcome of routing a swap to the best venue
type SwapExecution struct {
	Quote  Quote              `json:"quote"`
	MinOut uint64             `json:"min_amount_out"`
	Result *types.WriteResult `json:"result"`
}

// Aggregator compares venues and routes swaps to the best one
type Aggregator struct {
	backend  Backend
	adapters []Adapter
	byName   map[string]Adapter
	now      func() time.Time
	logger   *logz.Logger
}

// NewAggregator creates an aggregator. With no adapters every supported venue is used.
func NewAggregator(backend Backend, adapters ...Adapter) (*Aggregator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if len(adapters) == 0 {
		adapters = DefaultAdapters(backend)
	}

	a := &Aggregator{
		backend:  backend,
		adapters: adapters,
		byName:   make(map[string]Adapter, len(adapters)),
		now:      time.Now,
		logger:   logz.New(logz.INFO, "aggregator"),
	}
	for _, adapter := range adapters {
		if _, dup := a.byName[adapter.Name()]; dup {
			return nil, fmt.Errorf("duplicate adapter %s", adapter.Name())
		}
		a.byName[adapter.Name()] = adapter
	}
	return a, nil
}

// SetLogger replaces the aggregator logger
func (a *Aggregator) SetLogger(logger *logz.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Adapters returns the venues in registration order
func (a *Aggregator) Adapters() []Adapter {
	out := make([]Adapter, len(a.adapters))
	copy(out, a.adapters)
	return out
}

// Adapter returns a venue by name
func (a *Aggregator) Adapter(name string) (Adapter, bool) {
	adapter, ok := a.byName[name]
	return adapter, ok
}

// CompareAllPrices quotes every venue in parallel and returns the successful
// quotes by output, best first. Venues that fail are logged and skipped.
func (a *Aggregator) CompareAllPrices(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) ([]Quote, error) {
	quotes := make([]*Quote, len(a.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			q, err := adapter.Quote(gctx, tokenIn, tokenOut, amountIn)
			if err != nil {
				a.logger.Debug("%s cannot quote %s -> %s: %v", adapter.Name(), tokenIn, tokenOut, err)
				return nil
			}
			metrics.RecordQuote()
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Quote
	for _, q := range quotes {
		if q != nil {
			out = append(out, *q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AmountOut > out[j].AmountOut
	})
	return out, nil
}

// FindBestSwap returns the quote with the highest output
func (a *Aggregator) FindBestSwap(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) (*Quote, error) {
	quotes, err := a.CompareAllPrices(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, tokenIn, tokenOut)
	}
	best := quotes[0]
	a.logger.Debug("best route for %d %s -> %s is %s with %d out", amountIn, tokenIn, tokenOut, best.Venue, best.AmountOut)
	return &best, nil
}

// ExecuteBestSwap finds the best venue and swaps there, accepting at most
// slippage loss on the quoted output
func (a *Aggregator) ExecuteBestSwap(ctx context.Context, signer txn.Signer, tokenIn, tokenOut string, amountIn uint64, slippage float64) (*SwapExecution, error) {
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}
	if slippage < 0 || slippage >= 1 {
		return nil, fmt.Errorf("slippage must be in [0, 1), got %g", slippage)
	}

	best, err := a.FindBestSwap(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	adapter, ok := a.byName[best.Venue]
	if !ok {
		return nil, fmt.Errorf("adapter %s is not registered", best.Venue)
	}

	minOut := MinOut(best.AmountOut, slippage)
	a.logger.Info("swapping %d %s -> %s on %s, min out %d", amountIn, tokenIn, tokenOut, best.Venue, minOut)

	res, err := adapter.SwapExactInput(ctx, signer, tokenIn, tokenOut, amountIn, minOut)
	exec := &SwapExecution{Quote: *best, MinOut: minOut, Result: res}
	if err != nil {
		return exec, fmt.Errorf("swap on %s failed: %w", best.Venue, err)
	}
	return exec, nil
}

// GetTokenPrice probes every venue for the APT price of a token, highest first
func (a *Aggregator) GetTokenPrice(ctx context.Context, token string) ([]TokenPrice, error) {
	return a.pricesAgainst(ctx, token, APT)
}

func (a *Aggregator) pricesAgainst(ctx context.Context, token, base string) ([]TokenPrice, error) {
	prices := make([]*TokenPrice, len(a.adapters))
	now := a.now()

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			r, err := adapter.GetReserves(gctx, token, base)
			if err != nil {
				return nil
			}
			q, err := adapter.Quote(gctx, token, base, ProbeAmount)
			if err != nil {
				return nil
			}
			metrics.RecordQuote()
			prices[i] = &TokenPrice{
				Venue:        adapter.Name(),
				TokenAddress: token,
				BaseToken:    base,
				Price:        q.Price,
				Liquidity:    r.Liquidity(),
				Timestamp:    now,
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []TokenPrice
	for _, p := range prices {
		if p != nil {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price > out[j].Price
	})
	return out, nil
}

// FindTokenLiquidityPools lists the non-empty pools pairing a token with any
// base token, deepest first
func (a *Aggregator) FindTokenLiquidityPools(ctx context.Context, token string) ([]LiquidityPool, error) {
	var (
		mu    sync.Mutex
		pools []LiquidityPool
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range a.adapters {
		for _, base := range BaseTokens {
			if base == token {
				continue
			}
			adapter, base := adapter, base
			g.Go(func() error {
				r, err := adapter.GetReserves(gctx, token, base)
				if err != nil || r.Liquidity() == 0 {
					return nil
				}
				mu.Lock()
				pools = append(pools, LiquidityPool{
					Venue:     adapter.Name(),
					TokenA:    token,
					TokenB:    base,
					Liquidity: r.Liquidity(),
					ReserveA:  r.In,
					ReserveB:  r.Out,
					FeeRate:   DefaultFeeRate,
				})
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(pools, func(i, j int) bool {
		if pools[i].Liquidity != pools[j].Liquidity {
			return pools[i].Liquidity > pools[j].Liquidity
		}
		if pools[i].Venue != pools[j].Venue {
			return pools[i].Venue < pools[j].Venue
		}
		return pools[i].TokenB < pools[j].TokenB
	})
	return pools, nil
}

// GetTokenMetadata reads the CoinInfo of a coin type from its publisher.
// Unknown coins get placeholder metadata.
func (a *Aggregator) GetTokenMetadata(ctx context.Context, coinType string) (*TokenMetadata, error) {
	meta := &TokenMetadata{Address: coinType, Name: "Unknown", Symbol: "UNKNOWN", Decimals: 8}

	publisher := coinType
	if i := strings.Index(coinType, "::"); i > 0 {
		publisher = coinType[:i]
	}

	data, err := a.backend.GetResource(ctx, publisher, types.CoinInfoOf(coinType))
	if err != nil {
		a.logger.Debug("no coin info for %s: %v", coinType, err)
		return meta, nil
	}

	var info struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
		Supply   struct {
			Vec []map[string]any `json:"vec"`
		} `json:"supply"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode coin info of %s: %w", coinType, err)
	}

	meta.Name = info.Name
	meta.Symbol = info.Symbol
	meta.Decimals = info.Decimals
	if len(info.Supply.Vec) > 0 {
		meta.Supply = supplyValue(info.Supply.Vec[0])
	}
	return meta, nil
}

// supplyValue digs the amount out of an optional aggregator or integer supply
func supplyValue(v map[string]any) uint64 {
	if n, ok := types.ParseAmount(v["value"]); ok {
		return n
	}
	for _, key := range []string{"integer", "aggregator"} {
		inner, ok := v[key].(map[string]any)
		if !ok {
			continue
		}
		vec, ok := inner["vec"].([]any)
		if !ok || len(vec) == 0 {
			continue
		}
		if m, ok := vec[0].(map[string]any); ok {
			if n := supplyValue(m); n > 0 {
				return n
			}
		}
	}
	return 0
}

// CompareTopPrices compares APT prices of the main stable coins. Pairs quoted
// by fewer than two venues are omitted.
func (a *Aggregator) CompareTopPrices(ctx context.Context) (map[string][]TokenPrice, error) {
	out := make(map[string][]TokenPrice)
	for _, token := range []string{USDC, USDT} {
		prices, err := a.pricesAgainst(ctx, token, APT)
		if err != nil {
			return nil, err
		}
		if len(prices) > 1 {
			out[token+"/"+APT] = prices
		}
	}
	return out, nil
}

// ValidateTokenPair returns the venues that have a pool for the pair
func (a *Aggregator) ValidateTokenPair(ctx context.Context, tokenA, tokenB string) ([]string, error) {
	found := make([]bool, len(a.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			if _, err := adapter.GetReserves(gctx, tokenA, tokenB); err == nil {
				found[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var venues []string
	for i, ok := range found {
		if ok {
			venues = append(venues, a.adapters[i].Name())
		}
	}
	return venues, nil
}

// SupportedDexes describes every registered venue
func (a *Aggregator) SupportedDexes() []Info {
	out := make([]Info, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		out = append(out, adapter.Info())
	}
	return out
}
