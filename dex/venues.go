package dex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/types"
)

// Swap size floors used by the venue event filters
const (
	largeSwap      uint64 = 1_000_000_000
	whaleSwap      uint64 = 5_000_000_000
	largeLiquidity uint64 = 500_000_000
)

// NewLiquidswap returns the Liquidswap adapter
func NewLiquidswap(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              Liquidswap,
			Address:           LiquidswapAddress,
			Description:       "Pontem Network - Largest DEX on Aptos",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             true,
		},
		poolType:    pairType(LiquidswapAddress, "liquidity_pool", "LiquidityPool"),
		reserveKeys: [2]string{"coin_x_reserve", "coin_y_reserve"},
		swap:        routerSwap("router", "swap_exact_input"),
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return depositCall(v.Address(), "liquidity_pool", p)
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "liquidity_pool", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity))
		},
		handles:  []string{"swap_events", "add_liquidity_events", "remove_liquidity_events", "flash_swap_events"},
		interval: 2 * time.Second,
		filter: func(ev events.EventData) bool {
			switch ev.Handle {
			case "swap_events":
				n, ok := field(ev, "amount_in")
				return ok && n > largeSwap
			case "add_liquidity_events":
				x, _ := field(ev, "amount_x")
				y, _ := field(ev, "amount_y")
				return x > largeLiquidity || y > largeLiquidity
			}
			return true
		},
	})
}

// NewThala returns the Thala adapter
func NewThala(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              Thala,
			Address:           ThalaAddress,
			Description:       "DeFi protocol with THL token and staking",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             true,
		},
		poolType:    pairType(ThalaAddress, "amm", "Pool"),
		reserveKeys: [2]string{"reserve_x", "reserve_y"},
		swap:        routerSwap("router", "swap_exact_input"),
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return depositCall(v.Address(), "amm", p)
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "amm", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity), amount(0), amount(0))
		},
		handles:  []string{"swap_events", "mint_events", "burn_events", "staking_events"},
		interval: 2 * time.Second,
		filter: func(ev events.EventData) bool {
			if ev.Handle != "swap_events" {
				return true
			}
			if pairContains(ev, "coin_x", "coin_y", "thl_coin") {
				return true
			}
			n, ok := field(ev, "amount_in")
			return ok && n > whaleSwap
		},
	})
}

// NewCellana returns the Cellana adapter
func NewCellana(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              Cellana,
			Address:           CellanaAddress,
			Description:       "DEX with CELL token and farming",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             true,
		},
		poolType:    pairType(CellanaAddress, "liquidity_pool", "Pool"),
		reserveKeys: [2]string{"reserve_x", "reserve_y"},
		swap:        routerSwap("router", "swap"),
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return depositCall(v.Address(), "liquidity_pool", p)
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "liquidity_pool", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity))
		},
		handles:  []string{"swap_events", "liquidity_events", "cell_farming_events"},
		interval: 2 * time.Second,
		filter: func(ev events.EventData) bool {
			if ev.Handle != "swap_events" {
				return true
			}
			if n, ok := field(ev, "amount_in"); ok && n < largeSwap {
				return false
			}
			return true
		},
	})
}

// NewAnimeSwap returns the AnimeSwap adapter. Swaps are routed along a token path.
func NewAnimeSwap(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              AnimeSwap,
			Address:           AnimeSwapAddress,
			Description:       "Multi-chain DEX with anime theme",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             true,
		},
		poolType:    pairType(AnimeSwapAddress, "swap", "TokenPairReserve"),
		reserveKeys: [2]string{"reserve_a", "reserve_b"},
		swap: func(v *Venue, p SwapParams) types.ContractCall {
			return types.NewCall(v.Address(), "router", "swap_exact_tokens_for_tokens", p.Path,
				amount(p.AmountIn), amount(p.MinOut), pathArg(p.Path))
		},
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return depositCall(v.Address(), "router", p)
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "router", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity), amount(0), amount(0))
		},
		handles:  []string{"swap_events", "mint_events", "burn_events"},
		interval: 3 * time.Second,
		filter: func(ev events.EventData) bool {
			switch ev.Handle {
			case "swap_events":
				n, ok := field(ev, "amount0_in")
				if !ok {
					n, ok = field(ev, "amount1_in")
				}
				return !ok || n >= largeSwap
			case "mint_events":
				n, ok := field(ev, "amount0")
				return !ok || n >= largeLiquidity
			}
			return true
		},
	})
}

// NewPancakeSwap returns the PancakeSwap adapter. Pools live at derived pair
// addresses and every call carries a recipient and a deadline.
func NewPancakeSwap(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              PancakeSwap,
			Address:           PancakeSwapAddress,
			Description:       "Multi-chain DEX with CAKE token",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             true,
		},
		poolOwner:   PancakePairAddress,
		poolType:    pairType(PancakeSwapAddress, "swap", "TokenPairReserve"),
		reserveKeys: [2]string{"reserve0", "reserve1"},
		swap: func(v *Venue, p SwapParams) types.ContractCall {
			return types.NewCall(v.Address(), "router", "swap_exact_tokens_for_tokens", p.Path,
				amount(p.AmountIn), amount(p.MinOut), pathArg(p.Path),
				types.Address(p.Recipient), types.String(v.deadline()))
		},
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "router", "add_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.AmountA), amount(p.AmountB),
				amount(MinOut(p.AmountA, p.Slippage)), amount(MinOut(p.AmountB, p.Slippage)),
				types.Address(p.Recipient), types.String(v.deadline()))
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "router", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity), amount(0), amount(0),
				types.Address(p.Recipient), types.String(v.deadline()))
		},
		handles:  []string{"swap_events", "mint_events", "burn_events", "sync_events"},
		interval: 3 * time.Second,
		filter: func(ev events.EventData) bool {
			if ev.Handle != "swap_events" {
				return true
			}
			a0, ok0 := field(ev, "amount0_in")
			a1, ok1 := field(ev, "amount1_in")
			if ok0 && ok1 && a0 < largeSwap && a1 < largeSwap {
				return pairContains(ev, "token0", "token1", "CakeOFT")
			}
			return true
		},
	})
}

// NewAuxExchange returns the AUX adapter. Quotes use the fee-less formula and
// the pool is also looked up under the reversed pair.
func NewAuxExchange(backend Backend) *Venue {
	return newVenue(backend, venueSpec{
		info: Info{
			Name:              AuxExchange,
			Address:           AuxExchangeAddress,
			Description:       "Orderbook-based DEX with AMM",
			SupportsLiquidity: true,
			SupportsSwap:      true,
			IsAMM:             false,
		},
		poolType:    pairType(AuxExchangeAddress, "amm", "Pool"),
		reserveKeys: [2]string{"coin_a_reserve", "coin_b_reserve"},
		amountOut:   AmountOutNoFee,
		reversible:  true,
		swap:        routerSwap("amm", "swap_exact_input"),
		addLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "amm", "add_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.AmountA), amount(p.AmountB), amount(0))
		},
		removeLiquidity: func(v *Venue, p LiquidityParams) types.ContractCall {
			return types.NewCall(v.Address(), "amm", "remove_liquidity", []string{p.TokenA, p.TokenB},
				amount(p.Liquidity), amount(0), amount(0))
		},
		handles:  []string{"swap_events", "add_liquidity_events", "remove_liquidity_events"},
		interval: time.Second,
		filter: func(ev events.EventData) bool {
			if ev.Handle != "swap_events" {
				return true
			}
			n, ok := field(ev, "amount_in")
			return ok && n > whaleSwap
		},
	})
}

// DefaultAdapters returns every supported venue
func DefaultAdapters(backend Backend) []Adapter {
	return []Adapter{
		NewLiquidswap(backend),
		NewAuxExchange(backend),
		NewAnimeSwap(backend),
		NewThala(backend),
		NewPancakeSwap(backend),
		NewCellana(backend),
	}
}

// PancakePairAddress derives the account holding the pair reserves. Tokens are
// ordered lexicographically first.
func PancakePairAddress(tokenA, tokenB string) string {
	x, y := tokenA, tokenB
	if y < x {
		x, y = y, x
	}
	h := sha256.New()
	h.Write([]byte(PancakeSwapAddress))
	h.Write([]byte("::factory::Pair"))
	h.Write([]byte(x))
	h.Write([]byte(y))
	h.Write([]byte("pancake_swap_pair"))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// BestPath finds the best route from tokenIn to tokenOut, either direct or
// through one of the intermediate tokens
func (v *Venue) BestPath(ctx context.Context, tokenIn, tokenOut string, amountIn uint64, intermediates []string) ([]string, uint64, error) {
	best := []string{tokenIn, tokenOut}
	var bestOut uint64
	found := false

	if r, err := v.GetReserves(ctx, tokenIn, tokenOut); err == nil {
		bestOut = v.spec.amountOut(amountIn, r.In, r.Out)
		found = true
	}

	for _, mid := range intermediates {
		first, err := v.GetReserves(ctx, tokenIn, mid)
		if err != nil {
			continue
		}
		second, err := v.GetReserves(ctx, mid, tokenOut)
		if err != nil {
			continue
		}
		found = true
		out := AmountOutPath(amountIn, []Reserves{first, second})
		if out > bestOut {
			bestOut = out
			best = []string{tokenIn, mid, tokenOut}
		}
	}

	if !found {
		return nil, 0, fmt.Errorf("%s %w for %s -> %s", v.Name(), ErrPoolNotFound, tokenIn, tokenOut)
	}
	return best, bestOut, nil
}

func routerSwap(module, function string) func(v *Venue, p SwapParams) types.ContractCall {
	return func(v *Venue, p SwapParams) types.ContractCall {
		from, to := ends(p.Path)
		return types.NewCall(v.Address(), module, function, []string{from, to},
			amount(p.AmountIn), amount(p.MinOut))
	}
}

func depositCall(address, module string, p LiquidityParams) types.ContractCall {
	return types.NewCall(address, module, "add_liquidity", []string{p.TokenA, p.TokenB},
		amount(p.AmountA), amount(p.AmountB),
		amount(MinOut(p.AmountA, p.Slippage)), amount(MinOut(p.AmountB, p.Slippage)))
}

func pathArg(path []string) types.Arg {
	return types.List(types.Strings(path...)...)
}

func field(ev events.EventData, key string) (uint64, bool) {
	v, ok := ev.Data[key]
	if !ok {
		return 0, false
	}
	return types.ParseAmount(v)
}

func pairContains(ev events.EventData, keyA, keyB, substr string) bool {
	a, _ := ev.Data[keyA].(string)
	b, _ := ev.Data[keyB].(string)
	return strings.Contains(a, substr) || strings.Contains(b, substr)
}

// CellanaStakeCall stakes liquidity tokens in a Cellana farm
func CellanaStakeCall(poolID, liquidity uint64) types.ContractCall {
	return types.NewCall(CellanaAddress, "farming", "stake", nil, amount(poolID), amount(liquidity))
}

// CellanaHarvestCall claims CELL farming rewards of a pool
func CellanaHarvestCall(poolID uint64) types.ContractCall {
	return types.NewCall(CellanaAddress, "farming", "harvest", nil, amount(poolID))
}
