package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/aptos-toolkit/contract"
	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
	"github.com/opendlt/aptos-toolkit/wallet"
)

type fakeBackend struct {
	mu        sync.Mutex
	resources map[string]json.RawMessage
	writes    []types.ContractCall
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{resources: make(map[string]json.RawMessage)}
}

func (b *fakeBackend) put(address, resourceType, data string) {
	b.resources[address+"|"+resourceType] = json.RawMessage(data)
}

func (b *fakeBackend) GetResource(ctx context.Context, address, resourceType string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.resources[address+"|"+resourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s at %s", contract.ErrResourceNotFound, resourceType, address)
	}
	return data, nil
}

func (b *fakeBackend) Write(ctx context.Context, signer txn.Signer, call types.ContractCall) (*types.WriteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, call)
	return &types.WriteResult{Success: true, TransactionHash: "0xfeed", Events: []types.ContractEvent{}}, nil
}

func (b *fakeBackend) lastWrite(t *testing.T) types.ContractCall {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.writes)
	return b.writes[len(b.writes)-1]
}

// quoteAdapter reports a fixed output and otherwise behaves like a Liquidswap venue
type quoteAdapter struct {
	*Venue
	name string
	out  uint64
	err  error
}

func (q *quoteAdapter) Name() string { return q.name }

func (q *quoteAdapter) Info() Info {
	info := q.Venue.Info()
	info.Name = q.name
	return info
}

func (q *quoteAdapter) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) (*Quote, error) {
	if q.err != nil {
		return nil, q.err
	}
	return newQuote(q.Info(), amountIn, q.out, []string{tokenIn, tokenOut}), nil
}

func testSigner(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.FromSeed(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	return w
}

func seedPools(b *fakeBackend) {
	b.put(LiquidswapAddress, pairType(LiquidswapAddress, "liquidity_pool", "LiquidityPool")(APT, USDC),
		`{"coin_x_reserve":"1000000000","coin_y_reserve":"2000000000"}`)
	b.put(AuxExchangeAddress, pairType(AuxExchangeAddress, "amm", "Pool")(USDC, APT),
		`{"coin_a_reserve":"2000000000","coin_b_reserve":"1000000000"}`)
	b.put(PancakePairAddress(APT, USDC), pairType(PancakeSwapAddress, "swap", "TokenPairReserve")(APT, USDC),
		`{"reserve0":"5000000000","reserve1":"5000000000"}`)
}

func TestAmountOut(t *testing.T) {
	// 997e6 * 2e9 / (1e12 + 997e6)
	assert.Equal(t, uint64(1_992_013), AmountOut(1_000_000, 1_000_000_000, 2_000_000_000))
	assert.Equal(t, uint64(1_998_001), AmountOutNoFee(1_000_000, 1_000_000_000, 2_000_000_000))

	assert.Zero(t, AmountOut(1_000_000, 0, 2_000_000_000))
	assert.Zero(t, AmountOut(1_000_000, 1_000_000_000, 0))
	assert.Zero(t, AmountOut(0, 1_000_000_000, 2_000_000_000))

	big := AmountOut(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	assert.Greater(t, big, uint64(0))
	assert.Less(t, big, uint64(math.MaxUint64))

	// Output never exceeds the output reserve
	assert.Less(t, AmountOut(math.MaxUint64/2, 10, 1000), uint64(1000))
}

func TestAmountOutPath(t *testing.T) {
	hops := []Reserves{
		{In: 1_000_000_000, Out: 2_000_000_000},
		{In: 2_000_000_000, Out: 3_000_000_000},
	}
	assert.Equal(t, uint64(2_976_100), AmountOutPath(1_000_000, hops))
	assert.Equal(t, uint64(1_000_000), AmountOutPath(1_000_000, nil))
}

func TestMinOut(t *testing.T) {
	assert.Equal(t, uint64(117), MinOut(120, 0.02))
	assert.Equal(t, uint64(1_982_052), MinOut(1_992_013, 0.005))
	assert.Equal(t, uint64(120), MinOut(120, 0))
	assert.Equal(t, uint64(120), MinOut(120, -0.5))
	assert.Zero(t, MinOut(120, 1))
}

func TestPriceImpactAndSlippage(t *testing.T) {
	impact := PriceImpact(1_000_000, 1_000_000_000, 2_000_000_000)
	assert.InDelta(t, 0.3993, impact, 0.001)
	assert.Zero(t, PriceImpact(1, 0, 1))

	assert.Equal(t, 0.5, OptimalSlippage(0.05))
	assert.Equal(t, 1.0, OptimalSlippage(0.5))
	assert.Equal(t, 2.0, OptimalSlippage(3))
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "1", FormatTokenAmount(100_000_000, 8))
	assert.Equal(t, "1.50000000", FormatTokenAmount(150_000_000, 8))
	assert.Equal(t, "0.000001", FormatTokenAmount(1, 6))
	assert.Equal(t, "42", FormatTokenAmount(42, 0))
}

func TestVenue_QuoteFromReserves(t *testing.T) {
	b := newFakeBackend()
	seedPools(b)
	ctx := context.Background()

	q, err := NewLiquidswap(b).Quote(ctx, APT, USDC, ProbeAmount)
	require.NoError(t, err)
	assert.Equal(t, Liquidswap, q.Venue)
	assert.Equal(t, uint64(1_992_013), q.AmountOut)
	assert.InDelta(t, 1.992013, q.Price, 1e-9)
	assert.Equal(t, []string{APT, USDC}, q.Path)

	_, err = NewThala(b).Quote(ctx, APT, USDC, ProbeAmount)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	// Reversed lookup orients the reserves from the input token
	r, err := NewAuxExchange(b).GetReserves(ctx, APT, USDC)
	require.NoError(t, err)
	assert.Equal(t, Reserves{In: 1_000_000_000, Out: 2_000_000_000}, r)

	q, err = NewAuxExchange(b).Quote(ctx, APT, USDC, ProbeAmount)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_998_001), q.AmountOut)

	q, err = NewPancakeSwap(b).Quote(ctx, APT, USDC, ProbeAmount)
	require.NoError(t, err)
	assert.Equal(t, uint64(996_801), q.AmountOut)
}

func TestVenue_EmptyPoolIsNoLiquidity(t *testing.T) {
	b := newFakeBackend()
	b.put(ThalaAddress, pairType(ThalaAddress, "amm", "Pool")(APT, USDT), `{"reserve_x":"0","reserve_y":"0"}`)

	_, err := NewThala(b).Quote(context.Background(), APT, USDT, ProbeAmount)
	assert.ErrorIs(t, err, ErrNoLiquidity)

	b.put(ThalaAddress, pairType(ThalaAddress, "amm", "Pool")(APT, USDC), `{"reserve_x":"1"}`)
	_, err = NewThala(b).GetReserves(context.Background(), APT, USDC)
	assert.Error(t, err)
}

func TestVenue_SwapCalls(t *testing.T) {
	params := SwapParams{Path: []string{APT, USDC}, AmountIn: 1000, MinOut: 990, Recipient: "0xabc"}

	call := NewLiquidswap(nil).SwapCall(params)
	assert.Equal(t, LiquidswapAddress+"::router::swap_exact_input", call.Function())
	assert.Equal(t, []string{APT, USDC}, call.TypeArguments)
	assert.Equal(t, []types.Arg{types.String("1000"), types.String("990")}, call.Arguments)

	call = NewCellana(nil).SwapCall(params)
	assert.Equal(t, CellanaAddress+"::router::swap", call.Function())

	call = NewAuxExchange(nil).SwapCall(params)
	assert.Equal(t, AuxExchangeAddress+"::amm::swap_exact_input", call.Function())

	routed := SwapParams{Path: []string{APT, USDT, USDC}, AmountIn: 1000, MinOut: 990}
	call = NewAnimeSwap(nil).SwapCall(routed)
	assert.Equal(t, AnimeSwapAddress+"::router::swap_exact_tokens_for_tokens", call.Function())
	assert.Equal(t, routed.Path, call.TypeArguments)
	require.Len(t, call.Arguments, 3)
	assert.True(t, types.List(types.Strings(APT, USDT, USDC)...).Equal(call.Arguments[2]))

	pancake := NewPancakeSwap(nil)
	pancake.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
	call = pancake.SwapCall(params)
	require.Len(t, call.Arguments, 5)
	assert.True(t, types.Address("0xabc").Equal(call.Arguments[3]))
	assert.True(t, types.String("1700000300").Equal(call.Arguments[4]))
}

func TestVenue_WriteOperations(t *testing.T) {
	b := newFakeBackend()
	signer := testSigner(t)
	ctx := context.Background()

	res, err := NewLiquidswap(b).SwapExactInput(ctx, signer, APT, USDC, 1000, 990)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = NewThala(b).AddLiquidity(ctx, signer, APT, USDC, 1000, 2000, 0.01)
	require.NoError(t, err)
	call := b.lastWrite(t)
	assert.Equal(t, ThalaAddress+"::amm::add_liquidity", call.Function())
	assert.Equal(t, types.Strings("1000", "2000", "990", "1980"), call.Arguments)

	pancake := NewPancakeSwap(b)
	_, err = pancake.RemoveLiquidity(ctx, signer, APT, USDC, 500)
	require.NoError(t, err)
	call = b.lastWrite(t)
	assert.Equal(t, PancakeSwapAddress+"::router::remove_liquidity", call.Function())
	require.Len(t, call.Arguments, 5)
	assert.True(t, types.Address(signer.Address()).Equal(call.Arguments[3]))

	_, err = NewAuxExchange(b).SwapPath(ctx, signer, []string{APT}, 1, 1)
	assert.Error(t, err)

	stake := CellanaStakeCall(3, 100)
	assert.Equal(t, CellanaAddress+"::farming::stake", stake.Function())
	assert.Len(t, CellanaHarvestCall(3).Arguments, 1)
}

func TestVenue_Filters(t *testing.T) {
	ev := func(handle string, data map[string]any) events.EventData {
		return events.EventData{Handle: handle, Data: data}
	}

	liquidswap := NewLiquidswap(nil)
	assert.True(t, liquidswap.Filter(ev("swap_events", map[string]any{"amount_in": "2000000000"})))
	assert.False(t, liquidswap.Filter(ev("swap_events", map[string]any{"amount_in": "10"})))
	assert.True(t, liquidswap.Filter(ev("add_liquidity_events", map[string]any{"amount_x": "600000000", "amount_y": "1"})))
	assert.False(t, liquidswap.Filter(ev("add_liquidity_events", map[string]any{"amount_x": "1", "amount_y": "1"})))
	assert.True(t, liquidswap.Filter(ev("flash_swap_events", nil)))

	thala := NewThala(nil)
	assert.True(t, thala.Filter(ev("swap_events", map[string]any{"coin_x": "0x7::thl_coin::THL", "amount_in": "1"})))
	assert.False(t, thala.Filter(ev("swap_events", map[string]any{"amount_in": "1000000000"})))

	cellana := NewCellana(nil)
	assert.False(t, cellana.Filter(ev("swap_events", map[string]any{"amount_in": "999"})))
	assert.True(t, cellana.Filter(ev("cell_farming_events", nil)))

	anime := NewAnimeSwap(nil)
	assert.False(t, anime.Filter(ev("swap_events", map[string]any{"amount1_in": "5"})))
	assert.True(t, anime.Filter(ev("swap_events", map[string]any{"amount0_in": "1000000000"})))
	assert.False(t, anime.Filter(ev("mint_events", map[string]any{"amount0": "1"})))

	pancake := NewPancakeSwap(nil)
	small := map[string]any{"amount0_in": "1", "amount1_in": "2"}
	assert.False(t, pancake.Filter(ev("swap_events", small)))
	small["token0"] = "0x1::oft::CakeOFT"
	assert.True(t, pancake.Filter(ev("swap_events", small)))

	aux := NewAuxExchange(nil)
	assert.True(t, aux.Filter(ev("swap_events", map[string]any{"amount_in": float64(6_000_000_000)})))
	assert.False(t, aux.Filter(ev("swap_events", map[string]any{"amount_in": "6"})))
	assert.Equal(t, time.Second, aux.PollInterval())
	assert.Equal(t, 3*time.Second, pancake.PollInterval())
}

func TestPancakePairAddress(t *testing.T) {
	want := "0x6c20dbb47e0014a83ffe4d6953cb3a2e2fa852c2c4d6885156728689b3fcd171"
	assert.Equal(t, want, PancakePairAddress(APT, USDC))
	assert.Equal(t, want, PancakePairAddress(USDC, APT))
	assert.Len(t, want, 66)
}

func TestAnimeSwap_BestPath(t *testing.T) {
	b := newFakeBackend()
	pool := pairType(AnimeSwapAddress, "swap", "TokenPairReserve")
	b.put(AnimeSwapAddress, pool(APT, USDC), `{"reserve_a":"1000000000","reserve_b":"2000000000"}`)
	b.put(AnimeSwapAddress, pool(APT, USDT), `{"reserve_a":"1000000000","reserve_b":"2000000000"}`)
	b.put(AnimeSwapAddress, pool(USDT, USDC), `{"reserve_a":"2000000000","reserve_b":"3000000000"}`)

	path, out, err := NewAnimeSwap(b).BestPath(context.Background(), APT, USDC, 1_000_000, []string{USDT, WormholeUSDC})
	require.NoError(t, err)
	assert.Equal(t, []string{APT, USDT, USDC}, path)
	assert.Equal(t, uint64(2_976_100), out)

	_, _, err = NewAnimeSwap(b).BestPath(context.Background(), USDC, WormholeUSDC, 1, nil)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func newTestAggregator(t *testing.T, b *fakeBackend, adapters ...Adapter) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(b, adapters...)
	require.NoError(t, err)
	agg.SetLogger(logz.Discard())
	return agg
}

func TestAggregator_BestQuoteWins(t *testing.T) {
	b := newFakeBackend()
	signer := testSigner(t)
	agg := newTestAggregator(t, b,
		&quoteAdapter{Venue: NewLiquidswap(b), name: "A", out: 100},
		&quoteAdapter{Venue: NewLiquidswap(b), name: "B", out: 120},
		&quoteAdapter{Venue: NewLiquidswap(b), name: "C", out: 110},
		&quoteAdapter{Venue: NewLiquidswap(b), name: "D", err: errors.New("offline")},
	)
	ctx := context.Background()

	quotes, err := agg.CompareAllPrices(ctx, APT, USDC, 1000)
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, []string{"B", "C", "A"}, []string{quotes[0].Venue, quotes[1].Venue, quotes[2].Venue})

	best, err := agg.FindBestSwap(ctx, APT, USDC, 1000)
	require.NoError(t, err)
	assert.Equal(t, "B", best.Venue)
	assert.Equal(t, uint64(120), best.AmountOut)

	exec, err := agg.ExecuteBestSwap(ctx, signer, APT, USDC, 1000, 0.02)
	require.NoError(t, err)
	assert.Equal(t, uint64(117), exec.MinOut)
	assert.Equal(t, "B", exec.Quote.Venue)
	assert.True(t, exec.Result.Success)

	call := b.lastWrite(t)
	assert.Equal(t, types.Strings("1000", "117"), call.Arguments)
}

func TestAggregator_NoRoute(t *testing.T) {
	b := newFakeBackend()
	agg := newTestAggregator(t, b,
		&quoteAdapter{Venue: NewLiquidswap(b), name: "A", err: ErrPoolNotFound},
		&quoteAdapter{Venue: NewLiquidswap(b), name: "B", err: ErrNoLiquidity},
	)

	_, err := agg.FindBestSwap(context.Background(), APT, USDC, 1000)
	assert.ErrorIs(t, err, ErrNoRoute)

	_, err = agg.ExecuteBestSwap(context.Background(), testSigner(t), APT, USDC, 1000, 0.01)
	assert.ErrorIs(t, err, ErrNoRoute)

	_, err = agg.ExecuteBestSwap(context.Background(), testSigner(t), APT, USDC, 1000, 1)
	assert.Error(t, err)
	_, err = agg.ExecuteBestSwap(context.Background(), nil, APT, USDC, 1000, 0.01)
	assert.Error(t, err)
}

func TestAggregator_Construction(t *testing.T) {
	_, err := NewAggregator(nil)
	assert.Error(t, err)

	b := newFakeBackend()
	_, err = NewAggregator(b, NewLiquidswap(b), NewLiquidswap(b))
	assert.Error(t, err)

	agg := newTestAggregator(t, b)
	dexes := agg.SupportedDexes()
	require.Len(t, dexes, 6)
	for _, info := range dexes {
		assert.Equal(t, info.Name != AuxExchange, info.IsAMM, info.Name)
		assert.NotEmpty(t, info.Description)
	}

	adapter, ok := agg.Adapter(Cellana)
	require.True(t, ok)
	assert.Equal(t, CellanaAddress, adapter.Address())
	_, ok = agg.Adapter("Nope")
	assert.False(t, ok)
}

func TestAggregator_RealVenues(t *testing.T) {
	b := newFakeBackend()
	seedPools(b)
	agg := newTestAggregator(t, b)
	ctx := context.Background()

	quotes, err := agg.CompareAllPrices(ctx, APT, USDC, ProbeAmount)
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, AuxExchange, quotes[0].Venue)
	assert.Equal(t, Liquidswap, quotes[1].Venue)
	assert.Equal(t, PancakeSwap, quotes[2].Venue)

	venues, err := agg.ValidateTokenPair(ctx, APT, USDC)
	require.NoError(t, err)
	assert.Equal(t, []string{Liquidswap, AuxExchange, PancakeSwap}, venues)

	pools, err := agg.FindTokenLiquidityPools(ctx, APT)
	require.NoError(t, err)
	require.Len(t, pools, 3)
	assert.Equal(t, PancakeSwap, pools[0].Venue)
	assert.Equal(t, uint64(10_000_000_000), pools[0].Liquidity)
	assert.Equal(t, AuxExchange, pools[1].Venue)
	assert.Equal(t, Liquidswap, pools[2].Venue)
	assert.Equal(t, DefaultFeeRate, pools[2].FeeRate)

	prices, err := agg.GetTokenPrice(ctx, USDC)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, AuxExchange, prices[0].Venue)
	assert.InDelta(t, 0.49975, prices[0].Price, 1e-9)
	assert.Equal(t, uint64(3_000_000_000), prices[0].Liquidity)

	top, err := agg.CompareTopPrices(ctx)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestAggregator_TokenMetadata(t *testing.T) {
	b := newFakeBackend()
	coin := "0xabc::moon::Moon"
	b.put("0xabc", types.CoinInfoOf(coin),
		`{"name":"Moon","symbol":"MOON","decimals":6,"supply":{"vec":[{"integer":{"vec":[{"value":"5000","limit":"100000"}]}}]}}`)
	agg := newTestAggregator(t, b)

	meta, err := agg.GetTokenMetadata(context.Background(), coin)
	require.NoError(t, err)
	assert.Equal(t, &TokenMetadata{Address: coin, Name: "Moon", Symbol: "MOON", Decimals: 6, Supply: 5000}, meta)

	meta, err = agg.GetTokenMetadata(context.Background(), "0xdef::x::X")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", meta.Name)
	assert.Equal(t, "UNKNOWN", meta.Symbol)
	assert.Equal(t, uint8(8), meta.Decimals)
}

type fakeEventSource struct {
	mu     sync.Mutex
	stream map[string][]types.Event
}

func (s *fakeEventSource) GetAccountEvents(ctx context.Context, address, handle string, limit uint64, start *uint64) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream[address+"/"+handle], nil
}

func (s *fakeEventSource) GetChainHeight(ctx context.Context) (uint64, error) {
	return 77, nil
}

func TestMonitor_FansVenueEventsIntoHubs(t *testing.T) {
	source := &fakeEventSource{stream: map[string][]types.Event{
		LiquidswapAddress + "/swap_events": {
			{SequenceNumber: 1, Type: "swap", Data: map[string]any{"amount_in": "2000000000"}},
			{SequenceNumber: 2, Type: "swap", Data: map[string]any{"amount_in": "10"}},
			{SequenceNumber: 3, Type: "swap", Data: map[string]any{"amount_in": "3000000000"}},
		},
	}}

	cfg := DefaultMonitorConfig()
	cfg.Intervals[Liquidswap] = 5 * time.Millisecond
	mon, err := NewMonitor(source, []Adapter{NewLiquidswap(nil), NewThala(nil)}, cfg)
	require.NoError(t, err)
	mon.SetLogger(logz.Discard())
	defer mon.Close()

	sub, err := mon.Subscribe(Liquidswap)
	require.NoError(t, err)

	require.NoError(t, mon.Start(context.Background()))
	assert.True(t, mon.IsRunning())
	assert.Equal(t, 8, mon.StreamCount())
	assert.Error(t, mon.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.SequenceNumber)
	assert.Equal(t, Liquidswap, first.Source)
	assert.Equal(t, "swap_events", first.Handle)
	assert.Equal(t, uint64(77), first.BlockHeight)

	second, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), second.SequenceNumber)

	mon.Stop()
	assert.False(t, mon.IsRunning())

	_, ok, err := sub.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMonitor_PublishAndSubscriptions(t *testing.T) {
	_, err := NewMonitor(nil, nil, DefaultMonitorConfig())
	assert.Error(t, err)

	mon, err := NewMonitor(&fakeEventSource{}, DefaultAdapters(nil), DefaultMonitorConfig())
	require.NoError(t, err)
	defer mon.Close()

	assert.Equal(t, []string{AnimeSwap, AuxExchange, Cellana, Liquidswap, PancakeSwap, Thala}, mon.Venues())

	subs := mon.Subscriptions()
	require.Len(t, subs, 6)

	n, err := mon.Publish(Thala, events.EventData{SequenceNumber: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ev, ok, err := subs[Thala].TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Thala, ev.Source)

	_, ok, _ = subs[Cellana].TryRecv()
	assert.False(t, ok)

	_, err = mon.Publish("Nope", events.EventData{})
	assert.Error(t, err)
	_, err = mon.Subscribe("Nope")
	assert.Error(t, err)

	hub, ok := mon.Hub(Cellana)
	require.True(t, ok)
	assert.Equal(t, events.DefaultCapacity, hub.Capacity())
}
