package dex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opendlt/aptos-toolkit/contract"
	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
)

var (
	// ErrPoolNotFound is returned when a venue has no pool for a token pair
	ErrPoolNotFound = errors.New("pool not found")

	// ErrNoLiquidity is returned when a pool cannot produce any output
	ErrNoLiquidity = errors.New("pool has no liquidity")
)

// Backend is the chain access an adapter needs. *contract.Facade implements it.
type Backend interface {
	GetResource(ctx context.Context, address, resourceType string) (json.RawMessage, error)
	Write(ctx context.Context, signer txn.Signer, call types.ContractCall) (*types.WriteResult, error)
}

// Info describes a venue
type Info struct {
	Name              string `json:"name"`
	Address           string `json:"address"`
	Description       string `json:"description"`
	SupportsLiquidity bool   `json:"supports_liquidity"`
	SupportsSwap      bool   `json:"supports_swap"`
	IsAMM             bool   `json:"is_amm"`
}

// Reserves holds the pool reserves oriented from the input token to the output token
type Reserves struct {
	In  uint64 `json:"reserve_in"`
	Out uint64 `json:"reserve_out"`
}

// Liquidity returns the sum of both reserves, saturating at the uint64 maximum
func (r Reserves) Liquidity() uint64 {
	sum := r.In + r.Out
	if sum < r.In {
		return ^uint64(0)
	}
	return sum
}

// Quote is the expected output of a swap on one venue
type Quote struct {
	Venue     string   `json:"dex"`
	Address   string   `json:"dex_address"`
	AmountIn  uint64   `json:"amount_in"`
	AmountOut uint64   `json:"amount_out"`
	Price     float64  `json:"price"`
	Path      []string `json:"path,omitempty"`
}

// SwapParams are the inputs of an exact-input swap
type SwapParams struct {
	Path      []string
	AmountIn  uint64
	MinOut    uint64
	Recipient string
}

// LiquidityParams are the inputs of a liquidity change
type LiquidityParams struct {
	TokenA    string
	TokenB    string
	AmountA   uint64
	AmountB   uint64
	Liquidity uint64
	Slippage  float64
	Recipient string
}

// Adapter is a trading venue
type Adapter interface {
	Info() Info
	Name() string
	Address() string

	GetPoolInfo(ctx context.Context, tokenA, tokenB string) (map[string]any, error)
	GetReserves(ctx context.Context, tokenIn, tokenOut string) (Reserves, error)
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) (*Quote, error)

	SwapCall(p SwapParams) types.ContractCall
	SwapExactInput(ctx context.Context, signer txn.Signer, tokenIn, tokenOut string, amountIn, minOut uint64) (*types.WriteResult, error)
	AddLiquidity(ctx context.Context, signer txn.Signer, tokenA, tokenB string, amountA, amountB uint64, slippage float64) (*types.WriteResult, error)
	RemoveLiquidity(ctx context.Context, signer txn.Signer, tokenA, tokenB string, liquidity uint64) (*types.WriteResult, error)

	EventHandles() []string
	PollInterval() time.Duration
	Filter(ev events.EventData) bool
}

// venueSpec captures everything that differs between venues
type venueSpec struct {
	info        Info
	poolOwner   func(a, b string) string
	poolType    func(a, b string) string
	reserveKeys [2]string
	amountOut   func(in, reserveIn, reserveOut uint64) uint64

	// reversible looks the pool up under (b, a) when (a, b) is absent
	reversible bool

	swap            func(v *Venue, p SwapParams) types.ContractCall
	addLiquidity    func(v *Venue, p LiquidityParams) types.ContractCall
	removeLiquidity func(v *Venue, p LiquidityParams) types.ContractCall

	handles  []string
	interval time.Duration
	filter   events.Predicate
}

// Venue is a pool-based trading venue driven by a venue description
type Venue struct {
	backend Backend
	spec    venueSpec
	now     func() time.Time
}

func newVenue(backend Backend, spec venueSpec) *Venue {
	if spec.poolOwner == nil {
		addr := spec.info.Address
		spec.poolOwner = func(a, b string) string { return addr }
	}
	if spec.amountOut == nil {
		spec.amountOut = AmountOut
	}
	return &Venue{backend: backend, spec: spec, now: time.Now}
}

// SetClock overrides the time source used for deadlines
func (v *Venue) SetClock(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Info returns the venue description
func (v *Venue) Info() Info { return v.spec.info }

// Name returns the venue name
func (v *Venue) Name() string { return v.spec.info.Name }

// Address returns the venue protocol address
func (v *Venue) Address() string { return v.spec.info.Address }

// EventHandles returns the event streams the venue publishes
func (v *Venue) EventHandles() []string {
	out := make([]string, len(v.spec.handles))
	copy(out, v.spec.handles)
	return out
}

// PollInterval returns how often the venue event streams are polled
func (v *Venue) PollInterval() time.Duration { return v.spec.interval }

// Filter reports whether an observed event is worth forwarding
func (v *Venue) Filter(ev events.EventData) bool {
	if v.spec.filter == nil {
		return true
	}
	return v.spec.filter(ev)
}

// PoolType returns the pool resource type of a token pair
func (v *Venue) PoolType(tokenA, tokenB string) string {
	return v.spec.poolType(tokenA, tokenB)
}

// GetPoolInfo returns the raw pool resource of a token pair
func (v *Venue) GetPoolInfo(ctx context.Context, tokenA, tokenB string) (map[string]any, error) {
	owner := v.spec.poolOwner(tokenA, tokenB)
	poolType := v.spec.poolType(tokenA, tokenB)

	data, err := v.backend.GetResource(ctx, owner, poolType)
	if err != nil {
		if errors.Is(err, contract.ErrResourceNotFound) {
			return nil, fmt.Errorf("%s %w: %s", v.Name(), ErrPoolNotFound, poolType)
		}
		return nil, fmt.Errorf("failed to read %s pool %s: %w", v.Name(), poolType, err)
	}

	var pool map[string]any
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("failed to decode %s pool %s: %w", v.Name(), poolType, err)
	}
	return pool, nil
}

// GetReserves returns the reserves of the pool oriented from tokenIn to tokenOut
func (v *Venue) GetReserves(ctx context.Context, tokenIn, tokenOut string) (Reserves, error) {
	pool, err := v.GetPoolInfo(ctx, tokenIn, tokenOut)
	if err == nil {
		return v.reserves(pool)
	}
	if !v.spec.reversible || !errors.Is(err, ErrPoolNotFound) {
		return Reserves{}, err
	}

	pool, rerr := v.GetPoolInfo(ctx, tokenOut, tokenIn)
	if rerr != nil {
		return Reserves{}, fmt.Errorf("%w (reverse lookup: %v)", err, rerr)
	}
	r, rerr := v.reserves(pool)
	if rerr != nil {
		return Reserves{}, rerr
	}
	return Reserves{In: r.Out, Out: r.In}, nil
}

func (v *Venue) reserves(pool map[string]any) (Reserves, error) {
	in, ok := types.ParseAmount(pool[v.spec.reserveKeys[0]])
	if !ok {
		return Reserves{}, fmt.Errorf("%s pool has no %s", v.Name(), v.spec.reserveKeys[0])
	}
	out, ok := types.ParseAmount(pool[v.spec.reserveKeys[1]])
	if !ok {
		return Reserves{}, fmt.Errorf("%s pool has no %s", v.Name(), v.spec.reserveKeys[1])
	}
	return Reserves{In: in, Out: out}, nil
}

// Quote prices a swap from the pool reserves
func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) (*Quote, error) {
	r, err := v.GetReserves(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	out := v.spec.amountOut(amountIn, r.In, r.Out)
	if out == 0 {
		return nil, fmt.Errorf("%s %w for %s -> %s", v.Name(), ErrNoLiquidity, tokenIn, tokenOut)
	}
	return newQuote(v.spec.info, amountIn, out, []string{tokenIn, tokenOut}), nil
}

func newQuote(info Info, amountIn, amountOut uint64, path []string) *Quote {
	price := 0.0
	if amountIn > 0 {
		price = float64(amountOut) / float64(amountIn)
	}
	return &Quote{
		Venue:     info.Name,
		Address:   info.Address,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Price:     price,
		Path:      path,
	}
}

// SwapCall builds the exact-input swap call
func (v *Venue) SwapCall(p SwapParams) types.ContractCall {
	return v.spec.swap(v, p)
}

// SwapExactInput swaps amountIn of tokenIn for at least minOut of tokenOut
func (v *Venue) SwapExactInput(ctx context.Context, signer txn.Signer, tokenIn, tokenOut string, amountIn, minOut uint64) (*types.WriteResult, error) {
	return v.SwapPath(ctx, signer, []string{tokenIn, tokenOut}, amountIn, minOut)
}

// SwapPath swaps along path. Venues without routing use its first and last token.
func (v *Venue) SwapPath(ctx context.Context, signer txn.Signer, path []string, amountIn, minOut uint64) (*types.WriteResult, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path must contain at least 2 tokens")
	}
	return v.backend.Write(ctx, signer, v.SwapCall(SwapParams{
		Path:      path,
		AmountIn:  amountIn,
		MinOut:    minOut,
		Recipient: signer.Address(),
	}))
}

// AddLiquidity deposits both tokens. Minimum amounts follow from slippage.
func (v *Venue) AddLiquidity(ctx context.Context, signer txn.Signer, tokenA, tokenB string, amountA, amountB uint64, slippage float64) (*types.WriteResult, error) {
	if v.spec.addLiquidity == nil {
		return nil, fmt.Errorf("%s does not support adding liquidity", v.Name())
	}
	return v.backend.Write(ctx, signer, v.spec.addLiquidity(v, LiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		AmountA:   amountA,
		AmountB:   amountB,
		Slippage:  slippage,
		Recipient: signer.Address(),
	}))
}

// RemoveLiquidity burns liquidity pool tokens
func (v *Venue) RemoveLiquidity(ctx context.Context, signer txn.Signer, tokenA, tokenB string, liquidity uint64) (*types.WriteResult, error) {
	if v.spec.removeLiquidity == nil {
		return nil, fmt.Errorf("%s does not support removing liquidity", v.Name())
	}
	return v.backend.Write(ctx, signer, v.spec.removeLiquidity(v, LiquidityParams{
		TokenA:    tokenA,
		TokenB:    tokenB,
		Liquidity: liquidity,
		Recipient: signer.Address(),
	}))
}

func (v *Venue) deadline() string {
	return strconv.FormatInt(v.now().Unix()+DeadlineSeconds, 10)
}

func amount(v uint64) types.Arg {
	return types.String(strconv.FormatUint(v, 10))
}

func pairType(address, module, name string) func(a, b string) string {
	return func(a, b string) string {
		return fmt.Sprintf("%s::%s::%s<%s, %s>", address, module, name, a, b)
	}
}

func ends(path []string) (string, string) {
	return path[0], path[len(path)-1]
}
