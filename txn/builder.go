package txn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opendlt/aptos-toolkit/types"
)

// Node is the subset of the node client used to build, submit and track transactions
type Node interface {
	GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error)
	GetChainInfo(ctx context.Context) (*types.ChainInfo, error)
	SubmitTransaction(ctx context.Context, signed *types.SignedTransaction) (*types.PendingTransaction, error)
	GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error)
}

// Signer produces ed25519 signatures for a single account
type Signer interface {
	Address() string
	PublicKeyHex() string
	Sign(msg []byte) ([]byte, error)
}

// Options overrides the per-transaction fields filled in by the builder
type Options struct {
	SequenceNumber *uint64
	ExpirationSecs uint64
	MaxGasAmount   uint64
	GasUnitPrice   uint64
}

// DefaultOptions returns the write defaults: 30s expiry, 2000 gas at price 100
func DefaultOptions() Options {
	return Options{
		ExpirationSecs: 30,
		MaxGasAmount:   2000,
		GasUnitPrice:   100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ExpirationSecs == 0 {
		o.ExpirationSecs = def.ExpirationSecs
	}
	if o.MaxGasAmount == 0 {
		o.MaxGasAmount = def.MaxGasAmount
	}
	if o.GasUnitPrice == 0 {
		o.GasUnitPrice = def.GasUnitPrice
	}
	return o
}

// Builder assembles raw transactions. The chain id is fetched once and cached.
type Builder struct {
	node Node
	now  func() time.Time

	mu      sync.Mutex
	chainID *uint8
}

// NewBuilder creates a builder backed by a node
func NewBuilder(node Node) *Builder {
	return &Builder{node: node, now: time.Now}
}

// SetClock replaces the wall clock used for expiration timestamps
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// ChainID returns the cached chain id, reading it from the node on first use
func (b *Builder) ChainID(ctx context.Context) (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.chainID != nil {
		return *b.chainID, nil
	}

	info, err := b.node.GetChainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain info: %w", err)
	}
	id := info.ChainID
	b.chainID = &id
	return id, nil
}

// BuildTransfer builds an APT transfer
func (b *Builder) BuildTransfer(ctx context.Context, sender, recipient string, amount uint64, opts Options) (*types.RawTransaction, error) {
	return b.BuildCoinTransfer(ctx, sender, recipient, types.AptosCoinType, amount, opts)
}

// BuildCoinTransfer builds a transfer of an arbitrary coin type
func (b *Builder) BuildCoinTransfer(ctx context.Context, sender, recipient, coinType string, amount uint64, opts Options) (*types.RawTransaction, error) {
	if recipient == "" {
		return nil, fmt.Errorf("recipient cannot be empty")
	}
	if coinType == "" {
		return nil, fmt.Errorf("coin type cannot be empty")
	}
	payload := types.NewEntryFunctionPayload(
		types.FunctionID(types.FrameworkAddress, types.CoinModule, types.CoinTransfer),
		[]string{coinType},
		[]types.Arg{types.String(recipient), types.Uint(amount)},
	)
	return b.BuildEntryFunction(ctx, sender, payload, opts)
}

// BuildEntryFunction fills in sequence number, gas, expiration and chain id around a payload
func (b *Builder) BuildEntryFunction(ctx context.Context, sender string, payload *types.EntryFunctionPayload, opts Options) (*types.RawTransaction, error) {
	if sender == "" {
		return nil, fmt.Errorf("sender cannot be empty")
	}
	if payload == nil {
		return nil, fmt.Errorf("payload cannot be nil")
	}
	opts = opts.withDefaults()

	var seq uint64
	if opts.SequenceNumber != nil {
		seq = *opts.SequenceNumber
	} else {
		info, err := b.node.GetAccountInfo(ctx, sender)
		if err != nil {
			return nil, fmt.Errorf("failed to get sequence number for %s: %w", sender, err)
		}
		seq = info.SequenceNumber.Uint64()
	}

	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	expiration := uint64(b.now().Unix()) + opts.ExpirationSecs

	return &types.RawTransaction{
		Sender:                  sender,
		SequenceNumber:          types.U64(seq),
		Payload:                 payload,
		MaxGasAmount:            types.U64(opts.MaxGasAmount),
		GasUnitPrice:            types.U64(opts.GasUnitPrice),
		ExpirationTimestampSecs: types.U64(expiration),
		ChainID:                 &chainID,
	}, nil
}
