package txn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/aptos-toolkit/types"
	"github.com/opendlt/aptos-toolkit/wallet"
)

type fakeNode struct {
	mu         sync.Mutex
	seq        uint64
	chainID    uint8
	chainCalls int
	seqCalls   int
	lookups    atomic.Int32
	submitted  []*types.SignedTransaction
	lookup     func(n int32, hash string) (*types.Transaction, error)
	txs        map[string][]types.Transaction
}

func (f *fakeNode) GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqCalls++
	return &types.AccountInfo{SequenceNumber: types.U64(f.seq)}, nil
}

func (f *fakeNode) GetChainInfo(ctx context.Context) (*types.ChainInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainCalls++
	return &types.ChainInfo{ChainID: f.chainID}, nil
}

func (f *fakeNode) SubmitTransaction(ctx context.Context, signed *types.SignedTransaction) (*types.PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, signed)
	return &types.PendingTransaction{Hash: "0xfeed"}, nil
}

func (f *fakeNode) GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	n := f.lookups.Add(1)
	if f.lookup == nil {
		return nil, errors.New("not found")
	}
	return f.lookup(n, hash)
}

func (f *fakeNode) GetAccountTransactions(ctx context.Context, address string, limit uint64, start *uint64) ([]types.Transaction, error) {
	return f.txs[address], nil
}

func fixedClock() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func TestBuilder_ExplicitSequenceAndExpiration(t *testing.T) {
	node := &fakeNode{seq: 99, chainID: 2}
	b := NewBuilder(node)
	b.SetClock(fixedClock)

	seq := uint64(7)
	raw, err := b.BuildTransfer(context.Background(), "0xa1", "0xb2", 1000, Options{SequenceNumber: &seq})
	require.NoError(t, err)

	assert.Equal(t, 0, node.seqCalls)
	assert.Equal(t, uint64(1_700_000_030), raw.ExpirationTimestampSecs.Uint64())
	assert.Equal(t, uint64(2000), raw.MaxGasAmount.Uint64())
	assert.Equal(t, uint64(100), raw.GasUnitPrice.Uint64())

	out, err := json.Marshal(raw)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, "7", fields["sequence_number"])
	assert.Equal(t, "0x1::coin::transfer", raw.Payload.Function)
	assert.Equal(t, []string{types.AptosCoinType}, raw.Payload.TypeArguments)
	assert.Equal(t, "1000", fields["payload"].(map[string]any)["arguments"].([]any)[1])
}

func TestBuilder_FetchesSequenceAndCachesChainID(t *testing.T) {
	node := &fakeNode{seq: 12, chainID: 1}
	b := NewBuilder(node)

	for i := 0; i < 3; i++ {
		raw, err := b.BuildEntryFunction(context.Background(), "0xa1",
			types.NewEntryFunctionPayload("0x1::m::f", nil, nil), Options{})
		require.NoError(t, err)
		assert.Equal(t, uint64(12), raw.SequenceNumber.Uint64())
		assert.Equal(t, uint8(1), *raw.ChainID)
	}
	assert.Equal(t, 3, node.seqCalls)
	assert.Equal(t, 1, node.chainCalls)
}

func TestBuilder_Validation(t *testing.T) {
	b := NewBuilder(&fakeNode{})
	_, err := b.BuildEntryFunction(context.Background(), "", types.NewEntryFunctionPayload("0x1::m::f", nil, nil), Options{})
	assert.Error(t, err)
	_, err = b.BuildEntryFunction(context.Background(), "0x1", nil, Options{})
	assert.Error(t, err)
	_, err = b.BuildTransfer(context.Background(), "0x1", "", 1, Options{})
	assert.Error(t, err)
}

func sampleRaw() *types.RawTransaction {
	chainID := uint8(1)
	return &types.RawTransaction{
		Sender:         "0xa1",
		SequenceNumber: 7,
		Payload: types.NewEntryFunctionPayload("0x1::coin::transfer", []string{types.AptosCoinType}, []types.Arg{
			types.Address("0xb2"),
			types.Uint(1000),
			types.Bool(true),
			types.Bytes([]byte{1, 2, 3}),
			types.List(types.String("x"), types.Uint(5)),
		}),
		MaxGasAmount:            2000,
		GasUnitPrice:            100,
		ExpirationTimestampSecs: 1_700_000_030,
		ChainID:                 &chainID,
	}
}

func TestCodec_RoundTripAndDeterminism(t *testing.T) {
	codec := DefaultCodec()
	raw := sampleRaw()

	first, err := codec.Encode(raw)
	require.NoError(t, err)
	second, err := codec.Encode(sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := codec.Decode(first)
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 62)+"a1", decoded.Sender)
	assert.Equal(t, raw.SequenceNumber, decoded.SequenceNumber)
	assert.Equal(t, raw.Payload.Function, decoded.Payload.Function)
	assert.Equal(t, raw.Payload.TypeArguments, decoded.Payload.TypeArguments)
	assert.Equal(t, *raw.ChainID, *decoded.ChainID)
	require.Len(t, decoded.Payload.Arguments, 5)
	for i := 1; i < 5; i++ {
		assert.True(t, raw.Payload.Arguments[i].Equal(decoded.Payload.Arguments[i]), "argument %d", i)
	}

	changed := sampleRaw()
	changed.SequenceNumber = 8
	third, err := codec.Encode(changed)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestCodec_RejectsIncompleteTransactions(t *testing.T) {
	raw := sampleRaw()
	raw.ChainID = nil
	_, err := DefaultCodec().Encode(raw)
	assert.Error(t, err)

	raw = sampleRaw()
	raw.Sender = "a1"
	_, err = DefaultCodec().Encode(raw)
	assert.Error(t, err)
}

func TestAddressBytes(t *testing.T) {
	b, err := AddressBytes("0x1")
	require.NoError(t, err)
	assert.Len(t, b, AddressLength)
	assert.Equal(t, byte(1), b[31])

	_, err = AddressBytes("0x" + strings.Repeat("ab", 33))
	assert.Error(t, err)
	_, err = AddressBytes("0xzz")
	assert.Error(t, err)
}

func TestSign_DeterministicEnvelope(t *testing.T) {
	w, err := wallet.FromSeed(make([]byte, 32))
	require.NoError(t, err)

	a, err := Sign(w, sampleRaw())
	require.NoError(t, err)
	b, err := Sign(w, sampleRaw())
	require.NoError(t, err)

	assert.Equal(t, a.Signature.Signature, b.Signature.Signature)
	assert.Equal(t, types.Ed25519SignatureType, a.Signature.Type)
	assert.Equal(t, "0x"+w.PublicKeyHex(), a.Signature.PublicKey)
	assert.Len(t, a.Signature.Signature, 2+128)

	msg, err := SigningMessage(DefaultCodec(), sampleRaw())
	require.NoError(t, err)
	sig, err := w.Sign(msg)
	require.NoError(t, err)
	assert.True(t, w.Verify(msg, sig))
}

func TestSign_ErasedWallet(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)
	w.Erase()

	_, err = Sign(w, sampleRaw())
	require.Error(t, err)
	assert.ErrorIs(t, err, wallet.ErrErased)
}

func newTestPipeline(t *testing.T, node *fakeNode) *Pipeline {
	t.Helper()
	config := DefaultConfig()
	config.PollInterval = 10 * time.Millisecond
	config.ConfirmTimeout = time.Second
	p, err := NewPipeline(node, config)
	require.NoError(t, err)
	return p
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, DefaultConfig())
	assert.Error(t, err)
	_, err = NewPipeline(&fakeNode{}, nil)
	assert.EqualError(t, err, "config cannot be nil")
	_, err = NewPipeline(&fakeNode{}, &Config{})
	assert.Error(t, err)
}

func TestWaitForTransaction_TimesOutAfterDeadline(t *testing.T) {
	node := &fakeNode{}
	p, err := NewPipeline(node, DefaultConfig())
	require.NoError(t, err)

	start := time.Now()
	_, err = p.WaitForTransaction(context.Background(), "0xdeadbeef", 2*time.Second)
	elapsed := time.Since(start)

	require.Error(t, err)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "0xdeadbeef", te.Hash)
	assert.Contains(t, err.Error(), "0xdeadbeef")
	assert.Contains(t, err.Error(), "2")
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.GreaterOrEqual(t, node.lookups.Load(), int32(4))
	assert.True(t, IsTimeout(err))
}

type hangingNode struct {
	fakeNode
}

func (h *hangingNode) GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	h.lookups.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWaitForTransaction_DeadlineBoundsStalledLookup(t *testing.T) {
	node := &hangingNode{}
	p, err := NewPipeline(node, DefaultConfig())
	require.NoError(t, err)

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, err := p.WaitForTransaction(context.Background(), "0xabc", 2*time.Second)
		done <- err
	}()

	select {
	case err := <-done:
		assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "0xabc", te.Hash)
	case <-time.After(4 * time.Second):
		t.Fatal("wait outlived its timeout while a lookup was stalled")
	}
	assert.Equal(t, int32(1), node.lookups.Load())
}

func TestWaitForTransaction_ZeroTimeoutSkipsLookup(t *testing.T) {
	node := &fakeNode{}
	p := newTestPipeline(t, node)

	_, err := p.WaitForTransaction(context.Background(), "0x1", 0)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, int32(0), node.lookups.Load())

	_, err = p.WaitForTransaction(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyHash)
}

func TestWaitForTransaction_PendingThenCommitted(t *testing.T) {
	node := &fakeNode{lookup: func(n int32, hash string) (*types.Transaction, error) {
		switch {
		case n == 1:
			return nil, errors.New("not found")
		case n < 4:
			return &types.Transaction{Type: types.PendingTransactionType, Hash: hash}, nil
		default:
			return &types.Transaction{Type: types.UserTransactionType, Hash: hash, Success: true}, nil
		}
	}}
	p := newTestPipeline(t, node)

	tx, err := p.WaitForTransaction(context.Background(), "0xabc", time.Second)
	require.NoError(t, err)
	assert.True(t, tx.IsUser())
	assert.Equal(t, int32(4), node.lookups.Load())
}

func TestWaitForTransaction_ContextCancel(t *testing.T) {
	p := newTestPipeline(t, &fakeNode{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.WaitForTransaction(ctx, "0xabc", 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsTimeout(err))
}

func TestSubmitAndWait_DomainFailure(t *testing.T) {
	node := &fakeNode{chainID: 1, lookup: func(n int32, hash string) (*types.Transaction, error) {
		return &types.Transaction{Type: types.UserTransactionType, Hash: hash, Success: false, VMStatus: "Move abort"}, nil
	}}
	p := newTestPipeline(t, node)
	w, err := wallet.Generate()
	require.NoError(t, err)

	raw, err := p.Builder().BuildTransfer(context.Background(), w.Address(), "0xb2", 5, Options{})
	require.NoError(t, err)

	tx, err := p.SubmitAndWait(context.Background(), w, raw)
	require.Error(t, err)
	require.NotNil(t, tx)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "0xfeed", de.Hash)
	assert.Equal(t, "Move abort", de.VMStatus)

	require.Len(t, node.submitted, 1)
	assert.Equal(t, "0x"+w.PublicKeyHex(), node.submitted[0].Signature.PublicKey)
}

func TestRetryFailedCall(t *testing.T) {
	calls := 0
	res, err := RetryFailedCall(context.Background(), 3, time.Millisecond, func(ctx context.Context) (*types.WriteResult, error) {
		calls++
		if calls < 3 {
			return types.FailedWrite("0x1", "boom"), nil
		}
		return &types.WriteResult{Success: true, TransactionHash: "0x2"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0x2", res.TransactionHash)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = RetryFailedCall(context.Background(), 2, time.Millisecond, func(ctx context.Context) (*types.WriteResult, error) {
		calls++
		return nil, errors.New("network down")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Contains(t, err.Error(), "network down")

	_, err = RetryFailedCall(context.Background(), 0, 0, nil)
	assert.Error(t, err)
}

func TestGasHelpers(t *testing.T) {
	assert.Equal(t, uint64(110), EffectiveGasPrice(100, 1.1))
	assert.Equal(t, uint64(110), EffectiveGasPrice(100, 0))
	assert.Equal(t, uint64(165), OptimalGasPrice(&types.GasEstimation{GasEstimate: 150}))
	assert.Equal(t, uint64(0), OptimalGasPrice(nil))
	assert.Equal(t, "0.002", EstimateTransactionCost(2000, 100).String())
}

func userTx(sender, fn string, args ...string) types.Transaction {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, _ := json.Marshal(a)
		raw = append(raw, b)
	}
	return types.Transaction{
		Type:    types.UserTransactionType,
		Sender:  sender,
		Payload: &types.Payload{Function: fn, Arguments: raw},
	}
}

func TestHistoryHelpers(t *testing.T) {
	node := &fakeNode{txs: map[string][]types.Transaction{
		"0xa": {
			userTx("0xa", "0x1::coin::transfer", "0xb", "10"),
			userTx("0xa", "0x1::coin::transfer", "0xc", "10"),
			userTx("0xa", "0x5::pool::swap", "0xb"),
			{Type: types.BlockMetadataTransactionType},
		},
	}}

	both, err := TransactionsInvolvingBoth(context.Background(), node, "0xa", "0xb", 25)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	transfers, err := TransactionsFromTo(context.Background(), node, "0xb", "0xa", 25)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0x1::coin::transfer", transfers[0].Payload.Function)

	tx := userTx("0xz", "0x1::coin::transfer", "0xb", "1")
	assert.False(t, InvolvesAddress(&tx, "0xq"))
	assert.True(t, InvolvesAddress(&tx, "0xb"))
}
