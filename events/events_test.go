package events

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/aptos-toolkit/types"
)

func evs(seqs ...uint64) []types.Event {
	out := make([]types.Event, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, types.Event{
			SequenceNumber: types.U64(s),
			Type:           "0x1::pool::SwapEvent",
			Data:           map[string]any{"seq": float64(s)},
		})
	}
	return out
}

type scriptedSource struct {
	mu     sync.Mutex
	pages  [][]types.Event
	calls  int
	starts []*uint64
	err    error
}

func (s *scriptedSource) GetAccountEvents(ctx context.Context, address, handle string, limit uint64, start *uint64) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, start)
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.pages) {
		return s.pages[len(s.pages)-1], nil
	}
	page := s.pages[s.calls]
	s.calls++
	return page, nil
}

func seqOf(events []types.Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.SequenceNumber.Uint64())
	}
	return out
}

func TestCursor_OnlyNewerEventsPass(t *testing.T) {
	var c Cursor
	assert.Nil(t, c.Start())

	first := c.Filter(evs(5, 6, 7))
	assert.Equal(t, []uint64{5, 6, 7}, seqOf(first))
	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(7), last)

	second := c.Filter(evs(6, 7, 8, 9))
	assert.Equal(t, []uint64{8, 9}, seqOf(second))

	// never rewinds
	assert.False(t, c.Advance(3))
	last, _ = c.Last()
	assert.Equal(t, uint64(9), last)
	assert.Equal(t, uint64(9), *c.Start())
}

func TestListener_PollDeliversOnlyNewEvents(t *testing.T) {
	src := &scriptedSource{pages: [][]types.Event{evs(5, 6, 7), evs(6, 7, 8, 9)}}
	store := NewMemoryStore()
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "0x1::pool::Events/swap", Store: store})
	require.NoError(t, err)

	var got []uint64
	handler := func(ev types.Event) { got = append(got, ev.SequenceNumber.Uint64()) }

	n, err := l.Poll(context.Background(), handler)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = l.Poll(context.Background(), handler)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{5, 6, 7, 8, 9}, got)

	seq, ok, err := store.Load(l.Key())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), seq)

	assert.Nil(t, src.starts[0])
	require.NotNil(t, src.starts[1])
	assert.Equal(t, uint64(7), *src.starts[1])

	stats := l.GetStats()
	assert.Equal(t, uint64(2), stats.Polls)
	assert.Equal(t, uint64(5), stats.Delivered)
}

func TestListener_RestoresCursorFromStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(CursorKey("0x1", "h"), 8))

	src := &scriptedSource{pages: [][]types.Event{evs(7, 8, 9, 10)}}
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "h", Store: store})
	require.NoError(t, err)

	var got []uint64
	_, err = l.Poll(context.Background(), func(ev types.Event) { got = append(got, ev.SequenceNumber.Uint64()) })
	require.NoError(t, err)
	assert.Equal(t, []uint64{9, 10}, got)
}

func TestListener_PollError(t *testing.T) {
	src := &scriptedSource{err: errors.New("404 not found")}
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "h"})
	require.NoError(t, err)

	_, err = l.Poll(context.Background(), func(types.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no event exists")
	assert.Equal(t, uint64(1), l.GetStats().Errors)
}

func TestListener_RunStopsOnSignalAndContext(t *testing.T) {
	src := &scriptedSource{pages: [][]types.Event{evs(1), evs(1, 2)}}
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "h", Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	delivered := make(chan uint64, 10)
	l.Start(context.Background(), func(ev types.Event) { delivered <- ev.SequenceNumber.Uint64() }, nil)

	assert.Equal(t, uint64(1), <-delivered)
	assert.Equal(t, uint64(2), <-delivered)
	l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Run(ctx, func(types.Event) {}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type blockingSource struct {
	called chan struct{}
	once   sync.Once
}

func (s *blockingSource) GetAccountEvents(ctx context.Context, address, handle string, limit uint64, start *uint64) ([]types.Event, error) {
	s.once.Do(func() { close(s.called) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestListener_CancelDuringPollIsNotReported(t *testing.T) {
	src := &blockingSource{called: make(chan struct{})}
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "h", Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	var reported atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- l.Run(ctx, func(types.Event) {}, func(error) { reported.Add(1) })
	}()

	<-src.called
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
	assert.Equal(t, int32(0), reported.Load())
}

func TestNewListener_Validation(t *testing.T) {
	_, err := NewListener(nil, &Config{Address: "0x1", Handle: "h"})
	assert.Error(t, err)
	_, err = NewListener(&scriptedSource{}, nil)
	assert.EqualError(t, err, "config cannot be nil")
	_, err = NewListener(&scriptedSource{}, &Config{Address: "0x1"})
	assert.Error(t, err)
}

func TestHub_FanOutAndLag(t *testing.T) {
	hub := NewHub[int]("test", 3)
	a := hub.Subscribe()
	b := hub.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, hub.SubscriberCount())

	for i := 1; i <= 5; i++ {
		hub.Publish(i)
	}

	ctx := context.Background()

	// a lagged by two items and resumes at the oldest retained
	v, err := a.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(2), a.Dropped())

	for _, want := range []int{4, 5} {
		v, err = a.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	_, ok, err := a.TryRecv()
	require.NoError(t, err)
	assert.False(t, ok)

	v, err = b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	b.Close()
	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestHub_RecvWaitsAndCloses(t *testing.T) {
	hub := NewHub[string]("wait", 0)
	assert.Equal(t, DefaultCapacity, hub.Capacity())
	sub := hub.Subscribe()

	go func() {
		time.Sleep(10 * time.Millisecond)
		hub.Publish("hello")
		hub.Close()
	}()

	v, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = sub.Recv(context.Background())
	assert.ErrorIs(t, err, ErrHubClosed)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	other := NewHub[string]("idle", 1).Subscribe()
	_, err = other.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_PublishesFilteredEvents(t *testing.T) {
	src := &scriptedSource{pages: [][]types.Event{{
		{SequenceNumber: 1, Type: "0x1::pool::SwapEvent", Data: map[string]any{}},
		{SequenceNumber: 2, Type: "0x1::pool::LiquidityEvent", Data: map[string]any{}},
	}}}
	l, err := NewListener(src, &Config{Address: "0x1", Handle: "h"})
	require.NoError(t, err)

	hub := NewHub[EventData]("Liquidswap", 10)
	sub := hub.Subscribe()
	stream, err := NewStream(l, hub, TypeContains("Swap"), nil)
	require.NoError(t, err)

	_, err = l.Poll(context.Background(), stream.handler(context.Background()))
	require.NoError(t, err)

	ev, ok, err := sub.TryRecv()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.SequenceNumber)
	assert.Equal(t, "Liquidswap", ev.Source)

	_, ok, _ = sub.TryRecv()
	assert.False(t, ok)
}

func TestFilterHelpers(t *testing.T) {
	items := []EventData{
		{EventType: "A", SequenceNumber: 1, Data: map[string]any{"pair": "x", "amount": float64(5)}},
		{EventType: "B", SequenceNumber: 2, Data: map[string]any{"pair": "y", "amount": float64(5)}},
		{EventType: "A", SequenceNumber: 3, Data: map[string]any{"pair": "x", "amount": float64(7)}},
		{EventType: "A", SequenceNumber: 4, Data: map[string]any{"amount": float64(1)}},
	}

	filtered := FilterEvents(items, map[string]any{"pair": "x", "amount": float64(5)})
	require.Len(t, filtered, 1)
	assert.Equal(t, uint64(1), filtered[0].SequenceNumber)

	grouped := GroupBy(items, "pair")
	assert.Len(t, grouped["x"], 2)
	assert.Len(t, grouped["y"], 1)
	assert.Len(t, grouped, 2)

	v, ok := ExtractField(items[0], "pair")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	assert.True(t, IsEventType(items[1], "B"))

	failures := ProcessBatch(items, func(ev EventData) error {
		if ev.EventType == "B" {
			return errors.New("skip")
		}
		return nil
	})
	assert.Len(t, failures, 1)
	assert.Contains(t, failures, uint64(2))
}

func TestBadgerStore_InMemory(t *testing.T) {
	store, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Load("cursor/0x1/h")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("cursor/0x1/h", 42))
	require.NoError(t, store.Save("cursor/0x2/h", 7))

	seq, ok, err := store.Load("cursor/0x1/h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), seq)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cursor/0x1/h", "cursor/0x2/h"}, keys)
}

func TestOpenStore_EmptyDirUsesMemory(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	_, isMemory := store.(*MemoryStore)
	assert.True(t, isMemory)
}

func TestRelay_StreamsHubEvents(t *testing.T) {
	hub := NewHub[EventData]("Thala", 10)
	relay := NewRelay(nil)
	relay.Register("Thala", hub)
	relay.Register("Cellana", NewHub[EventData]("Cellana", 10))
	assert.Equal(t, []string{"Cellana", "Thala"}, relay.Venues())

	srv := httptest.NewServer(relay)
	defer srv.Close()

	sub, err := NewSubscriber(srv.URL, []string{"Thala"})
	require.NoError(t, err)
	sub.SetReconnectDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sub.Start(ctx)

	require.Eventually(t, func() bool { return relay.ClientCount() == 1 && hub.SubscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Publish(EventData{EventType: "0x1::pool::SwapEvent", SequenceNumber: 11})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, uint64(11), ev.SequenceNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("no event relayed")
	}
	assert.NotEmpty(t, sub.ClientID())

	cancel()
	sub.Wait()
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestRelay_UnknownVenue(t *testing.T) {
	relay := NewRelay(nil)
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest("GET", "/ws?venue=Nope", nil))
	assert.Equal(t, 400, rec.Code)
}
