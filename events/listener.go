package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// DefaultBatchSize is the page size of each event poll
const DefaultBatchSize = 100

// Source pages through an account event stream
type Source interface {
	GetAccountEvents(ctx context.Context, address, handle string, limit uint64, start *uint64) ([]types.Event, error)
}

// HeightSource reports the current chain height
type HeightSource interface {
	GetChainHeight(ctx context.Context) (uint64, error)
}

// Handler receives each newly observed event
type Handler func(ev types.Event)

// ErrorHandler receives poll failures
type ErrorHandler func(err error)

// Config defines one listener
type Config struct {
	Address   string
	Handle    string
	Interval  time.Duration
	BatchSize uint64

	// Store checkpoints the cursor after each delivered batch. Optional.
	Store CursorStore
}

// Stats contains listener statistics
type Stats struct {
	Polls      uint64    `json:"polls"`
	Errors     uint64    `json:"errors"`
	Delivered  uint64    `json:"delivered"`
	LastPoll   time.Time `json:"last_poll"`
	LastCursor *uint64   `json:"last_cursor,omitempty"`
}

// Listener polls one event stream and delivers every event whose sequence
// number is greater than the last delivered one
type Listener struct {
	mu     sync.Mutex
	source Source
	config *Config
	key    string
	logger *logz.Logger

	cursor  Cursor
	stats   Stats
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewListener creates a listener. A stored cursor for the stream is restored.
func NewListener(source Source, config *Config) (*Listener, error) {
	if source == nil {
		return nil, fmt.Errorf("event source cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Address == "" || config.Handle == "" {
		return nil, fmt.Errorf("address and event handle are required")
	}
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}

	l := &Listener{
		source: source,
		config: config,
		key:    CursorKey(config.Address, config.Handle),
		logger: logz.New(logz.INFO, "listener"),
	}

	if config.Store != nil {
		seq, ok, err := config.Store.Load(l.key)
		if err != nil {
			return nil, fmt.Errorf("failed to restore cursor: %w", err)
		}
		if ok {
			l.cursor = NewCursor(seq)
		}
	}

	return l, nil
}

// SetLogger replaces the listener logger
func (l *Listener) SetLogger(logger *logz.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// Key returns the cursor key of the stream
func (l *Listener) Key() string {
	return l.key
}

// Cursor returns the last delivered sequence number
func (l *Listener) Cursor() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor.Last()
}

// Poll fetches one page, delivers the new events in order and returns how many were delivered
func (l *Listener) Poll(ctx context.Context, handler Handler) (int, error) {
	l.mu.Lock()
	start := l.cursor.Start()
	l.mu.Unlock()

	batch, err := l.source.GetAccountEvents(ctx, l.config.Address, l.config.Handle, l.config.BatchSize, start)

	l.mu.Lock()
	l.stats.Polls++
	l.stats.LastPoll = time.Now()
	if err != nil {
		l.stats.Errors++
		l.mu.Unlock()
		return 0, fmt.Errorf("no event exists: %w", err)
	}
	fresh := l.cursor.Filter(batch)
	last, ok := l.cursor.Last()
	l.stats.Delivered += uint64(len(fresh))
	if ok {
		l.stats.LastCursor = &last
	}
	l.mu.Unlock()

	for _, ev := range fresh {
		handler(ev)
	}
	metrics.RecordEvents(len(fresh), 0)

	if len(fresh) > 0 && l.config.Store != nil {
		if err := l.config.Store.Save(l.key, last); err != nil {
			l.logger.Warn("Failed to checkpoint cursor %s: %v", l.key, err)
		}
	}
	return len(fresh), nil
}

// Run polls until the context is cancelled or Stop is called. It sleeps the
// configured interval between polls and checks for shutdown before every poll.
func (l *Listener) Run(ctx context.Context, handler Handler, onError ErrorHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener %s is already running", l.key)
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
	}()

	l.logger.Debug("Listening on %s every %v", l.key, l.config.Interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := l.Poll(ctx, handler); err != nil {
			if stopping(ctx, stop) {
				continue
			}
			l.logger.Warn("Poll of %s failed: %v", l.key, err)
			if onError != nil {
				onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-time.After(l.config.Interval):
		}
	}
}

func stopping(ctx context.Context, stop <-chan struct{}) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Start runs the listener in a goroutine
func (l *Listener) Start(ctx context.Context, handler Handler, onError ErrorHandler) {
	go func() {
		if err := l.Run(ctx, handler, onError); err != nil && ctx.Err() == nil {
			l.logger.Error("Listener %s stopped: %v", l.key, err)
		}
	}()
}

// Stop signals the listener to exit and waits for the current poll to finish
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	stop, done := l.stop, l.done
	l.running = false
	l.mu.Unlock()

	close(stop)
	<-done
}

// GetStats returns a copy of the listener statistics
func (l *Listener) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
