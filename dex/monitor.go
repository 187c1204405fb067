package dex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/logz"
)

// MonitorConfig defines how venue events are collected
type MonitorConfig struct {
	Capacity  int
	BatchSize uint64

	// Intervals overrides the poll interval of a venue by name
	Intervals map[string]time.Duration

	// Store checkpoints stream cursors. Optional.
	Store events.CursorStore
}

// DefaultMonitorConfig returns default monitor configuration
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Capacity:  events.DefaultCapacity,
		BatchSize: events.DefaultBatchSize,
		Intervals: map[string]time.Duration{},
	}
}

// Monitor polls the event streams of every venue and fans them into one
// broadcast hub per venue
type Monitor struct {
	mu       sync.Mutex
	source   events.Source
	heights  events.HeightSource
	adapters []Adapter
	config   *MonitorConfig
	hubs     map[string]*events.Hub[events.EventData]
	streams  []*events.Stream
	cancel   context.CancelFunc
	running  bool
	logger   *logz.Logger
}

// NewMonitor creates a monitor. When source also reports chain height, events
// are stamped with it.
func NewMonitor(source events.Source, adapters []Adapter, config *MonitorConfig) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("event source cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one adapter is required")
	}
	if config.Capacity < 1 {
		config.Capacity = events.DefaultCapacity
	}

	m := &Monitor{
		source:   source,
		adapters: adapters,
		config:   config,
		hubs:     make(map[string]*events.Hub[events.EventData], len(adapters)),
		logger:   logz.New(logz.INFO, "monitor"),
	}
	if hs, ok := source.(events.HeightSource); ok {
		m.heights = hs
	}
	for _, adapter := range adapters {
		m.hubs[adapter.Name()] = events.NewHub[events.EventData](adapter.Name(), config.Capacity)
	}
	return m, nil
}

// SetLogger replaces the monitor logger
func (m *Monitor) SetLogger(logger *logz.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// interval returns the poll interval of a venue
func (m *Monitor) interval(adapter Adapter) time.Duration {
	if d, ok := m.config.Intervals[adapter.Name()]; ok && d > 0 {
		return d
	}
	return adapter.PollInterval()
}

// Start spawns one listener per venue event handle
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("monitor is already running")
	}

	var streams []*events.Stream
	for _, adapter := range m.adapters {
		hub := m.hubs[adapter.Name()]
		for _, handle := range adapter.EventHandles() {
			listener, err := events.NewListener(m.source, &events.Config{
				Address:   adapter.Address(),
				Handle:    handle,
				Interval:  m.interval(adapter),
				BatchSize: m.config.BatchSize,
				Store:     m.config.Store,
			})
			if err != nil {
				return fmt.Errorf("failed to create %s listener for %s: %w", adapter.Name(), handle, err)
			}
			listener.SetLogger(m.logger.WithPrefix(adapter.Name()))

			stream, err := events.NewStream(listener, hub, adapter.Filter, m.heights)
			if err != nil {
				return fmt.Errorf("failed to create %s stream for %s: %w", adapter.Name(), handle, err)
			}
			streams = append(streams, stream)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	for _, stream := range streams {
		stream.Start(runCtx)
	}

	m.streams = streams
	m.cancel = cancel
	m.running = true
	m.logger.Info("Monitoring %d venues on %d event streams", len(m.adapters), len(streams))
	return nil
}

// Stop halts every listener. Hubs stay open for a later Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	streams, cancel := m.streams, m.cancel
	m.streams = nil
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	cancel()
	for _, stream := range streams {
		stream.Stop()
	}
	m.logger.Info("Monitor stopped")
}

// Close stops the monitor and closes every hub
func (m *Monitor) Close() {
	m.Stop()
	for _, hub := range m.hubs {
		hub.Close()
	}
}

// IsRunning reports whether listeners are active
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StreamCount returns the number of active event streams
func (m *Monitor) StreamCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Subscribe returns a new subscription to one venue's events
func (m *Monitor) Subscribe(venue string) (*events.Subscription[events.EventData], error) {
	hub, ok := m.hubs[venue]
	if !ok {
		return nil, fmt.Errorf("unknown venue %s", venue)
	}
	return hub.Subscribe(), nil
}

// Subscriptions returns a new subscription for every venue
func (m *Monitor) Subscriptions() map[string]*events.Subscription[events.EventData] {
	out := make(map[string]*events.Subscription[events.EventData], len(m.hubs))
	for name, hub := range m.hubs {
		out[name] = hub.Subscribe()
	}
	return out
}

// Publish injects an event into a venue hub and returns the subscriber count
func (m *Monitor) Publish(venue string, ev events.EventData) (int, error) {
	hub, ok := m.hubs[venue]
	if !ok {
		return 0, fmt.Errorf("unknown venue %s", venue)
	}
	if ev.Source == "" {
		ev.Source = venue
	}
	return hub.Publish(ev), nil
}

// Hub returns the broadcast hub of a venue
func (m *Monitor) Hub(venue string) (*events.Hub[events.EventData], bool) {
	hub, ok := m.hubs[venue]
	return hub, ok
}

// Venues returns the monitored venue names, sorted
func (m *Monitor) Venues() []string {
	names := make([]string, 0, len(m.hubs))
	for name := range m.hubs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds every venue hub to a websocket relay
func (m *Monitor) Register(relay *events.Relay) {
	for name, hub := range m.hubs {
		relay.Register(name, hub)
	}
}
