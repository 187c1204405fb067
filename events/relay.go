package events

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opendlt/aptos-toolkit/internal/logz"
)

// Relay message types
const (
	MessageSubscribed = "subscribed"
	MessageEvent      = "event"
	MessageError      = "error"
)

// Message is the frame exchanged over a relay websocket
type Message struct {
	Type     string     `json:"type"`
	ClientID string     `json:"client_id,omitempty"`
	Venues   []string   `json:"venues,omitempty"`
	Venue    string     `json:"venue,omitempty"`
	Event    *EventData `json:"event,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// RelayConfig defines the websocket relay settings
type RelayConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	Outbox       int
}

// DefaultRelayConfig returns the default relay configuration
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		Outbox:       256,
	}
}

// Relay streams hub events to websocket clients. Clients pick venues with the
// "venue" query parameter (comma separated); no parameter selects every venue.
type Relay struct {
	mu       sync.RWMutex
	config   *RelayConfig
	hubs     map[string]*Hub[EventData]
	clients  map[string]context.CancelFunc
	upgrader websocket.Upgrader
	logger   *logz.Logger
}

// NewRelay creates a relay
func NewRelay(config *RelayConfig) *Relay {
	if config == nil {
		config = DefaultRelayConfig()
	}
	if config.Outbox < 1 {
		config.Outbox = 1
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Relay{
		config:  config,
		hubs:    make(map[string]*Hub[EventData]),
		clients: make(map[string]context.CancelFunc),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logz.New(logz.INFO, "relay"),
	}
}

// SetCheckOrigin replaces the websocket origin check
func (r *Relay) SetCheckOrigin(check func(*http.Request) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upgrader.CheckOrigin = check
}

// Register exposes a hub under a venue name
func (r *Relay) Register(venue string, hub *Hub[EventData]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs[venue] = hub
}

// Venues returns the registered venue names, sorted
func (r *Relay) Venues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	venues := make([]string, 0, len(r.hubs))
	for name := range r.hubs {
		venues = append(venues, name)
	}
	sort.Strings(venues)
	return venues
}

// ClientCount returns the number of connected clients
func (r *Relay) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close disconnects every client
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.clients {
		cancel()
		delete(r.clients, id)
	}
}

func (r *Relay) selectVenues(query string) ([]string, error) {
	if query == "" {
		return r.Venues(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var venues []string
	for _, name := range strings.Split(query, ",") {
		name = strings.TrimSpace(name)
		if _, ok := r.hubs[name]; !ok {
			return nil, fmt.Errorf("unknown venue %s", name)
		}
		venues = append(venues, name)
	}
	return venues, nil
}

// ServeHTTP upgrades the request and streams events until the client disconnects
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	venues, err := r.selectVenues(req.URL.Query().Get("venue"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	r.mu.Lock()
	r.clients[id] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.clients, id)
		r.mu.Unlock()
	}()

	r.logger.Info("Client %s subscribed to %v", id, venues)

	outbox := make(chan Message, r.config.Outbox)
	outbox <- Message{Type: MessageSubscribed, ClientID: id, Venues: venues}

	var wg sync.WaitGroup
	for _, venue := range venues {
		r.mu.RLock()
		hub := r.hubs[venue]
		r.mu.RUnlock()

		sub := hub.Subscribe()
		wg.Add(1)
		go func(venue string, sub *Subscription[EventData]) {
			defer wg.Done()
			defer sub.Close()
			for {
				ev, err := sub.Recv(ctx)
				if err != nil {
					return
				}
				select {
				case outbox <- Message{Type: MessageEvent, Venue: venue, Event: &ev}:
				case <-ctx.Done():
					return
				}
			}
		}(venue, sub)
	}

	// reader: only control frames and close are expected
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	r.writeLoop(ctx, conn, outbox)
	cancel()
	wg.Wait()
	r.logger.Info("Client %s disconnected", id)
}

func (r *Relay) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan Message) {
	ping := time.NewTicker(r.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(r.config.WriteTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.config.WriteTimeout)); err != nil {
				r.logger.Debug("Ping failed: %v", err)
				return
			}
		case msg := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(r.config.WriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				r.logger.Debug("Write failed: %v", err)
				return
			}
		}
	}
}

// Subscriber consumes a relay websocket and reconnects when the connection drops
type Subscriber struct {
	mu             sync.Mutex
	wsURL          string
	events         chan EventData
	logger         *logz.Logger
	reconnectDelay time.Duration
	maxReconnects  int
	clientID       string
	done           chan struct{}
}

// NewSubscriber creates a subscriber for a relay base URL (http, https, ws or wss)
func NewSubscriber(relayURL string, venues []string) (*Subscriber, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	if len(venues) > 0 {
		q := u.Query()
		q.Set("venue", strings.Join(venues, ","))
		u.RawQuery = q.Encode()
	}

	return &Subscriber{
		wsURL:          u.String(),
		events:         make(chan EventData, DefaultCapacity),
		logger:         logz.New(logz.INFO, "relay-subscriber"),
		reconnectDelay: 5 * time.Second,
		maxReconnects:  10,
		done:           make(chan struct{}),
	}, nil
}

// SetReconnectDelay changes the wait between reconnection attempts
func (s *Subscriber) SetReconnectDelay(d time.Duration) {
	s.reconnectDelay = d
}

// Events returns the channel of received events. It is closed when the subscriber stops.
func (s *Subscriber) Events() <-chan EventData {
	return s.events
}

// ClientID returns the id assigned by the relay on the current connection
func (s *Subscriber) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// Start runs the connection loop until ctx ends
func (s *Subscriber) Start(ctx context.Context) {
	s.logger.Info("Connecting to relay %s", s.wsURL)
	go s.connectionLoop(ctx)
}

// Wait blocks until the connection loop has exited
func (s *Subscriber) Wait() {
	<-s.done
}

func (s *Subscriber) connectionLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
		if err != nil {
			attempts++
			s.logger.Warn("Failed to connect to relay: %v", err)
			if attempts >= s.maxReconnects {
				s.logger.Error("Max reconnection attempts reached, stopping")
				return
			}
		} else {
			attempts = 0
			s.handleConnection(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) handleConnection(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("Relay read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case MessageSubscribed:
			s.mu.Lock()
			s.clientID = msg.ClientID
			s.mu.Unlock()
		case MessageEvent:
			if msg.Event == nil {
				continue
			}
			select {
			case s.events <- *msg.Event:
			case <-ctx.Done():
				return
			default:
				s.logger.Debug("Event channel full, dropping event %d from %s", msg.Event.SequenceNumber, msg.Venue)
			}
		case MessageError:
			s.logger.Warn("Relay error: %s", msg.Error)
		}
	}
}
