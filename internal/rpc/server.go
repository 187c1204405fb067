package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/health"
	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeUnauthorized   = -32401
	codeRateLimited    = -32429
)

// Quoter fetches venue quotes for the aptos.quote method
type Quoter interface {
	CompareAllPrices(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) ([]dex.Quote, error)
}

// ServerConfig defines the relay server settings
type ServerConfig struct {
	Addr              string
	APIKeys           []string
	CORSOrigins       []string
	RequestsPerSecond float64
	Burst             int
	TLSCertFile       string
	TLSKeyFile        string
	// Metrics mounts /debug/vars and /metrics
	Metrics           bool
}

// DefaultServerConfig returns the default relay server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:        "127.0.0.1:8090",
		CORSOrigins: []string{"*"},
		Burst:       20,
		Metrics:     true,
	}
}

// Dependencies holds what the relay server exposes
type Dependencies struct {
	Relay  *events.Relay
	Health *health.HealthChecker
	Quoter Quoter
}

// Server serves the websocket event relay, health probes, metrics and a
// small JSON-RPC surface
type Server struct {
	mu        sync.RWMutex
	config    *ServerConfig
	deps      *Dependencies
	server    *http.Server
	listener  net.Listener
	limiter   *RateLimiter
	handler   http.Handler
	running   bool
	startTime time.Time
	logger    *logz.Logger
}

// Request represents a JSON-RPC request
type Request struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response
type Response struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusResult represents the result of aptos.status
type StatusResult struct {
	ChainID       uint8    `json:"chainId"`
	Height        uint64   `json:"height"`
	LedgerVersion uint64   `json:"ledgerVersion"`
	Healthy       bool     `json:"healthy"`
	Venues        []string `json:"venues"`
	Clients       int      `json:"clients"`
	Uptime        string   `json:"uptime"`
}

// QuoteParams represents parameters for aptos.quote
type QuoteParams struct {
	TokenIn  string    `json:"tokenIn"`
	TokenOut string    `json:"tokenOut"`
	AmountIn types.U64 `json:"amountIn"`
}

// QuoteResult represents the result of aptos.quote
type QuoteResult struct {
	Best   *dex.Quote  `json:"best,omitempty"`
	Quotes []dex.Quote `json:"quotes"`
}

// NewServer creates a new relay server
func NewServer(config *ServerConfig, deps *Dependencies) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if deps == nil || deps.Relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}

	s := &Server{
		config:  config,
		deps:    deps,
		limiter: NewRateLimiter(config.RequestsPerSecond, config.Burst),
		logger:  logz.New(logz.INFO, "rpc"),
	}
	s.handler = s.buildHandler()
	return s, nil
}

// SetLogger replaces the server logger
func (s *Server) SetLogger(logger *logz.Logger) {
	if logger != nil {
		s.logger = logger
		s.handler = s.buildHandler()
	}
}

func (s *Server) buildHandler() http.Handler {
	cors := NewCORSMiddleware(s.config.CORSOrigins)
	s.deps.Relay.SetCheckOrigin(cors.CheckOrigin)

	mux := http.NewServeMux()
	mux.Handle("/ws", s.deps.Relay)
	mux.HandleFunc("/rpc", s.handleRequest)
	if s.config.Metrics {
		mux.Handle("/debug/vars", metrics.Handler())
		mux.Handle("/metrics", metrics.PrometheusHandler())
	}
	mux.HandleFunc("/livez", health.LivenessHandler())
	if s.deps.Health != nil {
		mux.HandleFunc("/healthz", s.deps.Health.Handler())
		mux.HandleFunc("/readyz", s.deps.Health.ReadinessHandler())
		mux.HandleFunc("/status", s.deps.Health.DetailedStatusHandler())
	}

	var h http.Handler = mux
	h = NewAPIKeyMiddleware(s.config.APIKeys).Middleware(h)
	h = s.limiter.Middleware(h)
	h = cors.Middleware(h)
	h = SecurityHeadersMiddleware(h)
	h = LoggingMiddleware(s.logger)(h)
	return h
}

// Handler returns the composed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("relay server is already running")
	}

	tlsConfig, err := LoadTLSConfig(s.config.TLSCertFile, s.config.TLSKeyFile)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	// WriteTimeout stays zero so long-lived websocket streams are not cut
	s.server = &http.Server{
		Handler:           s.handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.listener = listener
	s.running = true
	s.startTime = time.Now()

	go func() {
		var err error
		if tlsConfig != nil {
			err = s.server.ServeTLS(listener, "", "")
		} else {
			err = s.server.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("Relay server error: %v", err)
		}
	}()

	s.logger.Info("Relay server started on %s", listener.Addr())
	return nil
}

// Stop closes relay clients and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	s.deps.Relay.Close()
	s.limiter.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetAddr returns the bound listen address
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// handleRequest handles JSON-RPC requests
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeError(w, nil, codeInvalidRequest, "Invalid Request")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, codeParseError, "Parse error")
		return
	}

	var result interface{}
	var err *RPCError

	switch req.Method {
	case "aptos.status":
		result, err = s.handleStatus(r.Context())
	case "aptos.venues":
		result = s.deps.Relay.Venues()
	case "aptos.quote":
		result, err = s.handleQuote(r.Context(), req.Params)
	case "":
		err = &RPCError{Code: codeInvalidRequest, Message: "Missing method"}
	default:
		err = &RPCError{Code: codeMethodNotFound, Message: "Method not found"}
	}

	if err != nil {
		s.writeError(w, req.ID, err.Code, err.Message)
	} else {
		s.writeResult(w, req.ID, result)
	}
}

// handleStatus handles aptos.status
func (s *Server) handleStatus(ctx context.Context) (interface{}, *RPCError) {
	result := &StatusResult{
		Venues:  s.deps.Relay.Venues(),
		Clients: s.deps.Relay.ClientCount(),
	}

	s.mu.RLock()
	if s.running {
		result.Uptime = time.Since(s.startTime).String()
	}
	s.mu.RUnlock()

	if s.deps.Health != nil {
		status := s.deps.Health.GetStatus(ctx)
		result.ChainID = status.ChainID
		result.Height = status.Height
		result.LedgerVersion = status.LedgerVersion
		result.Healthy = status.OK
	}
	return result, nil
}

// handleQuote handles aptos.quote
func (s *Server) handleQuote(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	if s.deps.Quoter == nil {
		return nil, &RPCError{Code: codeInternalError, Message: "Quotes not available"}
	}

	var p QuoteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Invalid params structure"}
	}
	if p.TokenIn == "" || p.TokenOut == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Missing required field: tokenIn or tokenOut"}
	}
	if p.AmountIn == 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "amountIn must be positive"}
	}

	quotes, err := s.deps.Quoter.CompareAllPrices(ctx, p.TokenIn, p.TokenOut, p.AmountIn.Uint64())
	if err != nil {
		return nil, &RPCError{Code: codeInternalError, Message: fmt.Sprintf("Failed to fetch quotes: %v", err)}
	}

	result := &QuoteResult{Quotes: quotes}
	if len(quotes) > 0 {
		best := quotes[0]
		result.Best = &best
	}
	return result, nil
}

// writeResult writes a successful JSON-RPC response
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{ID: id, Result: result})
}

// writeError writes an error JSON-RPC response
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	// JSON-RPC errors still return 200
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{ID: id, Error: &RPCError{Code: code, Message: message}})
}
