package rpc

import (
	"bufio"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opendlt/aptos-toolkit/internal/logz"
)

// openPaths bypass API key checks and rate limiting
var openPaths = map[string]bool{
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// APIKeyMiddleware validates API keys from the X-API-Key header or the
// api_key query parameter. Browsers cannot set headers on websocket upgrades.
type APIKeyMiddleware struct {
	allowedKeys map[string]bool
	mu          sync.RWMutex
}

// NewAPIKeyMiddleware creates a new API key middleware
func NewAPIKeyMiddleware(keys []string) *APIKeyMiddleware {
	m := &APIKeyMiddleware{}
	m.UpdateKeys(keys)
	return m
}

// UpdateKeys updates the allowed API keys
func (m *APIKeyMiddleware) UpdateKeys(keys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowedKeys = make(map[string]bool)
	for _, key := range keys {
		if key != "" {
			m.allowedKeys[key] = true
		}
	}
}

func (m *APIKeyMiddleware) valid(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for allowed := range m.allowedKeys {
		if subtle.ConstantTimeCompare([]byte(allowed), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Middleware returns the API key validation middleware
func (m *APIKeyMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		m.mu.RLock()
		hasKeys := len(m.allowedKeys) > 0
		m.mu.RUnlock()

		// No API keys configured - allow all requests
		if !hasKeys {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}
		if apiKey == "" {
			writeHTTPError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized: missing X-API-Key header")
			return
		}
		if !m.valid(apiKey) {
			writeHTTPError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized: invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements token bucket rate limiting per client IP
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      float64
	burst    int
	idle     time.Duration
	cleanup  *time.Ticker
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new rate limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rps,
		burst:    burst,
		idle:     3 * time.Minute,
		cleanup:  time.NewTicker(time.Minute),
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.done)
		rl.cleanup.Stop()
	})
}

// getLimiter returns the rate limiter for the given IP
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupLoop forgets clients idle for longer than the idle window
func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanup.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > rl.idle {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] || rl.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.getLimiter(getClientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeHTTPError(w, http.StatusTooManyRequests, codeRateLimited, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORSMiddleware handles Cross-Origin Resource Sharing
type CORSMiddleware struct {
	allowedOrigins map[string]bool
	allowAll       bool
	mu             sync.RWMutex
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(origins []string) *CORSMiddleware {
	m := &CORSMiddleware{}
	m.UpdateOrigins(origins)
	return m
}

// UpdateOrigins updates the allowed origins
func (m *CORSMiddleware) UpdateOrigins(origins []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowedOrigins = make(map[string]bool)
	m.allowAll = false

	for _, origin := range origins {
		if origin == "*" {
			m.allowAll = true
			break
		}
		if origin != "" {
			m.allowedOrigins[origin] = true
		}
	}
}

// CheckOrigin reports whether a websocket upgrade from origin is allowed.
// Requests without an Origin header are not browser requests and pass.
func (m *CORSMiddleware) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowAll || m.allowedOrigins[origin]
}

// Middleware returns the CORS middleware
func (m *CORSMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		m.mu.RLock()
		if m.allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && m.allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		m.mu.RUnlock()

		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoadTLSConfig loads TLS configuration from files. Empty paths disable TLS.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" && keyFile == "" {
		return nil, nil
	}
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("both TLS certificate and key are required")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs every request at DEBUG and server errors at WARN
func LoggingMiddleware(logger *logz.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			if ww.statusCode >= http.StatusInternalServerError {
				logger.Warn("%s %s %d %v %s", r.Method, r.URL.Path, ww.statusCode, time.Since(start), getClientIP(r))
				return
			}
			logger.Debug("%s %s %d %v %s", r.Method, r.URL.Path, ww.statusCode, time.Since(start), getClientIP(r))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeHTTPError writes a JSON-RPC shaped error with an HTTP status
func writeHTTPError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: &RPCError{Code: code, Message: message}})
}
