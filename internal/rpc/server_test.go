package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/health"
	"github.com/opendlt/aptos-toolkit/types"
)

type fakeNode struct{}

func (fakeNode) GetChainInfo(ctx context.Context) (*types.ChainInfo, error) {
	return &types.ChainInfo{ChainID: 1, BlockHeight: 500, LedgerVersion: 9000}, nil
}

type fakeQuoter struct {
	err error
}

func (q *fakeQuoter) CompareAllPrices(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) ([]dex.Quote, error) {
	if q.err != nil {
		return nil, q.err
	}
	return []dex.Quote{
		{Venue: "B", AmountIn: amountIn, AmountOut: 120},
		{Venue: "C", AmountIn: amountIn, AmountOut: 110},
	}, nil
}

func newTestServer(t *testing.T, config *ServerConfig, quoter Quoter) (*Server, *events.Hub[events.EventData]) {
	t.Helper()
	hub := events.NewHub[events.EventData]("Thala", 10)
	relay := events.NewRelay(nil)
	relay.Register("Thala", hub)

	s, err := NewServer(config, &Dependencies{
		Relay:  relay,
		Health: health.NewClientHealthChecker(fakeNode{}),
		Quoter: quoter,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.limiter.Close() })
	return s, hub
}

func call(t *testing.T, h http.Handler, method string, params any, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"id": 1, "method": method, "params": params})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if rec.Code == http.StatusOK || rec.Code == http.StatusUnauthorized || rec.Code == http.StatusTooManyRequests {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestServer_Methods(t *testing.T) {
	s, _ := newTestServer(t, DefaultServerConfig(), &fakeQuoter{})
	h := s.Handler()

	_, resp := call(t, h, "aptos.venues", nil, nil)
	require.Nil(t, resp.Error)
	assert.Equal(t, []any{"Thala"}, resp.Result)

	_, resp = call(t, h, "aptos.status", nil, nil)
	require.Nil(t, resp.Error)
	status := resp.Result.(map[string]any)
	assert.Equal(t, float64(500), status["height"])
	assert.Equal(t, true, status["healthy"])

	_, resp = call(t, h, "aptos.quote", map[string]any{"tokenIn": "A", "tokenOut": "B", "amountIn": "100"}, nil)
	require.Nil(t, resp.Error)
	best := resp.Result.(map[string]any)["best"].(map[string]any)
	assert.Equal(t, "B", best["dex"])

	_, resp = call(t, h, "aptos.quote", map[string]any{"tokenIn": "A", "tokenOut": "B"}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = call(t, h, "aptos.unknown", nil, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServer_QuoteErrors(t *testing.T) {
	s, _ := newTestServer(t, DefaultServerConfig(), &fakeQuoter{err: errors.New("no suitable DEX found for swap")})
	_, resp := call(t, s.Handler(), "aptos.quote", map[string]any{"tokenIn": "A", "tokenOut": "B", "amountIn": 5}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no suitable DEX")

	s, _ = newTestServer(t, DefaultServerConfig(), nil)
	_, resp = call(t, s.Handler(), "aptos.quote", map[string]any{"tokenIn": "A", "tokenOut": "B", "amountIn": 5}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Quotes not available", resp.Error.Message)
}

func TestServer_APIKeys(t *testing.T) {
	config := DefaultServerConfig()
	config.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, config, nil)
	h := s.Handler()

	rec, resp := call(t, h, "aptos.venues", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, resp.Error.Code)

	rec, _ = call(t, h, "aptos.venues", nil, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = call(t, h, "aptos.venues", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resp.Error)

	// health probes stay open
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestServer_RateLimit(t *testing.T) {
	config := DefaultServerConfig()
	config.RequestsPerSecond = 0.001
	config.Burst = 1
	s, _ := newTestServer(t, config, nil)
	h := s.Handler()

	rec, _ := call(t, h, "aptos.venues", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := call(t, h, "aptos.venues", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, codeRateLimited, resp.Error.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	config := DefaultServerConfig()
	config.CORSOrigins = []string{"https://app.example"}
	s, _ := newTestServer(t, config, nil)

	req := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	cors := NewCORSMiddleware(config.CORSOrigins)
	bad := httptest.NewRequest(http.MethodGet, "/ws", nil)
	bad.Header.Set("Origin", "https://evil.example")
	assert.False(t, cors.CheckOrigin(bad))
}

func TestServer_RelaysOverWebsocket(t *testing.T) {
	s, hub := newTestServer(t, DefaultServerConfig(), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	sub, err := events.NewSubscriber(srv.URL, []string{"Thala"})
	require.NoError(t, err)
	sub.SetReconnectDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.Start(ctx)

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(events.EventData{EventType: "0x1::pool::SwapEvent", SequenceNumber: 3})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, uint64(3), ev.SequenceNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("no event relayed")
	}
}

func TestServer_StartStop(t *testing.T) {
	config := DefaultServerConfig()
	config.Addr = "127.0.0.1:0"
	s, _ := newTestServer(t, config, nil)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.GetAddr() + "/livez")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, &Dependencies{Relay: events.NewRelay(nil)})
	assert.Error(t, err)
	_, err = NewServer(DefaultServerConfig(), &Dependencies{})
	assert.Error(t, err)

	_, err = LoadTLSConfig("cert.pem", "")
	assert.Error(t, err)
	cfg, err := LoadTLSConfig("", "")
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", getClientIP(req))
}

func TestServer_MetricsToggle(t *testing.T) {
	s, _ := newTestServer(t, DefaultServerConfig(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	config := DefaultServerConfig()
	config.Metrics = false
	s, _ = newTestServer(t, config, nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
