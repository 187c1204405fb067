package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendlt/aptos-toolkit/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(&Config{
		Endpoint:   server.URL + "/v1",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{})
	assert.Error(t, err)

	_, err = New(&Config{Network: "localnet"})
	assert.Error(t, err)

	c, err := New(DefaultConfig("testnet"))
	require.NoError(t, err)
	assert.Equal(t, "https://fullnode.testnet.aptoslabs.com/v1", c.GetEndpoint())
}

func TestGetChainInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/", r.URL.Path)
		_, _ = io.WriteString(w, `{"chain_id":1,"epoch":"100","ledger_version":"5000","ledger_timestamp":"1700000000000000","node_role":"full_node","block_height":"420"}`)
	})

	info, err := c.GetChainInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(1), info.ChainID)
	assert.Equal(t, types.U64(5000), info.LedgerVersion)

	height, err := c.GetChainHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(420), height)

	version, err := c.GetLedgerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), version)
}

func TestGetAccountResource_NotFoundIsAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/0xa1/resource/0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Resource not found","error_code":"resource_not_found"}`)
	})

	res, err := c.GetAccountResource(context.Background(), "0xa1", types.CoinStoreOf(types.AptosCoinType))
	require.NoError(t, err)
	assert.Nil(t, res)

	balance, err := c.GetAccountBalance(context.Background(), "0xa1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestGetAccountInfo_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Account not found","error_code":"account_not_found"}`)
	})

	_, err := c.GetAccountInfo(context.Background(), "0xdead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccountNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "account_not_found", apiErr.ErrorCode)
	assert.Equal(t, "Account not found", apiErr.Message)

	exists, err := c.AccountExists(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"sequence_number":"7","authentication_key":"0xa1"}`)
	})

	seq, err := c.GetSequenceNumber(context.Background(), "0xa1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetry_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Invalid transaction","error_code":"invalid_input"}`)
	})

	_, err := c.SubmitTransaction(context.Background(), &types.SignedTransaction{Transaction: &types.RawTransaction{}})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid transaction")
}

func TestDecodeError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{not json`)
	})

	_, err := c.GetChainInfo(context.Background())
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetAPTBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>","data":{"coin":{"value":"250000000"}}}`)
	})

	balance, err := c.GetAPTBalance(context.Background(), "0xa1")
	require.NoError(t, err)
	assert.Equal(t, "2.5", balance.String())
}

func TestGetAccountEvents_PathAndPaging(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/0xpool/events/0xpool::amm::Pool/swap_events", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "5", r.URL.Query().Get("start"))
		_, _ = io.WriteString(w, `[{"guid":{"creation_number":"3","account_address":"0xpool"},"sequence_number":"5","type":"0xpool::amm::SwapEvent","data":{"amount_in":"10"}}]`)
	})

	start := uint64(5)
	events, err := c.GetAccountEvents(context.Background(), "0xpool", "0xpool::amm::Pool/swap_events", 0, &start)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.U64(5), events[0].SequenceNumber)
	assert.Equal(t, "10", events[0].Data["amount_in"])
}

func TestView_SendsEncodedArguments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0x1::coin::balance", body["function"])
		assert.Equal(t, []any{"0x1::aptos_coin::AptosCoin"}, body["type_arguments"])
		assert.Equal(t, []any{"0xa1"}, body["arguments"])
		_, _ = io.WriteString(w, `["1000"]`)
	})

	out, err := c.View(context.Background(), &types.ViewRequest{
		Function:      "0x1::coin::balance",
		TypeArguments: []string{types.AptosCoinType},
		Arguments:     []types.Arg{types.Address("0xa1")},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, `"1000"`, string(out[0]))
}

func TestRateLimiter_RespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"chain_id":1}`)
	}))
	defer server.Close()

	c, err := New(&Config{Endpoint: server.URL, Timeout: time.Second, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = c.GetChainInfo(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetChainInfo(ctx)
	assert.Error(t, err)
}
