package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/opendlt/aptos-toolkit/internal/metrics"
	"github.com/opendlt/aptos-toolkit/types"
)

// DefaultPageLimit is the page size used when the caller passes 0
const DefaultPageLimit = 25

// SubmitTransaction posts a signed transaction envelope
func (c *Client) SubmitTransaction(ctx context.Context, signed *types.SignedTransaction) (*types.PendingTransaction, error) {
	if signed == nil || signed.Transaction == nil {
		return nil, fmt.Errorf("signed transaction cannot be nil")
	}

	var pending types.PendingTransaction
	if err := c.postJSON(ctx, "/transactions", signed, &pending); err != nil {
		return nil, fmt.Errorf("transaction submit failed: %w", err)
	}
	if pending.Hash == "" {
		return nil, fmt.Errorf("no transaction hash returned from submission")
	}

	metrics.RecordSubmission()
	return &pending, nil
}

// GetTransactionByHash looks up a pending or committed transaction
func (c *Client) GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	var tx types.Transaction
	if err := c.getJSON(ctx, "/transactions/by_hash/"+url.PathEscape(hash), nil, &tx); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}
	return &tx, nil
}

// GetTransactionByVersion looks up a committed transaction by ledger version
func (c *Client) GetTransactionByVersion(ctx context.Context, version uint64) (*types.Transaction, error) {
	var tx types.Transaction
	path := "/transactions/by_version/" + strconv.FormatUint(version, 10)
	if err := c.getJSON(ctx, path, nil, &tx); err != nil {
		return nil, fmt.Errorf("failed to get transaction at version %d: %w", version, err)
	}
	return &tx, nil
}

// GetAccountTransactions lists transactions sent by an account
func (c *Client) GetAccountTransactions(ctx context.Context, address string, limit uint64, start *uint64) ([]types.Transaction, error) {
	var txs []types.Transaction
	path := "/accounts/" + url.PathEscape(address) + "/transactions"
	if err := c.getJSON(ctx, path, pageQuery(limit, start), &txs); err != nil {
		return nil, fmt.Errorf("failed to get transactions of %s: %w", address, err)
	}
	return txs, nil
}

// EstimateGasPrice returns the node's raw gas unit price estimate
func (c *Client) EstimateGasPrice(ctx context.Context) (*types.GasEstimation, error) {
	var estimate types.GasEstimation
	if err := c.getJSON(ctx, "/estimate_gas_price", nil, &estimate); err != nil {
		return nil, fmt.Errorf("failed to estimate gas price: %w", err)
	}
	return &estimate, nil
}

func pageQuery(limit uint64, start *uint64) url.Values {
	if limit == 0 {
		limit = DefaultPageLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.FormatUint(limit, 10))
	if start != nil {
		query.Set("start", strconv.FormatUint(*start, 10))
	}
	return query
}
