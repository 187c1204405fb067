package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/opendlt/aptos-toolkit/types"
)

// GetChainInfo returns the ledger summary from the index endpoint
func (c *Client) GetChainInfo(ctx context.Context) (*types.ChainInfo, error) {
	var info types.ChainInfo
	if err := c.getJSON(ctx, "/", nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get chain info: %w", err)
	}
	return &info, nil
}

// GetChainHeight returns the current block height
func (c *Client) GetChainHeight(ctx context.Context) (uint64, error) {
	info, err := c.GetChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.BlockHeight.Uint64(), nil
}

// GetLedgerVersion returns the latest committed ledger version
func (c *Client) GetLedgerVersion(ctx context.Context) (uint64, error) {
	info, err := c.GetChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.LedgerVersion.Uint64(), nil
}

// GetChainID returns the chain id reported by the node
func (c *Client) GetChainID(ctx context.Context) (uint8, error) {
	info, err := c.GetChainInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.ChainID, nil
}

// GetBlockByHeight returns a block, optionally with its transactions
func (c *Client) GetBlockByHeight(ctx context.Context, height uint64, withTransactions bool) (*types.Block, error) {
	var block types.Block
	path := "/blocks/by_height/" + strconv.FormatUint(height, 10)
	if err := c.getJSON(ctx, path, blockQuery(withTransactions), &block); err != nil {
		return nil, fmt.Errorf("failed to get block at height %d: %w", height, err)
	}
	return &block, nil
}

// GetBlockByVersion returns the block containing a ledger version
func (c *Client) GetBlockByVersion(ctx context.Context, version uint64, withTransactions bool) (*types.Block, error) {
	var block types.Block
	path := "/blocks/by_version/" + strconv.FormatUint(version, 10)
	if err := c.getJSON(ctx, path, blockQuery(withTransactions), &block); err != nil {
		return nil, fmt.Errorf("failed to get block at version %d: %w", version, err)
	}
	return &block, nil
}

func blockQuery(withTransactions bool) url.Values {
	if !withTransactions {
		return nil
	}
	return url.Values{"with_transactions": []string{"true"}}
}

// GetAccountEvents pages through an event stream. handle is either a creation
// number or "<struct type>/<field name>" of an event handle.
func (c *Client) GetAccountEvents(ctx context.Context, address, handle string, limit uint64, start *uint64) ([]types.Event, error) {
	var events []types.Event
	path := "/accounts/" + url.PathEscape(address) + "/events/" + escapePath(handle)
	if err := c.getJSON(ctx, path, pageQuery(limit, start), &events); err != nil {
		return nil, fmt.Errorf("failed to get events %s of %s: %w", handle, address, err)
	}
	return events, nil
}

// GetTableItem reads one table entry
func (c *Client) GetTableItem(ctx context.Context, handle string, req *types.TableItemRequest) (json.RawMessage, error) {
	if req == nil {
		return nil, fmt.Errorf("table item request cannot be nil")
	}

	var value json.RawMessage
	if err := c.postJSON(ctx, "/tables/"+url.PathEscape(handle)+"/item", req, &value); err != nil {
		return nil, fmt.Errorf("failed to get table item from %s: %w", handle, err)
	}
	return value, nil
}

// View executes a view function and returns its return values
func (c *Client) View(ctx context.Context, req *types.ViewRequest) ([]json.RawMessage, error) {
	if req == nil {
		return nil, fmt.Errorf("view request cannot be nil")
	}

	body := *req
	if body.TypeArguments == nil {
		body.TypeArguments = []string{}
	}
	if body.Arguments == nil {
		body.Arguments = []types.Arg{}
	}

	var values []json.RawMessage
	if err := c.postJSON(ctx, "/view", &body, &values); err != nil {
		return nil, fmt.Errorf("view %s failed: %w", req.Function, err)
	}
	return values, nil
}
