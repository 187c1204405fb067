package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/opendlt/aptos-toolkit/types"
)

// GetAccountInfo returns the sequence number and authentication key of an account
func (c *Client) GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error) {
	var info types.AccountInfo
	err := c.getJSON(ctx, "/accounts/"+url.PathEscape(address), nil, &info)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrAccountNotFound, address, err)
		}
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return &info, nil
}

// AccountExists reports whether the node knows the account
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	_, err := c.GetAccountInfo(ctx, address)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// GetSequenceNumber returns the next sequence number of an account
func (c *Client) GetSequenceNumber(ctx context.Context, address string) (uint64, error) {
	info, err := c.GetAccountInfo(ctx, address)
	if err != nil {
		return 0, err
	}
	return info.SequenceNumber.Uint64(), nil
}

// GetAccountResources lists every resource stored under an account
func (c *Client) GetAccountResources(ctx context.Context, address string) ([]types.Resource, error) {
	var resources []types.Resource
	if err := c.getJSON(ctx, "/accounts/"+url.PathEscape(address)+"/resources", nil, &resources); err != nil {
		return nil, fmt.Errorf("failed to get resources of %s: %w", address, err)
	}
	return resources, nil
}

// GetAccountResource returns one resource, or nil when the account does not hold it
func (c *Client) GetAccountResource(ctx context.Context, address, resourceType string) (*types.Resource, error) {
	var resource types.Resource
	path := "/accounts/" + url.PathEscape(address) + "/resource/" + url.PathEscape(resourceType)
	if err := c.getJSON(ctx, path, nil, &resource); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resource %s of %s: %w", resourceType, address, err)
	}
	return &resource, nil
}

// GetAccountModules lists the modules published under an account
func (c *Client) GetAccountModules(ctx context.Context, address string) ([]types.Module, error) {
	var modules []types.Module
	if err := c.getJSON(ctx, "/accounts/"+url.PathEscape(address)+"/modules", nil, &modules); err != nil {
		return nil, fmt.Errorf("failed to get modules of %s: %w", address, err)
	}
	return modules, nil
}

// GetAccountModule returns one module, or nil when it is not published
func (c *Client) GetAccountModule(ctx context.Context, address, name string) (*types.Module, error) {
	var module types.Module
	path := "/accounts/" + url.PathEscape(address) + "/module/" + url.PathEscape(name)
	if err := c.getJSON(ctx, path, nil, &module); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get module %s of %s: %w", name, address, err)
	}
	return &module, nil
}

// GetAccountBalance returns the native coin balance in octas
func (c *Client) GetAccountBalance(ctx context.Context, address string) (uint64, error) {
	return c.GetCoinBalance(ctx, address, types.AptosCoinType)
}

// GetCoinBalance returns the CoinStore balance of a coin type, 0 when the store is absent
func (c *Client) GetCoinBalance(ctx context.Context, address, coinType string) (uint64, error) {
	resource, err := c.GetAccountResource(ctx, address, types.CoinStoreOf(coinType))
	if err != nil {
		return 0, err
	}
	if resource == nil {
		return 0, nil
	}
	return coinValue(resource.Data), nil
}

// GetAPTBalance returns the native balance in whole coins
func (c *Client) GetAPTBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	octas, err := c.GetAccountBalance(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(octas), -8), nil
}

// coinValue extracts coin.value from a CoinStore payload
func coinValue(data json.RawMessage) uint64 {
	var store struct {
		Coin struct {
			Value any `json:"value"`
		} `json:"coin"`
	}
	if err := json.Unmarshal(data, &store); err != nil {
		return 0
	}
	v, _ := types.ParseAmount(store.Coin.Value)
	return v
}
