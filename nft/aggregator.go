package nft

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/txn"
	"github.com/opendlt/aptos-toolkit/types"
)

// Backend is the chain access the aggregator needs. *contract.Facade implements it.
type Backend interface {
	GetResources(ctx context.Context, address string) ([]types.Resource, error)
	Write(ctx context.Context, signer txn.Signer, call types.ContractCall) (*types.WriteResult, error)
}

// Listing is a token offered for sale on a marketplace
type Listing struct {
	TokenID         string `json:"token_id"`
	Price           uint64 `json:"price"`
	Marketplace     string `json:"marketplace"`
	Seller          string `json:"seller"`
	ListingTime     uint64 `json:"listing_time"`
	Currency        string `json:"currency"`
	MarketplaceName string `json:"marketplace_name"`
}

// OrderBook summarizes the listings of one token
type OrderBook struct {
	TokenID    string    `json:"token_id"`
	Listings   []Listing `json:"listings"`
	FloorPrice *uint64   `json:"floor_price,omitempty"`
}

// TradeResult is the outcome of a purchase or listing
type TradeResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash"`
	Marketplace     string `json:"marketplace"`
	TotalCost       uint64 `json:"total_cost"`
	GasUsed         uint64 `json:"gas_used"`
	Error           string `json:"error,omitempty"`
}

// Aggregator searches and trades across NFT marketplaces
type Aggregator struct {
	backend Backend
	markets []Marketplace
	byName  map[string]*Marketplace
	logger  *logz.Logger
}

// NewAggregator creates an aggregator. With no marketplaces every supported
// one is used.
func NewAggregator(backend Backend, markets ...Marketplace) (*Aggregator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if len(markets) == 0 {
		markets = DefaultMarketplaces()
	}

	a := &Aggregator{
		backend: backend,
		markets: markets,
		byName:  make(map[string]*Marketplace, len(markets)),
		logger:  logz.New(logz.INFO, "nft"),
	}
	for i := range a.markets {
		m := &a.markets[i]
		if m.Name == "" || m.Address == "" {
			return nil, fmt.Errorf("marketplace %d needs a name and an address", i)
		}
		if _, dup := a.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate marketplace %s", m.Name)
		}
		a.byName[m.Name] = m
	}
	return a, nil
}

// SetLogger replaces the aggregator logger
func (a *Aggregator) SetLogger(logger *logz.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Marketplaces returns the configured marketplaces
func (a *Aggregator) Marketplaces() []Marketplace {
	out := make([]Marketplace, len(a.markets))
	copy(out, a.markets)
	return out
}

// Marketplace returns a marketplace by name
func (a *Aggregator) Marketplace(name string) (*Marketplace, bool) {
	m, ok := a.byName[name]
	return m, ok
}

// MarketplaceListings returns the listings of a token on one marketplace
func (a *Aggregator) MarketplaceListings(ctx context.Context, m *Marketplace, tokenID string) ([]Listing, error) {
	resources, err := a.backend.GetResources(ctx, m.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s listings: %w", m.Name, err)
	}

	var listings []Listing
	for _, res := range resources {
		if !m.Matches(res.Type) {
			continue
		}
		if listing, ok := m.Extract(res, tokenID); ok {
			listings = append(listings, listing)
		}
	}
	return listings, nil
}

// SearchListings collects the listings of a token on every marketplace,
// cheapest first. Marketplaces that cannot be read are skipped.
func (a *Aggregator) SearchListings(ctx context.Context, tokenID string) ([]Listing, error) {
	perMarket := make([][]Listing, len(a.markets))

	g, gctx := errgroup.WithContext(ctx)
	for i := range a.markets {
		i, m := i, &a.markets[i]
		g.Go(func() error {
			listings, err := a.MarketplaceListings(gctx, m, tokenID)
			if err != nil {
				a.logger.Debug("Skipping %s: %v", m.Name, err)
				return nil
			}
			perMarket[i] = listings
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []Listing
	for _, listings := range perMarket {
		all = append(all, listings...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Price < all[j].Price
	})
	return all, nil
}

// BestPrice returns the cheapest listing, or nil when the token is not listed
func (a *Aggregator) BestPrice(ctx context.Context, tokenID string) (*Listing, error) {
	listings, err := a.SearchListings(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}
	best := listings[0]
	return &best, nil
}

// OrderBook returns every listing of a token with its floor price
func (a *Aggregator) OrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	listings, err := a.SearchListings(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	book := &OrderBook{TokenID: tokenID, Listings: listings}
	if len(listings) > 0 {
		floor := listings[0].Price
		book.FloorPrice = &floor
	}
	return book, nil
}

// BuildPurchaseCall builds the call buying a listing on its marketplace
func (a *Aggregator) BuildPurchaseCall(listing Listing) (types.ContractCall, error) {
	m, ok := a.byName[listing.MarketplaceName]
	if !ok {
		return types.ContractCall{}, fmt.Errorf("unsupported marketplace %s", listing.MarketplaceName)
	}
	return m.PurchaseCall(listing), nil
}

// BuildListingCall builds the call listing a token on a marketplace
func (a *Aggregator) BuildListingCall(tokenID string, price uint64, market string) (types.ContractCall, error) {
	m, ok := a.byName[market]
	if !ok {
		return types.ContractCall{}, fmt.Errorf("unsupported marketplace %s", market)
	}
	call, ok := m.ListingCall(tokenID, price)
	if !ok {
		return types.ContractCall{}, fmt.Errorf("marketplace %s does not support listing", market)
	}
	return call, nil
}

// Purchase buys a listing
func (a *Aggregator) Purchase(ctx context.Context, signer txn.Signer, listing Listing) (*TradeResult, error) {
	call, err := a.BuildPurchaseCall(listing)
	if err != nil {
		return nil, err
	}
	res, err := a.backend.Write(ctx, signer, call)
	if err != nil {
		return nil, fmt.Errorf("purchase on %s failed: %w", listing.MarketplaceName, err)
	}
	a.logger.Info("Purchased %s on %s for %d: %s", listing.TokenID, listing.MarketplaceName, listing.Price, res.TransactionHash)
	return tradeResult(res, listing.MarketplaceName, listing.Price), nil
}

// List lists a token for sale on one marketplace
func (a *Aggregator) List(ctx context.Context, signer txn.Signer, tokenID string, price uint64, market string) (*TradeResult, error) {
	call, err := a.BuildListingCall(tokenID, price, market)
	if err != nil {
		return nil, err
	}
	res, err := a.backend.Write(ctx, signer, call)
	if err != nil {
		return nil, fmt.Errorf("listing on %s failed: %w", market, err)
	}
	return tradeResult(res, market, 0), nil
}

// ListOnMarkets lists a token on several marketplaces in turn. Failed
// listings are logged and left out of the results.
func (a *Aggregator) ListOnMarkets(ctx context.Context, signer txn.Signer, tokenID string, price uint64, markets []string) []*TradeResult {
	var results []*TradeResult
	for _, market := range markets {
		res, err := a.List(ctx, signer, tokenID, price, market)
		if err != nil {
			a.logger.Warn("Could not list %s on %s: %v", tokenID, market, err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// VerifyDelisted reports whether a token has no listing anywhere
func (a *Aggregator) VerifyDelisted(ctx context.Context, tokenID string) (bool, error) {
	listings, err := a.SearchListings(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return len(listings) == 0, nil
}

// ListingStatus reports per marketplace name whether the token is listed there
func (a *Aggregator) ListingStatus(ctx context.Context, tokenID string) (map[string]bool, error) {
	listings, err := a.SearchListings(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	status := make(map[string]bool, len(a.markets))
	for _, m := range a.markets {
		status[m.Name] = false
	}
	for _, l := range listings {
		status[l.MarketplaceName] = true
	}
	return status, nil
}

func tradeResult(res *types.WriteResult, market string, cost uint64) *TradeResult {
	return &TradeResult{
		Success:         res.Success,
		TransactionHash: res.TransactionHash,
		Marketplace:     market,
		TotalCost:       cost,
		GasUsed:         res.GasUsed.Uint64(),
		Error:           res.ErrorMessage(),
	}
}
