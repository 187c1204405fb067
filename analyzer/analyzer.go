// Package analyzer decodes confirmed transactions: which tokens were spent
// and received, the trade direction, the pools and venues involved, plain
// coin transfers and state change counts. Every function is pure.
package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/types"
)

// Direction classifies a trade
type Direction string

const (
	Buy      Direction = "BUY"
	Sell     Direction = "SELL"
	Swap     Direction = "SWAP"
	Transfer Direction = "TRANSFER"
)

// TokenPattern maps a substring of a token or event type to a value
type TokenPattern struct {
	Marker   string `json:"marker" yaml:"marker"`
	Token    string `json:"token,omitempty" yaml:"token"`
	Decimals uint8  `json:"decimals,omitempty" yaml:"decimals"`
}

// VenuePattern maps a substring to a venue name
type VenuePattern struct {
	Marker string `json:"marker" yaml:"marker"`
	Name   string `json:"name" yaml:"name"`
}

// Config holds the token and venue tables the analyzer matches against
type Config struct {
	// FlaggedCoin and QuoteCoin define BUY (flagged spent for quote) and SELL
	FlaggedCoin string
	QuoteCoin   string

	// EventTokens infers the token of fungible asset events from the event type
	EventTokens []TokenPattern

	// TokenDecimals is matched in order; DefaultDecimals applies otherwise
	TokenDecimals   []TokenPattern
	DefaultDecimals uint8

	// FunctionVenues is matched against the payload function, EventVenues
	// against event types and PoolVenues against pool addresses
	FunctionVenues []VenuePattern
	EventVenues    []VenuePattern
	PoolVenues     []VenuePattern
}

const (
	echoCoin = "0xe4ccb6d39136469f376242c31b34d10515c8eaaa38092f804db8e08a8f53c5b2::assets_v1::EchoCoin002"
	faAPTLP  = "0x2ebb2ccac5e027a87fa0e2e5f656a3a4238d6a48d93ec9b610d570fc0aa0df12"
	faUSDC   = "0x357b0b74bc833e95a115ad22604854d6b0fca151cecd94111770e5d6ffc9dc2b"
	faEcho   = "0x9da434d9b873b5159e8eeed70202ad22dc075867a7793234fbc981b63e119"
)

// DefaultConfig returns the mainnet tables
func DefaultConfig() *Config {
	return &Config{
		FlaggedCoin: "EchoCoin002",
		QuoteCoin:   "aptos_coin",
		EventTokens: []TokenPattern{
			{Marker: "aptos_coin", Token: types.AptosCoinType},
			{Marker: "usdt", Token: "0x1::usdt::USDT"},
			{Marker: "USDt", Token: "0x1::usdt::USDT"},
			{Marker: "EchoCoin002", Token: echoCoin},
			{Marker: faAPTLP, Token: faAPTLP},
			{Marker: faUSDC, Token: faUSDC},
		},
		TokenDecimals: []TokenPattern{
			{Marker: "EchoCoin002", Decimals: 6},
			{Marker: faEcho, Decimals: 6},
			{Marker: "aptos_coin", Decimals: 8},
			{Marker: faAPTLP, Decimals: 8},
			{Marker: faUSDC, Decimals: 6},
			{Marker: dex.USDC, Decimals: 6},
			{Marker: dex.USDT, Decimals: 6},
			{Marker: dex.WormholeUSDC, Decimals: 6},
		},
		DefaultDecimals: 8,
		FunctionVenues: []VenuePattern{
			{Marker: "panora_swap", Name: "Panora Exchange"},
			{Marker: "pancake", Name: "PancakeSwap"},
			{Marker: "hyperion", Name: "Hyperion"},
			{Marker: "tapp", Name: "Tapp Exchange"},
			{Marker: "cellana", Name: "Cellana Finance"},
		},
		EventVenues: []VenuePattern{
			{Marker: "panora", Name: "Panora Exchange"},
			{Marker: "pancake", Name: "PancakeSwap"},
			{Marker: "hyperion", Name: "Hyperion"},
			{Marker: "tapp", Name: "Tapp Exchange"},
			{Marker: "cellana", Name: "Cellana Finance"},
		},
		PoolVenues: []VenuePattern{
			{Marker: "0x1c3206", Name: "Panora Exchange"},
			{Marker: "0x2788f4", Name: "Hyperion"},
			{Marker: "0x85d333", Name: "Tapp Exchange"},
			{Marker: "0xd18e39", Name: "Cellana Finance"},
		},
	}
}

// Analyzer applies a Config to transactions
type Analyzer struct {
	config *Config
}

// New creates an analyzer
func New(config *Config) (*Analyzer, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.FlaggedCoin == "" || config.QuoteCoin == "" {
		return nil, fmt.Errorf("flagged and quote coins are required")
	}
	if config.DefaultDecimals == 0 {
		config.DefaultDecimals = 8
	}
	return &Analyzer{config: config}, nil
}

// Default returns an analyzer over the mainnet tables
func Default() *Analyzer {
	a, _ := New(DefaultConfig())
	return a
}

// Direction classifies a transaction by its spent and received tokens.
// Transactions without both sides are transfers.
func (a *Analyzer) Direction(tx *types.Transaction) Direction {
	spent, ok := a.SpentToken(tx)
	if !ok {
		return Transfer
	}
	received, ok := a.ReceivedToken(tx)
	if !ok {
		return Transfer
	}

	flagged, quote := a.config.FlaggedCoin, a.config.QuoteCoin
	switch {
	case strings.Contains(spent.Token, flagged) && strings.Contains(received.Token, quote):
		return Buy
	case strings.Contains(spent.Token, quote) && strings.Contains(received.Token, flagged):
		return Sell
	default:
		return Swap
	}
}

var poolFields = []string{"pool_address", "pool", "pair", "liquidity_pool", "address", "contract_address", "dex_address"}

// PoolAddresses returns the sorted distinct pool accounts touched by pool and
// swap events
func (a *Analyzer) PoolAddresses(tx *types.Transaction) []string {
	seen := make(map[string]struct{})
	for _, ev := range tx.Events {
		if !strings.Contains(ev.Type, "Pool") && !strings.Contains(ev.Type, "Swap") {
			continue
		}
		if ev.GUID.AccountAddress != "" {
			seen[ev.GUID.AccountAddress] = struct{}{}
		}
		for _, field := range poolFields {
			if s, ok := ev.Data[field].(string); ok {
				seen[s] = struct{}{}
				break
			}
		}
	}
	return sortedKeys(seen)
}

var venueFields = []string{"dex", "exchange", "platform", "protocol"}

// VenueNames returns the sorted distinct venues recognized from the payload
// function, event types and event data. Pool address prefixes are used
// when nothing else matches.
func (a *Analyzer) VenueNames(tx *types.Transaction) []string {
	seen := make(map[string]struct{})

	if tx.IsUser() {
		fn := tx.PayloadFunction()
		for _, p := range a.config.FunctionVenues {
			if strings.Contains(fn, p.Marker) {
				seen[p.Name] = struct{}{}
			}
		}
	}

	for _, ev := range tx.Events {
		for _, p := range a.config.EventVenues {
			if strings.Contains(ev.Type, p.Marker) {
				seen[p.Name] = struct{}{}
			}
		}
		for _, field := range venueFields {
			if s, ok := ev.Data[field].(string); ok {
				seen[s] = struct{}{}
			}
		}
	}

	if len(seen) == 0 {
		for _, pool := range a.PoolAddresses(tx) {
			for _, p := range a.config.PoolVenues {
				if strings.Contains(pool, p.Marker) {
					seen[p.Name] = struct{}{}
					break
				}
			}
		}
	}
	return sortedKeys(seen)
}

// TransferInfo describes a plain coin transfer
type TransferInfo struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	TokenType string `json:"token_type"`
}

// TransferInfo decodes a coin::transfer user transaction
func (a *Analyzer) TransferInfo(tx *types.Transaction) (*TransferInfo, bool) {
	if !tx.IsUser() || tx.Payload == nil || !strings.HasSuffix(tx.Payload.Function, "::coin::transfer") {
		return nil, false
	}
	if len(tx.Payload.Arguments) < 2 {
		return nil, false
	}

	var recipient string
	var amount any
	if err := json.Unmarshal(tx.Payload.Arguments[0], &recipient); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(tx.Payload.Arguments[1], &amount); err != nil {
		return nil, false
	}
	n, ok := types.ParseAmount(amount)
	if !ok {
		return nil, false
	}

	token := types.AptosCoinType
	if len(tx.Payload.TypeArguments) > 0 {
		token = tx.Payload.TypeArguments[0]
	}
	return &TransferInfo{From: tx.Sender, To: recipient, Amount: n, TokenType: token}, true
}

// ResourceChanges counts the state changes of a transaction
type ResourceChanges struct {
	ResourcesModified  int `json:"resources_modified"`
	ResourcesDeleted   int `json:"resources_deleted"`
	TableItemsModified int `json:"table_items_modified"`
	TableItemsDeleted  int `json:"table_items_deleted"`
}

// ResourceChanges tallies write set changes by kind
func (a *Analyzer) ResourceChanges(tx *types.Transaction) ResourceChanges {
	var c ResourceChanges
	for _, change := range tx.Changes {
		switch change.Type {
		case "write_resource":
			if len(change.Data) > 0 {
				c.ResourcesModified++
			}
		case "write_table_item":
			c.TableItemsModified++
		case "delete_resource":
			c.ResourcesDeleted++
		case "delete_table_item":
			c.TableItemsDeleted++
		}
	}
	return c
}

// EventsByType returns the events whose type contains eventType
func EventsByType(tx *types.Transaction, eventType string) []types.Event {
	var out []types.Event
	for _, ev := range tx.Events {
		if strings.Contains(ev.Type, eventType) {
			out = append(out, ev)
		}
	}
	return out
}

// Report is the full decoding of one transaction
type Report struct {
	Hash      string          `json:"hash"`
	Version   uint64          `json:"version"`
	Success   bool            `json:"success"`
	GasUsed   uint64          `json:"gas_used"`
	Direction Direction       `json:"direction"`
	Spent     *TokenAmount    `json:"spent,omitempty"`
	Received  *TokenAmount    `json:"received,omitempty"`
	Balances  []TokenBalance  `json:"balances,omitempty"`
	Pools     []string        `json:"pools,omitempty"`
	Venues    []string        `json:"venues,omitempty"`
	Transfer  *TransferInfo   `json:"transfer,omitempty"`
	Changes   ResourceChanges `json:"changes"`
}

// Analyze runs every decoder over a transaction
func (a *Analyzer) Analyze(tx *types.Transaction) *Report {
	r := &Report{
		Hash:      tx.Hash,
		Version:   tx.Version.Uint64(),
		Success:   tx.Success,
		GasUsed:   tx.GasUsed.Uint64(),
		Direction: a.Direction(tx),
		Balances:  a.TokenBalances(tx),
		Pools:     a.PoolAddresses(tx),
		Venues:    a.VenueNames(tx),
		Changes:   a.ResourceChanges(tx),
	}
	if spent, ok := a.SpentToken(tx); ok {
		r.Spent = &spent
	}
	if received, ok := a.ReceivedToken(tx); ok {
		r.Received = &received
	}
	if transfer, ok := a.TransferInfo(tx); ok {
		r.Transfer = transfer
	}
	return r
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
