package nft

import (
	"encoding/json"
	"strings"

	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/types"
)

// Marketplace names
const (
	Topaz       = "Topaz"
	Souffl3     = "Souffl3"
	BlueMove    = "BlueMove"
	Mercato     = "Mercato"
	AUX         = "AUX"
	PancakeSwap = "PancakeSwap"
	Tradeport   = "Tradeport"
	Wapal       = "Wapal"
)

// Mainnet marketplace accounts. Mercato rebranded as Tradeport and both
// read the same account with different resource markers.
const (
	TopazAddress       = "0x2c7bccf7b31baf770fdbcc768d9e9cb3d87805e255355df5db32ac9a669010a2"
	Souffl3Address     = "0xf6994988bd40261af9431cd6dd3fcf765569719e66322c7a05cc78a89cd366d4"
	BlueMoveAddress    = "0xd1fd99c1944b84d1670a2536417e997864ad12303d19eac725891691b04d614e"
	MercatoAddress     = "0xe11c12ec495f3989c35e1c6a0af414451223305b579291fc8f3d9d0575a23c26"
	AUXAddress         = dex.AuxExchangeAddress
	PancakeSwapAddress = dex.PancakeSwapAddress
	TradeportAddress   = MercatoAddress
	WapalAddress       = "0x584b50b999c78ade62f8359c91b5165ff390338d45f8e55969a04e65d76258c9"
)

// Entry is a (module, function) pair of a marketplace
type Entry struct {
	Module   string `json:"module" yaml:"module"`
	Function string `json:"function" yaml:"function"`

	// WithSeller passes the seller between the token id and the price
	WithSeller bool `json:"with_seller,omitempty" yaml:"withSeller"`
}

// Marketplace describes where a marketplace keeps its listings and how it
// is called
type Marketplace struct {
	Name    string `json:"name"`
	Address string `json:"address"`

	// TypeMarkers select listing resources by type substring
	TypeMarkers []string `json:"type_markers"`

	// PriceFields and SellerFields are tried in order
	PriceFields  []string `json:"price_fields"`
	SellerFields []string `json:"seller_fields"`
	TimeField    string   `json:"time_field,omitempty"`

	Purchase Entry  `json:"purchase"`
	Listing  *Entry `json:"listing,omitempty"`
}

var (
	commonPrice  = []string{"price", "list_price", "amount"}
	commonSeller = []string{"seller", "owner"}
)

// DefaultMarketplaces returns every supported marketplace
func DefaultMarketplaces() []Marketplace {
	return []Marketplace{
		{
			Name:         Topaz,
			Address:      TopazAddress,
			TypeMarkers:  []string{"::listings::"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "marketplace", Function: "purchase", WithSeller: true},
			Listing:      &Entry{Module: "marketplace", Function: "list"},
		},
		{
			Name:         Souffl3,
			Address:      Souffl3Address,
			TypeMarkers:  []string{"::market::", "::listing::"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "market", Function: "buy"},
			Listing:      &Entry{Module: "market", Function: "list"},
		},
		{
			Name:         BlueMove,
			Address:      BlueMoveAddress,
			TypeMarkers:  []string{"::Marketplace"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "marketplace", Function: "buy_token"},
			Listing:      &Entry{Module: "marketplace", Function: "list_token"},
		},
		{
			Name:         Mercato,
			Address:      MercatoAddress,
			TypeMarkers:  []string{"::market"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "market", Function: "purchase"},
		},
		{
			Name:         AUX,
			Address:      AUXAddress,
			TypeMarkers:  []string{"::amm::", "::clob::"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "nft_market", Function: "buy"},
		},
		{
			Name:         PancakeSwap,
			Address:      PancakeSwapAddress,
			TypeMarkers:  []string{"::nft_market"},
			PriceFields:  commonPrice,
			SellerFields: commonSeller,
			Purchase:     Entry{Module: "nft_market", Function: "purchase"},
		},
		{
			Name:         Tradeport,
			Address:      TradeportAddress,
			TypeMarkers:  []string{"::marketplace", "::listing"},
			PriceFields:  []string{"price", "list_price", "buy_now_price"},
			SellerFields: []string{"seller", "owner", "creator"},
			TimeField:    "created_at",
			Purchase:     Entry{Module: "marketplace", Function: "purchase", WithSeller: true},
			Listing:      &Entry{Module: "marketplace", Function: "list_token"},
		},
		{
			Name:         Wapal,
			Address:      WapalAddress,
			TypeMarkers:  []string{"::wapal", "::market"},
			PriceFields:  []string{"price", "amount", "sale_price"},
			SellerFields: []string{"seller", "owner", "current_owner"},
			TimeField:    "list_time",
			Purchase:     Entry{Module: "market", Function: "buy_nft"},
			Listing:      &Entry{Module: "market", Function: "list_nft"},
		},
	}
}

// Matches reports whether a resource type holds listings of this marketplace
func (m *Marketplace) Matches(resourceType string) bool {
	for _, marker := range m.TypeMarkers {
		if strings.Contains(resourceType, marker) {
			return true
		}
	}
	return false
}

// Extract reads a listing out of a resource. Resources without a positive
// price, or listing a different token, yield false.
func (m *Marketplace) Extract(res types.Resource, tokenID string) (Listing, bool) {
	var data map[string]any
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return Listing{}, false
	}

	if listed, ok := data["token_id"].(string); ok && tokenID != "" && listed != tokenID {
		return Listing{}, false
	}

	price := firstAmount(data, m.PriceFields)
	if price == 0 {
		return Listing{}, false
	}

	listing := Listing{
		TokenID:         tokenID,
		Price:           price,
		Marketplace:     res.Type,
		Seller:          firstString(data, m.SellerFields),
		Currency:        types.AptosCoinType,
		MarketplaceName: m.Name,
	}
	if m.TimeField != "" {
		listing.ListingTime, _ = types.ParseAmount(data[m.TimeField])
	}
	return listing, true
}

func firstAmount(data map[string]any, fields []string) uint64 {
	for _, field := range fields {
		v, ok := data[field]
		if !ok {
			continue
		}
		n, _ := types.ParseAmount(v)
		return n
	}
	return 0
}

func firstString(data map[string]any, fields []string) string {
	for _, field := range fields {
		if s, ok := data[field].(string); ok {
			return s
		}
	}
	return ""
}

// PurchaseCall builds the call buying a listing
func (m *Marketplace) PurchaseCall(l Listing) types.ContractCall {
	args := []types.Arg{types.String(l.TokenID)}
	if m.Purchase.WithSeller {
		args = append(args, types.String(l.Seller))
	}
	args = append(args, types.String(types.U64(l.Price).String()))
	return types.NewCall(m.Address, m.Purchase.Module, m.Purchase.Function, []string{}, args...)
}

// ListingCall builds the call listing a token for sale. ok is false when the
// marketplace has no listing entry.
func (m *Marketplace) ListingCall(tokenID string, price uint64) (types.ContractCall, bool) {
	if m.Listing == nil {
		return types.ContractCall{}, false
	}
	return types.NewCall(m.Address, m.Listing.Module, m.Listing.Function, []string{},
		types.String(tokenID), types.String(types.U64(price).String())), true
}
