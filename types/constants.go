package types

import "fmt"

// Framework addresses
const (
	FrameworkAddress = "0x1"
	TokenAddress     = "0x3"
)

// Well-known framework types and functions
const (
	AptosCoinType     = "0x1::aptos_coin::AptosCoin"
	CoinStoreType     = "0x1::coin::CoinStore"
	CoinInfoType      = "0x1::coin::CoinInfo"
	CoinModule        = "coin"
	CoinTransfer      = "transfer"
	ManagedCoinModule = "managed_coin"
	TokenModule       = "token"

	// NativeCoinAlias is the fungible asset metadata address of the native coin
	NativeCoinAlias = "0xa"

	// OctasPerAPT is the native coin scaling factor
	OctasPerAPT = 100_000_000
)

// CoinStoreOf returns the CoinStore resource type for a coin type
func CoinStoreOf(coinType string) string {
	return fmt.Sprintf("%s<%s>", CoinStoreType, coinType)
}

// CoinInfoOf returns the CoinInfo resource type for a coin type
func CoinInfoOf(coinType string) string {
	return fmt.Sprintf("%s<%s>", CoinInfoType, coinType)
}
