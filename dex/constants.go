package dex

import "github.com/opendlt/aptos-toolkit/types"

// Venue names
const (
	Liquidswap  = "Liquidswap"
	Thala       = "Thala"
	PancakeSwap = "PancakeSwap"
	Cellana     = "Cellana"
	AnimeSwap   = "AnimeSwap"
	AuxExchange = "AuxExchange"
)

// Mainnet protocol addresses
const (
	LiquidswapAddress  = "0x190d44266241744264b964a37b8f09863167a12d3e70cda39376cfb4e3561e12"
	ThalaAddress       = "0x7fd500c11216f0fe3095d0c4b8aa4d64a4e2e04f83758462f2b127255643615"
	PancakeSwapAddress = "0xc7efb4076dbe143cbcd98cfaaa929ecfc8f299203dfff63b95ccb6bfe19850fa"
	CellanaAddress     = "0x9b5a27d3e7c7c8f7f313f43e4bdc00d8b652b0c5e0e0e0e0e0e0e0e0e0e0e0e0"
	AnimeSwapAddress   = "0x16fe2df00ea7dde4a63409201f7f4e536bde7bb7335526a35d05111e68aa322c"
	AuxExchangeAddress = "0xbd35135844473187163ca197ca93b2ab014370587bb0ed3befff9e902d6bb541"
)

// Base tokens
const (
	APT          = types.AptosCoinType
	USDC         = "0x5e156f1207d0ebfa19a9eeff00d62a282278fb8719f4fab3a586a0a2c0fffbea"
	USDT         = "0x6f986d62e504433e05552cde45c4c6d6f8eebafe47678d7f6a13ed8f6acd0e6"
	WormholeUSDC = "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa"
)

// BaseTokens are the counter tokens probed when looking for liquidity pools
var BaseTokens = []string{APT, USDC, USDT, WormholeUSDC}

const (
	// ProbeAmount is the input amount used for price discovery
	ProbeAmount uint64 = 1_000_000

	// DeadlineSeconds is how far in the future swap deadlines are set
	DeadlineSeconds = 300

	// DefaultFeeRate is the constant-product pool fee
	DefaultFeeRate = 0.003
)
