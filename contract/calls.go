package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/opendlt/aptos-toolkit/types"
)

// Framework modules reached through pass-through calls
const (
	StakingModule = "staking_contract"
	BridgeModule  = "bridge"

	StakingInfoType = "0x1::staking_contract::StakingInfo"
	TokenStoreType  = "0x3::token::TokenStore"
)

// StakeCall stakes amount octas
func StakeCall(amount uint64) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, StakingModule, "stake", nil, types.String(strconv.FormatUint(amount, 10)))
}

// UnstakeCall unstakes amount octas
func UnstakeCall(amount uint64) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, StakingModule, "unstake", nil, types.String(strconv.FormatUint(amount, 10)))
}

// ClaimRewardsCall claims accrued staking rewards
func ClaimRewardsCall() types.ContractCall {
	return types.NewCall(types.FrameworkAddress, StakingModule, "claim_rewards", nil)
}

// BridgeTransferCall sends amount of tokenType to recipient on targetChain
func BridgeTransferCall(tokenType, targetChain string, amount uint64, recipient string) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, BridgeModule, "transfer_to_chain", []string{tokenType},
		types.String(targetChain),
		types.String(strconv.FormatUint(amount, 10)),
		types.String(recipient),
	)
}

// BridgeClaimCall claims a transfer made on sourceChain in transaction txHash
func BridgeClaimCall(sourceChain, txHash string) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, BridgeModule, "claim_from_chain", nil,
		types.String(sourceChain),
		types.String(txHash),
	)
}

// CollectionSpec describes a token collection to create
type CollectionSpec struct {
	Name        string
	Description string
	URI         string
	// MaxSupply of zero means unlimited
	MaxSupply uint64
}

// CreateCollectionCall creates a token collection
func CreateCollectionCall(spec CollectionSpec) types.ContractCall {
	maxSupply := spec.MaxSupply
	if maxSupply == 0 {
		maxSupply = math.MaxUint64
	}
	return types.NewCall(types.TokenAddress, types.TokenModule, "create_collection_script", nil,
		types.String(spec.Name),
		types.String(spec.Description),
		types.String(spec.URI),
		types.String(strconv.FormatUint(maxSupply, 10)),
		types.Bool(false),
	)
}

// TokenSpec describes a token to mint into a collection
type TokenSpec struct {
	Collection    string
	Name          string
	Description   string
	Supply        uint64
	URI           string
	RoyaltyPayee  string
	RoyaltyPoints uint64
}

// CreateTokenCall mints a token. The royalty payee defaults to creator.
func CreateTokenCall(creator string, spec TokenSpec) types.ContractCall {
	payee := spec.RoyaltyPayee
	if payee == "" {
		payee = creator
	}
	supply := strconv.FormatUint(spec.Supply, 10)
	return types.NewCall(types.TokenAddress, types.TokenModule, "create_token_script", nil,
		types.String(spec.Collection),
		types.String(spec.Name),
		types.String(spec.Description),
		types.String(supply),
		types.String(supply),
		types.String(spec.URI),
		types.Address(payee),
		types.String(strconv.FormatUint(spec.RoyaltyPoints, 10)),
		types.String("0"),
		types.List(),
		types.List(),
		types.List(),
	)
}

// TransferTokenCall transfers one unit of tokenID to recipient
func TransferTokenCall(recipient, tokenID string) types.ContractCall {
	return types.NewCall(types.TokenAddress, types.TokenModule, "transfer_script", nil,
		types.Address(recipient),
		types.String(tokenID),
		types.String("1"),
	)
}

// CreateCoinCall initializes a managed coin
func CreateCoinCall(name, symbol string, decimals uint8, monitorSupply bool) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, types.ManagedCoinModule, "initialize", nil,
		types.String(name),
		types.String(symbol),
		types.Uint(uint64(decimals)),
		types.Bool(monitorSupply),
	)
}

// RegisterCoinCall registers a CoinStore for coinType on the sender
func RegisterCoinCall(coinType string) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, types.CoinModule, "register", []string{coinType})
}

// MintCoinCall mints amount of coinType to recipient
func MintCoinCall(coinType, recipient string, amount uint64) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, types.ManagedCoinModule, "mint", []string{coinType},
		types.Address(recipient),
		types.Uint(amount),
	)
}

// BurnCoinCall burns amount of coinType held by the sender
func BurnCoinCall(coinType string, amount uint64) types.ContractCall {
	return types.NewCall(types.FrameworkAddress, types.ManagedCoinModule, "burn", []string{coinType},
		types.Uint(amount),
	)
}

// CoinMetadata is the CoinInfo resource of a coin type
type CoinMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// GetCoinMetadata reads the CoinInfo of coinType from its publishing account
func (f *Facade) GetCoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error) {
	address, _, _, err := types.ParseFunctionID(coinType)
	if err != nil {
		return nil, fmt.Errorf("invalid coin type %s: %w", coinType, err)
	}
	data, err := f.GetResource(ctx, address, types.CoinInfoOf(coinType))
	if err != nil {
		return nil, err
	}
	var meta CoinMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode coin info of %s: %w", coinType, err)
	}
	return &meta, nil
}

// GetStakingInfo returns the staking resource of an account
func (f *Facade) GetStakingInfo(ctx context.Context, address string) (json.RawMessage, error) {
	return f.GetResource(ctx, address, StakingInfoType)
}

// GetTokenBalance returns how many units of tokenID the account holds in its
// TokenStore. Absent tokens count as zero.
func (f *Facade) GetTokenBalance(ctx context.Context, address, tokenID string) (uint64, error) {
	data, err := f.GetResource(ctx, address, TokenStoreType)
	if err != nil {
		return 0, err
	}
	var store struct {
		Tokens map[string]struct {
			Amount types.U64 `json:"amount"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(data, &store); err != nil {
		return 0, fmt.Errorf("failed to decode token store of %s: %w", address, err)
	}
	return store.Tokens[tokenID].Amount.Uint64(), nil
}

// BuildTokenType joins creator, collection and name into a token identifier
func BuildTokenType(creator, collection, name string) string {
	return creator + "::" + collection + "::" + name
}

// ParseTokenType splits a token identifier into creator, collection and name
func ParseTokenType(tokenType string) (creator, collection, name string, err error) {
	parts := strings.Split(tokenType, "::")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid token type %s: expected creator::collection::name", tokenType)
	}
	return parts[0], parts[1], parts[2], nil
}

// IsValidTokenAddress reports whether address is a full-length 0x account address
func IsValidTokenAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && len(address) == 66
}
