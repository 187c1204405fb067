package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChainInfo is the ledger summary returned by the node index endpoint
type ChainInfo struct {
	ChainID             uint8  `json:"chain_id"`
	Epoch               U64    `json:"epoch"`
	LedgerVersion       U64    `json:"ledger_version"`
	OldestLedgerVersion U64    `json:"oldest_ledger_version,omitempty"`
	LedgerTimestamp     U64    `json:"ledger_timestamp"`
	NodeRole            string `json:"node_role"`
	OldestBlockHeight   U64    `json:"oldest_block_height,omitempty"`
	BlockHeight         U64    `json:"block_height"`
	GitHash             string `json:"git_hash,omitempty"`
}

// AccountInfo holds the account sequence number and authentication key
type AccountInfo struct {
	SequenceNumber    U64    `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// Resource is a typed datum stored under an account
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DataMap decodes the resource data as a generic object
func (r *Resource) DataMap() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return nil, fmt.Errorf("resource %s data is not an object: %w", r.Type, err)
	}
	return m, nil
}

// Module is a published Move module
type Module struct {
	Bytecode string          `json:"bytecode"`
	ABI      json.RawMessage `json:"abi,omitempty"`
}

// EventGUID identifies an event stream
type EventGUID struct {
	CreationNumber U64    `json:"creation_number"`
	AccountAddress string `json:"account_address"`
}

// Event is a single entry of an on-chain event stream
type Event struct {
	GUID           EventGUID      `json:"guid"`
	SequenceNumber U64            `json:"sequence_number"`
	Type           string         `json:"type"`
	Data           map[string]any `json:"data"`
	Version        U64            `json:"version,omitempty"`
}

// Block describes a ledger block and optionally its transactions
type Block struct {
	BlockHeight    U64           `json:"block_height"`
	BlockHash      string        `json:"block_hash"`
	BlockTimestamp U64           `json:"block_timestamp"`
	FirstVersion   U64           `json:"first_version"`
	LastVersion    U64           `json:"last_version"`
	Transactions   []Transaction `json:"transactions,omitempty"`
}

// TimestampSeconds returns the block timestamp in seconds
func (b *Block) TimestampSeconds() float64 {
	return float64(b.BlockTimestamp) / 1_000_000.0
}

// TimestampMillis returns the block timestamp in milliseconds
func (b *Block) TimestampMillis() uint64 {
	return uint64(b.BlockTimestamp) / 1000
}

// VersionRange returns the first and last transaction version of the block
func (b *Block) VersionRange() (uint64, uint64) {
	return uint64(b.FirstVersion), uint64(b.LastVersion)
}

// TransactionCount returns the number of versions covered by the block
func (b *Block) TransactionCount() uint64 {
	if b.LastVersion < b.FirstVersion {
		return 0
	}
	return uint64(b.LastVersion-b.FirstVersion) + 1
}

// GasEstimation is the node's gas unit price estimate
type GasEstimation struct {
	DeprioritizedGasEstimate *uint64 `json:"deprioritized_gas_estimate,omitempty"`
	GasEstimate              uint64  `json:"gas_estimate"`
	PrioritizedGasEstimate   *uint64 `json:"prioritized_gas_estimate,omitempty"`
}

// ViewRequest describes a pure view function invocation
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []Arg    `json:"arguments"`
}

// TableItemRequest identifies a single table entry
type TableItemRequest struct {
	KeyType   string `json:"key_type"`
	ValueType string `json:"value_type"`
	Key       Arg    `json:"key"`
}

// FunctionID renders "address::module::function"
func FunctionID(address, module, function string) string {
	return fmt.Sprintf("%s::%s::%s", address, module, function)
}

// ParseFunctionID splits "address::module::function"
func ParseFunctionID(id string) (address, module, function string, err error) {
	parts := strings.Split(id, "::")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid function id: %s", id)
	}
	return parts[0], parts[1], parts[2], nil
}
