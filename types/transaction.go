package types

import (
	"encoding/json"
)

// Transaction kinds reported by the node
const (
	PendingTransactionType         = "pending_transaction"
	UserTransactionType            = "user_transaction"
	GenesisTransactionType         = "genesis_transaction"
	BlockMetadataTransactionType   = "block_metadata_transaction"
	StateCheckpointTransactionType = "state_checkpoint_transaction"
)

// Ed25519SignatureType is the scheme tag of single ed25519 signatures
const Ed25519SignatureType = "ed25519_signature"

// EntryFunctionPayloadType is the payload tag for entry function calls
const EntryFunctionPayloadType = "entry_function_payload"

// Payload is the decoded payload of a user or pending transaction
type Payload struct {
	Type          string            `json:"type"`
	Function      string            `json:"function"`
	TypeArguments []string          `json:"type_arguments"`
	Arguments     []json.RawMessage `json:"arguments"`
	Code          *Code             `json:"code,omitempty"`
}

// Code carries script bytecode
type Code struct {
	Bytecode string `json:"bytecode"`
}

// Signature is the signature descriptor attached to a transaction.
// Only the fields relevant to Type are populated.
type Signature struct {
	Type       string     `json:"type"`
	PublicKey  string     `json:"public_key,omitempty"`
	Signature  string     `json:"signature,omitempty"`
	PublicKeys []string   `json:"public_keys,omitempty"`
	Signatures []string   `json:"signatures,omitempty"`
	Threshold  uint8      `json:"threshold,omitempty"`
	Sender     *Signature `json:"sender,omitempty"`
	FeePayer   *Signature `json:"fee_payer_signer,omitempty"`
}

// WriteSetChange is a single state change produced by a transaction
type WriteSetChange struct {
	Type         string          `json:"type"`
	Address      string          `json:"address,omitempty"`
	StateKeyHash string          `json:"state_key_hash"`
	Data         json.RawMessage `json:"data,omitempty"`
	Handle       string          `json:"handle,omitempty"`
	Key          string          `json:"key,omitempty"`
	Value        string          `json:"value,omitempty"`
}

// Transaction is a committed or pending transaction record. Type selects the kind;
// sender and payload are only present for user and pending transactions.
type Transaction struct {
	Type                    string           `json:"type"`
	Version                 U64              `json:"version"`
	Hash                    string           `json:"hash"`
	StateChangeHash         string           `json:"state_change_hash,omitempty"`
	EventRootHash           string           `json:"event_root_hash,omitempty"`
	AccumulatorRootHash     string           `json:"accumulator_root_hash,omitempty"`
	GasUsed                 U64              `json:"gas_used"`
	Success                 bool             `json:"success"`
	VMStatus                string           `json:"vm_status"`
	Changes                 []WriteSetChange `json:"changes,omitempty"`
	Events                  []Event          `json:"events,omitempty"`
	Timestamp               U64              `json:"timestamp"`
	Sender                  string           `json:"sender,omitempty"`
	SequenceNumber          U64              `json:"sequence_number,omitempty"`
	MaxGasAmount            U64              `json:"max_gas_amount,omitempty"`
	GasUnitPrice            U64              `json:"gas_unit_price,omitempty"`
	ExpirationTimestampSecs U64              `json:"expiration_timestamp_secs,omitempty"`
	Payload                 *Payload         `json:"payload,omitempty"`
	Signature               *Signature       `json:"signature,omitempty"`

	// block metadata fields
	ID       string `json:"id,omitempty"`
	Epoch    U64    `json:"epoch,omitempty"`
	Round    U64    `json:"round,omitempty"`
	Proposer string `json:"proposer,omitempty"`
}

// IsUser reports whether the record is a committed user transaction
func (t *Transaction) IsUser() bool {
	return t.Type == UserTransactionType
}

// IsPending reports whether the record has not been committed yet
func (t *Transaction) IsPending() bool {
	return t.Type == PendingTransactionType
}

// SenderAddress returns the sender for user and pending transactions
func (t *Transaction) SenderAddress() (string, bool) {
	if t.Type == UserTransactionType || t.Type == PendingTransactionType {
		return t.Sender, t.Sender != ""
	}
	return "", false
}

// PayloadFunction returns the entry function id of user and pending transactions
func (t *Transaction) PayloadFunction() string {
	if t.Payload == nil {
		return ""
	}
	if t.Type != UserTransactionType && t.Type != PendingTransactionType {
		return ""
	}
	return t.Payload.Function
}

// PendingTransaction is the node's response to a submission
type PendingTransaction struct {
	Hash                    string   `json:"hash"`
	Sender                  string   `json:"sender"`
	SequenceNumber          U64      `json:"sequence_number"`
	MaxGasAmount            U64      `json:"max_gas_amount"`
	GasUnitPrice            U64      `json:"gas_unit_price"`
	ExpirationTimestampSecs U64      `json:"expiration_timestamp_secs"`
	Payload                 *Payload `json:"payload,omitempty"`
}

// EntryFunctionPayload is the payload shape used when building transactions
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []Arg    `json:"arguments"`
}

// NewEntryFunctionPayload builds an entry function payload from its parts
func NewEntryFunctionPayload(function string, typeArgs []string, args []Arg) *EntryFunctionPayload {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []Arg{}
	}
	return &EntryFunctionPayload{
		Type:          EntryFunctionPayloadType,
		Function:      function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}
}

// RawTransaction is an unsigned transaction. It is immutable once built.
type RawTransaction struct {
	Sender                  string                `json:"sender"`
	SequenceNumber          U64                   `json:"sequence_number"`
	Payload                 *EntryFunctionPayload `json:"payload"`
	MaxGasAmount            U64                   `json:"max_gas_amount"`
	GasUnitPrice            U64                   `json:"gas_unit_price"`
	ExpirationTimestampSecs U64                   `json:"expiration_timestamp_secs"`
	ChainID                 *uint8                `json:"chain_id,omitempty"`
}

// SignedTransaction is the submission envelope
type SignedTransaction struct {
	Transaction *RawTransaction `json:"transaction"`
	Signature   Signature       `json:"signature"`
}
