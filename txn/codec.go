package txn

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"

	"github.com/opendlt/aptos-toolkit/types"
)

// RawTransactionSalt domain-separates transaction signing messages
const RawTransactionSalt = "APTOS::RawTransaction"

// Codec produces the canonical byte form of a raw transaction.
// A node verifies signatures over the BCS encoding, so submitting to a real
// network requires a BCS Codec set in Config.Codec or passed to SignWithCodec.
type Codec interface {
	Encode(raw *types.RawTransaction) ([]byte, error)
	Decode(data []byte) (*types.RawTransaction, error)
}

// CBORCodec encodes raw transactions as fixed-order CBOR arrays using core
// deterministic encoding
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec creates the default codec
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

var defaultCodec = mustCodec()

func mustCodec() *CBORCodec {
	c, err := NewCBORCodec()
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCodec returns the shared CBOR codec. Its bytes are deterministic
// but are not the BCS form a node checks signatures against.
func DefaultCodec() Codec {
	return defaultCodec
}

type canonicalTx struct {
	_                       struct{} `cbor:",toarray"`
	Sender                  []byte
	SequenceNumber          uint64
	Payload                 canonicalPayload
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

type canonicalPayload struct {
	_             struct{} `cbor:",toarray"`
	Function      string
	TypeArguments []string
	Arguments     []canonicalArg
}

type canonicalArg struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Value cbor.RawMessage
}

// Encode serializes the transaction fields in their fixed order:
// sender, sequence_number, payload, max_gas_amount, gas_unit_price,
// expiration_timestamp_secs, chain_id
func (c *CBORCodec) Encode(raw *types.RawTransaction) ([]byte, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw transaction cannot be nil")
	}
	if raw.Payload == nil {
		return nil, fmt.Errorf("raw transaction payload cannot be nil")
	}
	if raw.ChainID == nil {
		return nil, fmt.Errorf("raw transaction chain id is required for signing")
	}

	sender, err := AddressBytes(raw.Sender)
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}

	args, err := c.encodeArgs(raw.Payload.Arguments)
	if err != nil {
		return nil, err
	}

	typeArgs := raw.Payload.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}

	canonical := canonicalTx{
		Sender:         sender,
		SequenceNumber: raw.SequenceNumber.Uint64(),
		Payload: canonicalPayload{
			Function:      raw.Payload.Function,
			TypeArguments: typeArgs,
			Arguments:     args,
		},
		MaxGasAmount:            raw.MaxGasAmount.Uint64(),
		GasUnitPrice:            raw.GasUnitPrice.Uint64(),
		ExpirationTimestampSecs: raw.ExpirationTimestampSecs.Uint64(),
		ChainID:                 *raw.ChainID,
	}

	data, err := c.enc.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction to CBOR: %w", err)
	}
	return data, nil
}

func (c *CBORCodec) encodeArgs(args []types.Arg) ([]canonicalArg, error) {
	out := make([]canonicalArg, 0, len(args))
	for i, arg := range args {
		var value any
		switch arg.Kind() {
		case types.ArgList:
			items, err := c.encodeArgs(arg.Items())
			if err != nil {
				return nil, err
			}
			value = items
		case types.ArgAddress:
			b, err := AddressBytes(arg.Value().(string))
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			value = b
		default:
			value = arg.Value()
		}

		encoded, err := c.enc.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %d: %w", i, err)
		}
		out = append(out, canonicalArg{Kind: uint8(arg.Kind()), Value: encoded})
	}
	return out, nil
}

// Decode restores a raw transaction from its canonical form
func (c *CBORCodec) Decode(data []byte) (*types.RawTransaction, error) {
	var canonical canonicalTx
	if err := c.dec.Unmarshal(data, &canonical); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction from CBOR: %w", err)
	}
	if len(canonical.Sender) != AddressLength {
		return nil, fmt.Errorf("invalid sender length %d", len(canonical.Sender))
	}

	args, err := c.decodeArgs(canonical.Payload.Arguments)
	if err != nil {
		return nil, err
	}

	chainID := canonical.ChainID
	return &types.RawTransaction{
		Sender:                  "0x" + hex.EncodeToString(canonical.Sender),
		SequenceNumber:          types.U64(canonical.SequenceNumber),
		Payload:                 types.NewEntryFunctionPayload(canonical.Payload.Function, canonical.Payload.TypeArguments, args),
		MaxGasAmount:            types.U64(canonical.MaxGasAmount),
		GasUnitPrice:            types.U64(canonical.GasUnitPrice),
		ExpirationTimestampSecs: types.U64(canonical.ExpirationTimestampSecs),
		ChainID:                 &chainID,
	}, nil
}

func (c *CBORCodec) decodeArgs(in []canonicalArg) ([]types.Arg, error) {
	out := make([]types.Arg, 0, len(in))
	for i, item := range in {
		var arg types.Arg
		switch types.ArgKind(item.Kind) {
		case types.ArgString:
			var s string
			if err := c.dec.Unmarshal(item.Value, &s); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.String(s)
		case types.ArgU64:
			var v uint64
			if err := c.dec.Unmarshal(item.Value, &v); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.Uint(v)
		case types.ArgBool:
			var b bool
			if err := c.dec.Unmarshal(item.Value, &b); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.Bool(b)
		case types.ArgAddress:
			var b []byte
			if err := c.dec.Unmarshal(item.Value, &b); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.Address("0x" + hex.EncodeToString(b))
		case types.ArgBytes:
			var b []byte
			if err := c.dec.Unmarshal(item.Value, &b); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.Bytes(b)
		case types.ArgList:
			var nested []canonicalArg
			if err := c.dec.Unmarshal(item.Value, &nested); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			items, err := c.decodeArgs(nested)
			if err != nil {
				return nil, err
			}
			arg = types.List(items...)
		case types.ArgRaw:
			var b []byte
			if err := c.dec.Unmarshal(item.Value, &b); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			arg = types.Raw(json.RawMessage(b))
		default:
			return nil, fmt.Errorf("argument %d: unknown kind %d", i, item.Kind)
		}
		out = append(out, arg)
	}
	return out, nil
}

// AddressLength is the byte length of an account address
const AddressLength = 32

// AddressBytes parses a 0x address, left-padding short forms such as 0x1
func AddressBytes(address string) ([]byte, error) {
	h, ok := strings.CutPrefix(strings.ToLower(address), "0x")
	if !ok {
		return nil, fmt.Errorf("address must start with 0x: %s", address)
	}
	if len(h) == 0 || len(h) > AddressLength*2 {
		return nil, fmt.Errorf("invalid address length: %s", address)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("invalid address hex %s: %w", address, err)
	}
	out := make([]byte, AddressLength)
	copy(out[AddressLength-len(b):], b)
	return out, nil
}

// SigningMessage returns SHA3-256(salt) || canonical bytes
func SigningMessage(codec Codec, raw *types.RawTransaction) ([]byte, error) {
	encoded, err := codec.Encode(raw)
	if err != nil {
		return nil, err
	}
	prefix := sha3.Sum256([]byte(RawTransactionSalt))
	msg := make([]byte, 0, len(prefix)+len(encoded))
	msg = append(msg, prefix[:]...)
	return append(msg, encoded...), nil
}
