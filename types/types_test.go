package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU64_DecodesStringsAndNumbers(t *testing.T) {
	var v struct {
		A U64 `json:"a"`
		B U64 `json:"b"`
		C U64 `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"7","b":42,"c":null}`), &v))
	assert.Equal(t, U64(7), v.A)
	assert.Equal(t, U64(42), v.B)
	assert.Equal(t, U64(0), v.C)

	out, err := json.Marshal(U64(7))
	require.NoError(t, err)
	assert.Equal(t, `"7"`, string(out))

	var bad U64
	assert.Error(t, json.Unmarshal([]byte(`"-1"`), &bad))
}

func TestArg_JSONEncoding(t *testing.T) {
	args := []Arg{
		String("hello"),
		Uint(1000),
		Bool(true),
		Address("0x1"),
		Bytes([]byte{0xde, 0xad}),
		List(String("a"), Uint(2)),
	}
	out, err := json.Marshal(args)
	require.NoError(t, err)
	assert.JSONEq(t, `["hello","1000",true,"0x1","0xdead",["a","2"]]`, string(out))
}

func TestArg_DecodeKeepsUnknownAsRaw(t *testing.T) {
	var args []Arg
	require.NoError(t, json.Unmarshal([]byte(`["x", 5, false, {"k":1}, [1]]`), &args))
	require.Len(t, args, 5)
	assert.Equal(t, ArgString, args[0].Kind())
	assert.Equal(t, ArgU64, args[1].Kind())
	assert.Equal(t, ArgBool, args[2].Kind())
	assert.Equal(t, ArgRaw, args[3].Kind())
	assert.Equal(t, ArgList, args[4].Kind())

	out, err := json.Marshal(args[3])
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":1}`, string(out))
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		token string
		want  Arg
	}{
		{"u64:15", Uint(15)},
		{"bool:true", Bool(true)},
		{"address:0xabc", Address("0xabc")},
		{"hex:0x0102", Bytes([]byte{1, 2})},
		{"string:u64:1", String("u64:1")},
		{"plain", String("plain")},
		{"0x1::aptos_coin::AptosCoin", String("0x1::aptos_coin::AptosCoin")},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseArg(tt.token)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got.Value())
		})
	}

	_, err := ParseArg("u64:abc")
	assert.Error(t, err)
	_, err = ParseArg("address:abc")
	assert.Error(t, err)
}

func TestContractCall_Validate(t *testing.T) {
	valid := NewCall("0x1", "coin", "transfer", nil)
	require.NoError(t, valid.Validate())

	cases := map[string]ContractCall{
		"empty address": NewCall("", "coin", "transfer", nil),
		"missing 0x":    NewCall("1", "coin", "transfer", nil),
		"empty module":  NewCall("0x1", "", "transfer", nil),
		"empty func":    NewCall("0x1", "coin", "", nil),
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			err := call.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestContractCall_WithArgumentDoesNotAlias(t *testing.T) {
	base := NewCall("0x1", "m", "f", nil, String("a"))
	next := base.WithArgument(String("b"))
	assert.Len(t, base.Arguments, 1)
	assert.Len(t, next.Arguments, 2)
	assert.Equal(t, "0x1::m::f", next.Function())
}

func TestWriteResult_Field(t *testing.T) {
	res := &WriteResult{Success: true, TransactionHash: "0xabc", GasUsed: 12, Events: []ContractEvent{}}
	v, ok := res.Field("transaction_hash")
	require.True(t, ok)
	assert.Equal(t, `"0xabc"`, string(v))

	_, ok = res.Field("missing")
	assert.False(t, ok)
}

func TestParseAmount(t *testing.T) {
	v, ok := ParseAmount("100")
	assert.True(t, ok)
	assert.Equal(t, uint64(100), v)

	v, ok = ParseAmount(float64(5))
	assert.True(t, ok)
	assert.Equal(t, uint64(5), v)

	_, ok = ParseAmount(float64(-1))
	assert.False(t, ok)
	_, ok = ParseAmount("abc")
	assert.False(t, ok)
	_, ok = ParseAmount(map[string]any{})
	assert.False(t, ok)
}

func TestTransaction_KindAccessors(t *testing.T) {
	var tx Transaction
	raw := `{"type":"user_transaction","version":"10","hash":"0x1","success":true,"vm_status":"Executed successfully",
		"gas_used":"5","timestamp":"1700000000000000","sender":"0xa1","sequence_number":"3",
		"payload":{"type":"entry_function_payload","function":"0x1::coin::transfer","type_arguments":[],"arguments":["0x2","1"]},
		"events":[{"guid":{"creation_number":"1","account_address":"0x1"},"sequence_number":"9","type":"0x1::coin::DepositEvent","data":{"amount":"1"}}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))

	assert.True(t, tx.IsUser())
	sender, ok := tx.SenderAddress()
	assert.True(t, ok)
	assert.Equal(t, "0xa1", sender)
	assert.Equal(t, "0x1::coin::transfer", tx.PayloadFunction())
	assert.Equal(t, U64(9), tx.Events[0].SequenceNumber)

	tx.Type = BlockMetadataTransactionType
	_, ok = tx.SenderAddress()
	assert.False(t, ok)
	assert.Empty(t, tx.PayloadFunction())
}
