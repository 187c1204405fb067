package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContractCall is the uniform request shape for every contract interaction
type ContractCall struct {
	ModuleAddress string   `json:"module_address"`
	ModuleName    string   `json:"module_name"`
	FunctionName  string   `json:"function_name"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []Arg    `json:"arguments"`
}

// NewCall builds a contract call
func NewCall(address, module, function string, typeArgs []string, args ...Arg) ContractCall {
	return ContractCall{
		ModuleAddress: address,
		ModuleName:    module,
		FunctionName:  function,
		TypeArguments: typeArgs,
		Arguments:     args,
	}
}

// Function returns the fully qualified entry function id
func (c ContractCall) Function() string {
	return FunctionID(c.ModuleAddress, c.ModuleName, c.FunctionName)
}

// Validate checks the call shape before submission
func (c ContractCall) Validate() error {
	if c.ModuleAddress == "" {
		return &ValidationError{Field: "module_address", Reason: "cannot be empty"}
	}
	if !strings.HasPrefix(c.ModuleAddress, "0x") {
		return &ValidationError{Field: "module_address", Reason: "must start with 0x"}
	}
	if c.ModuleName == "" {
		return &ValidationError{Field: "module_name", Reason: "cannot be empty"}
	}
	if c.FunctionName == "" {
		return &ValidationError{Field: "function_name", Reason: "cannot be empty"}
	}
	return nil
}

// WithArgument returns a copy of the call with one more trailing argument
func (c ContractCall) WithArgument(arg Arg) ContractCall {
	args := make([]Arg, 0, len(c.Arguments)+1)
	args = append(args, c.Arguments...)
	args = append(args, arg)
	c.Arguments = args
	return c
}

// ValidationError reports a local precondition violation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid contract call: %s %s", e.Field, e.Reason)
}

// ReadResult is the outcome of a view call. Read paths never fail; errors land here.
type ReadResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

// ErrorMessage returns the error text or an empty string
func (r *ReadResult) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// ContractEvent is an event emitted by a confirmed write
type ContractEvent struct {
	Type           string         `json:"type"`
	Data           map[string]any `json:"data"`
	SequenceNumber U64            `json:"sequence_number"`
}

// WriteResult is the outcome of a submitted write
type WriteResult struct {
	Success         bool            `json:"success"`
	TransactionHash string          `json:"transaction_hash"`
	GasUsed         U64             `json:"gas_used"`
	Events          []ContractEvent `json:"events"`
	Error           *string         `json:"error"`
}

// ErrorMessage returns the error text or an empty string
func (r *WriteResult) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return *r.Error
}

// FailedWrite builds an unsuccessful write result
func FailedWrite(hash, message string) *WriteResult {
	msg := message
	return &WriteResult{
		Success:         false,
		TransactionHash: hash,
		Events:          []ContractEvent{},
		Error:           &msg,
	}
}

// Field looks up a top-level field of the JSON rendering of the result.
// Dependency chaining in call sequences reads values this way.
func (r *WriteResult) Field(name string) (json.RawMessage, bool) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	v, ok := fields[name]
	return v, ok
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
