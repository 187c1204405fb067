package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ArgKind tags the variant held by an Arg
type ArgKind uint8

const (
	ArgString ArgKind = iota
	ArgU64
	ArgBool
	ArgAddress
	ArgBytes
	ArgList
	ArgRaw
)

// String returns the kind name
func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgU64:
		return "u64"
	case ArgBool:
		return "bool"
	case ArgAddress:
		return "address"
	case ArgBytes:
		return "bytes"
	case ArgList:
		return "list"
	case ArgRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Arg is a single entry function or view argument. The node API expects u64 values
// as decimal strings, byte vectors as 0x-prefixed hex and vectors as JSON arrays.
type Arg struct {
	kind  ArgKind
	str   string
	num   uint64
	flag  bool
	bytes []byte
	list  []Arg
	raw   json.RawMessage
}

// String wraps a string argument
func String(s string) Arg { return Arg{kind: ArgString, str: s} }

// Uint wraps an unsigned integer argument
func Uint(v uint64) Arg { return Arg{kind: ArgU64, num: v} }

// Bool wraps a boolean argument
func Bool(b bool) Arg { return Arg{kind: ArgBool, flag: b} }

// Address wraps an account address argument
func Address(addr string) Arg { return Arg{kind: ArgAddress, str: addr} }

// Bytes wraps a byte vector argument
func Bytes(b []byte) Arg {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Arg{kind: ArgBytes, bytes: cp}
}

// List wraps a vector argument
func List(items ...Arg) Arg {
	if items == nil {
		items = []Arg{}
	}
	return Arg{kind: ArgList, list: items}
}

// Raw wraps an already encoded JSON value
func Raw(v json.RawMessage) Arg {
	cp := make(json.RawMessage, len(v))
	copy(cp, v)
	return Arg{kind: ArgRaw, raw: cp}
}

// Strings converts plain strings into string arguments
func Strings(values ...string) []Arg {
	args := make([]Arg, 0, len(values))
	for _, v := range values {
		args = append(args, String(v))
	}
	return args
}

// Kind returns the variant tag
func (a Arg) Kind() ArgKind { return a.kind }

// Value returns the variant payload as a plain Go value
func (a Arg) Value() any {
	switch a.kind {
	case ArgString, ArgAddress:
		return a.str
	case ArgU64:
		return a.num
	case ArgBool:
		return a.flag
	case ArgBytes:
		return a.bytes
	case ArgList:
		items := make([]any, 0, len(a.list))
		for _, item := range a.list {
			items = append(items, item.Value())
		}
		return items
	case ArgRaw:
		return []byte(a.raw)
	default:
		return nil
	}
}

// Items returns the elements of a list argument
func (a Arg) Items() []Arg {
	return a.list
}

// MarshalJSON encodes the argument in node API form
func (a Arg) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case ArgString, ArgAddress:
		return json.Marshal(a.str)
	case ArgU64:
		return json.Marshal(strconv.FormatUint(a.num, 10))
	case ArgBool:
		return json.Marshal(a.flag)
	case ArgBytes:
		return json.Marshal("0x" + hex.EncodeToString(a.bytes))
	case ArgList:
		if a.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.list)
	case ArgRaw:
		if len(a.raw) == 0 {
			return []byte("null"), nil
		}
		return a.raw, nil
	default:
		return nil, fmt.Errorf("unknown argument kind %d", a.kind)
	}
}

// UnmarshalJSON decodes strings, bools and arrays into their variants and keeps
// every other value as raw JSON
func (a *Arg) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty argument")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*a = Bool(b)
	case '[':
		var items []Arg
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*a = List(items...)
	default:
		if v, err := strconv.ParseUint(string(data), 10, 64); err == nil {
			*a = Uint(v)
			return nil
		}
		*a = Raw(json.RawMessage(data))
	}
	return nil
}

// Equal reports whether two arguments encode to the same JSON
func (a Arg) Equal(b Arg) bool {
	left, err1 := json.Marshal(a)
	right, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(left, right)
}

// ParseArg converts a typed command line token into an argument.
// Accepted prefixes are u64:, bool:, address:, hex: and string:; untyped tokens are strings.
func ParseArg(token string) (Arg, error) {
	prefix, value, found := strings.Cut(token, ":")
	if !found || strings.HasPrefix(token, "0x") {
		return String(token), nil
	}

	switch prefix {
	case "u64":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return Arg{}, fmt.Errorf("invalid u64 argument %q: %w", value, err)
		}
		return Uint(v), nil
	case "bool":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return Arg{}, fmt.Errorf("invalid bool argument %q: %w", value, err)
		}
		return Bool(v), nil
	case "address":
		if !strings.HasPrefix(value, "0x") {
			return Arg{}, fmt.Errorf("address argument must start with 0x: %s", value)
		}
		return Address(value), nil
	case "hex":
		b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return Arg{}, fmt.Errorf("invalid hex argument %q: %w", value, err)
		}
		return Bytes(b), nil
	case "string":
		return String(value), nil
	default:
		return String(token), nil
	}
}
