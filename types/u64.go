package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// U64 is an unsigned 64-bit value that the node API renders as a decimal string.
// It decodes from either a JSON string or a JSON number and always encodes as a string.
type U64 uint64

// MarshalJSON encodes the value as a decimal string
func (u U64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

// UnmarshalJSON accepts "123", 123 and null
func (u *U64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid u64 string: %w", err)
		}
		if s == "" {
			*u = 0
			return nil
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid u64 value %q: %w", s, err)
		}
		*u = U64(v)
		return nil
	}

	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 value %s: %w", string(data), err)
	}
	*u = U64(v)
	return nil
}

// Uint64 returns the plain integer value
func (u U64) Uint64() uint64 {
	return uint64(u)
}

// String returns the decimal representation
func (u U64) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// ParseAmount reads an unsigned amount out of a dynamically typed JSON value.
// Strings holding decimal digits and non-negative integral numbers are accepted.
func ParseAmount(v any) (uint64, bool) {
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		parsed, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
