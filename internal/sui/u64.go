package sui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// U64 decodes a Move u64 value. The JSON-RPC layer encodes u64 as a decimal
// string, while smaller integer types arrive as plain numbers; both are accepted.
type U64 uint64

// UnmarshalJSON implements json.Unmarshaler.
func (u *U64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("decode u64 %q: %w", data, err)
	}
	*u = U64(v)
	return nil
}

// MarshalJSON encodes the value as a decimal string, as the ledger does.
func (u U64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}
