package types

import (
	"bytes"
	"encoding/json"
)

// NullableInt64 tracks whether an integer reference was explicitly present in JSON,
// so partial updates can tell "clear it" (null) apart from "leave it" (absent).
type NullableInt64 struct {
	Valid bool
	Value *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed int64
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Clone returns a copy of the NullableInt64.
func (n NullableInt64) Clone() NullableInt64 {
	if n.Value == nil {
		return NullableInt64{Valid: n.Valid}
	}
	copy := *n.Value
	return NullableInt64{Valid: n.Valid, Value: &copy}
}
