package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON holds an arbitrary serialized payload. It is stored as text in SQL
// columns and emitted inline when the owning record is marshalled.
type JSON []byte

// MarshalJSONValue encodes v into a JSON payload.
func MarshalJSONValue(v any) (JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(raw), nil
}

// Decode unmarshals the payload into dst.
func (j JSON) Decode(dst any) error {
	if len(j) == 0 {
		return json.Unmarshal([]byte("null"), dst)
	}
	return json.Unmarshal(j, dst)
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("json: unsupported scan type %T", value)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*j = nil
		return nil
	}
	*j = append(JSON(nil), trimmed...)
	return nil
}
