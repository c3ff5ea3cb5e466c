package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// VariableValues maps a template placeholder number ("1", "2", ...) to a raw
// value or a symbolic reference such as "{firstName}". Stored as JSON text.
type VariableValues map[string]string

func (v VariableValues) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]string(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *VariableValues) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*v = nil
		return nil
	}
	return v.UnmarshalJSON(raw)
}

// UnmarshalJSON accepts non-string scalar values and stores them as text.
func (v *VariableValues) UnmarshalJSON(data []byte) error {
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	if generic == nil {
		*v = nil
		return nil
	}
	*v = VariableValuesFrom(generic)
	return nil
}

// VariableValuesFrom converts a decoded JSON object. Nested values are dropped.
func VariableValuesFrom(generic map[string]interface{}) VariableValues {
	out := make(VariableValues, len(generic))
	for key, value := range generic {
		if s, ok := Scalar(value); ok {
			out[key] = s
		}
	}
	return out
}

// Scalar formats a decoded JSON string, number or bool as text.
func Scalar(value interface{}) (string, bool) {
	switch t := value.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// RawJSON is an opaque JSON document stored as text.
type RawJSON []byte

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return string(r), nil
}

func (r *RawJSON) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil {
		return err
	}
	*r = append((*r)[:0], raw...)
	return nil
}

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

func scanBytes(src interface{}) ([]byte, error) {
	switch t := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
