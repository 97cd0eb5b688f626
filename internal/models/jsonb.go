package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

func jsonScan(src any, dest any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for jsonb column", src)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

// StringList is a JSONB array of strings.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonValue([]string(l))
}

func (l *StringList) Scan(src any) error {
	*l = nil
	return jsonScan(src, (*[]string)(l))
}

// LooseList is a JSONB array whose elements carry no fixed shape.
type LooseList []any

func (l LooseList) Value() (driver.Value, error) {
	if l == nil {
		l = LooseList{}
	}
	return jsonValue([]any(l))
}

func (l *LooseList) Scan(src any) error {
	*l = nil
	return jsonScan(src, (*[]any)(l))
}
