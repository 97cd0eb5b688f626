package models

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
)

// ID is a 64-bit identifier. It travels as a decimal JSON string because
// values above 2^53 lose precision as JSON numbers.
type ID int64

// ParseID parses a positive decimal identifier.
func ParseID(raw string) (ID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return ID(v), nil
}

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Int64 returns the raw value.
func (id ID) Int64() int64 { return int64(id) }

// MarshalJSON encodes the id as a quoted decimal.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// UnmarshalJSON accepts both "123" and 123.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("invalid id %s", raw)
		}
		raw = unquoted
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", raw)
	}
	*id = ID(v)
	return nil
}

// Value implements driver.Valuer.
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*id = ID(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		*id = ID(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		*id = ID(n)
	case nil:
		*id = 0
	default:
		return fmt.Errorf("unsupported type %T for ID", src)
	}
	return nil
}
