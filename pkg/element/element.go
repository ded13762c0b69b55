// Package element defines the records that flow from readers to writers.
package element

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column type.
type Type int

const (
	TypeNull Type = iota
	TypeString
	TypeLong
	TypeDouble
	TypeBool
	TypeDate
	TypeBytes
)

var typeNames = map[Type]string{
	TypeNull:   "null",
	TypeString: "string",
	TypeLong:   "long",
	TypeDouble: "double",
	TypeBool:   "bool",
	TypeDate:   "date",
	TypeBytes:  "bytes",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Parses a type name as used in plugin column specifications.
// A few common aliases are accepted.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "string", "str", "text":
		return TypeString, nil
	case "long", "int", "integer", "bigint":
		return TypeLong, nil
	case "double", "float", "number", "decimal":
		return TypeDouble, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "date", "datetime", "timestamp":
		return TypeDate, nil
	case "bytes", "binary":
		return TypeBytes, nil
	case "null":
		return TypeNull, nil
	}
	return TypeNull, fmt.Errorf("unknown column type %q", name)
}

// Layout used when dates are rendered as text.
const DateLayout = "2006-01-02 15:04:05"

// A single typed value.
type Column struct {
	Type  Type
	Value any
}

func NewNullColumn() Column            { return Column{Type: TypeNull} }
func NewStringColumn(v string) Column  { return Column{Type: TypeString, Value: v} }
func NewLongColumn(v int64) Column     { return Column{Type: TypeLong, Value: v} }
func NewDoubleColumn(v float64) Column { return Column{Type: TypeDouble, Value: v} }
func NewBoolColumn(v bool) Column      { return Column{Type: TypeBool, Value: v} }
func NewDateColumn(v time.Time) Column { return Column{Type: TypeDate, Value: v} }
func NewBytesColumn(v []byte) Column   { return Column{Type: TypeBytes, Value: v} }

func (c Column) IsNull() bool {
	return c.Type == TypeNull || c.Value == nil
}

// Approximate in-memory size of the value, used for byte counters and
// byte rate limiting.
func (c Column) ByteSize() int64 {
	switch v := c.Value.(type) {
	case nil:
		return 0
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case int64, float64, time.Time:
		return 8
	case bool:
		return 1
	}
	return 0
}

// Renders the value as text. Null renders as the empty string.
func (c Column) String() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(DateLayout)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	}
	return fmt.Sprint(c.Value)
}

// Converts a raw value into a column of the requested type.
func Convert(raw any, t Type) (Column, error) {
	if raw == nil {
		return NewNullColumn(), nil
	}

	switch t {
	case TypeNull:
		return NewNullColumn(), nil

	case TypeString:
		switch v := raw.(type) {
		case string:
			return NewStringColumn(v), nil
		case float64:
			return NewStringColumn(strconv.FormatFloat(v, 'f', -1, 64)), nil
		}
		return NewStringColumn(fmt.Sprint(raw)), nil

	case TypeLong:
		switch v := raw.(type) {
		case int64:
			return NewLongColumn(v), nil
		case int:
			return NewLongColumn(int64(v)), nil
		case float64:
			return NewLongColumn(int64(v)), nil
		case bool:
			if v {
				return NewLongColumn(1), nil
			}
			return NewLongColumn(0), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return Column{}, fmt.Errorf("cannot convert %q to long", v)
			}
			return NewLongColumn(i), nil
		}

	case TypeDouble:
		switch v := raw.(type) {
		case float64:
			return NewDoubleColumn(v), nil
		case int64:
			return NewDoubleColumn(float64(v)), nil
		case int:
			return NewDoubleColumn(float64(v)), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return Column{}, fmt.Errorf("cannot convert %q to double", v)
			}
			return NewDoubleColumn(f), nil
		}

	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return NewBoolColumn(v), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return Column{}, fmt.Errorf("cannot convert %q to bool", v)
			}
			return NewBoolColumn(b), nil
		case float64:
			return NewBoolColumn(v != 0), nil
		case int64:
			return NewBoolColumn(v != 0), nil
		}

	case TypeDate:
		switch v := raw.(type) {
		case time.Time:
			return NewDateColumn(v), nil
		case string:
			for _, layout := range []string{DateLayout, time.RFC3339, time.DateOnly} {
				if ts, err := time.ParseInLocation(layout, strings.TrimSpace(v), time.Local); err == nil {
					return NewDateColumn(ts), nil
				}
			}
			return Column{}, fmt.Errorf("cannot convert %q to date", v)
		case float64:
			return NewDateColumn(time.Unix(int64(v), 0)), nil
		case int64:
			return NewDateColumn(time.Unix(v, 0)), nil
		}

	case TypeBytes:
		switch v := raw.(type) {
		case []byte:
			return NewBytesColumn(v), nil
		case string:
			return NewBytesColumn([]byte(v)), nil
		}
	}

	return Column{}, fmt.Errorf("cannot convert %T to %s", raw, t)
}

// A row of columns.
type Record struct {
	Columns []Column
}

func NewRecord(columns ...Column) *Record {
	return &Record{Columns: columns}
}

func (r *Record) Add(c Column) {
	r.Columns = append(r.Columns, c)
}

func (r *Record) Len() int {
	return len(r.Columns)
}

// Returns the column at index i, or a null column when out of range.
func (r *Record) Get(i int) Column {
	if i < 0 || i >= len(r.Columns) {
		return NewNullColumn()
	}
	return r.Columns[i]
}

func (r *Record) Set(i int, c Column) error {
	if i < 0 || i >= len(r.Columns) {
		return fmt.Errorf("column index %d out of range [0, %d)", i, len(r.Columns))
	}
	r.Columns[i] = c
	return nil
}

func (r *Record) ByteSize() int64 {
	var size int64
	for _, c := range r.Columns {
		size += c.ByteSize()
	}
	return size
}

// Returns a copy whose column slice can be modified independently.
func (r *Record) Clone() *Record {
	columns := make([]Column, len(r.Columns))
	copy(columns, r.Columns)
	return &Record{Columns: columns}
}

func (r *Record) String() string {
	parts := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
