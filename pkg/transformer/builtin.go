package transformer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/srand/jolt/datasync/pkg/element"
)

func argInt(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %s", name)
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[i]))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid argument %s: %q", name, args[i])
	}
	return n, nil
}

func stringColumn(record *element.Record, columnIndex int) (string, bool, error) {
	if columnIndex < 0 || columnIndex >= record.Len() {
		return "", false, fmt.Errorf("column index %d out of range [0, %d)", columnIndex, record.Len())
	}
	c := record.Get(columnIndex)
	if c.IsNull() {
		return "", true, nil
	}
	return c.String(), false, nil
}

// dx_substr: args [start, length]. Keeps length runes from start.
func substr(record *element.Record, columnIndex int, args []string) (*element.Record, error) {
	start, err := argInt(args, 0, "start")
	if err != nil {
		return nil, err
	}
	length, err := argInt(args, 1, "length")
	if err != nil {
		return nil, err
	}

	value, null, err := stringColumn(record, columnIndex)
	if err != nil || null {
		return record, err
	}

	runes := []rune(value)
	if start > len(runes) {
		start = len(runes)
	}
	end := min(start+length, len(runes))

	return record, record.Set(columnIndex, element.NewStringColumn(string(runes[start:end])))
}

// dx_pad: args [l|r, length, pad]. Pads or truncates the value to length
// runes, on the left or on the right.
func pad(record *element.Record, columnIndex int, args []string) (*element.Record, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("dx_pad expects 3 arguments, got %d", len(args))
	}
	side := strings.ToLower(args[0])
	if side != "l" && side != "r" {
		return nil, fmt.Errorf("invalid pad side %q", args[0])
	}
	length, err := argInt(args, 1, "length")
	if err != nil {
		return nil, err
	}
	padding := []rune(args[2])
	if len(padding) == 0 {
		return nil, fmt.Errorf("empty pad string")
	}

	value, _, err := stringColumn(record, columnIndex)
	if err != nil {
		return nil, err
	}

	runes := []rune(value)
	if len(runes) >= length {
		if side == "l" {
			runes = runes[:length]
		} else {
			runes = runes[len(runes)-length:]
		}
		return record, record.Set(columnIndex, element.NewStringColumn(string(runes)))
	}

	fill := make([]rune, 0, length-len(runes))
	for len(fill) < length-len(runes) {
		fill = append(fill, padding[len(fill)%len(padding)])
	}

	if side == "l" {
		runes = append(fill, runes...)
	} else {
		runes = append(runes, fill...)
	}
	return record, record.Set(columnIndex, element.NewStringColumn(string(runes)))
}

// dx_replace: args [start, length, replacement]. Replaces length runes at
// start with the replacement.
func replace(record *element.Record, columnIndex int, args []string) (*element.Record, error) {
	start, err := argInt(args, 0, "start")
	if err != nil {
		return nil, err
	}
	length, err := argInt(args, 1, "length")
	if err != nil {
		return nil, err
	}
	if len(args) < 3 {
		return nil, fmt.Errorf("missing argument replacement")
	}

	value, null, err := stringColumn(record, columnIndex)
	if err != nil || null {
		return record, err
	}

	runes := []rune(value)
	if start > len(runes) {
		return nil, fmt.Errorf("start %d beyond value length %d", start, len(runes))
	}
	end := min(start+length, len(runes))

	out := string(runes[:start]) + args[2] + string(runes[end:])
	return record, record.Set(columnIndex, element.NewStringColumn(out))
}

// dx_filter: args [operator, value]. Drops records whose column matches.
// Operators: like, not like, =, !=, >, >=, <, <=. Comparisons are numeric
// when both sides parse as numbers, textual otherwise.
func filter(record *element.Record, columnIndex int, args []string) (*element.Record, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("dx_filter expects 2 arguments, got %d", len(args))
	}
	op := strings.ToLower(strings.TrimSpace(args[0]))
	operand := args[1]

	value, null, err := stringColumn(record, columnIndex)
	if err != nil {
		return nil, err
	}

	var match bool
	switch op {
	case "like":
		match = !null && strings.Contains(value, operand)
	case "not like":
		match = null || !strings.Contains(value, operand)
	case "=", "==", "!=", ">", ">=", "<", "<=":
		if null {
			match = op == "!=" || (op == "=" || op == "==") && operand == ""
			break
		}
		match = compare(value, operand, op)
	default:
		return nil, fmt.Errorf("unknown filter operator %q", args[0])
	}

	if match {
		return nil, nil
	}
	return record, nil
}

func compare(value, operand, op string) bool {
	cmp := strings.Compare(value, operand)
	if a, err := strconv.ParseFloat(value, 64); err == nil {
		if b, err := strconv.ParseFloat(operand, 64); err == nil {
			switch {
			case a < b:
				cmp = -1
			case a > b:
				cmp = 1
			default:
				cmp = 0
			}
		}
	}

	switch op {
	case "=", "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}
