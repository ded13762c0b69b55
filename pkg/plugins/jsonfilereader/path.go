package jsonfilereader

import (
	"fmt"
	"strconv"
	"strings"
)

// One step of a column path: a member name or an array index.
type step struct {
	key   string
	index int
	isIdx bool
}

// Compiled column path such as "$.user.emails[0]". The leading "$." is
// optional.
type path []step

func compilePath(expr string) (path, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "$")
	expr = strings.TrimPrefix(expr, ".")
	if expr == "" {
		return nil, fmt.Errorf("empty path")
	}

	p := path{}
	for _, part := range strings.Split(expr, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			p = append(p, step{key: name})
		}

		for rest != "" {
			idx, after, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, fmt.Errorf("unterminated index in %q", expr)
			}
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 {
				return nil, fmt.Errorf("bad index %q in %q", idx, expr)
			}
			p = append(p, step{index: i, isIdx: true})
			rest = strings.TrimPrefix(after, "[")
		}
	}
	return p, nil
}

// Looks up the value the path points at. Missing members yield nil.
func (p path) lookup(doc any) any {
	cur := doc
	for _, s := range p {
		switch v := cur.(type) {
		case map[string]any:
			if s.isIdx {
				return nil
			}
			cur = v[s.key]
		case []any:
			if !s.isIdx || s.index >= len(v) {
				return nil
			}
			cur = v[s.index]
		default:
			return nil
		}
	}
	return cur
}
