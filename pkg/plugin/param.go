package plugin

import (
	"fmt"

	"github.com/srand/jolt/datasync/pkg/utils"
)

// Free form plugin parameters as found in the job configuration.
type Param map[string]any

// Decodes the parameters into a typed struct using mapstructure tags.
func (p Param) Decode(out any) error {
	if err := utils.Decode(map[string]any(p), out); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}
	return nil
}

func (p Param) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Deep copy. Nested maps and slices are copied, scalars are shared.
func (p Param) Clone() Param {
	if p == nil {
		return nil
	}
	return cloneValue(map[string]any(p)).(map[string]any)
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case Param:
		return Param(cloneValue(map[string]any(v)).(map[string]any))
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case []byte:
		return append([]byte(nil), v...)
	}
	return v
}
