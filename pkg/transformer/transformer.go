// Package transformer implements the optional record mutation stages
// between a reader and its channel.
package transformer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/srand/jolt/datasync/pkg/element"
	"github.com/srand/jolt/datasync/pkg/utils"
)

// A record mutation. Evaluate returns the transformed record, or nil if
// the record is to be filtered out.
type Transformer interface {
	Evaluate(record *element.Record, columnIndex int, args []string) (*element.Record, error)
}

type TransformerFunc func(record *element.Record, columnIndex int, args []string) (*element.Record, error)

func (fn TransformerFunc) Evaluate(record *element.Record, columnIndex int, args []string) (*element.Record, error) {
	return fn(record, columnIndex, args)
}

// One stage of a transform chain as found in the task configuration.
type Config struct {
	Name        string   `mapstructure:"name"`
	ColumnIndex int      `mapstructure:"column_index"`
	Args        []string `mapstructure:"args"`
}

type Registry struct {
	sync.RWMutex
	transformers map[string]Transformer
}

func NewRegistry() *Registry {
	return &Registry{transformers: map[string]Transformer{}}
}

func (r *Registry) Register(name string, t Transformer) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.transformers[name]; ok {
		return fmt.Errorf("%w: transformer %q", utils.ErrExists, name)
	}
	r.transformers[name] = t
	return nil
}

func (r *Registry) Get(name string) (Transformer, error) {
	r.RLock()
	defer r.RUnlock()
	t, ok := r.transformers[name]
	if !ok {
		return nil, fmt.Errorf("%w: transformer %q", utils.ErrNotFound, name)
	}
	return t, nil
}

func (r *Registry) Names() []string {
	r.RLock()
	defer r.RUnlock()
	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Registry with the builtin transformers.
var Default = NewRegistry()

func init() {
	for name, fn := range map[string]TransformerFunc{
		"dx_substr":  substr,
		"dx_pad":     pad,
		"dx_replace": replace,
		"dx_filter":  filter,
	} {
		if err := Default.Register(name, fn); err != nil {
			panic(err)
		}
	}
}
