package plugin

import (
	"fmt"
	"slices"
	"sync"

	"github.com/srand/jolt/datasync/pkg/utils"
)

type ReaderFactory func() ReaderTask
type WriterFactory func() WriterTask

// Resolves plugin names to fresh task instances.
type Loader interface {
	LoadReader(name string) (ReaderTask, error)
	LoadWriter(name string) (WriterTask, error)
}

// A static name to constructor map.
type Registry struct {
	sync.RWMutex
	readers map[string]ReaderFactory
	writers map[string]WriterFactory
}

func NewRegistry() *Registry {
	return &Registry{
		readers: map[string]ReaderFactory{},
		writers: map[string]WriterFactory{},
	}
}

func (r *Registry) RegisterReader(name string, factory ReaderFactory) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.readers[name]; ok {
		return fmt.Errorf("%w: reader %q", utils.ErrExists, name)
	}
	r.readers[name] = factory
	return nil
}

func (r *Registry) RegisterWriter(name string, factory WriterFactory) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.writers[name]; ok {
		return fmt.Errorf("%w: writer %q", utils.ErrExists, name)
	}
	r.writers[name] = factory
	return nil
}

func (r *Registry) LoadReader(name string) (ReaderTask, error) {
	r.RLock()
	defer r.RUnlock()
	factory, ok := r.readers[name]
	if !ok {
		return nil, fmt.Errorf("%w: reader %q", utils.ErrNotFound, name)
	}
	return factory(), nil
}

func (r *Registry) LoadWriter(name string) (WriterTask, error) {
	r.RLock()
	defer r.RUnlock()
	factory, ok := r.writers[name]
	if !ok {
		return nil, fmt.Errorf("%w: writer %q", utils.ErrNotFound, name)
	}
	return factory(), nil
}

// Sorted names of registered readers.
func (r *Registry) Readers() []string {
	r.RLock()
	defer r.RUnlock()
	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Sorted names of registered writers.
func (r *Registry) Writers() []string {
	r.RLock()
	defer r.RUnlock()
	names := make([]string, 0, len(r.writers))
	for name := range r.writers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Registry populated by the builtin plugins' init functions.
var Default = NewRegistry()

// Registers a reader in the default registry. Panics on duplicates, it is
// meant to be called from init.
func RegisterReader(name string, factory ReaderFactory) {
	if err := Default.RegisterReader(name, factory); err != nil {
		panic(err)
	}
}

// Registers a writer in the default registry. Panics on duplicates.
func RegisterWriter(name string, factory WriterFactory) {
	if err := Default.RegisterWriter(name, factory); err != nil {
		panic(err)
	}
}
