package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapscript/pkg/core"
)

// Factory builds an unconnected adapter. A nil logger discards logs.
type Factory func(*slog.Logger) Adapter

// ErrNoAdapterType is returned by NewAdapter when the config names no type.
var ErrNoAdapterType = errors.New("adapter type not specified")

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes an adapter available under name. Adapter packages call it
// from init. Registering the same name twice panics, as database/sql does
// for drivers.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("adapter: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("adapter: Register called twice for " + name)
	}
	factories[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// NewAdapter returns an unconnected adapter for cfg.Type.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoAdapterType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// ListAdapters returns the registered adapter names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// IsRegistered reports whether an adapter is registered under name.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownAdapterError is returned when a target names an adapter that is not
// registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check your target.type in leapscript.yaml", e.Type, e.Available)
}
