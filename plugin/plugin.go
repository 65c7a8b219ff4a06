// Package plugin holds the factory registry through which transport
// implementations make themselves available to the messaging core.
// Factories register at init; the core resolves them by type and name
// ("transport"/"tcp") when a socket context is assembled.
package plugin

import (
	"fmt"
	"sync"
)

// Type is the plugin category (e.g. "transport").
type Type string

// Plugin is an instantiated plugin. The concrete capability is type
// asserted by the subsystem that requested it.
type Plugin any

// Factory creates and tears down plugin instances of one kind.
// Implementations must be safe for concurrent Setup/Destroy calls.
type Factory interface {
	// Type returns the plugin category.
	Type() Type
	// Name returns the factory name within its category.
	Name() string
	// Setup builds a plugin instance from raw configuration values.
	Setup(v map[string]any) (Plugin, error)
	// Destroy releases the instance's resources.
	Destroy(Plugin) error
}

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

func key(t Type, name string) string {
	return string(t) + "_" + name
}

// Register adds a factory to the registry. Registering the same
// type/name pair twice is a programming error and panics.
func Register(f Factory) {
	mu.Lock()
	defer mu.Unlock()
	k := key(f.Type(), f.Name())
	if _, ok := factories[k]; ok {
		panic(fmt.Sprintf("plugin: factory %s already registered", k))
	}
	factories[k] = f
}

// Get resolves a factory by type and name.
func Get(t Type, name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[key(t, name)]
	if !ok {
		return nil, fmt.Errorf("plugin: factory %s not registered", key(t, name))
	}
	return f, nil
}

// List returns the registered factory names for a type.
func List(t Type) []string {
	mu.RLock()
	defer mu.RUnlock()
	var names []string
	for _, f := range factories {
		if f.Type() == t {
			names = append(names, f.Name())
		}
	}
	return names
}
