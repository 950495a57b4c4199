package display

import (
	"slices"

	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	BackendHAL      = "hal"
	BackendHeadless = "headless"
)

// Factory creates a new backend instance.
type Factory func() Backend

// priority orders the known backends. GPU output is preferred over the CPU
// fallback.
var priority = []string{BackendHAL, BackendHeadless}

// backends holds registered factories.
var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(priority...),
)

func init() {
	Register(BackendHeadless, func() Backend { return NewHeadless() })
}

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	backends.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	backends.Unregister(name)
}

// Available returns the registered backend names.
func Available() []string {
	return backends.Available()
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return backends.Has(name)
}

// Get returns a new backend instance by name.
// An empty name selects the default backend.
func Get(name string) (Backend, error) {
	if name == "" {
		return Default()
	}
	b := backends.Get(name)
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	return b, nil
}

// Default returns the highest-priority registered backend.
func Default() (Backend, error) {
	b := backends.Best()
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	return b, nil
}

// DefaultName returns the name Default would pick.
func DefaultName() string {
	return backends.BestName()
}

// Candidates returns the registered backend names, most preferred first.
// Backends outside the priority list follow in name order.
func Candidates() []string {
	var out []string
	for _, name := range priority {
		if backends.Has(name) {
			out = append(out, name)
		}
	}
	var rest []string
	for _, name := range backends.Available() {
		if !slices.Contains(priority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
