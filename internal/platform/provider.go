package platform

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Provider bundles the device-side collaborators of one backend.
type Provider struct {
	Navigator     Navigator
	Screenshotter Screenshotter
	Artifacts     ArtifactReader
	Verifier      VerificationExecutor
	Actions       ActionExecutor
}

// Options configure a backend at construction time.
type Options struct {
	BaseURL string
	TeamID  string
	Timeout time.Duration
}

// ErrUnsupported is returned for a backend name nobody registered.
var ErrUnsupported = fmt.Errorf("unsupported device backend")

// NewProviderFunc builds a Provider from Options.
type NewProviderFunc func(Options) (*Provider, error)

var (
	mu       sync.RWMutex
	backends = map[string]NewProviderFunc{}
)

// Register makes a backend available under name. Backend packages call it
// from init().
func Register(name string, fn NewProviderFunc) {
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(name)] = fn
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProvider returns the Provider of the named backend.
func NewProvider(name string, opts Options) (*Provider, error) {
	mu.RLock()
	fn, ok := backends[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnsupported, name, strings.Join(Backends(), ", "))
	}
	return fn(opts)
}
