package detect

import (
	"sort"
	"strings"
	"sync"
)

// Constructor builds a detector from its configuration. Construction is the
// only place a *ConfigError may surface.
type Constructor func(cfg Config) (Detector, error)

// Registry maps detector kinds to constructors. It is written during setup
// and read-only afterwards; Detector lookups are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[Kind]Constructor
}

// NewRegistry returns a registry with all built-in detector kinds
// registered. Optional kinds (the outlier models) are added by linking in
// pkg/detect/outlier, which registers itself against Default.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[Kind]Constructor)}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(KindThreshold, NewThreshold)
	r.Register(KindZScore, NewZScore)
	r.Register(KindMAD, NewMAD)
	r.Register(KindIQR, NewIQR)
	r.Register(KindKMeans, NewKMeans)
	r.Register(KindEnsemble, func(cfg Config) (Detector, error) {
		return NewEnsemble(r, cfg)
	})
}

// Register adds a constructor for the given kind. Registering the same kind
// twice replaces the previous constructor, which makes registration
// idempotent under concurrent first use.
func (r *Registry) Register(kind Kind, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[kind] = ctor
}

// Has reports whether a kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[kind]
	return ok
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Detector constructs the detector described by cfg. A missing or unknown
// type yields a *ConfigError whose message enumerates the registered kinds,
// so a caller asking for an unlinked optional detector sees exactly what is
// available.
func (r *Registry) Detector(cfg Config) (Detector, error) {
	if cfg.Type == "" {
		return nil, configErrorf("detector config is missing the type field (registered: %s)", r.kindList())
	}

	r.mu.RLock()
	ctor, ok := r.ctors[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, configErrorf("unknown detector type %q (registered: %s)", cfg.Type, r.kindList())
	}
	return ctor(cfg)
}

func (r *Registry) kindList() string {
	kinds := r.Kinds()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, built lazily on first use.
// Optional detector packages register against it from their init functions,
// so by the time application code calls Default the capability set is final.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
