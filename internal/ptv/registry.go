package ptv

import (
	"context"
	"sort"
	"sync"
)

// DetectorFunc converts one camera's preprocessed image into targets.
type DetectorFunc func(img *Image, par DetectParams) []Target

// TrackerFunc runs a linking pass over a frame set.
type TrackerFunc func(ctx context.Context, par *TrackParams, fs *FrameSet, dir Direction) (*TrackStats, error)

// AlgorithmDefinition describes a registered detection/tracking
// algorithm pair. Either function may be nil when a variant only
// replaces one side of the pipeline; callers fall back to the default.
type AlgorithmDefinition struct {
	Name        string
	Description string
	Detect      DetectorFunc
	Track       TrackerFunc
}

// Registry holds named algorithm variants. Populated at startup from a
// configuration-driven list; safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*AlgorithmDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*AlgorithmDefinition)}
}

// Register adds a definition, replacing any existing one of the same name.
func (r *Registry) Register(def *AlgorithmDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// Get retrieves a definition by name.
func (r *Registry) Get(name string) (*AlgorithmDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns the registered names sorted for deterministic output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry carries the built-in algorithms.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(&AlgorithmDefinition{
		Name:        "default",
		Description: "threshold/connected-component detector with velocity-gated greedy linking",
		Detect:      DetectTargets,
		Track:       Track,
	})
}
