package suite

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/openobservatory/probecore/internal/common/probeerrors"
)

// Registry maps suite names to definitions.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Definition)}
}

// Register adds a definition to the registry. It returns an error if the definition is invalid or
// a suite with the same name is already registered.
func (r *Registry) Register(definition Definition) error {
	if err := Validate(definition); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.definitions[definition.Name]; ok {
		return errors.WithStack(&probeerrors.ErrValidation{
			Name:    "Name",
			Value:   definition.Name,
			Message: "a suite with this name is already registered",
		})
	}
	definition.Baseline = slices.Clone(definition.Baseline)
	definition.LongRunning = slices.Clone(definition.LongRunning)
	r.definitions[definition.Name] = definition
	return nil
}

// MustRegister is Register for definitions known at compile time; an invalid definition is a bug and panics.
func (r *Registry) MustRegister(definitions ...Definition) *Registry {
	for _, definition := range definitions {
		if err := r.Register(definition); err != nil {
			panic(fmt.Sprintf("invalid suite definition: %s", err))
		}
	}
	return r
}

// Lookup returns a copy of the named definition.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	definition, ok := r.definitions[name]
	if !ok {
		return Definition{}, false
	}
	definition.Baseline = slices.Clone(definition.Baseline)
	definition.LongRunning = slices.Clone(definition.LongRunning)
	return definition, true
}

// New returns a Suite for the named definition, in auto-run mode if autoRun is true.
func (r *Registry) New(name string, autoRun bool) (*Suite, error) {
	definition, ok := r.Lookup(name)
	if !ok {
		return nil, errors.WithStack(&probeerrors.ErrValidation{
			Name:    "suite",
			Value:   name,
			Message: fmt.Sprintf("unknown suite; known suites are %v", r.Names()),
		})
	}
	if autoRun {
		return NewForAutoRun(definition), nil
	}
	return New(definition), nil
}

// Names returns the names of all registered suites, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.definitions)
	slices.Sort(names)
	return names
}

// Validate returns a multierror describing every problem with the definition, or nil.
func Validate(definition Definition) error {
	var result *multierror.Error
	if definition.Name == "" {
		result = multierror.Append(result, errors.New("suite has an empty name"))
	}
	seen := make(map[string]bool)
	for _, name := range definition.Experiments() {
		if name == "" {
			result = multierror.Append(result, errors.Errorf("suite %q has an experiment with an empty name", definition.Name))
			continue
		}
		if seen[name] {
			result = multierror.Append(result, errors.Errorf("suite %q lists experiment %q more than once", definition.Name, name))
		}
		seen[name] = true
	}
	return result.ErrorOrNil()
}
