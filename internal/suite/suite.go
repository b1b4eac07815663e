// Package suite composes the list of experiments a suite runs.
//
// A Suite is built from a Definition: a baseline group that always runs and a long-running group
// that runs only when the run mode or the user's settings allow it. Whether a suite runs on behalf
// of the user or of the background scheduler is fixed when the Suite is created (New or
// NewForAutoRun) and decides the Origin of every experiment in its list.
//
// The list is composed on the first call to TestList and cached for the lifetime of the Suite;
// later calls return the same content regardless of the settings passed in.
package suite

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Definition describes a suite. All fields except Name and the experiment groups are opaque
// references to presentation resources and are passed through untouched.
type Definition struct {
	// Stable identifier used for routing, e.g., "experimental".
	Name        string
	Title       string
	Description string
	Overview    string
	Icon        string
	Icon24      string
	Color       string
	Theme       string
	ThemeLight  string
	Animation   string
	// Shown instead of results for suites whose results can't be displayed.
	UnavailableResults string
	// Experimental suites are subject to the experimental opt-in gate.
	Experimental bool
	// Experiments that always run, in order.
	Baseline []string
	// Experiments that run only when long-running tests are allowed, in order, after the baseline.
	LongRunning []string
}

// Experiments returns the names of every experiment the suite may run, baseline first.
func (d *Definition) Experiments() []string {
	names := make([]string, 0, len(d.Baseline)+len(d.LongRunning))
	names = append(names, d.Baseline...)
	return append(names, d.LongRunning...)
}

type Suite struct {
	definition Definition
	autoRun    bool

	once     sync.Once
	testList []Experiment
}

// New returns a suite run on behalf of the user.
func New(definition Definition) *Suite {
	return newSuite(definition, false)
}

// NewForAutoRun returns a suite run by the background scheduler.
func NewForAutoRun(definition Definition) *Suite {
	return newSuite(definition, true)
}

func newSuite(definition Definition, autoRun bool) *Suite {
	definition.Baseline = slices.Clone(definition.Baseline)
	definition.LongRunning = slices.Clone(definition.LongRunning)
	return &Suite{definition: definition, autoRun: autoRun}
}

func (s *Suite) Name() string {
	return s.definition.Name
}

func (s *Suite) AutoRun() bool {
	return s.autoRun
}

// Definition returns a copy of the suite's definition.
func (s *Suite) Definition() Definition {
	d := s.definition
	d.Baseline = slices.Clone(d.Baseline)
	d.LongRunning = slices.Clone(d.LongRunning)
	return d
}

// TestList returns the experiments to run, in order. settings may be nil. The list is composed
// once; it is safe to call TestList from several goroutines.
func (s *Suite) TestList(settings *Settings) []Experiment {
	s.once.Do(func() {
		s.testList = tag(s.assemble(settings), s.origin())
	})
	return slices.Clone(s.testList)
}

func (s *Suite) origin() Origin {
	if s.autoRun {
		return OriginAutoRun
	}
	return OriginManual
}

func (s *Suite) assemble(settings *Settings) []Experiment {
	if s.definition.Experimental && !experimentalAllowed(settings) {
		return []Experiment{}
	}
	names := slices.Clone(s.definition.Baseline)
	if includeLongRunning(s.autoRun, settings) {
		names = append(names, s.definition.LongRunning...)
	}
	experiments := make([]Experiment, len(names))
	for i, name := range names {
		experiments[i] = Experiment{Name: name, Suite: s.definition.Name}
	}
	return experiments
}

// tag sets the origin of every experiment. It runs over the complete list, after assembly.
func tag(experiments []Experiment, origin Origin) []Experiment {
	for i := range experiments {
		experiments[i].Origin = origin
	}
	return experiments
}
