package probectl

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/openobservatory/probecore/internal/suite"
)

// List prints the registered suites and the experiments each of them would run with the current settings.
func (a *App) List(autoRun bool) error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "SUITE\tEXPERIMENTS\tLONG-RUNNING\tWILL RUN\n")
	for _, name := range a.Registry.Names() {
		s, err := a.Registry.New(name, autoRun)
		if err != nil {
			return err
		}
		definition := s.Definition()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			name,
			joinOrDash(definition.Baseline),
			joinOrDash(definition.LongRunning),
			joinOrDash(experimentNames(s.TestList(a.settings()))),
		)
	}
	return nil
}

// Describe prints the composed test list of a single suite, with the origin of each experiment.
func (a *App) Describe(suiteName string, autoRun bool) error {
	s, err := a.Registry.New(suiteName, autoRun)
	if err != nil {
		return err
	}
	definition := s.Definition()
	logrus.Debugf("Composing %s with settings %+v", suiteName, a.settings())

	fmt.Fprintf(a.Out, "%s (%s)\n", definition.Name, definition.Title)
	if definition.Experimental {
		fmt.Fprintf(a.Out, "experimental suite\n")
	}
	for i, experiment := range s.TestList(a.settings()) {
		fmt.Fprintf(a.Out, "%d. %s [%s]\n", i+1, experiment.Name, experiment.Origin)
	}
	return nil
}

func experimentNames(experiments []suite.Experiment) []string {
	names := make([]string, len(experiments))
	for i, e := range experiments {
		names[i] = e.Name
	}
	return names
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
