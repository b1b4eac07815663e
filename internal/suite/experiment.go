package suite

// Origin records why an experiment is being run.
type Origin string

const (
	// OriginManual is used for experiments started by the user.
	OriginManual Origin = "manual"
	// OriginAutoRun is used for experiments started by the background scheduler.
	OriginAutoRun Origin = "autorun"
)

// Experiment is a single named test within a suite.
type Experiment struct {
	Name string
	// Name of the suite the experiment belongs to.
	Suite  string
	Origin Origin
}

// Settings is a snapshot of the user preferences that affect composition.
// A nil *Settings means that no preferences are available, in which case the permissive defaults apply.
type Settings struct {
	ExperimentalEnabled            bool
	LongRunningAllowedInForeground bool
}
