package suite

// experimentalGateEnabled controls whether suites marked Experimental are hidden unless the user opted in.
// The gate is currently off; experimental suites always run.
const experimentalGateEnabled = false

type longRunningKey struct {
	autoRun           bool
	foregroundAllowed bool
	settingsPresent   bool
}

// longRunningPolicy decides whether the long-running group is appended to a suite's test list.
// Every combination is listed so that the decision is visible in one place. When settings are
// absent, foregroundAllowed is always false.
var longRunningPolicy = map[longRunningKey]bool{
	{autoRun: false, foregroundAllowed: false, settingsPresent: false}: true,
	{autoRun: false, foregroundAllowed: true, settingsPresent: false}:  true,
	{autoRun: false, foregroundAllowed: false, settingsPresent: true}:  false,
	{autoRun: false, foregroundAllowed: true, settingsPresent: true}:   true,
	{autoRun: true, foregroundAllowed: false, settingsPresent: false}:  true,
	{autoRun: true, foregroundAllowed: true, settingsPresent: false}:   true,
	{autoRun: true, foregroundAllowed: false, settingsPresent: true}:   true,
	{autoRun: true, foregroundAllowed: true, settingsPresent: true}:    true,
}

func includeLongRunning(autoRun bool, settings *Settings) bool {
	key := longRunningKey{autoRun: autoRun, settingsPresent: settings != nil}
	if settings != nil {
		key.foregroundAllowed = settings.LongRunningAllowedInForeground
	}
	return longRunningPolicy[key]
}

func experimentalAllowed(settings *Settings) bool {
	if !experimentalGateEnabled || settings == nil {
		return true
	}
	return settings.ExperimentalEnabled
}
