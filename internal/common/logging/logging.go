package logging

import (
	"io"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

// ConfigureCommandLineLogging sets up the standard logger for command line tools: plain messages on stdout.
func ConfigureCommandLineLogging() {
	commandLineFormatter := new(CommandLineFormatter)
	log.SetFormatter(commandLineFormatter)
	log.SetOutput(os.Stdout)
}

// ConfigureLogging sets up the standard logger with timestamps, suitable for long-lived or scheduled runs.
func ConfigureLogging(out io.Writer, level log.Level) {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(out)
	log.SetLevel(level)
}

func sortedKeys(fields log.Fields) []string {
	keys := maps.Keys(fields)
	sort.Strings(keys)
	return keys
}
