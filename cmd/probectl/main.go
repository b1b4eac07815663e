package main

import (
	"os"

	"github.com/openobservatory/probecore/cmd/probectl/cmd"
	"github.com/openobservatory/probecore/internal/common/logging"
)

// Config is handled by cmd/params.go
func main() {
	logging.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
