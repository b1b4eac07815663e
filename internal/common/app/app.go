package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/openobservatory/probecore/internal/common/probecontext"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// Every session and run context derives from it, so a signal cancels whatever is in flight.
func CreateContextWithShutdown() (*probecontext.Context, func()) {
	ctx, cancel := probecontext.WithCancel(probecontext.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			ctx.Log.Info("Received shutdown signal, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(c)
		cancel()
	}
}
