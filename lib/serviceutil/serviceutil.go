package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalContext returns a context that is cancelled on the first
// SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Warn("received signal, cancelling", "signal", sig.String())
		cancel()
	}()

	return ctx
}

var (
	exit      = os.Exit
	hooksLock sync.Mutex
	hooks     []func()
)

// AtExit registers `fn` to run before Fatal exits, most recent first.
func AtExit(fn func()) {
	hooksLock.Lock()
	defer hooksLock.Unlock()
	hooks = append(hooks, fn)
}

func runHooks() {
	hooksLock.Lock()
	pending := hooks
	hooks = nil
	hooksLock.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		pending[i]()
	}
}

// Fatal logs `message` with the error and any extra attributes, runs the
// AtExit hooks, then exits with status 1.
func Fatal(message string, err error, attrs ...any) {
	args := append([]any{"err", err.Error()}, attrs...)
	slog.Error(message, args...)
	runHooks()
	exit(1)
}
