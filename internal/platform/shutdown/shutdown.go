package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// NotifyContext is cancelled on the first SIGINT or SIGTERM. A second signal exits
// the process with status 1 so a stuck drain can still be interrupted.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			cancel()
		})
	}

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			os.Exit(1)
		case <-done:
		}
	}()
	return ctx, stop
}
