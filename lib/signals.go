package lib

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gravitational/finance-session/lib/logger"
)

type Terminable interface {
	// Shutdown attempts to gracefully terminate.
	Shutdown(context.Context) error
	// Close does a fast (force) termination.
	Close()
}

// Resumable is implemented by apps that react to the "foreground" event.
type Resumable interface {
	Resume(context.Context)
}

// ServeSignals blocks until the app is terminated by SIGTERM or SIGINT.
// SIGUSR1 is forwarded to the app if it implements Resumable.
func ServeSignals(app Terminable, shutdownTimeout time.Duration) {
	ctx := context.Background()
	log := logger.Standard()
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC,
		syscall.SIGTERM, // graceful shutdown
		syscall.SIGINT,  // graceful-then-fast shutdown
		syscall.SIGUSR1, // resume
	)
	defer signal.Stop(sigC)

	gracefulShutdown := func() {
		tctx, tcancel := context.WithTimeout(ctx, shutdownTimeout)
		defer tcancel()
		log.Infof("Attempting graceful shutdown...")
		if err := app.Shutdown(tctx); err != nil {
			log.Infof("Graceful shutdown failed. Trying fast shutdown...")
			app.Close()
		}
	}
	var alreadyInterrupted bool
	for {
		signal := <-sigC
		switch signal {
		case syscall.SIGTERM:
			gracefulShutdown()
			return
		case syscall.SIGINT:
			if alreadyInterrupted {
				app.Close()
				return
			}
			go gracefulShutdown()
			alreadyInterrupted = true
		case syscall.SIGUSR1:
			if resumable, ok := app.(Resumable); ok {
				log.Debug("Received SIGUSR1, resuming")
				resumable.Resume(ctx)
			}
		}
	}
}
