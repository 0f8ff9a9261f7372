package lib

import (
	"os"

	"github.com/gravitational/trace"

	"github.com/gravitational/finance-session/lib/logger"
)

// Bail exits with nonzero exit code and logs every error of an aggregate.
func Bail(err error) {
	log := logger.Standard()
	if agg, ok := trace.Unwrap(err).(trace.Aggregate); ok {
		for _, err := range agg.Errors() {
			log.WithError(err).Error("Terminating...")
		}
	} else {
		log.WithError(err).Error("Terminating...")
	}
	os.Exit(1)
}
