// Package exit terminates the process on a startup failure: a
// ConfigError (§7), or a logger that cannot be initialized. Every error
// after startup is handled locally by its owning component and surfaced
// through logs instead.
package exit

import (
	"os"

	"mongorsop/internal/logger"
)

func OnError(err error) {
	if err != nil {
		os.Exit(1)
	}
}

func OnErrorWithMessage(err error, message string) {
	if err != nil {
		logger.Error(message, logger.F("error", err))
		os.Exit(1)
	}
}
