package swarm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mongorsop/internal/logger"
	"mongorsop/internal/rsops"
)

// parseCIDRHost extracts the bare IP from a docker task network
// address, which the engine API reports in CIDR form ("10.0.0.2/24").
func parseCIDRHost(cidr string) (string, bool) {
	ip := cidr
	if idx := strings.IndexByte(cidr, '/'); idx != -1 {
		ip = cidr[:idx]
	}
	if ip == "" {
		return "", false
	}
	return ip, true
}

// WaitForServiceReady blocks until the observer sees at least one
// running task for the configured service, or the deadline elapses.
// The supervisor calls this once before its first cycle so a fresh
// deployment doesn't spend its first cycle observing zero tasks and
// classifying an empty expected set (which the classifier never treats
// as Unstable).
func WaitForServiceReady(ctx context.Context, o *Observer, timeout, pollInterval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		set, err := o.Observe(ctx)
		if err == nil && len(set.Members) > 0 {
			return nil
		}
		if err != nil {
			logger.Debug("waiting for service to become observable", logger.F("error", err))
		}

		if time.Now().After(deadline) {
			return rsops.NewError(rsops.KindObserve,
				fmt.Errorf("service did not report any running tasks within %v", timeout))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
