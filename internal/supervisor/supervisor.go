// Package supervisor drives the Reconciliation Cycle at a fixed
// cadence (§4.7): observe -> probe -> classify -> plan -> apply ->
// (maybe) bootstrap, single-threaded, with a per-cycle deadline and
// clean shutdown on cancellation.
package supervisor

import (
	"context"
	"sync"
	"time"

	"mongorsop/internal/actuate"
	"mongorsop/internal/bootstrap"
	"mongorsop/internal/classify"
	"mongorsop/internal/constants"
	"mongorsop/internal/logger"
	"mongorsop/internal/metrics"
	"mongorsop/internal/mongo"
	"mongorsop/internal/plan"
	"mongorsop/internal/rsops"
	"mongorsop/internal/swarm"
)

// Observer is the subset of *swarm.Observer the supervisor depends on,
// so tests can substitute a fake topology without a Docker daemon.
type Observer interface {
	Observe(ctx context.Context) (rsops.ExpectedMemberSet, error)
}

// Supervisor owns the cycle loop and the small amount of state that
// legitimately persists across cycles: whether bootstrap succeeded,
// primary-loss hysteresis, and the last known primary (advisory only).
type Supervisor struct {
	Observer        Observer
	Actuator        *actuate.Actuator
	Bootstrapper    *bootstrap.Bootstrapper
	ReplicaSetName  string
	CycleInterval   time.Duration
	CycleDeadline   time.Duration
	ProbeTimeout    time.Duration
	ProbeMaxRetries int

	// ScaleDownHysteresisCycles is the §9 Open Question's config knob:
	// how many consecutive cycles a member-count decrease must persist
	// before the Actuator is allowed to drop it, distinguishing an
	// intentional downscale from a transient outage.
	ScaleDownHysteresisCycles int

	mu                sync.Mutex
	lastPrimary       *rsops.NodeEndpoint
	primaryLossCycles int
	scaleDownCycles   int
	cycleNumber       uint64
}

// New builds a Supervisor with the constants-derived defaults for
// anything the caller leaves zero. scaleDownHysteresisCycles <= 0 falls
// back to constants.DefaultScaleDownHysteresisCycles.
func New(observer Observer, actuator *actuate.Actuator, bootstrapper *bootstrap.Bootstrapper, replicaSetName string, cycleInterval time.Duration, scaleDownHysteresisCycles int) *Supervisor {
	if scaleDownHysteresisCycles <= 0 {
		scaleDownHysteresisCycles = constants.DefaultScaleDownHysteresisCycles
	}
	return &Supervisor{
		Observer:                  observer,
		Actuator:                  actuator,
		Bootstrapper:              bootstrapper,
		ReplicaSetName:            replicaSetName,
		CycleInterval:             cycleInterval,
		CycleDeadline:             cycleInterval * constants.CycleDeadlineFactor,
		ProbeTimeout:              constants.ProbeTimeout,
		ProbeMaxRetries:           constants.ProbeMaxRetries,
		ScaleDownHysteresisCycles: scaleDownHysteresisCycles,
	}
}

// Run executes cycles on CycleInterval until ctx is cancelled. Overlap
// is prevented structurally: RunCycle runs on this goroutine, so the
// next tick is only read after the prior call returns (a cycle that
// overruns the interval leaves at most one buffered tick).
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.CycleInterval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("supervisor shutting down after in-flight cycle")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes exactly one Reconciliation Cycle within
// CycleDeadline.
func (s *Supervisor) RunCycle(parent context.Context) {
	s.mu.Lock()
	s.cycleNumber++
	cycleNum := s.cycleNumber
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.CycleDeadline)
	defer cancel()

	metrics.RecordCycle()

	expected, err := s.Observer.Observe(ctx)
	if err != nil {
		logger.Warning("observe failed, will retry next cycle", logger.F("cycle", cycleNum), logger.F("error", err))
		return
	}

	observed := s.probeAll(ctx, expected)

	state := classify.Classify(expected, observed)
	state = s.applyPrimaryLossHysteresis(state, observed)
	state = s.applyScaleDownHysteresis(state, expected, observed)
	metrics.RecordClassification(state.Tag.String())

	p := plan.Generate(s.ReplicaSetName, expected, observed, state)

	result := s.Actuator.Apply(ctx, p, expected)
	metrics.RecordAction(p.Action.String(), resultLabel(result.Kind))

	s.logCycle(cycleNum, state, p, result)

	// Bootstrap is retried on every cycle a primary is known and the
	// account bootstrap hasn't succeeded yet (§4.6/§7), independent of
	// what this cycle's own classification/action happened to be — a
	// bootstrap failure right after Initiate must not have to wait for
	// another Initiate to come around again.
	if s.Bootstrapper != nil && !s.Bootstrapper.Done() && state.Primary != nil {
		s.runBootstrap(ctx, *state.Primary)
	}

	if state.Primary != nil {
		s.mu.Lock()
		s.lastPrimary = state.Primary
		s.mu.Unlock()
	}
	metrics.SetHasPrimary(primaryObserved(state, observed))

	if ctx.Err() != nil {
		metrics.RecordDeadlineExceeded()
		logger.Warning("cycle exceeded its deadline", logger.F("cycle", cycleNum), logger.F("deadline", s.CycleDeadline))
	}
}

// probeAll fans out one probe per expected endpoint, joining before
// classification (§4.2, §5's "actions applied strictly after all
// probes complete").
func (s *Supervisor) probeAll(ctx context.Context, expected rsops.ExpectedMemberSet) map[rsops.NodeEndpoint]rsops.ObservedNodeView {
	results := make(map[rsops.NodeEndpoint]rsops.ObservedNodeView, len(expected.Members))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for ep := range expected.Members {
		ep := ep
		wg.Add(1)
		go func() {
			defer wg.Done()
			view := s.probeWithRetry(ctx, ep)
			mu.Lock()
			results[ep] = view
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// probeWithRetry retries a Transient classification up to
// ProbeMaxRetries times with exponential backoff before accepting it
// as final (§4.2 step 5). It probes unauthenticated against the local
// server until the Account Bootstrapper has actually created the root
// user (§4.2 step 1) — probing with real credentials before then just
// fails every Dial with an auth error on a fresh deployment.
func (s *Supervisor) probeWithRetry(ctx context.Context, ep rsops.NodeEndpoint) rsops.ObservedNodeView {
	auth := mongo.Credentials{}
	if s.Bootstrapper != nil && s.Bootstrapper.Done() {
		auth = s.Actuator.Root
	}
	backoffDelay := constants.ProbeRetryBaseDelay

	var view rsops.ObservedNodeView
	for attempt := 0; attempt <= s.ProbeMaxRetries; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, s.ProbeTimeout)
		view = mongo.Probe(probeCtx, ep, auth)
		cancel()

		if view.State != rsops.Transient {
			return view
		}
		if attempt == s.ProbeMaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return view
		case <-time.After(backoffDelay):
		}
		backoffDelay *= 2
	}
	return view
}

// applyPrimaryLossHysteresis implements scenario 5 of §8: SteadyState
// with no primary waits PrimaryLossEscalationCycles before escalating
// to a forced reconfigure.
func (s *Supervisor) applyPrimaryLossHysteresis(state rsops.ClusterState, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.ClusterState {
	if state.Tag != rsops.SteadyState || primaryObserved(state, observed) {
		s.mu.Lock()
		s.primaryLossCycles = 0
		s.mu.Unlock()
		return state
	}

	s.mu.Lock()
	s.primaryLossCycles++
	cycles := s.primaryLossCycles
	s.mu.Unlock()

	if cycles < constants.PrimaryLossEscalationCycles {
		return state
	}

	state.Tag = rsops.SplitView
	state.Reason = "no primary observed for multiple cycles, escalating to ForceReconfigure"
	return state
}

// applyScaleDownHysteresis defers a Scale classification that would
// shrink the replica set until it has persisted for
// ScaleDownHysteresisCycles consecutive cycles (§9 Open Question D:
// distinguish an intentional downscale from a transient outage that
// makes a node temporarily absent from the topology). Scale-ups and
// any other classification pass straight through.
func (s *Supervisor) applyScaleDownHysteresis(state rsops.ClusterState, expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.ClusterState {
	if state.Tag != rsops.Scale || !isScaleDown(expected, observed) {
		s.mu.Lock()
		s.scaleDownCycles = 0
		s.mu.Unlock()
		return state
	}

	threshold := s.ScaleDownHysteresisCycles
	if threshold < 1 {
		threshold = 1
	}

	s.mu.Lock()
	s.scaleDownCycles++
	cycles := s.scaleDownCycles
	s.mu.Unlock()

	if cycles >= threshold {
		return state
	}

	state.Tag = rsops.SteadyState
	state.Reason = "member-count decrease observed, deferring removal until it persists across cycles"
	return state
}

// primaryObserved reports whether the classifier's chosen primary is
// writable. The classifier falls back to the highest-version member when
// no probe reported isWritablePrimary, so a non-nil state.Primary alone
// does not mean a primary exists. A chosen primary with no observation
// of its own is taken at face value.
func primaryObserved(state rsops.ClusterState, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) bool {
	if state.Primary == nil {
		return false
	}
	v, ok := observed[*state.Primary]
	return !ok || v.IsPrimary
}

// isScaleDown reports whether the replica set's current configuration
// has more members than the topology currently expects, using any
// agreeing member's configured host count as the current size.
func isScaleDown(expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) bool {
	for _, v := range observed {
		if v.State != rsops.Member {
			continue
		}
		return len(v.ConfiguredMembers) > len(expected.Members)
	}
	return false
}

func (s *Supervisor) runBootstrap(ctx context.Context, primary rsops.NodeEndpoint) {
	if err := s.Bootstrapper.Run(ctx, primary.Host()); err != nil {
		logger.Warning("account bootstrap failed, will retry next cycle", logger.F("error", err))
	}
}

func (s *Supervisor) logCycle(cycleNum uint64, state rsops.ClusterState, p rsops.Plan, result rsops.ActuatorResult) {
	fields := []logger.Field{
		logger.F("cycle", cycleNum),
		logger.F("classification", state.Tag.String()),
		logger.F("action", p.Action.String()),
		logger.F("result", resultLabel(result.Kind)),
	}
	if state.Primary != nil {
		fields = append(fields, logger.F("primary", state.Primary.String()))
	}
	switch result.Kind {
	case rsops.RetryableFailure:
		fields = append(fields, logger.F("errorKind", rsops.KindAdminRetryable.String()))
	case rsops.FatalFailure:
		fields = append(fields, logger.F("errorKind", rsops.KindAdminFatal.String()))
	}
	if result.Reason != "" {
		fields = append(fields, logger.F("reason", result.Reason))
	}
	logger.Info("reconciliation cycle complete", fields...)
}

func resultLabel(kind rsops.ActuatorResultKind) string {
	switch kind {
	case rsops.Applied:
		return "applied"
	case rsops.RetryableFailure:
		return "retryable_failure"
	default:
		return "fatal_failure"
	}
}

var _ Observer = (*swarm.Observer)(nil)
