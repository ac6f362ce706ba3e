// Package actuate implements the Actuator (§4.5): it applies a Plan
// against the real replica set, using internal/mongo for the wire
// protocol and internal/retry for the backoff policy every admin call
// is wrapped in.
package actuate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mongorsop/internal/logger"
	"mongorsop/internal/mongo"
	"mongorsop/internal/retry"
	"mongorsop/internal/rsops"
)

// Actuator applies Plans. Root holds the configured root credentials,
// which Reconfigure and ForceReconfigure dial with; Initiate and the
// election wait always dial unauthenticated.
type Actuator struct {
	Root            mongo.Credentials
	ElectionTimeout time.Duration
	ReconfigRetries int
	AdminPolicy     retry.Policy
}

// New builds an Actuator wired to the given admin credentials and
// timeouts (§4.5, §6).
func New(root mongo.Credentials, electionTimeout time.Duration, reconfigRetries int, adminPolicy retry.Policy) *Actuator {
	return &Actuator{Root: root, ElectionTimeout: electionTimeout, ReconfigRetries: reconfigRetries, AdminPolicy: adminPolicy}
}

// Apply runs the protocol for plan.Action and returns the outcome.
func (a *Actuator) Apply(ctx context.Context, plan rsops.Plan, expected rsops.ExpectedMemberSet) rsops.ActuatorResult {
	switch plan.Action {
	case rsops.NoOp:
		return rsops.ActuatorResult{Kind: rsops.Applied}
	case rsops.Initiate:
		return a.applyInitiate(ctx, plan, expected)
	case rsops.Reconfigure:
		return a.applyReconfigure(ctx, plan, expected)
	case rsops.ForceReconfigure:
		return a.applyForceReconfigure(ctx, plan, expected)
	default:
		return rsops.ActuatorResult{Kind: rsops.FatalFailure, Reason: fmt.Sprintf("unknown action %v", plan.Action)}
	}
}

func (a *Actuator) applyInitiate(ctx context.Context, plan rsops.Plan, expected rsops.ExpectedMemberSet) rsops.ActuatorResult {
	cfg := toWireConfig(*plan.Config)

	err := a.AdminPolicy.Do(ctx, func() error {
		client, dialErr := mongo.Dial(ctx, plan.TargetNode.Host(), "", "")
		if dialErr != nil {
			return dialErr
		}
		defer client.Close(ctx)
		return client.Initiate(ctx, cfg)
	})
	if err != nil {
		return rsops.ActuatorResult{Kind: rsops.RetryableFailure, Reason: fmt.Sprintf("replSetInitiate on %s: %v", plan.TargetNode, err)}
	}

	if err := a.waitForElection(ctx, expected); err != nil {
		return rsops.ActuatorResult{Kind: rsops.RetryableFailure, Reason: err.Error()}
	}
	return rsops.ActuatorResult{Kind: rsops.Applied}
}

func (a *Actuator) applyReconfigure(ctx context.Context, plan rsops.Plan, expected rsops.ExpectedMemberSet) rsops.ActuatorResult {
	cfg := toWireConfig(*plan.Config)

	var lastErr error
	for attempt := 0; attempt < a.ReconfigRetries; attempt++ {
		err := a.AdminPolicy.Do(ctx, func() error {
			client, dialErr := mongo.Dial(ctx, plan.TargetNode.Host(), a.Root.Username, a.Root.Password)
			if dialErr != nil {
				return dialErr
			}
			defer client.Close(ctx)
			return client.Reconfigure(ctx, cfg, false)
		})
		if err == nil {
			return rsops.ActuatorResult{Kind: rsops.Applied}
		}
		lastErr = err
		if !isNotPrimaryError(err) {
			return rsops.ActuatorResult{Kind: rsops.FatalFailure, Reason: fmt.Sprintf("replSetReconfig on %s: %v", plan.TargetNode, err)}
		}
		logger.Debug("primary stepped down mid-reconfigure, retrying", logger.F("attempt", attempt+1), logger.F("error", err))
	}

	logger.Info("falling back to ForceReconfigure after repeated not-primary errors", logger.F("reason", lastErr))
	forced := plan
	forced.Action = rsops.ForceReconfigure
	forced.Force = true
	return a.applyForceReconfigure(ctx, forced, expected)
}

func (a *Actuator) applyForceReconfigure(ctx context.Context, plan rsops.Plan, expected rsops.ExpectedMemberSet) rsops.ActuatorResult {
	cfg := toWireConfig(*plan.Config)

	err := a.AdminPolicy.Do(ctx, func() error {
		client, dialErr := mongo.Dial(ctx, plan.TargetNode.Host(), a.Root.Username, a.Root.Password)
		if dialErr != nil {
			return dialErr
		}
		defer client.Close(ctx)
		return client.Reconfigure(ctx, cfg, true)
	})
	if err != nil {
		return rsops.ActuatorResult{Kind: rsops.FatalFailure, Reason: fmt.Sprintf("forced replSetReconfig on %s: %v", plan.TargetNode, err)}
	}

	if err := a.waitForElection(ctx, expected); err != nil {
		return rsops.ActuatorResult{Kind: rsops.RetryableFailure, Reason: err.Error()}
	}
	return rsops.ActuatorResult{Kind: rsops.Applied}
}

// waitForElection polls hello across expected.Members until a writable
// primary emerges or ElectionTimeout elapses (§4.5). hello never
// requires authentication, and applyInitiate calls this immediately
// after replSetInitiate succeeds, before the Account Bootstrapper has
// ever run — dialing with a.Root here would fail every poll on a fresh
// deployment, so this always dials unauthenticated like applyInitiate's
// own Initiate call does.
func (a *Actuator) waitForElection(ctx context.Context, expected rsops.ExpectedMemberSet) error {
	deadline := time.Now().Add(a.ElectionTimeout)
	for {
		for ep := range expected.Members {
			client, err := mongo.Dial(ctx, ep.Host(), "", "")
			if err != nil {
				continue
			}
			hello, err := client.Hello(ctx)
			client.Close(ctx)
			if err == nil && hello.IsWritablePrimary {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no writable primary elected within %v", a.ElectionTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func toWireConfig(cfg rsops.ReplicaSetConfig) mongo.ConfigDocument {
	members := make([]mongo.ConfigMember, len(cfg.Members))
	for i, m := range cfg.Members {
		priority := 1.0
		if m.Priority != nil {
			priority = float64(*m.Priority)
		}
		votes := 1
		if m.Votes != nil {
			votes = *m.Votes
		}
		members[i] = mongo.ConfigMember{ID: m.ID, Host: m.Host, Priority: priority, Votes: votes}
	}
	return mongo.ConfigDocument{ID: cfg.Name, Version: cfg.Version, Members: members}
}

func isNotPrimaryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{"not master", "NotWritablePrimary", "not primary", "PrimarySteppedDown"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
