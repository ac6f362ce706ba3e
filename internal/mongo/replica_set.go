package mongo

import (
	"context"
	"errors"
	"strings"
	"sync"

	"mongorsop/internal/logger"
	"mongorsop/internal/rsops"
)

// Probe opens a connection to endpoint and classifies it per the
// Cluster Prober's per-node protocol: hello, then replSetGetStatus and
// replSetGetConfig, folded into one ObservedNodeView. auth may be the
// zero Credentials value to probe unauthenticated (pre-bootstrap).
func Probe(ctx context.Context, endpoint rsops.NodeEndpoint, auth Credentials) rsops.ObservedNodeView {
	view := rsops.ObservedNodeView{Endpoint: endpoint}

	client, err := Dial(ctx, endpoint.Host(), auth.Username, auth.Password)
	if err != nil {
		if isAuthError(err) {
			warnAuthOnce(endpoint.Host(), err)
			view.State = rsops.Transient
		} else {
			view.State = rsops.Unreachable
		}
		view.Err = err
		return view
	}
	defer client.Close(ctx)

	hello, err := client.Hello(ctx)
	if err == nil {
		view.IsPrimary = hello.IsWritablePrimary
	}

	status, statusErr := client.Status(ctx)
	if statusErr == nil {
		if self := findSelfMember(status, endpoint); self != nil && self.StateStr == "PRIMARY" {
			view.IsPrimary = true
		}
	}

	cfg, err := client.Config(ctx)
	if err != nil {
		classifyFromError(&view, err)
		return view
	}

	view.State = rsops.Member
	view.ConfigVersion = cfg.Config.Version
	view.RSName = cfg.Config.ID
	view.ConfiguredMembers = make(map[string]int, len(cfg.Config.Members))
	for _, m := range cfg.Config.Members {
		view.ConfiguredMembers[m.Host] = m.ID
	}
	return view
}

// findSelfMember locates endpoint's own entry in a replSetGetStatus
// response, so Probe can cross-check hello's isWritablePrimary against
// the member's own reported stateStr.
func findSelfMember(status StatusResponse, endpoint rsops.NodeEndpoint) *StatusMember {
	host := endpoint.Host()
	for i := range status.Members {
		if status.Members[i].Name == host {
			return &status.Members[i]
		}
	}
	return nil
}

var (
	authWarnedMu    sync.Mutex
	authWarnedNodes = make(map[string]struct{})
)

// isAuthError reports whether err looks like MongoDB rejected the
// connection for lacking credentials, as opposed to a network or
// timeout failure.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if commandErrorCode(err) == ErrCodeUnauthorized {
		return true
	}
	msg := err.Error()
	for _, sub := range []string{"Authentication failed", "authentication failed", "requires authentication"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// warnAuthOnce logs an "expected auth failure" note the first time it's
// seen for a given endpoint, then stays quiet about it for the life of
// the process. Fresh deployments dial every node before the root user
// exists; without this, every cycle would repeat the same warning for
// as long as the node stays unreachable under auth.
func warnAuthOnce(host string, err error) {
	authWarnedMu.Lock()
	_, seen := authWarnedNodes[host]
	if !seen {
		authWarnedNodes[host] = struct{}{}
	}
	authWarnedMu.Unlock()

	if !seen {
		logger.Debug("auth not ready on node (expected during fresh deployment)", logger.F("host", host), logger.F("error", err))
	}
}

// classifyFromError maps a driver/server error from replSetGetConfig
// into the Prober's state taxonomy (§4.2 step 4).
func classifyFromError(view *rsops.ObservedNodeView, err error) {
	view.Err = err
	msg := err.Error()

	code := commandErrorCode(err)
	switch {
	case code == ErrCodeNotYetInitialized:
		view.State = rsops.Transient
	case strings.Contains(msg, "no replica set config"):
		view.State = rsops.Uninitialized
	case strings.Contains(msg, "NotYetInitialized"):
		view.State = rsops.Transient
	case code == ErrCodeUnauthorized:
		view.State = rsops.Transient
	case errors.Is(err, context.DeadlineExceeded):
		view.State = rsops.Unreachable
	default:
		view.State = rsops.Unreachable
	}
}

// Credentials is the (username, password) pair used to authenticate
// admin connections once the root user exists. The zero value connects
// unauthenticated.
type Credentials struct {
	Username string
	Password string
}
