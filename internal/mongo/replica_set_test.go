package mongo

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"

	"mongorsop/internal/rsops"
)

func TestClassifyFromErrorNotYetInitialized(t *testing.T) {
	view := rsops.ObservedNodeView{}
	err := mongo.CommandError{Code: ErrCodeNotYetInitialized, Message: "node is not yet initialized"}
	classifyFromError(&view, err)

	if view.State != rsops.Transient {
		t.Fatalf("expected Transient, got %v", view.State)
	}
}

func TestClassifyFromErrorUninitialized(t *testing.T) {
	view := rsops.ObservedNodeView{}
	err := errors.New("no replica set config found on this node")
	classifyFromError(&view, err)

	if view.State != rsops.Uninitialized {
		t.Fatalf("expected Uninitialized, got %v", view.State)
	}
}

func TestClassifyFromErrorDeadlineExceeded(t *testing.T) {
	view := rsops.ObservedNodeView{}
	classifyFromError(&view, context.DeadlineExceeded)

	if view.State != rsops.Unreachable {
		t.Fatalf("expected Unreachable, got %v", view.State)
	}
}

func TestClassifyFromErrorUnknownDefaultsUnreachable(t *testing.T) {
	view := rsops.ObservedNodeView{}
	classifyFromError(&view, errors.New("connection refused"))

	if view.State != rsops.Unreachable {
		t.Fatalf("expected Unreachable, got %v", view.State)
	}
}

func TestCommandErrorCode(t *testing.T) {
	err := mongo.CommandError{Code: ErrCodeUserAlreadyExists, Message: "user exists"}
	if code := commandErrorCode(err); code != ErrCodeUserAlreadyExists {
		t.Fatalf("expected %d, got %d", ErrCodeUserAlreadyExists, code)
	}

	if code := commandErrorCode(errors.New("plain")); code != -1 {
		t.Fatalf("expected -1 for non-command error, got %d", code)
	}
}

func TestIsAuthErrorRecognizesUnauthorizedCode(t *testing.T) {
	err := mongo.CommandError{Code: ErrCodeUnauthorized, Message: "not authorized"}
	if !isAuthError(err) {
		t.Fatal("expected code 13 to be recognized as an auth error")
	}
}

func TestIsAuthErrorRecognizesMessagePatterns(t *testing.T) {
	for _, msg := range []string{
		"Authentication failed.",
		"authentication failed for user",
		"command requires authentication",
	} {
		if !isAuthError(errors.New(msg)) {
			t.Fatalf("expected %q to be recognized as an auth error", msg)
		}
	}
}

func TestIsAuthErrorRejectsUnrelatedErrors(t *testing.T) {
	if isAuthError(errors.New("connection refused")) {
		t.Fatal("expected a plain network error not to be classified as an auth error")
	}
	if isAuthError(nil) {
		t.Fatal("expected a nil error not to be classified as an auth error")
	}
}

func TestWarnAuthOnceLogsOnlyOnce(t *testing.T) {
	host := "10.9.9.9:27017"

	authWarnedMu.Lock()
	delete(authWarnedNodes, host)
	authWarnedMu.Unlock()

	warnAuthOnce(host, errors.New("Authentication failed."))

	authWarnedMu.Lock()
	_, seen := authWarnedNodes[host]
	authWarnedMu.Unlock()
	if !seen {
		t.Fatal("expected host to be recorded as warned after first call")
	}

	// Second call must not panic and must leave the set as-is; there's
	// no observable side effect to assert on besides that the dedupe
	// state doesn't get removed.
	warnAuthOnce(host, errors.New("Authentication failed."))

	authWarnedMu.Lock()
	_, stillSeen := authWarnedNodes[host]
	authWarnedMu.Unlock()
	if !stillSeen {
		t.Fatal("expected host to remain recorded as warned after second call")
	}
}

func TestFindSelfMemberMatchesByHost(t *testing.T) {
	ep := rsops.NodeEndpoint{IP: "10.0.0.1", Port: 27017}
	status := StatusResponse{
		Members: []StatusMember{
			{ID: 0, Name: "10.0.0.1:27017", StateStr: "PRIMARY"},
			{ID: 1, Name: "10.0.0.2:27017", StateStr: "SECONDARY"},
		},
	}

	self := findSelfMember(status, ep)
	if self == nil {
		t.Fatal("expected to find the matching member")
	}
	if self.StateStr != "PRIMARY" {
		t.Fatalf("expected PRIMARY, got %s", self.StateStr)
	}
}

func TestFindSelfMemberReturnsNilWhenAbsent(t *testing.T) {
	ep := rsops.NodeEndpoint{IP: "10.0.0.9", Port: 27017}
	status := StatusResponse{
		Members: []StatusMember{
			{ID: 0, Name: "10.0.0.1:27017", StateStr: "PRIMARY"},
		},
	}

	if self := findSelfMember(status, ep); self != nil {
		t.Fatalf("expected no match, got %+v", self)
	}
}
