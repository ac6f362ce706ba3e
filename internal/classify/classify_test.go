package classify

import (
	"testing"

	"mongorsop/internal/rsops"
)

func endpoint(ip string) rsops.NodeEndpoint {
	return rsops.NodeEndpoint{IP: ip, Port: 27017}
}

func expectedSet(ips ...string) rsops.ExpectedMemberSet {
	members := make(map[rsops.NodeEndpoint]struct{}, len(ips))
	for _, ip := range ips {
		members[endpoint(ip)] = struct{}{}
	}
	return rsops.ExpectedMemberSet{Members: members, ExpectedCount: uint32(len(ips))}
}

func TestFreshDeploy(t *testing.T) {
	expected := expectedSet("10.0.0.2", "10.0.0.3", "10.0.0.4")
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Uninitialized},
		endpoint("10.0.0.3"): {Endpoint: endpoint("10.0.0.3"), State: rsops.Uninitialized},
		endpoint("10.0.0.4"): {Endpoint: endpoint("10.0.0.4"), State: rsops.Uninitialized},
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.FreshDeploy {
		t.Fatalf("expected FreshDeploy, got %v (%s)", state.Tag, state.Reason)
	}
}

func TestSteadyState(t *testing.T) {
	expected := expectedSet("10.0.0.2", "10.0.0.3", "10.0.0.4")
	configured := map[string]int{
		"10.0.0.2:27017": 0, "10.0.0.3:27017": 1, "10.0.0.4:27017": 2,
	}
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Member, IsPrimary: true, ConfigVersion: 1, ConfiguredMembers: configured},
		endpoint("10.0.0.3"): {Endpoint: endpoint("10.0.0.3"), State: rsops.Member, ConfigVersion: 1, ConfiguredMembers: configured},
		endpoint("10.0.0.4"): {Endpoint: endpoint("10.0.0.4"), State: rsops.Member, ConfigVersion: 1, ConfiguredMembers: configured},
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.SteadyState {
		t.Fatalf("expected SteadyState, got %v (%s)", state.Tag, state.Reason)
	}
	if state.Primary == nil || state.Primary.IP != "10.0.0.2" {
		t.Fatalf("expected primary 10.0.0.2, got %v", state.Primary)
	}
}

func TestRedeployIPChange(t *testing.T) {
	expected := expectedSet("10.0.5.2", "10.0.5.3", "10.0.5.4")
	configured := map[string]int{
		"10.0.0.2:27017": 0, "10.0.0.3:27017": 1, "10.0.0.4:27017": 2,
	}
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.5.2"): {Endpoint: endpoint("10.0.5.2"), State: rsops.Unreachable},
	}
	// Simulate one reachable old member still configured with the old IPs.
	observed[endpoint("10.0.0.2")] = rsops.ObservedNodeView{
		Endpoint: endpoint("10.0.0.2"), State: rsops.Member, ConfigVersion: 4, ConfiguredMembers: configured,
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.RedeployIPChange {
		t.Fatalf("expected Redeploy-IPChange, got %v (%s)", state.Tag, state.Reason)
	}
	if state.MaxConfigVersion != 4 {
		t.Fatalf("expected max observed version 4, got %d", state.MaxConfigVersion)
	}
}

func TestScaleUp(t *testing.T) {
	expected := expectedSet("10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5")
	configured := map[string]int{
		"10.0.0.2:27017": 0, "10.0.0.3:27017": 1, "10.0.0.4:27017": 2,
	}
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Member, IsPrimary: true, ConfigVersion: 2, ConfiguredMembers: configured},
		endpoint("10.0.0.3"): {Endpoint: endpoint("10.0.0.3"), State: rsops.Member, ConfigVersion: 2, ConfiguredMembers: configured},
		endpoint("10.0.0.4"): {Endpoint: endpoint("10.0.0.4"), State: rsops.Member, ConfigVersion: 2, ConfiguredMembers: configured},
		endpoint("10.0.0.5"): {Endpoint: endpoint("10.0.0.5"), State: rsops.Uninitialized},
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.Scale {
		t.Fatalf("expected Scale, got %v (%s)", state.Tag, state.Reason)
	}
}

func TestSplitView(t *testing.T) {
	expected := expectedSet("10.0.0.2", "10.0.0.3", "10.0.0.4")
	configuredA := map[string]int{"10.0.0.2:27017": 0, "10.0.0.3:27017": 1, "10.0.0.4:27017": 2}
	configuredB := map[string]int{"10.0.0.2:27017": 0, "10.0.0.3:27017": 1}
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Member, ConfigVersion: 3, ConfiguredMembers: configuredA},
		endpoint("10.0.0.3"): {Endpoint: endpoint("10.0.0.3"), State: rsops.Member, ConfigVersion: 5, ConfiguredMembers: configuredB},
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.SplitView {
		t.Fatalf("expected SplitView, got %v (%s)", state.Tag, state.Reason)
	}
}

func TestUnstable(t *testing.T) {
	expected := expectedSet("10.0.0.2", "10.0.0.3", "10.0.0.4")
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Unreachable},
		endpoint("10.0.0.3"): {Endpoint: endpoint("10.0.0.3"), State: rsops.Transient},
	}

	state := Classify(expected, observed)
	if state.Tag != rsops.Unstable {
		t.Fatalf("expected Unstable, got %v (%s)", state.Tag, state.Reason)
	}
}

func TestStartupRaceDoesNotFireFreshDeployWithPending(t *testing.T) {
	expected := rsops.ExpectedMemberSet{
		Members:       map[rsops.NodeEndpoint]struct{}{endpoint("10.0.0.2"): {}},
		ExpectedCount: 3,
		PendingCount:  2,
	}
	observed := map[rsops.NodeEndpoint]rsops.ObservedNodeView{
		endpoint("10.0.0.2"): {Endpoint: endpoint("10.0.0.2"), State: rsops.Uninitialized},
	}

	state := Classify(expected, observed)
	if state.Tag == rsops.FreshDeploy {
		t.Fatalf("expected classifier to defer while pendingCount>0, got FreshDeploy")
	}
}
