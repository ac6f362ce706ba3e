package swarm

import (
	"testing"

	"github.com/docker/docker/api/types/swarm"
)

func TestParseCIDRHostStripsMask(t *testing.T) {
	ip, ok := parseCIDRHost("10.0.0.2/24")
	if !ok || ip != "10.0.0.2" {
		t.Fatalf("expected 10.0.0.2, got %q ok=%v", ip, ok)
	}
}

func TestParseCIDRHostBareIP(t *testing.T) {
	ip, ok := parseCIDRHost("10.0.0.2")
	if !ok || ip != "10.0.0.2" {
		t.Fatalf("expected 10.0.0.2, got %q ok=%v", ip, ok)
	}
}

func TestParseCIDRHostEmptyIsRejected(t *testing.T) {
	if _, ok := parseCIDRHost("/24"); ok {
		t.Fatal("expected an empty address to be rejected")
	}
}

func TestNodeMatchesConstraintsNoConstraints(t *testing.T) {
	n := swarm.Node{Spec: swarm.NodeSpec{Role: swarm.NodeRoleWorker}}
	if !nodeMatchesConstraints(n, placement{}) {
		t.Fatal("expected an unconstrained placement to match any node")
	}
}

func TestNodeMatchesConstraintsManagerOnly(t *testing.T) {
	manager := swarm.Node{Spec: swarm.NodeSpec{Role: swarm.NodeRoleManager}}
	worker := swarm.Node{Spec: swarm.NodeSpec{Role: swarm.NodeRoleWorker}}
	p := placement{constraints: []string{"node.role==manager"}}

	if !nodeMatchesConstraints(manager, p) {
		t.Fatal("expected a manager node to match node.role==manager")
	}
	if nodeMatchesConstraints(worker, p) {
		t.Fatal("expected a worker node to not match node.role==manager")
	}
}

func TestPlacementConstraintsNilPlacement(t *testing.T) {
	p := placementConstraints(nil)
	if len(p.constraints) != 0 {
		t.Fatalf("expected no constraints for a nil placement, got %v", p.constraints)
	}
}
