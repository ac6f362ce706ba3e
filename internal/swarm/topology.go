// Package swarm implements the Topology Observer: it asks the Docker
// Engine API which nodes and tasks belong to the MongoDB service and
// turns that into the set of endpoints the rest of the controller
// should expect to see MongoDB running on. It is the only package that
// imports github.com/docker/docker; everything downstream speaks
// rsops.NodeEndpoint instead of docker/docker's swarm types.
package swarm

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"

	"mongorsop/internal/logger"
	"mongorsop/internal/rsops"
)

// Observer enumerates the running MongoDB tasks and available swarm
// nodes to produce an ExpectedMemberSet each cycle (§4.1).
type Observer struct {
	cli            *client.Client
	serviceName    string
	networkName    string
	port           uint16
}

// New builds an Observer against the local Docker Engine API. Swarm
// operators run as a service themselves and reach the engine over the
// mounted /var/run/docker.sock, so no remote host is configured.
func New(serviceName, networkName string, port uint16) (*Observer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, rsops.NewError(rsops.KindConfig, fmt.Errorf("create docker client: %w", err))
	}
	return &Observer{cli: cli, serviceName: serviceName, networkName: networkName, port: port}, nil
}

// Close releases the underlying Docker Engine API connection.
func (o *Observer) Close() error {
	return o.cli.Close()
}

// Observe implements §4.1's algorithm: count schedulable nodes,
// enumerate running tasks with resolvable IPs on the configured
// overlay network, and derive pendingCount from the gap between them.
func (o *Observer) Observe(ctx context.Context) (rsops.ExpectedMemberSet, error) {
	expectedCount, err := o.countSchedulableNodes(ctx)
	if err != nil {
		return rsops.ExpectedMemberSet{}, rsops.NewError(rsops.KindObserve, err)
	}

	members, err := o.runningTaskEndpoints(ctx)
	if err != nil {
		return rsops.ExpectedMemberSet{}, rsops.NewError(rsops.KindObserve, err)
	}

	pending := uint32(0)
	if expectedCount > uint32(len(members)) {
		pending = expectedCount - uint32(len(members))
	}

	return rsops.ExpectedMemberSet{
		Members:       members,
		ExpectedCount: expectedCount,
		PendingCount:  pending,
	}, nil
}

// countSchedulableNodes counts swarm nodes that are active and ready.
// The spec's placement-constraint filtering is folded in here: a
// deployment that pins the MongoDB service to manager nodes only
// (the common case for a data service) is expressed via the service's
// placement constraints, which we re-read from the service spec so the
// node count matches what the scheduler itself would count.
func (o *Observer) countSchedulableNodes(ctx context.Context) (uint32, error) {
	svc, _, err := o.cli.ServiceInspectWithRaw(ctx, o.serviceName, types.ServiceInspectOptions{})
	if err != nil {
		return 0, fmt.Errorf("inspect service %s: %w", o.serviceName, err)
	}

	constraints := placementConstraints(svc.Spec.TaskTemplate.Placement)

	nodes, err := o.cli.NodeList(ctx, types.NodeListOptions{})
	if err != nil {
		return 0, fmt.Errorf("list nodes: %w", err)
	}

	var count uint32
	for _, n := range nodes {
		if n.Status.State != swarm.NodeStateReady {
			continue
		}
		if n.Spec.Availability != swarm.NodeAvailabilityActive {
			continue
		}
		if !nodeMatchesConstraints(n, constraints) {
			continue
		}
		count++
	}
	return count, nil
}

// runningTaskEndpoints lists the MongoDB service's tasks and keeps
// only those in a running desired+actual state with a resolvable IP
// on the configured overlay network.
func (o *Observer) runningTaskEndpoints(ctx context.Context) (map[rsops.NodeEndpoint]struct{}, error) {
	f := filters.NewArgs()
	f.Add("service", o.serviceName)
	f.Add("desired-state", string(swarm.TaskStateRunning))

	tasks, err := o.cli.TaskList(ctx, types.TaskListOptions{Filters: f})
	if err != nil {
		return nil, fmt.Errorf("list tasks for service %s: %w", o.serviceName, err)
	}

	members := make(map[rsops.NodeEndpoint]struct{})
	for _, t := range tasks {
		if t.Status.State != swarm.TaskStateRunning {
			continue
		}
		ip, ok := taskNetworkIP(t, o.networkName)
		if !ok {
			logger.Debug("task has no resolvable IP on overlay network",
				logger.F("task", t.ID), logger.F("network", o.networkName))
			continue
		}
		members[rsops.NodeEndpoint{IP: ip, Port: o.port}] = struct{}{}
	}
	return members, nil
}

func taskNetworkIP(t swarm.Task, networkName string) (string, bool) {
	for _, attachment := range t.NetworksAttachments {
		if attachment.Network.Spec.Name != networkName {
			continue
		}
		for _, addr := range attachment.Addresses {
			ip, ok := parseCIDRHost(addr)
			if ok {
				return ip, true
			}
		}
	}
	return "", false
}

type placement struct {
	constraints []string
}

func placementConstraints(p *swarm.Placement) placement {
	if p == nil {
		return placement{}
	}
	return placement{constraints: p.Constraints}
}

// nodeMatchesConstraints only understands the constraint kinds that
// matter for a data service pinned to manager nodes: the exact strings
// node.role==manager and node.role==worker. Anything else, including
// node.labels.* constraints, is treated as non-restrictive since the
// scheduler, not this observer, is the source of truth for placement
// feasibility; this is best-effort agreement with it.
func nodeMatchesConstraints(n swarm.Node, p placement) bool {
	for _, c := range p.constraints {
		if c == "node.role==manager" && n.Spec.Role != swarm.NodeRoleManager {
			return false
		}
		if c == "node.role==worker" && n.Spec.Role != swarm.NodeRoleWorker {
			return false
		}
	}
	return true
}
