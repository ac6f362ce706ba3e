// Package plan implements the Plan Generator (§4.4): it maps a
// ClusterState, together with the expected member set and the
// observations that produced it, onto a concrete Plan for the
// Actuator to apply.
package plan

import (
	"sort"

	"mongorsop/internal/rsops"
)

// Generate implements the ClusterState -> Plan mapping of §4.4.
func Generate(replicaSetName string, expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView, state rsops.ClusterState) rsops.Plan {
	switch state.Tag {
	case rsops.FreshDeploy:
		return freshDeployPlan(replicaSetName, expected, observed)
	case rsops.RedeployIPChange, rsops.SplitView:
		return forceReconfigurePlan(replicaSetName, expected, observed, state)
	case rsops.Scale:
		return scalePlan(replicaSetName, expected, observed, state)
	default: // SteadyState, Unstable
		return rsops.Plan{Action: rsops.NoOp}
	}
}

// freshDeployPlan builds version-1 config over sorted expected IPs and
// targets any uninitialized node to run replSetInitiate against.
func freshDeployPlan(replicaSetName string, expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.Plan {
	ips := expected.IPs()
	members := make([]rsops.ConfigMember, len(ips))
	for i, ip := range ips {
		members[i] = rsops.ConfigMember{ID: i, Host: rsops.NodeEndpoint{IP: ip, Port: portFor(expected, ip)}.Host()}
	}

	return rsops.Plan{
		Action:     rsops.Initiate,
		TargetNode: pickUninitializedTarget(observed),
		Config: &rsops.ReplicaSetConfig{
			Name:    replicaSetName,
			Version: 1,
			Members: members,
		},
	}
}

func pickUninitializedTarget(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.NodeEndpoint {
	candidates := endpointsInState(observed, rsops.Uninitialized)
	if len(candidates) == 0 {
		return rsops.NodeEndpoint{}
	}
	return candidates[0]
}

// forceReconfigurePlan rebuilds the config from the expected member
// set, pairing old ids (ordered by "ip:port" host string) to new IPs
// (ordered by IP string) to minimize id churn across the swap, and bumps the version
// past the highest one observed anywhere.
func forceReconfigurePlan(replicaSetName string, expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView, state rsops.ClusterState) rsops.Plan {
	newIPs := expected.IPs()
	oldIDs := oldIDsSortedByHost(observed)

	members := make([]rsops.ConfigMember, len(newIPs))
	used := make(map[int]struct{}, len(newIPs))
	for i, ip := range newIPs {
		id := i
		if i < len(oldIDs) {
			id = oldIDs[i]
		}
		if _, taken := used[id]; taken {
			id = rsops.NextFreeID(used)
		}
		used[id] = struct{}{}
		members[i] = rsops.ConfigMember{ID: id, Host: rsops.NodeEndpoint{IP: ip, Port: portFor(expected, ip)}.Host()}
	}

	return rsops.Plan{
		Action:     rsops.ForceReconfigure,
		TargetNode: reachableTarget(observed),
		Force:      true,
		Config: &rsops.ReplicaSetConfig{
			Name:    replicaSetName,
			Version: state.MaxConfigVersion + 1,
			Members: members,
		},
	}
}

// oldIDsSortedByHost collects every currently-assigned _id from any
// Member observation, ordered by its "ip:port" host string, so index-pairing
// against the new sorted IP list carries the id forward for members
// that keep occupying the "same slot".
func oldIDsSortedByHost(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) []int {
	type hostID struct {
		host string
		id   int
	}
	var entries []hostID
	for _, v := range observed {
		if v.State != rsops.Member {
			continue
		}
		for host, id := range v.ConfiguredMembers {
			entries = append(entries, hostID{host: host, id: id})
		}
		break // every Member observation reports the same config once agreed
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].host < entries[j].host })

	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// scalePlan adds new members at the next free id and drops removed
// ones, targeting the current primary (or any reachable member if the
// classifier didn't pin one down).
func scalePlan(replicaSetName string, expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView, state rsops.ClusterState) rsops.Plan {
	current := anyMemberView(observed)

	used := map[int]struct{}{}
	var members []rsops.ConfigMember
	if current != nil {
		for host, id := range current.ConfiguredMembers {
			if !expectedContainsHost(expected, host) {
				continue // removed member: drop it from the new config
			}
			members = append(members, rsops.ConfigMember{ID: id, Host: host})
			used[id] = struct{}{}
		}
	}

	for _, ip := range expected.IPs() {
		host := rsops.NodeEndpoint{IP: ip, Port: portFor(expected, ip)}.Host()
		if hostInMembers(members, host) {
			continue
		}
		id := rsops.NextFreeID(used)
		members = append(members, rsops.ConfigMember{ID: id, Host: host})
		used[id] = struct{}{}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	target := reachableTarget(observed)
	if state.Primary != nil {
		target = *state.Primary
	}

	return rsops.Plan{
		Action:     rsops.Reconfigure,
		TargetNode: target,
		Config: &rsops.ReplicaSetConfig{
			Name:    replicaSetName,
			Version: state.MaxConfigVersion + 1,
			Members: members,
		},
	}
}

func anyMemberView(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) *rsops.ObservedNodeView {
	for _, v := range observed {
		if v.State == rsops.Member {
			cp := v
			return &cp
		}
	}
	return nil
}

func expectedContainsHost(expected rsops.ExpectedMemberSet, host string) bool {
	for ep := range expected.Members {
		if ep.Host() == host {
			return true
		}
	}
	return false
}

func hostInMembers(members []rsops.ConfigMember, host string) bool {
	for _, m := range members {
		if m.Host == host {
			return true
		}
	}
	return false
}

func endpointsInState(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView, state rsops.NodeState) []rsops.NodeEndpoint {
	var out []rsops.NodeEndpoint
	for ep, v := range observed {
		if v.State == state {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

func reachableTarget(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.NodeEndpoint {
	candidates := endpointsInState(observed, rsops.Member)
	if len(candidates) == 0 {
		candidates = endpointsInState(observed, rsops.Uninitialized)
	}
	if len(candidates) == 0 {
		return rsops.NodeEndpoint{}
	}
	return candidates[0]
}

func portFor(expected rsops.ExpectedMemberSet, ip string) uint16 {
	for ep := range expected.Members {
		if ep.IP == ip {
			return ep.Port
		}
	}
	return 0
}
