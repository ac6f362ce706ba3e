// Package classify implements the State Classifier (§4.3): it reduces
// an ExpectedMemberSet and a set of per-node observations to a single
// ClusterState tag the Plan Generator can act on. Besides the standard
// library it imports only rsops, matching the "keep the classifier... free of formatting"
// design note generalized to freedom from any I/O concern.
package classify

import (
	"fmt"
	"math"
	"sort"

	"mongorsop/internal/rsops"
)

// Classify evaluates §4.3's six rules in order and returns the first
// match.
func Classify(expected rsops.ExpectedMemberSet, observed map[rsops.NodeEndpoint]rsops.ObservedNodeView) rsops.ClusterState {
	members := membersByState(observed, rsops.Member)
	uninitialized := membersByState(observed, rsops.Uninitialized)
	transient := membersByState(observed, rsops.Transient)
	unreachable := membersByState(observed, rsops.Unreachable)

	if isUnstable(expected, transient, unreachable) {
		return rsops.ClusterState{
			Tag:    rsops.Unstable,
			Reason: fmt.Sprintf("%d transient + %d unreachable exceeds half of %d expected members", len(transient), len(unreachable), len(expected.Members)),
		}
	}

	if len(members) == 0 && len(uninitialized) >= ceilHalf(len(expected.Members)) && expected.PendingCount == 0 {
		return rsops.ClusterState{
			Tag:    rsops.FreshDeploy,
			Reason: fmt.Sprintf("no configured members yet, %d of %d expected nodes uninitialized", len(uninitialized), len(expected.Members)),
		}
	}

	if isRedeployIPChange(expected, members) {
		return withPrimaryAndVersion(rsops.ClusterState{
			Tag:    rsops.RedeployIPChange,
			Reason: "configured member IPs and expected IPs are disjoint",
		}, members)
	}

	if isScale(expected, members) {
		return withPrimaryAndVersion(rsops.ClusterState{
			Tag:    rsops.Scale,
			Reason: "configured member set differs from expected by addition/removal, not wholesale IP change",
		}, members)
	}

	if isSplitView(members) {
		return withPrimaryAndVersion(rsops.ClusterState{
			Tag:    rsops.SplitView,
			Reason: "members disagree on configVersion or member set",
		}, members)
	}

	state := withPrimaryAndVersion(rsops.ClusterState{
		Tag:    rsops.SteadyState,
		Reason: "all members agree and match expected set",
	}, members)
	return state
}

func membersByState(observed map[rsops.NodeEndpoint]rsops.ObservedNodeView, state rsops.NodeState) []rsops.ObservedNodeView {
	var out []rsops.ObservedNodeView
	for _, v := range observed {
		if v.State == state {
			out = append(out, v)
		}
	}
	return out
}

func isUnstable(expected rsops.ExpectedMemberSet, transient, unreachable []rsops.ObservedNodeView) bool {
	if len(expected.Members) == 0 {
		return false
	}
	return float64(len(transient)+len(unreachable)) > float64(len(expected.Members))/2
}

func ceilHalf(n int) int {
	return int(math.Ceil(float64(n) / 2))
}

// isRedeployIPChange implements rule 3: some Member's configured hosts
// contain an IP not in E.members, AND some IP in E.members appears in
// no observed config. Both directions must hold, or this is scaling
// (one-sided) rather than wholesale turnover.
func isRedeployIPChange(expected rsops.ExpectedMemberSet, members []rsops.ObservedNodeView) bool {
	if len(members) == 0 {
		return false
	}

	expectedIPs := make(map[string]struct{}, len(expected.Members))
	for ep := range expected.Members {
		expectedIPs[ep.IP] = struct{}{}
	}

	configuredIPs := make(map[string]struct{})
	for _, m := range members {
		for host := range m.ConfiguredMembers {
			configuredIPs[hostIP(host)] = struct{}{}
		}
	}

	staleConfigured := false
	for ip := range configuredIPs {
		if _, ok := expectedIPs[ip]; !ok {
			staleConfigured = true
			break
		}
	}

	missingExpected := false
	for ip := range expectedIPs {
		if _, ok := configuredIPs[ip]; !ok {
			missingExpected = true
			break
		}
	}

	if !staleConfigured || !missingExpected {
		return false
	}

	// Full turnover: disjoint sets, not a partial overlap (which would
	// instead be classified as Scale per the §9 Open Question decision
	// -- see DESIGN.md).
	for ip := range configuredIPs {
		if _, ok := expectedIPs[ip]; ok {
			return false
		}
	}
	return true
}

// isScale implements rule 4: configs agree with each other but the
// configured host set differs from expected by pure addition/removal.
func isScale(expected rsops.ExpectedMemberSet, members []rsops.ObservedNodeView) bool {
	if len(members) == 0 {
		return false
	}
	if !configsAgree(members) {
		return false
	}

	configured := members[0].ConfiguredHostSet()
	expectedHosts := make(map[string]struct{}, len(expected.Members))
	for ep := range expected.Members {
		expectedHosts[ep.Host()] = struct{}{}
	}

	if setsEqual(configured, expectedHosts) {
		return false
	}
	return true
}

// isSplitView implements rule 5: members disagree on configVersion or
// member set.
func isSplitView(members []rsops.ObservedNodeView) bool {
	if len(members) < 2 {
		return false
	}
	return !configsAgree(members)
}

func configsAgree(members []rsops.ObservedNodeView) bool {
	if len(members) == 0 {
		return true
	}
	first := members[0]
	for _, m := range members[1:] {
		if m.ConfigVersion != first.ConfigVersion {
			return false
		}
		if !setsEqual(m.ConfiguredHostSet(), first.ConfiguredHostSet()) {
			return false
		}
	}
	return true
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func hostIP(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

// withPrimaryAndVersion fills in the tie-break primary (§4.3's
// tie-break rule) and the max observed configVersion.
func withPrimaryAndVersion(state rsops.ClusterState, members []rsops.ObservedNodeView) rsops.ClusterState {
	var maxVersion int64
	for _, m := range members {
		if m.ConfigVersion > maxVersion {
			maxVersion = m.ConfigVersion
		}
	}
	state.MaxConfigVersion = maxVersion
	state.Primary = pickPrimary(members)
	return state
}

// pickPrimary implements the tie-break rule: prefer a primary among
// members; otherwise the member with the highest configVersion,
// tie-breaking on lexicographically smallest IP.
func pickPrimary(members []rsops.ObservedNodeView) *rsops.NodeEndpoint {
	for _, m := range members {
		if m.IsPrimary {
			ep := m.Endpoint
			return &ep
		}
	}
	if len(members) == 0 {
		return nil
	}

	sorted := make([]rsops.ObservedNodeView, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ConfigVersion != sorted[j].ConfigVersion {
			return sorted[i].ConfigVersion > sorted[j].ConfigVersion
		}
		return sorted[i].Endpoint.IP < sorted[j].Endpoint.IP
	})
	ep := sorted[0].Endpoint
	return &ep
}
