package resolver

import (
	"strings"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/discovered"
)

// ViaStep is one intermediate contract on the way from a direct
// owner to an ultimate owner. Delay is the step's resolved delay in
// seconds; zero means no delay applied on this step.
type ViaStep struct {
	Address address.Address
	Type    address.Type
	Delay   int64
}

// UltimateOwner is one terminal principal reached by the traversal,
// with the path taken and the delay accrued along it.
type UltimateOwner struct {
	Address         address.Address
	Type            address.Type
	Via             []ViaStep
	Delays          []int64
	CumulativeDelay int64
}

// dedupKey identifies a record for deduplication: terminal address
// plus the via-address sequence.
func (u UltimateOwner) dedupKey() string {
	var sb strings.Builder
	sb.WriteString(u.Address.Key())
	for _, v := range u.Via {
		sb.WriteString("|")
		sb.WriteString(v.Address.Key())
	}
	return sb.String()
}

type traversal struct {
	snap  *discovered.Snapshot
	graph *Graph
}

// traceFrom runs the recursive trace for one direct owner of a
// function defined on origin. The origin contract counts as already
// on the path, so self-ownership is reported as a cycle.
func (t *traversal) traceFrom(origin, owner address.Address) ([]UltimateOwner, []string) {
	return t.trace(owner, []address.Address{origin}, nil, nil)
}

// trace performs the branching DFS. trail is the ordered set of
// addresses already on this path; via and delays are the steps and
// positive step delays accumulated so far. All three are copied on
// descend so that sibling branches stay independent.
func (t *traversal) trace(cur address.Address, trail []address.Address, via []ViaStep, delays []int64) ([]UltimateOwner, []string) {
	if idx := indexOf(trail, cur); idx >= 0 {
		return nil, []string{cycleWarning(trail[idx:], cur)}
	}

	typ := t.snap.TypeOf(cur)
	if typ.Terminal() {
		return []UltimateOwner{record(cur, typ, via, delays)}, nil
	}

	node, ok := t.graph.Node(cur)
	if !ok || len(node.Owners) == 0 {
		// The chain bottoms out at an un-annotated intermediate.
		return []UltimateOwner{record(cur, typ, via, delays)}, nil
	}

	step, warnings := stepDelay(t.snap, node.Delays)

	var out []UltimateOwner
	for _, o := range ResolveOwners(t.snap, cur, node.Owners) {
		if !o.IsResolved {
			warnings = append(warnings, ownerWarning(o))
			continue
		}
		childTrail := append(append([]address.Address(nil), trail...), cur)
		childVia := append(append([]ViaStep(nil), via...), ViaStep{Address: cur, Type: typ, Delay: step})
		childDelays := append([]int64(nil), delays...)
		if step > 0 {
			childDelays = append(childDelays, step)
		}
		// Only act edges chain transitively. Any other permission
		// type is non-transitive: the owner terminates the chain at
		// this edge, except that an edge closing a loop still
		// reports the cycle rather than emitting a record.
		if !o.PermissionType.Transits() {
			if idx := indexOf(childTrail, o.Address); idx >= 0 {
				warnings = append(warnings, cycleWarning(childTrail[idx:], o.Address))
				continue
			}
			out = append(out, record(o.Address, t.snap.TypeOf(o.Address), childVia, childDelays))
			continue
		}
		owners, childWarnings := t.trace(o.Address, childTrail, childVia, childDelays)
		out = append(out, owners...)
		warnings = append(warnings, childWarnings...)
	}
	return out, warnings
}

func record(a address.Address, typ address.Type, via []ViaStep, delays []int64) UltimateOwner {
	u := UltimateOwner{
		Address: a,
		Type:    typ,
		Via:     append([]ViaStep(nil), via...),
		Delays:  append([]int64(nil), delays...),
	}
	for _, d := range u.Delays {
		u.CumulativeDelay += d
	}
	return u
}

func indexOf(trail []address.Address, a address.Address) int {
	key := a.Key()
	for i, t := range trail {
		if t.Key() == key {
			return i
		}
	}
	return -1
}

// cycleWarning renders "Cycle detected: a → b → … → current" where
// the prefix is the path chain from the first occurrence of current.
func cycleWarning(chain []address.Address, cur address.Address) string {
	parts := make([]string, 0, len(chain)+1)
	for _, a := range chain {
		parts = append(parts, a.String())
	}
	parts = append(parts, cur.String())
	return "Cycle detected: " + strings.Join(parts, " → ")
}

// dedupe keeps the first record for each (terminal, via-sequence)
// key, preserving order of first appearance.
func dedupe(owners []UltimateOwner) []UltimateOwner {
	seen := make(map[string]bool, len(owners))
	out := owners[:0:0]
	for _, u := range owners {
		key := u.dedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

// dedupeWarnings drops repeated warning strings, preserving first
// appearance. Parallel branches through the same failing node would
// otherwise repeat identical messages.
func dedupeWarnings(warnings []string) []string {
	seen := make(map[string]bool, len(warnings))
	out := warnings[:0:0]
	for _, w := range warnings {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
