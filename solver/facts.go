// Package solver implements the optional logic-solver backend: it
// renders a project as a flat set of facts, hands them to an
// external declarative solver, and maps the solver's
// ultimatePermission answers back onto a resolution.
package solver

import (
	"sort"
	"strconv"
	"strings"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/resolver"
)

// Facts renders the deterministic fact set for one project.
//
// Identifiers use the chain_hex form. Emitted predicates:
//
//	address(Id, "chain", "qualified").
//	addressType(Id, eoa|multisig|contract|unknown).
//	canActIndependently(Id).
//	permission(Receiver, "type", Giver, Delay, "Description", "Role").
//
// Facts are sorted within each predicate group; two identical
// projects render identical fact sets.
func Facts(doc *overrides.Document, snap *discovered.Snapshot) []string {
	graph := resolver.NewGraph(doc)

	seen := make(map[string]address.Address)
	note := func(a address.Address) {
		if a.Defined() {
			seen[a.Key()] = a
		}
	}
	for _, a := range snap.Addresses() {
		note(a)
	}

	var permissionFacts []string
	for _, c := range doc.Contracts {
		note(c.Address)
		var giverDelay int64
		if node, ok := graph.Node(c.Address); ok {
			giverDelay, _ = stepDelayOf(snap, node)
		}
		for i := range c.Functions {
			f := &c.Functions[i]
			if !f.Permissioned() {
				continue
			}
			for _, o := range resolver.ResolveOwners(snap, c.Address, f.OwnerDefinitions) {
				if !o.IsResolved {
					continue
				}
				note(o.Address)
				permissionFacts = append(permissionFacts, permissionFact(o, c.Address, giverDelay, f.Description))
			}
		}
	}

	var addressFacts, typeFacts, actFacts []string
	for _, a := range seen {
		id := a.SolverID()
		addressFacts = append(addressFacts, "address("+id+", "+quote(a.Chain)+", "+quote(a.String())+").")
		typ := snap.TypeOf(a)
		typeFacts = append(typeFacts, "addressType("+id+", "+typ.SolverType()+").")
		if typ.Terminal() {
			actFacts = append(actFacts, "canActIndependently("+id+").")
		}
	}
	sort.Strings(addressFacts)
	sort.Strings(typeFacts)
	sort.Strings(actFacts)
	sort.Strings(permissionFacts)
	permissionFacts = compact(permissionFacts)

	out := make([]string, 0, len(addressFacts)+len(typeFacts)+len(actFacts)+len(permissionFacts))
	out = append(out, addressFacts...)
	out = append(out, typeFacts...)
	out = append(out, actFacts...)
	out = append(out, permissionFacts...)
	return out
}

func permissionFact(o resolver.DirectOwner, giver address.Address, delay int64, description string) string {
	return "permission(" + o.Address.SolverID() +
		", " + quote(string(o.PermissionType)) +
		", " + giver.SolverID() +
		", " + strconv.FormatInt(delay, 10) +
		", " + quote(description) +
		", " + quote(o.Role) + ")."
}

func stepDelayOf(snap *discovered.Snapshot, node *resolver.Node) (int64, bool) {
	var max int64
	for _, ref := range node.Delays {
		d, err := resolver.ResolveDelay(snap, ref)
		if err != nil {
			continue
		}
		if d > max {
			max = d
		}
	}
	return max, max > 0
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}

// compact drops adjacent duplicates from a sorted slice.
func compact(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && sorted[i-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
