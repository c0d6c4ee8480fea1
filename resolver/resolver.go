// Package resolver computes, for every permissioned function in an
// overrides catalogue, its direct owners and the ultimate owners
// reachable over the ownership graph, with accumulated time delays.
//
// A resolution run is a pure function of (overrides document,
// discovered snapshot): no I/O, no wall-clock reads, deterministic
// output for identical inputs.
package resolver

import (
	"fmt"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/compliance"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
)

// ResolvedFunction is the result for one permissioned function.
type ResolvedFunction struct {
	FunctionName   string
	DirectOwners   []DirectOwner
	UltimateOwners []UltimateOwner
	Warnings       []string
}

// ContractResolution groups results for one contract, in function
// order.
type ContractResolution struct {
	Address   address.Address
	Functions []ResolvedFunction
}

// Resolution is the outcome of one run. Contracts appear in
// overrides-document order; only contracts with at least one
// permissioned function are included.
type Resolution struct {
	Contracts []ContractResolution

	OverridesVersion string
	DiscoveredHash   string
}

// Options controls run-level behavior.
//
// Default behavior is Permissive when Options{} is used.
type Options struct {
	Mode compliance.Mode
}

// Resolve runs the full resolution: for each contract and each
// permissioned function, direct owners feed the branching DFS and
// the deduplicated ultimate owners are collected.
//
// Path and delay failures downgrade to per-function warnings; no
// function ever prevents another from being resolved. In strict mode
// a run with any warning fails instead.
func Resolve(doc *overrides.Document, snap *discovered.Snapshot, opts Options) (*Resolution, error) {
	graph := NewGraph(doc)
	t := &traversal{snap: snap, graph: graph}

	res := &Resolution{
		OverridesVersion: doc.Version,
		DiscoveredHash:   snap.Hash,
	}

	for _, c := range doc.Contracts {
		var funcs []ResolvedFunction
		for i := range c.Functions {
			f := &c.Functions[i]
			if !f.Permissioned() {
				continue
			}
			funcs = append(funcs, resolveFunction(t, c.Address, f))
		}
		if len(funcs) == 0 {
			continue
		}
		res.Contracts = append(res.Contracts, ContractResolution{Address: c.Address, Functions: funcs})
	}

	if opts.Mode == compliance.Strict {
		if err := enforceStrict(res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func resolveFunction(t *traversal, self address.Address, f *overrides.FunctionOverride) ResolvedFunction {
	out := ResolvedFunction{FunctionName: f.FunctionName}

	out.DirectOwners = ResolveOwners(t.snap, self, f.OwnerDefinitions)

	var ultimate []UltimateOwner
	var warnings []string
	for _, o := range out.DirectOwners {
		if !o.IsResolved {
			warnings = append(warnings, ownerWarning(o))
			continue
		}
		owners, w := t.traceFrom(self, o.Address)
		ultimate = append(ultimate, owners...)
		warnings = append(warnings, w...)
	}

	out.UltimateOwners = dedupe(ultimate)
	out.Warnings = dedupeWarnings(warnings)
	return out
}

func enforceStrict(res *Resolution) error {
	for _, c := range res.Contracts {
		for _, f := range c.Functions {
			if len(f.Warnings) > 0 {
				return fmt.Errorf("strict mode: %s.%s carries %d warning(s): %s",
					c.Address, f.FunctionName, len(f.Warnings), f.Warnings[0])
			}
		}
	}
	return nil
}
