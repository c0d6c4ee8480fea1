package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"xdao.co/permtrace/compliance"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/resolver"
)

// Backend evaluates a fact set against the declarative ruleset and
// returns answer facts, one per line.
type Backend interface {
	Solve(ctx context.Context, facts []string) ([]string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, facts []string) ([]string, error)

func (f BackendFunc) Solve(ctx context.Context, facts []string) ([]string, error) {
	return f(ctx, facts)
}

// ExecBackend runs an external solver binary: facts go to stdin,
// answer facts are read line-by-line from stdout.
type ExecBackend struct {
	// Command is the solver invocation, e.g. {"clingo", "--mode=..."}.
	Command []string
}

func (e *ExecBackend) Solve(ctx context.Context, facts []string) ([]string, error) {
	if len(e.Command) == 0 {
		return nil, errors.New("solver: exec backend without a command")
	}
	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = strings.NewReader(strings.Join(facts, "\n") + "\n")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("solver: %s: %w: %s", e.Command[0], err, strings.TrimSpace(errOut.String()))
	}
	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Options controls solver-backed resolution.
type Options struct {
	Mode compliance.Mode
}

// Resolve runs the solver backend end to end: emit facts, solve,
// parse answers, and map them onto a Resolution with the same
// deduplication semantics as the traversal engine.
//
// Answers are contract-granular: a record for a giver contract
// attaches to each of its permissioned functions.
func Resolve(ctx context.Context, doc *overrides.Document, snap *discovered.Snapshot, backend Backend, opts Options) (*resolver.Resolution, error) {
	if backend == nil {
		return nil, errors.New("solver: missing backend")
	}
	answers, err := backend.Solve(ctx, Facts(doc, snap))
	if err != nil {
		return nil, err
	}
	sort.Strings(answers)
	parsed, err := ParseAnswers(answers)
	if err != nil {
		return nil, err
	}

	byGiver := make(map[string][]resolver.UltimateOwner)
	for _, u := range parsed {
		byGiver[u.Giver.Key()] = append(byGiver[u.Giver.Key()], toUltimateOwner(snap, u))
	}

	res := &resolver.Resolution{
		OverridesVersion: doc.Version,
		DiscoveredHash:   snap.Hash,
	}
	for _, c := range doc.Contracts {
		var funcs []resolver.ResolvedFunction
		for i := range c.Functions {
			f := &c.Functions[i]
			if !f.Permissioned() {
				continue
			}
			rf := resolver.ResolvedFunction{FunctionName: f.FunctionName}
			rf.DirectOwners = resolver.ResolveOwners(snap, c.Address, f.OwnerDefinitions)
			for _, o := range rf.DirectOwners {
				if !o.IsResolved {
					rf.Warnings = append(rf.Warnings, fmt.Sprintf("owner path %q could not be resolved: %v", o.Source.Path, o.Err))
				}
			}
			rf.UltimateOwners = dedupeOwners(byGiver[c.Address.Key()])
			funcs = append(funcs, rf)
		}
		if len(funcs) == 0 {
			continue
		}
		res.Contracts = append(res.Contracts, resolver.ContractResolution{Address: c.Address, Functions: funcs})
	}

	if opts.Mode == compliance.Strict {
		for _, c := range res.Contracts {
			for _, f := range c.Functions {
				if len(f.Warnings) > 0 {
					return nil, fmt.Errorf("strict mode: %s.%s carries warnings: %s", c.Address, f.FunctionName, f.Warnings[0])
				}
			}
		}
	}
	return res, nil
}

func toUltimateOwner(snap *discovered.Snapshot, u UltimatePermission) resolver.UltimateOwner {
	out := resolver.UltimateOwner{
		Address:         u.Receiver,
		Type:            snap.TypeOf(u.Receiver),
		Via:             []resolver.ViaStep{},
		Delays:          []int64{},
		CumulativeDelay: u.TotalDelay,
	}
	for _, a := range u.Via {
		out.Via = append(out.Via, resolver.ViaStep{Address: a, Type: snap.TypeOf(a)})
	}
	// The solver reports only the total; keep the delays list
	// consistent with the cumulative sum.
	if u.TotalDelay > 0 {
		out.Delays = append(out.Delays, u.TotalDelay)
	}
	return out
}

func dedupeOwners(owners []resolver.UltimateOwner) []resolver.UltimateOwner {
	seen := make(map[string]bool, len(owners))
	var out []resolver.UltimateOwner
	for _, u := range owners {
		key := u.Address.Key()
		for _, v := range u.Via {
			key += "|" + v.Address.Key()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}
