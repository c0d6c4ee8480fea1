package pathexpr

import (
	"strconv"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/discovered"
)

// Result is the outcome of one path evaluation.
//
// Addresses preserves document order; duplicates within a single
// resolution are permitted and deduplicated by the caller.
// Structured is set when the terminal node is an object (the whole
// subtree, cloned) or a non-address scalar. Arrays are flattened and
// not preserved.
type Result struct {
	Addresses  []address.Address
	Structured *discovered.FieldValue
}

// Evaluate resolves a parsed path against a snapshot. self is the
// contract on which the enclosing function is defined.
//
// Failures carry a *Error; callers downgrade them to per-owner
// warnings rather than aborting a run.
func Evaluate(snap *discovered.Snapshot, self address.Address, p *Path) (Result, error) {
	root, err := resolveRoot(snap, self, p)
	if err != nil {
		return Result{}, err
	}

	// A path with only a contract-ref yields that contract's address.
	if len(p.Segments) == 0 {
		return Result{Addresses: []address.Address{root}}, nil
	}

	entry, ok := snap.Lookup(root)
	if !ok {
		return Result{}, newError(KindUnknownContract, p.raw, "contract "+root.String()+" not in snapshot")
	}

	first := p.Segments[0]
	cur, ok := entry.FieldNamed(first.Key)
	if !ok {
		return Result{}, newError(KindUnknownField, p.raw, "contract "+root.String()+" has no field "+strconv.Quote(first.Key))
	}

	for _, seg := range p.Segments[1:] {
		// An address value is never auto-followed during descent:
		// only explicit @field roots follow address fields.
		if cur.Kind == discovered.KindAddress {
			return Result{}, nil
		}
		next, err := step(p.raw, cur, seg)
		if err != nil {
			return Result{}, err
		}
		cur = next
	}

	return terminal(cur), nil
}

func resolveRoot(snap *discovered.Snapshot, self address.Address, p *Path) (address.Address, error) {
	switch p.Root {
	case RootSelf:
		return self, nil
	case RootAddress:
		return p.Addr, nil
	case RootField:
		entry, ok := snap.Lookup(self)
		if !ok {
			return address.Zero, newError(KindUnknownContract, p.raw, "contract "+self.String()+" not in snapshot")
		}
		v, ok := entry.FieldNamed(p.FieldName)
		if !ok {
			return address.Zero, newError(KindUnknownField, p.raw, "contract "+self.String()+" has no field "+strconv.Quote(p.FieldName))
		}
		if v.Kind != discovered.KindAddress {
			return address.Zero, newError(KindTypeMismatch, p.raw, "@"+p.FieldName+" resolves to a "+string(v.Kind)+" value, not an address")
		}
		return v.Address, nil
	}
	return address.Zero, newError(KindMalformedPath, p.raw, "unknown root kind")
}

func step(raw string, cur discovered.FieldValue, seg Segment) (discovered.FieldValue, error) {
	if seg.IsIndex {
		if cur.Kind != discovered.KindArray {
			return discovered.FieldValue{}, newError(KindTypeMismatch, raw, "index ["+strconv.Itoa(seg.Index)+"] applied to "+string(cur.Kind)+" value")
		}
		if seg.Index < 0 || seg.Index >= len(cur.Items) {
			return discovered.FieldValue{}, newError(KindIndexOutOfRange, raw, "index "+strconv.Itoa(seg.Index)+" out of range for array of length "+strconv.Itoa(len(cur.Items)))
		}
		return cur.Items[seg.Index], nil
	}
	if cur.Kind != discovered.KindObject {
		return discovered.FieldValue{}, newError(KindTypeMismatch, raw, "key "+strconv.Quote(seg.Key)+" applied to "+string(cur.Kind)+" value")
	}
	v, ok := cur.Lookup(seg.Key)
	if !ok {
		return discovered.FieldValue{}, newError(KindUnknownField, raw, "object has no key "+strconv.Quote(seg.Key))
	}
	return v, nil
}

func terminal(cur discovered.FieldValue) Result {
	switch cur.Kind {
	case discovered.KindAddress:
		return Result{Addresses: []address.Address{cur.Address}}
	case discovered.KindArray:
		return Result{Addresses: cur.Addresses()}
	case discovered.KindObject:
		clone := cur.Clone()
		return Result{Addresses: cur.Addresses(), Structured: &clone}
	default:
		clone := cur.Clone()
		return Result{Structured: &clone}
	}
}
