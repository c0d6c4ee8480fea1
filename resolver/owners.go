package resolver

import (
	"fmt"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/pathexpr"
)

// PlaceholderUnresolved is the address slot of an owner record whose
// path expression failed to evaluate.
const PlaceholderUnresolved = "RESOLUTION_FAILED"

// DirectOwner is one resolved (or failed) owner of a permissioned
// function.
//
// PermissionType is the effective edge type: the definition's
// explicit tag when present, otherwise inferred from the owner's
// address type (act for EOA, EOAPermissioned, Multisig and Unknown;
// admin otherwise).
type DirectOwner struct {
	Address        address.Address
	IsResolved     bool
	Source         overrides.OwnerDefinition
	PermissionType overrides.PermissionType
	Role           string
	Structured     *discovered.FieldValue
	Err            error
}

// Label returns the address for resolved owners and the failure
// placeholder otherwise.
func (o DirectOwner) Label() string {
	if o.IsResolved {
		return o.Address.String()
	}
	return PlaceholderUnresolved
}

// ResolveOwners evaluates a function's owner definitions in order.
//
// A failed evaluation yields a single unresolved record. A single
// address with a scalar structured value yields a single resolved
// record. Otherwise one resolved record is emitted per produced
// address, each carrying the structured value. Results concatenate
// in definition order.
func ResolveOwners(snap *discovered.Snapshot, self address.Address, defs []overrides.OwnerDefinition) []DirectOwner {
	var out []DirectOwner
	for _, def := range defs {
		out = append(out, resolveOne(snap, self, def)...)
	}
	return out
}

func resolveOne(snap *discovered.Snapshot, self address.Address, def overrides.OwnerDefinition) []DirectOwner {
	p, err := pathexpr.Parse(def.Path)
	if err != nil {
		return []DirectOwner{{Source: def, Err: err}}
	}
	res, err := pathexpr.Evaluate(snap, self, p)
	if err != nil {
		return []DirectOwner{{Source: def, Err: err}}
	}

	role := p.RoleHint()
	owners := make([]DirectOwner, 0, len(res.Addresses))
	for _, a := range res.Addresses {
		o := DirectOwner{
			Address:        a,
			IsResolved:     true,
			Source:         def,
			PermissionType: effectivePermission(def, snap.TypeOf(a)),
			Role:           role,
		}
		if res.Structured != nil && !res.Structured.Scalar() {
			o.Structured = res.Structured
		}
		owners = append(owners, o)
	}
	return owners
}

func effectivePermission(def overrides.OwnerDefinition, t address.Type) overrides.PermissionType {
	if def.PermissionType != "" {
		return def.PermissionType
	}
	switch t {
	case address.TypeEOA, address.TypeEOAPermissioned, address.TypeMultisig, address.TypeUnknown:
		return overrides.PermissionAct
	default:
		return overrides.PermissionAdmin
	}
}

// ownerWarning formats the function-level warning for a failed owner.
func ownerWarning(o DirectOwner) string {
	return fmt.Sprintf("owner path %q could not be resolved: %v", o.Source.Path, o.Err)
}
