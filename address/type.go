package address

// Type classifies a discovered address.
type Type string

const (
	TypeEOA             Type = "EOA"
	TypeEOAPermissioned Type = "EOAPermissioned"
	TypeUnverified      Type = "Unverified"
	TypeToken           Type = "Token"
	TypeMultisig        Type = "Multisig"
	TypeDiamond         Type = "Diamond"
	TypeTimelock        Type = "Timelock"
	TypeContract        Type = "Contract"
	TypeUnknown         Type = "Unknown"
)

// Terminal reports whether ownership traversal stops at this type.
func (t Type) Terminal() bool {
	switch t {
	case TypeEOA, TypeMultisig, TypeUnknown:
		return true
	}
	return false
}

// Valid reports whether t is one of the closed set of types.
func (t Type) Valid() bool {
	switch t {
	case TypeEOA, TypeEOAPermissioned, TypeUnverified, TypeToken,
		TypeMultisig, TypeDiamond, TypeTimelock, TypeContract, TypeUnknown:
		return true
	}
	return false
}

// ParseType maps a wire string onto the closed type set.
// Unrecognized strings map to TypeUnknown.
func ParseType(s string) Type {
	t := Type(s)
	if t.Valid() {
		return t
	}
	return TypeUnknown
}

// SolverType folds a Type onto the coarse solver vocabulary:
// eoa, multisig, contract or unknown.
func (t Type) SolverType() string {
	switch t {
	case TypeEOA, TypeEOAPermissioned:
		return "eoa"
	case TypeMultisig:
		return "multisig"
	case TypeUnknown:
		return "unknown"
	default:
		return "contract"
	}
}
