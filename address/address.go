// Package address implements chain-qualified account identifiers.
package address

import (
	"errors"
	"fmt"
	"strings"
)

// Address is a chain-qualified account identifier of the form
// <chain>:<hex>, e.g. "eth:0xabcd".
//
// The chain tag is opaque. The hex portion is case-insensitive;
// equality and map keys use the normalized (lowercase) form produced
// by Parse.
type Address struct {
	Chain string
	Hex   string
}

// Zero is the undefined address.
var Zero Address

// Parse parses and normalizes a qualified address.
func Parse(s string) (Address, error) {
	chain, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		return Zero, fmt.Errorf("address: missing chain qualifier in %q", s)
	}
	return FromBare(chain, hexPart)
}

// FromBare builds a qualified address from an opaque chain tag and a
// bare hex string (the form used at the tagging-store boundary).
func FromBare(chain, hexPart string) (Address, error) {
	if chain == "" {
		return Zero, errors.New("address: empty chain tag")
	}
	if strings.ContainsAny(chain, ":_ \t\n") {
		return Zero, fmt.Errorf("address: invalid chain tag %q", chain)
	}
	h := strings.ToLower(hexPart)
	if !strings.HasPrefix(h, "0x") || len(h) == 2 {
		return Zero, fmt.Errorf("address: hex part %q must start with 0x", hexPart)
	}
	for _, c := range h[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Zero, fmt.Errorf("address: non-hex character %q in %q", c, hexPart)
		}
	}
	return Address{Chain: chain, Hex: h}, nil
}

// MustParse parses a qualified address and panics on failure.
// Intended for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Defined() bool { return a.Chain != "" && a.Hex != "" }

func (a Address) String() string {
	if !a.Defined() {
		return ""
	}
	return a.Chain + ":" + a.Hex
}

// Key returns the normalized map key for this address. Two addresses
// are equal iff their Keys are equal.
func (a Address) Key() string { return a.String() }

// SolverID returns the identifier form used in logic-solver facts:
// the colon is substituted by an underscore (eth:0xab -> eth_0xab).
func (a Address) SolverID() string {
	return a.Chain + "_" + a.Hex
}

// FromSolverID inverts SolverID.
func FromSolverID(id string) (Address, error) {
	chain, hexPart, ok := strings.Cut(id, "_")
	if !ok {
		return Zero, fmt.Errorf("address: malformed solver identifier %q", id)
	}
	return FromBare(chain, hexPart)
}

// MarshalText encodes the qualified form.
func (a Address) MarshalText() ([]byte, error) {
	if !a.Defined() {
		return nil, errors.New("address: cannot encode undefined address")
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes and normalizes the qualified form.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
