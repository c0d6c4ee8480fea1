// Package pathexpr implements the path-expression language that
// locates values inside a discovered contract's field tree.
//
// Grammar:
//
//	path         := contract-ref ( '.' segment ( '.' segment | '[' key ']' )* )?
//	contract-ref := '$self' | '@' field-name | qualified-address
//	segment      := identifier
//	key          := qualified-address | identifier | digits
//
// "$self" binds to the contract on which the enclosing function is
// defined. "@name" re-roots evaluation at the address held by the
// current contract's same-named field. A qualified-address root
// re-roots directly.
package pathexpr

import (
	"strconv"
	"strings"

	"xdao.co/permtrace/address"
)

// RootKind distinguishes the three contract-ref forms.
type RootKind int

const (
	RootSelf RootKind = iota
	RootField
	RootAddress
)

// Segment is one step of a parsed path: a field name, an array
// index, or a bracketed address key.
type Segment struct {
	Key     string
	Index   int
	Addr    address.Address
	IsIndex bool
	IsAddr  bool
}

// Path is a parsed path expression.
type Path struct {
	Root      RootKind
	FieldName string          // RootField
	Addr      address.Address // RootAddress
	Segments  []Segment

	raw string
}

// String returns the expression as written.
func (p *Path) String() string { return p.raw }

// RoleHint returns the role-table key the path descends through, if
// any: the segment following an "accessControl" segment. Solver
// facts carry it as the role argument.
func (p *Path) RoleHint() string {
	for i, s := range p.Segments {
		if s.Key == "accessControl" && i+1 < len(p.Segments) {
			next := p.Segments[i+1]
			if !next.IsIndex && !next.IsAddr {
				return next.Key
			}
		}
	}
	return ""
}

// Parse parses a path expression. All failures carry
// KindMalformedPath.
func Parse(expr string) (*Path, error) {
	if expr == "" {
		return nil, newError(KindMalformedPath, expr, "empty path expression")
	}
	p := &Path{raw: expr}
	rest, err := parseRoot(p, expr)
	if err != nil {
		return nil, err
	}
	for rest != "" {
		switch rest[0] {
		case '.':
			name, tail := scanToken(rest[1:])
			if name == "" {
				return nil, newError(KindMalformedPath, expr, "empty segment in "+strconv.Quote(expr))
			}
			p.Segments = append(p.Segments, Segment{Key: name})
			rest = tail
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, newError(KindMalformedPath, expr, "unterminated '[' in "+strconv.Quote(expr))
			}
			key := rest[1:end]
			seg, err := parseKey(expr, key)
			if err != nil {
				return nil, err
			}
			if len(p.Segments) == 0 {
				return nil, newError(KindMalformedPath, expr, "key access must follow a segment in "+strconv.Quote(expr))
			}
			p.Segments = append(p.Segments, seg)
			rest = rest[end+1:]
		default:
			return nil, newError(KindMalformedPath, expr, "expected '.' or '[' at "+strconv.Quote(rest))
		}
	}
	return p, nil
}

func parseRoot(p *Path, expr string) (string, error) {
	switch {
	case strings.HasPrefix(expr, "$self"):
		p.Root = RootSelf
		return expr[len("$self"):], nil
	case strings.HasPrefix(expr, "@"):
		name, rest := scanToken(expr[1:])
		if name == "" {
			return "", newError(KindMalformedPath, expr, "empty field name after '@'")
		}
		p.Root = RootField
		p.FieldName = name
		return rest, nil
	default:
		ref, rest := scanToken(expr)
		a, err := address.Parse(ref)
		if err != nil {
			return "", newError(KindMalformedPath, expr, "contract-ref "+strconv.Quote(ref)+" is not $self, @field or a qualified address")
		}
		p.Root = RootAddress
		p.Addr = a
		return rest, nil
	}
}

func parseKey(expr, key string) (Segment, error) {
	if key == "" {
		return Segment{}, newError(KindMalformedPath, expr, "empty key in "+strconv.Quote(expr))
	}
	if isDigits(key) {
		n, err := strconv.Atoi(key)
		if err != nil {
			return Segment{}, newError(KindMalformedPath, expr, "invalid index "+strconv.Quote(key))
		}
		return Segment{Index: n, IsIndex: true}, nil
	}
	if strings.Contains(key, ":") {
		a, err := address.Parse(key)
		if err != nil {
			return Segment{}, newError(KindMalformedPath, expr, "invalid address key "+strconv.Quote(key))
		}
		return Segment{Key: a.String(), Addr: a, IsAddr: true}, nil
	}
	return Segment{Key: key}, nil
}

// scanToken reads up to the next '.', '[' or ']' delimiter.
func scanToken(s string) (token, rest string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' || s[i] == '[' {
			return s[:i], s[i:]
		}
		if s[i] == ']' {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
