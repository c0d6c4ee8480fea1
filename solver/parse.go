package solver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"xdao.co/permtrace/address"
)

// UltimatePermission is one parsed answer fact:
//
//	ultimatePermission(Receiver, "type", Giver, _, _, "Role", _,
//	                   TotalDelay, [Via...], _).
type UltimatePermission struct {
	Receiver       address.Address
	PermissionType string
	Giver          address.Address
	Role           string
	TotalDelay     int64
	Via            []address.Address
}

const ultimatePrefix = "ultimatePermission("

// ParseAnswers parses solver output lines, skipping blank lines and
// facts other than ultimatePermission.
func ParseAnswers(lines []string) ([]UltimatePermission, error) {
	var out []UltimatePermission
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, ultimatePrefix) {
			continue
		}
		u, err := ParseUltimatePermission(line)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// ParseUltimatePermission parses a single ultimatePermission fact.
func ParseUltimatePermission(line string) (*UltimatePermission, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ".")
	if !strings.HasPrefix(line, ultimatePrefix) || !strings.HasSuffix(line, ")") {
		return nil, fmt.Errorf("solver: not an ultimatePermission fact: %q", line)
	}
	args, err := splitArgs(line[len(ultimatePrefix) : len(line)-1])
	if err != nil {
		return nil, fmt.Errorf("solver: %w in %q", err, line)
	}
	if len(args) != 10 {
		return nil, fmt.Errorf("solver: ultimatePermission expects 10 arguments, got %d in %q", len(args), line)
	}

	u := &UltimatePermission{}
	if u.Receiver, err = address.FromSolverID(args[0]); err != nil {
		return nil, fmt.Errorf("solver: receiver: %w", err)
	}
	u.PermissionType = unquote(args[1])
	if u.Giver, err = address.FromSolverID(args[2]); err != nil {
		return nil, fmt.Errorf("solver: giver: %w", err)
	}
	if role := unquote(args[5]); role != "_" {
		u.Role = role
	}
	if args[7] != "_" {
		n, err := strconv.ParseInt(args[7], 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("solver: total delay %q in %q", args[7], line)
		}
		u.TotalDelay = n
	}
	via, err := parseList(args[8])
	if err != nil {
		return nil, fmt.Errorf("solver: via list: %w in %q", err, line)
	}
	u.Via = via
	return u, nil
}

// splitArgs splits a comma-separated argument list at the top level,
// respecting quotes and bracketed lists.
func splitArgs(s string) ([]string, error) {
	var args []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced brackets")
			}
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if inQuote || depth != 0 {
		return nil, errors.New("unbalanced quotes or brackets")
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args, nil
}

func parseList(s string) ([]address.Address, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("expected a bracketed list, got %q", s)
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, nil
	}
	var out []address.Address
	for _, part := range strings.Split(inner, ",") {
		a, err := address.FromSolverID(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return s
}
