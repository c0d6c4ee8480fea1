// Package overrides models the curator-authored catalogue of
// permissioned functions and their declared owners.
//
// The on-disk document groups function overrides by contract address.
// Contract order is significant (resolution iterates it), so the
// decoder preserves document order instead of using a Go map.
package overrides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/pathexpr"
)

// Version is the overrides document format version this package
// reads and writes.
const Version = "1.0"

// Classification is the curator's verdict on one function.
type Classification string

const (
	Permissioned    Classification = "permissioned"
	NonPermissioned Classification = "non-permissioned"
)

func (c Classification) Valid() bool {
	return c == Permissioned || c == NonPermissioned
}

// RiskScore is the curator-assigned severity of a permissioned
// function.
type RiskScore string

const (
	ScoreUnscored RiskScore = "unscored"
	ScoreLow      RiskScore = "low-risk"
	ScoreMedium   RiskScore = "medium-risk"
	ScoreHigh     RiskScore = "high-risk"
	ScoreCritical RiskScore = "critical"
)

func (s RiskScore) Valid() bool {
	switch s {
	case ScoreUnscored, ScoreLow, ScoreMedium, ScoreHigh, ScoreCritical:
		return true
	}
	return false
}

// OwnerDefinition declares one owner of a permissioned function as a
// path expression, optionally tagged with a permission type.
type OwnerDefinition struct {
	Path           string         `json:"path"`
	PermissionType PermissionType `json:"permissionType,omitempty"`
}

// DelayRef points at a numeric field holding a delay in seconds,
// resolved from the discovered snapshot at traversal time.
type DelayRef struct {
	ContractAddress address.Address `json:"contractAddress"`
	FieldName       string          `json:"fieldName"`
}

// Key returns a stable identity for set membership.
func (d DelayRef) Key() string { return d.ContractAddress.Key() + "." + d.FieldName }

// FunctionOverride is the curator's record for one function of one
// contract.
//
// Timestamps are kept as the ISO-8601 strings found on disk so that
// re-rendering an unmodified document is byte-identical. Checked is a
// pointer so that an explicitly-unchecked entry survives a render
// round-trip distinct from one never reviewed.
type FunctionOverride struct {
	FunctionName       string            `json:"functionName"`
	UserClassification Classification    `json:"userClassification"`
	Checked            *bool             `json:"checked,omitempty"`
	Score              RiskScore         `json:"score,omitempty"`
	Description        string            `json:"description,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	OwnerDefinitions   []OwnerDefinition `json:"ownerDefinitions,omitempty"`
	Delay              *DelayRef         `json:"delay,omitempty"`
	Timestamp          string            `json:"timestamp,omitempty"`
}

// Permissioned reports whether the function feeds resolution.
func (f *FunctionOverride) Permissioned() bool {
	return f.UserClassification == Permissioned
}

// ContractOverrides is the ordered list of function overrides for one
// contract.
type ContractOverrides struct {
	Address   address.Address
	Functions []FunctionOverride
}

// Document is a full overrides catalogue in document order.
type Document struct {
	Version      string
	LastModified string
	Contracts    []ContractOverrides
}

// Contract returns the overrides for a, if present.
func (d *Document) Contract(a address.Address) (*ContractOverrides, bool) {
	key := a.Key()
	for i := range d.Contracts {
		if d.Contracts[i].Address.Key() == key {
			return &d.Contracts[i], true
		}
	}
	return nil, false
}

type contractWire struct {
	Functions []FunctionOverride `json:"functions"`
}

// Parse decodes and validates an overrides document.
//
// Structural problems (malformed JSON, the legacy flat array shape,
// duplicate functions, unparseable owner paths) fail the parse;
// unresolved paths are an evaluation-time concern and surface later
// as warnings.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	doc := &Document{}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("overrides: malformed document: %w", err)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("overrides: malformed document: %w", err)
		}
		key, _ := keyTok.(string)
		switch key {
		case "version":
			if err := dec.Decode(&doc.Version); err != nil {
				return nil, fmt.Errorf("overrides: version: %w", err)
			}
		case "lastModified":
			if err := dec.Decode(&doc.LastModified); err != nil {
				return nil, fmt.Errorf("overrides: lastModified: %w", err)
			}
		case "contracts":
			if err := decodeContracts(dec, doc); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("overrides: unknown top-level key %q", key)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("overrides: malformed document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeContracts(dec *json.Decoder, doc *Document) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("overrides: contracts: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("overrides: contracts must be an object")
	}
	if delim == '[' {
		return fmt.Errorf("overrides: legacy flat overrides array is not supported; migrate to the contract-grouped map")
	}
	if delim != '{' {
		return fmt.Errorf("overrides: contracts must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("overrides: contracts: %w", err)
		}
		raw, _ := keyTok.(string)
		addr, err := address.Parse(raw)
		if err != nil {
			return fmt.Errorf("overrides: contract key %q: %w", raw, err)
		}
		var cw contractWire
		if err := dec.Decode(&cw); err != nil {
			return fmt.Errorf("overrides: contract %s: %w", addr, err)
		}
		doc.Contracts = append(doc.Contracts, ContractOverrides{Address: addr, Functions: cw.Functions})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return fmt.Errorf("overrides: contracts: %w", err)
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of document")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func (d *Document) validate() error {
	seen := make(map[string]bool)
	for _, c := range d.Contracts {
		for i := range c.Functions {
			f := &c.Functions[i]
			if f.FunctionName == "" {
				return fmt.Errorf("overrides: contract %s has a function without a name", c.Address)
			}
			id := c.Address.Key() + "#" + f.FunctionName
			if seen[id] {
				return fmt.Errorf("overrides: duplicate function %s on %s", f.FunctionName, c.Address)
			}
			seen[id] = true
			if !f.UserClassification.Valid() {
				return fmt.Errorf("overrides: %s.%s: invalid classification %q", c.Address, f.FunctionName, f.UserClassification)
			}
			if f.Score != "" && !f.Score.Valid() {
				return fmt.Errorf("overrides: %s.%s: invalid score %q", c.Address, f.FunctionName, f.Score)
			}
			for _, def := range f.OwnerDefinitions {
				if _, err := pathexpr.Parse(def.Path); err != nil {
					return fmt.Errorf("overrides: %s.%s: owner path %q: %w", c.Address, f.FunctionName, def.Path, err)
				}
				if def.PermissionType != "" && !def.PermissionType.Valid() {
					return fmt.Errorf("overrides: %s.%s: invalid permission type %q", c.Address, f.FunctionName, def.PermissionType)
				}
			}
			if f.Delay != nil && f.Delay.FieldName == "" {
				return fmt.Errorf("overrides: %s.%s: delay reference without a field name", c.Address, f.FunctionName)
			}
		}
	}
	return nil
}

// Render produces canonical document bytes: fixed top-level key
// order, contracts in document order, compact encoding. Rendering an
// unmodified parsed document reproduces its semantic content
// byte-for-byte.
func (d *Document) Render() ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"version":`)
	writeJSON(&buf, d.Version)
	buf.WriteString(`,"lastModified":`)
	writeJSON(&buf, d.LastModified)
	buf.WriteString(`,"contracts":{`)
	for i, c := range d.Contracts {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSON(&buf, c.Address.String())
		buf.WriteByte(':')
		b, err := json.Marshal(contractWire{Functions: c.Functions})
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		// strings and simple values cannot fail to marshal
		buf.WriteString("null")
		return
	}
	buf.Write(b)
}
