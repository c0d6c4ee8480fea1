// Package resolved implements the resolved-permissions document: the
// engine's output format, its canonical rendering, and the archival
// form addressed by CID.
package resolved

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"xdao.co/permtrace/resolver"
)

// Version is the resolved document format version this package
// writes.
const Version = "1.0"

// ViaStep is one intermediate on an ownership path.
type ViaStep struct {
	Address        string `json:"address"`
	AddressType    string `json:"addressType"`
	Delay          *int64 `json:"delay,omitempty"`
	DelayFormatted string `json:"delayFormatted,omitempty"`
}

// UltimateOwner is one terminal principal with its path and delays.
type UltimateOwner struct {
	Address                  string    `json:"address"`
	AddressType              string    `json:"addressType"`
	Via                      []ViaStep `json:"via"`
	Delays                   []int64   `json:"delays"`
	CumulativeDelay          int64     `json:"cumulativeDelay"`
	CumulativeDelayFormatted string    `json:"cumulativeDelayFormatted"`
}

// Function is the resolved record for one permissioned function.
type Function struct {
	FunctionName   string          `json:"functionName"`
	DirectOwners   []string        `json:"directOwners"`
	UltimateOwners []UltimateOwner `json:"ultimateOwners"`
	Warnings       []string        `json:"warnings"`
}

// Contract groups resolved functions for one contract address.
type Contract struct {
	Address   string
	Functions []Function
}

// GeneratedFrom stamps the inputs a document was computed from.
type GeneratedFrom struct {
	PermissionOverridesVersion string `json:"permissionOverridesVersion"`
	DiscoveredJSONHash         string `json:"discoveredJsonHash"`
}

// Document is a full resolved-permissions document in contract order.
type Document struct {
	Version       string
	LastModified  string
	GeneratedFrom GeneratedFrom
	Contracts     []Contract
}

// RenderOptions controls document metadata.
type RenderOptions struct {
	// GeneratedAt stamps lastModified; zero omits the field so two
	// runs over identical inputs render byte-identically.
	GeneratedAt time.Time
}

// FromResolution converts an engine resolution into the wire
// document.
func FromResolution(res *resolver.Resolution, opts RenderOptions) *Document {
	doc := &Document{
		Version: Version,
		GeneratedFrom: GeneratedFrom{
			PermissionOverridesVersion: res.OverridesVersion,
			DiscoveredJSONHash:         res.DiscoveredHash,
		},
	}
	if !opts.GeneratedAt.IsZero() {
		doc.LastModified = opts.GeneratedAt.UTC().Format(time.RFC3339)
	}
	for _, c := range res.Contracts {
		out := Contract{Address: c.Address.String()}
		for _, f := range c.Functions {
			out.Functions = append(out.Functions, fromFunction(f))
		}
		doc.Contracts = append(doc.Contracts, out)
	}
	return doc
}

func fromFunction(f resolver.ResolvedFunction) Function {
	out := Function{
		FunctionName:   f.FunctionName,
		DirectOwners:   []string{},
		UltimateOwners: []UltimateOwner{},
		Warnings:       append([]string{}, f.Warnings...),
	}
	for _, o := range f.DirectOwners {
		out.DirectOwners = append(out.DirectOwners, o.Label())
	}
	for _, u := range f.UltimateOwners {
		rec := UltimateOwner{
			Address:                  u.Address.String(),
			AddressType:              string(u.Type),
			Via:                      []ViaStep{},
			Delays:                   append([]int64{}, u.Delays...),
			CumulativeDelay:          u.CumulativeDelay,
			CumulativeDelayFormatted: resolver.FormatDelay(u.CumulativeDelay),
		}
		for _, v := range u.Via {
			step := ViaStep{Address: v.Address.String(), AddressType: string(v.Type)}
			if v.Delay > 0 {
				d := v.Delay
				step.Delay = &d
				step.DelayFormatted = resolver.FormatDelay(d)
			}
			rec.Via = append(rec.Via, step)
		}
		out.UltimateOwners = append(out.UltimateOwners, rec)
	}
	return out
}

type contractWire struct {
	Functions []Function `json:"functions"`
}

// Render produces canonical document bytes: fixed top-level key
// order, contracts in document order, compact encoding.
func (d *Document) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"version":`)
	if err := writeJSON(&buf, d.Version); err != nil {
		return nil, err
	}
	if d.LastModified != "" {
		buf.WriteString(`,"lastModified":`)
		if err := writeJSON(&buf, d.LastModified); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`,"generatedFrom":`)
	if err := writeJSON(&buf, d.GeneratedFrom); err != nil {
		return nil, err
	}
	buf.WriteString(`,"contracts":{`)
	for i, c := range d.Contracts {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, c.Address); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, contractWire{Functions: c.Functions}); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Parse decodes a resolved document, preserving contract order.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	doc := &Document{}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("resolved: malformed document: %w", err)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("resolved: malformed document: %w", err)
		}
		key, _ := keyTok.(string)
		switch key {
		case "version":
			err = dec.Decode(&doc.Version)
		case "lastModified":
			err = dec.Decode(&doc.LastModified)
		case "generatedFrom":
			err = dec.Decode(&doc.GeneratedFrom)
		case "contracts":
			err = decodeContracts(dec, doc)
		default:
			err = fmt.Errorf("unknown top-level key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("resolved: %w", err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("resolved: malformed document: %w", err)
	}
	return doc, nil
}

func decodeContracts(dec *json.Decoder, doc *Document) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		addr, _ := keyTok.(string)
		var cw contractWire
		if err := dec.Decode(&cw); err != nil {
			return fmt.Errorf("contract %s: %w", addr, err)
		}
		doc.Contracts = append(doc.Contracts, Contract{Address: addr, Functions: cw.Functions})
	}
	return expectDelim(dec, '}')
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
