// Package discovered models a project's discovered on-chain state:
// contracts, EOAs and multisigs with their typed field trees.
//
// A Snapshot is read once per resolution run and is read-only after
// load. Values handed out by lookup methods are the snapshot's own;
// callers that need to retain them past the run must Clone.
package discovered

import (
	"encoding/json"
	"fmt"

	"xdao.co/permtrace/address"
	"xdao.co/permtrace/cidutil"
)

// Field is one named value of a discovered entry, in document order.
type Field struct {
	Name  string     `json:"name"`
	Value FieldValue `json:"value"`
}

// Entry is a single discovered address with its typed state.
//
// Values is the legacy ad-hoc map retained by older discovery
// handlers; field lookup consults it before Fields.
type Entry struct {
	Address address.Address       `json:"address"`
	Type    address.Type          `json:"type"`
	Name    string                `json:"name,omitempty"`
	Fields  []Field               `json:"fields,omitempty"`
	Values  map[string]FieldValue `json:"values,omitempty"`
}

// FieldNamed resolves a field by name: the legacy values map wins,
// then the ordered fields sequence.
func (e *Entry) FieldNamed(name string) (FieldValue, bool) {
	if v, ok := e.Values[name]; ok {
		return v, true
	}
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// Snapshot is the in-memory projection of a discovered document.
//
// Hash is the 16-hex-char SHA-256 prefix of the document bytes as
// stored, carried into resolved documents as provenance.
type Snapshot struct {
	Hash string

	entries map[string]*Entry
	order   []address.Address
}

type snapshotWire struct {
	Entries []*Entry `json:"entries"`
}

// ParseSnapshot decodes a discovered document and indexes its
// entries. Addresses must be unique within a snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("discovered: malformed document: %w", err)
	}
	s := &Snapshot{
		Hash:    cidutil.SHA256Prefix16(data),
		entries: make(map[string]*Entry, len(w.Entries)),
	}
	for _, e := range w.Entries {
		if !e.Address.Defined() {
			return nil, fmt.Errorf("discovered: entry with undefined address")
		}
		if !e.Type.Valid() {
			return nil, fmt.Errorf("discovered: entry %s has unknown type %q", e.Address, e.Type)
		}
		key := e.Address.Key()
		if _, dup := s.entries[key]; dup {
			return nil, fmt.Errorf("discovered: duplicate address %s", e.Address)
		}
		s.entries[key] = e
		s.order = append(s.order, e.Address)
	}
	return s, nil
}

// NewSnapshot builds a snapshot from entries directly. Intended for
// tests and programmatic construction; Hash is derived from the
// canonical encoding of the entries.
func NewSnapshot(entries ...*Entry) (*Snapshot, error) {
	b, err := json.Marshal(snapshotWire{Entries: entries})
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(b)
}

// Lookup returns the entry for a, if present.
func (s *Snapshot) Lookup(a address.Address) (*Entry, bool) {
	e, ok := s.entries[a.Key()]
	return e, ok
}

// TypeOf classifies a. Addresses absent from the snapshot are
// TypeUnknown.
func (s *Snapshot) TypeOf(a address.Address) address.Type {
	if e, ok := s.entries[a.Key()]; ok {
		return e.Type
	}
	return address.TypeUnknown
}

// Addresses returns the snapshot's addresses in document order.
func (s *Snapshot) Addresses() []address.Address {
	return append([]address.Address(nil), s.order...)
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.order) }
