// Package tagging implements the curator tag store.
//
// Tags are keyed by bare hex addresses (no chain qualifier), the
// legacy external form. Lookups normalize qualified addresses down
// to the bare form; all hex comparison is on the lowercase form.
package tagging

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"xdao.co/permtrace/address"
)

// Set is an in-memory tag table.
type Set struct {
	tags map[string][]string
}

type setWire struct {
	Tags map[string][]string `json:"tags"`
}

// ParseSet decodes a tag document.
func ParseSet(data []byte) (*Set, error) {
	var w setWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("tagging: malformed document: %w", err)
	}
	s := &Set{tags: make(map[string][]string, len(w.Tags))}
	for hex, tags := range w.Tags {
		s.tags[strings.ToLower(hex)] = append([]string(nil), tags...)
	}
	return s, nil
}

// Load reads a tag document from path. A missing file is an empty
// set.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{tags: map[string][]string{}}, nil
		}
		return nil, err
	}
	return ParseSet(data)
}

// TagsFor returns the tags for a qualified address, sorted.
func (s *Set) TagsFor(a address.Address) []string {
	if s == nil || len(s.tags) == 0 {
		return nil
	}
	out := append([]string(nil), s.tags[a.Hex]...)
	sort.Strings(out)
	return out
}

// Add records a tag for a qualified address.
func (s *Set) Add(a address.Address, tag string) {
	if s.tags == nil {
		s.tags = make(map[string][]string)
	}
	for _, t := range s.tags[a.Hex] {
		if t == tag {
			return
		}
	}
	s.tags[a.Hex] = append(s.tags[a.Hex], tag)
}

// Render produces canonical bytes: keys sorted, tags sorted.
func (s *Set) Render() ([]byte, error) {
	keys := make([]string, 0, len(s.tags))
	for k := range s.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`{"tags":{`)
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		sb.Write(kb)
		sb.WriteByte(':')
		tags := append([]string(nil), s.tags[k]...)
		sort.Strings(tags)
		tb, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		sb.Write(tb)
	}
	sb.WriteString("}}")
	return []byte(sb.String()), nil
}
