package discovered

import (
	"bytes"
	"encoding/json"
	"fmt"

	"xdao.co/permtrace/address"
)

// Kind tags a FieldValue variant.
type Kind string

const (
	KindAddress Kind = "address"
	KindHex     Kind = "hex"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindUnknown Kind = "unknown"
	KindError   Kind = "error"
)

// FieldValue is the recursively tagged value stored in discovered
// contract fields. Exactly the fields matching Kind are meaningful.
//
// Number carries a decimal string: on-chain values may exceed 64 bits
// and must survive round-trips unchanged.
type FieldValue struct {
	Kind Kind

	Address     address.Address // KindAddress
	AddressType address.Type    // KindAddress hint; TypeUnknown when absent

	Hex  string // KindHex
	Str  string // KindString
	Num  string // KindNumber, decimal
	Bool bool   // KindBoolean

	Items   []FieldValue  // KindArray
	Entries []ObjectEntry // KindObject, document order

	Err string // KindError
}

// ObjectEntry is one key/value pair of an object FieldValue.
// Objects keep entries as an ordered slice so that evaluation and
// rendering preserve document order.
type ObjectEntry struct {
	Key   string
	Value FieldValue
}

// Addr builds an address FieldValue.
func Addr(a address.Address, t address.Type) FieldValue {
	return FieldValue{Kind: KindAddress, Address: a, AddressType: t}
}

// Number builds a number FieldValue from a decimal string.
func Number(decimal string) FieldValue {
	return FieldValue{Kind: KindNumber, Num: decimal}
}

// String builds a string FieldValue.
func String(s string) FieldValue {
	return FieldValue{Kind: KindString, Str: s}
}

// Object builds an object FieldValue from ordered entries.
func Object(entries ...ObjectEntry) FieldValue {
	return FieldValue{Kind: KindObject, Entries: entries}
}

// Array builds an array FieldValue.
func Array(items ...FieldValue) FieldValue {
	return FieldValue{Kind: KindArray, Items: items}
}

// Scalar reports whether v is a non-nesting variant.
func (v FieldValue) Scalar() bool {
	switch v.Kind {
	case KindArray, KindObject:
		return false
	}
	return true
}

// Lookup returns the value for key in an object FieldValue. The
// literal key is tried first; role-table keys additionally match
// case-insensitively.
func (v FieldValue) Lookup(key string) (FieldValue, bool) {
	if v.Kind != KindObject {
		return FieldValue{}, false
	}
	for _, e := range v.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	for _, e := range v.Entries {
		if equalFold(e.Key, key) {
			return e.Value, true
		}
	}
	return FieldValue{}, false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Addresses collects all address leaves inside v in document order.
// Duplicates are preserved; callers deduplicate.
func (v FieldValue) Addresses() []address.Address {
	var out []address.Address
	v.appendAddresses(&out)
	return out
}

func (v FieldValue) appendAddresses(out *[]address.Address) {
	switch v.Kind {
	case KindAddress:
		*out = append(*out, v.Address)
	case KindArray:
		for _, it := range v.Items {
			it.appendAddresses(out)
		}
	case KindObject:
		for _, e := range v.Entries {
			e.Value.appendAddresses(out)
		}
	}
}

// Clone returns a deep copy holding no references into v.
func (v FieldValue) Clone() FieldValue {
	out := v
	if len(v.Items) > 0 {
		out.Items = make([]FieldValue, len(v.Items))
		for i, it := range v.Items {
			out.Items[i] = it.Clone()
		}
	}
	if len(v.Entries) > 0 {
		out.Entries = make([]ObjectEntry, len(v.Entries))
		for i, e := range v.Entries {
			out.Entries[i] = ObjectEntry{Key: e.Key, Value: e.Value.Clone()}
		}
	}
	return out
}

// wire forms. Objects are encoded as an entries array so that key
// order survives the JSON round-trip.
type fieldValueWire struct {
	Type        string            `json:"type"`
	Address     string            `json:"address,omitempty"`
	AddressType string            `json:"addressType,omitempty"`
	Value       string            `json:"value,omitempty"`
	Bool        *bool             `json:"bool,omitempty"`
	Items       []FieldValue      `json:"items,omitempty"`
	Entries     []objectEntryWire `json:"entries,omitempty"`
	Message     string            `json:"message,omitempty"`
}

type objectEntryWire struct {
	Key   string     `json:"key"`
	Value FieldValue `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	w := fieldValueWire{Type: string(v.Kind)}
	switch v.Kind {
	case KindAddress:
		w.Address = v.Address.String()
		if v.AddressType != "" {
			w.AddressType = string(v.AddressType)
		}
	case KindHex:
		w.Value = v.Hex
	case KindString:
		w.Value = v.Str
	case KindNumber:
		w.Value = v.Num
	case KindBoolean:
		b := v.Bool
		w.Bool = &b
	case KindArray:
		w.Items = v.Items
		if w.Items == nil {
			w.Items = []FieldValue{}
		}
	case KindObject:
		w.Entries = make([]objectEntryWire, len(v.Entries))
		for i, e := range v.Entries {
			w.Entries[i] = objectEntryWire{Key: e.Key, Value: e.Value}
		}
	case KindUnknown:
	case KindError:
		w.Message = v.Err
	default:
		return nil, fmt.Errorf("discovered: cannot encode field value of kind %q", v.Kind)
	}
	return json.Marshal(w)
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w fieldValueWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	out := FieldValue{Kind: Kind(w.Type)}
	switch out.Kind {
	case KindAddress:
		a, err := address.Parse(w.Address)
		if err != nil {
			return err
		}
		out.Address = a
		out.AddressType = address.TypeUnknown
		if w.AddressType != "" {
			out.AddressType = address.ParseType(w.AddressType)
		}
	case KindHex:
		out.Hex = w.Value
	case KindString:
		out.Str = w.Value
	case KindNumber:
		out.Num = w.Value
	case KindBoolean:
		if w.Bool == nil {
			return fmt.Errorf("discovered: boolean field value missing bool")
		}
		out.Bool = *w.Bool
	case KindArray:
		out.Items = w.Items
	case KindObject:
		out.Entries = make([]ObjectEntry, len(w.Entries))
		for i, e := range w.Entries {
			out.Entries[i] = ObjectEntry{Key: e.Key, Value: e.Value}
		}
	case KindUnknown, KindError:
		out.Err = w.Message
	default:
		return fmt.Errorf("discovered: unknown field value kind %q", w.Type)
	}
	*v = out
	return nil
}
