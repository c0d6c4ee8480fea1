package discovered

import (
	"encoding/json"
	"strings"
	"testing"

	"xdao.co/permtrace/address"
)

func TestFieldValue_JSONRoundTripPreservesObjectOrder(t *testing.T) {
	v := Object(
		ObjectEntry{Key: "zeta", Value: String("z")},
		ObjectEntry{Key: "alpha", Value: Number("42")},
		ObjectEntry{Key: "members", Value: Array(
			Addr(address.MustParse("eth:0xe2"), address.TypeEOA),
			Addr(address.MustParse("eth:0xe3"), address.TypeEOA),
		)},
	)

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back FieldValue
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(back.Entries))
	}
	for i, want := range []string{"zeta", "alpha", "members"} {
		if back.Entries[i].Key != want {
			t.Fatalf("entry %d: got key %s want %s", i, back.Entries[i].Key, want)
		}
	}

	b2, err := json.Marshal(back)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if string(b) != string(b2) {
		t.Fatalf("round trip not byte-identical:\n%s\n%s", b, b2)
	}
}

func TestFieldValue_RejectsUnknownKind(t *testing.T) {
	var v FieldValue
	if err := json.Unmarshal([]byte(`{"type":"widget"}`), &v); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestFieldValue_Addresses_DocumentOrder(t *testing.T) {
	v := Object(
		ObjectEntry{Key: "first", Value: Addr(address.MustParse("eth:0xa1"), address.TypeEOA)},
		ObjectEntry{Key: "nested", Value: Array(
			Addr(address.MustParse("eth:0xb2"), address.TypeEOA),
			String("not an address"),
			Addr(address.MustParse("eth:0xc3"), address.TypeMultisig),
		)},
	)
	got := v.Addresses()
	want := []string{"eth:0xa1", "eth:0xb2", "eth:0xc3"}
	if len(got) != len(want) {
		t.Fatalf("got %d addresses, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("address %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestFieldValue_Lookup_LiteralThenFold(t *testing.T) {
	v := Object(
		ObjectEntry{Key: "PAUSER_ROLE", Value: String("a")},
		ObjectEntry{Key: "pauser_role", Value: String("b")},
	)
	got, ok := v.Lookup("pauser_role")
	if !ok || got.Str != "b" {
		t.Fatalf("literal key should win, got %+v ok=%v", got, ok)
	}
	got, ok = v.Lookup("Pauser_Role")
	if !ok || got.Str != "a" {
		t.Fatalf("fold match should find first entry, got %+v ok=%v", got, ok)
	}
}

func TestFieldValue_Clone_Independent(t *testing.T) {
	orig := Object(ObjectEntry{Key: "members", Value: Array(String("x"))})
	clone := orig.Clone()
	clone.Entries[0].Value.Items[0] = String("mutated")
	if orig.Entries[0].Value.Items[0].Str != "x" {
		t.Fatalf("clone shares memory with original")
	}
}

const snapshotDoc = `{
  "entries": [
    {"address": "eth:0xC0", "type": "Contract", "name": "Vault", "fields": [
      {"name": "admin", "value": {"type": "address", "address": "eth:0xe1", "addressType": "EOA"}}
    ]},
    {"address": "eth:0xe1", "type": "EOA"}
  ]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(snapshotDoc))
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", snap.Len())
	}
	if len(snap.Hash) != 16 {
		t.Fatalf("hash should be 16 hex chars, got %q", snap.Hash)
	}
	for _, c := range snap.Hash {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("hash should be lowercase hex, got %q", snap.Hash)
		}
	}

	// Lookup normalizes case.
	entry, ok := snap.Lookup(address.MustParse("eth:0xc0"))
	if !ok {
		t.Fatalf("Lookup eth:0xc0 failed")
	}
	v, ok := entry.FieldNamed("admin")
	if !ok || v.Kind != KindAddress {
		t.Fatalf("FieldNamed admin: %+v ok=%v", v, ok)
	}

	if got := snap.TypeOf(address.MustParse("eth:0xe1")); got != address.TypeEOA {
		t.Fatalf("TypeOf e1: got %s", got)
	}
	if got := snap.TypeOf(address.MustParse("eth:0x9999")); got != address.TypeUnknown {
		t.Fatalf("TypeOf unknown address: got %s", got)
	}
}

func TestParseSnapshot_DuplicateAddressRejected(t *testing.T) {
	doc := `{"entries":[
	  {"address": "eth:0xAA", "type": "EOA"},
	  {"address": "eth:0xaa", "type": "Contract"}
	]}`
	if _, err := ParseSnapshot([]byte(doc)); err == nil {
		t.Fatalf("expected duplicate-address error")
	}
}

func TestParseSnapshot_HashStable(t *testing.T) {
	s1, err := ParseSnapshot([]byte(snapshotDoc))
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	s2, err := ParseSnapshot([]byte(snapshotDoc))
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if s1.Hash != s2.Hash {
		t.Fatalf("hash not deterministic: %s vs %s", s1.Hash, s2.Hash)
	}
}

func TestEntry_FieldNamed_ValuesWin(t *testing.T) {
	e := &Entry{
		Address: address.MustParse("eth:0x01"),
		Type:    address.TypeContract,
		Fields:  []Field{{Name: "owner", Value: String("from-fields")}},
		Values:  map[string]FieldValue{"owner": String("from-values")},
	}
	v, ok := e.FieldNamed("owner")
	if !ok || v.Str != "from-values" {
		t.Fatalf("legacy values map should win, got %+v", v)
	}
}
