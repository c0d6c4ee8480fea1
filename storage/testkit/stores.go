// Package testkit provides in-memory stores and conformance suites
// for storage implementations.
package testkit

import (
	"testing"

	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/resolved"
	"xdao.co/permtrace/storage"
)

// MemDiscovered is an in-memory DiscoveredStore serving a fixed
// snapshot.
type MemDiscovered struct {
	Snap *discovered.Snapshot
}

func (m *MemDiscovered) Snapshot() (*discovered.Snapshot, error) {
	if m.Snap == nil {
		return nil, storage.ErrNotFound
	}
	return m.Snap, nil
}

// MemOverrides is an in-memory OverridesStore.
type MemOverrides struct {
	Doc *overrides.Document
}

func (m *MemOverrides) Load() (*overrides.Document, error) {
	if m.Doc == nil {
		return nil, storage.ErrNotFound
	}
	return m.Doc, nil
}

func (m *MemOverrides) Save(doc *overrides.Document) error {
	m.Doc = doc
	return nil
}

// MemResolved is an in-memory append-only ResolvedStore keyed by CID.
type MemResolved struct {
	byCID  map[string][]byte
	latest *resolved.Archive
}

func (m *MemResolved) Append(a *resolved.Archive) error {
	if m.byCID == nil {
		m.byCID = make(map[string][]byte)
	}
	if existing, ok := m.byCID[a.CID]; ok {
		if string(existing) != string(a.Bytes) {
			return storage.ErrImmutable
		}
	} else {
		m.byCID[a.CID] = append([]byte(nil), a.Bytes...)
	}
	m.latest = a
	return nil
}

func (m *MemResolved) Latest() (*resolved.Archive, error) {
	if m.latest == nil {
		return nil, storage.ErrNotFound
	}
	return m.latest, nil
}

var (
	_ storage.DiscoveredStore = (*MemDiscovered)(nil)
	_ storage.OverridesStore  = (*MemOverrides)(nil)
	_ storage.ResolvedStore   = (*MemResolved)(nil)
)

// NewResolvedStore constructs a fresh, empty ResolvedStore instance
// for a test. The returned store MUST be isolated from other tests.
type NewResolvedStore func(t *testing.T) storage.ResolvedStore

// RunResolvedStoreConformance exercises the ResolvedStore contract.
func RunResolvedStoreConformance(t *testing.T, newStore NewResolvedStore) {
	t.Helper()

	t.Run("LatestBeforeAppend", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Latest(); !storage.IsNotFound(err) {
			t.Fatalf("Latest before Append: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("AppendLatestRoundTrip", func(t *testing.T) {
		s := newStore(t)
		a := mustArchive(t, `{"version":"1.0","generatedFrom":{"permissionOverridesVersion":"1.0","discoveredJsonHash":"0000000000000000"},"contracts":{}}`)

		if err := s.Append(a); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		got, err := s.Latest()
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got.CID != a.CID {
			t.Fatalf("Latest CID mismatch: got %s want %s", got.CID, a.CID)
		}
		if string(got.Bytes) != string(a.Bytes) {
			t.Fatalf("Latest bytes mismatch")
		}
	})

	t.Run("AppendIdempotent", func(t *testing.T) {
		s := newStore(t)
		a := mustArchive(t, `{"version":"1.0","generatedFrom":{"permissionOverridesVersion":"1.0","discoveredJsonHash":"1111111111111111"},"contracts":{}}`)

		if err := s.Append(a); err != nil {
			t.Fatalf("Append(1) failed: %v", err)
		}
		if err := s.Append(a); err != nil {
			t.Fatalf("Append(2) not idempotent: %v", err)
		}
	})

	t.Run("AppendNewerWins", func(t *testing.T) {
		s := newStore(t)
		a1 := mustArchive(t, `{"version":"1.0","generatedFrom":{"permissionOverridesVersion":"1.0","discoveredJsonHash":"2222222222222222"},"contracts":{}}`)
		a2 := mustArchive(t, `{"version":"1.0","generatedFrom":{"permissionOverridesVersion":"1.0","discoveredJsonHash":"3333333333333333"},"contracts":{}}`)

		if err := s.Append(a1); err != nil {
			t.Fatalf("Append(a1) failed: %v", err)
		}
		if err := s.Append(a2); err != nil {
			t.Fatalf("Append(a2) failed: %v", err)
		}
		got, err := s.Latest()
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if got.CID != a2.CID {
			t.Fatalf("Latest after two appends: got %s want %s", got.CID, a2.CID)
		}
	})
}

func mustArchive(t *testing.T, doc string) *resolved.Archive {
	t.Helper()
	a, err := resolved.NewArchiveFromBytes([]byte(doc))
	if err != nil {
		t.Fatalf("NewArchiveFromBytes failed: %v", err)
	}
	return a
}
