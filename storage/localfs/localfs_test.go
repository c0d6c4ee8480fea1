package localfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/resolved"
	"xdao.co/permtrace/storage"
	"xdao.co/permtrace/storage/testkit"
)

const discoveredDoc = `{"entries":[
  {"address": "eth:0xc0", "type": "Contract", "fields": [
    {"name": "admin", "value": {"type": "address", "address": "eth:0xe1", "addressType": "EOA"}}
  ]},
  {"address": "eth:0xe1", "type": "EOA"}
]}`

const overridesDoc = `{"version":"1.0","lastModified":"2026-01-05T00:00:00Z","contracts":{
  "eth:0xc0": {"functions": [
    {"functionName": "pause", "userClassification": "permissioned",
     "ownerDefinitions": [{"path": "$self.admin"}]}
  ]}
}}`

const resolvedDoc = `{"version":"1.0","generatedFrom":{"permissionOverridesVersion":"1.0","discoveredJsonHash":"aaaaaaaaaaaaaaaa"},"contracts":{}}`

func newProject(t *testing.T) *Project {
	t.Helper()
	p, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

func TestSnapshot_MissingFile(t *testing.T) {
	p := newProject(t)
	if _, err := p.Snapshot(); !storage.IsNotFound(err) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestSnapshot_MemoizedByModTime(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.Root(), "discovered.json")
	if err := os.WriteFile(path, []byte(discoveredDoc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s1, err := p.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot(1): %v", err)
	}
	s2, err := p.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot(2): %v", err)
	}
	if s1 != s2 {
		t.Fatalf("unchanged file should return the cached snapshot")
	}

	// Rewrite with a different mtime: the cache must be invalidated.
	updated := `{"entries":[{"address": "eth:0xe1", "type": "EOA"}]}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	s3, err := p.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot(3): %v", err)
	}
	if s3 == s2 {
		t.Fatalf("modified file should invalidate the cache")
	}
	if s3.Len() != 1 {
		t.Fatalf("expected reloaded snapshot, got %d entries", s3.Len())
	}
}

func TestSnapshot_Malformed(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.Root(), "discovered.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := p.Snapshot(); err == nil {
		t.Fatalf("expected error for malformed snapshot")
	}
}

func TestOverrides_LoadSaveRoundTrip(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.Root(), "overrides.json")
	if err := os.WriteFile(path, []byte(overridesDoc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Contracts) != 1 {
		t.Fatalf("contracts: %+v", doc.Contracts)
	}

	doc.Contracts[0].Functions = append(doc.Contracts[0].Functions, overrides.FunctionOverride{
		FunctionName:       "unpause",
		UserClassification: overrides.Permissioned,
	})
	if err := p.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	doc2, err := p.Load()
	if err != nil {
		t.Fatalf("re-Load: %v", err)
	}
	if len(doc2.Contracts[0].Functions) != 2 {
		t.Fatalf("saved functions: %+v", doc2.Contracts[0].Functions)
	}
}

func TestResolvedStore_Conformance(t *testing.T) {
	testkit.RunResolvedStoreConformance(t, func(t *testing.T) storage.ResolvedStore {
		return newProject(t)
	})
}

func TestResolvedStore_ArchiveImmutable(t *testing.T) {
	p := newProject(t)
	a, err := resolved.NewArchiveFromBytes([]byte(resolvedDoc))
	if err != nil {
		t.Fatalf("NewArchiveFromBytes: %v", err)
	}
	if err := p.Append(a); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Corrupt the archived object on disk, then try to re-append the
	// same CID with the original bytes.
	archived := filepath.Join(p.Root(), "resolved", a.CID+".json")
	if err := os.Chmod(archived, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.WriteFile(archived, []byte(`{"version":"tampered"}`), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := p.Append(a); err != storage.ErrImmutable {
		t.Fatalf("got %v want ErrImmutable", err)
	}
}

func TestResolvedStore_LatestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	p1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, err := resolved.NewArchiveFromBytes([]byte(resolvedDoc))
	if err != nil {
		t.Fatalf("NewArchiveFromBytes: %v", err)
	}
	if err := p1.Append(a); err != nil {
		t.Fatalf("Append: %v", err)
	}

	p2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	got, err := p2.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.CID != a.CID {
		t.Fatalf("CID mismatch after reopen: %s vs %s", got.CID, a.CID)
	}
}

func TestMemStores_Conformance(t *testing.T) {
	testkit.RunResolvedStoreConformance(t, func(t *testing.T) storage.ResolvedStore {
		return &testkit.MemResolved{}
	})
}
