// Package localfs implements the project-directory store layout:
//
//	<root>/discovered.json   discovered snapshot (read-only input)
//	<root>/overrides.json    curator catalogue (read/write)
//	<root>/resolved.json     latest resolved document
//	<root>/resolved/<cid>.json  immutable archive of every result
//
// Writes are atomic at the file level (temp file + fsync + rename);
// archive objects are created exclusively and never rewritten.
package localfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"xdao.co/permtrace/discovered"
	"xdao.co/permtrace/overrides"
	"xdao.co/permtrace/resolved"
	"xdao.co/permtrace/storage"
)

const snapshotCacheSize = 16

type snapshotCacheEntry struct {
	modTime int64
	size    int64
	snap    *discovered.Snapshot
}

// Project is a filesystem-backed store rooted at a project
// directory. It implements storage.DiscoveredStore,
// storage.OverridesStore and storage.ResolvedStore.
//
// Discovered snapshots are memoized in an LRU keyed by path; a
// cached snapshot is reused only while the file's modification time
// and size are unchanged.
type Project struct {
	root  string
	cache *lru.Cache[string, snapshotCacheEntry]
}

var (
	_ storage.DiscoveredStore = (*Project)(nil)
	_ storage.OverridesStore  = (*Project)(nil)
	_ storage.ResolvedStore   = (*Project)(nil)
)

// Open constructs a project store rooted at root. The directory will
// be created if needed.
func Open(root string) (*Project, error) {
	if root == "" {
		return nil, errors.New("localfs: project root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, snapshotCacheEntry](snapshotCacheSize)
	if err != nil {
		return nil, err
	}
	return &Project{root: root, cache: cache}, nil
}

// Root returns the project directory.
func (p *Project) Root() string { return p.root }

func (p *Project) discoveredPath() string { return filepath.Join(p.root, "discovered.json") }
func (p *Project) overridesPath() string  { return filepath.Join(p.root, "overrides.json") }
func (p *Project) resolvedPath() string   { return filepath.Join(p.root, "resolved.json") }
func (p *Project) archivePath(cid string) string {
	return filepath.Join(p.root, "resolved", cid+".json")
}

// Snapshot loads the discovered document, memoized by modification
// time.
func (p *Project) Snapshot() (*discovered.Snapshot, error) {
	path := p.discoveredPath()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if entry, ok := p.cache.Get(path); ok {
		if entry.modTime == info.ModTime().UnixNano() && entry.size == info.Size() {
			return entry.snap, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	snap, err := discovered.ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrMalformed, err)
	}
	p.cache.Add(path, snapshotCacheEntry{
		modTime: info.ModTime().UnixNano(),
		size:    info.Size(),
		snap:    snap,
	})
	return snap, nil
}

// Load reads the overrides catalogue.
func (p *Project) Load() (*overrides.Document, error) {
	data, err := os.ReadFile(p.overridesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	doc, err := overrides.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrMalformed, err)
	}
	return doc, nil
}

// Save writes the overrides catalogue atomically.
func (p *Project) Save(doc *overrides.Document) error {
	b, err := doc.Render()
	if err != nil {
		return err
	}
	return writeAtomic(p.overridesPath(), b, 0o644)
}

// Append archives a resolved document under its CID and atomically
// replaces resolved.json with it.
func (p *Project) Append(a *resolved.Archive) error {
	if a == nil || a.CID == "" {
		return errors.New("localfs: archive with empty CID")
	}
	path := p.archivePath(a.CID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := os.ReadFile(path)
			if rerr != nil || string(existing) != string(a.Bytes) {
				// If the archive object exists but differs or is unreadable,
				// treat as an immutability violation.
				return storage.ErrImmutable
			}
			return writeAtomic(p.resolvedPath(), a.Bytes, 0o644)
		}
		return err
	}
	if _, err := f.Write(a.Bytes); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}

	return writeAtomic(p.resolvedPath(), a.Bytes, 0o644)
}

// Latest returns the most recently appended resolved document.
func (p *Project) Latest() (*resolved.Archive, error) {
	data, err := os.ReadFile(p.resolvedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	a, err := resolved.NewArchiveFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrMalformed, err)
	}
	return a, nil
}

// writeAtomic writes bytes to path through a temp file in the same
// directory, fsyncs, then renames over the destination.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
