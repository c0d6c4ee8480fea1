package resolved

import (
	"xdao.co/permtrace/cidutil"
	"xdao.co/permtrace/resolver"
)

// Archive is a first-class resolved document: canonical bytes plus
// the CID derived from them.
//
// Resolved documents are treated as evidence objects (not ephemeral
// output) so they can be archived, inspected, re-verified and
// signed. The CID keys the append-only archive in the resolved
// store.
type Archive struct {
	Bytes []byte
	CID   string
}

// NewArchiveFromBytes parses document bytes (rejecting anything
// malformed) and computes the archive CID over them.
func NewArchiveFromBytes(docBytes []byte) (*Archive, error) {
	if _, err := Parse(docBytes); err != nil {
		return nil, err
	}
	return &Archive{
		Bytes: append([]byte(nil), docBytes...),
		CID:   cidutil.CIDv1RawSHA256(docBytes),
	}, nil
}

// RenderArchive renders a resolution into a canonical Archive.
func RenderArchive(res *resolver.Resolution, opts RenderOptions) (*Archive, error) {
	b, err := FromResolution(res, opts).Render()
	if err != nil {
		return nil, err
	}
	return NewArchiveFromBytes(b)
}
