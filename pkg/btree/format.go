// Package btree implements the on-disk, paged B-tree: a sorted
// structure over variable-length keys with optional duplicates, backed
// by a fixed-size page cache and an in-file free-list of released node
// pages. It is the core of the store -- see BlobStore in
// package blobstore for how names are resolved into blob offsets.
package btree

import "github.com/gerald-lindsly/nub/pkg/keycodec"

const (
	// MajorVersion is written to every index file header. Opening a
	// file with a different major version is refused.
	MajorVersion uint8 = 6
	MinorVersion uint8 = 0

	// NdxPosSize is the on-disk width, in bytes, of a node offset.
	NdxPosSize = 4
	// DatPosSize is the on-disk width, in bytes, of a blob/data offset.
	DatPosSize = 8

	// PageSize is the fixed page size for both the header page and
	// every node page. Chosen once for a given index file and checked
	// bit-exact on open; the format is not self-describing beyond that
	// check (see Open).
	PageSize = 4096

	// MaxStackDepth bounds the descent path stack. Exceeding it can
	// only indicate a corrupted tree.
	MaxStackDepth = 64

	// DefaultCacheSize is the number of node slots NodeCache holds by
	// default.
	DefaultCacheSize = 10

	headerFixedSize = 28 // major..pad, see Header

	// nodeExtra is the per-node overhead not attributable to any key:
	// the count field and the trailing rson.
	nodeExtra = 4 + NdxPosSize
	// entryExtra is the per-entry overhead besides the key bytes
	// themselves: lson, data offset, and the entry's slot in the
	// (unpersisted, in-memory) offset table.
	entryExtra = NdxPosSize + DatPosSize + 2
)

// MaxKeySize is the largest logical key (post-codec, pre-terminator)
// the tree will accept, derived from PageSize so that at least 3
// entries always fit in a node (required for split to make progress).
var MaxKeySize = PageSize/3 - (NdxPosSize + DatPosSize + 2) - 4

// Codecs exposes the two supplied KeyCodec implementations by name, for
// callers that want to pick one without importing keycodec directly.
var (
	ByteStringCodec keycodec.Codec = keycodec.ByteString{}
	UTF16Codec      keycodec.Codec = keycodec.UTF16{}
)
