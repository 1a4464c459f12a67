// Package blobstore implements the resource file: a flat store of
// LZO-framed (here, LZ4-framed) variable-length payloads addressed by
// byte offset, with a first-fit free-list over reclaimed space. Names
// are resolved to offsets by an embedded *btree.BTree, making this the
// BlobStore of the design: a thin composition over the tree rather
// than a second indexing structure of its own.
package blobstore

const (
	// headerSize is the fixed size of page 0 of the blob file:
	// {filesize, freelist_head}, both datPos-width.
	headerSize = 16

	// usedHeaderSize is {size, comp_size, uncomp_size}, all u32.
	usedHeaderSize = 12
	// freeHeaderSize is {size u32, next datPos}.
	freeHeaderSize = 12

	// minSplitRemainder is the largest remainder not worth leaving
	// behind as its own free block when satisfying an allocation from a
	// larger one: a remainder of this size or less is handed out whole,
	// only a strictly larger one is split off.
	minSplitRemainder = freeHeaderSize
)
