// Package compressor supplies the pure compress/decompress pair the
// blob store treats as an out-of-scope collaborator: the store only
// ever calls Compress on a fresh payload and Decompress given the
// exact uncompressed length recorded in the blob's header.
package compressor

// Compressor compresses and decompresses byte slices. Implementations
// may keep reusable state (LZ4 holds an optional scratch buffer, see
// WorkspaceCompressor) and need not be safe for concurrent use; the
// store never calls them from more than one goroutine.
type Compressor interface {
	// Compress returns out such that Decompress(out, len(in)) == in.
	Compress(in []byte) (out []byte, err error)
	// Decompress expands in, which must decompress to exactly
	// expectedLen bytes; a mismatch is a runtime_error, since it can
	// only mean the blob header or the compressed bytes are corrupt.
	Decompress(in []byte, expectedLen int) (out []byte, err error)
}

// WorkspaceCompressor is implemented by compressors that can hold onto a
// reusable scratch buffer across many Compress calls, mirroring the
// source's wrkmem preallocated once for a batch of puts
// (pre_compress/post_compress). A Compressor that doesn't implement
// this is used as-is -- a single Put never requires it.
type WorkspaceCompressor interface {
	Compressor
	AcquireWorkspace()
	ReleaseWorkspace()
}
