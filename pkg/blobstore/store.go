package blobstore

import (
	"encoding/binary"

	"github.com/gerald-lindsly/nub/pkg/blockio"
	"github.com/gerald-lindsly/nub/pkg/btree"
	"github.com/gerald-lindsly/nub/pkg/compressor"
	"github.com/gerald-lindsly/nub/pkg/keycodec"
	"github.com/gerald-lindsly/nub/pkg/nuberr"
	"github.com/sirupsen/logrus"
)

// state is the Closed<->Open machine shared with BTree, keyed on
// whether the resource file handle is bound.
type state int

const (
	stateClosed state = iota
	stateOpen
)

// Store is the resource file: a flat sequence of LZO-framed (here,
// LZ4-framed) blobs addressed by byte offset, with names resolved to
// offsets through an embedded *btree.BTree. A resource called "name"
// lives in two files, name.0 (the index) and name.1 (the blobs).
//
// Like BTree, the only mutable state Store touches -- its two file
// handles, the tree's own cache and path stack, and the compressor's
// workspace -- belongs to one Store instance; it is not safe to use
// concurrently, even for Get.
type Store struct {
	idx  *btree.BTree
	data *blockio.File
	comp compressor.Compressor

	// filesize and freelist mirror the resource file's page-0 header.
	// They are kept only in memory and written back on Close, not after
	// every Put/Remove -- an interrupted process can leak blob space but
	// never corrupts the tree, whose own header is flushed independently.
	filesize uint64
	freelist uint64

	state state
	log   *logrus.Entry
}

// New constructs a Store that frames payloads with comp and orders
// names with codec (nil defaults to the byte-string codec, the natural
// choice for human-readable resource names), using the tree's default
// node cache size. Call Create or Open before any other method.
func New(comp compressor.Compressor, codec keycodec.Codec) *Store {
	return NewSized(comp, codec, btree.DefaultCacheSize)
}

// NewSized is New with an explicit node cache size, for callers that
// size it from configuration rather than accepting the default.
func NewSized(comp compressor.Compressor, codec keycodec.Codec, cacheSize int) *Store {
	return &Store{
		idx:  btree.NewSized(codec, cacheSize),
		comp: comp,
		log:  logrus.WithField("component", "blobstore"),
	}
}

func indexPath(name string) string { return name + ".0" }
func dataPath(name string) string  { return name + ".1" }

// Create overwrites the file pair for name with a fresh, empty store.
func (s *Store) Create(name string, dups bool) error {
	if err := s.idx.Create(indexPath(name), dups); err != nil {
		return err
	}
	f, err := blockio.Create(dataPath(name))
	if err != nil {
		s.idx.Close()
		return err
	}
	s.data = f
	s.filesize = headerSize
	s.freelist = 0
	if err := s.writeBlobHeader(); err != nil {
		s.closeOnError()
		return err
	}
	s.state = stateOpen
	s.log.WithField("name", name).Info("created resource store")
	return nil
}

// Open attaches to an existing file pair, returning false if the index
// half is missing (mirroring BTree.Open's notfound contract). A present
// index with a missing data file is an io_error: a corrupt pairing, not
// a fresh store.
func (s *Store) Open(name string) (bool, error) {
	ok, err := s.idx.Open(indexPath(name))
	if err != nil || !ok {
		return ok, err
	}
	f, err := blockio.Open(dataPath(name))
	if err != nil {
		s.idx.Close()
		return false, err
	}
	if f == nil {
		s.idx.Close()
		return false, nuberr.New(nuberr.KindIO, "blobstore.Open", name+".1: missing resource file")
	}
	buf := make([]byte, headerSize)
	if err := f.ReadAt(0, buf); err != nil {
		f.Close()
		s.idx.Close()
		return false, err
	}
	s.filesize = binary.LittleEndian.Uint64(buf[0:])
	s.freelist = binary.LittleEndian.Uint64(buf[8:])
	s.data = f
	s.state = stateOpen
	return true, nil
}

func (s *Store) writeBlobHeader() error {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:], s.filesize)
	binary.LittleEndian.PutUint64(buf[8:], s.freelist)
	return s.data.WriteAt(0, buf)
}

// Close flushes the tree (rewriting its own header) and writes back the
// resource file's header, then releases both handles.
func (s *Store) Close() error {
	if s.state != stateOpen {
		return nil
	}
	if err := s.writeBlobHeader(); err != nil {
		s.closeOnError()
		return err
	}
	if err := s.data.Close(); err != nil {
		s.closeOnError()
		return err
	}
	if err := s.idx.Close(); err != nil {
		s.state = stateClosed
		return err
	}
	s.state = stateClosed
	return nil
}

// closeOnError releases both handles without further writes on an
// unrecoverable I/O failure, leaving the store Closed so it cannot be
// reused without reopening.
func (s *Store) closeOnError() {
	if s.data != nil {
		s.data.Close()
	}
	s.idx.Close()
	s.state = stateClosed
}

// Count returns the number of names currently stored.
func (s *Store) Count() int32 { return s.idx.Count() }

// PreCompress preallocates the compressor's workspace for a batch of
// Put calls, if the configured Compressor supports it; otherwise it is
// a no-op. A single Put always works without calling this.
func (s *Store) PreCompress() {
	if wc, ok := s.comp.(compressor.WorkspaceCompressor); ok {
		wc.AcquireWorkspace()
	}
}

// PostCompress releases the workspace acquired by PreCompress.
func (s *Store) PostCompress() {
	if wc, ok := s.comp.(compressor.WorkspaceCompressor); ok {
		wc.ReleaseWorkspace()
	}
}

// putBytes frames data -- compressing it if that shrinks it -- and
// writes it into a freshly allocated (or reclaimed) extent, returning
// its offset.
func (s *Store) putBytes(data []byte) (uint64, error) {
	compressed, err := s.comp.Compress(data)
	if err != nil {
		return 0, err
	}
	stored := data
	compSize := uint32(0)
	if len(compressed) < len(data) {
		stored = compressed
		compSize = uint32(len(compressed))
	}
	need := uint64(usedHeaderSize + len(stored))
	offset, err := s.allocBlock(need)
	if err != nil {
		return 0, err
	}
	hdr := usedHeader{size: uint32(need), compSize: compSize, uncompSize: uint32(len(data))}
	buf := append(hdr.encode(), stored...)
	if err := s.data.WriteAt(int64(offset), buf); err != nil {
		return 0, err
	}
	return offset, nil
}

// getBytes reads and, if necessary, decompresses the blob at offset.
func (s *Store) getBytes(offset uint64) ([]byte, error) {
	hdrBuf := make([]byte, usedHeaderSize)
	if err := s.data.ReadAt(int64(offset), hdrBuf); err != nil {
		return nil, err
	}
	hdr := decodeUsedHeader(hdrBuf)
	if hdr.compSize == 0 {
		out := make([]byte, hdr.uncompSize)
		if err := s.data.ReadAt(int64(offset)+usedHeaderSize, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	comp := make([]byte, hdr.compSize)
	if err := s.data.ReadAt(int64(offset)+usedHeaderSize, comp); err != nil {
		return nil, err
	}
	return s.comp.Decompress(comp, int(hdr.uncompSize))
}

// removeBytes reclaims the extent occupied by the blob at offset.
func (s *Store) removeBytes(offset uint64) error {
	hdrBuf := make([]byte, usedHeaderSize)
	if err := s.data.ReadAt(int64(offset), hdrBuf); err != nil {
		return err
	}
	hdr := decodeUsedHeader(hdrBuf)
	return s.releaseBlock(offset, uint64(hdr.size))
}

// Put stores data under name, replacing any existing blob of that name.
// The new blob is written before the old one (if any) is freed, so a
// write failure never loses the previous value.
func (s *Store) Put(name string, data []byte) error {
	offset, err := s.putBytes(data)
	if err != nil {
		return err
	}
	key := []byte(name)
	found, err := s.idx.Find(key)
	if err != nil {
		return err
	}
	if found {
		oldOffset, _ := s.idx.CurrentOffset()
		if err := s.removeBytes(oldOffset); err != nil {
			return err
		}
		return s.idx.Change(offset)
	}
	_, err = s.idx.Insert(key, offset)
	return err
}

// Get retrieves the bytes stored under name. ok is false if name is not
// present.
func (s *Store) Get(name string) (data []byte, ok bool, err error) {
	found, err := s.idx.Find([]byte(name))
	if err != nil || !found {
		return nil, false, err
	}
	offset, _ := s.idx.CurrentOffset()
	data, err = s.getBytes(offset)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Remove deletes the blob and index entry for name. ok is false if name
// was not present.
func (s *Store) Remove(name string) (ok bool, err error) {
	found, err := s.idx.Find([]byte(name))
	if err != nil || !found {
		return false, err
	}
	offset, _ := s.idx.CurrentOffset()
	if err := s.removeBytes(offset); err != nil {
		return false, err
	}
	return s.idx.RemoveCurrent()
}

// Traverse visits every (name, offset) pair in key order, calling visit
// with the decompressed bytes of each. It stops and returns the first
// error encountered, from either the tree walk or a blob read.
func (s *Store) Traverse(visit func(name string, data []byte) error) error {
	ok, err := s.idx.First()
	for ok && err == nil {
		key, _ := s.idx.CurrentKey()
		offset, _ := s.idx.CurrentOffset()
		data, gerr := s.getBytes(offset)
		if gerr != nil {
			return gerr
		}
		if verr := visit(string(key), data); verr != nil {
			return verr
		}
		ok, err = s.idx.Next()
	}
	return err
}
