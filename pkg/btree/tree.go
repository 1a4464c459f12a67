package btree

import (
	"encoding/binary"

	"github.com/gerald-lindsly/nub/pkg/blockio"
	"github.com/gerald-lindsly/nub/pkg/keycodec"
	"github.com/gerald-lindsly/nub/pkg/nuberr"
	"github.com/gerald-lindsly/nub/pkg/pagecache"
	"github.com/sirupsen/logrus"
)

// frame is one entry of the descent path stack: which node, and which
// entry index within it, the current operation passed through.
type frame struct {
	offset uint32
	i      int
}

// state is the Closed<->Open state machine shared with blobstore.Store,
// keyed on whether the index file handle is bound.
type state int

const (
	stateClosed state = iota
	stateOpen
)

// BTree is the sorted, paged B-tree: the only mutable state it touches
// are its own file handle, node cache and path stack, so (per the
// store's single-threaded concurrency model) it is not safe to use from
// more than one goroutine even for reads.
type BTree struct {
	io        *blockio.File
	header    *Header
	codec     keycodec.Codec
	cache     *pagecache.Cache
	cacheSize int
	state     state

	path []frame // bounded MaxStackDepth, reset at the top of every operation
	log  *logrus.Entry
}

// New constructs a BTree bound to the given codec but not yet attached
// to a file, using DefaultCacheSize node cache slots. Call Create or
// Open before any other method.
func New(codec keycodec.Codec) *BTree {
	return NewSized(codec, DefaultCacheSize)
}

// NewSized is New with an explicit node cache size, for callers that
// size it from configuration rather than accepting the default.
func NewSized(codec keycodec.Codec, cacheSize int) *BTree {
	if codec == nil {
		codec = ByteStringCodec
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &BTree{codec: codec, cacheSize: cacheSize, log: logrus.WithField("component", "btree")}
}

// Create overwrites path with a fresh index file: a header and one
// empty root node.
func (t *BTree) Create(path string, dups bool) error {
	f, err := blockio.Create(path)
	if err != nil {
		return err
	}
	t.io = f
	t.header = newHeader(dups)
	t.installCache()
	t.path = t.path[:0]

	if err := t.io.WriteAt(0, t.header.encode()); err != nil {
		return err
	}
	root := newNode(t.codec)
	root.offset = t.header.Root
	root.dirty = true
	if err := t.writeNode(root); err != nil {
		return err
	}
	t.state = stateOpen
	t.log.WithField("path", path).Info("created index")
	return nil
}

// Open attaches to an existing index file, returning false if it does
// not exist. It returns an io_error if the header's recorded format
// does not bit-exact match this build's compiled configuration.
func (t *BTree) Open(path string) (bool, error) {
	f, err := blockio.Open(path)
	if err != nil {
		return false, err
	}
	if f == nil {
		return false, nil
	}
	buf := make([]byte, PageSize)
	if err := f.ReadAt(0, buf); err != nil {
		f.Close()
		return false, err
	}
	h := decodeHeader(buf)
	if err := h.checkCompiled(path); err != nil {
		f.Close()
		return false, err
	}
	t.io = f
	t.header = h
	t.installCache()
	t.path = t.path[:0]
	t.state = stateOpen
	return true, nil
}

func (t *BTree) installCache() {
	t.cache = pagecache.New(t.cacheSize, t.loadPage, t.flushPage)
}

func (t *BTree) loadPage(offset uint32) (pagecache.Page, error) {
	buf := make([]byte, PageSize)
	if err := t.io.ReadAt(int64(offset), buf); err != nil {
		return nil, err
	}
	return decodeNode(offset, buf, t.codec)
}

func (t *BTree) flushPage(p pagecache.Page) error {
	n := p.(*node)
	return t.io.WriteAt(int64(n.offset), n.encode())
}

func (t *BTree) writeNode(n *node) error {
	n.dirty = false
	return t.io.WriteAt(int64(n.offset), n.encode())
}

// Close flushes every dirty cache slot and rewrites the header fields
// that may have changed, then releases the file handle.
func (t *BTree) Close() error {
	if t.state != stateOpen {
		return nil
	}
	if err := t.cache.Flush(); err != nil {
		t.closeOnError()
		return err
	}
	if err := t.io.WriteAt(0, t.header.encode()); err != nil {
		t.closeOnError()
		return err
	}
	err := t.io.Close()
	t.state = stateClosed
	t.path = t.path[:0]
	return err
}

// closeOnError handles any unrecoverable I/O failure: it closes the
// handle, drops cached dirty bits without flushing (the file is
// presumed to be in an undefined state) and leaves the store Closed so
// it cannot be reused without reopening.
func (t *BTree) closeOnError() {
	if t.io != nil {
		t.io.Close()
	}
	t.installCache() // fresh cache, dropping any dirty pages silently
	t.state = stateClosed
	t.path = t.path[:0]
}

// Count returns the number of keys currently stored.
func (t *BTree) Count() int32 { return t.header.N }

// MaxKeySize returns the largest key length this tree accepts.
func (t *BTree) MaxKeySize() int { return int(t.header.MaxKeySize) }

// DupsAllowed reports whether duplicate keys are permitted.
func (t *BTree) DupsAllowed() bool { return t.header.Dups }

func (t *BTree) getNode(offset uint32) (*node, error) {
	p, err := t.cache.Get(offset)
	if err != nil {
		return nil, err
	}
	return p.(*node), nil
}

// pushFrame records a descent frame, enforcing the height bound.
func (t *BTree) pushFrame(offset uint32, i int) error {
	if len(t.path) >= MaxStackDepth {
		return nuberr.New(nuberr.KindRuntime, "btree.descend", "path stack overflow: tree too deep, index likely corrupted")
	}
	t.path = append(t.path, frame{offset: offset, i: i})
	return nil
}

func (t *BTree) resetPath() { t.path = t.path[:0] }

// readFreeNext/writeFreeNext manipulate the raw 4-byte "next" pointer a
// freed node page is overwritten with; they bypass node decode/encode
// entirely since a freed page no longer holds a valid node.
func (t *BTree) readFreeNext(offset uint32) (uint32, error) {
	buf := make([]byte, NdxPosSize)
	if err := t.io.ReadAt(int64(offset), buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (t *BTree) writeFreeNext(offset, next uint32) error {
	buf := make([]byte, NdxPosSize)
	binary.LittleEndian.PutUint32(buf, next)
	return t.io.WriteAt(int64(offset), buf)
}

// newNode allocates a page for a fresh node: reused from the tree
// free-list if one is available, else appended to the end of the file.
func (t *BTree) newNode() (*node, error) {
	var offset uint32
	if t.header.FreeList != 0 {
		offset = t.header.FreeList
		next, err := t.readFreeNext(offset)
		if err != nil {
			return nil, err
		}
		t.header.FreeList = next
	} else {
		offset = t.header.EOF
		t.header.EOF += PageSize
		zero := make([]byte, PageSize)
		if err := t.io.WriteAt(int64(offset), zero); err != nil {
			return nil, err
		}
	}

	n := newNode(t.codec)
	n.offset = offset
	n.dirty = true

	if _, err := t.cache.Get(0); err != nil {
		return nil, err
	}
	t.cache.ReplaceFront(n)
	return n, nil
}

// freeNode releases a node's page back to the tree free-list: the page
// is overwritten with a next-pointer and the slot is dropped from the
// cache without a write-back of its old (now-irrelevant) content.
func (t *BTree) freeNode(n *node) error {
	if err := t.writeFreeNext(n.offset, t.header.FreeList); err != nil {
		return err
	}
	t.header.FreeList = n.offset
	t.cache.Evict(n.offset)
	return nil
}
