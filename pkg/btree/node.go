package btree

import (
	"encoding/binary"

	"github.com/gerald-lindsly/nub/pkg/keycodec"
	"github.com/gerald-lindsly/nub/pkg/nuberr"
)

// entry is one {lson, data_offset, key} record inside a node.
type entry struct {
	lson       uint32
	dataOffset uint64
	key        []byte // logical key bytes, terminator stripped
}

func (e entry) storedSize(codec keycodec.Codec) int {
	return NdxPosSize + DatPosSize + codec.Size(e.key)
}

// node is the decoded, in-memory form of one index page. The on-disk
// format packs {count, entries..., rson} with no persisted offset
// table -- entries are delimited only by their codec-specific
// terminator, so the table of per-entry byte offsets is rebuilt here on
// decode and kept current as entries is mutated. See Design notes on
// why this is a companion slice rather than negative-indexed pointer
// arithmetic into the page buffer.
type node struct {
	offset  uint32
	rson    uint32
	entries []entry
	dirty   bool
	codec   keycodec.Codec
}

func newNode(codec keycodec.Codec) *node {
	return &node{codec: codec}
}

// Offset/Dirty/ClearDirty satisfy pagecache.Page.
func (n *node) Offset() uint32 { return n.offset }
func (n *node) Dirty() bool    { return n.dirty }
func (n *node) ClearDirty()    { n.dirty = false }

func (n *node) isLeaf() bool { return n.rson == 0 }

func (n *node) count() int { return len(n.entries) }

// usedBytes is the total size of packed entry data, excluding the
// trailing rson.
func (n *node) usedBytes() int {
	total := 0
	for _, e := range n.entries {
		total += e.storedSize(n.codec)
	}
	return total
}

// offsets reconstructs the in-memory offset table: offsets()[i] is the
// byte position of entry i relative to the start of the key area (just
// past the count field); offsets()[count] marks the position of rson.
// This is rebuilt on demand rather than cached, which keeps every
// mutation path (splice/delete/split/merge) from having to maintain two
// copies in lock-step -- its only consumer is split's byte-midpoint
// pivot choice.
func (n *node) offsets() []int {
	out := make([]int, len(n.entries)+1)
	pos := 0
	for i, e := range n.entries {
		out[i] = pos
		pos += e.storedSize(n.codec)
	}
	out[len(n.entries)] = pos
	return out
}

// fits reports whether a new entry of the given logical key length can
// be spliced into this node without exceeding PageSize: new entry + its
// offset-table slot + existing used bytes + rson + existing
// offset-table slots.
func (n *node) fits(keyLen int) bool {
	newEntrySize := NdxPosSize + DatPosSize + n.codec.Size(make([]byte, keyLen))
	total := newEntrySize + 2 + n.usedBytes() + NdxPosSize + n.count()*2
	return total <= PageSize
}

// fitsSubstitute reports whether replacing entries[i]'s key with a
// newKeyLen-byte logical key keeps the node within PageSize. Unlike
// fits, this doesn't add an entry or an offset-table slot -- it only
// changes the stored span of the one entry already at i.
func (n *node) fitsSubstitute(i int, newKeyLen int) bool {
	oldSize := n.entries[i].storedSize(n.codec)
	newSize := NdxPosSize + DatPosSize + n.codec.Size(make([]byte, newKeyLen))
	total := n.usedBytes() - oldSize + newSize + NdxPosSize + n.count()*2
	return total <= PageSize
}

// search performs a half-open binary search over the node's entries:
// the returned index i is such that every entry before i compares less
// than (key[, dataOffset]) and every entry from i on compares greater
// or equal. found is true on an exact match (key, and data offset too
// when dupsAllowed).
func (n *node) search(key []byte, dataOffset uint64, dupsAllowed bool) (i int, found bool) {
	lo, hi := 0, len(n.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := n.codec.Compare(n.entries[mid].key, key)
		if cmp == 0 && dupsAllowed {
			if n.entries[mid].dataOffset < dataOffset {
				cmp = -1
			} else if n.entries[mid].dataOffset > dataOffset {
				cmp = 1
			}
		}
		switch {
		case cmp < 0:
			lo = mid + 1
		case cmp > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// insertAt splices a new entry into position i, shifting later entries
// up. lson is 0 for ordinary leaf inserts; internal splits set it when
// promoting a pivot.
func (n *node) insertAt(i int, lson uint32, dataOffset uint64, key []byte) {
	cp := make([]byte, len(key))
	copy(cp, key)
	n.entries = append(n.entries, entry{})
	copy(n.entries[i+1:], n.entries[i:])
	n.entries[i] = entry{lson: lson, dataOffset: dataOffset, key: cp}
	n.dirty = true
}

// deleteAt removes entry i, returning it.
func (n *node) deleteAt(i int) entry {
	e := n.entries[i]
	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	n.dirty = true
	return e
}

// encode serializes the node to a fresh PageSize buffer: {count,
// entries..., rson}, zero-padded to the page boundary. The offset table
// is intentionally not written -- see decode.
func (n *node) encode() []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(n.entries)))
	pos := 4
	for _, e := range n.entries {
		binary.LittleEndian.PutUint32(buf[pos:], e.lson)
		binary.LittleEndian.PutUint64(buf[pos+4:], e.dataOffset)
		pos += NdxPosSize + DatPosSize
		pos += n.codec.Copy(buf[pos:], e.key)
	}
	binary.LittleEndian.PutUint32(buf[pos:], n.rson)
	return buf
}

// decode reconstructs a node (and its offset table, implicitly, via the
// entries slice) from a raw page. Key boundaries are found by scanning
// for each codec's terminator since no length is stored per entry.
func decodeNode(offset uint32, buf []byte, codec keycodec.Codec) (*node, error) {
	if len(buf) < 4 {
		return nil, nuberr.New(nuberr.KindIO, "btree.decodeNode", "short page")
	}
	count := int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	if count < 0 {
		return nil, nuberr.New(nuberr.KindIO, "btree.decodeNode", "negative entry count")
	}
	n := &node{offset: offset, codec: codec, entries: make([]entry, 0, count)}
	pos := 4
	for i := 0; i < count; i++ {
		if pos+NdxPosSize+DatPosSize > len(buf) {
			return nil, nuberr.New(nuberr.KindIO, "btree.decodeNode", "entry header runs past page")
		}
		lson := binary.LittleEndian.Uint32(buf[pos:])
		dataOffset := binary.LittleEndian.Uint64(buf[pos+4:])
		pos += NdxPosSize + DatPosSize
		storedLen := codec.StoredLen(buf[pos:])
		if pos+storedLen > len(buf) {
			return nil, nuberr.New(nuberr.KindIO, "btree.decodeNode", "key runs past page")
		}
		key := codec.Trim(buf[pos : pos+storedLen])
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		n.entries = append(n.entries, entry{lson: lson, dataOffset: dataOffset, key: keyCopy})
		pos += storedLen
	}
	if pos+NdxPosSize > len(buf) {
		return nil, nuberr.New(nuberr.KindIO, "btree.decodeNode", "rson runs past page")
	}
	n.rson = binary.LittleEndian.Uint32(buf[pos:])
	return n, nil
}
