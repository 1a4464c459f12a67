package btree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gerald-lindsly/nub/pkg/keycodec"
)

func TestNodeSearchOrdering(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	n.entries = []entry{
		{key: []byte("bee"), dataOffset: 2},
		{key: []byte("cat"), dataOffset: 3},
		{key: []byte("dog"), dataOffset: 4},
	}

	i, found := n.search([]byte("cat"), 0, false)
	require.True(t, found)
	require.Equal(t, 1, i)

	i, found = n.search([]byte("boo"), 0, false)
	require.False(t, found)
	require.Equal(t, 1, i) // between "bee" and "cat"

	i, found = n.search([]byte("zz"), 0, false)
	require.False(t, found)
	require.Equal(t, 3, i) // past the end
}

func TestNodeSearchWithDuplicates(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	n.entries = []entry{
		{key: []byte("x"), dataOffset: 3},
		{key: []byte("x"), dataOffset: 10},
		{key: []byte("x"), dataOffset: 20},
	}

	i, found := n.search([]byte("x"), 10, true)
	require.True(t, found)
	require.Equal(t, 1, i)

	// A miss within a run of duplicates still reports the correct
	// insertion point.
	i, found = n.search([]byte("x"), 5, true)
	require.False(t, found)
	require.Equal(t, 1, i)
}

func TestNodeInsertAtSplicesAndShiftsLater(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	n.insertAt(0, 0, 1, []byte("bee"))
	n.insertAt(1, 0, 3, []byte("dog"))
	n.insertAt(1, 0, 2, []byte("cat"))

	require.Equal(t, 3, n.count())
	require.Equal(t, []byte("bee"), n.entries[0].key)
	require.Equal(t, []byte("cat"), n.entries[1].key)
	require.Equal(t, []byte("dog"), n.entries[2].key)
	require.EqualValues(t, 2, n.entries[1].dataOffset)
	require.True(t, n.dirty)
}

func TestNodeDeleteAt(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	n.insertAt(0, 0, 1, []byte("bee"))
	n.insertAt(1, 0, 2, []byte("cat"))
	n.insertAt(2, 0, 3, []byte("dog"))

	deleted := n.deleteAt(1)
	require.Equal(t, []byte("cat"), deleted.key)
	require.Equal(t, 2, n.count())
	require.Equal(t, []byte("bee"), n.entries[0].key)
	require.Equal(t, []byte("dog"), n.entries[1].key)
}

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	codec := keycodec.ByteString{}
	n := newNode(codec)
	n.offset = PageSize
	n.rson = 3 * PageSize
	n.insertAt(0, PageSize*7, 100, []byte("alpha"))
	n.insertAt(1, PageSize*8, 200, []byte("bravo"))
	n.insertAt(2, PageSize*9, 300, []byte("charlie"))

	buf := n.encode()
	require.Len(t, buf, PageSize)

	decoded, err := decodeNode(n.offset, buf, codec)
	require.NoError(t, err)
	require.Equal(t, n.rson, decoded.rson)
	require.Equal(t, n.count(), decoded.count())
	for i, e := range n.entries {
		require.Equal(t, e.key, decoded.entries[i].key)
		require.Equal(t, e.lson, decoded.entries[i].lson)
		require.Equal(t, e.dataOffset, decoded.entries[i].dataOffset)
	}
}

// TestNodePackingInvariant exercises property 7 from the testable
// properties list: used bytes, plus one offset-table slot per entry,
// plus the trailing rson, never exceed a page.
func TestNodePackingInvariant(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	for i := 0; i < 50 && n.fits(8); i++ {
		key := []byte{byte(i), byte(i >> 8), 'k', 'e', 'y', 0, 0, 0}
		n.insertAt(n.count(), 0, uint64(i), key)
		total := n.usedBytes() + n.count()*2 + NdxPosSize
		require.LessOrEqual(t, total, PageSize)
	}
}

func TestNodeFitsRejectsOversizedEntry(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	require.False(t, n.fits(PageSize))
}

func TestNodeFitsSubstituteAcceptsShrinkRejectsGrowPastCapacity(t *testing.T) {
	n := newNode(keycodec.ByteString{})
	for n.fits(4) {
		n.insertAt(n.count(), 0, uint64(n.count()), []byte{'k', 'e', 'y', byte(n.count())})
	}
	require.True(t, n.fitsSubstitute(0, 1))
	require.False(t, n.fitsSubstitute(0, PageSize))
}
