package btree

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gerald-lindsly/nub/pkg/keycodec"
)

func newTestTree(t *testing.T, dups bool) (*BTree, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.ndx")
	tr := New(keycodec.ByteString{})
	require.NoError(t, tr.Create(path, dups))
	t.Cleanup(func() { tr.Close() })
	return tr, path
}

// S1: no duplicates, find/next traversal.
func TestScenarioS1(t *testing.T) {
	tr, _ := newTestTree(t, false)

	ok, err := tr.Insert([]byte("ant"), 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tr.Insert([]byte("bee"), 2)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = tr.Insert([]byte("cat"), 3)
	require.NoError(t, err)
	require.True(t, ok)

	found, err := tr.Find([]byte("bee"))
	require.NoError(t, err)
	require.True(t, found)
	off, ok := tr.CurrentOffset()
	require.True(t, ok)
	require.EqualValues(t, 2, off)

	found, err = tr.Next()
	require.NoError(t, err)
	require.True(t, found)
	key, ok := tr.CurrentKey()
	require.True(t, ok)
	require.Equal(t, []byte("cat"), key)

	found, err = tr.Next()
	require.NoError(t, err)
	require.False(t, found)
}

// S2: duplicates positioned in (key, dataOffset) order.
func TestScenarioS2(t *testing.T) {
	tr, _ := newTestTree(t, true)

	for _, off := range []uint64{10, 3, 20} {
		ok, err := tr.Insert([]byte("x"), off)
		require.NoError(t, err)
		require.True(t, ok)
	}

	found, err := tr.Find([]byte("x"))
	require.NoError(t, err)
	require.True(t, found)
	off, _ := tr.CurrentOffset()
	require.EqualValues(t, 3, off)

	found, err = tr.Next()
	require.NoError(t, err)
	require.True(t, found)
	off, _ = tr.CurrentOffset()
	require.EqualValues(t, 10, off)

	found, err = tr.Next()
	require.NoError(t, err)
	require.True(t, found)
	off, _ = tr.CurrentOffset()
	require.EqualValues(t, 20, off)

	found, err = tr.Next()
	require.NoError(t, err)
	require.False(t, found)
}

// S3: bulk random inserts stay sorted and count matches accepted inserts.
func TestScenarioS3(t *testing.T) {
	tr, _ := newTestTree(t, false)

	r := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	accepted := 0
	for i := 0; i < 1000; i++ {
		key := make([]byte, 16)
		r.Read(key)
		for j := range key {
			key[j] = byte(1 + int(key[j])%255) // keep terminator-free
		}
		ok, err := tr.Insert(key, uint64(i))
		require.NoError(t, err)
		if seen[string(key)] {
			require.False(t, ok)
			continue
		}
		seen[string(key)] = true
		if ok {
			accepted++
		}
	}
	require.EqualValues(t, accepted, tr.Count())

	var out [][]byte
	ok, err := tr.First()
	require.NoError(t, err)
	for ok {
		k, _ := tr.CurrentKey()
		out = append(out, append([]byte(nil), k...))
		ok, err = tr.Next()
		require.NoError(t, err)
	}
	require.Len(t, out, accepted)
	require.True(t, sort.SliceIsSorted(out, func(i, j int) bool {
		return keycodec.ByteString{}.Compare(out[i], out[j]) < 0
	}))
}

// S4: long keys force a root split; removing everything frees every
// intermediate page back onto the tree free-list and leaves a single
// empty root.
func TestScenarioS4(t *testing.T) {
	tr, _ := newTestTree(t, false)

	longKey := func(i int) []byte {
		return []byte(fmt.Sprintf("%0150d", i))
	}

	i := 0
	for {
		ok, err := tr.Insert(longKey(i), uint64(i))
		require.NoError(t, err)
		require.True(t, ok)
		i++
		if tr.header.Root != PageSize {
			break // root moved: the original root page split
		}
		require.Less(t, i, 1000, "root never split")
	}
	require.NotEqual(t, uint32(PageSize), tr.header.Root)

	for j := 0; j < i; j++ {
		ok, err := tr.Remove(longKey(j))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.EqualValues(t, 0, tr.Count())
	require.NotEqual(t, uint32(0), tr.header.FreeList)

	root, err := tr.getNode(tr.header.Root)
	require.NoError(t, err)
	require.Equal(t, 0, root.count())
}

// TestRemoveInternalEntrySplitsOnSubstitutionOverflow hand-builds a root
// packed with short internal separator keys, one of which routes to a
// leaf whose predecessor key is far longer. Removing that short key
// forces Case B's predecessor substitution to overflow the root, which
// must split (promoting a new root) and retry rather than write past
// the node's page.
func TestRemoveInternalEntrySplitsOnSubstitutionOverflow(t *testing.T) {
	tr, _ := newTestTree(t, false)

	rightEdge, err := tr.newNode()
	require.NoError(t, err)
	require.NoError(t, tr.writeNode(rightEdge))

	longPredKey := bytes.Repeat([]byte{'c'}, 300)
	leafA, err := tr.newNode()
	require.NoError(t, err)
	leafA.insertAt(0, 0, 1, []byte("aaa"))
	leafA.insertAt(1, 0, 1000, longPredKey)
	require.NoError(t, tr.writeNode(leafA))

	root, err := tr.newNode()
	require.NoError(t, err)
	root.insertAt(0, leafA.offset, 999, []byte("mmm"))
	root.rson = rightEdge.offset

	// Padding entries carry no subtree of their own (lson 0): they exist
	// purely to fill the node to capacity, and must not be treated as
	// real siblings by the merge logic exercised incidentally along the
	// way.
	padKeyLen := 197
	padCount := 0
	for root.fits(padKeyLen) {
		key := append([]byte(fmt.Sprintf("n%06d", padCount)), bytes.Repeat([]byte{'p'}, padKeyLen-7)...)
		root.insertAt(root.count(), 0, uint64(padCount), key)
		padCount++
	}
	require.False(t, root.fitsSubstitute(0, len(longPredKey)), "test setup must leave no room for the predecessor substitution")
	require.NoError(t, tr.writeNode(root))

	rootOffset := root.offset
	tr.header.Root = rootOffset
	total := padCount + 3 // "mmm", leafA's two entries
	tr.header.N = int32(total)

	found, err := tr.Find([]byte("mmm"))
	require.NoError(t, err)
	require.True(t, found)
	off, _ := tr.CurrentOffset()
	require.EqualValues(t, 999, off)

	ok, err := tr.RemoveCurrent()
	require.NoError(t, err)
	require.True(t, ok)

	require.EqualValues(t, total-1, tr.Count())
	require.NotEqual(t, rootOffset, tr.header.Root, "root should have split to make room for the substitution")

	found, err = tr.Find([]byte("mmm"))
	require.NoError(t, err)
	require.False(t, found)

	found, err = tr.Find(longPredKey)
	require.NoError(t, err)
	require.True(t, found)
	off, _ = tr.CurrentOffset()
	require.EqualValues(t, 1000, off)
}

// S6 control case: an index written by this build reopens cleanly. The
// refusal of a mismatching page size is checked by the next test.
func TestScenarioS6(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.ndx")
	tr := New(keycodec.ByteString{})
	require.NoError(t, tr.Create(path, false))
	require.NoError(t, tr.Close())

	tr2 := New(keycodec.ByteString{})
	ok, err := tr2.Open(path)
	require.True(t, ok)
	require.NoError(t, err)
	require.NoError(t, tr2.Close())
}

func TestScenarioS6_WrongPageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.ndx")
	tr := New(keycodec.ByteString{})
	require.NoError(t, tr.Create(path, false))
	require.NoError(t, tr.Close())

	h := tr.header
	h.PageSize = PageSize / 2
	require.Error(t, h.checkCompiled(path))
}

// Idempotence: inserting an existing key with dups=false is a no-op.
func TestScenarioS9(t *testing.T) {
	tr, _ := newTestTree(t, false)

	ok, err := tr.Insert([]byte("k"), 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tr.Insert([]byte("k"), 2)
	require.NoError(t, err)
	require.False(t, ok)

	found, err := tr.Find([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	off, _ := tr.CurrentOffset()
	require.EqualValues(t, 1, off)
	require.EqualValues(t, 1, tr.Count())
}

func TestRemoveThenReopenSurvivesClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.ndx")
	tr := New(keycodec.ByteString{})
	require.NoError(t, tr.Create(path, false))
	for _, k := range []string{"a", "b", "c", "d"} {
		ok, err := tr.Insert([]byte(k), uint64(k[0]))
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := tr.Remove([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.Close())

	tr2 := New(keycodec.ByteString{})
	ok, err = tr2.Open(path)
	require.NoError(t, err)
	require.True(t, ok)
	defer tr2.Close()

	require.EqualValues(t, 3, tr2.Count())
	found, err := tr2.Find([]byte("b"))
	require.NoError(t, err)
	require.False(t, found)
	found, err = tr2.Find([]byte("c"))
	require.NoError(t, err)
	require.True(t, found)
}

func TestInsertRejectsOversizedKey(t *testing.T) {
	tr, _ := newTestTree(t, false)
	big := make([]byte, MaxKeySize+1)
	_, err := tr.Insert(big, 1)
	require.Error(t, err)
}

func TestChangeRequiresCursor(t *testing.T) {
	tr, _ := newTestTree(t, false)
	err := tr.Change(5)
	require.Error(t, err)
}
