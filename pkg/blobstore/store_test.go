package blobstore

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gerald-lindsly/nub/pkg/compressor"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	name := filepath.Join(t.TempDir(), "res")
	s := New(&compressor.LZ4{}, nil)
	require.NoError(t, s.Create(name, false))
	t.Cleanup(func() { s.Close() })
	return s, name
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// S5: removing "a" frees space large enough for "c" to land inside it,
// and the reclaimed slot decompresses correctly.
func TestScenarioS5(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Put("a", repeat(0xAA, 8192)))
	require.NoError(t, s.Put("b", repeat(0xBB, 8192)))
	filesizeBeforeRemove := s.filesize

	ok, err := s.Remove("a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Put("c", repeat(0xCC, 4096)))
	require.LessOrEqual(t, s.filesize, filesizeBeforeRemove,
		"c should have been placed inside the region freed by removing a, not appended")

	found, err := s.idx.Find([]byte("c"))
	require.NoError(t, err)
	require.True(t, found)
	cOffset, _ := s.idx.CurrentOffset()
	require.Less(t, cOffset, filesizeBeforeRemove, "c's offset should fall inside the region freed by removing a")

	data, found, err := s.Get("c")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, repeat(0xCC, 4096), data)
}

// Round-trip and compression neutrality: compressible and incompressible
// payloads both come back byte-for-byte.
func TestPutGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	compressible := repeat('z', 4096) // compresses well
	require.NoError(t, s.Put("compressible", compressible))

	incompressible := make([]byte, 256)
	for i := range incompressible {
		incompressible[i] = byte(i * 97)
	}
	require.NoError(t, s.Put("incompressible", incompressible))

	got, found, err := s.Get("compressible")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, compressible, got)

	got, found, err = s.Get("incompressible")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, incompressible, got)
}

func TestPutReplacesExistingName(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Put("k", []byte("first")))
	require.NoError(t, s.Put("k", []byte("second, and longer")))

	got, found, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second, and longer"), got)
	require.EqualValues(t, 1, s.Count())
}

func TestGetMissingNameReportsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, found, err := s.Get("nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRemoveMissingNameReportsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ok, err := s.Remove("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

// Free-list soundness: after a sequence of puts and removes, the live
// free blocks never overlap and no two are offset-adjacent (they would
// have been coalesced).
func TestFreeListSoundness(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Put(string(rune('a'+i)), repeat(byte(i), 100+i*7)))
	}
	for i := 0; i < 10; i += 2 {
		_, err := s.Remove(string(rune('a' + i)))
		require.NoError(t, err)
	}

	type extent struct{ start, end uint64 }
	var frees []extent
	cur := s.freelist
	for cur != 0 {
		h, err := s.readFreeHeader(cur)
		require.NoError(t, err)
		frees = append(frees, extent{cur, cur + uint64(h.size)})
		cur = h.next
	}
	for i := range frees {
		for j := range frees {
			if i == j {
				continue
			}
			require.False(t, frees[i].start < frees[j].end && frees[j].start < frees[i].end, "free blocks overlap")
			require.NotEqual(t, frees[i].end, frees[j].start, "adjacent free blocks should have been merged")
		}
	}
}

// Persistence: state survives Close/Open.
func TestPersistenceAcrossCloseOpen(t *testing.T) {
	s, name := newTestStore(t)
	require.NoError(t, s.Put("a", []byte("alpha")))
	require.NoError(t, s.Put("b", repeat('B', 2048)))
	require.NoError(t, s.Close())

	s2 := New(&compressor.LZ4{}, nil)
	ok, err := s2.Open(name)
	require.NoError(t, err)
	require.True(t, ok)
	defer s2.Close()

	got, found, err := s2.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("alpha"), got)

	got, found, err = s2.Get("b")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, repeat('B', 2048), got)
}

func TestTraverseVisitsInKeyOrder(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Put("bee", []byte("2")))
	require.NoError(t, s.Put("ant", []byte("1")))
	require.NoError(t, s.Put("cat", []byte("3")))

	var names []string
	var buf bytes.Buffer
	require.NoError(t, s.Traverse(func(name string, data []byte) error {
		names = append(names, name)
		buf.Write(data)
		return nil
	}))
	require.Equal(t, []string{"ant", "bee", "cat"}, names)
	require.Equal(t, "123", buf.String())
}

func TestPreCompressPostCompressDoNotAffectCorrectness(t *testing.T) {
	s, _ := newTestStore(t)
	s.PreCompress()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(string(rune('a'+i)), repeat(byte(i), 1000)))
	}
	s.PostCompress()

	for i := 0; i < 5; i++ {
		got, found, err := s.Get(string(rune('a' + i)))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, repeat(byte(i), 1000), got)
	}
}
