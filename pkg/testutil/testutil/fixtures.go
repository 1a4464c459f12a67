// Package testutil provides small fixtures for B-tree and blob-store
// tests: a scratch directory per test and a deterministic random-key
// generator for bulk fuzz-style scenarios. The btree and blobstore test
// suites in this repository do not import it.
package testutil

import (
	"math/rand"
	"path/filepath"
	"testing"
)

// IndexPath returns a fresh path under t's temp directory suitable for
// a BTree or blobstore.Store named base (the caller appends whatever
// suffix its component expects, e.g. ".0"/".1").
func IndexPath(t *testing.T, base string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), base)
}

// RandomKeys returns n distinct keys of exactly size bytes, generated
// from a fixed seed so callers get the same sequence every run -- the
// point of scenario S3 is a reproducible large fuzz input, not true
// randomness.
func RandomKeys(seed int64, n, size int) [][]byte {
	r := rand.New(rand.NewSource(seed))
	seen := make(map[string]bool, n)
	keys := make([][]byte, 0, n)
	for len(keys) < n {
		k := make([]byte, size)
		r.Read(k)
		for i := range k {
			// Map every byte into 1..255, never zero, so a
			// NUL-terminated codec can round-trip them unambiguously.
			k[i] = byte(1 + int(k[i])%255)
		}
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, k)
	}
	return keys
}
