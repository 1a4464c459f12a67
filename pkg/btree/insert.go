package btree

import "github.com/gerald-lindsly/nub/pkg/nuberr"

// Insert adds (key, dataOffset). It returns false without modifying the
// tree if dups is false and key is already present, or dups is true and
// the exact (key, dataOffset) pair is already present.
func (t *BTree) Insert(key []byte, dataOffset uint64) (bool, error) {
	if len(key) > t.MaxKeySize() {
		return false, nuberr.New(nuberr.KindInvalidArgument, "btree.Insert", "key too long")
	}

	for {
		t.resetPath()
		n, i, found, err := t.descend(key, dataOffset, t.header.Dups)
		if err != nil {
			return false, err
		}
		if found {
			return false, nil
		}

		if n.fits(len(key)) {
			n.insertAt(i, 0, dataOffset, key)
			t.header.N++
			return true, nil
		}

		if err := t.split(len(t.path) - 1); err != nil {
			return false, err
		}
		// Whether split placed the pivot in n's existing parent or had
		// to split an ancestor first, the correct insertion point must
		// be found again from scratch.
	}
}
