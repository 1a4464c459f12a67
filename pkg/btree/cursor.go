package btree

// CurrentKey returns the logical key bytes at the cursor. Valid only
// immediately after an operation that left the cursor set.
func (t *BTree) CurrentKey() ([]byte, bool) {
	if len(t.path) == 0 {
		return nil, false
	}
	fr := t.path[len(t.path)-1]
	n, err := t.getNode(fr.offset)
	if err != nil || fr.i >= n.count() {
		return nil, false
	}
	return n.entries[fr.i].key, true
}

// CurrentOffset returns the data offset stored at the cursor.
func (t *BTree) CurrentOffset() (uint64, bool) {
	if len(t.path) == 0 {
		return 0, false
	}
	fr := t.path[len(t.path)-1]
	n, err := t.getNode(fr.offset)
	if err != nil || fr.i >= n.count() {
		return 0, false
	}
	return n.entries[fr.i].dataOffset, true
}

// Change rewrites the data offset of the current key.
func (t *BTree) Change(dataOffset uint64) error {
	if len(t.path) == 0 {
		return errNoCursor
	}
	fr := t.path[len(t.path)-1]
	n, err := t.getNode(fr.offset)
	if err != nil {
		return err
	}
	if fr.i >= n.count() {
		return errNoCursor
	}
	n.entries[fr.i].dataOffset = dataOffset
	n.dirty = true
	return nil
}

// Find positions the cursor at key: the sole match if duplicates are
// disallowed, or the first (lowest data offset) occurrence if they are
// allowed. On a miss it positions at the next greater key, per next()'s
// definition, and reports false.
func (t *BTree) Find(key []byte) (bool, error) {
	t.resetPath()
	n, i, found, err := t.descend(key, 0, t.header.Dups)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	if n.isLeaf() && i < n.count() {
		// Already positioned at the insertion point found by descend.
		// With duplicates that search was for (key, 0), so the entry
		// there may be key itself under a higher data offset.
		return t.header.Dups && t.codec.Compare(n.entries[i].key, key) == 0, nil
	}
	ok, err := t.Next()
	if err != nil || !ok {
		return false, err
	}
	cur, _ := t.CurrentKey()
	return t.header.Dups && t.codec.Compare(cur, key) == 0, nil
}

// FindOffset positions the cursor at the exact (key, dataOffset) pair.
func (t *BTree) FindOffset(key []byte, dataOffset uint64) (bool, error) {
	t.resetPath()
	n, i, found, err := t.descend(key, dataOffset, true)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	if n.isLeaf() && i < n.count() {
		return false, nil
	}
	_, err = t.Next()
	return false, err
}

// First positions the cursor at the smallest key.
func (t *BTree) First() (bool, error) {
	t.resetPath()
	offset := t.header.Root
	for {
		n, err := t.getNode(offset)
		if err != nil {
			return false, err
		}
		if err := t.pushFrame(n.offset, 0); err != nil {
			return false, err
		}
		if n.count() == 0 {
			t.resetPath()
			return false, nil
		}
		if n.entries[0].lson == 0 {
			return true, nil
		}
		offset = n.entries[0].lson
	}
}

// Last positions the cursor at the largest key.
func (t *BTree) Last() (bool, error) {
	t.resetPath()
	offset := t.header.Root
	for {
		n, err := t.getNode(offset)
		if err != nil {
			return false, err
		}
		if n.count() == 0 {
			t.resetPath()
			return false, nil
		}
		i := n.count() - 1
		child := n.rson
		if child == 0 {
			if err := t.pushFrame(n.offset, i); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := t.pushFrame(n.offset, n.count()); err != nil {
			return false, err
		}
		offset = child
	}
}

// Next advances the cursor to the in-order successor, clearing it at
// the end of the tree.
func (t *BTree) Next() (bool, error) {
	// A frame climbed back to names the child pointer just left
	// (entries[i].lson, or rson at i == count): entry i is the successor.
	ascended := false
	for len(t.path) > 0 {
		fr := t.path[len(t.path)-1]
		n, err := t.getNode(fr.offset)
		if err != nil {
			return false, err
		}
		if ascended {
			if fr.i < n.count() {
				return true, nil
			}
			t.path = t.path[:len(t.path)-1]
			continue
		}
		// Descend into the right child of the current key, if any, to
		// its leftmost descendant.
		var child uint32
		if fr.i < n.count() {
			child = n.entries[fr.i].lson
		}
		if n.isLeaf() {
			child = 0
		} else if fr.i < n.count() {
			// entries[i].lson is the LEFT child of entry i; the
			// in-order successor of an internal key is the leftmost
			// key of the subtree rooted at the child to its right,
			// i.e. entries[i+1].lson or rson.
			if fr.i+1 < n.count() {
				child = n.entries[fr.i+1].lson
			} else {
				child = n.rson
			}
		}
		if child != 0 {
			// Record the pointer followed, so climbing back lands past entry i.
			t.path[len(t.path)-1] = frame{offset: fr.offset, i: fr.i + 1}
			offset := child
			for {
				cn, err := t.getNode(offset)
				if err != nil {
					return false, err
				}
				if err := t.pushFrame(cn.offset, 0); err != nil {
					return false, err
				}
				if cn.isLeaf() {
					if cn.count() == 0 {
						break
					}
					return true, nil
				}
				offset = cn.entries[0].lson
			}
			continue
		}
		if fr.i+1 < n.count() {
			t.path[len(t.path)-1] = frame{offset: fr.offset, i: fr.i + 1}
			return true, nil
		}
		// Exhausted this node: pop and try the parent's next slot.
		t.path = t.path[:len(t.path)-1]
		ascended = true
	}
	return false, nil
}

// Prev retreats the cursor to the in-order predecessor, clearing it at
// the beginning of the tree.
func (t *BTree) Prev() (bool, error) {
	// A frame climbed back to names the child pointer just left
	// (entries[i].lson, or rson at i == count): entry i-1 is the predecessor.
	ascended := false
	for len(t.path) > 0 {
		fr := t.path[len(t.path)-1]
		n, err := t.getNode(fr.offset)
		if err != nil {
			return false, err
		}
		var child uint32
		if !ascended && fr.i < n.count() {
			child = n.entries[fr.i].lson
		}
		if child != 0 {
			offset := child
			for {
				cn, err := t.getNode(offset)
				if err != nil {
					return false, err
				}
				if cn.isLeaf() {
					if cn.count() == 0 {
						break
					}
					if err := t.pushFrame(cn.offset, cn.count()-1); err != nil {
						return false, err
					}
					return true, nil
				}
				if err := t.pushFrame(cn.offset, cn.count()); err != nil {
					return false, err
				}
				offset = cn.rson
			}
			// Only an empty leaf ends the descent without a result.
			ascended = true
			continue
		}
		if fr.i > 0 {
			t.path[len(t.path)-1] = frame{offset: fr.offset, i: fr.i - 1}
			return true, nil
		}
		t.path = t.path[:len(t.path)-1]
		ascended = true
	}
	return false, nil
}
