package btree

import "github.com/gerald-lindsly/nub/pkg/nuberr"

// Remove deletes the first (or sole, if dups is false) occurrence of
// key, positioning the cursor at the key's in-order successor.
func (t *BTree) Remove(key []byte) (bool, error) {
	found, err := t.Find(key)
	if err != nil || !found {
		return false, err
	}
	return t.RemoveCurrent()
}

// RemoveOffset deletes the (key, dataOffset) pair.
func (t *BTree) RemoveOffset(key []byte, dataOffset uint64) (bool, error) {
	found, err := t.FindOffset(key, dataOffset)
	if err != nil || !found {
		return false, err
	}
	return t.RemoveCurrent()
}

// RemoveCurrent deletes the key at the cursor, leaving the cursor on
// the in-order successor (or cleared, at the end of the tree).
func (t *BTree) RemoveCurrent() (bool, error) {
	if len(t.path) == 0 {
		return false, nil
	}
	fr := t.path[len(t.path)-1]
	t.path = t.path[:len(t.path)-1]
	n, err := t.getNode(fr.offset)
	if err != nil {
		return false, err
	}
	if fr.i >= n.count() {
		return false, nil
	}
	e := n.entries[fr.i]

	var nextOffset uint32
	var nextIdx int
	if e.lson == 0 {
		nextOffset, nextIdx, err = t.removeLeafEntry(n, fr.i)
	} else {
		nextOffset, nextIdx, err = t.removeInternalEntry(n, fr.i)
	}
	if err != nil {
		return false, err
	}

	t.header.N--
	if _, err := t.settleAfterDelete(nextOffset, nextIdx); err != nil {
		return false, err
	}
	return true, nil
}

// settleAfterDelete positions the cursor at the in-order successor of
// (nodeOffset, i): if i still names a valid entry in that node, that's
// the successor (after descending any left-son chain to its leftmost
// leaf); otherwise it ascends the remaining path looking for the
// nearest ancestor frame whose recorded index is still within bounds.
func (t *BTree) settleAfterDelete(nodeOffset uint32, i int) (bool, error) {
	n, err := t.getNode(nodeOffset)
	if err != nil {
		return false, err
	}
	if i >= n.count() {
		found := false
		for len(t.path) > 0 {
			fr := t.path[len(t.path)-1]
			t.path = t.path[:len(t.path)-1]
			pn, err := t.getNode(fr.offset)
			if err != nil {
				return false, err
			}
			if fr.i < pn.count() {
				nodeOffset, i, n = fr.offset, fr.i, pn
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	t.path = append(t.path, frame{offset: nodeOffset, i: i})
	for n.entries[i].lson != 0 {
		child := n.entries[i].lson
		cn, err := t.getNode(child)
		if err != nil {
			return false, err
		}
		n, nodeOffset, i = cn, child, 0
		t.path = append(t.path, frame{offset: nodeOffset, i: i})
	}
	return true, nil
}

// removeLeafEntry implements remove's Case A: the key at i is a plain
// leaf entry (lson == 0). It is deleted outright; if that empties the
// node, the node is freed and spliced out of the parent. It then
// opportunistically merges with a sibling if the node (or its
// surviving merge target) is at or under half full. Returns the
// (node, index) the deleted key's in-order successor can be found
// relative to, for settleAfterDelete to resolve.
func (t *BTree) removeLeafEntry(n *node, i int) (uint32, int, error) {
	n.deleteAt(i)
	afterOffset, afterIdx := n.offset, i

	if n.count() == 0 && len(t.path) > 0 {
		parentFr := t.path[len(t.path)-1]
		t.path = t.path[:len(t.path)-1]
		parent, err := t.getNode(parentFr.offset)
		if err != nil {
			return 0, 0, err
		}
		if err := t.freeNode(n); err != nil {
			return 0, 0, err
		}
		if parentFr.i < parent.count() {
			parent.entries[parentFr.i].lson = 0
		} else {
			parent.rson = 0
		}
		parent.dirty = true
		afterOffset, afterIdx = parentFr.offset, parentFr.i
		return afterOffset, afterIdx, nil
	}

	if n.usedBytes() <= PageSize/2 && len(t.path) > 0 {
		merged, err := t.mergeWithSibling(n)
		if err != nil {
			return 0, 0, err
		}
		if merged {
			// The node (and possibly its parent) changed identity or
			// index layout; re-derive from the current path top.
			if len(t.path) > 0 {
				fr := t.path[len(t.path)-1]
				return fr.offset, fr.i, nil
			}
		}
	}
	return afterOffset, afterIdx, nil
}

// mergeWithSibling tries the right sibling of n (via the parent key at
// the node's index) and then the left sibling, folding the separating
// parent key down between the two and freeing whichever node is
// vacated. It reports whether a merge happened.
func (t *BTree) mergeWithSibling(n *node) (bool, error) {
	parentFr := t.path[len(t.path)-1]
	parent, err := t.getNode(parentFr.offset)
	if err != nil {
		return false, err
	}
	j := parentFr.i

	if j < parent.count() {
		sep := parent.entries[j]
		// sep.lson is n's own pointer (j indexes the entry n was
		// reached through); the right sibling hangs off the NEXT
		// pointer slot (entries[j+1].lson, or rson at the edge).
		var rsibOffset uint32
		if j+1 < parent.count() {
			rsibOffset = parent.entries[j+1].lson
		} else {
			rsibOffset = parent.rson
		}
		if rsibOffset != 0 {
			rsib, err := t.getNode(rsibOffset)
			if err != nil {
				return false, err
			}
			combined := n.usedBytes() + rsib.usedBytes() + entryExtraFor(sep, n.codec) + nodeExtra
			if combined <= PageSize {
				n.entries = append(n.entries, entry{lson: n.rson, dataOffset: sep.dataOffset, key: append([]byte(nil), sep.key...)})
				n.entries = append(n.entries, rsib.entries...)
				n.rson = rsib.rson
				n.dirty = true
				if err := t.freeNode(rsib); err != nil {
					return false, err
				}
				parent.deleteAt(j)
				if j < parent.count() {
					parent.entries[j].lson = n.offset
				} else {
					parent.rson = n.offset
				}
				parent.dirty = true
				if parent.count() == 0 {
					if err := t.collapseEmptyParent(n.offset); err != nil {
						return false, err
					}
				}
				return true, nil
			}
		}
	}

	if j > 0 {
		lsep := parent.entries[j-1]
		if lsep.lson != 0 {
			lsib, err := t.getNode(lsep.lson)
			if err != nil {
				return false, err
			}
			combined := n.usedBytes() + lsib.usedBytes() + entryExtraFor(lsep, n.codec) + nodeExtra
			if combined <= PageSize {
				lsib.entries = append(lsib.entries, entry{lson: lsib.rson, dataOffset: lsep.dataOffset, key: append([]byte(nil), lsep.key...)})
				lsib.entries = append(lsib.entries, n.entries...)
				lsib.rson = n.rson
				lsib.dirty = true
				if err := t.freeNode(n); err != nil {
					return false, err
				}
				parent.deleteAt(j - 1)
				if j-1 < parent.count() {
					parent.entries[j-1].lson = lsib.offset
				} else {
					parent.rson = lsib.offset
				}
				parent.dirty = true
				t.path[len(t.path)-1] = frame{offset: parentFr.offset, i: j - 1}
				if parent.count() == 0 {
					if err := t.collapseEmptyParent(lsib.offset); err != nil {
						return false, err
					}
				}
				return true, nil
			}
		}
	}
	return false, nil
}

// entryExtraFor reports the packed size of folding entry e down into a
// merged node as its separator: one ordinary entry, key bytes included,
// since neither merged node's usedBytes counts the separator yet.
func entryExtraFor(e entry, codec interface{ Size([]byte) int }) int {
	return NdxPosSize + DatPosSize + codec.Size(e.key)
}

// collapseEmptyParent handles a parent left with zero entries after a
// merge: its single remaining child (survivor) becomes the new root,
// or is spliced into the grandparent in the parent's former place.
func (t *BTree) collapseEmptyParent(survivor uint32) error {
	parentFr := t.path[len(t.path)-1]
	t.path = t.path[:len(t.path)-1]
	parent, err := t.getNode(parentFr.offset)
	if err != nil {
		return err
	}
	if err := t.freeNode(parent); err != nil {
		return err
	}
	if len(t.path) == 0 {
		t.header.Root = survivor
		return nil
	}
	gpFr := t.path[len(t.path)-1]
	gp, err := t.getNode(gpFr.offset)
	if err != nil {
		return err
	}
	if gpFr.i < gp.count() {
		gp.entries[gpFr.i].lson = survivor
	} else {
		gp.rson = survivor
	}
	gp.dirty = true
	return nil
}

// removeInternalEntry implements remove's Case B: the key at i carries
// a left child (lson != 0), so it cannot simply be deleted -- it is
// replaced by its in-order predecessor (the rightmost key of the
// subtree rooted at its lson), which is then deleted from its leaf via
// the Case A path.
func (t *BTree) removeInternalEntry(n *node, i int) (uint32, int, error) {
	// Descend to the rightmost leaf of entries[i].lson.
	offset := n.entries[i].lson
	var predNode *node
	var predIdx int
	descentFrames := []frame{}
	for {
		cn, err := t.getNode(offset)
		if err != nil {
			return 0, 0, err
		}
		idx := cn.count() - 1
		descentFrames = append(descentFrames, frame{offset: offset, i: idx})
		if cn.rson == 0 {
			predNode, predIdx = cn, idx
			break
		}
		offset = cn.rson
	}
	pred := predNode.entries[predIdx]
	predKey := append([]byte(nil), pred.key...)
	predOffset := pred.dataOffset

	// Capture the target entry's own identity, not just (n, i): the
	// predecessor's removal below can cascade merges that fold n itself
	// into a sibling (e.g. when n is predNode's direct parent), which
	// would leave i, or even n.offset, stale by the time it returns.
	targetKey := append([]byte(nil), n.entries[i].key...)
	targetOffset := n.entries[i].dataOffset

	// Splice n's own frame (the edge we descended through) and the
	// predecessor's ancestor chain (minus its own terminal leaf frame,
	// handled directly below) onto the path, so removeLeafEntry's
	// parent splicing and merge logic can see the right ancestor chain.
	t.path = append(t.path, frame{offset: n.offset, i: i})
	t.path = append(t.path, descentFrames[:len(descentFrames)-1]...)
	afterOffset, afterIdx, err := t.removeLeafEntry(predNode, predIdx)
	if err != nil {
		return 0, 0, err
	}

	if err := t.substituteKey(targetKey, targetOffset, predKey, predOffset); err != nil {
		return 0, 0, err
	}

	return afterOffset, afterIdx, nil
}

// substituteKey replaces the entry identified by (targetKey,
// targetOffset) with newKey/newOffset, splitting its containing node
// first if the longer predecessor key would overflow it. The node is
// relocated by identity rather than by the (node, index) the caller
// last saw it at, since a split -- like the merges inside
// removeLeafEntry -- can move or resize it.
//
// t.path is saved and restored around this: the descent done here (and
// by a nested split's own frame bookkeeping) is local to relocating and
// resizing one node, and must not disturb the ancestor chain the
// caller's cursor positioning relies on.
func (t *BTree) substituteKey(targetKey []byte, targetOffset uint64, newKey []byte, newOffset uint64) error {
	savedPath := append([]frame(nil), t.path...)
	defer func() { t.path = savedPath }()

	nodeOffset, i, err := t.locate(targetKey, targetOffset)
	if err != nil {
		return err
	}
	for {
		n, err := t.getNode(nodeOffset)
		if err != nil {
			return err
		}
		if n.fitsSubstitute(i, len(newKey)) {
			n.entries[i].key = newKey
			n.entries[i].dataOffset = newOffset
			n.dirty = true
			return nil
		}
		// The predecessor's key doesn't fit in place: split the node
		// first, per the substitution-overflow rule, then relocate the
		// target entry (it may now live in the original node, the new
		// sibling, or have been promoted as the parent's pivot) and
		// retry, mirroring Insert's split-then-retry loop.
		if err := t.splitNodeByOffset(nodeOffset); err != nil {
			return err
		}
		nodeOffset, i, err = t.locate(targetKey, targetOffset)
		if err != nil {
			return err
		}
	}
}

// locate walks from the root to the exact (key, dataOffset) pair,
// without touching t.path -- used internally to relocate an entry whose
// containing node may have changed identity since it was last seen.
func (t *BTree) locate(key []byte, dataOffset uint64) (nodeOffset uint32, i int, err error) {
	offset := t.header.Root
	for {
		n, err := t.getNode(offset)
		if err != nil {
			return 0, 0, err
		}
		i, found := n.search(key, dataOffset, true)
		if found {
			return n.offset, i, nil
		}
		if n.isLeaf() {
			return 0, 0, nuberr.New(nuberr.KindRuntime, "btree.substituteKey", "target entry not found")
		}
		if i < n.count() {
			offset = n.entries[i].lson
		} else {
			offset = n.rson
		}
	}
}

// splitNodeByOffset splits the node at offset via the ordinary split
// machinery, locating its current frame in t.path (or appending a
// fresh top-of-path frame if it isn't present there).
func (t *BTree) splitNodeByOffset(offset uint32) error {
	idx := -1
	for j := len(t.path) - 1; j >= 0; j-- {
		if t.path[j].offset == offset {
			idx = j
			break
		}
	}
	if idx < 0 {
		idx = len(t.path)
		t.path = append(t.path, frame{offset: offset, i: 0})
	}
	return t.split(idx)
}
