package btree

// split splits the node named by the frame at t.path[idx], promoting a
// pivot key into its parent (or a freshly allocated root, if idx is the
// root frame). The pivot is chosen by byte midpoint of the node's
// packed key data, not by entry count, per the node's variable-length
// layout.
//
// If the parent doesn't have room for the promoted pivot, the parent is
// split first (recursively) and this call returns without touching n;
// the caller is expected to restart the whole operation from the root,
// since every split leaves the tree in a state where a fresh descent is
// required to find the correct insertion point again.
func (t *BTree) split(idx int) error {
	fr := t.path[idx]
	n, err := t.getNode(fr.offset)
	if err != nil {
		return err
	}

	offs := n.offsets()
	total := offs[len(offs)-1]
	mid := total / 2
	pivot := 0
	for pivot < n.count() && offs[pivot] < mid {
		pivot++
	}
	if pivot >= n.count() {
		pivot = n.count() - 1
	}
	pivotEntry := n.entries[pivot]
	pivotKey := append([]byte(nil), pivotEntry.key...)

	hasParent := idx > 0
	if hasParent {
		parentFr := t.path[idx-1]
		parent, err := t.getNode(parentFr.offset)
		if err != nil {
			return err
		}
		if !parent.fits(len(pivotKey)) {
			return t.split(idx - 1)
		}
	}

	sibling, err := t.newNode()
	if err != nil {
		return err
	}

	// newNode may have evicted the cache slot backing n (and, below,
	// parent); re-resolve both by offset rather than trust the handles
	// obtained before the call.
	n, err = t.getNode(fr.offset)
	if err != nil {
		return err
	}

	sibling.entries = append([]entry(nil), n.entries[pivot+1:]...)
	sibling.rson = n.rson
	sibling.dirty = true

	leftOffset := n.offset
	n.rson = pivotEntry.lson
	n.entries = n.entries[:pivot]
	n.dirty = true

	if !hasParent {
		newRoot, err := t.newNode()
		if err != nil {
			return err
		}
		newRoot.entries = []entry{{lson: leftOffset, dataOffset: pivotEntry.dataOffset, key: pivotKey}}
		newRoot.rson = sibling.offset
		newRoot.dirty = true
		t.header.Root = newRoot.offset
		return nil
	}

	parentFr := t.path[idx-1]
	parent, err := t.getNode(parentFr.offset)
	if err != nil {
		return err
	}
	j := parentFr.i
	parent.insertAt(j, leftOffset, pivotEntry.dataOffset, pivotKey)
	if j+1 < parent.count() {
		parent.entries[j+1].lson = sibling.offset
	} else {
		parent.rson = sibling.offset
	}
	parent.dirty = true
	return nil
}
