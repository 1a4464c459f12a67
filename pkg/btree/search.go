package btree

// descend walks from the root to the leaf (or internal key) that key
// resolves to, pushing a (node, i) frame at every level. found reports
// whether an exact match (per search's dupsAllowed rule) was hit before
// reaching a leaf; in that case the returned node/i is the match itself
// and no further descent happens, since an internal node may carry data
// directly.
func (t *BTree) descend(key []byte, dataOffset uint64, dupsAllowed bool) (n *node, i int, found bool, err error) {
	offset := t.header.Root
	for {
		n, err = t.getNode(offset)
		if err != nil {
			return nil, 0, false, err
		}
		i, found = n.search(key, dataOffset, dupsAllowed)
		if err := t.pushFrame(n.offset, i); err != nil {
			return nil, 0, false, err
		}
		if found {
			return n, i, true, nil
		}
		if n.isLeaf() {
			return n, i, false, nil
		}
		if i < n.count() {
			offset = n.entries[i].lson
		} else {
			offset = n.rson
		}
	}
}

// frameAt returns the frame depthFromTop entries below the top of the
// path stack (0 = the top, i.e. the current/deepest frame) along with
// its decoded node, without popping it.
func (t *BTree) frameAt(depthFromTop int) (fr frame, n *node, err error) {
	idx := len(t.path) - 1 - depthFromTop
	if idx < 0 {
		return frame{}, nil, errNoCursor
	}
	fr = t.path[idx]
	n, err = t.getNode(fr.offset)
	return fr, n, err
}

// pop removes and returns the deepest frame along with its node.
func (t *BTree) pop() (fr frame, n *node, err error) {
	if len(t.path) == 0 {
		return frame{}, nil, errNoCursor
	}
	fr = t.path[len(t.path)-1]
	t.path = t.path[:len(t.path)-1]
	n, err = t.getNode(fr.offset)
	return fr, n, err
}
