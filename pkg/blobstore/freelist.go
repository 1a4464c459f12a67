package blobstore

import "github.com/gerald-lindsly/nub/pkg/nuberr"

// readFreeHeader/writeFreeHeader read and write a free block's header
// in place; free blocks are never cached, only walked directly through
// BlockIO, matching the source's lack of an in-memory free-list index.
func (s *Store) readFreeHeader(at uint64) (freeHeader, error) {
	buf := make([]byte, freeHeaderSize)
	if err := s.data.ReadAt(int64(at), buf); err != nil {
		return freeHeader{}, err
	}
	return decodeFreeHeader(buf), nil
}

func (s *Store) writeFreeHeader(at uint64, h freeHeader) error {
	return s.data.WriteAt(int64(at), h.encode())
}

// allocBlock satisfies a request for need bytes (header included) by
// first-fit search of the free list, splitting the winning block if the
// remainder would be larger than a free header, taking it whole
// otherwise. A miss grows the file.
func (s *Store) allocBlock(need uint64) (uint64, error) {
	var prevAt uint64
	cur := s.freelist
	for cur != 0 {
		h, err := s.readFreeHeader(cur)
		if err != nil {
			return 0, err
		}
		size := uint64(h.size)
		if size >= need {
			remainder := size - need
			if remainder <= minSplitRemainder {
				// Not worth splitting: hand out the whole block,
				// unlinking it from the list.
				if prevAt == 0 {
					s.freelist = h.next
				} else {
					ph, err := s.readFreeHeader(prevAt)
					if err != nil {
						return 0, err
					}
					ph.next = h.next
					if err := s.writeFreeHeader(prevAt, ph); err != nil {
						return 0, err
					}
				}
				return cur, nil
			}
			// Split: the low part stays free (shrunk in place, same
			// offset and next pointer), the high part is handed out.
			h.size = uint32(remainder)
			if err := s.writeFreeHeader(cur, h); err != nil {
				return 0, err
			}
			return cur + remainder, nil
		}
		prevAt = cur
		cur = h.next
	}

	offset := s.filesize
	s.filesize += need
	return offset, nil
}

// prependFree links a fresh extent onto the head of the free list.
func (s *Store) prependFree(at, size uint64) error {
	h := freeHeader{size: uint32(size), next: s.freelist}
	if err := s.writeFreeHeader(at, h); err != nil {
		return err
	}
	s.freelist = at
	return nil
}

// unlinkFree removes the block at the given offset from the free list.
// It is only ever called with an offset just located by scanning the
// same list, so failing to find it again indicates free-list
// corruption.
func (s *Store) unlinkFree(at uint64) error {
	if s.freelist == at {
		h, err := s.readFreeHeader(at)
		if err != nil {
			return err
		}
		s.freelist = h.next
		return nil
	}
	cur := s.freelist
	for cur != 0 {
		h, err := s.readFreeHeader(cur)
		if err != nil {
			return err
		}
		if h.next == at {
			target, err := s.readFreeHeader(at)
			if err != nil {
				return err
			}
			h.next = target.next
			return s.writeFreeHeader(cur, h)
		}
		cur = h.next
	}
	return nuberr.New(nuberr.KindRuntime, "blobstore", "free-list corruption: block to unlink not found")
}

// findAdjacent scans the free list for a block immediately preceding
// [offset, offset+size) (predecessor) and/or immediately following it
// (successor). Free blocks are not kept in offset order, so every call
// is a full linear scan.
func (s *Store) findAdjacent(offset, size uint64) (predAt uint64, havePred bool, succAt uint64, haveSucc bool, err error) {
	cur := s.freelist
	for cur != 0 {
		h, e := s.readFreeHeader(cur)
		if e != nil {
			return 0, false, 0, false, e
		}
		if cur+uint64(h.size) == offset {
			predAt, havePred = cur, true
		}
		if offset+size == cur {
			succAt, haveSucc = cur, true
		}
		cur = h.next
	}
	return
}

// releaseBlock returns [offset, size) to the free list, eagerly
// coalescing with any offset-adjacent free neighbor on either side. Each
// merge can expose a new neighbor on the opposite side of the widened
// extent, so the scan repeats until neither side matches, then the
// final extent is prepended.
func (s *Store) releaseBlock(offset, size uint64) error {
	for {
		predAt, havePred, succAt, haveSucc, err := s.findAdjacent(offset, size)
		if err != nil {
			return err
		}
		switch {
		case havePred:
			ph, err := s.readFreeHeader(predAt)
			if err != nil {
				return err
			}
			if err := s.unlinkFree(predAt); err != nil {
				return err
			}
			size += uint64(ph.size)
			offset = predAt
		case haveSucc:
			sh, err := s.readFreeHeader(succAt)
			if err != nil {
				return err
			}
			if err := s.unlinkFree(succAt); err != nil {
				return err
			}
			size += uint64(sh.size)
		default:
			return s.prependFree(offset, size)
		}
	}
}
