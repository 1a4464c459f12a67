package blobstore

import "encoding/binary"

// usedHeader precedes every live blob: size is the total reserved
// extent (header included), compSize is 0 when the payload is stored
// uncompressed (compression didn't shrink it), else the number of
// compressed bytes that follow.
type usedHeader struct {
	size       uint32
	compSize   uint32
	uncompSize uint32
}

func (h usedHeader) encode() []byte {
	buf := make([]byte, usedHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.size)
	binary.LittleEndian.PutUint32(buf[4:], h.compSize)
	binary.LittleEndian.PutUint32(buf[8:], h.uncompSize)
	return buf
}

func decodeUsedHeader(buf []byte) usedHeader {
	return usedHeader{
		size:       binary.LittleEndian.Uint32(buf[0:]),
		compSize:   binary.LittleEndian.Uint32(buf[4:]),
		uncompSize: binary.LittleEndian.Uint32(buf[8:]),
	}
}

// freeHeader marks a reclaimed extent: size is the whole extent
// (header included), next chains to the next free block in the list
// (0 terminates); free blocks are not kept in offset order.
type freeHeader struct {
	size uint32
	next uint64
}

func (h freeHeader) encode() []byte {
	buf := make([]byte, freeHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.size)
	binary.LittleEndian.PutUint64(buf[4:], h.next)
	return buf
}

func decodeFreeHeader(buf []byte) freeHeader {
	return freeHeader{
		size: binary.LittleEndian.Uint32(buf[0:]),
		next: binary.LittleEndian.Uint64(buf[4:]),
	}
}
