package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/gerald-lindsly/nub/pkg/nuberr"
)

// Header is page 0 of the index file. Every exported field below is
// written bit-exact, little-endian, in this order (the dirty flag is not
// written); the remainder of the page is zero-filled and unused.
type Header struct {
	Major       uint8
	Minor       uint8
	NdxPosSize  uint8
	DatPosSize  uint8
	PageSize    uint16
	MaxKeySize  uint16
	Root        uint32
	EOF         uint32
	FreeList    uint32
	N           int32
	Dups        bool
	dirty       bool
}

func newHeader(dups bool) *Header {
	return &Header{
		Major:      MajorVersion,
		Minor:      MinorVersion,
		NdxPosSize: NdxPosSize,
		DatPosSize: DatPosSize,
		PageSize:   PageSize,
		MaxKeySize: uint16(MaxKeySize),
		Root:       PageSize, // the first node page immediately follows the header
		EOF:        PageSize,
		FreeList:   0,
		N:          0,
		Dups:       dups,
	}
}

func (h *Header) encode() []byte {
	buf := make([]byte, PageSize)
	buf[0] = h.Major
	buf[1] = h.Minor
	buf[2] = h.NdxPosSize
	buf[3] = h.DatPosSize
	binary.LittleEndian.PutUint16(buf[4:], h.PageSize)
	binary.LittleEndian.PutUint16(buf[6:], h.MaxKeySize)
	binary.LittleEndian.PutUint32(buf[8:], h.Root)
	binary.LittleEndian.PutUint32(buf[12:], h.EOF)
	binary.LittleEndian.PutUint32(buf[16:], h.FreeList)
	binary.LittleEndian.PutUint32(buf[20:], uint32(h.N))
	if h.Dups {
		buf[24] = 1
	}
	// buf[25:28] padding, left zero
	return buf
}

func decodeHeader(buf []byte) *Header {
	h := &Header{
		Major:      buf[0],
		Minor:      buf[1],
		NdxPosSize: buf[2],
		DatPosSize: buf[3],
		PageSize:   binary.LittleEndian.Uint16(buf[4:]),
		MaxKeySize: binary.LittleEndian.Uint16(buf[6:]),
		Root:       binary.LittleEndian.Uint32(buf[8:]),
		EOF:        binary.LittleEndian.Uint32(buf[12:]),
		FreeList:   binary.LittleEndian.Uint32(buf[16:]),
		N:          int32(binary.LittleEndian.Uint32(buf[20:])),
		Dups:       buf[24] != 0,
	}
	return h
}

// checkCompiled verifies the on-disk header is bit-exact compatible
// with this build's compile-time configuration. The format carries no
// self-description beyond these fields.
func (h *Header) checkCompiled(path string) error {
	switch {
	case h.Major != MajorVersion:
		return nuberr.New(nuberr.KindIO, "btree.Open",
			fmt.Sprintf("%s: major version %d, expected %d", path, h.Major, MajorVersion))
	case h.PageSize != PageSize:
		return nuberr.New(nuberr.KindIO, "btree.Open",
			fmt.Sprintf("%s: page size %d, expected %d", path, h.PageSize, PageSize))
	case h.NdxPosSize != NdxPosSize:
		return nuberr.New(nuberr.KindIO, "btree.Open",
			fmt.Sprintf("%s: node offset width %d, expected %d", path, h.NdxPosSize, NdxPosSize))
	case h.DatPosSize != DatPosSize:
		return nuberr.New(nuberr.KindIO, "btree.Open",
			fmt.Sprintf("%s: data offset width %d, expected %d", path, h.DatPosSize, DatPosSize))
	case int(h.MaxKeySize) != MaxKeySize:
		return nuberr.New(nuberr.KindIO, "btree.Open",
			fmt.Sprintf("%s: max key size %d, expected %d", path, h.MaxKeySize, MaxKeySize))
	}
	return nil
}
