// Package keycodec supplies the pluggable key-ordering trait used by the
// B-tree. A codec only affects how key bytes are measured, compared and
// copied -- it has no bearing on node layout or persistence beyond the
// raw key bytes it produces.
package keycodec

import "bytes"

// Codec is the KeyCodec trait: size of the on-disk (terminated) form of
// a logical key, comparison of two logical keys, copying a logical key
// into its terminated on-disk form, and the sentinel empty key.
type Codec interface {
	// Size returns the number of bytes a logical key occupies on disk,
	// terminator included.
	Size(key []byte) int
	// StoredLen scans buf -- which begins at the start of a key that was
	// written by Copy -- and returns how many bytes (terminator
	// included) that stored key occupies. Used to reconstruct the
	// in-memory offset table when a node is decoded from disk, since
	// key length is never stored explicitly.
	StoredLen(buf []byte) int
	// Compare orders two logical (untermined) keys.
	Compare(a, b []byte) int
	// Copy writes src's on-disk (terminated) form into dst and returns
	// the number of bytes written. dst must be at least Size(src) long.
	Copy(dst, src []byte) int
	// EmptyKey returns the logical zero-length key.
	EmptyKey() []byte
	// Trim strips the terminator from a stored (on-disk) key, returning
	// the logical key bytes.
	Trim(stored []byte) []byte
}

// ByteString is the NUL-terminated 8-bit byte-string codec: ordinary C
// strings, compared lexicographically byte by byte.
type ByteString struct{}

func (ByteString) Size(key []byte) int { return len(key) + 1 }

func (ByteString) StoredLen(buf []byte) int {
	for i, b := range buf {
		if b == 0 {
			return i + 1
		}
	}
	// Corrupt node: no terminator found within the remaining page. The
	// caller is expected to treat this as a decode failure.
	return len(buf)
}

func (ByteString) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func (ByteString) Copy(dst, src []byte) int {
	n := copy(dst, src)
	dst[n] = 0
	return n + 1
}

func (ByteString) EmptyKey() []byte { return []byte{} }

func (ByteString) Trim(stored []byte) []byte {
	if len(stored) == 0 {
		return stored
	}
	return stored[:len(stored)-1]
}

// UTF16 is the NUL-terminated 16-bit-unit codec: keys are sequences of
// little-endian uint16 units, compared unit by unit, terminated by a
// zero unit.
type UTF16 struct{}

func (UTF16) Size(key []byte) int { return len(key) + 2 }

func (UTF16) StoredLen(buf []byte) int {
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0 && buf[i+1] == 0 {
			return i + 2
		}
	}
	return len(buf)
}

func (UTF16) Compare(a, b []byte) int {
	na, nb := len(a)/2, len(b)/2
	for i := 0; i < na && i < nb; i++ {
		ua := uint16(a[2*i]) | uint16(a[2*i+1])<<8
		ub := uint16(b[2*i]) | uint16(b[2*i+1])<<8
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

func (UTF16) Copy(dst, src []byte) int {
	n := copy(dst, src)
	dst[n] = 0
	dst[n+1] = 0
	return n + 2
}

func (UTF16) EmptyKey() []byte { return []byte{} }

func (UTF16) Trim(stored []byte) []byte {
	if len(stored) < 2 {
		return stored
	}
	return stored[:len(stored)-2]
}
