// Package blockio is the positional byte-I/O collaborator the index and
// resource stores are built on. It knows nothing about pages, nodes or
// blobs -- only how to open, create and do ranged reads/writes against a
// named file, reporting failures as typed errors. No buffering beyond
// what the OS provides is performed; node and blob caching live above
// this layer.
package blockio

import (
	"io"
	"os"

	"github.com/gerald-lindsly/nub/pkg/nuberr"
)

// File is a single open file handle used for positional I/O. The zero
// value is not usable; construct with Open or Create.
type File struct {
	f    *os.File
	name string
}

// Open opens an existing file for read/write. It returns (nil, nil) if
// the file does not exist -- callers use this to distinguish "missing"
// from other I/O errors, mirroring the collaborator's open()->handle|notfound
// contract.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nuberr.IO("blockio.Open", err)
	}
	return &File{f: f, name: path}, nil
}

// Create truncates-or-creates path for read/write.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nuberr.IO("blockio.Create", err)
	}
	return &File{f: f, name: path}, nil
}

// Close releases the underlying OS handle.
func (h *File) Close() error {
	if err := h.f.Close(); err != nil {
		return nuberr.IO("blockio.Close", err)
	}
	return nil
}

// Name returns the path the handle was opened or created with.
func (h *File) Name() string { return h.name }

// Seek repositions the handle's implicit cursor. Exposed for collaborator
// contract fidelity; ReadAt/WriteAt are used internally and do not
// disturb it.
func (h *File) Seek(offset int64) error {
	if _, err := h.f.Seek(offset, io.SeekStart); err != nil {
		return nuberr.IO("blockio.Seek", err)
	}
	return nil
}

// ReadAt fills buf entirely from offset. A short read is a hard I/O
// error: partial reads are never tolerated by callers above this layer.
func (h *File) ReadAt(offset int64, buf []byte) error {
	if _, err := h.f.ReadAt(buf, offset); err != nil {
		return nuberr.IO("blockio.ReadAt", err)
	}
	return nil
}

// WriteAt writes buf entirely at offset.
func (h *File) WriteAt(offset int64, buf []byte) error {
	if _, err := h.f.WriteAt(buf, offset); err != nil {
		return nuberr.IO("blockio.WriteAt", err)
	}
	return nil
}

// Size returns the current file size in bytes.
func (h *File) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return 0, nuberr.IO("blockio.Size", err)
	}
	return fi.Size(), nil
}

// Truncate resizes the underlying file.
func (h *File) Truncate(size int64) error {
	if err := h.f.Truncate(size); err != nil {
		return nuberr.IO("blockio.Truncate", err)
	}
	return nil
}

// Sync flushes OS buffers. Not called by the core on every write (the
// system defines no fsync protocol, see the store's durability
// non-goals) but exposed so an application can call it around close if
// it wants stronger guarantees than the core provides.
func (h *File) Sync() error {
	if err := h.f.Sync(); err != nil {
		return nuberr.IO("blockio.Sync", err)
	}
	return nil
}
