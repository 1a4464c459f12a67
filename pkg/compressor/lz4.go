package compressor

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/gerald-lindsly/nub/pkg/nuberr"
)

// LZ4 implements Compressor with github.com/pierrec/lz4/v4, standing in
// for the original LZO1X codec: both are byte-oriented, dictionary-free
// compressors suited to small, independently-framed blobs, and neither
// needs a shared dictionary across calls.
//
// scratch, when non-nil, is a workspace buffer reused across Compress
// calls instead of being allocated fresh each time -- see
// AcquireWorkspace/ReleaseWorkspace, the analogue of the source's
// preCompress/postCompress wrkmem lifecycle.
type LZ4 struct {
	// Level selects the compression/ratio tradeoff; zero uses the
	// library's default (fast) mode, matching the non-X999 build
	// configuration of the original.
	Level lz4.CompressionLevel

	scratch *bytes.Buffer
}

// AcquireWorkspace preallocates the scratch buffer a batch of Compress
// calls can then reuse, amortizing the allocation across the batch.
func (c *LZ4) AcquireWorkspace() {
	if c.scratch == nil {
		c.scratch = new(bytes.Buffer)
	}
}

// ReleaseWorkspace drops the scratch buffer; subsequent Compress calls
// fall back to allocating their own.
func (c *LZ4) ReleaseWorkspace() {
	c.scratch = nil
}

func (c *LZ4) Compress(in []byte) ([]byte, error) {
	buf := c.scratch
	if buf == nil {
		buf = new(bytes.Buffer)
	} else {
		buf.Reset()
	}
	w := lz4.NewWriter(buf)
	if c.Level != 0 {
		if err := w.Apply(lz4.CompressionLevelOption(c.Level)); err != nil {
			return nil, nuberr.IO("lz4.Compress", err)
		}
	}
	if _, err := w.Write(in); err != nil {
		return nil, nuberr.IO("lz4.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, nuberr.IO("lz4.Compress", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (c *LZ4) Decompress(in []byte, expectedLen int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	out := make([]byte, expectedLen)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, nuberr.IO("lz4.Decompress", err)
	}
	if n == expectedLen {
		// Output continuing past expectedLen is a mismatch too.
		if extra, _ := r.Read(make([]byte, 1)); extra > 0 {
			n += extra
		}
	}
	if n != expectedLen {
		return nil, nuberr.New(nuberr.KindRuntime, "lz4.Decompress", "decompressed length does not match blob header")
	}
	return out, nil
}
