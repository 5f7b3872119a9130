package compute

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// float32Size is the byte width of one pixel component.
const float32Size = 4

// Buffer is a device-visible region backed by a host float slice. For inputs
// the host slice must not change until the dispatch reading it has
// completed; for the output it must not be read before ReadBack returns.
type Buffer struct {
	native   NativeBuffer
	access   Access
	host     []float32
	released bool
}

// Len is the number of float components in the buffer.
func (b *Buffer) Len() int { return len(b.host) }

// ByteLen is the buffer size in bytes.
func (b *Buffer) ByteLen() int { return len(b.host) * float32Size }

func (b *Buffer) Access() Access { return b.access }

// Host returns the host slice backing the buffer.
func (b *Buffer) Host() []float32 { return b.host }

func (b *Buffer) release() {
	if b.released {
		return
	}
	b.native.Release()
	b.released = true
}

// UploadReadOnly makes host visible to kernels as a read-only input. The
// returned buffer aliases host when the driver supports it.
func (c *Context) UploadReadOnly(host []float32) (*Buffer, error) {
	if len(host) == 0 {
		return nil, &ArgumentError{Msg: "cannot upload an empty pixel buffer"}
	}
	return c.createBuffer(ReadOnly, host)
}

// CreateWriteOnlyOutput allocates a host slice of byteLength bytes and a
// write-only device buffer backed by it. byteLength must be a positive
// multiple of the float size.
func (c *Context) CreateWriteOnlyOutput(byteLength int) (*Buffer, []float32, error) {
	if byteLength <= 0 || byteLength%float32Size != 0 {
		return nil, nil, &ArgumentError{Msg: fmt.Sprintf("output length %d is not a positive multiple of %d bytes", byteLength, float32Size)}
	}
	host := make([]float32, byteLength/float32Size)
	b, err := c.createBuffer(WriteOnly, host)
	if err != nil {
		return nil, nil, err
	}
	return b, host, nil
}

func (c *Context) createBuffer(access Access, host []float32) (*Buffer, error) {
	if err := c.checkOpen("create buffer"); err != nil {
		return nil, err
	}
	nb, err := c.native.CreateBuffer(access, host)
	if err != nil {
		return nil, backendError("create buffer", err)
	}
	if got, want := nb.Size(), len(host)*float32Size; got != want {
		nb.Release()
		return nil, &BackendError{Op: "create buffer", Code: StatusInvalidBufferSize, Err: fmt.Errorf("driver allocated %d bytes, want %d", got, want)}
	}
	b := &Buffer{native: nb, access: access, host: host}
	c.own(b)
	c.log.WithFields(logrus.Fields{
		"access": access.String(),
		"bytes":  humanize.Bytes(uint64(b.ByteLen())),
	}).Debug("buffer created")
	return b, nil
}
