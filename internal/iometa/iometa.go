// Package iometa provides small io.Writer/io.Reader helpers used while
// streaming an emitted image: a byte counter for tracking the current
// output position, and a zero-fill reader for padding gaps between
// sections.
package iometa

import (
	"errors"
	"fmt"
	"io"
)

var errInvalidWhence = errors.New("invalid whence argument")

// CountingWriter wraps a Writer, tracking the total number of bytes
// written through it.
type CountingWriter struct {
	Writer       io.Writer
	bytesWritten int
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	written, err := c.Writer.Write(p)
	c.bytesWritten += written

	return written, err
}

// BytesWritten returns the running total of bytes written through c.
func (c *CountingWriter) BytesWritten() int {
	return c.bytesWritten
}

// ZeroReader produces Size zero bytes and then io.EOF.
type ZeroReader struct {
	Size int

	offset int
}

func (r *ZeroReader) Read(buff []byte) (int, error) {
	bytesToWrite := min(len(buff), r.Size-r.offset)

	for i := 0; i < bytesToWrite; i++ {
		buff[i] = 0
	}

	r.offset += bytesToWrite

	if r.offset == r.Size {
		return bytesToWrite, io.EOF
	}

	return bytesToWrite, nil
}

func (r *ZeroReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		r.offset += int(offset)
	case io.SeekEnd:
		r.offset = r.Size
	case io.SeekStart:
		r.offset = int(offset)
	default:
		return -1, errInvalidWhence
	}

	return int64(r.offset), nil
}

// WriteZeros writes count zero bytes to w.
func WriteZeros(w io.Writer, count int) error {
	r := &ZeroReader{Size: count}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to write zeros: %w", err)
	}

	return nil
}
