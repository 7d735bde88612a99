// Package iobuf provides little-endian primitive I/O over an in-memory
// byte buffer, plus helpers for packing and unpacking the fixed-size
// tagged section-header records used by the PE codec.
package iobuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
)

// ErrShortBuffer is returned when a read would run past the end of the
// underlying buffer.
var ErrShortBuffer = errors.New("iobuf: short buffer")

// Options is the struc packing configuration shared by every record in
// this module: everything on the wire is little-endian.
var Options = &struc.Options{Order: binary.LittleEndian}

// Pack serializes v (a struct with `struc` tags) to w in little-endian
// order.
func Pack(w io.Writer, v interface{}) error {
	if err := struc.PackWithOptions(w, v, Options); err != nil {
		return fmt.Errorf("iobuf: pack failed: %w", err)
	}

	return nil
}

// Unpack deserializes a little-endian record from r into v.
func Unpack(r io.Reader, v interface{}) error {
	if err := struc.UnpackWithOptions(r, v, Options); err != nil {
		return fmt.Errorf("iobuf: unpack failed: %w", err)
	}

	return nil
}

// Buffer is fixed-size random-access storage addressed by absolute byte
// offset, used for the early PE header and for in-place pointer patching
// inside a decoded `.rsrc` section.
type Buffer struct {
	data []byte
}

// Wrap returns a Buffer backed directly by data; writes through the
// Buffer mutate data in place.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the underlying storage.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the size of the underlying storage.
func (b *Buffer) Len() int {
	return len(b.data)
}

func (b *Buffer) require(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b.data) {
		return fmt.Errorf("%w: offset 0x%x length %d exceeds buffer of size 0x%x", ErrShortBuffer, off, n, len(b.data))
	}

	return nil
}

// U16 reads a little-endian uint16 at off.
func (b *Buffer) U16(off int) (uint16, error) {
	if err := b.require(off, 2); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b.data[off:]), nil
}

// U32 reads a little-endian uint32 at off.
func (b *Buffer) U32(off int) (uint32, error) {
	if err := b.require(off, 4); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

// U64 reads a little-endian uint64 at off.
func (b *Buffer) U64(off int) (uint64, error) {
	if err := b.require(off, 8); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b.data[off:]), nil
}

// Slice returns the n raw bytes at off.
func (b *Buffer) Slice(off, n int) ([]byte, error) {
	if err := b.require(off, n); err != nil {
		return nil, err
	}

	return b.data[off : off+n], nil
}

// SetU16 writes a little-endian uint16 at off.
func (b *Buffer) SetU16(off int, v uint16) error {
	if err := b.require(off, 2); err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(b.data[off:], v)

	return nil
}

// SetU32 writes a little-endian uint32 at off.
func (b *Buffer) SetU32(off int, v uint32) error {
	if err := b.require(off, 4); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b.data[off:], v)

	return nil
}

// AddU32 adds delta (which may be negative, expressed as an int64) to the
// uint32 stored at off, writing the result back. Used by the resource
// Shift pass to rebase pointers by a signed amount.
func (b *Buffer) AddU32(off int, delta int64) error {
	cur, err := b.U32(off)
	if err != nil {
		return err
	}

	return b.SetU32(off, uint32(int64(cur)+delta))
}

// Cursor is a sequential little-endian reader over a byte slice, used
// while walking the section table.
type Cursor struct {
	buf *Buffer
	pos int
}

// NewCursor creates a Cursor over data, starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{buf: Wrap(data)}
}

// Pos returns the current cursor offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) {
	c.pos += n
}

// ReadU16 reads a uint16 and advances the cursor.
func (c *Cursor) ReadU16() (uint16, error) {
	v, err := c.buf.U16(c.pos)
	if err != nil {
		return 0, err
	}

	c.pos += 2

	return v, nil
}

// ReadU32 reads a uint32 and advances the cursor.
func (c *Cursor) ReadU32() (uint32, error) {
	v, err := c.buf.U32(c.pos)
	if err != nil {
		return 0, err
	}

	c.pos += 4

	return v, nil
}

// ReadBytes reads n raw bytes and advances the cursor.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	b, err := c.buf.Slice(c.pos, n)
	if err != nil {
		return nil, err
	}

	c.pos += n

	return b, nil
}

// Remaining returns the number of bytes left before the end of the
// buffer.
func (c *Cursor) Remaining() int {
	return c.buf.Len() - c.pos
}
