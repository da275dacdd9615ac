// Package classreader is the "external reader" collaborator of spec.md
// §6: class-file (J3) and PE/CLI (N3) input are explicitly out of the
// hard core, consumed as opaque blobs through a cursor API
// (read_u1/u2/u4/u8, seek). This package is kept intentionally thin —
// just enough of a .class reader to hand ByteCode buffers to classmodel —
// because byte-exact class-file/PE-CLI parsing is a reader-utility
// concern the spec places outside this repository's scope.
//
// Grounded on the teacher's pkg/classfile
// (_examples/daimatz-gojvm/pkg/classfile/parser.go), generalised from a
// single io.Reader-consuming Parse function into a reusable Cursor any
// future PE/CLI reader could also implement.
package classreader

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cursor is the minimal read interface spec.md §6 says the core may rely
// on from a class-file or PE/CLI reader.
type Cursor interface {
	ReadU1() (uint8, error)
	ReadU2() (uint16, error)
	ReadU4() (uint32, error)
	ReadU8() (uint64, error)
	ReadBytes(n int) ([]byte, error)
	Seek(offset int64) error
	Pos() int64
}

// byteCursor is a Cursor over an in-memory buffer, the common case for
// both a parsed .class file and a PE/CLI image section.
type byteCursor struct {
	buf []byte
	pos int64
}

// NewCursor wraps buf in a Cursor.
func NewCursor(buf []byte) Cursor {
	return &byteCursor{buf: buf}
}

// NewCursorFromReader drains r fully and wraps the result in a Cursor.
func NewCursorFromReader(r io.Reader) (Cursor, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("classreader: reading input: %w", err)
	}
	return NewCursor(buf), nil
}

func (c *byteCursor) need(n int) error {
	if c.pos < 0 || c.pos+int64(n) > int64(len(c.buf)) {
		return fmt.Errorf("classreader: read past end of buffer at offset %d (want %d bytes, have %d)", c.pos, n, len(c.buf)-int(c.pos))
	}
	return nil
}

func (c *byteCursor) ReadU1() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *byteCursor) ReadU2() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *byteCursor) ReadU4() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *byteCursor) ReadU8() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *byteCursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.pos:c.pos+int64(n)])
	c.pos += int64(n)
	return out, nil
}

func (c *byteCursor) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return fmt.Errorf("classreader: seek to invalid offset %d (buffer length %d)", offset, len(c.buf))
	}
	c.pos = offset
	return nil
}

func (c *byteCursor) Pos() int64 { return c.pos }
