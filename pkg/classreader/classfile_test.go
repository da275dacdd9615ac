package classreader

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// writeClassFixture builds a minimal valid .class byte stream with one
// method "m:()V" containing a single `return` instruction and an empty
// exception table, enough to exercise Parse end-to-end without a real
// compiler (grounded on the teacher's parser_test.go fixture style:
// _examples/daimatz-gojvm/pkg/classfile/parser_test.go).
func writeClassFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(vs ...interface{}) {
		for _, v := range vs {
			if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}
		}
	}

	w(uint32(classMagic))
	w(uint16(0), uint16(61)) // minor, major

	// Constant pool: 1=Utf8("Code") 2=Utf8("Foo") 3=Class(Foo) 4=Utf8("m") 5=Utf8("()V")
	w(uint16(6)) // count = entries+1
	w(uint8(TagUtf8), uint16(4))
	buf.WriteString("Code")
	w(uint8(TagUtf8), uint16(3))
	buf.WriteString("Foo")
	w(uint8(TagClass), uint16(2))
	w(uint8(TagUtf8), uint16(1))
	buf.WriteString("m")
	w(uint8(TagUtf8), uint16(3))
	buf.WriteString("()V")

	w(uint16(0x0021))      // access flags
	w(uint16(3), uint16(0)) // this_class=3, super_class=0
	w(uint16(0))            // interfaces count
	w(uint16(0))            // fields count

	w(uint16(1)) // methods count
	w(uint16(0x0001), uint16(4), uint16(5))
	w(uint16(1)) // attributes count (Code)
	w(uint16(1)) // attribute_name_index -> "Code"
	codeBody := []byte{0xB1}
	var codeBuf bytes.Buffer
	binary.Write(&codeBuf, binary.BigEndian, uint16(1)) // max stack
	binary.Write(&codeBuf, binary.BigEndian, uint16(1)) // max locals
	binary.Write(&codeBuf, binary.BigEndian, uint32(len(codeBody)))
	codeBuf.Write(codeBody)
	binary.Write(&codeBuf, binary.BigEndian, uint16(0)) // exception table count
	binary.Write(&codeBuf, binary.BigEndian, uint16(0)) // nested attributes count
	w(uint32(codeBuf.Len()))
	buf.Write(codeBuf.Bytes())

	w(uint16(0)) // class attributes count
	return buf.Bytes()
}

func TestParseClassFixture(t *testing.T) {
	cf, err := Parse(NewCursor(writeClassFixture(t)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	name, err := cf.ClassName()
	if err != nil || name != "Foo" {
		t.Fatalf("ClassName() = %q, %v; want Foo, nil", name, err)
	}
	if cf.SuperClassName() != "" {
		t.Fatalf("SuperClassName() = %q; want empty", cf.SuperClassName())
	}

	m := cf.FindMethod("m", "()V")
	if m == nil {
		t.Fatal("FindMethod(m, ()V) = nil")
	}
	if m.Code == nil || len(m.Code.Code) != 1 || m.Code.Code[0] != 0xB1 {
		t.Fatalf("method code = %+v; want single return opcode", m.Code)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	if _, err := Parse(NewCursor([]byte{0, 0, 0, 0})); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestCursorBoundsChecked(t *testing.T) {
	c := NewCursor([]byte{1, 2})
	if _, err := c.ReadU4(); err == nil {
		t.Fatal("expected out-of-bounds ReadU4 to fail")
	}
	if err := c.Seek(100); err == nil {
		t.Fatal("expected out-of-bounds Seek to fail")
	}
}
