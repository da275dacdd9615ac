package classmodel

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/vmkit-go/vmkit/pkg/classreader"
)

// fixtureField/fixtureMethod/classFixture let tests build a minimal
// in-memory .class byte stream without a real compiler front end,
// grounded on the teacher's parser_test.go fixture style
// (_examples/daimatz-gojvm/pkg/classfile/parser_test.go).
type fixtureField struct {
	name, descriptor string
	static           bool
}

type fixtureMethod struct {
	name, descriptor string
	static, abstract bool
	code             []byte
}

type classFixture struct {
	name, super string
	iface       bool // written with ACC_INTERFACE|ACC_ABSTRACT instead of ACC_SUPER
	interfaces  []string
	fields      []fixtureField
	methods     []fixtureMethod
}

type poolEntry struct {
	tag  uint8
	a    uint16
	utf8 string
}

func addUtf8(pool *[]poolEntry, s string) uint16 {
	for i, e := range *pool {
		if e.tag == classreader.TagUtf8 && e.utf8 == s {
			return uint16(i + 1)
		}
	}
	*pool = append(*pool, poolEntry{tag: classreader.TagUtf8, utf8: s})
	return uint16(len(*pool))
}

func buildClassBytes(t *testing.T, f classFixture) []byte {
	t.Helper()

	var pool []poolEntry
	classIndex := map[string]uint16{}
	classRef := func(name string) uint16 {
		if idx, ok := classIndex[name]; ok {
			return idx
		}
		nameIdx := addUtf8(&pool, name)
		pool = append(pool, poolEntry{tag: classreader.TagClass, a: nameIdx})
		idx := uint16(len(pool))
		classIndex[name] = idx
		return idx
	}

	thisIdx := classRef(f.name)
	var superIdx uint16
	if f.super != "" {
		superIdx = classRef(f.super)
	}
	var ifaceIdxs []uint16
	for _, ifn := range f.interfaces {
		ifaceIdxs = append(ifaceIdxs, classRef(ifn))
	}

	codeUtf8 := addUtf8(&pool, "Code")

	type builtField struct {
		access           uint16
		nameIdx, descIdx uint16
	}
	var builtFields []builtField
	for _, fld := range f.fields {
		access := uint16(0)
		if fld.static {
			access |= uint16(AccStatic)
		}
		builtFields = append(builtFields, builtField{
			access:  access,
			nameIdx: addUtf8(&pool, fld.name),
			descIdx: addUtf8(&pool, fld.descriptor),
		})
	}

	type builtMethod struct {
		access           uint16
		nameIdx, descIdx uint16
		code             []byte
		hasCode          bool
	}
	var builtMethods []builtMethod
	for _, m := range f.methods {
		access := uint16(0)
		if m.static {
			access |= uint16(AccStatic)
		}
		if m.abstract {
			access |= uint16(AccAbstract)
		}
		bm := builtMethod{
			access:  access,
			nameIdx: addUtf8(&pool, m.name),
			descIdx: addUtf8(&pool, m.descriptor),
		}
		if !m.abstract {
			bm.hasCode = true
			bm.code = m.code
			if bm.code == nil {
				bm.code = []byte{0xB1} // return
			}
		}
		builtMethods = append(builtMethods, bm)
	}

	var buf bytes.Buffer
	w := func(vs ...interface{}) {
		for _, v := range vs {
			if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
				t.Fatalf("fixture encode: %v", err)
			}
		}
	}

	w(uint32(0xCAFEBABE), uint16(0), uint16(61))
	w(uint16(len(pool) + 1))
	for _, e := range pool {
		switch e.tag {
		case classreader.TagUtf8:
			w(uint8(classreader.TagUtf8), uint16(len(e.utf8)))
			buf.WriteString(e.utf8)
		case classreader.TagClass:
			w(uint8(classreader.TagClass), e.a)
		}
	}

	if f.iface {
		w(uint16(AccPublic | AccInterface | AccAbstract))
	} else {
		w(uint16(0x0021)) // ACC_PUBLIC | ACC_SUPER
	}
	w(thisIdx, superIdx)

	w(uint16(len(ifaceIdxs)))
	for _, ii := range ifaceIdxs {
		w(ii)
	}

	w(uint16(len(builtFields)))
	for _, bf := range builtFields {
		w(bf.access, bf.nameIdx, bf.descIdx, uint16(0))
	}

	w(uint16(len(builtMethods)))
	for _, bm := range builtMethods {
		w(bm.access, bm.nameIdx, bm.descIdx)
		if bm.hasCode {
			w(uint16(1), codeUtf8)
			var codeBuf bytes.Buffer
			binary.Write(&codeBuf, binary.BigEndian, uint16(4))
			binary.Write(&codeBuf, binary.BigEndian, uint16(4))
			binary.Write(&codeBuf, binary.BigEndian, uint32(len(bm.code)))
			codeBuf.Write(bm.code)
			binary.Write(&codeBuf, binary.BigEndian, uint16(0))
			binary.Write(&codeBuf, binary.BigEndian, uint16(0))
			w(uint32(codeBuf.Len()))
			buf.Write(codeBuf.Bytes())
		} else {
			w(uint16(0))
		}
	}

	w(uint16(0))
	return buf.Bytes()
}
