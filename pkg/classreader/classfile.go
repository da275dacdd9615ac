package classreader

import "fmt"

const classMagic = 0xCAFEBABE

// Constant pool tags, adapted from the teacher's
// _examples/daimatz-gojvm/pkg/classfile/constant_pool.go (trimmed to the
// tags this reader actually resolves; invokedynamic/method-handle
// bootstrap machinery is a reflective-data concern spec.md's Non-goals
// place out of scope).
const (
	TagUtf8         = 1
	TagInteger      = 3
	TagFloat        = 4
	TagLong         = 5
	TagDouble       = 6
	TagClass        = 7
	TagString       = 8
	TagFieldref     = 9
	TagMethodref    = 10
	TagIfaceMethRef = 11
	TagNameAndType  = 12
)

// ConstantPoolEntry is implemented by every constant pool value.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct{ ClassIndex, NameAndTypeIndex uint16 }

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagIfaceMethRef }

type ConstantNameAndType struct{ NameIndex, DescriptorIndex uint16 }

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// ExceptionHandler is one entry of a Code attribute's exception table, per
// spec.md §4.3's "[try_start, try_end), handler entry, catch-type (or
// finally marker)".
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC uint16
	CatchType                 uint16 // 0 means finally / catch-all
}

// CodeAttribute is a method's bytecode plus its exception table, adapted
// from the teacher's classfile.CodeAttribute
// (_examples/daimatz-gojvm/pkg/classfile/types.go), extended with the
// exception table the teacher's minimal reader never parsed (the teacher
// VM never ran try/catch).
type CodeAttribute struct {
	MaxStack, MaxLocals uint16
	Code                []byte
	ExceptionHandlers   []ExceptionHandler
}

type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute
}

type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// ClassFile is the parsed, opaque input handed to classmodel. Field names
// follow the teacher's classfile.ClassFile.
type ClassFile struct {
	MinorVersion, MajorVersion uint16
	ConstantPool               []ConstantPoolEntry
	AccessFlags                uint16
	ThisClass, SuperClass      uint16
	Interfaces                 []uint16
	Fields                     []FieldInfo
	Methods                    []MethodInfo
}

// Parse reads a .class file from c. Errors are wrapped with %w at each
// step, matching the teacher's parser.go style — this package never
// reaches for github.com/pkg/errors because every wrap here is a single,
// local frame, exactly the case the teacher reserves fmt.Errorf for.
func Parse(c Cursor) (*ClassFile, error) {
	magic, err := c.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("classreader: reading magic: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("classreader: invalid magic 0x%X", magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("classreader: reading minor version: %w", err)
	}
	if cf.MajorVersion, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("classreader: reading major version: %w", err)
	}

	cpCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("classreader: reading constant pool count: %w", err)
	}
	if cf.ConstantPool, err = parseConstantPool(c, cpCount); err != nil {
		return nil, fmt.Errorf("classreader: parsing constant pool: %w", err)
	}

	if cf.AccessFlags, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("classreader: reading access flags: %w", err)
	}
	if cf.ThisClass, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("classreader: reading this_class: %w", err)
	}
	if cf.SuperClass, err = c.ReadU2(); err != nil {
		return nil, fmt.Errorf("classreader: reading super_class: %w", err)
	}

	ifaceCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("classreader: reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, ifaceCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = c.ReadU2(); err != nil {
			return nil, fmt.Errorf("classreader: reading interface %d: %w", i, err)
		}
	}

	fieldCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("classreader: reading fields count: %w", err)
	}
	if cf.Fields, err = parseFields(c, cf.ConstantPool, fieldCount); err != nil {
		return nil, fmt.Errorf("classreader: parsing fields: %w", err)
	}

	methodCount, err := c.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("classreader: reading methods count: %w", err)
	}
	if cf.Methods, err = parseMethods(c, cf.ConstantPool, methodCount); err != nil {
		return nil, fmt.Errorf("classreader: parsing methods: %w", err)
	}

	if err := skipAttributes(c); err != nil {
		return nil, fmt.Errorf("classreader: skipping class attributes: %w", err)
	}

	return cf, nil
}

func parseConstantPool(c Cursor, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)
	for i := uint16(1); i < count; i++ {
		tag, err := c.ReadU1()
		if err != nil {
			return nil, fmt.Errorf("reading tag at index %d: %w", i, err)
		}
		switch tag {
		case TagUtf8:
			n, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			b, err := c.ReadBytes(int(n))
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantUtf8{Value: string(b)}
		case TagInteger:
			v, err := c.ReadU4()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantInteger{Value: int32(v)}
		case TagFloat:
			v, err := c.ReadU4()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantFloat{Value: float32FromBits(v)}
		case TagLong:
			v, err := c.ReadU8()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantLong{Value: int64(v)}
			i++ // 8-byte constants occupy two pool slots
		case TagDouble:
			v, err := c.ReadU8()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantDouble{Value: float64FromBits(v)}
			i++
		case TagClass:
			v, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantClass{NameIndex: v}
		case TagString:
			v, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantString{StringIndex: v}
		case TagFieldref:
			ci, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			nt, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantFieldref{ClassIndex: ci, NameAndTypeIndex: nt}
		case TagMethodref:
			ci, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			nt, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantMethodref{ClassIndex: ci, NameAndTypeIndex: nt}
		case TagIfaceMethRef:
			ci, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			nt, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: ci, NameAndTypeIndex: nt}
		case TagNameAndType:
			ni, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			di, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			pool[i] = &ConstantNameAndType{NameIndex: ni, DescriptorIndex: di}
		default:
			return nil, fmt.Errorf("unsupported constant pool tag %d at index %d", tag, i)
		}
	}
	return pool, nil
}

func parseFields(c Cursor, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	out := make([]FieldInfo, count)
	for i := range out {
		accessFlags, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		descIdx, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIdx)
		if err != nil {
			return nil, err
		}
		desc, err := GetUtf8(pool, descIdx)
		if err != nil {
			return nil, err
		}
		if err := skipAttributes(c); err != nil {
			return nil, err
		}
		out[i] = FieldInfo{AccessFlags: accessFlags, Name: name, Descriptor: desc}
	}
	return out, nil
}

func parseMethods(c Cursor, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	out := make([]MethodInfo, count)
	for i := range out {
		accessFlags, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		descIdx, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIdx)
		if err != nil {
			return nil, err
		}
		desc, err := GetUtf8(pool, descIdx)
		if err != nil {
			return nil, err
		}

		attrCount, err := c.ReadU2()
		if err != nil {
			return nil, err
		}
		var code *CodeAttribute
		for a := uint16(0); a < attrCount; a++ {
			attrNameIdx, err := c.ReadU2()
			if err != nil {
				return nil, err
			}
			attrLen, err := c.ReadU4()
			if err != nil {
				return nil, err
			}
			attrName, err := GetUtf8(pool, attrNameIdx)
			if err != nil {
				return nil, err
			}
			if attrName == "Code" {
				code, err = parseCodeAttribute(c)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute of %s%s: %w", name, desc, err)
				}
				continue
			}
			if err := skipN(c, int64(attrLen)); err != nil {
				return nil, err
			}
		}

		out[i] = MethodInfo{AccessFlags: accessFlags, Name: name, Descriptor: desc, Code: code}
	}
	return out, nil
}

func parseCodeAttribute(c Cursor) (*CodeAttribute, error) {
	ca := &CodeAttribute{}
	var err error
	if ca.MaxStack, err = c.ReadU2(); err != nil {
		return nil, err
	}
	if ca.MaxLocals, err = c.ReadU2(); err != nil {
		return nil, err
	}
	codeLen, err := c.ReadU4()
	if err != nil {
		return nil, err
	}
	if ca.Code, err = c.ReadBytes(int(codeLen)); err != nil {
		return nil, err
	}

	excCount, err := c.ReadU2()
	if err != nil {
		return nil, err
	}
	ca.ExceptionHandlers = make([]ExceptionHandler, excCount)
	for i := range ca.ExceptionHandlers {
		h := &ca.ExceptionHandlers[i]
		if h.StartPC, err = c.ReadU2(); err != nil {
			return nil, err
		}
		if h.EndPC, err = c.ReadU2(); err != nil {
			return nil, err
		}
		if h.HandlerPC, err = c.ReadU2(); err != nil {
			return nil, err
		}
		if h.CatchType, err = c.ReadU2(); err != nil {
			return nil, err
		}
	}

	// Code attributes carry their own nested attributes (LineNumberTable,
	// etc). Skip them; PC-to-line mapping belongs to the compiler's own
	// bookkeeping (spec.md §4.5), not to this opaque reader.
	if err := skipAttributes(c); err != nil {
		return nil, err
	}
	return ca, nil
}

func skipAttributes(c Cursor) error {
	count, err := c.ReadU2()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if _, err := c.ReadU2(); err != nil { // name index
			return err
		}
		length, err := c.ReadU4()
		if err != nil {
			return err
		}
		if err := skipN(c, int64(length)); err != nil {
			return err
		}
	}
	return nil
}

func skipN(c Cursor, n int64) error {
	if n == 0 {
		return nil
	}
	_, err := c.ReadBytes(int(n))
	return err
}

// GetUtf8 resolves a UTF-8 constant pool index to its string value.
func GetUtf8(pool []ConstantPoolEntry, idx uint16) (string, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return "", fmt.Errorf("classreader: invalid constant pool index %d", idx)
	}
	u, ok := pool[idx].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("classreader: constant pool index %d is not Utf8", idx)
	}
	return u.Value, nil
}

// GetClassName resolves a Class constant's index to its name.
func GetClassName(pool []ConstantPoolEntry, idx uint16) (string, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return "", fmt.Errorf("classreader: invalid constant pool index %d", idx)
	}
	cls, ok := pool[idx].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("classreader: constant pool index %d is not Class", idx)
	}
	return GetUtf8(pool, cls.NameIndex)
}

// ClassName returns the class's own fully-qualified name.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName returns the superclass name, or "" for java/lang/Object.
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// FindMethod looks up a declared method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// MemberRef is a resolved field/method reference (spec.md §3's Fieldref /
// Methodref constants), adapted from the teacher's
// classfile.ResolveFieldref/ResolveMethodref.
type MemberRef struct {
	ClassName  string
	MemberName string
	Descriptor string
}

// ResolveFieldref resolves a Fieldref constant pool entry.
func ResolveFieldref(pool []ConstantPoolEntry, idx uint16) (*MemberRef, error) {
	return resolveMemberRef(pool, idx, TagFieldref)
}

// ResolveMethodref resolves a Methodref constant pool entry.
func ResolveMethodref(pool []ConstantPoolEntry, idx uint16) (*MemberRef, error) {
	return resolveMemberRef(pool, idx, TagMethodref)
}

// ResolveInterfaceMethodref resolves an InterfaceMethodref constant pool entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, idx uint16) (*MemberRef, error) {
	return resolveMemberRef(pool, idx, TagIfaceMethRef)
}

func resolveMemberRef(pool []ConstantPoolEntry, idx uint16, wantTag uint8) (*MemberRef, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return nil, fmt.Errorf("classreader: invalid constant pool index %d", idx)
	}
	var classIdx, natIdx uint16
	switch e := pool[idx].(type) {
	case *ConstantFieldref:
		if wantTag != TagFieldref {
			return nil, fmt.Errorf("classreader: index %d is a Fieldref, not tag %d", idx, wantTag)
		}
		classIdx, natIdx = e.ClassIndex, e.NameAndTypeIndex
	case *ConstantMethodref:
		if wantTag != TagMethodref {
			return nil, fmt.Errorf("classreader: index %d is a Methodref, not tag %d", idx, wantTag)
		}
		classIdx, natIdx = e.ClassIndex, e.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		if wantTag != TagIfaceMethRef {
			return nil, fmt.Errorf("classreader: index %d is an InterfaceMethodref, not tag %d", idx, wantTag)
		}
		classIdx, natIdx = e.ClassIndex, e.NameAndTypeIndex
	default:
		return nil, fmt.Errorf("classreader: index %d is not a member reference", idx)
	}

	className, err := GetClassName(pool, classIdx)
	if err != nil {
		return nil, err
	}
	nat, ok := pool[natIdx].(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("classreader: index %d NameAndType is invalid", natIdx)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, err
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRef{ClassName: className, MemberName: name, Descriptor: desc}, nil
}
