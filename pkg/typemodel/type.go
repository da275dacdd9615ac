// Package typemodel implements spec.md §3's TypeDescriptor and the
// primitive/reference/array/pointer canonical names of §4.1's TypeModel.
//
// Grounded on the teacher's classfile descriptor strings
// (_examples/daimatz-gojvm/pkg/classfile, consumed via field/method
// Descriptor strings) generalised from "a string to be parsed ad hoc at
// each use site" into a parsed, structurally-comparable value.
package typemodel

import "fmt"

// Kind tags the variant of a TypeDescriptor (spec.md §3).
type Kind int

const (
	KindPrimitive Kind = iota
	KindReference
	KindArray
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	case KindPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Primitive enumerates the guest scalar kinds named in spec.md §4.1.
type Primitive int

const (
	Bool Primitive = iota
	Byte
	Short
	Char
	Int
	Long
	Float
	Double
	Void
)

// primitiveInfo is the per-primitive native-scalar / log-size table of
// spec.md §4.1: "bool/byte=0, short/char=1, int/float=2, long/double=3".
type primitiveInfo struct {
	name    string
	logSize uint8
}

var primitiveTable = map[Primitive]primitiveInfo{
	Bool:   {"boolean", 0},
	Byte:   {"byte", 0},
	Short:  {"short", 1},
	Char:   {"char", 1},
	Int:    {"int", 2},
	Float:  {"float", 2},
	Long:   {"long", 3},
	Double: {"double", 3},
	Void:   {"void", 0},
}

// LogSize returns the primitive's log2 size in bytes, per spec.md §4.1.
func (p Primitive) LogSize() uint8 { return primitiveTable[p].logSize }

// Size returns the primitive's size in bytes (1 << LogSize), 0 for void.
func (p Primitive) Size() int {
	if p == Void {
		return 0
	}
	return 1 << p.LogSize()
}

func (p Primitive) String() string { return primitiveTable[p].name }

// ClassRefResolver is the minimal capability TypeDescriptor needs from a
// class graph to report the size/alignment of a Reference descriptor.
// classmodel.ClassRef satisfies this; kept here (rather than importing
// classmodel) to avoid a dependency cycle, per the teacher's preference
// for small, leaf-level packages (pkg/classfile never imports pkg/vm).
type ClassRefResolver interface {
	Name() string
}

// WordSizeLog is log2(pointer size); assumed 3 (64-bit) throughout, per
// the open question in spec.md §9 about the thin-lock bit layout on
// non-LP64 targets — this module does not attempt to support those.
const WordSizeLog = 3

// TypeDescriptor is the tagged variant of spec.md §3. Equality is
// structural: two descriptors of the same Kind with equal fields are
// Equal, regardless of identity.
type TypeDescriptor struct {
	Kind Kind

	// KindPrimitive
	Prim Primitive

	// KindReference
	Class ClassRefResolver

	// KindArray
	Dims int
	Base *TypeDescriptor

	// KindPointer
	Pointee *TypeDescriptor
}

// NewPrimitive builds a Primitive(kind) descriptor.
func NewPrimitive(p Primitive) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindPrimitive, Prim: p}
}

// NewReference builds a Reference(ClassRef) descriptor.
func NewReference(c ClassRefResolver) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindReference, Class: c}
}

// NewArray builds an Array(dims, base) descriptor.
func NewArray(dims int, base *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindArray, Dims: dims, Base: base}
}

// NewPointer builds a Pointer(base) descriptor.
func NewPointer(base *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindPointer, Pointee: base}
}

// LogSize returns the log2 size in bytes used for element-stride
// computation: primitives per the table, references/pointers/arrays at
// WordSizeLog (spec.md §4.1: "reference = word-size-log").
func (t *TypeDescriptor) LogSize() uint8 {
	switch t.Kind {
	case KindPrimitive:
		return t.Prim.LogSize()
	default:
		return WordSizeLog
	}
}

// Size returns 1 << LogSize, except for a primitive Void (size 0).
func (t *TypeDescriptor) Size() int {
	if t.Kind == KindPrimitive && t.Prim == Void {
		return 0
	}
	return 1 << t.LogSize()
}

// Equal implements the structural equality of spec.md §3.
func (t *TypeDescriptor) Equal(o *TypeDescriptor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Prim == o.Prim
	case KindReference:
		if t.Class == nil || o.Class == nil {
			return t.Class == o.Class
		}
		return t.Class.Name() == o.Class.Name()
	case KindArray:
		return t.Dims == o.Dims && t.Base.Equal(o.Base)
	case KindPointer:
		return t.Pointee.Equal(o.Pointee)
	}
	return false
}

func (t *TypeDescriptor) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Prim.String()
	case KindReference:
		if t.Class == nil {
			return "reference(?)"
		}
		return fmt.Sprintf("reference(%s)", t.Class.Name())
	case KindArray:
		return fmt.Sprintf("array(%d,%s)", t.Dims, t.Base)
	case KindPointer:
		return fmt.Sprintf("pointer(%s)", t.Pointee)
	}
	return "?"
}

// IsReference reports whether the descriptor denotes a GC-traced slot
// (Reference or Array of references), used by the translator to decide
// whether a local/stack slot needs a GC-root declaration (spec.md §6).
func (t *TypeDescriptor) IsReference() bool {
	switch t.Kind {
	case KindReference:
		return true
	case KindArray:
		return t.Base.Kind != KindPrimitive
	default:
		return false
	}
}
