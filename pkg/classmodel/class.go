// Package classmodel implements spec.md §3 and §4.2: the class graph
// (ClassRef, Class, Field, Method, VirtualTable, InterfaceMethodTable) and
// the operations that maintain it (resolve_virtual, resolve_static,
// initialise, lookup_method, sub_class_of, assignable_from/instance_of).
//
// Grounded on the teacher's pkg/vm/classloader.go (parent-delegating
// loader with a name-keyed cache) and pkg/vm/vm.go's resolveMethod /
// isInstanceOf (_examples/daimatz-gojvm/pkg/vm/vm.go), generalised from
// "load-and-interpret-on-demand" to "resolve-through-a-lifecycle-state-
// machine, build a VT/IMT, and leave a Ready class for a compiler to
// consume".
package classmodel

import (
	"github.com/vmkit-go/vmkit/pkg/classreader"
	"github.com/vmkit-go/vmkit/pkg/typemodel"
)

// AccessFlags mirrors the guest-language access/attribute bits relevant
// to dispatch and initialisation (subset; full verification is a
// Non-goal per spec.md §1).
type AccessFlags uint16

const (
	AccPublic    AccessFlags = 0x0001
	AccStatic    AccessFlags = 0x0008
	AccFinal     AccessFlags = 0x0010
	AccInterface AccessFlags = 0x0200
	AccAbstract  AccessFlags = 0x0400
	AccNative    AccessFlags = 0x0100
)

func (f AccessFlags) Has(bit AccessFlags) bool { return f&bit != 0 }

// Field is spec.md §3's Field record.
type Field struct {
	Name       string
	Descriptor string
	Type       *typemodel.TypeDescriptor
	Access     AccessFlags
	SlotIndex  int
	Offset     int
	Class      *Class // owning class, back-pointer
	Static     bool
}

// Method is spec.md §3's Method record. VTOffset is meaningful only for
// non-static, non-private instance methods.
type Method struct {
	Name       string
	Descriptor string
	Sig        *typemodel.Signature
	Access     AccessFlags
	Class      *Class // owning class, back-pointer
	VTOffset   int    // -1 if not virtual
	Code       []byte // raw bytecode, consumed later by pkg/translator

	// ExceptionHandlers is the method's exception table, consumed by
	// pkg/translator's pre-pass to redirect exceptionBlock edges
	// (spec.md §4.3).
	ExceptionHandlers []classreader.ExceptionHandler

	// CodePtr is the materialised native entry point once the compiler
	// has produced one (spec.md §4.5). nil means "still a stub".
	CodePtr uintptr

	// Customizable flags a method eligible for N3-style runtime
	// specialisation (spec.md §9's Method record note); unused by J3.
	Customizable bool

	// Inlinable is set by Translator.Translate from the code length alone
	// (spec.md §4.3 Inlining policy); the translator does not inline.
	Inlinable bool
}

func (m *Method) IsStatic() bool   { return m.Access.Has(AccStatic) }
func (m *Method) IsAbstract() bool { return m.Access.Has(AccAbstract) }
func (m *Method) IsNative() bool   { return m.Access.Has(AccNative) }

// Class is spec.md §3's Class record.
type Class struct {
	Name        string
	Access      AccessFlags
	Super       *ClassRef
	Interfaces  []*ClassRef
	Loader      *Loader

	VirtualFields []*Field
	StaticFields  []*Field
	VirtualMethods []*Method
	StaticMethods  []*Method

	// ConstantPool is retained (not just consumed at load time) so
	// pkg/translator can resolve the symbolic class/field/method
	// references a method's bytecode indexes into, via
	// classreader.ResolveMethodref and friends.
	ConstantPool []classreader.ConstantPoolEntry

	// Native layout, assigned by resolve_virtual/resolve_static.
	InstanceSize  int
	Alignment     int
	StaticSize    int
	StaticStorage []byte

	VT *VirtualTable

	// Depth and Display implement Cohen's O(1) subtype test (spec.md §3,
	// §4.2's sub_class_of).
	Depth          int
	Display        []*Class
	SecondaryTypes []*Class

	self *ClassRef // the ref this Class resolves from, for convenience
}

func (c *Class) IsInterface() bool { return c.Access.Has(AccInterface) }

// Ref returns the ClassRef c was loaded from. The *ClassRef (not the
// *Class) satisfies typemodel.ClassRefResolver, so it is what appears
// inside a TypeDescriptor.
func (c *Class) Ref() *ClassRef { return c.self }

// FindDeclaredMethod returns a method declared directly on c (not
// inherited), or nil.
func (c *Class) FindDeclaredMethod(name, descriptor string) *Method {
	for _, m := range c.VirtualMethods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	for _, m := range c.StaticMethods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// FindDeclaredField returns a field declared directly on c, or nil.
func (c *Class) FindDeclaredField(name string) *Field {
	for _, f := range c.VirtualFields {
		if f.Name == name {
			return f
		}
	}
	for _, f := range c.StaticFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

const displayLen = 8 // Cohen's display length bound, per spec.md §4.2/§8.
