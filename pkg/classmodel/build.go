package classmodel

import (
	"fmt"

	"github.com/vmkit-go/vmkit/pkg/classreader"
	"github.com/vmkit-go/vmkit/pkg/typemodel"
)

// newClassFromFile builds an unresolved Class (state Loaded) from a
// parsed classreader.ClassFile, resolving Super/Interfaces to ClassRef
// handles in the same loader. They are resolved later, at resolve_virtual
// time, through that same loader; Loader.Parent is not consulted, so no
// parent delegation takes place.
func newClassFromFile(l *Loader, self *ClassRef, cf *classreader.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("classmodel: reading this_class: %w", err)
	}

	c := &Class{
		Name:         name,
		Access:       AccessFlags(cf.AccessFlags),
		Loader:       l,
		self:         self,
		ConstantPool: cf.ConstantPool,
	}

	if superName := cf.SuperClassName(); superName != "" {
		c.Super = l.refFor(superName)
	}
	for _, ifaceIdx := range cf.Interfaces {
		ifaceName, err := classreader.GetClassName(cf.ConstantPool, ifaceIdx)
		if err != nil {
			return nil, fmt.Errorf("classmodel: resolving interface: %w", err)
		}
		c.Interfaces = append(c.Interfaces, l.refFor(ifaceName))
	}

	resolveDescr := func(typeName string) (typemodel.ClassRefResolver, error) {
		return l.refFor(typeName), nil
	}

	for _, fi := range cf.Fields {
		td, _, err := parseFieldType(fi.Descriptor, resolveDescr)
		if err != nil {
			return nil, fmt.Errorf("classmodel: field %s descriptor: %w", fi.Name, err)
		}
		f := &Field{
			Name:       fi.Name,
			Descriptor: fi.Descriptor,
			Type:       td,
			Access:     AccessFlags(fi.AccessFlags),
			Class:      c,
			Static:     AccessFlags(fi.AccessFlags).Has(AccStatic),
		}
		if f.Static {
			c.StaticFields = append(c.StaticFields, f)
		} else {
			c.VirtualFields = append(c.VirtualFields, f)
		}
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		sig, err := typemodel.ParseDescriptor(mi.Descriptor, resolveDescr)
		if err != nil {
			return nil, fmt.Errorf("classmodel: method %s descriptor: %w", mi.Name, err)
		}
		m := &Method{
			Name:       mi.Name,
			Descriptor: mi.Descriptor,
			Sig:        sig,
			Access:     AccessFlags(mi.AccessFlags),
			Class:      c,
			VTOffset:   -1,
		}
		if mi.Code != nil {
			m.Code = mi.Code.Code
			m.ExceptionHandlers = mi.Code.ExceptionHandlers
		}
		if m.IsStatic() || m.Name == "<init>" {
			c.StaticMethods = append(c.StaticMethods, m)
		} else {
			c.VirtualMethods = append(c.VirtualMethods, m)
		}
	}

	return c, nil
}

// parseFieldType parses a single field descriptor (not a full method
// signature) using typemodel's internal one-type parser via a signature
// wrapper, since typemodel only exports whole-signature parsing.
func parseFieldType(descriptor string, resolve typemodel.ClassResolver) (*typemodel.TypeDescriptor, string, error) {
	sig, err := typemodel.ParseDescriptor("("+descriptor+")V", resolve)
	if err != nil {
		return nil, "", err
	}
	if len(sig.Params) != 1 {
		return nil, "", fmt.Errorf("not a single field descriptor: %q", descriptor)
	}
	return sig.Params[0], "", nil
}
