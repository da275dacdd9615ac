package classmodel

import "fmt"

// ObjectHeaderSize is spec.md §3's two-word object header (VT pointer +
// lock word), word size 8 (this module targets LP64 only, per the open
// question in spec.md §9).
const ObjectHeaderSize = 16

// resolveVirtual implements spec.md §4.2's resolve_virtual(C): computes
// C's instance layout (inherited fields first), builds its VT by copying
// the parent VT and overriding by name+descriptor, constructs the IMT,
// and computes depth/display from the superclass chain.
//
// Grounded on the teacher's resolveMethod walk
// (_examples/daimatz-gojvm/pkg/vm/vm.go): "Walk superclass chain" /
// "Walk superclass chain again, searching interfaces", generalised from a
// per-call lookup into a one-time layout computation that later lookups
// read off the VT directly.
func resolveVirtual(c *Class) error {
	var parent *Class
	if c.Super != nil {
		p, err := c.Super.loader.resolveRef(c.Super)
		if err != nil {
			return fmt.Errorf("resolving superclass %s of %s: %w", c.Super.name, c.Name, err)
		}
		parent = p
	}

	// Instance layout: inherited fields first (spec.md §8 invariant 1).
	offset := ObjectHeaderSize
	var display []*Class
	var secondary []*Class
	var baseVT *VirtualTable
	var inheritedMethods []*Method

	if parent != nil {
		offset = parent.InstanceSize
		display = append(display, parent.Display...)
		secondary = append(secondary, parent.SecondaryTypes...)
		baseVT = parent.VT
		if parent.VT != nil {
			inheritedMethods = append(inheritedMethods, parent.VT.Methods...)
		}
	}

	for _, f := range c.VirtualFields {
		size := f.Type.Size()
		if size == 0 {
			size = 1
		}
		offset = alignUp(offset, size)
		f.Offset = offset
		f.SlotIndex = len(c.VirtualFields)
		offset += size
	}
	c.InstanceSize = offset
	c.Alignment = 8

	// VT: override inherited slots by (name, descriptor); append new
	// virtual methods that don't override anything.
	methods := append([]*Method(nil), inheritedMethods...)
	for _, m := range c.VirtualMethods {
		if m.IsStatic() || m.Name == "<init>" {
			continue
		}
		overridden := false
		for i, existing := range methods {
			if existing.Name == m.Name && existing.Descriptor == m.Descriptor {
				methods[i] = m
				m.VTOffset = i
				overridden = true
				break
			}
		}
		if !overridden {
			m.VTOffset = len(methods)
			methods = append(methods, m)
		}
	}

	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}
	c.Depth = depth
	if depth < displayLen {
		display = append(display[:min(len(display), depth)], c)
	} else {
		secondary = append(secondary, c)
	}
	c.Display = display

	// sub_class_of's interface-target path (spec.md §4.2) scans
	// SecondaryTypes, so every interface c implements — directly or via
	// an implemented interface's own superinterfaces — must appear here,
	// not just classes deep enough to fall out of the display array.
	seenSecondary := make(map[*Class]bool, len(secondary))
	for _, s := range secondary {
		seenSecondary[s] = true
	}
	c.SecondaryTypes = appendInterfaces(secondary, seenSecondary, c.Interfaces)

	imt := buildIMT(c, methods)

	c.VT = &VirtualTable{
		Class:           c,
		Depth:           depth,
		OffsetInDisplay: depth,
		Display:         display,
		SecondaryTypes:  c.SecondaryTypes,
		BaseClassVT:     baseVT,
		IMT:             imt,
		Methods:         methods,
	}
	return nil
}

// appendInterfaces resolves every ref in ifaces and, transitively, each
// resolved interface's own Interfaces, appending each not-yet-seen one to
// out. Shares buildIMT's "walk the implements graph" shape but collects
// classes instead of inserting methods, since SecondaryTypes and the IMT
// are populated from the same interface graph for different purposes.
func appendInterfaces(out []*Class, seen map[*Class]bool, ifaces []*ClassRef) []*Class {
	for _, ref := range ifaces {
		iface, err := ref.loader.resolveRef(ref)
		if err != nil || iface == nil || seen[iface] {
			continue
		}
		seen[iface] = true
		out = append(out, iface)
		out = appendInterfaces(out, seen, iface.Interfaces)
	}
	return out
}

// buildIMT walks every interface C implements (direct and inherited) and
// inserts each interface method that C provides an implementation for,
// per spec.md §3's IMT and §4.4's "interface-table index hashing".
func buildIMT(c *Class, vtMethods []*Method) *InterfaceMethodTable {
	imt := &InterfaceMethodTable{}
	if c.Super != nil {
		if parent, err := c.Super.loader.resolveRef(c.Super); err == nil && parent != nil && parent.VT != nil {
			*imt = *parent.VT.IMT
		}
	}
	seen := make(map[*ClassRef]bool)
	var walk func(ref *ClassRef)
	walk = func(ref *ClassRef) {
		if ref == nil || seen[ref] {
			return
		}
		seen[ref] = true
		iface, err := ref.loader.resolveRef(ref)
		if err != nil || iface == nil {
			return
		}
		for _, im := range iface.VirtualMethods {
			if im.IsAbstract() {
				// Find C's concrete implementation in the VT.
				for _, cm := range vtMethods {
					if cm.Name == im.Name && cm.Descriptor == im.Descriptor && !cm.IsAbstract() {
						imt.insert(im.Name, im.Descriptor, cm, cm.CodePtr)
						break
					}
				}
			}
		}
		for _, superIface := range iface.Interfaces {
			walk(superIface)
		}
	}
	for _, ref := range c.Interfaces {
		walk(ref)
	}
	return imt
}

// resolveStatic implements spec.md §4.2's resolve_static(C): computes the
// static instance layout and allocates its backing storage.
func resolveStatic(c *Class) {
	offset := 0
	for _, f := range c.StaticFields {
		size := f.Type.Size()
		if size == 0 {
			size = 1
		}
		offset = alignUp(offset, size)
		f.Offset = offset
		offset += size
	}
	c.StaticSize = offset
	c.StaticStorage = make([]byte, offset)
}

func alignUp(offset, size int) int {
	if size <= 1 {
		return offset
	}
	rem := offset % size
	if rem == 0 {
		return offset
	}
	return offset + (size - rem)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
