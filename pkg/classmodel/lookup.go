package classmodel

// LookupMethod implements spec.md §4.2's lookup_method(C, name, desc,
// static?, throw?): declared methods, then superclass chain, then
// interfaces; ties broken by declaration order. Grounded on the teacher's
// resolveMethod (_examples/daimatz-gojvm/pkg/vm/vm.go), which performs
// exactly this walk but recomputes it on every call; here it is exposed
// as a reusable operation the dispatch-cache miss handler and the
// translator's invokespecial/invokestatic lowering both call.
func LookupMethod(c *Class, name, descriptor string, static bool) (*Method, error) {
	for cur := c; cur != nil; {
		if m := cur.FindDeclaredMethod(name, descriptor); m != nil {
			if m.IsStatic() != static && m.Name != "<init>" {
				// name/descriptor matched but staticness differs:
				// keep walking, a differently-kinded member with the
				// same name/descriptor is legal in some guest languages.
			} else {
				return m, nil
			}
		}
		cur = superOf(cur)
	}

	var found *Method
	var walkIfaces func(c *Class) *Method
	walkIfaces = func(c *Class) *Method {
		for cur := c; cur != nil; cur = superOf(cur) {
			for _, ref := range cur.Interfaces {
				iface, err := ref.loader.resolveRef(ref)
				if err != nil {
					continue
				}
				if m := iface.FindDeclaredMethod(name, descriptor); m != nil {
					return m
				}
				if m := walkIfaces(iface); m != nil {
					return m
				}
			}
		}
		return nil
	}
	found = walkIfaces(c)
	if found != nil {
		return found, nil
	}

	return nil, newClassError(NoSuchMethod, c.Name, name+descriptor, nil)
}

// LookupField resolves a field by name, walking the superclass chain,
// per the field half of spec.md §4.2's lookup machinery.
func LookupField(c *Class, name string) (*Field, error) {
	for cur := c; cur != nil; cur = superOf(cur) {
		if f := cur.FindDeclaredField(name); f != nil {
			return f, nil
		}
	}
	return nil, newClassError(NoSuchField, c.Name, name, nil)
}

func superOf(c *Class) *Class {
	if c == nil || c.Super == nil {
		return nil
	}
	super, err := c.Super.loader.resolveRef(c.Super)
	if err != nil {
		return nil
	}
	return super
}

// SubClassOf implements spec.md §4.2's sub_class_of(A, B): if B is not an
// interface and depth(B) < DisplayLen, a single display-array load and
// compare; otherwise a linear scan of A's secondaryTypes.
func SubClassOf(a, b *Class) bool {
	if a == b {
		return true
	}
	if !b.IsInterface() && b.Depth < displayLen {
		if b.Depth < len(a.Display) {
			return a.Display[b.Depth] == b
		}
		return false
	}
	for _, s := range a.SecondaryTypes {
		if s == b {
			return true
		}
	}
	return false
}

// AssignableFrom reports whether a value of class source is assignable to
// target, which is SubClassOf(source, target). Array covariance is not
// handled: Class carries no array element type, so array classes are
// compared like any other class.
func AssignableFrom(target, source *Class) bool {
	return SubClassOf(source, target)
}

// InstanceOf reports whether an object of class `actual` is an instance
// of `target`, following spec.md §4.2's "assignable_from and instance_of
// follow from sub_class_of". Kept as a distinct entry point (rather than
// an alias) because a future array-covariance extension will need
// TypeDescriptor-level information InstanceOf does not currently take.
func InstanceOf(actual, target *Class) bool {
	return SubClassOf(actual, target)
}
