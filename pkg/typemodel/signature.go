package typemodel

import (
	"fmt"
	"strings"
)

// Signature is a parsed guest method descriptor: parameter descriptors in
// order, plus a return descriptor. Guest-language agnostic: both J3's JVM
// descriptors ("(ILjava/lang/String;)V") and N3's CIL signatures are
// expected to lower to this shape before reaching pkg/signature.
type Signature struct {
	Params []*TypeDescriptor
	Return *TypeDescriptor
}

// ClassResolver resolves a reference-type name (as it appears inside a
// descriptor, e.g. "java/lang/String") to a ClassRefResolver. classmodel's
// loader satisfies this.
type ClassResolver func(name string) (ClassRefResolver, error)

// ParseDescriptor parses a JVM-shaped method descriptor into a Signature,
// generalising the teacher's ad hoc countParams
// (_examples/daimatz-gojvm/pkg/vm/vm.go) into a full structural parse that
// also records each parameter's TypeDescriptor, not merely its count.
func ParseDescriptor(descriptor string, resolve ClassResolver) (*Signature, error) {
	start := strings.IndexByte(descriptor, '(')
	end := strings.IndexByte(descriptor, ')')
	if start != 0 || end == -1 || end < start {
		return nil, fmt.Errorf("typemodel: malformed descriptor %q", descriptor)
	}

	params, rest, err := parseTypeList(descriptor[start+1:end], resolve)
	if err != nil {
		return nil, fmt.Errorf("typemodel: parsing parameters of %q: %w", descriptor, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("typemodel: trailing data in parameter list of %q", descriptor)
	}

	ret, tail, err := parseOneType(descriptor[end+1:], resolve)
	if err != nil {
		return nil, fmt.Errorf("typemodel: parsing return type of %q: %w", descriptor, err)
	}
	if len(tail) != 0 {
		return nil, fmt.Errorf("typemodel: trailing data after return type of %q", descriptor)
	}

	return &Signature{Params: params, Return: ret}, nil
}

func parseTypeList(s string, resolve ClassResolver) ([]*TypeDescriptor, string, error) {
	var out []*TypeDescriptor
	for len(s) > 0 {
		td, rest, err := parseOneType(s, resolve)
		if err != nil {
			return nil, "", err
		}
		out = append(out, td)
		s = rest
	}
	return out, s, nil
}

// parseOneType parses a single field/type descriptor from the front of s
// and returns the remainder.
func parseOneType(s string, resolve ClassResolver) (*TypeDescriptor, string, error) {
	if len(s) == 0 {
		return nil, "", fmt.Errorf("typemodel: unexpected end of descriptor")
	}
	switch s[0] {
	case 'Z':
		return NewPrimitive(Bool), s[1:], nil
	case 'B':
		return NewPrimitive(Byte), s[1:], nil
	case 'S':
		return NewPrimitive(Short), s[1:], nil
	case 'C':
		return NewPrimitive(Char), s[1:], nil
	case 'I':
		return NewPrimitive(Int), s[1:], nil
	case 'J':
		return NewPrimitive(Long), s[1:], nil
	case 'F':
		return NewPrimitive(Float), s[1:], nil
	case 'D':
		return NewPrimitive(Double), s[1:], nil
	case 'V':
		return NewPrimitive(Void), s[1:], nil
	case 'L':
		idx := strings.IndexByte(s, ';')
		if idx == -1 {
			return nil, "", fmt.Errorf("typemodel: unterminated class descriptor in %q", s)
		}
		name := s[1:idx]
		var ref ClassRefResolver
		if resolve != nil {
			r, err := resolve(name)
			if err != nil {
				return nil, "", err
			}
			ref = r
		} else {
			ref = namedClassRef(name)
		}
		return NewReference(ref), s[idx+1:], nil
	case '[':
		dims := 0
		for len(s) > 0 && s[0] == '[' {
			dims++
			s = s[1:]
		}
		base, rest, err := parseOneType(s, resolve)
		if err != nil {
			return nil, "", err
		}
		return NewArray(dims, base), rest, nil
	default:
		return nil, "", fmt.Errorf("typemodel: invalid descriptor char %q", s[0])
	}
}

// namedClassRef is a placeholder ClassRefResolver used when the caller
// does not need (or has not yet bound) an actual class graph — e.g. when
// parsing a signature purely to count/shape parameters before a loader
// exists.
type namedClassRef string

func (n namedClassRef) Name() string { return string(n) }

// IsVoidReturn reports whether descriptor's return type is void, per the
// teacher's isVoidReturn helper (_examples/daimatz-gojvm/pkg/vm/vm.go),
// kept as a cheap shortcut so callers needn't parse a full Signature just
// to decide whether to push a return value.
func IsVoidReturn(descriptor string) bool {
	return strings.HasSuffix(descriptor, ")V")
}
