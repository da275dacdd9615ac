package typemodel

import "testing"

func TestParseDescriptorParamCountAndReturnKind(t *testing.T) {
	cases := []struct {
		descriptor string
		wantParams int
		wantReturn Kind
	}{
		{"()V", 0, KindPrimitive},
		{"(I)I", 1, KindPrimitive},
		{"(Ljava/lang/String;)V", 1, KindPrimitive},
		{"(II[Ljava/lang/String;)Ljava/lang/Object;", 3, KindReference},
		{"([[I)V", 1, KindPrimitive},
	}

	for _, c := range cases {
		sig, err := ParseDescriptor(c.descriptor, nil)
		if err != nil {
			t.Fatalf("ParseDescriptor(%q): %v", c.descriptor, err)
		}
		if len(sig.Params) != c.wantParams {
			t.Errorf("ParseDescriptor(%q): got %d params, want %d", c.descriptor, len(sig.Params), c.wantParams)
		}
		if sig.Return.Kind != c.wantReturn {
			t.Errorf("ParseDescriptor(%q): return kind = %v, want %v", c.descriptor, sig.Return.Kind, c.wantReturn)
		}
	}
}

func TestParseDescriptorMalformed(t *testing.T) {
	for _, d := range []string{"", "I)V", "(I", "(Q)V", "(Ljava/lang/String)V"} {
		if _, err := ParseDescriptor(d, nil); err == nil {
			t.Errorf("ParseDescriptor(%q): expected error, got nil", d)
		}
	}
}

func TestTypeDescriptorEqualIsStructural(t *testing.T) {
	a := NewArray(2, NewPrimitive(Int))
	b := NewArray(2, NewPrimitive(Int))
	c := NewArray(1, NewPrimitive(Int))

	if !a.Equal(b) {
		t.Errorf("expected structurally equal array descriptors to be Equal")
	}
	if a.Equal(c) {
		t.Errorf("expected arrays of different dims to be unequal")
	}
}

func TestLogSizeTable(t *testing.T) {
	cases := map[Primitive]uint8{
		Bool: 0, Byte: 0, Short: 1, Char: 1, Int: 2, Float: 2, Long: 3, Double: 3,
	}
	for p, want := range cases {
		if got := p.LogSize(); got != want {
			t.Errorf("%v.LogSize() = %d, want %d", p, got, want)
		}
	}
}

func TestIsVoidReturn(t *testing.T) {
	if !IsVoidReturn("(I)V") {
		t.Error("expected (I)V to be void return")
	}
	if IsVoidReturn("(I)I") {
		t.Error("expected (I)I to not be void return")
	}
}
