package vm

import "testing"

func TestValueKinds(t *testing.T) {
	tests := []struct {
		v    Value
		kind Kind
	}{
		{Nil, KindNil},
		{Value{}, KindNil},
		{FromNumber(1.5), KindNumber},
		{FromInt(-2), KindNumber},
		{FromBool(true), KindNumber},
		{FromString(""), KindString},
		{FromUserData(42), KindUserData},
		{FromClosure(&Closure{}), KindClosure},
		{FromNativeClosure("give_item"), KindNativeClosure},
	}
	for _, tt := range tests {
		if tt.v.Kind() != tt.kind {
			t.Errorf("%v: kind %s, want %s", tt.v, tt.v.Kind(), tt.kind)
		}
	}
	if !Nil.IsNil() || FromInt(0).IsNil() {
		t.Error("IsNil misclassified")
	}
}

func TestFromBool(t *testing.T) {
	if n, _ := FromBool(true).AsNumber(); n != 1 {
		t.Errorf("FromBool(true) = %g", n)
	}
	if n, _ := FromBool(false).AsNumber(); n != 0 {
		t.Errorf("FromBool(false) = %g", n)
	}
	// 0 is a Number, not nil; scripts test truth with nil checks only.
	if FromBool(false).IsNil() {
		t.Error("FromBool(false) is nil")
	}
}

func TestEqual(t *testing.T) {
	ud := FromUserData("token")
	cl := FromClosure(&Closure{})
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers equal", FromNumber(3), FromInt(3), true},
		{"numbers unequal", FromNumber(3), FromNumber(4), false},
		{"strings equal", FromString("elf"), FromString("elf"), true},
		{"strings unequal", FromString("elf"), FromString("dwarf"), false},
		{"nil nil", Nil, Nil, false},
		{"number vs numeric string", FromNumber(3), FromString("3"), false},
		{"userdata self", ud, ud, false},
		{"closure self", cl, cl, false},
		{"native closures same name", FromNativeClosure("f"), FromNativeClosure("f"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal (flipped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		name          string
		a, b          Value
		less, defined bool
	}{
		{"numbers", FromNumber(2), FromNumber(3), true, true},
		{"numbers equal", FromNumber(3), FromNumber(3), false, true},
		{"strings", FromString("apple"), FromString("banana"), true, true},
		{"number vs string", FromNumber(2), FromString("3"), false, false},
		{"nil vs nil", Nil, Nil, false, false},
		{"userdata", FromUserData(1), FromUserData(2), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			less, defined := tt.a.lessThan(tt.b)
			if less != tt.less || defined != tt.defined {
				t.Errorf("lessThan = %v, %v, want %v, %v", less, defined, tt.less, tt.defined)
			}
		})
	}

	le, defined := FromNumber(3).lessEqual(FromNumber(3))
	if !le || !defined {
		t.Errorf("lessEqual(3, 3) = %v, %v", le, defined)
	}
}

func TestAsNumber(t *testing.T) {
	tests := []struct {
		v    Value
		want float64
		ok   bool
	}{
		{FromNumber(2.5), 2.5, true},
		{FromString("2.5"), 2.5, true},
		{FromString("  2.5"), 0, false},
		{FromString("gold"), 0, false},
		{Nil, 0, false},
		{FromUserData(7), 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.v.AsNumber()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%v.AsNumber() = %g, %v, want %g, %v", tt.v, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAsString(t *testing.T) {
	if s, ok := FromString("elf").AsString(); !ok || s != "elf" {
		t.Errorf("AsString = %q, %v", s, ok)
	}
	if s, ok := FromNumber(2.5).AsString(); !ok || s != "2.5" {
		t.Errorf("AsString(2.5) = %q, %v", s, ok)
	}
	if _, ok := Nil.AsString(); ok {
		t.Error("nil converted to string")
	}
}

func TestAsIntTruncates(t *testing.T) {
	if n, ok := FromNumber(3.9).AsInt(); !ok || n != 3 {
		t.Errorf("AsInt(3.9) = %d, %v", n, ok)
	}
	if n, ok := FromNumber(-3.9).AsInt32(); !ok || n != -3 {
		t.Errorf("AsInt32(-3.9) = %d, %v", n, ok)
	}
}

type questToken struct {
	ID int
}

func TestUserDataAs(t *testing.T) {
	v := FromUserData(questToken{ID: 7})

	got, ok := UserDataAs[questToken](v)
	if !ok || got.ID != 7 {
		t.Errorf("UserDataAs = %+v, %v", got, ok)
	}
	if _, ok := UserDataAs[string](v); ok {
		t.Error("payload type mismatch accepted")
	}
	if _, ok := UserDataAs[questToken](FromInt(7)); ok {
		t.Error("non-userdata accepted")
	}
}

func TestNativeName(t *testing.T) {
	if name, ok := FromNativeClosure("give_item").NativeName(); !ok || name != "give_item" {
		t.Errorf("NativeName = %q, %v", name, ok)
	}
	if _, ok := FromString("give_item").NativeName(); ok {
		t.Error("string reported a native name")
	}
}
