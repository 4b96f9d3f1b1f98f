package bake

import (
	"reflect"
	"testing"
)

func TestExpand(t *testing.T) {
	t.Run("singular round-trip", func(t *testing.T) {
		p := mustPattern(t, "%x")
		got := Expand(Bindings{"x": wl("10")}, p)
		want := wl("10")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expand = %v, want %v", got, want)
		}
	})

	t.Run("cross-product of two plural variables in one term", func(t *testing.T) {
		p := mustPattern(t, "%@xs-%@ys")
		b := Bindings{"xs": wl("1", "2", "3"), "ys": wl("a", "b")}
		got := Expand(b, p)
		want := wl("1-a", "2-a", "3-a", "1-b", "2-b", "3-b")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expand = %v, want %v", got, want)
		}
	})

	t.Run("unbound reference left as literal text", func(t *testing.T) {
		p := mustPattern(t, "prefix-%unbound")
		got := Expand(NewBindings(), p)
		want := wl("prefix-%unbound")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expand = %v, want %v", got, want)
		}
	})

	t.Run("plural bound to empty list yields no words for the term", func(t *testing.T) {
		p := mustPattern(t, "%@xs.o", "literal")
		got := Expand(Bindings{"xs": WordList{}}, p)
		want := wl("literal")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expand = %v, want %v", got, want)
		}
	})

	t.Run("match then expand round-trips a singular binding", func(t *testing.T) {
		p := mustPattern(t, "%x.o")
		bound, err := Match(p, []Word{"foo.o"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		got := Expand(bound, p)
		want := wl("foo.o")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round-trip Expand = %v, want %v", got, want)
		}
	})

	t.Run("value order is preserved, not sorted", func(t *testing.T) {
		p := mustPattern(t, "%@xs")
		got := Expand(Bindings{"xs": wl("z", "a", "m")}, p)
		want := wl("z", "a", "m")
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Expand = %v, want %v", got, want)
		}
	})
}
