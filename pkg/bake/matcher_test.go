package bake

import (
	"reflect"
	"testing"
)

func mustPattern(t *testing.T, raws ...Word) []*Term {
	t.Helper()
	terms, err := ParsePattern(raws)
	if err != nil {
		t.Fatalf("ParsePattern(%v): %v", raws, err)
	}
	return terms
}

func wl(ws ...Word) WordList { return WordList(ws) }

func TestMatch(t *testing.T) {
	t.Run("singular bind", func(t *testing.T) {
		p := mustPattern(t, "%x")
		got, err := Match(p, []Word{"10"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		want := Bindings{"x": wl("10")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Match = %v, want %v", got, want)
		}
	})

	t.Run("plural split by profile", func(t *testing.T) {
		p := mustPattern(t, "%@xs.c", "%@ys.h")
		got, err := Match(p, []Word{"foo.c", "bar.c", "bif.h"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		want := Bindings{"xs": wl("foo", "bar"), "ys": wl("bif")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Match = %v, want %v", got, want)
		}
	})

	t.Run("shared literal split forces one singular", func(t *testing.T) {
		p := mustPattern(t, "%@xs.%ext")
		got, err := Match(p, []Word{"foo.c", "bar.c", "bif.c"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		want := Bindings{"xs": wl("foo", "bar", "bif"), "ext": wl("c")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Match = %v, want %v", got, want)
		}
	})

	t.Run("shadowed term takes exactly one", func(t *testing.T) {
		p := mustPattern(t, "%@x.c", "%@xs.c")
		got, err := Match(p, []Word{"foo.c", "bar.c", "bif.c"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		want := Bindings{"x": wl("foo"), "xs": wl("bar", "bif")}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Match = %v, want %v", got, want)
		}
	})

	t.Run("leftover text fails", func(t *testing.T) {
		p := mustPattern(t, "%x.c")
		_, err := Match(p, []Word{"foo.c", "bar.h"})
		if err == nil {
			t.Fatal("expected an error for leftover text")
		}
		mf, ok := err.(*MatchFailure)
		if !ok || mf.Kind != FailNotConsumed {
			t.Errorf("err = %v, want FailNotConsumed", err)
		}
	})

	t.Run("repeated variable across terms rejected", func(t *testing.T) {
		p := mustPattern(t, "%x", "%x")
		_, err := Match(p, []Word{"a", "b"})
		if err == nil {
			t.Fatal("expected an error for repeated variable")
		}
		mf, ok := err.(*MatchFailure)
		if !ok || mf.Kind != FailRepeatedVariable {
			t.Errorf("err = %v, want FailRepeatedVariable", err)
		}
	})

	t.Run("destructuring order changes the split", func(t *testing.T) {
		p1 := mustPattern(t, "%a", "%b")
		p2 := mustPattern(t, "%b", "%a")
		got1, err := Match(p1, []Word{"x", "y"})
		if err != nil {
			t.Fatalf("Match p1: %v", err)
		}
		got2, err := Match(p2, []Word{"x", "y"})
		if err != nil {
			t.Fatalf("Match p2: %v", err)
		}
		if reflect.DeepEqual(got1, got2) {
			t.Errorf("destructuring patterns with swapped term order should not bind identically: %v vs %v", got1, got2)
		}
	})

	t.Run("everything profile matches any single word", func(t *testing.T) {
		p := mustPattern(t, "%x")
		if !p[0].IsEverythingProfile() {
			t.Fatalf("%q should be the everything-profile", "%x")
		}
		got, err := Match(p, []Word{"anything-at-all.tar.gz"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if got["x"][0] != "anything-at-all.tar.gz" {
			t.Errorf("got %v", got)
		}
	})
}
