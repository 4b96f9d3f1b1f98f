package bake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokens(ws ...string) []Word {
	out := make([]Word, len(ws))
	for i, w := range ws {
		out[i] = Word(w)
	}
	return out
}

func TestRegistryDefine(t *testing.T) {
	t.Run("grounded rule", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Define(tokens("%bin", ":", "%bin.o", "::", "link"))
		require.NoError(t, err)
		require.Len(t, reg.Rules(), 1)
		require.Equal(t, KindGrounded, reg.Rules()[0].Kind)
	})

	t.Run("ungrounded rule", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Define(tokens("inout-%x", "=", "%x", "::", ":"))
		require.NoError(t, err)
		require.Len(t, reg.Rules(), 1)
		require.Equal(t, KindUngrounded, reg.Rules()[0].Kind)
		require.True(t, reg.Rules()[0].HasCommand)
	})

	t.Run("global definition with a variable-free RHS is stored, not matched as a rule", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Define(tokens("%cc", "=", "gcc"))
		require.NoError(t, err)
		require.Len(t, reg.Rules(), 0)
		vals, ok := reg.Globals().Get("cc")
		require.True(t, ok)
		require.Equal(t, wl("gcc"), vals)
	})

	t.Run("later global is pre-expanded into earlier rule definitions, not retroactively", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Define(tokens("%cc", "=", "gcc")))
		require.NoError(t, reg.Define(tokens("%x.o", ":", "%x.c", "::", "%cc", "-c", "%x.c")))
		require.NoError(t, reg.Define(tokens("%cc", "=", "clang")))

		rule := reg.Rules()[0]
		cmdWords := Expand(Bindings{"x": wl("foo")}, rule.Command)
		require.Equal(t, wl("gcc", "-c", "foo.c"), cmdWords)
	})

	t.Run("default goal list from empty outputs", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Define(tokens(":", "all", "docs")))
		goals, ok := reg.DefaultGoals()
		require.True(t, ok)
		require.Equal(t, wl("all", "docs"), goals)
	})

	t.Run("default goal list with a command is rejected", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Define(tokens(":", "all", "::", "noop"))
		require.ErrorIs(t, err, ErrDefaultGoalsWithCommand)
	})

	t.Run("repeated variable within the output pattern is rejected", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Define(tokens("%x", "%x", ":", "%x.c"))
		require.Error(t, err)
		var perr *PatternError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, FailRepeatedVariable, perr.Kind)
	})
}
