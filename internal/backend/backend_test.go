package backend

import (
	"context"
	"testing"

	"github.com/spencertipping/bake/pkg/bake"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	status bake.ExitStatus
}

func (r *fakeRunner) Run(ctx context.Context, commandText string, bindings bake.Bindings) (bake.ExitStatus, error) {
	return r.status, nil
}

func TestFingerprintBackendFreshness(t *testing.T) {
	store := NewStore()
	b := NewFingerprintBackend(store, &fakeRunner{})
	bindings := bake.Bindings{"x": bake.WordList{"foo"}}

	fresh, err := b.IsFresh(context.Background(), "1", bindings, []bake.Fingerprint{"abc"})
	require.NoError(t, err)
	require.False(t, fresh, "a never-recorded rule is never fresh")

	b.RecordInputs("1", bindings, []bake.Fingerprint{"abc"})

	fresh, err = b.IsFresh(context.Background(), "1", bindings, []bake.Fingerprint{"abc"})
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = b.IsFresh(context.Background(), "1", bindings, []bake.Fingerprint{"changed"})
	require.NoError(t, err)
	require.False(t, fresh)
}

func TestFingerprintBackendDistinguishesBindings(t *testing.T) {
	store := NewStore()
	b := NewFingerprintBackend(store, &fakeRunner{})

	b.RecordInputs("1", bake.Bindings{"x": bake.WordList{"foo"}}, []bake.Fingerprint{"abc"})

	fresh, err := b.IsFresh(context.Background(), "1", bake.Bindings{"x": bake.WordList{"bar"}}, []bake.Fingerprint{"abc"})
	require.NoError(t, err)
	require.False(t, fresh, "distinct bindings for the same rule must not share a freshness record")
}

func TestNullBackendAlwaysStale(t *testing.T) {
	b := &NullBackend{}
	fresh, err := b.IsFresh(context.Background(), "1", bake.NewBindings(), []bake.Fingerprint{"abc"})
	require.NoError(t, err)
	require.False(t, fresh)
}
