package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.c")
	require.NoError(t, os.WriteFile(path, []byte("int main(){}"), 0o644))

	w, err := New([]string{path}, nil, 50*time.Millisecond)
	require.NoError(t, err)

	calls := make(chan []string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx, func(_ context.Context, changed []string) error {
		calls <- changed
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("int main(){return 1;}"), 0o644))

	select {
	case changed := <-calls:
		require.Contains(t, changed, path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	w.Stop()
}
