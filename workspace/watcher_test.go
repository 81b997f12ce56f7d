package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rlch/phpintel/index"
	"github.com/rlch/phpintel/workspace"
)

func waitForChange(t *testing.T, changes <-chan []workspace.Change, match func(workspace.Change) bool) workspace.Change {
	t.Helper()

	timeout := time.After(5 * time.Second)

	for {
		select {
		case batch := <-changes:
			for _, c := range batch {
				if match(c) {
					return c
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for watcher change")

			return workspace.Change{}
		}
	}
}

func TestWatcher_SyncsIndex(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	idx := index.New()
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx)

	_, err := ix.IndexAll(context.Background())
	require.NoError(t, err)

	changes := make(chan []workspace.Change, 16)

	w, err := workspace.NewWatcher(ix, zap.NewNop(),
		workspace.WithDebounce(50*time.Millisecond),
		workspace.WithOnChange(func(c []workspace.Change) { changes <- c }))
	require.NoError(t, err)

	defer w.Close()

	require.NoError(t, w.Watch())

	// New file.
	writeFiles(t, dir, map[string]string{
		"src/Admin.php": "<?php\nnamespace App;\n\nclass Admin extends User {}\n",
	})

	c := waitForChange(t, changes, func(c workspace.Change) bool { return c.File.Rel == "src/Admin.php" })
	require.False(t, c.Removed)

	_, ok := idx.Definition(`App\Admin`)
	require.True(t, ok)

	// Ignored file types never reach the indexer.
	writeFiles(t, dir, map[string]string{"src/notes.txt": "hello"})

	// New directory is watched recursively.
	writeFiles(t, dir, map[string]string{
		"src/Http/Kernel.php": "<?php\nnamespace App\\Http;\n\nclass Kernel {}\n",
	})

	waitForChange(t, changes, func(c workspace.Change) bool { return c.File.Rel == "src/Http/Kernel.php" })

	_, ok = idx.Definition(`App\Http\Kernel`)
	require.True(t, ok)

	// Deletion.
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "Admin.php")))

	c = waitForChange(t, changes, func(c workspace.Change) bool {
		return c.File.Rel == "src/Admin.php" && c.Removed
	})
	require.Nil(t, c.Analysis)

	_, ok = idx.Definition(`App\Admin`)
	require.False(t, ok)
}

func TestWatcher_CloseStopsSync(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), index.New())

	w, err := workspace.NewWatcher(ix, zap.NewNop(), workspace.WithDebounce(time.Hour))
	require.NoError(t, err)
	require.NoError(t, w.Watch())

	writeFiles(t, dir, map[string]string{"src/Late.php": "<?php class Late {}"})

	require.NoError(t, w.Close())

	_, ok := ix.Index().Definition("Late")
	require.False(t, ok)
}
