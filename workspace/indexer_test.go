package workspace_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/cache"
	"github.com/rlch/phpintel/index"
	"github.com/rlch/phpintel/workspace"
)

var projectFiles = map[string]string{
	"src/User.php": `<?php
namespace App;

class User
{
    public string $name;

    public function greet(): string
    {
        return "Hello " . $this->name;
    }
}
`,
	"src/Controller.php": `<?php
namespace App;

class Controller
{
    public function show(User $user): string
    {
        return $user->greet();
    }

    public static function broken()
    {
        return $this->show(new User());
    }
}
`,
}

func newProject(t *testing.T) (string, *phpintel.Config) {
	t.Helper()

	dir := t.TempDir()
	writeFiles(t, dir, projectFiles)

	return dir, phpintel.DefaultConfig(dir)
}

type recorder struct {
	mu     sync.Mutex
	events []workspace.Event
}

func (r *recorder) Event(_ context.Context, e workspace.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)

	return nil
}

func (r *recorder) count(action workspace.Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, e := range r.events {
		if e.Action == action {
			n++
		}
	}

	return n
}

func TestIndexer_IndexAll(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	rec := &recorder{}
	idx := index.New()

	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx,
		workspace.WithHandler(rec),
		workspace.WithWorkers(2),
		workspace.WithLogger(zap.NewNop()))

	results, err := ix.IndexAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byRel := make(map[string]workspace.Result)
	for _, r := range results {
		require.NoError(t, r.Err)
		byRel[r.File.Rel] = r
	}

	controller := byRel["src/Controller.php"]
	assert.Equal(t, 4, controller.Definitions)
	require.Len(t, controller.Diagnostics, 1)
	assert.Equal(t, "this-usage", controller.Diagnostics[0].Code)

	user := byRel["src/User.php"]
	assert.Equal(t, 4, user.Definitions)
	assert.Empty(t, user.Diagnostics)

	def, ok := idx.Definition(`App\User->greet()`)
	require.True(t, ok)
	assert.Equal(t, phpintel.PathToURI(filepath.Join(dir, "src", "User.php")), def.Location.URI)

	var refURIs []string
	for _, ref := range idx.References(`App\User->greet()`) {
		refURIs = append(refURIs, ref.URI)
	}

	assert.Equal(t, []string{controller.File.URI}, refURIs)

	assert.Equal(t, 1, rec.count(workspace.ActionDiscover))
	assert.Equal(t, 2, rec.count(workspace.ActionDefine))
	assert.Equal(t, 2, rec.count(workspace.ActionReference))
	assert.Equal(t, 1, rec.count(workspace.ActionIndexed))
}

func TestIndexer_ReindexIsIdempotent(t *testing.T) {
	t.Parallel()

	_, cfg := newProject(t)
	idx := index.New()

	// One worker keeps the write order, and so the visible namespace definition, stable.
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx, workspace.WithWorkers(1))

	_, err := ix.IndexAll(context.Background())
	require.NoError(t, err)

	first := idx.Snapshot()

	_, err = ix.IndexAll(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(first, idx.Snapshot()); diff != "" {
		t.Errorf("second IndexAll changed the index (-first +second):\n%s", diff)
	}

	files, err := ix.Loader().Discover(context.Background())
	require.NoError(t, err)

	for _, f := range files {
		content, err := ix.Loader().Read(f)
		require.NoError(t, err)

		ix.Reindex(context.Background(), f.URI, content)
	}

	if diff := cmp.Diff(first, idx.Snapshot()); diff != "" {
		t.Errorf("Reindex changed the index (-first +second):\n%s", diff)
	}
}

func TestIndexer_CacheHits(t *testing.T) {
	t.Parallel()

	_, cfg := newProject(t)

	c := cache.NewMemory()
	defer c.Close()

	cold := index.New()
	results, err := workspace.NewIndexer(workspace.NewLoader(cfg), cold, workspace.WithCache(c), workspace.WithWorkers(1)).
		IndexAll(context.Background())
	require.NoError(t, err)

	for _, r := range results {
		assert.False(t, r.Cached, r.File.Rel)
	}

	assert.Equal(t, 2, c.Len())

	warm := index.New()
	results, err = workspace.NewIndexer(workspace.NewLoader(cfg), warm, workspace.WithCache(c), workspace.WithWorkers(1)).
		IndexAll(context.Background())
	require.NoError(t, err)

	for _, r := range results {
		assert.True(t, r.Cached, r.File.Rel)
	}

	if diff := cmp.Diff(cold.Snapshot(), warm.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("cached index differs (-cold +warm):\n%s", diff)
	}
}

func TestIndexer_ConfiguredRules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.php": "<?php\nnamespace App;\n\nuse Lib\\Logger;\n\nfunction f(): int { return 1; }\n",
	})

	c := cache.NewMemory()
	defer c.Close()

	indexAll := func(cfg *phpintel.Config) []workspace.Result {
		t.Helper()

		results, err := workspace.NewIndexer(workspace.NewLoader(cfg), index.New(), workspace.WithCache(c)).
			IndexAll(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)

		return results
	}

	results := indexAll(phpintel.DefaultConfig(dir))
	assert.Empty(t, results[0].Diagnostics)

	// The lint run must not be served the cached default-rule analysis.
	cfg := phpintel.DefaultConfig(dir)
	cfg.Rules = []string{"unused-import"}

	results = indexAll(cfg)
	assert.False(t, results[0].Cached)
	require.Len(t, results[0].Diagnostics, 1)
	assert.Equal(t, "unused-import", results[0].Diagnostics[0].Code)

	results = indexAll(cfg)
	assert.True(t, results[0].Cached)
	require.Len(t, results[0].Diagnostics, 1)
}

func TestIndexer_PrunesDeletedFiles(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	idx := index.New()
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx)

	_, err := ix.IndexAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "src", "User.php")))

	results, err := ix.IndexAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, ok := idx.Definition(`App\User`)
	assert.False(t, ok)
	assert.Len(t, idx.Files(), 1)
}

func TestIndexer_Sync(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	idx := index.New()
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx)

	_, err := ix.IndexAll(context.Background())
	require.NoError(t, err)

	userPath := filepath.Join(dir, "src", "User.php")
	newPath := filepath.Join(dir, "src", "Admin.php")

	writeFiles(t, dir, map[string]string{
		"src/Admin.php": "<?php\nnamespace App;\n\nclass Admin extends User {}\n",
	})
	require.NoError(t, os.Remove(userPath))

	changes := ix.Sync(context.Background(), []string{
		newPath,
		userPath,
		filepath.Join(dir, "notes.txt"),
	})
	require.Len(t, changes, 2)

	assert.Equal(t, "src/Admin.php", changes[0].File.Rel)
	assert.False(t, changes[0].Removed)
	require.NotNil(t, changes[0].Analysis)
	assert.NotNil(t, changes[0].Analysis.Tree)

	assert.Equal(t, "src/User.php", changes[1].File.Rel)
	assert.True(t, changes[1].Removed)
	assert.Nil(t, changes[1].Analysis)

	admin, ok := idx.Definition(`App\Admin`)
	require.True(t, ok)
	assert.Equal(t, []string{`App\User`}, admin.Extends)

	_, ok = idx.Definition(`App\User`)
	assert.False(t, ok)
}

func TestIndexer_ReindexUnsavedContent(t *testing.T) {
	t.Parallel()

	dir, cfg := newProject(t)
	idx := index.New()
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx)

	_, err := ix.IndexAll(context.Background())
	require.NoError(t, err)

	uri := phpintel.PathToURI(filepath.Join(dir, "src", "User.php"))
	content := bytes.Replace([]byte(projectFiles["src/User.php"]), []byte("greet"), []byte("welcome"), 1)

	f := ix.Reindex(context.Background(), uri, content)
	require.NoError(t, f.ParseError)

	_, ok := idx.Definition(`App\User->welcome()`)
	assert.True(t, ok)

	_, ok = idx.Definition(`App\User->greet()`)
	assert.False(t, ok)

	// Controller still refers to the old name until it is reindexed.
	assert.Len(t, idx.References(`App\User->greet()`), 1)
}

func TestIndexer_ReindexSwapsAtomically(t *testing.T) {
	t.Parallel()

	_, cfg := newProject(t)
	idx := index.New()
	ix := workspace.NewIndexer(workspace.NewLoader(cfg), idx)

	const uri = "file:///swap.php"

	versions := [][]byte{
		[]byte("<?php\nclass One {}\nnew One();\n"),
		[]byte("<?php\nclass Two {}\nnew Two();\n"),
	}

	ix.Reindex(context.Background(), uri, versions[0])

	var (
		stop  atomic.Bool
		mixed atomic.Int64
		wg    sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for !stop.Load() {
			snap := idx.Snapshot()
			_, one := snap.Definitions["One"]
			_, two := snap.Definitions["Two"]

			if (one && len(snap.References["Two"]) > 0) || (two && len(snap.References["One"]) > 0) {
				mixed.Add(1)
			}
		}
	}()

	for i := range 200 {
		ix.Reindex(context.Background(), uri, versions[i%2])
	}

	stop.Store(true)
	wg.Wait()

	assert.Zero(t, mixed.Load(), "snapshots mixed definitions and references of different versions")
	assert.NotEmpty(t, idx.References("Two"))
	assert.Empty(t, idx.References("One"))
}

func TestIndexer_Cancelled(t *testing.T) {
	t.Parallel()

	_, cfg := newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := workspace.NewIndexer(workspace.NewLoader(cfg), index.New()).IndexAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteMetrics(t *testing.T) {
	t.Parallel()

	_, cfg := newProject(t)

	_, err := workspace.NewIndexer(workspace.NewLoader(cfg), index.New()).IndexAll(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, workspace.WriteMetrics(&buf))

	out := buf.String()
	assert.Contains(t, out, "phpintel_files_analyzed_total")
	assert.Contains(t, out, `phase="definitions"`)
	assert.Contains(t, out, "phpintel_analysis_seconds_bucket")
	assert.Contains(t, out, "phpintel_index_definitions")
}
