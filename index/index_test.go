package index_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/index"
)

const userPHP = `<?php
namespace App;

class User
{
    public string $name;

    public function greet(): string
    {
        return 'hi ' . $this->name;
    }
}
`

const controllerPHP = `<?php
namespace App;

function controller(User $u): string
{
    return $u->greet();
}
`

// indexFile runs both analysis phases for one file against x and stores the result.
func indexFile(t *testing.T, x *index.Index, uri, src string) {
	t.Helper()

	analyzer := analysis.NewAnalyzer(x)

	f := analyzer.AnalyzeDefinitions(uri, []byte(src))
	require.NoError(t, f.ParseError)
	x.ReplaceDefinitions(uri, f.Definitions)

	analyzer.CollectReferences(f, []byte(src))
	x.ReplaceReferences(uri, f.References)
}

func TestIndex_ReindexIsIdempotent(t *testing.T) {
	t.Parallel()

	x := index.New()
	indexFile(t, x, "file:///user.php", userPHP)
	indexFile(t, x, "file:///controller.php", controllerPHP)

	before := x.Snapshot()

	indexFile(t, x, "file:///user.php", userPHP)
	indexFile(t, x, "file:///user.php", userPHP)

	if diff := cmp.Diff(before, x.Snapshot()); diff != "" {
		t.Errorf("re-indexing changed the index (-before +after):\n%s", diff)
	}
}

func TestIndex_CrossFileReferences(t *testing.T) {
	t.Parallel()

	x := index.New()
	indexFile(t, x, "file:///user.php", userPHP)
	indexFile(t, x, "file:///controller.php", controllerPHP)

	refs := x.References(`App\User->greet()`)
	require.Len(t, refs, 1)
	assert.Equal(t, "file:///controller.php", refs[0].URI)
	assert.Nil(t, refs[0].Node)

	refs = x.References(`App\User`)
	require.Len(t, refs, 1)
	assert.Equal(t, 3, refs[0].Span.Start.Line)

	// Self references inside the defining file.
	refs = x.References(`App\User->name`)
	require.Len(t, refs, 1)
	assert.Equal(t, "file:///user.php", refs[0].URI)
}

func TestIndex_LastWriteWinsAndRemoveFile(t *testing.T) {
	t.Parallel()

	x := index.New()

	x.UpsertDefinition(`App\Dup`, def(`App\Dup`, "file:///a.php"))
	x.UpsertDefinition(`App\Dup`, def(`App\Dup`, "file:///b.php"))

	d, ok := x.Definition(`App\Dup`)
	require.True(t, ok)
	assert.Equal(t, "file:///b.php", d.Location.URI)

	x.RemoveFile("file:///b.php")

	d, ok = x.Definition(`App\Dup`)
	require.True(t, ok)
	assert.Equal(t, "file:///a.php", d.Location.URI)

	x.RemoveFile("file:///a.php")

	_, ok = x.Definition(`App\Dup`)
	assert.False(t, ok)
	assert.Zero(t, x.Len())
	assert.Empty(t, x.Files())
}

func TestIndex_ReplaceFileKeepsStackPosition(t *testing.T) {
	t.Parallel()

	const a, b = "file:///a.php", "file:///b.php"

	x := index.New()
	x.ReplaceFile(a, []*analysis.Definition{ptr(def(`App`, a)), ptr(def(`App\A`, a))}, nil)
	x.ReplaceFile(b, []*analysis.Definition{ptr(def(`App`, b)), ptr(def(`App\B`, b))}, nil)

	visible := func() string {
		t.Helper()

		d, ok := x.Definition(`App`)
		require.True(t, ok)

		return d.Location.URI
	}

	require.Equal(t, b, visible())
	before := x.Snapshot()

	// Re-indexing the file underneath leaves the visible definition alone.
	x.ReplaceFile(a, []*analysis.Definition{ptr(def(`App`, a)), ptr(def(`App\A`, a))}, nil)
	x.ReplaceDefinitions(a, []*analysis.Definition{ptr(def(`App`, a)), ptr(def(`App\A`, a))})

	if diff := cmp.Diff(before, x.Snapshot()); diff != "" {
		t.Errorf("re-indexing changed the index (-before +after):\n%s", diff)
	}

	// Dropping the FQN uncovers the other file; declaring it again puts it on top.
	x.ReplaceFile(b, []*analysis.Definition{ptr(def(`App\B`, b))}, nil)
	assert.Equal(t, a, visible())

	x.ReplaceFile(b, []*analysis.Definition{ptr(def(`App`, b)), ptr(def(`App\B`, b))}, nil)
	assert.Equal(t, b, visible())

	// Upserting from the lower file also keeps its place.
	x.UpsertDefinition(`App`, def(`App`, a))
	assert.Equal(t, b, visible())
}

func TestIndex_UpsertReplacesSameFile(t *testing.T) {
	t.Parallel()

	x := index.New()

	first := def(`f()`, "file:///a.php")
	first.Type = analysis.TypeInt
	x.UpsertDefinition(`f()`, first)

	second := def(`f()`, "file:///a.php")
	second.Type = analysis.TypeString
	x.UpsertDefinition(`f()`, second)

	defs := x.Definitions("file:///a.php")
	require.Len(t, defs, 1)
	assert.Equal(t, analysis.TypeString, defs[0].Type)
}

func TestIndex_ValuesAreCopies(t *testing.T) {
	t.Parallel()

	x := index.New()

	d := def(`App\A`, "file:///a.php")
	d.Extends = []string{`App\Base`}
	x.UpsertDefinition(`App\A`, d)

	d.Extends[0] = "mutated"

	got, _ := x.Definition(`App\A`)
	assert.Equal(t, []string{`App\Base`}, got.Extends)

	got.Extends[0] = "mutated again"

	again, _ := x.Definition(`App\A`)
	assert.Equal(t, []string{`App\Base`}, again.Extends)
}

func TestIndex_References(t *testing.T) {
	t.Parallel()

	x := index.New()

	x.AddReference(`f()`, analysis.Reference{URI: "file:///b.php"})
	x.AddReference(`f()`, analysis.Reference{URI: "file:///a.php"})
	x.AddReference("", analysis.Reference{URI: "file:///a.php"})

	refs := x.References(`f()`)
	require.Len(t, refs, 2)
	assert.Equal(t, "file:///a.php", refs[0].URI)
	assert.Equal(t, `f()`, refs[0].Target)

	x.ReplaceReferences("file:///a.php", nil)

	refs = x.References(`f()`)
	require.Len(t, refs, 1)
	assert.Equal(t, "file:///b.php", refs[0].URI)
}

func TestIndex_PrefixAndSearch(t *testing.T) {
	t.Parallel()

	x := index.New()
	x.ReplaceFile("file:///a.php", []*analysis.Definition{
		ptr(def(`App\Models\User`, "")),
		ptr(def(`App\Models\User->name`, "")),
		ptr(def(`App\Models\UserRepository`, "")),
		ptr(def(`App\Http\user()`, "")),
		ptr(def(`Lib\Other`, "")),
	}, nil)

	var fqns []string
	for _, d := range x.Prefix(`App\Models\`) {
		fqns = append(fqns, d.FQN)
		assert.Equal(t, "file:///a.php", d.Location.URI)
	}

	assert.Equal(t, []string{`App\Models\User`, `App\Models\User->name`, `App\Models\UserRepository`}, fqns)

	fqns = nil
	for _, d := range x.Search("user", 0) {
		fqns = append(fqns, d.FQN)
	}

	assert.Equal(t, []string{`App\Http\user()`, `App\Models\User`, `App\Models\UserRepository`}, fqns)
	assert.Len(t, x.Search("user", 1), 1)
	assert.Equal(t, 5, x.Len())
	assert.Equal(t, []string{"file:///a.php"}, x.Files())
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	x := index.New()

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			uri := "file:///" + string(rune('a'+i)) + ".php"

			for range 50 {
				x.ReplaceFile(uri, []*analysis.Definition{ptr(def(`Shared`, uri))}, nil)
				_, _ = x.Definition(`Shared`)
				_ = x.Prefix("S")
			}
		}()
	}

	wg.Wait()

	_, ok := x.Definition(`Shared`)
	assert.True(t, ok)
	assert.Len(t, x.Files(), 8)
}

func def(fqn, uri string) analysis.Definition {
	return analysis.Definition{
		FQN:      fqn,
		Kind:     analysis.SymbolKindClass,
		Location: analysis.Location{URI: uri},
	}
}

func ptr(d analysis.Definition) *analysis.Definition {
	return &d
}
