package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// varsAt returns the types of every variable visible where the named variable is echoed.
func varsAt(t *testing.T, src, marker string) map[string]analysis.Type {
	t.Helper()

	f := analysis.NewAnalyzer(nil).Analyze("file:///t.php", []byte(src))
	require.NoError(t, f.ParseError)

	scope := analysis.ScopeAt(f, positionOf(t, f, src, marker, len(marker)-1))

	out := make(map[string]analysis.Type, len(scope.Vars))
	for name, v := range scope.Vars {
		out[name] = v.Type
	}

	return out
}

func TestTraverse_AssignmentBindsAfterExpression(t *testing.T) {
	t.Parallel()

	src := `<?php
$a = 1;
$a = $a . 'x';
echo $a;
`
	vars := varsAt(t, src, "echo $a")
	assert.Equal(t, analysis.TypeString, vars["a"])
}

func TestTraverse_DocVarOverridesAssignment(t *testing.T) {
	t.Parallel()

	src := `<?php
namespace App;

/** @var User $user */
$user = find();
echo $user;
`
	vars := varsAt(t, src, "echo $user")
	assert.Equal(t, analysis.Type(`\App\User`), vars["user"])
}

func TestTraverse_Foreach(t *testing.T) {
	t.Parallel()

	src := `<?php
/** @param Item[] $items */
function f(array $items, $plain)
{
    foreach ($items as $key => $item) {
        echo $item;
    }

    /** @var Row $row */
    foreach ($plain as $row) {
        echo $row;
    }
}
`
	vars := varsAt(t, src, "echo $item")
	assert.Equal(t, analysis.TypeArray, vars["items"])
	assert.Equal(t, analysis.TypeMixed, vars["key"])
	assert.Equal(t, analysis.TypeMixed, vars["item"], "declared array type hint wins over @param")

	vars = varsAt(t, src, "echo $row")
	assert.Equal(t, analysis.Type(`\Row`), vars["row"])
}

func TestTraverse_ForeachElementType(t *testing.T) {
	t.Parallel()

	src := `<?php
/** @param list<Item> $items */
function f($items)
{
    foreach ($items as $item) {
        echo $item;
    }
}
`
	vars := varsAt(t, src, "echo $item")
	assert.Equal(t, analysis.Type(`\Item[]`), vars["items"])
	assert.Equal(t, analysis.Type(`\Item`), vars["item"])
}

func TestTraverse_FunctionScopesAreIsolated(t *testing.T) {
	t.Parallel()

	src := `<?php
$outer = 1;

function inner($p)
{
    echo $p;
}
`
	vars := varsAt(t, src, "echo $p")
	assert.Contains(t, vars, "p")
	assert.NotContains(t, vars, "outer")
}

func TestTraverse_SkipAndStop(t *testing.T) {
	t.Parallel()

	src := `<?php
function a() { $x = 1; }
function b() { $y = 2; }
$z = 3;
`
	f := analysis.NewAnalyzer(nil).Analyze("file:///t.php", []byte(src))
	r := f.Resolver()

	var visited []string

	completed := r.Traverse(f.Tree.Root, func(n *phpintel.Node, s *analysis.Scope) analysis.Action {
		switch n.Kind {
		case phpintel.KindFunctionDefinition:
			if n.ChildByField("name").Text() == "a" {
				return analysis.Skip
			}
		case phpintel.KindVariableName:
			visited = append(visited, n.Text())
		}

		return analysis.Continue
	})

	assert.True(t, completed)
	assert.Equal(t, []string{"$y", "$z"}, visited)

	visited = nil

	completed = r.Traverse(f.Tree.Root, func(n *phpintel.Node, s *analysis.Scope) analysis.Action {
		if n.Kind == phpintel.KindVariableName {
			visited = append(visited, n.Text())

			return analysis.Stop
		}

		return analysis.Continue
	})

	assert.False(t, completed)
	assert.Equal(t, []string{"$x"}, visited)
}

func TestTraverseScope_StartsFromGivenScope(t *testing.T) {
	t.Parallel()

	src := "<?php\necho $given;\n"
	f := analysis.NewAnalyzer(nil).Analyze("file:///t.php", []byte(src))

	start := analysis.NewScope()
	start.Bind("given", &analysis.Variable{Type: analysis.TypeInt})

	var seen analysis.Type

	f.Resolver().TraverseScope(f.Tree.Root, start, func(n *phpintel.Node, s *analysis.Scope) analysis.Action {
		if n.Kind == phpintel.KindVariableName {
			seen = f.Resolver().ResolveExpressionType(n, s)
		}

		return analysis.Continue
	})

	assert.Equal(t, analysis.TypeInt, seen)
}

func TestScope_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	s := analysis.NewScope()
	s.Bind("a", &analysis.Variable{Type: analysis.TypeInt})

	c := s.Clone()
	c.Bind("b", &analysis.Variable{Type: analysis.TypeString})

	_, ok := s.Var("b")
	assert.False(t, ok)

	v, ok := c.Var("$a")
	require.True(t, ok)
	assert.Equal(t, analysis.TypeInt, v.Type)

	var nilScope *analysis.Scope

	_, ok = nilScope.Var("a")
	assert.False(t, ok)
}
