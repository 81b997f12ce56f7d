package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

func TestGroupImports(t *testing.T) {
	t.Parallel()

	src := `<?php
namespace App;

use Lib\Models\{User, Post as Article};
use function Lib\Util\{first, last};
use Lib\{Collection, function collect, const VERSION};

$x = 1;
`
	f := analysis.NewAnalyzer(nil).Analyze("file:///g.php", []byte(src))
	r := f.Resolver()
	at := assigned(t, f, "$x")

	assert.Equal(t, `Lib\Models\User`, r.ResolveClassName("User", at, nil))
	assert.Equal(t, `Lib\Models\Post`, r.ResolveClassName("Article", at, nil))
	assert.Equal(t, `App\Post`, r.ResolveClassName("Post", at, nil))
	assert.Equal(t, `Lib\Util\first`, r.ResolveFunctionName("first", at, nil))
	assert.Equal(t, `Lib\Util\last`, r.ResolveFunctionName("LAST", at, nil))
	assert.Equal(t, `Lib\Collection`, r.ResolveClassName("Collection", at, nil))
	assert.Equal(t, `Lib\collect`, r.ResolveFunctionName("collect", at, nil))
	assert.Equal(t, `Lib\VERSION`, r.ResolveConstantName("VERSION", at, nil))
}

func TestGroupImports_Unused(t *testing.T) {
	t.Parallel()

	result := lint(t, `<?php
namespace App;

use Lib\Models\{User, Post};

new User();
`)

	diags := diagnosticsWithCode(result, "unused-import")
	require.Len(t, diags, 1)
	assert.Equal(t, `unused import Lib\Models\Post`, diags[0].Message)
}

func TestImports_ReferencedTargets(t *testing.T) {
	t.Parallel()

	src := `<?php
use Lib\Models\{User};
use function Lib\fn1;
`
	f := analysis.NewAnalyzer(nil).Analyze("file:///g.php", []byte(src))

	var targets []string
	for _, ref := range f.References {
		targets = append(targets, ref.Target)
	}

	assert.Equal(t, []string{`Lib\Models\User`, `Lib\fn1()`}, targets)
}

func TestNameClassification(t *testing.T) {
	t.Parallel()

	src := `<?php
define('GREETING', 'hi');
define($dynamic, 1);
static fn () => 1;
$this;
`
	f := analysis.NewAnalyzer(nil).Analyze("file:///c.php", []byte(src))

	var defines, statics, this int

	f.Tree.Root.Walk(func(n *phpintel.Node) bool {
		if analysis.IsConstantDefinition(n) {
			defines++
		}

		if n.Kind.IsFunctionLike() && analysis.IsStatic(n) {
			statics++
		}

		if analysis.IsThisVariable(n) {
			this++
		}

		return true
	})

	assert.Equal(t, 1, defines)
	assert.Equal(t, 1, statics)
	assert.Equal(t, 1, this)

	_, ok := f.Definition("GREETING")
	assert.True(t, ok)
}
