package lsp_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/rlch/phpintel"
)

// lintConfig enables the optional unused-import rule.
const lintConfig = "rules: [unused-import]\ncache:\n  driver: none\n"

func codeActions(t *testing.T, content string) ([]protocol.CodeAction, protocol.DocumentURI) {
	t.Helper()

	return codeActionsWithConfig(t, lintConfig, content)
}

func codeActionsWithConfig(t *testing.T, config, content string) ([]protocol.CodeAction, protocol.DocumentURI) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".phpintel.yaml"), config)

	uri := protocol.DocumentURI(phpintel.PathToURI(filepath.Join(dir, "actions.php")))

	server, _ := newTestServer(t)
	openWorkspace(t, server, dir)
	didOpen(t, server, uri, content)

	actions, err := server.CodeAction(context.Background(), &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Range: protocol.Range{
			Start: protocol.Position{Line: 0, Character: 0},
			End:   protocol.Position{Line: 100, Character: 0},
		},
	})
	require.NoError(t, err)

	return actions, uri
}

func TestServer_CodeAction_ThisInStaticMethod(t *testing.T) {
	t.Parallel()

	content := `<?php
class A
{
    public static function f()
    {
        return $this->x;
    }
}
`
	actions, uri := codeActions(t, content)
	require.Len(t, actions, 1)

	action := actions[0]
	assert.Equal(t, "Make method non-static", action.Title)
	assert.Equal(t, protocol.QuickFix, action.Kind)
	require.Len(t, action.Diagnostics, 1)
	assert.Equal(t, "this-usage", action.Diagnostics[0].Code)

	require.NotNil(t, action.Edit)
	assert.Equal(t, []protocol.TextEdit{{
		Range: protocol.Range{
			Start: positionOf(t, content, "static function", 0),
			End:   positionOf(t, content, "static function", len("static ")),
		},
	}}, action.Edit.Changes[uri])
}

func TestServer_CodeAction_UnusedImport(t *testing.T) {
	t.Parallel()

	content := `<?php
namespace App;

use Lib\Used;
use Lib\Unused;

new Used();
`
	actions, uri := codeActions(t, content)
	require.Len(t, actions, 1)

	action := actions[0]
	assert.Equal(t, "Remove unused import", action.Title)
	require.NotNil(t, action.Edit)

	// The whole line goes.
	assert.Equal(t, []protocol.TextEdit{{
		Range: protocol.Range{
			Start: protocol.Position{Line: 4, Character: 0},
			End:   protocol.Position{Line: 5, Character: 0},
		},
	}}, action.Edit.Changes[uri])
}

func TestServer_CodeAction_UnusedImportInList(t *testing.T) {
	t.Parallel()

	content := `<?php
namespace App;

use Lib\Used, Lib\Unused;

new Used();
`
	actions, uri := codeActions(t, content)
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].Edit)

	assert.Equal(t, []protocol.TextEdit{{
		Range: protocol.Range{
			Start: positionOf(t, content, `, Lib\Unused`, 0),
			End:   positionOf(t, content, `, Lib\Unused`, len(`, Lib\Unused`)),
		},
	}}, actions[0].Edit.Changes[uri])
}

func TestServer_CodeAction_NoDiagnostics(t *testing.T) {
	t.Parallel()

	actions, _ := codeActions(t, greeterPHP)
	assert.Empty(t, actions)
}

func TestServer_CodeAction_UnusedImportRuleOffByDefault(t *testing.T) {
	t.Parallel()

	content := `<?php
namespace App;

use Lib\Unused;
`
	actions, _ := codeActionsWithConfig(t, "cache:\n  driver: none\n", content)
	assert.Empty(t, actions)
}
