package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/rlch/phpintel/lsp"
)

func references(t *testing.T, server *lsp.Server, uri protocol.DocumentURI, pos protocol.Position, includeDecl bool) []protocol.Location {
	t.Helper()

	locs, err := server.References(context.Background(), &protocol.ReferenceParams{
		TextDocumentPositionParams: textDocumentPosition(uri, pos),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: includeDecl},
	})
	require.NoError(t, err)

	return locs
}

func TestServer_References_Method(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	// From the declaration.
	locs := references(t, server, greeterURI, positionOf(t, greeterPHP, "function greet", 10), true)
	require.Len(t, locs, 2)
	assert.Equal(t, positionOf(t, greeterPHP, "function greet", 9), locs[0].Range.Start)
	assert.Equal(t, positionOf(t, greeterPHP, "$g->greet", 4), locs[1].Range.Start)

	locs = references(t, server, greeterURI, positionOf(t, greeterPHP, "$g->greet", 5), false)
	require.Len(t, locs, 1)
	assert.Equal(t, positionOf(t, greeterPHP, "$g->greet", 4), locs[0].Range.Start)
}

func TestServer_References_CrossFile(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	content := `<?php
use App\Greeter;

$greeter = new Greeter();
`
	uri := protocol.DocumentURI("file:///app/index.php")
	didOpen(t, server, uri, content)

	locs := references(t, server, greeterURI, positionOf(t, greeterPHP, "class Greeter", 7), false)

	var uris []protocol.DocumentURI
	for _, loc := range locs {
		uris = append(uris, loc.URI)
	}

	assert.Contains(t, uris, greeterURI)
	assert.Contains(t, uris, uri)
}

func TestServer_References_Variable(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	locs := references(t, server, greeterURI, positionOf(t, greeterPHP, "str_repeat($message", 12), true)
	require.Len(t, locs, 2)

	locs = references(t, server, greeterURI, positionOf(t, greeterPHP, "str_repeat($message", 12), false)
	require.Len(t, locs, 1)
	assert.Equal(t, positionOf(t, greeterPHP, "str_repeat($message", 11), locs[0].Range.Start)
}
