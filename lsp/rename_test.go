package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/rlch/phpintel/lsp"
)

func TestServer_PrepareRename(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	rng, err := server.PrepareRename(context.Background(), &protocol.PrepareRenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "new Greeter", 6)),
	})
	require.NoError(t, err)
	require.NotNil(t, rng)
	assert.Equal(t, rangeOf(t, greeterPHP, "new Greeter", 4, len("Greeter")), *rng)

	// Namespaces are not renamed.
	rng, err = server.PrepareRename(context.Background(), &protocol.PrepareRenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "namespace App", 10)),
	})
	require.NoError(t, err)
	assert.Nil(t, rng)
}

func TestServer_Rename_Method(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	edit, err := server.Rename(context.Background(), &protocol.RenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "$g->greet", 5)),
		NewName:                    "welcome",
	})
	require.NoError(t, err)
	require.NotNil(t, edit)

	assert.ElementsMatch(t, []protocol.TextEdit{
		{Range: rangeOf(t, greeterPHP, "function greet", 9, len("greet")), NewText: "welcome"},
		{Range: rangeOf(t, greeterPHP, "$g->greet", 4, len("greet")), NewText: "welcome"},
	}, edit.Changes[greeterURI])
}

func TestServer_Rename_Variable(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	edit, err := server.Rename(context.Background(), &protocol.RenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "str_repeat($message", 12)),
		NewName:                    "$msg",
	})
	require.NoError(t, err)
	require.NotNil(t, edit)

	// The "$" sigil stays in place.
	assert.Equal(t, []protocol.TextEdit{
		{Range: rangeOf(t, greeterPHP, "$message =", 1, len("message")), NewText: "msg"},
		{Range: rangeOf(t, greeterPHP, "str_repeat($message", 12, len("message")), NewText: "msg"},
	}, edit.Changes[greeterURI])
}

func TestServer_Rename_CrossFile(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	content := `<?php
use App\Greeter;

$greeter = new Greeter();
`
	uri := protocol.DocumentURI("file:///app/index.php")
	didOpen(t, server, uri, content)

	edit, err := server.Rename(context.Background(), &protocol.RenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "class Greeter", 7)),
		NewName:                    "Welcomer",
	})
	require.NoError(t, err)
	require.NotNil(t, edit)

	assert.ElementsMatch(t, []protocol.TextEdit{
		{Range: rangeOf(t, content, `App\Greeter`, 4, len("Greeter")), NewText: "Welcomer"},
		{Range: rangeOf(t, content, "new Greeter", 4, len("Greeter")), NewText: "Welcomer"},
	}, edit.Changes[uri])

	assert.Contains(t, edit.Changes[greeterURI], protocol.TextEdit{
		Range:   rangeOf(t, greeterPHP, "class Greeter", 6, len("Greeter")),
		NewText: "Welcomer",
	})
}

func TestServer_Rename_InvalidName(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	_, err := server.Rename(context.Background(), &protocol.RenameParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, positionOf(t, greeterPHP, "$g->greet", 5)),
		NewName:                    "1nvalid name",
	})
	require.ErrorIs(t, err, lsp.ErrInvalidName)
}
