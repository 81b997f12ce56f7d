package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestServer_Definition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cursor protocol.Position
		want   protocol.Position
	}{
		{
			name:   "class in new expression",
			cursor: positionOf(t, greeterPHP, "new Greeter", 5),
			want:   positionOf(t, greeterPHP, "class Greeter", 6),
		},
		{
			name:   "method call",
			cursor: positionOf(t, greeterPHP, "$g->greet", 5),
			want:   positionOf(t, greeterPHP, "function greet", 9),
		},
		{
			name:   "local variable",
			cursor: positionOf(t, greeterPHP, "str_repeat($message", 12),
			want:   positionOf(t, greeterPHP, "$message =", 0),
		},
	}

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs, err := server.Definition(context.Background(), &protocol.DefinitionParams{
				TextDocumentPositionParams: textDocumentPosition(greeterURI, tt.cursor),
			})
			require.NoError(t, err)
			require.Len(t, locs, 1)

			assert.Equal(t, greeterURI, locs[0].URI)
			assert.Equal(t, tt.want, locs[0].Range.Start)
		})
	}
}

func TestServer_Definition_CrossFile(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	content := `<?php
use App\Greeter;

$greeter = Greeter::make();
`
	uri := protocol.DocumentURI("file:///app/index.php")
	didOpen(t, server, uri, content)

	locs, err := server.Definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: textDocumentPosition(uri, positionOf(t, content, "make()", 1)),
	})
	require.NoError(t, err)
	require.Len(t, locs, 1)

	assert.Equal(t, greeterURI, locs[0].URI)
	assert.Equal(t, positionOf(t, greeterPHP, "function make", 9), locs[0].Range.Start)
}

func TestServer_Definition_NoResult(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	// Whitespace between declarations.
	locs, err := server.Definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: textDocumentPosition(greeterURI, protocol.Position{Line: 2, Character: 0}),
	})
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestServer_Definition_NoDocument(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	locs, err := server.Definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: textDocumentPosition("file:///missing.php", protocol.Position{}),
	})
	require.NoError(t, err)
	assert.Nil(t, locs)
}
