package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/rlch/phpintel/lsp"
)

const completionPHP = `<?php
namespace App;

class Greeter
{
    const PREFIX = 'Hi';

    public string $name = '';

    public function __construct()
    {
    }

    public function greet(): string
    {
        return self::PREFIX;
    }

    public static function make(): self
    {
        return new self();
    }
}

function main(): void
{
    $greeter = new Greeter();
    $greeter->gr;
    Greeter::ma();
    $gre;
    Gree;
}
`

const completionURI = protocol.DocumentURI("file:///app/completion.php")

func complete(t *testing.T, server *lsp.Server, pos protocol.Position) []protocol.CompletionItem {
	t.Helper()

	list, err := server.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: textDocumentPosition(completionURI, pos),
	})
	require.NoError(t, err)
	require.NotNil(t, list)

	return list.Items
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}

	return out
}

func TestServer_Completion_Members(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, completionURI, completionPHP)

	items := complete(t, server, positionOf(t, completionPHP, "$greeter->gr", len("$greeter->")))
	got := labels(items)

	assert.Contains(t, got, "greet")
	assert.Contains(t, got, "name")
	assert.NotContains(t, got, "make")
	assert.NotContains(t, got, "__construct")

	for _, item := range items {
		if item.Label == "greet" {
			assert.Equal(t, protocol.CompletionItemKindMethod, item.Kind)
			assert.Equal(t, "function greet(): string", item.Detail)
		}
	}
}

func TestServer_Completion_Static(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, completionURI, completionPHP)

	got := labels(complete(t, server, positionOf(t, completionPHP, "Greeter::ma", len("Greeter::"))))

	assert.Contains(t, got, "make")
	assert.Contains(t, got, "PREFIX")
	assert.Contains(t, got, "class")
}

func TestServer_Completion_Variables(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, completionURI, completionPHP)

	got := labels(complete(t, server, positionOf(t, completionPHP, "$gre;", len("$gre"))))

	assert.Contains(t, got, "$greeter")
	assert.NotContains(t, got, "$this")
}

func TestServer_Completion_Names(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, completionURI, completionPHP)

	items := complete(t, server, positionOf(t, completionPHP, "Gree;", len("Gree")))

	var found bool

	for _, item := range items {
		if item.Label == "Greeter" {
			found = true

			assert.Equal(t, protocol.CompletionItemKindClass, item.Kind)
			assert.Equal(t, `App\Greeter`, item.Detail)
		}
	}

	assert.True(t, found, "Greeter not offered: %v", labels(items))
}

func TestServer_Completion_NoDocument(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	list, err := server.Completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: textDocumentPosition("file:///missing.php", protocol.Position{}),
	})
	require.NoError(t, err)
	assert.Nil(t, list)
}
