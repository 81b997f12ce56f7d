package lsp_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

// outline flattens document symbols to "kind name" lines, indented by depth.
func outline(symbols []protocol.DocumentSymbol, indent string) []string {
	var out []string

	for _, sym := range symbols {
		out = append(out, indent+sym.Kind.String()+" "+sym.Name)
		out = append(out, outline(sym.Children, indent+"  ")...)
	}

	return out
}

func TestServer_DocumentSymbol(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	result, err := server.DocumentSymbol(context.Background(), &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: greeterURI},
	})
	require.NoError(t, err)

	symbols := make([]protocol.DocumentSymbol, 0, len(result))
	for _, r := range result {
		sym, ok := r.(protocol.DocumentSymbol)
		require.True(t, ok)

		symbols = append(symbols, sym)
	}

	want := []string{
		"Namespace App",
		"Class Greeter",
		"  Method greet",
		"  Method make",
		"Function main",
	}

	if diff := cmp.Diff(want, outline(symbols, "")); diff != "" {
		t.Errorf("outline mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_DocumentSymbol_NoDocument(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	result, err := server.DocumentSymbol(context.Background(), &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.php"},
	})
	require.NoError(t, err)
	require.Nil(t, result)
}
