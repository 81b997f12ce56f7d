package lsp_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/lsp"
)

// mockClient implements protocol.Client for testing.
type mockClient struct {
	mu          sync.Mutex
	diagnostics []protocol.PublishDiagnosticsParams
}

func (m *mockClient) PublishDiagnostics(_ context.Context, params *protocol.PublishDiagnosticsParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.diagnostics = append(m.diagnostics, *params)

	return nil
}

// last returns the most recent diagnostics published for uri.
func (m *mockClient) last(uri protocol.DocumentURI) (protocol.PublishDiagnosticsParams, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.diagnostics) - 1; i >= 0; i-- {
		if m.diagnostics[i].URI == uri {
			return m.diagnostics[i], true
		}
	}

	return protocol.PublishDiagnosticsParams{}, false
}

// Stub out remaining Client interface methods.
func (m *mockClient) Progress(context.Context, *protocol.ProgressParams) error { return nil }
func (m *mockClient) WorkDoneProgressCreate(context.Context, *protocol.WorkDoneProgressCreateParams) error {
	return nil
}
func (m *mockClient) ShowMessage(context.Context, *protocol.ShowMessageParams) error { return nil }
func (m *mockClient) ShowMessageRequest(
	context.Context, *protocol.ShowMessageRequestParams,
) (*protocol.MessageActionItem, error) {
	return nil, nil //nolint:nilnil // Mock stub returns nil for tests
}
func (m *mockClient) LogMessage(context.Context, *protocol.LogMessageParams) error { return nil }
func (m *mockClient) Telemetry(context.Context, any) error                         { return nil }
func (m *mockClient) RegisterCapability(context.Context, *protocol.RegistrationParams) error {
	return nil
}
func (m *mockClient) UnregisterCapability(context.Context, *protocol.UnregistrationParams) error {
	return nil
}
func (m *mockClient) ApplyEdit(context.Context, *protocol.ApplyWorkspaceEditParams) (bool, error) {
	return false, nil
}
func (m *mockClient) Configuration(context.Context, *protocol.ConfigurationParams) ([]any, error) {
	return nil, nil
}
func (m *mockClient) WorkspaceFolders(context.Context) ([]protocol.WorkspaceFolder, error) {
	return nil, nil
}

// greeterPHP is shared by most handler tests.
const greeterPHP = `<?php
namespace App;

/**
 * Greets people.
 */
class Greeter
{
    public function greet(string $name, int $times = 1): string
    {
        $message = 'Hello ' . $name;

        return str_repeat($message, $times);
    }

    public static function make(): self
    {
        return new self();
    }
}

function main(): void
{
    $g = new Greeter();
    $g->greet('world');
}
`

const greeterURI = protocol.DocumentURI("file:///app/Greeter.php")

func newTestServer(t *testing.T) (*lsp.Server, *mockClient) {
	t.Helper()

	logger := zap.NewNop()
	client := &mockClient{}
	server := lsp.NewServer(client, logger)

	t.Cleanup(func() { _ = server.Close() })

	return server, client
}

// openDocument initializes the server without a workspace and opens one document.
func openDocument(t *testing.T, server *lsp.Server, uri protocol.DocumentURI, content string) {
	t.Helper()

	ctx := context.Background()

	_, err := server.Initialize(ctx, &protocol.InitializeParams{})
	require.NoError(t, err)
	require.NoError(t, server.Initialized(ctx, &protocol.InitializedParams{}))

	didOpen(t, server, uri, content)
}

func didOpen(t *testing.T, server *lsp.Server, uri protocol.DocumentURI, content string) {
	t.Helper()

	err := server.DidOpen(context.Background(), &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: "php",
			Version:    1,
			Text:       content,
		},
	})
	require.NoError(t, err)
}

// positionOf returns the LSP position delta bytes into the first occurrence of needle.
func positionOf(t *testing.T, content, needle string, delta int) protocol.Position {
	t.Helper()

	i := strings.Index(content, needle)
	require.GreaterOrEqual(t, i, 0, "%q not found", needle)

	offset := i + delta
	line := strings.Count(content[:offset], "\n")
	col := offset - (strings.LastIndex(content[:offset], "\n") + 1)

	return protocol.Position{Line: uint32(line), Character: uint32(col)} //nolint:gosec
}

func textDocumentPosition(uri protocol.DocumentURI, pos protocol.Position) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
}

func TestServer_Initialize(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	result, err := server.Initialize(context.Background(), &protocol.InitializeParams{})
	require.NoError(t, err)

	assert.NotNil(t, result.Capabilities.TextDocumentSync)

	hoverEnabled, ok := result.Capabilities.HoverProvider.(bool)
	assert.True(t, ok && hoverEnabled, "HoverProvider not enabled")

	require.NotNil(t, result.Capabilities.CompletionProvider)
	assert.Contains(t, result.Capabilities.CompletionProvider.TriggerCharacters, "$")
	assert.Contains(t, result.Capabilities.CompletionProvider.TriggerCharacters, ">")

	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "phpintel-lsp", result.ServerInfo.Name)
}

func TestServer_DidOpen_ValidFile(t *testing.T) {
	t.Parallel()

	server, client := newTestServer(t)
	openDocument(t, server, greeterURI, greeterPHP)

	diags, ok := client.last(greeterURI)
	require.True(t, ok, "expected diagnostics to be published")
	assert.Empty(t, diags.Diagnostics)
	assert.Equal(t, uint32(1), diags.Version)
}

func TestServer_DidOpen_ThisInStaticMethod(t *testing.T) {
	t.Parallel()

	server, client := newTestServer(t)

	content := `<?php
class A
{
    public static function f()
    {
        return $this->x;
    }
}
`
	uri := protocol.DocumentURI("file:///a.php")
	openDocument(t, server, uri, content)

	diags, ok := client.last(uri)
	require.True(t, ok)
	require.Len(t, diags.Diagnostics, 1)

	d := diags.Diagnostics[0]
	assert.Equal(t, "this-usage", d.Code)
	assert.Equal(t, analysis.MsgThisInStaticMethod, d.Message)
	assert.Equal(t, protocol.DiagnosticSeverityError, d.Severity)
	assert.Equal(t, positionOf(t, content, "$this", 0).Line, d.Range.Start.Line)
}

func TestServer_DidChange_Reanalyzes(t *testing.T) {
	t.Parallel()

	server, client := newTestServer(t)
	uri := protocol.DocumentURI("file:///a.php")
	openDocument(t, server, uri, "<?php\nclass A {}\n")

	err := server.DidChange(context.Background(), &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Text: "<?php\nfunction f() { return $this; }\n"},
		},
	})
	require.NoError(t, err)

	diags, ok := client.last(uri)
	require.True(t, ok)
	assert.Equal(t, uint32(2), diags.Version)
	require.Len(t, diags.Diagnostics, 1)
	assert.Equal(t, analysis.MsgThisOutsideObject, diags.Diagnostics[0].Message)

	_, found := server.Index().Definition("A")
	assert.False(t, found, "old definitions should be replaced")

	_, found = server.Index().Definition("f()")
	assert.True(t, found)
}

func TestServer_DidClose_ClearsDiagnostics(t *testing.T) {
	t.Parallel()

	server, client := newTestServer(t)
	uri := protocol.DocumentURI("file:///a.php")
	openDocument(t, server, uri, "<?php\necho $this;\n")

	err := server.DidClose(context.Background(), &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)

	diags, ok := client.last(uri)
	require.True(t, ok)
	assert.Empty(t, diags.Diagnostics)

	// Not part of a workspace, so the file leaves the index.
	assert.NotContains(t, server.Index().Files(), string(uri))
}

func TestServer_IndexesWorkspace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "User.php"), "<?php\nnamespace App;\n\nclass User\n{\n}\n")
	writeFile(t, filepath.Join(dir, "src", "helpers.php"), "<?php\nnamespace App;\n\nfunction user(): User\n{\n    return new User();\n}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# not php\n")

	server, _ := newTestServer(t)
	ctx := context.Background()

	_, err := server.Initialize(ctx, &protocol.InitializeParams{
		RootURI: protocol.DocumentURI(phpintel.PathToURI(dir)),
	})
	require.NoError(t, err)
	require.NoError(t, server.Initialized(ctx, &protocol.InitializedParams{}))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	require.NoError(t, server.WaitIndexed(waitCtx))

	def, ok := server.Index().Definition(`App\User`)
	require.True(t, ok)
	assert.Equal(t, phpintel.PathToURI(filepath.Join(dir, "src", "User.php")), def.Location.URI)

	_, ok = server.Index().Definition(`App\user()`)
	assert.True(t, ok)

	assert.NotEmpty(t, server.Index().References(`App\User`))

	require.NoError(t, server.Shutdown(ctx))
}

// openWorkspace initializes the server on dir and waits for the initial indexing.
func openWorkspace(t *testing.T, server *lsp.Server, dir string) {
	t.Helper()

	ctx := context.Background()

	_, err := server.Initialize(ctx, &protocol.InitializeParams{
		RootURI: protocol.DocumentURI(phpintel.PathToURI(dir)),
	})
	require.NoError(t, err)
	require.NoError(t, server.Initialized(ctx, &protocol.InitializedParams{}))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	require.NoError(t, server.WaitIndexed(waitCtx))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestServer_CloseStopsWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".phpintel.yaml"), "watch: true\ncache:\n  driver: none\n")
	writeFile(t, filepath.Join(dir, "a.php"), "<?php\nclass A {}\n")

	server, _ := newTestServer(t)
	openWorkspace(t, server, dir)

	require.NotNil(t, server.Watcher())

	require.NoError(t, server.Close())
	assert.Nil(t, server.Watcher())
	require.NoError(t, server.Close())
}

func TestServer_CloseDuringIndexingLeavesNoWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".phpintel.yaml"), "watch: true\ncache:\n  driver: none\n")

	for i := range 50 {
		writeFile(t, filepath.Join(dir, "src", fmt.Sprintf("C%d.php", i)), fmt.Sprintf("<?php\nclass C%d {}\n", i))
	}

	ctx := context.Background()
	server, _ := newTestServer(t)

	_, err := server.Initialize(ctx, &protocol.InitializeParams{
		RootURI: protocol.DocumentURI(phpintel.PathToURI(dir)),
	})
	require.NoError(t, err)
	require.NoError(t, server.Initialized(ctx, &protocol.InitializedParams{}))
	require.NoError(t, server.Close())

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	require.NoError(t, server.WaitIndexed(waitCtx))
	assert.Nil(t, server.Watcher())
}
