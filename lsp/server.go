// Package lsp implements a Language Server Protocol server for PHP.
package lsp

import (
	"context"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
	"github.com/rlch/phpintel/cache"
	"github.com/rlch/phpintel/index"
	"github.com/rlch/phpintel/workspace"
)

// Server implements the LSP Server interface for PHP.
type Server struct {
	client protocol.Client
	logger *zap.Logger

	// Document state
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	// Workspace state. The index is shared by every open document and the
	// background indexer.
	cfg     *phpintel.Config
	index   *index.Index
	indexer *workspace.Indexer
	cache   cache.Cache
	watcher *workspace.Watcher

	// indexed is closed once the initial workspace indexing finished.
	indexed chan struct{}
	cancel  context.CancelFunc

	// Server state
	initialized   bool
	shutdown      bool
	closed        bool
	workspaceRoot string
}

// Document represents an open document in the server.
type Document struct {
	URI      protocol.DocumentURI
	Version  int32
	Content  string
	Analysis *analysis.AnalyzedFile

	// LastValidAnalysis holds the most recent analysis that produced a tree.
	// Used for completion when the current document could not be parsed.
	LastValidAnalysis *analysis.AnalyzedFile
}

// NewServer creates a new LSP server. Until Initialize names a workspace
// root, only open documents are indexed.
func NewServer(client protocol.Client, logger *zap.Logger) *Server {
	idx := index.New()
	cfg := phpintel.DefaultConfig("")

	return &Server{
		client:    client,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*Document),
		cfg:       cfg,
		index:     idx,
		indexer:   workspace.NewIndexer(workspace.NewLoader(cfg), idx, workspace.WithLogger(logger)),
		indexed:   make(chan struct{}),
	}
}

// Index returns the server's global index.
func (s *Server) Index() *index.Index {
	return s.index
}

// WaitIndexed blocks until the initial workspace indexing finished.
func (s *Server) WaitIndexed(ctx context.Context) error {
	select {
	case <-s.indexed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialize handles the initialize request.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize", zap.String("rootUri", string(params.RootURI)), zap.String("rootPath", params.RootPath))

	// Extract workspace root from params
	if params.RootURI != "" {
		path, err := phpintel.URIToPath(string(params.RootURI))
		if err != nil {
			s.logger.Warn("Ignoring workspace root", zap.String("rootUri", string(params.RootURI)), zap.Error(err))
		} else {
			s.workspaceRoot = path
		}
	} else if params.RootPath != "" {
		s.workspaceRoot = params.RootPath
	}

	if s.workspaceRoot != "" {
		s.logger.Info("Workspace root", zap.String("root", s.workspaceRoot))
		s.configure(s.workspaceRoot)
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			// Full document sync - client sends entire content on change
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"$", ">", ":", "\\"},
				ResolveProvider:   false,
			},
			// Document symbol support for outline view
			DocumentSymbolProvider:    true,
			DocumentHighlightProvider: true,
			ReferencesProvider:        true,
			RenameProvider: &protocol.RenameOptions{
				PrepareProvider: true,
			},
			// Code actions (quick fixes)
			CodeActionProvider: &protocol.CodeActionOptions{
				CodeActionKinds: []protocol.CodeActionKind{
					protocol.QuickFix,
				},
			},
			// Document links (clickable require/include paths)
			DocumentLinkProvider: &protocol.DocumentLinkOptions{
				ResolveProvider: false,
			},
			WorkspaceSymbolProvider: true,
			FoldingRangeProvider:    true,
			SignatureHelpProvider: &protocol.SignatureHelpOptions{
				TriggerCharacters:   []string{"(", ","},
				RetriggerCharacters: []string{","},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "phpintel-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// configure loads the workspace configuration and rebuilds the indexer on it.
func (s *Server) configure(root string) {
	cfg, err := phpintel.LoadConfigOrDefault(root)
	if err != nil {
		s.logger.Warn("Failed to load config, using defaults", zap.String("root", root), zap.Error(err))
		cfg = phpintel.DefaultConfig(root)
	}

	opts := []workspace.Option{workspace.WithLogger(s.logger)}

	c, err := cache.Open(cfg, s.logger)
	if err != nil {
		s.logger.Warn("Analysis cache disabled", zap.Error(err))
	} else if c != nil {
		s.cache = c
		opts = append(opts, workspace.WithCache(c))
	}

	s.cfg = cfg
	s.indexer = workspace.NewIndexer(workspace.NewLoader(cfg), s.index, opts...)
}

// Initialized handles the initialized notification and starts indexing the
// workspace in the background.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")

	if s.initialized {
		return nil
	}

	s.initialized = true

	if s.workspaceRoot == "" {
		close(s.indexed)

		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.indexWorkspace(ctx)

	return nil
}

func (s *Server) indexWorkspace(ctx context.Context) {
	defer close(s.indexed)

	results, err := s.indexer.IndexAll(ctx)
	if err != nil {
		s.logger.Error("Workspace indexing failed", zap.Error(err))

		return
	}

	s.logger.Info("Workspace indexed", zap.Int("files", len(results)), zap.Int("definitions", s.index.Len()))

	// Indexing read open files from disk; put their unsaved content back.
	s.mu.Lock()
	for _, doc := range s.documents {
		s.analyze(ctx, doc)
		s.publishDiagnostics(ctx, doc)
	}
	s.mu.Unlock()

	if s.cfg.Watch {
		s.startWatcher(ctx)
	}
}

func (s *Server) startWatcher(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w, err := workspace.NewWatcher(s.indexer, s.logger, workspace.WithOnChange(s.onWatchedChanges))
	if err != nil {
		s.logger.Error("Failed to create file watcher", zap.Error(err))

		return
	}

	err = w.Watch()
	if err != nil {
		s.logger.Error("Failed to watch workspace", zap.Error(err))
		_ = w.Close()

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have run while the watcher was starting.
	if s.closed {
		_ = w.Close()

		return
	}

	s.watcher = w
}

// onWatchedChanges restores open documents whose files changed on disk: the
// editor content wins over the saved file.
func (s *Server) onWatchedChanges(changes []workspace.Change) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range changes {
		doc, ok := s.documents[protocol.DocumentURI(c.File.URI)]
		if !ok {
			continue
		}

		s.analyze(ctx, doc)
		s.publishDiagnostics(ctx, doc)
	}
}

// Shutdown handles the shutdown request.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	return s.Close()
}

// Close stops background indexing and watching and releases the cache.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	s.closed = true
	w, c := s.watcher, s.cache
	s.watcher, s.cache = nil, nil
	s.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}

	if c != nil {
		return c.Close()
	}

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")
	// The main loop should handle exiting after this
	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Info("DidOpen", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		URI:     params.TextDocument.URI,
		Version: params.TextDocument.Version,
		Content: params.TextDocument.Text,
	}

	s.analyze(ctx, doc)
	s.documents[params.TextDocument.URI] = doc

	s.publishDiagnostics(ctx, doc)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.logger.Info("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))

		return nil
	}

	// Full sync - take the last content change (should only be one with full sync)
	if len(params.ContentChanges) > 0 {
		doc.Content = params.ContentChanges[len(params.ContentChanges)-1].Text
		doc.Version = params.TextDocument.Version

		s.analyze(ctx, doc)
		s.publishDiagnostics(ctx, doc)
	}

	return nil
}

// analyze reindexes a document from its editor content. Callers hold s.mu.
func (s *Server) analyze(ctx context.Context, doc *Document) {
	doc.Analysis = s.indexer.Reindex(ctx, string(doc.URI), []byte(doc.Content))

	if doc.Analysis.Tree != nil {
		doc.LastValidAnalysis = doc.Analysis
	}
}

// DidClose handles textDocument/didClose notifications. The index falls back
// to the saved file, or forgets the document if it is not part of the workspace.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Info("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, params.TextDocument.URI)

	path, ok := s.workspacePath(params.TextDocument.URI)
	if ok {
		s.indexer.Sync(ctx, []string{path})
	} else {
		s.indexer.Remove(ctx, string(params.TextDocument.URI))
	}

	// Clear diagnostics for closed document
	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("Failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// DidSave handles textDocument/didSave notifications.
func (s *Server) DidSave(_ context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.logger.Info("DidSave", zap.String("uri", string(params.TextDocument.URI)))
	// The index already holds the editor content.
	return nil
}

// DidChangeWatchedFiles handles workspace/didChangeWatchedFiles notifications
// for files changed outside the editor.
func (s *Server) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	s.logger.Info("DidChangeWatchedFiles", zap.Int("changes", len(params.Changes)))

	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(params.Changes))

	for _, change := range params.Changes {
		if change == nil {
			continue
		}

		// Open documents are owned by the editor.
		if _, open := s.documents[change.URI]; open {
			continue
		}

		if path, ok := s.workspacePath(change.URI); ok {
			paths = append(paths, path)
		}
	}

	changes := s.indexer.Sync(ctx, paths)
	s.logger.Debug("Synced watched files", zap.Int("changes", len(changes)))

	return nil
}

// workspacePath returns the file path of uri if it belongs to the workspace.
func (s *Server) workspacePath(uri protocol.DocumentURI) (string, bool) {
	if s.workspaceRoot == "" {
		return "", false
	}

	path, err := phpintel.URIToPath(string(uri))
	if err != nil || !s.indexer.Loader().Accepts(path) {
		return "", false
	}

	return path, true
}

// getDocument returns a document by URI (read-locked).
func (s *Server) getDocument(uri protocol.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri]

	return doc, ok
}
