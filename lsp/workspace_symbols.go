package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// maxWorkspaceSymbols bounds workspace/symbol results.
const maxWorkspaceSymbols = 200

// Symbols handles workspace/symbol requests.
// Searches the global index by short name.
func (s *Server) Symbols(_ context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	s.logger.Debug("Symbols",
		zap.String("query", params.Query))

	defs := s.index.Search(params.Query, maxWorkspaceSymbols)

	symbols := make([]protocol.SymbolInformation, 0, len(defs))
	for i := range defs {
		def := &defs[i]

		symbols = append(symbols, protocol.SymbolInformation{
			Name:          symbolName(def),
			Kind:          symbolKind(def.Kind),
			Deprecated:    def.Deprecated,
			Location:      location(def.Location.URI, def.Location.Span),
			ContainerName: def.ContainerName,
		})
	}

	return symbols, nil
}
