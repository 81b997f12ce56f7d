package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Definition handles textDocument/definition requests.
func (s *Server) Definition(_ context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	s.logger.Debug("Definition",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil
	}

	sym, ok := symbolAt(doc.Analysis, params.Position)
	if !ok {
		return nil, nil
	}

	// Local variables jump to their binding.
	if sym.Variable != nil {
		if sym.Variable.Node == nil {
			return nil, nil
		}

		return []protocol.Location{location(doc.Analysis.URI, variableSpan(sym.Variable.Node))}, nil
	}

	def, ok := doc.Analysis.Resolver().Lookup(sym.FQN)
	if !ok {
		s.logger.Debug("Definition not found", zap.String("fqn", sym.FQN))

		return nil, nil
	}

	return []protocol.Location{location(def.Location.URI, def.Location.Span)}, nil
}
