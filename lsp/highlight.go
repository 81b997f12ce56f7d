package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// DocumentHighlight handles textDocument/documentHighlight requests.
// Highlights the occurrences of the symbol under the cursor in the current document.
func (s *Server) DocumentHighlight(_ context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	s.logger.Debug("DocumentHighlight",
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

	var highlights []protocol.DocumentHighlight

	if sym.Variable != nil {
		for _, loc := range variableLocations(doc.Analysis, sym, true) {
			kind := protocol.DocumentHighlightKindRead
			if sym.Variable.Node != nil && loc.Range == spanToRange(variableSpan(sym.Variable.Node)) {
				kind = protocol.DocumentHighlightKindWrite
			}

			highlights = append(highlights, protocol.DocumentHighlight{Range: loc.Range, Kind: kind})
		}

		return highlights, nil
	}

	if def, found := doc.Analysis.Definition(sym.FQN); found {
		highlights = append(highlights, protocol.DocumentHighlight{
			Range: spanToRange(def.Location.Span),
			Kind:  protocol.DocumentHighlightKindWrite,
		})
	}

	for _, ref := range doc.Analysis.References {
		if ref.Target != sym.FQN {
			continue
		}

		highlights = append(highlights, protocol.DocumentHighlight{
			Range: spanToRange(ref.Span),
			Kind:  protocol.DocumentHighlightKindRead,
		})
	}

	return highlights, nil
}
