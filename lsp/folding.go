package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
)

// FoldingRanges handles textDocument/foldingRange requests.
// Returns folding ranges for blocks, class bodies, multi-line arrays and
// argument lists, doc comments and runs of use imports.
func (s *Server) FoldingRanges(_ context.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	s.logger.Debug("FoldingRanges",
		zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil
	}

	var ranges []protocol.FoldingRange

	doc.Analysis.Tree.Root.Walk(func(n *phpintel.Node) bool {
		switch n.Kind {
		case phpintel.KindCompoundStatement, phpintel.KindDeclarationList, phpintel.KindEnumDeclarationList,
			phpintel.KindArrayCreationExpression, phpintel.KindArguments, phpintel.KindFormalParameters,
			phpintel.KindNamespaceUseGroup:
			// Keep the closing bracket visible.
			if r, ok := lineRange(n.Span.Start.Line, n.Span.End.Line-1, ""); ok {
				ranges = append(ranges, r)
			}
		case phpintel.KindComment:
			if r, ok := lineRange(n.Span.Start.Line, n.Span.End.Line, protocol.CommentFoldingRange); ok {
				ranges = append(ranges, r)
			}

			return false
		}

		if r, ok := importsRange(n); ok {
			ranges = append(ranges, r)
		}

		return true
	})

	return ranges, nil
}

// importsRange folds a run of use declarations starting at n.
func importsRange(n *phpintel.Node) (protocol.FoldingRange, bool) {
	if n.Kind != phpintel.KindNamespaceUseDeclaration {
		return protocol.FoldingRange{}, false
	}

	// Only the first declaration of a run starts a range.
	if prev := n.PrevSibling(); prev != nil && prev.Kind == phpintel.KindNamespaceUseDeclaration {
		return protocol.FoldingRange{}, false
	}

	last := n
	for next := n.NextSibling(); next != nil && next.Kind == phpintel.KindNamespaceUseDeclaration; next = next.NextSibling() {
		last = next
	}

	return lineRange(n.Span.Start.Line, last.Span.End.Line, protocol.ImportsFoldingRange)
}

// lineRange builds a folding range if it covers more than one line.
func lineRange(start, end int, kind protocol.FoldingRangeKind) (protocol.FoldingRange, bool) {
	if end <= start {
		return protocol.FoldingRange{}, false
	}

	return protocol.FoldingRange{
		StartLine: uint32(start), //nolint:gosec
		EndLine:   uint32(end),   //nolint:gosec
		Kind:      kind,
	}, true
}
