package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// DocumentSymbol handles textDocument/documentSymbol requests.
// Returns a hierarchical tree of symbols for the outline view.
func (s *Server) DocumentSymbol(_ context.Context, params *protocol.DocumentSymbolParams) ([]any, error) {
	s.logger.Debug("DocumentSymbol",
		zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil {
		return nil, nil
	}

	symbols := buildDocumentSymbols(doc.Analysis)

	// Convert to []any for the protocol
	result := make([]any, len(symbols))
	for i, sym := range symbols {
		result[i] = sym
	}

	return result, nil
}

// outlineNode is a document symbol under construction.
type outlineNode struct {
	symbol   protocol.DocumentSymbol
	span     phpintel.Span
	children []*outlineNode
}

func (n *outlineNode) build() protocol.DocumentSymbol {
	sym := n.symbol
	for _, c := range n.children {
		sym.Children = append(sym.Children, c.build())
	}

	return sym
}

// buildDocumentSymbols nests the file's definitions by containment of their
// declaring nodes. Definitions come in document order.
func buildDocumentSymbols(f *analysis.AnalyzedFile) []protocol.DocumentSymbol {
	var (
		roots []*outlineNode
		stack []*outlineNode
	)

	for _, def := range f.Definitions {
		if def.FQN == "" {
			continue
		}

		span := def.Location.Span
		if def.Node != nil {
			span = def.Node.Span
		}

		node := &outlineNode{
			symbol: protocol.DocumentSymbol{
				Name:           symbolName(def),
				Detail:         symbolDetail(def),
				Kind:           symbolKind(def.Kind),
				Deprecated:     def.Deprecated,
				Range:          spanToRange(span),
				SelectionRange: spanToRange(def.Location.Span),
			},
			span: span,
		}

		for len(stack) > 0 && !containsSpan(stack[len(stack)-1].span, span) {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
		}

		stack = append(stack, node)
	}

	symbols := make([]protocol.DocumentSymbol, 0, len(roots))
	for _, n := range roots {
		symbols = append(symbols, n.build())
	}

	return symbols
}

func containsSpan(outer, inner phpintel.Span) bool {
	return outer.Start.Offset <= inner.Start.Offset && inner.End.Offset <= outer.End.Offset
}

// symbolName is the outline label: namespaces by full name, everything else by short name.
func symbolName(def *analysis.Definition) string {
	if def.Kind == analysis.SymbolKindNamespace {
		return def.FQN
	}

	return def.Name()
}

func symbolDetail(def *analysis.Definition) string {
	if def.Signature != "" {
		return def.Signature
	}

	return string(def.Type)
}

// symbolKind converts a definition kind to an LSP symbol kind.
func symbolKind(k analysis.SymbolKind) protocol.SymbolKind {
	switch k {
	case analysis.SymbolKindNamespace:
		return protocol.SymbolKindNamespace
	case analysis.SymbolKindClass, analysis.SymbolKindTrait:
		return protocol.SymbolKindClass
	case analysis.SymbolKindInterface:
		return protocol.SymbolKindInterface
	case analysis.SymbolKindEnum:
		return protocol.SymbolKindEnum
	case analysis.SymbolKindFunction:
		return protocol.SymbolKindFunction
	case analysis.SymbolKindMethod:
		return protocol.SymbolKindMethod
	case analysis.SymbolKindConstructor:
		return protocol.SymbolKindConstructor
	case analysis.SymbolKindProperty:
		return protocol.SymbolKindProperty
	case analysis.SymbolKindConstant:
		return protocol.SymbolKindConstant
	default:
		return protocol.SymbolKindVariable
	}
}
