package lsp

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel/analysis"
)

// Hover handles textDocument/hover requests.
func (s *Server) Hover(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil //nolint:nilnil // LSP protocol allows nil hover
	}

	sym, ok := symbolAt(doc.Analysis, params.Position)
	if !ok {
		return nil, nil //nolint:nilnil // LSP protocol allows nil hover
	}

	var content string

	if sym.Variable != nil {
		content = hoverVariable(analysis.VariableName(sym.Node), sym.Variable)
	} else {
		def, found := doc.Analysis.Resolver().Lookup(sym.FQN)
		if !found {
			return nil, nil //nolint:nilnil // LSP protocol allows nil hover
		}

		content = hoverDefinition(def)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: content,
		},
		Range: rangePtr(spanToRange(sym.Node.Span)),
	}, nil
}

// hoverDefinition generates hover content for a definition.
func hoverDefinition(def analysis.Definition) string {
	var b strings.Builder

	b.WriteString("```php\n")
	b.WriteString(declaration(def))
	b.WriteString("\n```")

	if def.Deprecated {
		b.WriteString("\n\n*@deprecated*")
	}

	if def.Documentation != "" {
		b.WriteString("\n\n")
		b.WriteString(def.Documentation)
	}

	if def.Kind != analysis.SymbolKindNamespace && def.ContainerName != "" {
		fmt.Fprintf(&b, "\n\n*in* `%s`", def.ContainerName)
	}

	return b.String()
}

// hoverVariable generates hover content for a local variable.
func hoverVariable(name string, v *analysis.Variable) string {
	return fmt.Sprintf("```php\n%s $%s\n```", v.Type.OrMixed(), name)
}

// declaration renders a definition the way it is declared.
func declaration(def analysis.Definition) string {
	if def.Signature != "" {
		prefix := ""
		if def.IsStatic {
			prefix = "static "
		}

		return prefix + def.Signature
	}

	switch def.Kind {
	case analysis.SymbolKindNamespace:
		return "namespace " + def.FQN
	case analysis.SymbolKindClass, analysis.SymbolKindInterface, analysis.SymbolKindTrait, analysis.SymbolKindEnum:
		decl := def.Kind.String() + " " + def.Name()
		if def.IsAbstract {
			decl = "abstract " + decl
		}

		return decl
	case analysis.SymbolKindProperty:
		decl := "$" + strings.TrimPrefix(def.Name(), "$")
		if !def.Type.IsUnknown() {
			decl = string(def.Type) + " " + decl
		}

		if def.IsStatic {
			decl = "static " + decl
		}

		return decl
	case analysis.SymbolKindConstant:
		return "const " + def.Name()
	default:
		return def.FQN
	}
}

// rangePtr returns a pointer to a Range.
func rangePtr(r protocol.Range) *protocol.Range {
	return &r
}
