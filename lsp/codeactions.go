package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// CodeAction handles textDocument/codeAction requests.
// Returns the quick fixes for the document's diagnostics in the requested range.
func (s *Server) CodeAction(_ context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	s.logger.Debug("CodeAction",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int("diagnosticCount", len(params.Context.Diagnostics)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil
	}

	var actions []protocol.CodeAction

	for _, diag := range doc.Analysis.Diagnostics {
		if !rangesOverlap(spanToRange(diag.Span), params.Range) {
			continue
		}

		if action, ok := codeActionForDiagnostic(doc, diag); ok {
			actions = append(actions, action)
		}
	}

	return actions, nil
}

// codeActionForDiagnostic creates the quick fix for a diagnostic, if it has one.
func codeActionForDiagnostic(doc *Document, diag analysis.Diagnostic) (protocol.CodeAction, bool) {
	f := doc.Analysis

	var (
		title string
		edit  protocol.TextEdit
		ok    bool
	)

	switch {
	case diag.Code == analysis.CodeThisUsage && diag.Message == analysis.MsgThisInStaticMethod:
		title = "Make method non-static"
		edit, ok = removeStaticEdit(f, diag.Span)
	case diag.Code == analysis.CodeUnusedImport:
		title = "Remove unused import"
		edit, ok = removeImportEdit(f, diag.Span)
	}

	if !ok {
		return protocol.CodeAction{}, false
	}

	return protocol.CodeAction{
		Title:       title,
		Kind:        protocol.QuickFix,
		Diagnostics: []protocol.Diagnostic{toProtocolDiagnostic(doc.URI, diag)},
		IsPreferred: true,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{
				doc.URI: {edit},
			},
		},
	}, true
}

// removeStaticEdit deletes the static modifier of the method enclosing span.
func removeStaticEdit(f *analysis.AnalyzedFile, span phpintel.Span) (protocol.TextEdit, bool) {
	n := analysis.NodeAtPosition(f, span.Start)
	if n == nil {
		return protocol.TextEdit{}, false
	}

	method := n.Ancestor(phpintel.KindMethodDeclaration)
	if method == nil {
		return protocol.TextEdit{}, false
	}

	mod := method.FirstChild(phpintel.KindStaticModifier)
	if mod == nil {
		return protocol.TextEdit{}, false
	}

	end := mod.Span.End
	if next := mod.NextSibling(); next != nil {
		end = next.Span.Start
	}

	return protocol.TextEdit{
		Range: spanToRange(phpintel.Span{Start: mod.Span.Start, End: end}),
	}, true
}

// removeImportEdit deletes an import clause: the whole use statement when it
// is the only clause, otherwise the clause and its separating comma.
func removeImportEdit(f *analysis.AnalyzedFile, span phpintel.Span) (protocol.TextEdit, bool) {
	n := analysis.NodeAtPosition(f, span.Start)
	for n != nil && n.Kind != phpintel.KindNamespaceUseClause {
		n = n.Parent
	}

	if n == nil {
		return protocol.TextEdit{}, false
	}

	decl := n.Ancestor(phpintel.KindNamespaceUseDeclaration)
	if decl == nil {
		return protocol.TextEdit{}, false
	}

	var clauses int

	decl.Walk(func(c *phpintel.Node) bool {
		if c.Kind == phpintel.KindNamespaceUseClause {
			clauses++

			return false
		}

		return true
	})

	if clauses == 1 {
		tree := f.Tree

		return protocol.TextEdit{
			Range: spanToRange(phpintel.Span{
				Start: tree.PositionAt(tree.OffsetAt(decl.Span.Start.Line, 0)),
				End:   tree.PositionAt(tree.OffsetAt(decl.Span.End.Line+1, 0)),
			}),
		}, true
	}

	start, end := n.Span.Start, n.Span.End

	if next := n.NextSibling(); next != nil && next.Type == "," {
		end = next.Span.End
		if after := next.NextSibling(); after != nil {
			end = after.Span.Start
		}
	} else if prev := n.PrevSibling(); prev != nil && prev.Type == "," {
		start = prev.Span.Start
	}

	return protocol.TextEdit{
		Range: spanToRange(phpintel.Span{Start: start, End: end}),
	}, true
}

// rangesOverlap checks if two ranges overlap.
func rangesOverlap(a, b protocol.Range) bool {
	if positionBefore(a.End, b.Start) || positionBefore(b.End, a.Start) {
		return false
	}

	return true
}

func positionBefore(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}
