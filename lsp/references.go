package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel/analysis"
)

// References handles textDocument/references requests.
// Finds all references to the symbol under the cursor across the workspace.
func (s *Server) References(_ context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.logger.Debug("References",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character),
		zap.Bool("includeDeclaration", params.Context.IncludeDeclaration))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil
	}

	sym, ok := symbolAt(doc.Analysis, params.Position)
	if !ok {
		return nil, nil
	}

	includeDecl := params.Context.IncludeDeclaration

	if sym.Variable != nil {
		return variableLocations(doc.Analysis, sym, includeDecl), nil
	}

	var locations []protocol.Location

	if includeDecl {
		if def, found := doc.Analysis.Resolver().Lookup(sym.FQN); found {
			locations = append(locations, location(def.Location.URI, def.Location.Span))
		}
	}

	for _, ref := range s.index.References(sym.FQN) {
		locations = append(locations, location(ref.URI, ref.Span))
	}

	return locations, nil
}

// variableLocations returns the occurrences of a local variable. The binding
// occurrence counts as the declaration.
func variableLocations(f *analysis.AnalyzedFile, sym *symbol, includeDecl bool) []protocol.Location {
	var decl *protocol.Range

	if sym.Variable.Node != nil {
		rng := spanToRange(variableSpan(sym.Variable.Node))
		decl = &rng
	}

	var locations []protocol.Location

	for _, n := range variableOccurrences(sym.Node) {
		loc := location(f.URI, n.Span)
		if !includeDecl && decl != nil && loc.Range == *decl {
			continue
		}

		locations = append(locations, loc)
	}

	return locations
}
