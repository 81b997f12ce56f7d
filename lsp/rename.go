package lsp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// ErrInvalidName is returned when a rename target is not a valid PHP identifier.
var ErrInvalidName = errors.New("invalid identifier")

var identifierRe = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// PrepareRename handles textDocument/prepareRename requests.
// Validates that rename is possible and returns the range of the symbol to rename.
func (s *Server) PrepareRename(_ context.Context, params *protocol.PrepareRenameParams) (*protocol.Range, error) {
	s.logger.Debug("PrepareRename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil //nolint:nilnil
	}

	sym, ok := s.renameTarget(doc, params.Position)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	rng := nameRange(sym.Node.Text(), sym.Node.Span)

	return &rng, nil
}

// Rename handles textDocument/rename requests.
// Renames the symbol under the cursor and all its references.
func (s *Server) Rename(_ context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	s.logger.Debug("Rename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character),
		zap.String("newName", params.NewName))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil //nolint:nilnil
	}

	sym, ok := s.renameTarget(doc, params.Position)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	newName := strings.TrimPrefix(params.NewName, "$")
	if !identifierRe.MatchString(newName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, params.NewName)
	}

	changes := make(map[protocol.DocumentURI][]protocol.TextEdit)

	addEdit := func(uri, text string, span phpintel.Span) {
		rng := spanToRange(span)
		if text != "" {
			rng = nameRange(text, span)
		}

		changes[protocol.DocumentURI(uri)] = append(changes[protocol.DocumentURI(uri)], protocol.TextEdit{
			Range:   rng,
			NewText: newName,
		})
	}

	if sym.Variable != nil {
		for _, n := range variableOccurrences(sym.Node) {
			addEdit(doc.Analysis.URI, n.Text(), n.Span)
		}

		return &protocol.WorkspaceEdit{Changes: changes}, nil
	}

	def, _ := doc.Analysis.Resolver().Lookup(sym.FQN)
	addEdit(def.Location.URI, s.sourceText(def.Location.URI, def.Location.Span), def.Location.Span)

	oldName := strings.TrimPrefix(def.Name(), "$")

	for _, ref := range s.index.References(sym.FQN) {
		text := s.sourceText(ref.URI, ref.Span)

		// Aliased imports keep their alias.
		if text != "" && !strings.EqualFold(lastSegment(text), oldName) {
			continue
		}

		addEdit(ref.URI, text, ref.Span)
	}

	return &protocol.WorkspaceEdit{Changes: changes}, nil
}

// renameTarget returns the symbol at the cursor if it can be renamed:
// local variables, and symbols declared somewhere in the workspace.
func (s *Server) renameTarget(doc *Document, p protocol.Position) (*symbol, bool) {
	sym, ok := symbolAt(doc.Analysis, p)
	if !ok {
		return nil, false
	}

	if sym.Variable != nil {
		return sym, true
	}

	def, ok := doc.Analysis.Resolver().Lookup(sym.FQN)
	if !ok {
		return nil, false
	}

	// Constructors and namespaces are not renamed through their references.
	switch def.Kind {
	case analysis.SymbolKindConstructor, analysis.SymbolKindNamespace:
		return nil, false
	}

	return sym, true
}

// lastSegment returns the unqualified part of a name, without a leading "$".
func lastSegment(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}

	return strings.TrimPrefix(name, "$")
}
