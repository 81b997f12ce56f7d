package lsp

import (
	"os"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// spanToRange converts a phpintel.Span to an LSP protocol.Range.
// Both are 0-based; columns are passed through as byte offsets.
func spanToRange(span phpintel.Span) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{
			Line:      uint32(max(0, span.Start.Line)),   //nolint:gosec // G115: values are small line numbers
			Character: uint32(max(0, span.Start.Column)), //nolint:gosec // G115: values are small column numbers
		},
		End: protocol.Position{
			Line:      uint32(max(0, span.End.Line)),   //nolint:gosec // G115: values are small line numbers
			Character: uint32(max(0, span.End.Column)), //nolint:gosec // G115: values are small column numbers
		},
	}
}

// toPosition converts an LSP position to a position in the tree.
func toPosition(tree *phpintel.Tree, p protocol.Position) phpintel.Position {
	return tree.PositionAt(tree.OffsetAt(int(p.Line), int(p.Character)))
}

// location builds an LSP location.
func location(uri string, span phpintel.Span) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentURI(uri),
		Range: spanToRange(span),
	}
}

// symbol is what the cursor points at.
type symbol struct {
	// FQN of the definition; empty for local variables.
	FQN string
	// Node is the name node under the cursor.
	Node *phpintel.Node
	// Declaration is true when the cursor is on the declared name itself.
	Declaration bool
	// Variable is set for local variables.
	Variable *analysis.Variable
	Scope    *analysis.Scope
}

// symbolAt resolves the name under the cursor. Names nested in qualified or
// variable names are tried with their enclosing name nodes.
func symbolAt(f *analysis.AnalyzedFile, p protocol.Position) (*symbol, bool) {
	if f == nil || f.Tree == nil || f.Resolver() == nil {
		return nil, false
	}

	r := f.Resolver()

	n := analysis.NodeAtPosition(f, toPosition(f.Tree, p))
	for depth := 0; n != nil && depth < 3; depth, n = depth+1, n.Parent {
		if fqn, ok := r.DefinedFQN(n); ok {
			return &symbol{FQN: fqn, Node: n, Declaration: true}, true
		}

		scope := analysis.ScopeAtNode(f, n)

		if fqn, ok := r.ResolveReference(n, scope); ok {
			if fqn == "" {
				return nil, false
			}

			return &symbol{FQN: fqn, Node: n, Scope: scope}, true
		}

		if n.Kind == phpintel.KindVariableName {
			return variableSymbol(r, n, scope)
		}
	}

	return nil, false
}

func variableSymbol(r *analysis.Resolver, n *phpintel.Node, scope *analysis.Scope) (*symbol, bool) {
	name := analysis.VariableName(n)
	if name == "" || name == "this" {
		return nil, false
	}

	if v, ok := scope.Var(name); ok {
		return &symbol{Node: n, Variable: v, Scope: scope}, true
	}

	// The declaring occurrence is not bound before it executes.
	for _, decl := range []*phpintel.Node{n.Parent, n} {
		if decl == nil {
			continue
		}

		if def, ok := r.ResolveDefinition(decl); ok && def.Kind == analysis.SymbolKindVariable {
			return &symbol{Node: n, Variable: &analysis.Variable{Type: def.Type, Node: decl}, Scope: scope}, true
		}
	}

	return nil, false
}

// variableSpan returns the span of the variable name declared by a binding node.
func variableSpan(decl *phpintel.Node) phpintel.Span {
	switch {
	case decl.Kind == phpintel.KindAssignmentExpression:
		if left := decl.ChildByField("left"); left != nil {
			return left.Span
		}
	case decl.Kind.IsParameter():
		if name := decl.ChildByField("name"); name != nil {
			return name.Span
		}
	case decl.Kind == phpintel.KindVariableName:
		return decl.Span
	}

	if v := decl.FirstChild(phpintel.KindVariableName); v != nil {
		return v.Span
	}

	return decl.Span
}

// variableScope returns the node whose body a local variable lives in.
func variableScope(n *phpintel.Node) *phpintel.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Kind.IsFunctionLike() && p.Kind != phpintel.KindArrowFunction {
			return p
		}
	}

	return n.Tree().Root
}

// variableOccurrences returns every occurrence of a local variable in its
// function body. Nested functions have their own variables; arrow functions
// share the enclosing ones.
func variableOccurrences(n *phpintel.Node) []*phpintel.Node {
	name := analysis.VariableName(n)
	root := variableScope(n)

	var out []*phpintel.Node

	root.Walk(func(c *phpintel.Node) bool {
		if c != root && (c.Kind.IsClassLike() || c.Kind == phpintel.KindAnonymousClass ||
			(c.Kind.IsFunctionLike() && c.Kind != phpintel.KindArrowFunction)) {
			// Closure use clauses import the variable into the closure.
			if use := c.FirstChild(phpintel.KindAnonymousFunctionUseClause); use != nil {
				use.Walk(func(u *phpintel.Node) bool {
					if u.Kind == phpintel.KindVariableName && analysis.VariableName(u) == name {
						out = append(out, u)
					}

					return true
				})
			}

			return false
		}

		if c.Kind == phpintel.KindVariableName && analysis.VariableName(c) == name && !isPropertyName(c) {
			out = append(out, c)

			return false
		}

		return true
	})

	return out
}

// isPropertyName reports whether a variable_name names a property rather than a local.
func isPropertyName(n *phpintel.Node) bool {
	p := n.Parent
	if p == nil {
		return false
	}

	return p.Kind == phpintel.KindPropertyElement || p.Kind == phpintel.KindScopedPropertyAccessExpression
}

// nameRange narrows a name span to its last segment, without a leading "$",
// which is what a rename replaces.
func nameRange(text string, span phpintel.Span) protocol.Range {
	rng := spanToRange(span)

	if span.Start.Line != span.End.Line {
		return rng
	}

	skip := 0
	if i := strings.LastIndex(text, `\`); i >= 0 {
		skip = i + 1
	}

	if strings.HasPrefix(text[skip:], "$") {
		skip++
	}

	rng.Start.Character += uint32(skip) //nolint:gosec // G115: names are short

	return rng
}

// sourceText returns the text covered by a span of a file, preferring the
// content of an open document over the file on disk.
func (s *Server) sourceText(uri string, span phpintel.Span) string {
	var content []byte

	if doc, ok := s.getDocument(protocol.DocumentURI(uri)); ok {
		content = []byte(doc.Content)
	} else {
		path, err := phpintel.URIToPath(uri)
		if err != nil {
			return ""
		}

		content, err = os.ReadFile(path)
		if err != nil {
			return ""
		}
	}

	if span.Start.Offset < 0 || span.End.Offset > len(content) || span.Start.Offset > span.End.Offset {
		return ""
	}

	return string(content[span.Start.Offset:span.End.Offset])
}
