package lsp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// DocumentLink handles textDocument/documentLink requests.
// Returns links for require and include paths that can be clicked to open
// the included file.
func (s *Server) DocumentLink(_ context.Context, params *protocol.DocumentLinkParams) ([]protocol.DocumentLink, error) {
	s.logger.Debug("DocumentLink",
		zap.String("uri", string(params.TextDocument.URI)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil {
		return nil, nil
	}

	docPath, err := phpintel.URIToPath(string(params.TextDocument.URI))
	if err != nil {
		return nil, nil
	}

	dir := filepath.Dir(docPath)

	var links []protocol.DocumentLink

	doc.Analysis.Tree.Root.Walk(func(n *phpintel.Node) bool {
		if !isInclude(n.Kind) {
			return true
		}

		lit, path, ok := includePath(n, dir)
		if !ok {
			return true
		}

		if _, statErr := os.Stat(path); statErr != nil {
			return true
		}

		links = append(links, protocol.DocumentLink{
			Range:   spanToRange(lit.Span),
			Target:  protocol.DocumentURI(phpintel.PathToURI(path)),
			Tooltip: "Open " + filepath.Base(path),
		})

		return true
	})

	return links, nil
}

func isInclude(k phpintel.Kind) bool {
	switch k {
	case phpintel.KindIncludeExpression, phpintel.KindIncludeOnceExpression,
		phpintel.KindRequireExpression, phpintel.KindRequireOnceExpression:
		return true
	default:
		return false
	}
}

// includePath returns the string literal naming the included file and the
// path it resolves to. Supported forms are a plain string, relative to the
// including file, and __DIR__ or dirname(__FILE__) followed by a string.
func includePath(n *phpintel.Node, dir string) (*phpintel.Node, string, bool) {
	expr := firstNamedChild(n)
	for expr != nil && expr.Kind == phpintel.KindParenthesizedExpression {
		expr = firstNamedChild(expr)
	}

	if expr == nil {
		return nil, "", false
	}

	switch expr.Kind {
	case phpintel.KindString, phpintel.KindEncapsedString:
		value, ok := literalValue(expr)
		if !ok {
			return nil, "", false
		}

		if !filepath.IsAbs(value) {
			value = filepath.Join(dir, value)
		}

		return expr, filepath.Clean(value), true
	case phpintel.KindBinaryExpression:
		left, right := expr.ChildByField("left"), expr.ChildByField("right")
		if left == nil || right == nil || !isCurrentDir(left) {
			return nil, "", false
		}

		if right.Kind != phpintel.KindString && right.Kind != phpintel.KindEncapsedString {
			return nil, "", false
		}

		value, ok := literalValue(right)
		if !ok {
			return nil, "", false
		}

		return right, filepath.Clean(dir + value), true
	}

	return nil, "", false
}

// isCurrentDir reports whether n evaluates to the including file's directory.
func isCurrentDir(n *phpintel.Node) bool {
	switch n.Kind {
	case phpintel.KindName:
		return n.Text() == "__DIR__"
	case phpintel.KindFunctionCallExpression:
		fn := n.ChildByField("function")
		args := n.ChildByField("arguments")

		if fn == nil || args == nil || !strings.EqualFold(analysis.NameText(fn), "dirname") {
			return false
		}

		named := args.NamedChildren()

		return len(named) == 1 && strings.TrimSpace(named[0].Text()) == "__FILE__"
	default:
		return false
	}
}

// literalValue returns the value of a string literal without interpolation.
func literalValue(n *phpintel.Node) (string, bool) {
	text := n.Text()
	if len(text) < 2 || strings.ContainsAny(text, "$") {
		return "", false
	}

	quote := text[0]
	if (quote != '\'' && quote != '"') || text[len(text)-1] != quote {
		return "", false
	}

	return text[1 : len(text)-1], true
}

func firstNamedChild(n *phpintel.Node) *phpintel.Node {
	if named := n.NamedChildren(); len(named) > 0 {
		return named[0]
	}

	return nil
}
