package phpintel

import (
	"context"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

var phpLanguage = sitter.NewLanguage(tree_sitter_php.LanguagePHP())

// ParseError is returned when no syntax tree could be produced at all.
// Syntax errors inside a file do not produce a ParseError; they show up as
// KindError and missing nodes in the tree.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line+1, e.Pos.Column+1, e.Msg)
}

// Parse parses PHP source into a Tree. This function is thread-safe.
func Parse(src []byte) (*Tree, error) {
	return ParseContext(context.Background(), src)
}

// ParseContext parses PHP source, giving up with a ParseError when ctx is done.
func ParseContext(ctx context.Context, src []byte) (*Tree, error) {
	// Parsers are not safe for concurrent use, so each call gets its own.
	parser := sitter.NewParser()
	defer parser.Close()

	err := parser.SetLanguage(phpLanguage)
	if err != nil {
		return nil, fmt.Errorf("set php language: %w", err)
	}

	var reached uint32

	opts := &sitter.ParseOptions{
		ProgressCallback: func(state sitter.ParseState) bool {
			reached = state.CurrentByteOffset

			return ctx.Err() != nil
		},
	}

	length := len(src)

	tsTree := parser.ParseWithOptions(func(i int, _ sitter.Point) []byte {
		if i < length {
			return src[i:]
		}

		return []byte{}
	}, nil, opts)
	if tsTree == nil {
		t := newTree(src)
		msg := "parser produced no tree"

		if ctx.Err() != nil {
			msg = "parse cancelled: " + ctx.Err().Error()
		}

		return nil, &ParseError{Pos: t.PositionAt(int(reached)), Msg: msg}
	}
	defer tsTree.Close()

	t := newTree(src)
	t.Root = t.convert(tsTree.RootNode(), nil, "", 0)

	return t, nil
}

func newTree(src []byte) *Tree {
	lines := []int{0}

	for i, b := range src {
		if b == '\n' {
			lines = append(lines, i+1)
		}
	}

	return &Tree{Source: src, lines: lines}
}

// convert copies a tree-sitter node and its descendants into the Go tree, so the
// result outlives the C tree and can be shared between goroutines.
func (t *Tree) convert(n *sitter.Node, parent *Node, field string, index int) *Node {
	typ := n.Kind()
	named := n.IsNamed()

	node := &Node{
		Kind:    kindOf(typ, named),
		Type:    typ,
		Field:   field,
		Named:   named,
		Missing: n.IsMissing(),
		Extra:   n.IsExtra(),
		Span: Span{
			Start: t.pointPosition(n.StartByte(), n.StartPosition()),
			End:   t.pointPosition(n.EndByte(), n.EndPosition()),
		},
		Parent: parent,
		Index:  index,
		tree:   t,
	}

	if n.IsError() {
		node.Kind = KindError
	}

	count := n.ChildCount()
	if count == 0 {
		return node
	}

	node.Children = make([]*Node, 0, count)

	for i := range count {
		child := n.Child(i)
		if child == nil {
			continue
		}

		name := n.FieldNameForChild(uint32(i)) //nolint:gosec // child counts fit in uint32
		node.Children = append(node.Children, t.convert(child, node, name, len(node.Children)))
	}

	return node
}

func (t *Tree) pointPosition(offset uint, p sitter.Point) Position {
	return Position{
		Offset: int(offset), //nolint:gosec // source offsets fit in int
		Line:   int(p.Row),  //nolint:gosec // line numbers fit in int
		Column: int(p.Column),
	}
}

// Errors returns the error and missing nodes of the tree in document order.
func (t *Tree) Errors() []*Node {
	var out []*Node

	t.Root.Walk(func(n *Node) bool {
		if n.IsError() {
			out = append(out, n)

			// Nested errors add nothing beyond the outermost one.
			return false
		}

		return true
	})

	return out
}
