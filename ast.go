// Package phpintel provides the PHP syntax tree, path/URI translation and
// configuration shared by the analysis, index and LSP packages.
package phpintel

import (
	"strings"
)

// Position is a location in source text. All fields are 0-based; Column counts bytes.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Before reports whether p is strictly before other.
func (p Position) Before(other Position) bool {
	return p.Offset < other.Offset
}

// Span is a half-open range of source text.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether p lies within the span. The end position is inclusive
// so that a cursor placed right after an identifier still hits it.
func (s Span) Contains(p Position) bool {
	return s.Start.Offset <= p.Offset && p.Offset <= s.End.Offset
}

// Empty reports whether the span covers no text.
func (s Span) Empty() bool {
	return s.Start.Offset == s.End.Offset
}

// Tree is an immutable PHP syntax tree together with the source it was built from.
// It is safe for concurrent readers.
type Tree struct {
	Root   *Node
	Source []byte

	// lines holds the byte offset of each line start.
	lines []int
}

// PositionAt converts a byte offset into a Position.
func (t *Tree) PositionAt(offset int) Position {
	offset = max(0, min(offset, len(t.Source)))

	line := 0
	lo, hi := 0, len(t.lines)-1

	for lo <= hi {
		mid := (lo + hi) / 2
		if t.lines[mid] <= offset {
			line = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	return Position{Offset: offset, Line: line, Column: offset - t.lines[line]}
}

// OffsetAt converts a line/column pair into a byte offset, clamping to the source.
func (t *Tree) OffsetAt(line, column int) int {
	if line < 0 {
		return 0
	}

	if line >= len(t.lines) {
		return len(t.Source)
	}

	end := len(t.Source)
	if line+1 < len(t.lines) {
		end = t.lines[line+1]
	}

	return min(t.lines[line]+max(0, column), end)
}

// Line returns the text of a 0-based line without its terminator.
func (t *Tree) Line(line int) string {
	if line < 0 || line >= len(t.lines) {
		return ""
	}

	end := len(t.Source)
	if line+1 < len(t.lines) {
		end = t.lines[line+1]
	}

	return strings.TrimRight(string(t.Source[t.lines[line]:end]), "\r\n")
}

// Node is one node or token of the syntax tree.
type Node struct {
	Kind Kind
	// Type is the raw grammar type, e.g. "class_declaration" or "->".
	Type string
	// Field is the grammar field this node fills in its parent, if any.
	Field string

	Named   bool
	Missing bool
	Extra   bool

	Span     Span
	Parent   *Node
	Children []*Node

	// Index is the position of the node in Parent.Children.
	Index int

	tree *Tree
}

// Tree returns the tree the node belongs to.
func (n *Node) Tree() *Tree {
	return n.tree
}

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	if n == nil || n.tree == nil {
		return ""
	}

	return string(n.tree.Source[n.Span.Start.Offset:n.Span.End.Offset])
}

// IsError reports whether the node is an error or missing placeholder.
func (n *Node) IsError() bool {
	return n.Kind == KindError || n.Missing
}

// ChildByField returns the first child filling the named field.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}

	for _, c := range n.Children {
		if c.Field == field && c.Named {
			return c
		}
	}

	return nil
}

// ChildrenByField returns every named child filling the named field.
func (n *Node) ChildrenByField(field string) []*Node {
	var out []*Node

	for _, c := range n.Children {
		if c.Field == field && c.Named {
			out = append(out, c)
		}
	}

	return out
}

// NamedChildren returns the named, non-comment children.
func (n *Node) NamedChildren() []*Node {
	if n == nil {
		return nil
	}

	out := make([]*Node, 0, len(n.Children))

	for _, c := range n.Children {
		if c.Named && c.Kind != KindComment {
			out = append(out, c)
		}
	}

	return out
}

// FirstChild returns the first child with one of the given kinds.
func (n *Node) FirstChild(kinds ...Kind) *Node {
	if n == nil {
		return nil
	}

	for _, c := range n.Children {
		for _, k := range kinds {
			if c.Kind == k {
				return c
			}
		}
	}

	return nil
}

// ChildrenOfKind returns every child with the given kind.
func (n *Node) ChildrenOfKind(kind Kind) []*Node {
	var out []*Node

	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}

	return out
}

// HasChild reports whether a direct child has the given kind.
func (n *Node) HasChild(kind Kind) bool {
	return n.FirstChild(kind) != nil
}

// HasToken reports whether an anonymous child token has the given text.
func (n *Node) HasToken(typ string) bool {
	for _, c := range n.Children {
		if !c.Named && c.Type == typ {
			return true
		}
	}

	return false
}

// PrevSibling returns the previous sibling, or nil.
func (n *Node) PrevSibling() *Node {
	if n.Parent == nil || n.Index == 0 {
		return nil
	}

	return n.Parent.Children[n.Index-1]
}

// NextSibling returns the next sibling, or nil.
func (n *Node) NextSibling() *Node {
	if n.Parent == nil || n.Index+1 >= len(n.Parent.Children) {
		return nil
	}

	return n.Parent.Children[n.Index+1]
}

// Ancestor returns the closest proper ancestor with one of the given kinds.
func (n *Node) Ancestor(kinds ...Kind) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		for _, k := range kinds {
			if p.Kind == k {
				return p
			}
		}
	}

	return nil
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}

	return false
}

// Walk visits n and its descendants in pre-order. Returning false from fn skips the children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// DocComment returns the doc comment ("/** ... */") directly preceding the node, if any.
// Attributes and whitespace between the comment and the declaration are allowed.
func (n *Node) DocComment() string {
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Kind != KindComment {
			return ""
		}

		text := prev.Text()
		if strings.HasPrefix(text, "/**") {
			return text
		}
	}

	return ""
}
