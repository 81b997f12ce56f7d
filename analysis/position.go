package analysis

import (
	"github.com/rlch/phpintel"
)

// NodeAtPosition finds the most specific named node at a given position.
// Returns nil if the file has no tree.
func NodeAtPosition(f *AnalyzedFile, pos phpintel.Position) *phpintel.Node {
	return deepestAt(f, pos, true)
}

// TokenAtPosition finds the leaf (named or anonymous) at a given position.
func TokenAtPosition(f *AnalyzedFile, pos phpintel.Position) *phpintel.Node {
	return deepestAt(f, pos, false)
}

func deepestAt(f *AnalyzedFile, pos phpintel.Position, namedOnly bool) *phpintel.Node {
	if f.Tree == nil {
		return nil
	}

	best := f.Tree.Root
	if !best.Span.Contains(pos) {
		return nil
	}

	for {
		next := childAt(best, pos, namedOnly)
		if next == nil {
			return best
		}

		best = next
	}
}

// childAt prefers a child strictly containing the offset over one that merely
// ends there, so a cursor between two tokens picks the one that starts at it.
func childAt(n *phpintel.Node, pos phpintel.Position, namedOnly bool) *phpintel.Node {
	var touching *phpintel.Node

	for _, c := range n.Children {
		if namedOnly && !c.Named {
			continue
		}

		if c.Span.Start.Offset <= pos.Offset && pos.Offset < c.Span.End.Offset {
			return c
		}

		if c.Span.End.Offset == pos.Offset && !c.Span.Empty() && touching == nil {
			touching = c
		}
	}

	return touching
}

// PrevTokenAtPosition returns the last non-comment token ending at or before the position.
func PrevTokenAtPosition(f *AnalyzedFile, pos phpintel.Position) *phpintel.Node {
	if f.Tree == nil {
		return nil
	}

	var best *phpintel.Node

	f.Tree.Root.Walk(func(n *phpintel.Node) bool {
		if n.Span.Start.Offset >= pos.Offset {
			return false
		}

		if len(n.Children) == 0 && n.Kind != phpintel.KindComment && !n.Span.Empty() &&
			n.Span.End.Offset <= pos.Offset {
			if best == nil || n.Span.End.Offset >= best.Span.End.Offset {
				best = n
			}
		}

		return true
	})

	return best
}

// ScopeAtNode returns the scope in effect just before target executes.
// The traversal stops as soon as the target is reached and skips function and
// class bodies that cannot contain it.
func ScopeAtNode(f *AnalyzedFile, target *phpintel.Node) *Scope {
	if f.resolver == nil || target == nil {
		return NewScope()
	}

	var found *Scope

	f.resolver.Traverse(f.Tree.Root, func(n *phpintel.Node, s *Scope) Action {
		if n == target {
			found = s.Clone()

			return Stop
		}

		if (n.Kind.IsFunctionLike() || n.Kind.IsClassLike() || n.Kind == phpintel.KindAnonymousClass) &&
			!n.Contains(target) {
			return Skip
		}

		return Continue
	})

	if found == nil {
		return NewScope()
	}

	return found
}

// ScopeAt returns the scope in effect at a position.
func ScopeAt(f *AnalyzedFile, pos phpintel.Position) *Scope {
	return ScopeAtNode(f, NodeAtPosition(f, pos))
}

// TokenContext provides information about a cursor position, for completion.
type TokenContext struct {
	// Token is the leaf at the cursor, if any.
	Token *phpintel.Node
	// PrevToken is the last token before the cursor.
	PrevToken *phpintel.Node
	// Node is the most specific named node containing the cursor.
	Node *phpintel.Node
	// Scope is the scope in effect at the cursor.
	Scope *Scope

	// Object is the receiver expression when completing after "->" or "?->".
	Object *phpintel.Node
	// ClassScope is the class part when completing after "::".
	ClassScope *phpintel.Node
	// InClass is true inside a class-like body.
	InClass bool
}

// GetTokenContext returns detailed context about a cursor position.
func GetTokenContext(f *AnalyzedFile, pos phpintel.Position) *TokenContext {
	ctx := &TokenContext{}

	if f.Tree == nil {
		return ctx
	}

	ctx.Token = TokenAtPosition(f, pos)
	ctx.PrevToken = PrevTokenAtPosition(f, pos)
	ctx.Node = NodeAtPosition(f, pos)
	ctx.Scope = ScopeAtNode(f, ctx.Node)
	ctx.InClass = enclosingClass(ctx.Node) != nil

	access := ctx.PrevToken
	if access != nil && access.Named && access.Parent != nil {
		// Cursor on a partially typed member name.
		access = access.PrevSibling()
	}

	if access == nil || access.Parent == nil {
		return ctx
	}

	switch access.Type {
	case "->", "?->":
		ctx.Object = access.Parent.ChildByField("object")
		if ctx.Object == nil {
			ctx.Object = access.PrevSibling()
		}
	case "::":
		ctx.ClassScope = staticScope(access.Parent)
	}

	return ctx
}
