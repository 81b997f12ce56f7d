package analysis

import (
	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/docblock"
)

// Action tells Traverse how to proceed after visiting a node.
type Action int

// Traversal actions.
const (
	// Continue descends into the node's children.
	Continue Action = iota
	// Skip continues after the node's subtree without descending into it.
	Skip
	// Stop ends the traversal. No further visitor calls are made.
	Stop
)

// Visitor is called for every node with the scope valid before the node executes.
type Visitor func(n *phpintel.Node, s *Scope) Action

// Traverse walks root in pre-order with a fresh root scope.
// It returns false if the visitor stopped the walk.
func (r *Resolver) Traverse(root *phpintel.Node, visit Visitor) bool {
	return r.TraverseScope(root, NewScope(), visit)
}

// TraverseScope walks root in pre-order starting from the given scope.
func (r *Resolver) TraverseScope(root *phpintel.Node, scope *Scope, visit Visitor) bool {
	return r.walk(root, scope, visit) != Stop
}

func (r *Resolver) walk(n *phpintel.Node, s *Scope, visit Visitor) Action {
	switch visit(n, s) {
	case Stop:
		return Stop
	case Skip:
	default:
		if r.walkChildren(n, s, visit) == Stop {
			return Stop
		}
	}

	r.after(n, s)

	return Continue
}

func (r *Resolver) walkChildren(n *phpintel.Node, s *Scope, visit Visitor) Action {
	switch {
	case n.Kind.IsFunctionLike():
		return r.walkAll(n.Children, r.functionScope(n, s), visit)
	case n.Kind.IsClassLike() || n.Kind == phpintel.KindAnonymousClass:
		body := n.ChildByField("body")
		if body == nil {
			body = n.FirstChild(phpintel.KindDeclarationList, phpintel.KindEnumDeclarationList)
		}

		for _, c := range n.Children {
			cs := s
			if c == body {
				cs = s.classBody(r.classNodeType(n, s), n)
			}

			if r.walk(c, cs, visit) == Stop {
				return Stop
			}
		}

		return Continue
	case n.Kind == phpintel.KindNamespaceDefinition:
		s.resetNames()

		return r.walkAll(n.Children, s, visit)
	case n.Kind == phpintel.KindForeachStatement:
		return r.walkForeach(n, s, visit)
	default:
		return r.walkAll(n.Children, s, visit)
	}
}

func (r *Resolver) walkAll(children []*phpintel.Node, s *Scope, visit Visitor) Action {
	for _, c := range children {
		if r.walk(c, s, visit) == Stop {
			return Stop
		}
	}

	return Continue
}

// functionScope derives the scope of a function-like body and binds its parameters.
func (r *Resolver) functionScope(n *phpintel.Node, s *Scope) *Scope {
	static := IsStatic(n)

	var fs *Scope

	switch n.Kind {
	case phpintel.KindArrowFunction:
		// Arrow functions capture the whole enclosing scope by value.
		fs = s.Clone()
		if static {
			fs.This = nil
		}
	case phpintel.KindAnonymousFunction:
		fs = s.child(!static)

		if use := n.FirstChild(phpintel.KindAnonymousFunctionUseClause); use != nil {
			for _, c := range use.NamedChildren() {
				name := VariableName(c)
				if name == "" {
					continue
				}

				t := TypeMixed
				if v, ok := s.Var(name); ok {
					t = v.Type
				}

				fs.Bind(name, newVariable(t, c))
			}
		}
	case phpintel.KindMethodDeclaration:
		fs = s.child(!static)
	default:
		fs = s.child(false)
	}

	params := n.ChildByField("parameters")
	if params == nil {
		return fs
	}

	for _, p := range params.NamedChildren() {
		if !p.Kind.IsParameter() {
			continue
		}

		name := VariableName(p.ChildByField("name"))
		if name == "" {
			continue
		}

		t := r.parameterType(p, n, fs)
		if p.Kind == phpintel.KindVariadicParameter {
			t = arrayOf(t)
		}

		fs.Bind(name, newVariable(t, p))
	}

	return fs
}

// walkForeach binds the loop variables once the iterated expression has been visited.
func (r *Resolver) walkForeach(n *phpintel.Node, s *Scope, visit Visitor) Action {
	var (
		named   int
		subject *phpintel.Node
	)

	for _, c := range n.Children {
		if c.Named && c.Kind != phpintel.KindComment && c.Field != "body" {
			switch named {
			case 0:
				subject = c
			case 1:
				r.bindForeach(n, subject, c, s)
			}

			named++
		}

		if r.walk(c, s, visit) == Stop {
			return Stop
		}
	}

	return Continue
}

func (r *Resolver) bindForeach(n, subject, binding *phpintel.Node, s *Scope) {
	elem := r.ResolveExpressionType(subject, s).ElementType()

	value := binding
	if binding.Kind == phpintel.KindPair {
		pair := binding.NamedChildren()
		if len(pair) == 2 {
			if name := VariableName(pair[0]); name != "" {
				s.Bind(name, newVariable(TypeMixed, pair[0]))
			}

			value = pair[1]
		}
	}

	// Destructuring (list(...) / [...]) is not tracked.
	name := VariableName(value)
	if name == "" {
		return
	}

	if block := docblock.Parse(n.DocComment()); block != nil {
		if v, ok := block.Var(name); ok && v.Type != "" {
			elem = r.docType(v.Type, value, s)
		}
	}

	s.Bind(name, newVariable(elem, value))
}

// after updates the scope once a node has been visited. Only plain "=" to a
// simple variable is tracked; compound assignment, destructuring, global,
// static and extract() are not.
func (r *Resolver) after(n *phpintel.Node, s *Scope) {
	if n.Kind != phpintel.KindAssignmentExpression {
		return
	}

	left := n.ChildByField("left")
	right := n.ChildByField("right")

	if left == nil || right == nil || right.IsError() || left.Kind != phpintel.KindVariableName || IsThisVariable(left) {
		return
	}

	name := VariableName(left)
	t := r.ResolveExpressionType(right, s)

	if stmt := n.Parent; stmt != nil && stmt.Kind == phpintel.KindExpressionStatement {
		if block := docblock.Parse(stmt.DocComment()); block != nil {
			if v, ok := block.Var(name); ok && v.Type != "" {
				t = r.docType(v.Type, left, s)
			}
		}
	}

	s.Bind(name, newVariable(t, left))
}
