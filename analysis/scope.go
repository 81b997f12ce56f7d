package analysis

import (
	"maps"

	"github.com/rlch/phpintel"
)

// Variable is a local binding: its inferred type and the node that defined it.
type Variable struct {
	Type Type
	Node *phpintel.Node
}

func newVariable(t Type, n *phpintel.Node) *Variable {
	return &Variable{Type: t.OrMixed(), Node: n}
}

// Scope is the set of local bindings valid at one point of a traversal.
//
// Scopes are derived by copy at function and class boundaries, so a child never
// mutates its parent and siblings never see each other's bindings. The name
// cache is shared by a scope and its children until a namespace declaration
// installs a fresh one.
type Scope struct {
	// This is the $this binding; nil outside instance context.
	This *Variable

	// CurrentClassLike is the enclosing class-like, set in static context too.
	CurrentClassLike *Variable

	// Vars maps variable names (without "$") to their bindings.
	Vars map[string]*Variable

	names *nameCache
}

// NewScope returns an empty root scope.
func NewScope() *Scope {
	return &Scope{
		Vars:  make(map[string]*Variable),
		names: newNameCache(),
	}
}

// Var returns the binding of a variable name, with or without the "$".
func (s *Scope) Var(name string) (*Variable, bool) {
	if s == nil {
		return nil, false
	}

	if len(name) > 0 && name[0] == '$' {
		name = name[1:]
	}

	v, ok := s.Vars[name]

	return v, ok
}

// Bind records or overwrites a variable binding.
func (s *Scope) Bind(name string, v *Variable) {
	s.Vars[name] = v
}

// Clone returns a copy whose variable map can be mutated independently.
func (s *Scope) Clone() *Scope {
	out := *s
	out.Vars = maps.Clone(s.Vars)

	if out.Vars == nil {
		out.Vars = make(map[string]*Variable)
	}

	return &out
}

// child derives a function scope: no locals, class-like binding and name cache
// inherited, $this only if requested.
func (s *Scope) child(withThis bool) *Scope {
	out := &Scope{
		CurrentClassLike: s.CurrentClassLike,
		Vars:             make(map[string]*Variable),
		names:            s.names,
	}

	if withThis {
		out.This = s.This
	}

	return out
}

// classBody derives the scope of a class-like body bound to the given type.
func (s *Scope) classBody(t Type, n *phpintel.Node) *Scope {
	v := newVariable(t, n)

	return &Scope{
		This:             v,
		CurrentClassLike: v,
		Vars:             make(map[string]*Variable),
		names:            s.names,
	}
}

// resetNames installs a fresh name cache, invalidating lookups made under the previous namespace.
func (s *Scope) resetNames() {
	s.names = newNameCache()
}

// nameCache memoizes unqualified name to FQN lookups.
type nameCache struct {
	entries [3]map[string]string
}

func newNameCache() *nameCache {
	c := &nameCache{}
	for i := range c.entries {
		c.entries[i] = make(map[string]string)
	}

	return c
}

func (c *nameCache) get(kind NameKind, name string) (string, bool) {
	if c == nil {
		return "", false
	}

	fqn, ok := c.entries[kind][name]

	return fqn, ok
}

func (c *nameCache) put(kind NameKind, name, fqn string) {
	if c == nil {
		return
	}

	c.entries[kind][name] = fqn
}
