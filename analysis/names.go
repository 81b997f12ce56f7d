package analysis

import (
	"strings"

	"github.com/rlch/phpintel"
)

// NameKind selects which import table a name is resolved against.
type NameKind int

// Name kinds.
const (
	NameClass NameKind = iota
	NameFunction
	NameConst
)

// IsThisVariable reports whether n is the $this variable.
func IsThisVariable(n *phpintel.Node) bool {
	return n != nil && n.Kind == phpintel.KindVariableName && VariableName(n) == "this"
}

// VariableName returns the name of a variable_name node without the "$".
func VariableName(n *phpintel.Node) string {
	if n == nil {
		return ""
	}

	if n.Kind == phpintel.KindByRef {
		n = n.FirstChild(phpintel.KindVariableName)
		if n == nil {
			return ""
		}
	}

	if n.Kind != phpintel.KindVariableName {
		return ""
	}

	if name := n.FirstChild(phpintel.KindName); name != nil {
		return name.Text()
	}

	return strings.TrimPrefix(n.Text(), "$")
}

// IsConstantDefinition reports whether n is a define('NAME', value) call.
func IsConstantDefinition(n *phpintel.Node) bool {
	if n == nil || n.Kind != phpintel.KindFunctionCallExpression {
		return false
	}

	fn := n.ChildByField("function")
	if fn == nil || (fn.Kind != phpintel.KindName && fn.Kind != phpintel.KindQualifiedName) {
		return false
	}

	if !strings.EqualFold(strings.TrimPrefix(NameText(fn), `\`), "define") {
		return false
	}

	args := callArguments(n)

	return len(args) >= 2 && stringLiteralValue(args[0]) != ""
}

// IsClassLike reports whether n declares a class, interface, trait or enum.
func IsClassLike(n *phpintel.Node) bool {
	return n != nil && n.Kind.IsClassLike()
}

// IsStatic reports whether a method, property or closure node carries the static modifier.
func IsStatic(n *phpintel.Node) bool {
	if n == nil {
		return false
	}

	if n.ChildByField("static_modifier") != nil {
		return true
	}

	return n.HasChild(phpintel.KindStaticModifier)
}

// NameText returns the text of a name, qualified_name or namespace_name node
// with comments and whitespace removed.
func NameText(n *phpintel.Node) string {
	if n == nil {
		return ""
	}

	if len(n.Children) == 0 {
		return n.Text()
	}

	var b strings.Builder

	n.Walk(func(c *phpintel.Node) bool {
		if c.Kind == phpintel.KindComment {
			return false
		}

		if len(c.Children) == 0 {
			b.WriteString(strings.TrimSpace(c.Text()))
		}

		return true
	})

	return b.String()
}

// callArguments returns the argument expressions of a call node.
func callArguments(n *phpintel.Node) []*phpintel.Node {
	args := n.ChildByField("arguments")
	if args == nil {
		args = n.FirstChild(phpintel.KindArguments)
	}

	if args == nil {
		return nil
	}

	var out []*phpintel.Node

	for _, a := range args.ChildrenOfKind(phpintel.KindArgument) {
		if expr := lastNamed(a); expr != nil {
			out = append(out, expr)
		}
	}

	return out
}

// stringLiteralValue returns the contents of a simple quoted string literal.
func stringLiteralValue(n *phpintel.Node) string {
	if n == nil || (n.Kind != phpintel.KindString && n.Kind != phpintel.KindEncapsedString) {
		return ""
	}

	text := n.Text()
	if len(text) < 2 {
		return ""
	}

	return text[1 : len(text)-1]
}

// operatorOf returns the operator token of an expression: the child filling
// the operator field, else the first anonymous token.
func operatorOf(n *phpintel.Node) string {
	var first string

	for _, c := range n.Children {
		if c.Field == "operator" {
			return c.Type
		}

		if first == "" && !c.Named {
			first = c.Type
		}
	}

	return first
}

func lastNamed(n *phpintel.Node) *phpintel.Node {
	named := n.NamedChildren()
	if len(named) == 0 {
		return nil
	}

	return named[len(named)-1]
}

func firstNamed(n *phpintel.Node) *phpintel.Node {
	named := n.NamedChildren()
	if len(named) == 0 {
		return nil
	}

	return named[0]
}

// ----------------------------------------------------------------------------
// Namespace regions and import tables
// ----------------------------------------------------------------------------

// namespaceRegion is the part of a file governed by one namespace declaration.
type namespaceRegion struct {
	name       string
	start, end int

	// imports maps a lowercased alias to the imported FQN, per NameKind.
	imports [3]map[string]string

	// aliases records the declaring clause of each class alias, for unused-import checks.
	aliases map[string]*phpintel.Node
}

func newNamespaceRegion(name string, start, end int) *namespaceRegion {
	r := &namespaceRegion{
		name:    name,
		start:   start,
		end:     end,
		aliases: make(map[string]*phpintel.Node),
	}

	for i := range r.imports {
		r.imports[i] = make(map[string]string)
	}

	return r
}

// nameTable holds the namespace regions of one file.
type nameTable struct {
	regions []*namespaceRegion
}

// buildNameTable scans the top level of a program for namespaces and use declarations.
func buildNameTable(root *phpintel.Node) *nameTable {
	table := &nameTable{}
	current := newNamespaceRegion("", 0, root.Span.End.Offset)
	table.regions = append(table.regions, current)

	var scan func(n *phpintel.Node)

	scan = func(n *phpintel.Node) {
		for _, c := range n.Children {
			switch c.Kind {
			case phpintel.KindNamespaceDefinition:
				name := strings.TrimPrefix(NameText(c.ChildByField("name")), `\`)
				body := c.ChildByField("body")

				if body != nil {
					region := newNamespaceRegion(name, c.Span.Start.Offset, c.Span.End.Offset)
					table.regions = append(table.regions, region)
					collectImports(region, body)

					continue
				}

				current.end = c.Span.Start.Offset
				current = newNamespaceRegion(name, c.Span.Start.Offset, root.Span.End.Offset)
				table.regions = append(table.regions, current)
			case phpintel.KindNamespaceUseDeclaration:
				addUseDeclaration(current, c)
			case phpintel.KindText, phpintel.KindPhpTag, phpintel.KindComment:
			default:
				// Tolerate use declarations nested in error nodes.
				if c.Kind == phpintel.KindError {
					scan(c)
				}
			}
		}
	}

	scan(root)

	return table
}

func collectImports(region *namespaceRegion, body *phpintel.Node) {
	for _, c := range body.Children {
		if c.Kind == phpintel.KindNamespaceUseDeclaration {
			addUseDeclaration(region, c)
		}
	}
}

func addUseDeclaration(region *namespaceRegion, decl *phpintel.Node) {
	kind := useKind(decl)
	prefix := ""

	if group := decl.ChildByField("body"); group != nil {
		if ns := decl.FirstChild(phpintel.KindNamespaceName); ns != nil {
			prefix = strings.TrimPrefix(NameText(ns), `\`) + `\`
		}

		for _, clause := range group.ChildrenOfKind(phpintel.KindNamespaceUseClause) {
			addUseClause(region, clause, prefix, kind)
		}

		return
	}

	for _, clause := range decl.ChildrenOfKind(phpintel.KindNamespaceUseClause) {
		addUseClause(region, clause, "", kind)
	}
}

func addUseClause(region *namespaceRegion, clause *phpintel.Node, prefix string, kind NameKind) {
	if k, ok := clauseKind(clause); ok {
		kind = k
	}

	target := UseClauseTarget(clause, prefix)
	if target == "" {
		return
	}

	alias := target
	if i := strings.LastIndex(alias, `\`); i >= 0 {
		alias = alias[i+1:]
	}

	if a := clause.ChildByField("alias"); a != nil {
		alias = a.Text()
	}

	key := strings.ToLower(alias)
	if kind == NameConst {
		key = alias
	}

	region.imports[kind][key] = target

	if kind == NameClass {
		region.aliases[key] = clause
	}
}

// UseClauseTarget returns the FQN imported by a namespace_use_clause.
func UseClauseTarget(clause *phpintel.Node, prefix string) string {
	for _, c := range clause.Children {
		if c.Field == "alias" {
			continue
		}

		if c.Kind == phpintel.KindName || c.Kind == phpintel.KindQualifiedName {
			return prefix + strings.TrimPrefix(NameText(c), `\`)
		}
	}

	return ""
}

// useKind returns the import kind of a namespace_use_declaration ("use function", "use const").
func useKind(decl *phpintel.Node) NameKind {
	for _, c := range decl.Children {
		if c.Field != "type" {
			continue
		}

		switch strings.ToLower(c.Text()) {
		case "function":
			return NameFunction
		case "const":
			return NameConst
		}
	}

	return NameClass
}

func clauseKind(clause *phpintel.Node) (NameKind, bool) {
	for _, c := range clause.Children {
		if c.Field != "type" {
			continue
		}

		switch strings.ToLower(c.Text()) {
		case "function":
			return NameFunction, true
		case "const":
			return NameConst, true
		}
	}

	return NameClass, false
}

// regionAt returns the innermost region containing the offset.
func (t *nameTable) regionAt(offset int) *namespaceRegion {
	var best *namespaceRegion

	for _, r := range t.regions {
		if r.start <= offset && offset <= r.end {
			best = r
		}
	}

	if best == nil {
		return t.regions[0]
	}

	return best
}

// resolve qualifies a name against the region's namespace and imports.
// Special class names (self, static, parent) are the caller's responsibility.
func (r *namespaceRegion) resolve(name string, kind NameKind) string {
	if name == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(name, `\`); ok {
		return rest
	}

	if len(name) > 10 && strings.EqualFold(name[:10], `namespace\`) {
		return r.qualify(name[10:])
	}

	first, rest, qualified := strings.Cut(name, `\`)

	if !qualified {
		key := strings.ToLower(name)
		if kind == NameConst {
			key = name
		}

		if target, ok := r.imports[kind][key]; ok {
			return target
		}

		return r.qualify(name)
	}

	// Qualified names always resolve their first segment through class imports.
	if target, ok := r.imports[NameClass][strings.ToLower(first)]; ok {
		return target + `\` + rest
	}

	return r.qualify(name)
}

func (r *namespaceRegion) qualify(name string) string {
	if r.name == "" {
		return name
	}

	return r.name + `\` + name
}
