package analysis

import (
	"strings"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/docblock"
)

// ResolveDefinition classifies a declaring node and builds its Definition.
// It returns false for nodes that are not declaration sites, and for members of
// anonymous classes, which have no stable name.
//
// Variables (assignment targets, parameters and closure use variables) come
// back with kind variable and an empty FQN.
func (r *Resolver) ResolveDefinition(n *phpintel.Node) (*Definition, bool) {
	if n == nil || n.Missing {
		return nil, false
	}

	switch n.Kind {
	case phpintel.KindNamespaceDefinition:
		return r.namespaceDefinition(n)
	case phpintel.KindClassDeclaration, phpintel.KindInterfaceDeclaration,
		phpintel.KindTraitDeclaration, phpintel.KindEnumDeclaration:
		return r.classDefinition(n)
	case phpintel.KindConstElement:
		return r.constDefinition(n)
	case phpintel.KindEnumCase:
		return r.enumCaseDefinition(n)
	case phpintel.KindPropertyElement:
		return r.propertyDefinition(n)
	case phpintel.KindPropertyPromotionParameter:
		return r.promotedPropertyDefinition(n)
	case phpintel.KindMethodDeclaration:
		return r.methodDefinition(n)
	case phpintel.KindFunctionDefinition:
		return r.functionDefinition(n)
	case phpintel.KindFunctionCallExpression:
		if IsConstantDefinition(n) {
			return r.defineDefinition(n)
		}
	case phpintel.KindAssignmentExpression:
		left := n.ChildByField("left")
		if left != nil && left.Kind == phpintel.KindVariableName && !IsThisVariable(left) {
			return r.variableDefinition(n, left, r.ResolveExpressionType(n.ChildByField("right"), nil)), true
		}
	case phpintel.KindSimpleParameter, phpintel.KindVariadicParameter:
		fn := n.Ancestor(phpintel.KindFunctionDefinition, phpintel.KindMethodDeclaration,
			phpintel.KindAnonymousFunction, phpintel.KindArrowFunction)

		t := r.parameterType(n, fn, nil)
		if n.Kind == phpintel.KindVariadicParameter {
			t = arrayOf(t)
		}

		return r.variableDefinition(n, n.ChildByField("name"), t), true
	case phpintel.KindVariableName:
		if isUseClauseVariable(n) {
			return r.variableDefinition(n, n, TypeMixed), true
		}
	}

	return nil, false
}

// DefinedFQN returns the FQN declared by n when n is the name of a declaration.
func (r *Resolver) DefinedFQN(n *phpintel.Node) (string, bool) {
	if n == nil || n.Parent == nil {
		return "", false
	}

	decl := n.Parent
	if decl.Kind == phpintel.KindNamespaceName || decl.Kind == phpintel.KindVariableName {
		n, decl = decl, decl.Parent
	}

	switch {
	case decl == nil:
		return "", false
	case decl.Kind == phpintel.KindConstElement:
		if decl.FirstChild(phpintel.KindName) != n {
			return "", false
		}
	case n.Field != "name":
		return "", false
	}

	def, ok := r.ResolveDefinition(decl)
	if !ok || def.FQN == "" {
		return "", false
	}

	return def.FQN, true
}

func isUseClauseVariable(n *phpintel.Node) bool {
	p := n.Parent
	if p != nil && p.Kind == phpintel.KindByRef {
		p = p.Parent
	}

	return p != nil && p.Kind == phpintel.KindAnonymousFunctionUseClause
}

func (r *Resolver) newDefinition(fqn string, kind SymbolKind, n, name *phpintel.Node) *Definition {
	span := n.Span
	if name != nil {
		span = name.Span
	}

	return &Definition{
		FQN:           fqn,
		Kind:          kind,
		Node:          n,
		Location:      Location{URI: r.uri, Span: span},
		ContainerName: ContainerName(fqn),
	}
}

func (r *Resolver) variableDefinition(n, name *phpintel.Node, t Type) *Definition {
	def := r.newDefinition("", SymbolKindVariable, n, name)
	def.Type = t.OrMixed()
	def.Signature = string(def.Type) + " $" + VariableName(name)

	return def
}

func (r *Resolver) namespaceDefinition(n *phpintel.Node) (*Definition, bool) {
	name := n.ChildByField("name")

	fqn := strings.TrimPrefix(NameText(name), `\`)
	if fqn == "" {
		return nil, false
	}

	def := r.newDefinition(fqn, SymbolKindNamespace, n, name)
	def.Signature = "namespace " + fqn

	return def, true
}

// namespaceAt returns the namespace in effect at a node.
func (r *Resolver) namespaceAt(n *phpintel.Node) string {
	return r.names.regionAt(n.Span.Start.Offset).name
}

func (r *Resolver) qualify(n *phpintel.Node, name string) string {
	if ns := r.namespaceAt(n); ns != "" {
		return ns + `\` + name
	}

	return name
}

// classFQN returns the FQN of a class-like declaration.
func (r *Resolver) classFQN(cls *phpintel.Node) string {
	name := cls.ChildByField("name")
	if name == nil {
		return ""
	}

	return r.qualify(cls, name.Text())
}

// memberOwner returns the FQN of the class-like a member belongs to.
func (r *Resolver) memberOwner(n *phpintel.Node) (string, bool) {
	cls := n.Ancestor(phpintel.KindClassDeclaration, phpintel.KindInterfaceDeclaration,
		phpintel.KindTraitDeclaration, phpintel.KindEnumDeclaration, phpintel.KindAnonymousClass)
	if cls == nil || cls.Kind == phpintel.KindAnonymousClass {
		return "", false
	}

	fqn := r.classFQN(cls)

	return fqn, fqn != ""
}

var classKinds = map[phpintel.Kind]SymbolKind{
	phpintel.KindClassDeclaration:     SymbolKindClass,
	phpintel.KindInterfaceDeclaration: SymbolKindInterface,
	phpintel.KindTraitDeclaration:     SymbolKindTrait,
	phpintel.KindEnumDeclaration:      SymbolKindEnum,
}

func (r *Resolver) classDefinition(n *phpintel.Node) (*Definition, bool) {
	name := n.ChildByField("name")
	if name == nil || name.Missing {
		return nil, false
	}

	fqn := r.qualify(n, name.Text())
	kind := classKinds[n.Kind]

	def := r.newDefinition(fqn, kind, n, name)
	def.Type = ClassType(fqn)
	def.IsAbstract = n.HasChild(phpintel.KindAbstractModifier) || kind == SymbolKindInterface
	def.Extends = r.classParents(n)
	r.document(def, n)

	var sig strings.Builder

	sig.WriteString(kind.String() + " " + name.Text())

	if base := n.FirstChild(phpintel.KindBaseClause); base != nil {
		sig.WriteString(" extends " + strings.Join(nameTexts(base), ", "))
	}

	if impl := n.FirstChild(phpintel.KindClassInterfaceClause); impl != nil {
		sig.WriteString(" implements " + strings.Join(nameTexts(impl), ", "))
	}

	def.Signature = sig.String()

	return def, true
}

// classParents lists the superclass, interfaces and used traits of a class-like, resolved to FQNs.
func (r *Resolver) classParents(n *phpintel.Node) []string {
	var out []string

	add := func(clause *phpintel.Node) {
		for _, c := range clause.Children {
			if c.Kind == phpintel.KindName || c.Kind == phpintel.KindQualifiedName {
				out = append(out, r.resolveName(NameText(c), NameClass, c, nil))
			}
		}
	}

	for _, c := range n.Children {
		if c.Kind == phpintel.KindBaseClause || c.Kind == phpintel.KindClassInterfaceClause {
			add(c)
		}
	}

	if body := n.ChildByField("body"); body != nil {
		for _, use := range body.ChildrenOfKind(phpintel.KindUseDeclaration) {
			add(use)
		}
	}

	return out
}

func nameTexts(n *phpintel.Node) []string {
	var out []string

	for _, c := range n.Children {
		if c.Kind == phpintel.KindName || c.Kind == phpintel.KindQualifiedName {
			out = append(out, NameText(c))
		}
	}

	return out
}

func (r *Resolver) constDefinition(n *phpintel.Node) (*Definition, bool) {
	name := n.FirstChild(phpintel.KindName)
	if name == nil {
		return nil, false
	}

	decl := n.Parent
	inClass := decl != nil && decl.Parent != nil &&
		(decl.Parent.Kind == phpintel.KindDeclarationList || decl.Parent.Kind == phpintel.KindEnumDeclarationList)

	var def *Definition

	if inClass {
		owner, ok := r.memberOwner(n)
		if !ok {
			return nil, false
		}

		def = r.newDefinition(owner+"::"+name.Text(), SymbolKindConstant, n, name)
		def.IsStatic = true
	} else {
		def = r.newDefinition(r.qualify(n, name.Text()), SymbolKindConstant, n, name)
	}

	value := lastNamed(n)
	if value != nil && value != name {
		def.Type = r.ResolveExpressionType(value, nil)
		def.Signature = "const " + name.Text() + " = " + value.Text()
	} else {
		def.Signature = "const " + name.Text()
	}

	if decl != nil {
		r.document(def, decl)
	}

	return def, true
}

func (r *Resolver) enumCaseDefinition(n *phpintel.Node) (*Definition, bool) {
	name := n.ChildByField("name")

	owner, ok := r.memberOwner(n)
	if name == nil || !ok {
		return nil, false
	}

	def := r.newDefinition(owner+"::"+name.Text(), SymbolKindConstant, n, name)
	def.IsStatic = true
	def.Type = ClassType(owner)
	def.Signature = "case " + name.Text()
	r.document(def, n)

	return def, true
}

func (r *Resolver) propertyDefinition(n *phpintel.Node) (*Definition, bool) {
	decl := n.Parent
	nameNode := n.ChildByField("name")

	owner, ok := r.memberOwner(n)
	if decl == nil || nameNode == nil || !ok {
		return nil, false
	}

	name := VariableName(nameNode)
	static := IsStatic(decl)

	fqn := owner + "->" + name
	if static {
		fqn = owner + "::$" + name
	}

	def := r.newDefinition(fqn, SymbolKindProperty, n, nameNode)
	def.IsStatic = static
	def.IsAbstract = decl.HasChild(phpintel.KindAbstractModifier)
	r.document(def, decl)

	block := docblock.Parse(decl.DocComment())

	switch {
	case decl.ChildByField("type") != nil:
		def.Type = r.typeFromNode(decl.ChildByField("type"), n, nil)
	case block != nil:
		if v, ok := block.Var(name); ok && v.Type != "" {
			def.Type = r.docType(v.Type, n, nil)
		}
	}

	if def.Type == "" {
		if value := n.ChildByField("default_value"); value != nil {
			def.Type = r.ResolveExpressionType(value, nil)
		}
	}

	def.Signature = strings.TrimSpace(string(def.Type.OrMixed()) + " $" + name)

	return def, true
}

func (r *Resolver) promotedPropertyDefinition(n *phpintel.Node) (*Definition, bool) {
	nameNode := n.ChildByField("name")

	owner, ok := r.memberOwner(n)
	if nameNode == nil || !ok {
		return nil, false
	}

	fn := n.Ancestor(phpintel.KindMethodDeclaration)
	name := VariableName(nameNode)

	def := r.newDefinition(owner+"->"+name, SymbolKindProperty, n, nameNode)
	def.Type = r.parameterType(n, fn, nil)
	def.Signature = string(def.Type.OrMixed()) + " $" + name

	if fn != nil {
		if block := docblock.Parse(fn.DocComment()); block != nil {
			if p, ok := block.Param(name); ok {
				def.Documentation = p.Description
			}
		}
	}

	return def, true
}

func (r *Resolver) methodDefinition(n *phpintel.Node) (*Definition, bool) {
	nameNode := n.ChildByField("name")

	owner, ok := r.memberOwner(n)
	if nameNode == nil || nameNode.Missing || !ok {
		return nil, false
	}

	name := nameNode.Text()
	static := IsStatic(n)

	fqn := owner + "->" + name + "()"
	if static {
		fqn = owner + "::" + name + "()"
	}

	kind := SymbolKindMethod
	if lower := strings.ToLower(name); lower == "__construct" || lower == "__destruct" {
		kind = SymbolKindConstructor
	}

	def := r.newDefinition(fqn, kind, n, nameNode)
	def.IsStatic = static
	def.IsAbstract = n.HasChild(phpintel.KindAbstractModifier) || n.ChildByField("body") == nil
	r.callable(def, n, name)

	return def, true
}

func (r *Resolver) functionDefinition(n *phpintel.Node) (*Definition, bool) {
	nameNode := n.ChildByField("name")
	if nameNode == nil || nameNode.Missing {
		return nil, false
	}

	def := r.newDefinition(r.qualify(n, nameNode.Text())+"()", SymbolKindFunction, n, nameNode)
	r.callable(def, n, nameNode.Text())

	return def, true
}

// callable fills the return type, parameters and signature of a function-like definition.
func (r *Resolver) callable(def *Definition, n *phpintel.Node, name string) {
	r.document(def, n)

	if rt := n.ChildByField("return_type"); rt != nil {
		def.Type = r.typeFromNode(rt, n, nil)
	} else if block := docblock.Parse(n.DocComment()); block != nil && block.ReturnType() != "" {
		def.Type = r.docType(block.ReturnType(), n, nil)
	}

	params := make([]string, 0)

	if list := n.ChildByField("parameters"); list != nil {
		for _, p := range list.NamedChildren() {
			if !p.Kind.IsParameter() {
				continue
			}

			param := Param{
				Name:     "$" + VariableName(p.ChildByField("name")),
				Type:     r.parameterType(p, n, nil),
				Variadic: p.Kind == phpintel.KindVariadicParameter,
			}

			if dv := p.ChildByField("default_value"); dv != nil {
				param.Default = dv.Text()
			}

			def.Params = append(def.Params, param)
			params = append(params, param.String())
		}
	}

	sig := "function " + name + "(" + strings.Join(params, ", ") + ")"
	if def.Type != "" {
		sig += ": " + string(def.Type)
	}

	def.Signature = sig
}

func (r *Resolver) defineDefinition(n *phpintel.Node) (*Definition, bool) {
	args := callArguments(n)
	fqn := strings.TrimPrefix(stringLiteralValue(args[0]), `\`)

	def := r.newDefinition(fqn, SymbolKindConstant, n, args[0])
	def.Type = r.ResolveExpressionType(args[1], nil)
	def.Signature = "const " + fqn + " = " + args[1].Text()

	if stmt := n.Parent; stmt != nil && stmt.Kind == phpintel.KindExpressionStatement {
		r.document(def, stmt)
	}

	return def, true
}

// document attaches the doc comment preceding decl.
func (r *Resolver) document(def *Definition, decl *phpintel.Node) {
	block := docblock.Parse(decl.DocComment())
	if block == nil {
		return
	}

	def.Documentation = block.Text()
	def.Deprecated = block.Deprecated
}

// String renders a parameter the way it would be declared.
func (p Param) String() string {
	var b strings.Builder

	if !p.Type.IsUnknown() {
		b.WriteString(string(p.Type))
		b.WriteByte(' ')
	}

	if p.Variadic {
		b.WriteString("...")
	}

	b.WriteString(p.Name)

	if p.Default != "" {
		b.WriteString(" = " + p.Default)
	}

	return b.String()
}
