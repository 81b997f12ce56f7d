package analysis

import (
	"strings"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/docblock"
)

// Lookup provides cross-file definitions, typically backed by the global index.
type Lookup interface {
	Definition(fqn string) (Definition, bool)
}

// Resolver resolves declarations and use-sites of one parsed file.
// It is not safe for concurrent use while definitions are being added.
type Resolver struct {
	uri   string
	tree  *phpintel.Tree
	index Lookup

	// local holds the file's own definitions, consulted before the index.
	local map[string]*Definition

	names *nameTable
}

// NewResolver returns a resolver for a parsed file. index may be nil.
func NewResolver(uri string, tree *phpintel.Tree, index Lookup) *Resolver {
	return &Resolver{
		uri:   uri,
		tree:  tree,
		index: index,
		local: make(map[string]*Definition),
		names: buildNameTable(tree.Root),
	}
}

// Tree returns the tree the resolver works on.
func (r *Resolver) Tree() *phpintel.Tree {
	return r.tree
}

// addLocal makes definitions visible to lookups ahead of the index.
func (r *Resolver) addLocal(defs []*Definition) {
	for _, d := range defs {
		if d.FQN != "" {
			r.local[d.FQN] = d
		}
	}
}

// Lookup returns the definition of an FQN from this file or the index.
func (r *Resolver) Lookup(fqn string) (Definition, bool) {
	if d, ok := r.local[fqn]; ok {
		return *d, true
	}

	if r.index != nil {
		return r.index.Definition(fqn)
	}

	return Definition{}, false
}

func (r *Resolver) exists(fqn string) bool {
	_, ok := r.Lookup(fqn)

	return ok
}

// ----------------------------------------------------------------------------
// Name resolution
// ----------------------------------------------------------------------------

// resolveName qualifies a class, function or constant name as seen from node at.
// Results are memoized in the scope's name cache when a scope is given.
func (r *Resolver) resolveName(name string, kind NameKind, at *phpintel.Node, s *Scope) string {
	if s != nil {
		if fqn, ok := s.names.get(kind, name); ok {
			return fqn
		}
	}

	fqn := r.names.regionAt(at.Span.Start.Offset).resolve(name, kind)

	if s != nil {
		s.names.put(kind, name, fqn)
	}

	return fqn
}

// ResolveClassName returns the FQN a class name refers to at node at.
func (r *Resolver) ResolveClassName(name string, at *phpintel.Node, s *Scope) string {
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		if names := r.classNameType(name, at, s).ClassNames(); len(names) > 0 {
			return names[0]
		}

		return ""
	}

	return r.resolveName(name, NameClass, at, s)
}

// ResolveFunctionName returns the FQN (without "()") of a called function.
// Unqualified names fall back to the global function when the namespaced one does not exist.
func (r *Resolver) ResolveFunctionName(name string, at *phpintel.Node, s *Scope) string {
	fqn := r.resolveName(name, NameFunction, at, s)

	if r.fallsBackToGlobal(name, fqn, NameFunction, at) && !r.exists(fqn+"()") && r.exists(name+"()") {
		return name
	}

	return fqn
}

// ResolveConstantName returns the FQN of a constant, with the same global fallback as functions.
func (r *Resolver) ResolveConstantName(name string, at *phpintel.Node, s *Scope) string {
	fqn := r.resolveName(name, NameConst, at, s)

	if r.fallsBackToGlobal(name, fqn, NameConst, at) && !r.exists(fqn) && r.exists(name) {
		return name
	}

	return fqn
}

func (r *Resolver) fallsBackToGlobal(name, fqn string, kind NameKind, at *phpintel.Node) bool {
	if strings.Contains(name, `\`) || fqn == name {
		return false
	}

	key := name
	if kind != NameConst {
		key = strings.ToLower(name)
	}

	_, imported := r.names.regionAt(at.Span.Start.Offset).imports[kind][key]

	return !imported
}

// classNameType returns the instance type named by a class reference, handling self, static and parent.
func (r *Resolver) classNameType(name string, at *phpintel.Node, s *Scope) Type {
	switch strings.ToLower(name) {
	case "self", "static":
		return r.selfType(at, s)
	case "parent":
		return r.parentType(at)
	}

	return ClassType(r.resolveName(name, NameClass, at, s))
}

// selfType returns the type of the enclosing class-like.
func (r *Resolver) selfType(at *phpintel.Node, s *Scope) Type {
	if s != nil && s.CurrentClassLike != nil {
		return s.CurrentClassLike.Type
	}

	cls := enclosingClass(at)
	if cls == nil {
		return TypeMixed
	}

	return r.classNodeType(cls, s)
}

// parentType returns the superclass type of the class lexically enclosing at.
func (r *Resolver) parentType(at *phpintel.Node) Type {
	cls := enclosingClass(at)
	if cls == nil {
		return TypeMixed
	}

	base := cls.FirstChild(phpintel.KindBaseClause)
	if base == nil {
		return TypeMixed
	}

	name := base.FirstChild(phpintel.KindName, phpintel.KindQualifiedName)
	if name == nil {
		return TypeMixed
	}

	return ClassType(r.resolveName(NameText(name), NameClass, name, nil))
}

// classNodeType returns the instance type of a class-like node. An anonymous
// class is typed as its superclass, or mixed.
func (r *Resolver) classNodeType(cls *phpintel.Node, s *Scope) Type {
	if cls.Kind != phpintel.KindAnonymousClass {
		if fqn := r.classFQN(cls); fqn != "" {
			return ClassType(fqn)
		}

		return TypeMixed
	}

	base := cls.FirstChild(phpintel.KindBaseClause)
	if base == nil {
		return TypeMixed
	}

	name := base.FirstChild(phpintel.KindName, phpintel.KindQualifiedName)
	if name == nil {
		return TypeMixed
	}

	return ClassType(r.resolveName(NameText(name), NameClass, name, s))
}

func enclosingClass(n *phpintel.Node) *phpintel.Node {
	if n == nil {
		return nil
	}

	if n.Kind.IsClassLike() || n.Kind == phpintel.KindAnonymousClass {
		return n
	}

	return n.Ancestor(phpintel.KindClassDeclaration, phpintel.KindInterfaceDeclaration,
		phpintel.KindTraitDeclaration, phpintel.KindEnumDeclaration, phpintel.KindAnonymousClass)
}

// ----------------------------------------------------------------------------
// Declared types
// ----------------------------------------------------------------------------

// typeFromNode converts a type annotation node into a Type.
func (r *Resolver) typeFromNode(n *phpintel.Node, at *phpintel.Node, s *Scope) Type {
	if n == nil {
		return TypeMixed
	}

	switch n.Kind {
	case phpintel.KindPrimitiveType, phpintel.KindBottomType:
		return primitiveType(n.Text())
	case phpintel.KindNamedType:
		name := n.FirstChild(phpintel.KindName, phpintel.KindQualifiedName, phpintel.KindRelativeScope)
		if name == nil {
			return r.docType(n.Text(), at, s)
		}

		text := NameText(name)
		if IsPrimitiveName(text) {
			return primitiveType(text)
		}

		return r.classNameType(text, at, s)
	case phpintel.KindOptionalType:
		inner := firstNamed(n)

		return Union(r.typeFromNode(inner, at, s), TypeNull)
	case phpintel.KindUnionType:
		var parts []Type

		for _, c := range n.NamedChildren() {
			parts = append(parts, r.typeFromNode(c, at, s))
		}

		return Union(parts...)
	case phpintel.KindIntersectionType:
		var parts []string

		for _, c := range n.NamedChildren() {
			parts = append(parts, string(r.typeFromNode(c, at, s)))
		}

		return Type(strings.Join(parts, "&"))
	default:
		return r.docType(n.Text(), at, s)
	}
}

// docType converts a doc comment type expression into a Type.
func (r *Resolver) docType(text string, at *phpintel.Node, s *Scope) Type {
	text = strings.TrimSpace(text)
	if text == "" {
		return TypeMixed
	}

	var parts []Type

	for _, p := range splitTopLevel(text, '|') {
		parts = append(parts, r.docTypePart(p, at, s))
	}

	return Union(parts...)
}

func (r *Resolver) docTypePart(p string, at *phpintel.Node, s *Scope) Type {
	if rest, ok := strings.CutPrefix(p, "?"); ok {
		return Union(r.docTypePart(rest, at, s), TypeNull)
	}

	if inner, ok := strings.CutSuffix(p, "[]"); ok {
		return arrayOf(r.docTypePart(inner, at, s))
	}

	if strings.HasPrefix(p, "(") && strings.HasSuffix(p, ")") {
		return r.docType(p[1:len(p)-1], at, s)
	}

	if i := strings.IndexByte(p, '<'); i > 0 && strings.HasSuffix(p, ">") {
		base := strings.ToLower(p[:i])
		args := splitTopLevel(p[i+1:len(p)-1], ',')

		switch base {
		case "array", "list", "non-empty-array", "non-empty-list", "iterable":
			return arrayOf(r.docType(args[len(args)-1], at, s))
		}

		p = p[:i]
	}

	if i := strings.IndexByte(p, '{'); i > 0 {
		p = p[:i]
	}

	switch lower := strings.ToLower(p); {
	case lower == "$this" || lower == "self" || lower == "static":
		return r.selfType(at, s)
	case lower == "parent":
		return r.parentType(at)
	case IsPrimitiveName(lower):
		return primitiveType(lower)
	case strings.HasPrefix(lower, "non-empty-") || strings.HasPrefix(lower, "class-string"):
		return TypeString
	case lower == "list":
		return TypeArray
	case lower == "positive-int" || lower == "negative-int":
		return TypeInt
	}

	return ClassType(r.resolveName(p, NameClass, at, s))
}

// parameterType returns the declared type of a parameter: its type hint, else
// its @param tag in the function's doc comment, else mixed. Variadic
// parameters are not wrapped in an array here.
func (r *Resolver) parameterType(p, fn *phpintel.Node, s *Scope) Type {
	if t := p.ChildByField("type"); t != nil {
		return r.typeFromNode(t, p, s)
	}

	if fn == nil {
		return TypeMixed
	}

	block := docblock.Parse(fn.DocComment())
	if tag, ok := block.Param(VariableName(p.ChildByField("name"))); ok && tag.Type != "" {
		return r.docType(tag.Type, p, s)
	}

	return TypeMixed
}

func arrayOf(t Type) Type {
	if t.IsUnknown() {
		return TypeArray
	}

	parts := t.Parts()
	out := make([]Type, len(parts))

	for i, p := range parts {
		out[i] = p + "[]"
	}

	return Union(out...)
}

// ----------------------------------------------------------------------------
// Expression types
// ----------------------------------------------------------------------------

// ResolveExpressionType infers the type of an expression. A nil scope means
// no local variables are known; $this and self still resolve through the
// enclosing class.
func (r *Resolver) ResolveExpressionType(n *phpintel.Node, s *Scope) Type {
	if n == nil || n.IsError() {
		return TypeMixed
	}

	switch n.Kind {
	case phpintel.KindVariableName:
		if IsThisVariable(n) {
			return r.thisType(n, s)
		}

		if v, ok := s.Var(VariableName(n)); ok {
			return v.Type
		}

		return TypeMixed
	case phpintel.KindName, phpintel.KindQualifiedName:
		return r.constantType(n, s)
	case phpintel.KindParenthesizedExpression, phpintel.KindErrorSuppressionExpression:
		return r.ResolveExpressionType(lastNamed(n), s)
	case phpintel.KindAssignmentExpression, phpintel.KindReferenceAssignmentExpression:
		return r.ResolveExpressionType(n.ChildByField("right"), s)
	case phpintel.KindAugmentedAssignmentExpression:
		return r.augmentedType(n, s)
	case phpintel.KindMemberAccessExpression, phpintel.KindNullsafeMemberAccessExpression:
		return r.memberType(n, s, false)
	case phpintel.KindMemberCallExpression, phpintel.KindNullsafeMemberCallExpression:
		return r.memberType(n, s, true)
	case phpintel.KindScopedCallExpression, phpintel.KindScopedPropertyAccessExpression,
		phpintel.KindClassConstantAccessExpression:
		return r.staticMemberType(n, s)
	case phpintel.KindObjectCreationExpression:
		return r.creationType(n, s)
	case phpintel.KindFunctionCallExpression:
		return r.callType(n, s)
	case phpintel.KindCloneExpression:
		return r.ResolveExpressionType(lastNamed(n), s)
	case phpintel.KindString, phpintel.KindEncapsedString, phpintel.KindHeredoc, phpintel.KindNowdoc:
		return TypeString
	case phpintel.KindInteger:
		return TypeInt
	case phpintel.KindFloat:
		return TypeFloat
	case phpintel.KindBoolean:
		return TypeBool
	case phpintel.KindNull:
		return TypeNull
	case phpintel.KindArrayCreationExpression:
		return r.arrayType(n, s)
	case phpintel.KindBinaryExpression:
		return r.binaryType(n, s)
	case phpintel.KindUnaryOpExpression:
		return r.unaryType(n, s)
	case phpintel.KindUpdateExpression:
		t := r.ResolveExpressionType(firstNamed(n), s)
		if t == TypeInt || t == TypeFloat {
			return t
		}

		return TypeNumber
	case phpintel.KindCastExpression:
		return castType(n.ChildByField("type"))
	case phpintel.KindConditionalExpression:
		alt := r.ResolveExpressionType(n.ChildByField("alternative"), s)
		if body := n.ChildByField("body"); body != nil {
			return Union(r.ResolveExpressionType(body, s), alt)
		}

		return Union(r.ResolveExpressionType(n.ChildByField("condition"), s).Without(TypeNull), alt)
	case phpintel.KindAnonymousFunction, phpintel.KindArrowFunction:
		return TypeClosure
	case phpintel.KindSubscriptExpression:
		return r.ResolveExpressionType(firstNamed(n), s).ElementType()
	default:
		// include/require, match, list, dynamic names, etc.
		return TypeMixed
	}
}

func (r *Resolver) thisType(n *phpintel.Node, s *Scope) Type {
	if s != nil {
		if s.This == nil {
			return TypeMixed
		}

		return s.This.Type
	}

	fn := n.Ancestor(phpintel.KindMethodDeclaration)
	if fn == nil || IsStatic(fn) {
		return TypeMixed
	}

	return r.selfType(n, nil)
}

func (r *Resolver) constantType(n *phpintel.Node, s *Scope) Type {
	name := NameText(n)

	switch strings.ToLower(name) {
	case "true", "false":
		return TypeBool
	case "null":
		return TypeNull
	}

	def, ok := r.Lookup(r.ResolveConstantName(name, n, s))
	if !ok {
		return TypeMixed
	}

	return def.Type.OrMixed()
}

func (r *Resolver) augmentedType(n *phpintel.Node, s *Scope) Type {
	op := operatorOf(n)

	switch {
	case len(op) < 2:
		return TypeMixed
	case op == ".=":
		return TypeString
	case op == "??=":
		return Union(r.ResolveExpressionType(n.ChildByField("left"), s).Without(TypeNull),
			r.ResolveExpressionType(n.ChildByField("right"), s))
	default:
		return r.arithmeticType(op[:len(op)-1],
			r.ResolveExpressionType(n.ChildByField("left"), s),
			r.ResolveExpressionType(n.ChildByField("right"), s))
	}
}

// memberType resolves an instance property access or method call.
func (r *Resolver) memberType(n *phpintel.Node, s *Scope, call bool) Type {
	def, ok := r.resolveMember(n, s, call)
	if !ok {
		return TypeMixed
	}

	if call && def.Type.IsUnknown() {
		return TypeMixed
	}

	return def.Type.OrMixed()
}

// resolveMember finds the definition of an instance member access or call.
func (r *Resolver) resolveMember(n *phpintel.Node, s *Scope, call bool) (Definition, bool) {
	name := n.ChildByField("name")
	if name == nil || name.Kind != phpintel.KindName {
		return Definition{}, false
	}

	objType := r.ResolveExpressionType(n.ChildByField("object"), s)

	for _, cls := range objType.ClassNames() {
		if call {
			if def, ok := r.FindMember(cls, "->"+name.Text()+"()"); ok {
				return def, true
			}

			if def, ok := r.FindMember(cls, "::"+name.Text()+"()"); ok {
				return def, true
			}

			continue
		}

		if def, ok := r.FindMember(cls, "->"+name.Text()); ok {
			return def, true
		}
	}

	return Definition{}, false
}

// staticMemberType resolves Class::method(), Class::$prop and Class::CONST.
func (r *Resolver) staticMemberType(n *phpintel.Node, s *Scope) Type {
	def, ok := r.resolveStaticMember(n, s)
	if ok {
		return def.Type.OrMixed()
	}

	if n.Kind == phpintel.KindClassConstantAccessExpression {
		if name := staticMemberName(n); name != nil && strings.EqualFold(name.Text(), "class") {
			return TypeString
		}
	}

	return TypeMixed
}

func (r *Resolver) resolveStaticMember(n *phpintel.Node, s *Scope) (Definition, bool) {
	scope := staticScope(n)
	name := staticMemberName(n)

	if scope == nil || name == nil {
		return Definition{}, false
	}

	var suffixes []string

	switch n.Kind {
	case phpintel.KindScopedCallExpression:
		if name.Kind != phpintel.KindName {
			return Definition{}, false
		}

		suffixes = []string{"::" + name.Text() + "()", "->" + name.Text() + "()"}
	case phpintel.KindScopedPropertyAccessExpression:
		if name.Kind != phpintel.KindVariableName {
			return Definition{}, false
		}

		suffixes = []string{"::$" + VariableName(name)}
	default:
		suffixes = []string{"::" + name.Text()}
	}

	for _, cls := range r.scopeType(scope, s).ClassNames() {
		for _, suffix := range suffixes {
			if def, ok := r.FindMember(cls, suffix); ok {
				return def, true
			}
		}
	}

	return Definition{}, false
}

// staticScope returns the class part of a static access.
func staticScope(n *phpintel.Node) *phpintel.Node {
	if scope := n.ChildByField("scope"); scope != nil {
		return scope
	}

	return firstNamed(n)
}

// staticMemberName returns the member part of a static access.
func staticMemberName(n *phpintel.Node) *phpintel.Node {
	if name := n.ChildByField("name"); name != nil {
		return name
	}

	named := n.NamedChildren()
	if len(named) < 2 {
		return nil
	}

	return named[len(named)-1]
}

// scopeType resolves the class side of a static access: a name, self/static/parent, or an expression.
func (r *Resolver) scopeType(scope *phpintel.Node, s *Scope) Type {
	switch scope.Kind {
	case phpintel.KindName, phpintel.KindQualifiedName, phpintel.KindRelativeScope:
		return r.classNameType(NameText(scope), scope, s)
	default:
		return r.ResolveExpressionType(scope, s)
	}
}

func (r *Resolver) creationType(n *phpintel.Node, s *Scope) Type {
	for _, c := range n.NamedChildren() {
		switch c.Kind {
		case phpintel.KindName, phpintel.KindQualifiedName, phpintel.KindRelativeScope:
			return r.classNameType(NameText(c), c, s)
		case phpintel.KindAnonymousClass:
			return r.classNodeType(c, s)
		case phpintel.KindArguments:
		default:
			// new $className
			return TypeMixed
		}
	}

	return TypeMixed
}

func (r *Resolver) callType(n *phpintel.Node, s *Scope) Type {
	fn := n.ChildByField("function")
	if fn == nil || (fn.Kind != phpintel.KindName && fn.Kind != phpintel.KindQualifiedName) {
		return TypeMixed
	}

	def, ok := r.Lookup(r.ResolveFunctionName(NameText(fn), fn, s) + "()")
	if !ok {
		return TypeMixed
	}

	return def.Type.OrMixed()
}

func (r *Resolver) arrayType(n *phpintel.Node, s *Scope) Type {
	var elems []Type

	for _, c := range n.NamedChildren() {
		if c.Type != "array_element_initializer" {
			continue
		}

		value := lastNamed(c)
		if value == nil || c.HasToken("...") {
			return TypeArray
		}

		elems = append(elems, r.ResolveExpressionType(value, s))
	}

	if len(elems) == 0 {
		return TypeArray
	}

	return arrayOf(Union(elems...))
}

var comparisonOperators = map[string]bool{
	"==": true, "!=": true, "<>": true, "===": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true, "xor": true, "instanceof": true,
}

func (r *Resolver) binaryType(n *phpintel.Node, s *Scope) Type {
	operator := strings.ToLower(operatorOf(n))
	if operator == "" {
		return TypeMixed
	}

	switch {
	case operator == ".":
		return TypeString
	case comparisonOperators[operator]:
		return TypeBool
	case operator == "<=>":
		return TypeInt
	case operator == "??":
		return Union(r.ResolveExpressionType(n.ChildByField("left"), s).Without(TypeNull),
			r.ResolveExpressionType(n.ChildByField("right"), s))
	case operator == "&" || operator == "|" || operator == "^" || operator == "<<" || operator == ">>":
		return TypeInt
	default:
		return r.arithmeticType(operator,
			r.ResolveExpressionType(n.ChildByField("left"), s),
			r.ResolveExpressionType(n.ChildByField("right"), s))
	}
}

func (r *Resolver) arithmeticType(op string, left, right Type) Type {
	switch op {
	case "+", "-", "*", "/", "%", "**":
	default:
		return TypeMixed
	}

	if op == "+" && left == TypeArray && right == TypeArray {
		return TypeArray
	}

	if op == "%" {
		return TypeInt
	}

	switch {
	case left == TypeInt && right == TypeInt && op != "/":
		return TypeInt
	case (left == TypeFloat || right == TypeFloat) && isNumeric(left) && isNumeric(right):
		return TypeFloat
	default:
		return TypeNumber
	}
}

func isNumeric(t Type) bool {
	return t == TypeInt || t == TypeFloat || t == TypeNumber
}

func (r *Resolver) unaryType(n *phpintel.Node, s *Scope) Type {
	switch operatorOf(n) {
	case "!":
		return TypeBool
	case "~":
		return TypeInt
	default:
		t := r.ResolveExpressionType(lastNamed(n), s)
		if isNumeric(t) {
			return t
		}

		return TypeNumber
	}
}

func castType(n *phpintel.Node) Type {
	if n == nil {
		return TypeMixed
	}

	switch strings.ToLower(strings.TrimSpace(n.Text())) {
	case "int", "integer":
		return TypeInt
	case "bool", "boolean":
		return TypeBool
	case "float", "double", "real":
		return TypeFloat
	case "string", "binary":
		return TypeString
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	case "unset":
		return TypeNull
	default:
		return TypeMixed
	}
}

// ----------------------------------------------------------------------------
// Inheritance
// ----------------------------------------------------------------------------

// FindMember looks up a member (suffix such as "->name()" or "::$prop") on a
// class and then on its ancestors, breadth first. Every class is visited at
// most once, so cyclic hierarchies terminate.
func (r *Resolver) FindMember(class, suffix string) (Definition, bool) {
	visited := make(map[string]bool)
	queue := []string{class}

	for len(queue) > 0 {
		fqn := queue[0]
		queue = queue[1:]

		if visited[fqn] {
			continue
		}

		visited[fqn] = true

		if def, ok := r.Lookup(fqn + suffix); ok {
			return def, true
		}

		cls, ok := r.Lookup(fqn)
		if !ok {
			continue
		}

		queue = append(queue, cls.Extends...)
	}

	return Definition{}, false
}

// Ancestors returns the class and every class-like it inherits from, each once, breadth first.
func (r *Resolver) Ancestors(class string) []string {
	visited := map[string]bool{class: true}
	out := []string{class}

	for i := 0; i < len(out); i++ {
		cls, ok := r.Lookup(out[i])
		if !ok {
			continue
		}

		for _, parent := range cls.Extends {
			if !visited[parent] {
				visited[parent] = true
				out = append(out, parent)
			}
		}
	}

	return out
}
