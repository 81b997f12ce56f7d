package analysis

import (
	"strings"

	"github.com/rlch/phpintel"
)

// ResolveReference resolves a use-site node. ok reports whether n is a
// reference site at all; fqn is empty when the site could not be resolved.
//
// Reference sites are name tokens: class names in types, new, static access,
// extends/implements and catch clauses; called function names; bare constant
// names; member names of property accesses, method calls and static accesses;
// and the targets of use imports.
func (r *Resolver) ResolveReference(n *phpintel.Node, s *Scope) (fqn string, ok bool) {
	if n == nil || n.Parent == nil || n.Missing {
		return "", false
	}

	switch n.Kind {
	case phpintel.KindName, phpintel.KindQualifiedName:
		return r.nameReference(n, s)
	case phpintel.KindVariableName:
		p := n.Parent
		if p.Kind == phpintel.KindScopedPropertyAccessExpression && staticMemberName(p) == n {
			def, _ := r.resolveStaticMember(p, s)

			return def.FQN, true
		}
	}

	return "", false
}

func (r *Resolver) nameReference(n *phpintel.Node, s *Scope) (string, bool) {
	p := n.Parent
	text := NameText(n)

	switch p.Kind {
	case phpintel.KindMemberAccessExpression, phpintel.KindNullsafeMemberAccessExpression:
		if n.Field != "name" {
			return "", false
		}

		def, _ := r.resolveMember(p, s, false)

		return def.FQN, true
	case phpintel.KindMemberCallExpression, phpintel.KindNullsafeMemberCallExpression:
		if n.Field != "name" {
			return "", false
		}

		def, _ := r.resolveMember(p, s, true)

		return def.FQN, true
	case phpintel.KindScopedCallExpression, phpintel.KindClassConstantAccessExpression,
		phpintel.KindScopedPropertyAccessExpression:
		if staticScope(p) == n {
			return r.classReference(text, n, s)
		}

		if staticMemberName(p) != n || strings.EqualFold(text, "class") {
			return "", false
		}

		def, _ := r.resolveStaticMember(p, s)

		return def.FQN, true
	case phpintel.KindObjectCreationExpression, phpintel.KindNamedType, phpintel.KindBaseClause,
		phpintel.KindClassInterfaceClause, phpintel.KindUseDeclaration:
		return r.classReference(text, n, s)
	case phpintel.KindBinaryExpression:
		if strings.EqualFold(operatorOf(p), "instanceof") && n.Field == "right" {
			return r.classReference(text, n, s)
		}

		return r.constReference(text, n, s)
	case phpintel.KindFunctionCallExpression:
		if n.Field != "function" {
			return r.constReference(text, n, s)
		}

		return r.ResolveFunctionName(text, n, s) + "()", true
	case phpintel.KindNamespaceUseClause:
		if n.Field == "alias" {
			return "", false
		}

		return r.importReference(n, p), true
	case phpintel.KindConstElement:
		if p.FirstChild(phpintel.KindName) == n {
			return "", false
		}

		return r.constReference(text, n, s)
	}

	if p.Type == "type_list" || p.Type == "catch_clause" {
		return r.classReference(text, n, s)
	}

	if isExpressionParent(n) {
		return r.constReference(text, n, s)
	}

	return "", false
}

func (r *Resolver) classReference(name string, at *phpintel.Node, s *Scope) (string, bool) {
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return "", false
	}

	if IsPrimitiveName(name) && at.Parent.Kind == phpintel.KindNamedType {
		return "", false
	}

	return r.resolveName(name, NameClass, at, s), true
}

func (r *Resolver) constReference(name string, at *phpintel.Node, s *Scope) (string, bool) {
	switch strings.ToLower(name) {
	case "true", "false", "null":
		return "", false
	}

	return r.ResolveConstantName(name, at, s), true
}

// importReference returns the FQN imported by the use clause containing n.
func (r *Resolver) importReference(n, clause *phpintel.Node) string {
	prefix := ""
	decl := clause.Parent

	if decl != nil && decl.Kind == phpintel.KindNamespaceUseGroup {
		decl = decl.Parent

		if ns := decl.FirstChild(phpintel.KindNamespaceName); ns != nil {
			prefix = strings.TrimPrefix(NameText(ns), `\`) + `\`
		}
	}

	fqn := prefix + strings.TrimPrefix(NameText(n), `\`)

	kind := NameClass
	if decl != nil {
		kind = useKind(decl)
	}

	if k, ok := clauseKind(clause); ok {
		kind = k
	}

	if kind == NameFunction {
		return fqn + "()"
	}

	return fqn
}

// expressionParents are the parents under which a bare name is a constant access.
var expressionParents = map[phpintel.Kind]bool{
	phpintel.KindArgument:                      true,
	phpintel.KindAssignmentExpression:          true,
	phpintel.KindAugmentedAssignmentExpression: true,
	phpintel.KindReturnStatement:               true,
	phpintel.KindEchoStatement:                 true,
	phpintel.KindExpressionStatement:           true,
	phpintel.KindConditionalExpression:         true,
	phpintel.KindParenthesizedExpression:       true,
	phpintel.KindUnaryOpExpression:             true,
	phpintel.KindSubscriptExpression:           true,
	phpintel.KindPropertyElement:               true,
	phpintel.KindSimpleParameter:               true,
	phpintel.KindPropertyPromotionParameter:    true,
	phpintel.KindMatchExpression:               true,
}

func isExpressionParent(n *phpintel.Node) bool {
	p := n.Parent

	if expressionParents[p.Kind] {
		return n.Field != "name" && n.Field != "type"
	}

	switch p.Type {
	case "array_element_initializer", "match_condition_list", "match_conditional_expression",
		"match_default_expression", "enum_case", "sequence_expression":
		return n.Field != "name"
	}

	return false
}

// CollectReferences walks a file and returns every reference site, resolved or not.
func (r *Resolver) CollectReferences() []*Reference {
	var refs []*Reference

	r.Traverse(r.tree.Root, func(n *phpintel.Node, s *Scope) Action {
		fqn, ok := r.ResolveReference(n, s)
		if !ok {
			return Continue
		}

		refs = append(refs, &Reference{
			Target: fqn,
			Node:   n,
			URI:    r.uri,
			Span:   n.Span,
		})

		if n.Kind == phpintel.KindQualifiedName {
			return Skip
		}

		return Continue
	})

	return refs
}
