package phpintel

// Kind is the closed set of node shapes the analyzer dispatches on.
// Grammar types without a dedicated Kind map to KindOther (named) or KindToken (anonymous).
type Kind int

// Node kinds.
const (
	KindOther Kind = iota
	KindToken
	KindError

	// Program structure.
	KindProgram
	KindText
	KindPhpTag
	KindComment
	KindCompoundStatement
	KindExpressionStatement
	KindReturnStatement
	KindEchoStatement

	// Names.
	KindName
	KindQualifiedName
	KindNamespaceName
	KindVariableName
	KindDynamicVariableName
	KindRelativeScope

	// Namespaces and imports.
	KindNamespaceDefinition
	KindNamespaceUseDeclaration
	KindNamespaceUseClause
	KindNamespaceUseGroup

	// Declarations.
	KindConstDeclaration
	KindConstElement
	KindClassDeclaration
	KindInterfaceDeclaration
	KindTraitDeclaration
	KindEnumDeclaration
	KindEnumCase
	KindDeclarationList
	KindEnumDeclarationList
	KindBaseClause
	KindClassInterfaceClause
	KindUseDeclaration
	KindPropertyDeclaration
	KindPropertyElement
	KindMethodDeclaration
	KindFunctionDefinition
	KindAnonymousFunction
	KindAnonymousFunctionUseClause
	KindArrowFunction
	KindAnonymousClass
	KindFormalParameters
	KindSimpleParameter
	KindVariadicParameter
	KindPropertyPromotionParameter

	// Modifiers.
	KindStaticModifier
	KindAbstractModifier
	KindFinalModifier
	KindVisibilityModifier
	KindReadonlyModifier
	KindVarModifier

	// Statements.
	KindIfStatement
	KindElseIfClause
	KindElseClause
	KindForeachStatement
	KindPair
	KindByRef
	KindListLiteral
	KindGlobalDeclaration
	KindFunctionStaticDeclaration

	// Expressions.
	KindAssignmentExpression
	KindReferenceAssignmentExpression
	KindAugmentedAssignmentExpression
	KindParenthesizedExpression
	KindMemberAccessExpression
	KindNullsafeMemberAccessExpression
	KindMemberCallExpression
	KindNullsafeMemberCallExpression
	KindScopedCallExpression
	KindScopedPropertyAccessExpression
	KindClassConstantAccessExpression
	KindFunctionCallExpression
	KindObjectCreationExpression
	KindArguments
	KindArgument
	KindBinaryExpression
	KindUnaryOpExpression
	KindUpdateExpression
	KindCastExpression
	KindConditionalExpression
	KindCloneExpression
	KindSubscriptExpression
	KindErrorSuppressionExpression
	KindIncludeExpression
	KindIncludeOnceExpression
	KindRequireExpression
	KindRequireOnceExpression
	KindMatchExpression

	// Literals.
	KindString
	KindEncapsedString
	KindHeredoc
	KindNowdoc
	KindInteger
	KindFloat
	KindBoolean
	KindNull
	KindArrayCreationExpression

	// Types.
	KindNamedType
	KindPrimitiveType
	KindOptionalType
	KindUnionType
	KindIntersectionType
	KindBottomType
	KindCastType
)

var kindByType = map[string]Kind{
	"ERROR": KindError,

	"program":              KindProgram,
	"text":                 KindText,
	"php_tag":              KindPhpTag,
	"comment":              KindComment,
	"compound_statement":   KindCompoundStatement,
	"expression_statement": KindExpressionStatement,
	"return_statement":     KindReturnStatement,
	"echo_statement":       KindEchoStatement,

	"name":                  KindName,
	"qualified_name":        KindQualifiedName,
	"namespace_name":        KindNamespaceName,
	"variable_name":         KindVariableName,
	"dynamic_variable_name": KindDynamicVariableName,
	"relative_scope":        KindRelativeScope,

	"namespace_definition":      KindNamespaceDefinition,
	"namespace_use_declaration": KindNamespaceUseDeclaration,
	"namespace_use_clause":      KindNamespaceUseClause,
	"namespace_use_group":       KindNamespaceUseGroup,

	"const_declaration":             KindConstDeclaration,
	"const_element":                 KindConstElement,
	"class_declaration":             KindClassDeclaration,
	"interface_declaration":         KindInterfaceDeclaration,
	"trait_declaration":             KindTraitDeclaration,
	"enum_declaration":              KindEnumDeclaration,
	"enum_case":                     KindEnumCase,
	"declaration_list":              KindDeclarationList,
	"enum_declaration_list":         KindEnumDeclarationList,
	"base_clause":                   KindBaseClause,
	"class_interface_clause":        KindClassInterfaceClause,
	"use_declaration":               KindUseDeclaration,
	"property_declaration":          KindPropertyDeclaration,
	"property_element":              KindPropertyElement,
	"method_declaration":            KindMethodDeclaration,
	"function_definition":           KindFunctionDefinition,
	"anonymous_function":            KindAnonymousFunction,
	"anonymous_function_use_clause": KindAnonymousFunctionUseClause,
	"arrow_function":                KindArrowFunction,
	"anonymous_class":               KindAnonymousClass,
	"formal_parameters":             KindFormalParameters,
	"simple_parameter":              KindSimpleParameter,
	"variadic_parameter":            KindVariadicParameter,
	"property_promotion_parameter":  KindPropertyPromotionParameter,

	"static_modifier":     KindStaticModifier,
	"abstract_modifier":   KindAbstractModifier,
	"final_modifier":      KindFinalModifier,
	"visibility_modifier": KindVisibilityModifier,
	"readonly_modifier":   KindReadonlyModifier,
	"var_modifier":        KindVarModifier,

	"if_statement":                KindIfStatement,
	"else_if_clause":              KindElseIfClause,
	"else_clause":                 KindElseClause,
	"foreach_statement":           KindForeachStatement,
	"pair":                        KindPair,
	"by_ref":                      KindByRef,
	"list_literal":                KindListLiteral,
	"global_declaration":          KindGlobalDeclaration,
	"function_static_declaration": KindFunctionStaticDeclaration,

	"assignment_expression":              KindAssignmentExpression,
	"reference_assignment_expression":    KindReferenceAssignmentExpression,
	"augmented_assignment_expression":    KindAugmentedAssignmentExpression,
	"parenthesized_expression":           KindParenthesizedExpression,
	"member_access_expression":           KindMemberAccessExpression,
	"nullsafe_member_access_expression":  KindNullsafeMemberAccessExpression,
	"member_call_expression":             KindMemberCallExpression,
	"nullsafe_member_call_expression":    KindNullsafeMemberCallExpression,
	"scoped_call_expression":             KindScopedCallExpression,
	"scoped_property_access_expression":  KindScopedPropertyAccessExpression,
	"class_constant_access_expression":   KindClassConstantAccessExpression,
	"function_call_expression":           KindFunctionCallExpression,
	"object_creation_expression":         KindObjectCreationExpression,
	"arguments":                          KindArguments,
	"argument":                           KindArgument,
	"binary_expression":                  KindBinaryExpression,
	"unary_op_expression":                KindUnaryOpExpression,
	"update_expression":                  KindUpdateExpression,
	"cast_expression":                    KindCastExpression,
	"conditional_expression":             KindConditionalExpression,
	"clone_expression":                   KindCloneExpression,
	"subscript_expression":               KindSubscriptExpression,
	"error_suppression_expression":       KindErrorSuppressionExpression,
	"include_expression":                 KindIncludeExpression,
	"include_once_expression":            KindIncludeOnceExpression,
	"require_expression":                 KindRequireExpression,
	"require_once_expression":            KindRequireOnceExpression,
	"match_expression":                   KindMatchExpression,

	"string":                    KindString,
	"encapsed_string":           KindEncapsedString,
	"heredoc":                   KindHeredoc,
	"nowdoc":                    KindNowdoc,
	"integer":                   KindInteger,
	"float":                     KindFloat,
	"boolean":                   KindBoolean,
	"null":                      KindNull,
	"array_creation_expression": KindArrayCreationExpression,

	"named_type":        KindNamedType,
	"primitive_type":    KindPrimitiveType,
	"optional_type":     KindOptionalType,
	"union_type":        KindUnionType,
	"intersection_type": KindIntersectionType,
	"bottom_type":       KindBottomType,
	"cast_type":         KindCastType,
}

// kindOf maps a grammar node type to its Kind.
func kindOf(typ string, named bool) Kind {
	if k, ok := kindByType[typ]; ok {
		// Anonymous tokens share some type names with named nodes (e.g. "null").
		if named || k == KindError {
			return k
		}
	}

	if !named {
		return KindToken
	}

	return KindOther
}

// IsClassLike reports whether k declares a class, interface, trait or enum.
func (k Kind) IsClassLike() bool {
	switch k {
	case KindClassDeclaration, KindInterfaceDeclaration, KindTraitDeclaration, KindEnumDeclaration:
		return true
	default:
		return false
	}
}

// IsFunctionLike reports whether k introduces a function scope.
func (k Kind) IsFunctionLike() bool {
	switch k {
	case KindFunctionDefinition, KindMethodDeclaration, KindAnonymousFunction, KindArrowFunction:
		return true
	default:
		return false
	}
}

// IsParameter reports whether k is a formal parameter.
func (k Kind) IsParameter() bool {
	switch k {
	case KindSimpleParameter, KindVariadicParameter, KindPropertyPromotionParameter:
		return true
	default:
		return false
	}
}
