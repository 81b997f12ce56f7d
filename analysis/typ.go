package analysis

import (
	"slices"
	"strings"
)

// Type is a PHP type in canonical string form: primitive names ("int",
// "string"), class types with a leading backslash ("\App\User"), arrays of a
// type ("\App\User[]") and unions joined by "|". The empty Type and "mixed"
// both mean unknown.
type Type string

// Well known types.
const (
	TypeMixed  Type = "mixed"
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeArray  Type = "array"
	TypeNull   Type = "null"
	TypeVoid   Type = "void"
	TypeNumber Type = "int|float"

	TypeClosure Type = `\Closure`
	TypeObject  Type = `\stdClass`
)

var primitiveTypes = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true, "string": true,
	"bool": true, "boolean": true, "array": true, "callable": true, "iterable": true,
	"object": true, "void": true, "null": true, "mixed": true, "never": true,
	"false": true, "true": true, "resource": true, "scalar": true, "numeric": true,
}

var primitiveAliases = map[string]Type{
	"integer": TypeInt,
	"double":  TypeFloat,
	"boolean": TypeBool,
}

// IsPrimitiveName reports whether name (case-insensitive) is a built-in type keyword.
func IsPrimitiveName(name string) bool {
	return primitiveTypes[strings.ToLower(name)]
}

// primitiveType canonicalizes a primitive type name.
func primitiveType(name string) Type {
	lower := strings.ToLower(name)
	if t, ok := primitiveAliases[lower]; ok {
		return t
	}

	return Type(lower)
}

// ClassType returns the type of instances of the class with the given FQN.
func ClassType(fqn string) Type {
	return Type(`\` + strings.TrimPrefix(fqn, `\`))
}

// IsUnknown reports whether nothing is known about the type.
func (t Type) IsUnknown() bool {
	return t == "" || t == TypeMixed
}

// OrMixed returns t, or mixed when t is empty.
func (t Type) OrMixed() Type {
	if t == "" {
		return TypeMixed
	}

	return t
}

// Parts splits a union into its members.
func (t Type) Parts() []Type {
	if t == "" {
		return nil
	}

	raw := splitTopLevel(string(t), '|')
	out := make([]Type, 0, len(raw))

	for _, p := range raw {
		out = append(out, Type(p))
	}

	return out
}

// ClassNames returns the FQNs (without leading backslash) of every class type in the union.
// Intersection members count as separate classes.
func (t Type) ClassNames() []string {
	var out []string

	for _, p := range t.Parts() {
		for _, q := range splitTopLevel(string(p), '&') {
			if strings.HasPrefix(q, `\`) && !strings.HasSuffix(q, "[]") {
				out = append(out, strings.TrimPrefix(q, `\`))
			}
		}
	}

	return out
}

// ElementType returns the type of the values of an array type, or mixed.
func (t Type) ElementType() Type {
	var elems []Type

	for _, p := range t.Parts() {
		if elem, ok := strings.CutSuffix(string(p), "[]"); ok {
			elems = append(elems, Type(elem))
		}
	}

	if len(elems) == 0 {
		return TypeMixed
	}

	return Union(elems...)
}

// Without returns the union with the given member removed.
func (t Type) Without(member Type) Type {
	parts := t.Parts()
	out := parts[:0]

	for _, p := range parts {
		if p != member {
			out = append(out, p)
		}
	}

	return Union(out...)
}

// Union joins types, dropping duplicates. Any unknown member makes the union unknown.
func Union(types ...Type) Type {
	var parts []Type

	for _, t := range types {
		if t.IsUnknown() {
			return TypeMixed
		}

		for _, p := range t.Parts() {
			if !slices.Contains(parts, p) {
				parts = append(parts, p)
			}
		}
	}

	if len(parts) == 0 {
		return TypeMixed
	}

	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = string(p)
	}

	return Type(strings.Join(strs, "|"))
}

// splitTopLevel splits s on sep outside of <>, () and {} brackets.
func splitTopLevel(s string, sep byte) []string {
	var (
		out   []string
		depth int
		start int
	)

	for i := range len(s) {
		switch s[i] {
		case '<', '(', '{':
			depth++
		case '>', ')', '}':
			depth = max(0, depth-1)
		case sep:
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}

	out = append(out, strings.TrimSpace(s[start:]))

	return slices.DeleteFunc(out, func(p string) bool { return p == "" })
}
