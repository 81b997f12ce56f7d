package analysis

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/rlch/phpintel"
)

// Rule represents a semantic analysis check.
// Inspired by go/analysis.Analyzer pattern.
type Rule struct {
	// Name is a short identifier for the rule (used in diagnostic codes).
	Name string

	// Doc is a brief description of what the rule checks.
	Doc string

	// Severity is the default severity for diagnostics from this rule.
	Severity DiagnosticSeverity

	// Run executes the rule and appends any diagnostics to the file.
	// Rules only see the file itself, never the index.
	Run func(f *AnalyzedFile)
}

// Diagnostic codes.
const (
	CodeParseError          = "parse-error"
	CodeSyntaxError         = "syntax-error"
	CodeThisUsage           = "this-usage"
	CodeDuplicateDefinition = "duplicate-definition"
	CodeUnusedImport        = "unused-import"
)

// ErrUnknownRule is returned by RulesByName for a name no rule has.
var ErrUnknownRule = errors.New("unknown rule")

// DefaultRules returns the rules every analysis runs. A file without
// syntax errors or $this usage gets no diagnostics from them.
func DefaultRules() []*Rule {
	return []*Rule{
		syntaxErrorRule,
		thisUsageRule,
	}
}

// OptionalRules returns the lint rules that run only when enabled.
func OptionalRules() []*Rule {
	return []*Rule{
		// Warning-level checks.
		duplicateDefinitionRule,

		// Hint-level checks.
		unusedImportRule,
	}
}

// RulesByName returns the default rules plus the named optional ones.
func RulesByName(names []string) ([]*Rule, error) {
	rules := DefaultRules()
	optional := OptionalRules()

	for _, name := range names {
		byName := func(r *Rule) bool { return r.Name == name }

		if slices.ContainsFunc(rules, byName) {
			continue
		}

		i := slices.IndexFunc(optional, byName)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
		}

		rules = append(rules, optional[i])
	}

	return rules, nil
}

// Diagnostic messages of the this-usage rule.
const (
	MsgThisInStaticMethod  = "$this can not be used in static methods."
	MsgThisOutsideObject   = "$this can only be used in an object context or non-static anonymous functions."
	MsgThisInStaticClosure = "$this can not be used in static anonymous functions."
	MsgThisMaybeUnbound    = "$this might not be bound by invoker of callable or might be bound to object of any class. Consider adding instance class check."
)

func (f *AnalyzedFile) report(code string, severity DiagnosticSeverity, span phpintel.Span, msg string) {
	f.Diagnostics = append(f.Diagnostics, Diagnostic{
		Span:     span,
		Severity: severity,
		Message:  msg,
		Code:     code,
		Source:   diagnosticSource,
	})
}

// ----------------------------------------------------------------------------
// Rule: syntax-error
// ----------------------------------------------------------------------------

// maxSyntaxErrors caps syntax-error diagnostics per file.
const maxSyntaxErrors = 20

var syntaxErrorRule = &Rule{
	Name:     CodeSyntaxError,
	Doc:      "Reports error and missing nodes left by the tolerant parser.",
	Severity: SeverityError,
	Run:      checkSyntaxErrors,
}

func checkSyntaxErrors(f *AnalyzedFile) {
	if f.Tree == nil {
		return
	}

	for i, n := range f.Tree.Errors() {
		if i == maxSyntaxErrors {
			break
		}

		msg := "syntax error"
		if n.Missing {
			msg = "missing " + strings.Trim(n.Type, `"`)
		}

		f.report(CodeSyntaxError, SeverityError, n.Span, msg)
	}
}

// ----------------------------------------------------------------------------
// Rule: this-usage
// ----------------------------------------------------------------------------

var thisUsageRule = &Rule{
	Name:     CodeThisUsage,
	Doc:      "Reports $this used where no object is bound.",
	Severity: SeverityError,
	Run:      checkThisUsage,
}

// thisContext is the kind of function body a $this usage sits in.
type thisContext int

const (
	inRoot thisContext = iota
	inFreeFunction
	inInstanceMethod
	inStaticMethod
)

// thisState is the state of the this-usage machine at one node.
type thisState struct {
	context thisContext

	// closure is set inside any anonymous or arrow function.
	closure bool

	// staticClosure is set inside a static anonymous or arrow function.
	staticClosure bool
}

func (st thisState) enter(n *phpintel.Node) thisState {
	switch n.Kind {
	case phpintel.KindMethodDeclaration:
		if IsStatic(n) {
			return thisState{context: inStaticMethod}
		}

		return thisState{context: inInstanceMethod}
	case phpintel.KindFunctionDefinition:
		return thisState{context: inFreeFunction}
	case phpintel.KindAnonymousFunction, phpintel.KindArrowFunction:
		st.closure = true
		st.staticClosure = st.staticClosure || IsStatic(n)

		return st
	default:
		return st
	}
}

func checkThisUsage(f *AnalyzedFile) {
	if f.Tree == nil {
		return
	}

	var walk func(n *phpintel.Node, st thisState)

	walk = func(n *phpintel.Node, st thisState) {
		st = st.enter(n)

		if IsThisVariable(n) {
			if msg, sev, ok := thisDiagnostic(n, st); ok {
				f.report(CodeThisUsage, sev, n.Span, msg)
			}

			return
		}

		for _, c := range n.Children {
			walk(c, st)
		}
	}

	walk(f.Tree.Root, thisState{context: inRoot})
}

func thisDiagnostic(n *phpintel.Node, st thisState) (string, DiagnosticSeverity, bool) {
	if !st.closure {
		switch st.context {
		case inStaticMethod:
			return MsgThisInStaticMethod, SeverityError, true
		case inRoot, inFreeFunction:
			return MsgThisOutsideObject, SeverityError, true
		default:
			return "", 0, false
		}
	}

	switch {
	case st.staticClosure || st.context == inStaticMethod:
		return MsgThisInStaticClosure, SeverityError, true
	case st.context == inInstanceMethod:
		return "", 0, false
	case isInstanceCheck(n) || hasInstanceGuard(n):
		return "", 0, false
	default:
		return MsgThisMaybeUnbound, SeverityWarning, true
	}
}

// hasInstanceGuard reports whether n sits in the guarded branch of a
// "$this instanceof X" check inside the innermost closure: the body of an if
// or elseif, the true branch of a ternary, or the right side of &&.
func hasInstanceGuard(n *phpintel.Node) bool {
	child := n

	for p := n.Parent; p != nil; child, p = p, p.Parent {
		if p.Kind == phpintel.KindAnonymousFunction || p.Kind == phpintel.KindArrowFunction {
			return false
		}

		switch p.Kind {
		case phpintel.KindIfStatement, phpintel.KindElseIfClause, phpintel.KindConditionalExpression:
			if child.Field == "body" && containsInstanceCheck(p.ChildByField("condition")) {
				return true
			}
		case phpintel.KindBinaryExpression:
			op := operatorOf(p)
			if (op == "&&" || strings.EqualFold(op, "and")) && child.Field == "right" &&
				containsInstanceCheck(p.ChildByField("left")) {
				return true
			}
		}
	}

	return false
}

// isInstanceCheck reports whether n is the subject of "$this instanceof X".
func isInstanceCheck(n *phpintel.Node) bool {
	p := n.Parent
	for p != nil && p.Kind == phpintel.KindParenthesizedExpression {
		p = p.Parent
	}

	return p != nil && p.Kind == phpintel.KindBinaryExpression && strings.EqualFold(operatorOf(p), "instanceof")
}

func containsInstanceCheck(n *phpintel.Node) bool {
	found := false

	n.Walk(func(c *phpintel.Node) bool {
		if found {
			return false
		}

		if c.Kind == phpintel.KindBinaryExpression && strings.EqualFold(operatorOf(c), "instanceof") {
			left := c.ChildByField("left")
			for left != nil && left.Kind == phpintel.KindParenthesizedExpression {
				left = lastNamed(left)
			}

			found = IsThisVariable(left)
		}

		return true
	})

	return found
}

// ----------------------------------------------------------------------------
// Rule: duplicate-definition
// ----------------------------------------------------------------------------

var duplicateDefinitionRule = &Rule{
	Name:     CodeDuplicateDefinition,
	Doc:      "Reports symbols declared more than once in the same file.",
	Severity: SeverityWarning,
	Run:      checkDuplicateDefinitions,
}

func checkDuplicateDefinitions(f *AnalyzedFile) {
	first := make(map[string]*Definition)

	for _, def := range f.Definitions {
		if def.Kind == SymbolKindNamespace || def.FQN == "" {
			continue
		}

		prev, ok := first[def.FQN]
		if !ok {
			first[def.FQN] = def

			continue
		}

		f.report(CodeDuplicateDefinition, SeverityWarning, def.Location.Span, "duplicate definition of "+def.FQN)

		d := &f.Diagnostics[len(f.Diagnostics)-1]
		d.Related = []Related{{Span: prev.Location.Span, Message: "first defined here"}}
	}
}

// ----------------------------------------------------------------------------
// Rule: unused-import
// ----------------------------------------------------------------------------

var unusedImportRule = &Rule{
	Name:     CodeUnusedImport,
	Doc:      "Reports class imports whose alias is never used in the file.",
	Severity: SeverityHint,
	Run:      checkUnusedImports,
}

var docWord = regexp.MustCompile(`[\p{L}_][\p{L}\p{N}_]*`)

func checkUnusedImports(f *AnalyzedFile) {
	if f.Tree == nil || f.resolver == nil {
		return
	}

	table := f.resolver.names
	used := make(map[*namespaceRegion]map[string]bool)

	mark := func(offset int, word string) {
		region := table.regionAt(offset)
		if used[region] == nil {
			used[region] = make(map[string]bool)
		}

		used[region][strings.ToLower(word)] = true
	}

	f.Tree.Root.Walk(func(n *phpintel.Node) bool {
		switch n.Kind {
		case phpintel.KindNamespaceUseDeclaration, phpintel.KindNamespaceName:
			return false
		case phpintel.KindName, phpintel.KindQualifiedName:
			text := NameText(n)
			if !strings.HasPrefix(text, `\`) {
				first, _, _ := strings.Cut(text, `\`)
				mark(n.Span.Start.Offset, first)
			}

			return false
		case phpintel.KindComment:
			// Imports are commonly used only by doc comment types.
			if text := n.Text(); strings.HasPrefix(text, "/**") {
				for _, w := range docWord.FindAllString(text, -1) {
					mark(n.Span.Start.Offset, w)
				}
			}

			return false
		default:
			return true
		}
	})

	for _, region := range table.regions {
		for alias, clause := range region.aliases {
			if !used[region][alias] {
				f.report(CodeUnusedImport, SeverityHint, clause.Span, "unused import "+region.imports[NameClass][alias])
			}
		}
	}
}
