package analysis

import (
	"context"
	"errors"
	"slices"

	"github.com/rlch/phpintel"
)

// Analyzer performs semantic analysis on PHP files.
type Analyzer struct {
	// index provides definitions from other files.
	// Can be nil for single-file analysis.
	index Lookup

	// rules is the set of semantic checks to run.
	rules []*Rule
}

// NewAnalyzer creates a new analyzer with default rules.
// Pass nil for index to do single-file analysis only.
func NewAnalyzer(index Lookup) *Analyzer {
	return &Analyzer{
		index: index,
		rules: DefaultRules(),
	}
}

// NewAnalyzerWithRules creates an analyzer with custom rules.
func NewAnalyzerWithRules(index Lookup, rules []*Rule) *Analyzer {
	return &Analyzer{
		index: index,
		rules: rules,
	}
}

// Analyze parses and fully analyzes a PHP file: definitions, diagnostics and references.
func (a *Analyzer) Analyze(uri string, content []byte) *AnalyzedFile {
	return a.AnalyzeContext(context.Background(), uri, content)
}

// AnalyzeContext is Analyze with a context that can cancel parsing.
func (a *Analyzer) AnalyzeContext(ctx context.Context, uri string, content []byte) *AnalyzedFile {
	f := a.AnalyzeDefinitionsContext(ctx, uri, content)
	a.CollectReferences(f, content)

	return f
}

// AnalyzeDefinitions runs the first, index-independent phase: parsing,
// definition collection and the diagnostics rules.
func (a *Analyzer) AnalyzeDefinitions(uri string, content []byte) *AnalyzedFile {
	return a.AnalyzeDefinitionsContext(context.Background(), uri, content)
}

// AnalyzeDefinitionsContext is AnalyzeDefinitions with a context that can cancel parsing.
func (a *Analyzer) AnalyzeDefinitionsContext(ctx context.Context, uri string, content []byte) *AnalyzedFile {
	result := &AnalyzedFile{
		URI:         uri,
		Diagnostics: []Diagnostic{},
	}

	// Parse the file.
	tree, err := phpintel.ParseContext(ctx, content)
	if err != nil {
		result.ParseError = err
		result.Diagnostics = append(result.Diagnostics, parseErrorToDiagnostic(err))

		return result
	}

	result.Tree = tree
	result.resolver = NewResolver(uri, tree, a.index)

	// Build definitions.
	result.Definitions = result.resolver.collectDefinitions()
	result.resolver.addLocal(result.Definitions)

	// Run all semantic rules.
	for _, rule := range a.rules {
		rule.Run(result)
	}

	sortDiagnostics(result.Diagnostics)

	return result
}

// CollectReferences runs the second phase, which needs the complete index.
// Files restored without a tree (from a cache) are reparsed from content.
func (a *Analyzer) CollectReferences(f *AnalyzedFile, content []byte) {
	if f.ParseError != nil {
		return
	}

	if f.Tree == nil {
		tree, err := phpintel.Parse(content)
		if err != nil {
			return
		}

		f.Tree = tree
	}

	// Files restored from a cache have no resolver yet.
	if f.resolver == nil {
		f.resolver = NewResolver(f.URI, f.Tree, a.index)
		f.resolver.addLocal(f.Definitions)
	}

	f.References = f.resolver.CollectReferences()
}

// collectDefinitions returns every indexable definition in document order.
func (r *Resolver) collectDefinitions() []*Definition {
	var defs []*Definition

	r.tree.Root.Walk(func(n *phpintel.Node) bool {
		if def, ok := r.ResolveDefinition(n); ok && def.FQN != "" {
			defs = append(defs, def)
		}

		return true
	})

	return defs
}

// parseErrorToDiagnostic converts a parse error to a diagnostic.
func parseErrorToDiagnostic(err error) Diagnostic {
	span := phpintel.Span{}
	msg := err.Error()

	var pe *phpintel.ParseError
	if errors.As(err, &pe) {
		span = phpintel.Span{Start: pe.Pos, End: pe.Pos}
		msg = pe.Msg
	}

	return Diagnostic{
		Span:     span,
		Severity: SeverityError,
		Message:  msg,
		Code:     CodeParseError,
		Source:   diagnosticSource,
	}
}

func sortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		return a.Span.Start.Offset - b.Span.Start.Offset
	})
}
