// Package analysis provides semantic analysis for PHP files: definitions,
// references, scopes, expression types and diagnostics.
package analysis

import (
	"errors"
	"slices"
	"strings"

	"github.com/rlch/phpintel"
)

// AnalyzedFile holds semantic analysis results for a single file.
type AnalyzedFile struct {
	// URI identifies the file in the index.
	URI string

	// Tree is the parsed syntax tree. Nil if parsing failed.
	Tree *phpintel.Tree

	// ParseError holds the parse error if parsing failed.
	ParseError error

	// Definitions contains every declaration with a fully qualified name, in document order.
	Definitions []*Definition

	// References contains every use-site found in the file, resolved or not.
	References []*Reference

	// Diagnostics contains all errors and warnings found during analysis.
	Diagnostics []Diagnostic

	resolver *Resolver
}

// Resolver returns the resolver bound to the file's tree, or nil if the file
// has no tree.
func (f *AnalyzedFile) Resolver() *Resolver {
	return f.resolver
}

// Bundle is the index-independent part of an analysis: what a cache can
// store and restore without reparsing.
type Bundle struct {
	Definitions []Definition `json:"definitions"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	ParseError  string       `json:"parseError,omitempty"`
}

// Bundle returns the cacheable part of the analysis.
func (f *AnalyzedFile) Bundle() Bundle {
	b := Bundle{
		Definitions: make([]Definition, 0, len(f.Definitions)),
		Diagnostics: slices.Clone(f.Diagnostics),
	}

	for _, d := range f.Definitions {
		b.Definitions = append(b.Definitions, d.Detached())
	}

	if f.ParseError != nil {
		b.ParseError = f.ParseError.Error()
	}

	return b
}

// File restores an AnalyzedFile without a tree from a bundle.
func (b Bundle) File(uri string) *AnalyzedFile {
	f := &AnalyzedFile{
		URI:         uri,
		Definitions: make([]*Definition, 0, len(b.Definitions)),
		Diagnostics: slices.Clone(b.Diagnostics),
	}

	for i := range b.Definitions {
		d := b.Definitions[i].Detached()
		d.Location.URI = uri
		f.Definitions = append(f.Definitions, &d)
	}

	if b.ParseError != "" {
		f.ParseError = errors.New(b.ParseError)
	}

	return f
}

// Definition returns the file-local definition for an FQN.
func (f *AnalyzedFile) Definition(fqn string) (*Definition, bool) {
	for _, d := range f.Definitions {
		if d.FQN == fqn {
			return d, true
		}
	}

	return nil, false
}

// SymbolKind represents the kind of a definition.
type SymbolKind int

// Symbol kind constants.
const (
	SymbolKindNamespace SymbolKind = iota
	SymbolKindClass
	SymbolKindInterface
	SymbolKindTrait
	SymbolKindEnum
	SymbolKindFunction
	SymbolKindMethod
	SymbolKindConstructor
	SymbolKindProperty
	SymbolKindConstant
	SymbolKindVariable
)

var symbolKindNames = [...]string{
	SymbolKindNamespace:   "namespace",
	SymbolKindClass:       "class",
	SymbolKindInterface:   "interface",
	SymbolKindTrait:       "trait",
	SymbolKindEnum:        "enum",
	SymbolKindFunction:    "function",
	SymbolKindMethod:      "method",
	SymbolKindConstructor: "constructor",
	SymbolKindProperty:    "property",
	SymbolKindConstant:    "constant",
	SymbolKindVariable:    "variable",
}

func (k SymbolKind) String() string {
	if int(k) < len(symbolKindNames) {
		return symbolKindNames[k]
	}

	return "unknown"
}

// IsClassLike reports whether the kind declares a class, interface, trait or enum.
func (k SymbolKind) IsClassLike() bool {
	return k == SymbolKindClass || k == SymbolKindInterface || k == SymbolKindTrait || k == SymbolKindEnum
}

// Location is a span inside a file.
type Location struct {
	URI  string        `json:"uri"`
	Span phpintel.Span `json:"span"`
}

// Param describes one formal parameter of a function-like definition.
type Param struct {
	Name     string `json:"name"`
	Type     Type   `json:"type,omitempty"`
	Default  string `json:"default,omitempty"`
	Variadic bool   `json:"variadic,omitempty"`
}

// Definition is the canonical record of a declaration.
type Definition struct {
	FQN  string     `json:"fqn"`
	Kind SymbolKind `json:"kind"`

	// Node is the declaring node. It is only set for definitions produced from a
	// live tree; definitions read back from the index or cache have a nil Node.
	Node *phpintel.Node `json:"-"`

	Location Location `json:"location"`

	// Type is the declared or inferred type; empty means unknown.
	Type Type `json:"type,omitempty"`

	Documentation string  `json:"documentation,omitempty"`
	Signature     string  `json:"signature,omitempty"`
	Params        []Param `json:"params,omitempty"`

	IsStatic   bool `json:"isStatic,omitempty"`
	IsAbstract bool `json:"isAbstract,omitempty"`
	Deprecated bool `json:"deprecated,omitempty"`

	ContainerName string `json:"containerName,omitempty"`

	// Extends lists the FQNs of the superclass, implemented interfaces and used
	// traits of a class-like definition.
	Extends []string `json:"extends,omitempty"`
}

// Name returns the short, unqualified name of the definition.
func (d *Definition) Name() string {
	name := d.FQN

	if i := strings.LastIndexAny(name, `\:>`); i >= 0 {
		name = name[i+1:]
	}

	return strings.TrimSuffix(name, "()")
}

// Detached returns a copy without the tree node, safe to store beyond the tree's lifetime.
func (d *Definition) Detached() Definition {
	out := *d
	out.Node = nil
	out.Extends = append([]string(nil), d.Extends...)
	out.Params = append([]Param(nil), d.Params...)

	return out
}

// Reference is a use-site of a (possibly unresolved) definition.
type Reference struct {
	// Target is the FQN the use-site resolves to; empty if unresolved.
	Target string `json:"target,omitempty"`

	// Node is the name token of the use-site; nil once stored in the index.
	Node *phpintel.Node `json:"-"`

	URI  string        `json:"uri"`
	Span phpintel.Span `json:"span"`
}

// Diagnostic represents an error or warning found during analysis.
type Diagnostic struct {
	Span     phpintel.Span      `json:"span"`
	Severity DiagnosticSeverity `json:"severity"`
	Message  string             `json:"message"`
	Code     string             `json:"code"`   // e.g. "this-usage", "unused-import"
	Source   string             `json:"source"` // "phpintel"

	// Related points at other places in the same file that explain the diagnostic.
	Related []Related `json:"related,omitempty"`
}

// Related is a secondary location of a diagnostic.
type Related struct {
	Span    phpintel.Span `json:"span"`
	Message string        `json:"message"`
}

// DiagnosticSeverity indicates the severity of a diagnostic.
type DiagnosticSeverity int

// Diagnostic severity constants.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// diagnosticSource is the Source of every diagnostic produced here.
const diagnosticSource = "phpintel"

// ContainerName derives the container of an FQN: the class for members, the
// namespace for everything else.
func ContainerName(fqn string) string {
	if i := strings.Index(fqn, "::"); i >= 0 {
		return fqn[:i]
	}

	if i := strings.Index(fqn, "->"); i >= 0 {
		return fqn[:i]
	}

	if i := strings.LastIndex(fqn, `\`); i >= 0 {
		return fqn[:i]
	}

	return ""
}
