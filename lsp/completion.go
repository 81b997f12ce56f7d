package lsp

import (
	"context"
	"sort"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// CompletionKind identifies what kind of completion is being requested.
type CompletionKind string

const (
	CompletionKindNone     CompletionKind = "none"
	CompletionKindMember   CompletionKind = "member"   // After "->" or "?->"
	CompletionKindStatic   CompletionKind = "static"   // After "::"
	CompletionKindVariable CompletionKind = "variable" // After "$"
	CompletionKindName     CompletionKind = "name"     // Classes, functions and constants
)

// maxNameCompletions bounds the global name search.
const maxNameCompletions = 100

// CompletionContext holds information about the completion request context.
type CompletionContext struct {
	Kind CompletionKind

	// Prefix is the partial word before the cursor.
	Prefix string

	// Classes are the receiver classes for member and static completion.
	Classes []string

	// Static is true when completing after "::".
	Static bool

	Token *analysis.TokenContext
}

// Completion handles textDocument/completion requests.
func (s *Server) Completion(_ context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.logger.Debug("Completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	// Use last valid analysis if the current content has no tree.
	f := doc.Analysis
	if (f == nil || f.Tree == nil) && doc.LastValidAnalysis != nil {
		s.logger.Debug("Using last valid analysis for completion")
		f = doc.LastValidAnalysis
	}

	if f == nil || f.Tree == nil || f.Resolver() == nil {
		return nil, nil //nolint:nilnil
	}

	cc := getCompletionContext(f, params.Position)
	s.logger.Debug("Completion context",
		zap.String("kind", string(cc.Kind)),
		zap.String("prefix", cc.Prefix),
		zap.Strings("classes", cc.Classes))

	var items []protocol.CompletionItem

	switch cc.Kind {
	case CompletionKindNone:
		// No completions available at this position
	case CompletionKindMember, CompletionKindStatic:
		items = s.completeMembers(f, cc)
	case CompletionKindVariable:
		items = completeVariables(cc)
	case CompletionKindName:
		items = s.completeNames(f, cc)
	}

	return &protocol.CompletionList{
		IsIncomplete: cc.Kind == CompletionKindName,
		Items:        items,
	}, nil
}

// getCompletionContext classifies the cursor position.
func getCompletionContext(f *analysis.AnalyzedFile, p protocol.Position) *CompletionContext {
	pos := toPosition(f.Tree, p)
	tc := analysis.GetTokenContext(f, pos)
	r := f.Resolver()

	cc := &CompletionContext{
		Kind:   CompletionKindNone,
		Prefix: wordBefore(f.Tree.Line(pos.Line), pos.Column),
		Token:  tc,
	}

	switch {
	case tc.Object != nil:
		cc.Kind = CompletionKindMember
		cc.Classes = r.ResolveExpressionType(tc.Object, tc.Scope).ClassNames()
	case tc.ClassScope != nil:
		cc.Kind = CompletionKindStatic
		cc.Static = true

		switch tc.ClassScope.Kind {
		case phpintel.KindName, phpintel.KindQualifiedName, phpintel.KindRelativeScope:
			if fqn := r.ResolveClassName(analysis.NameText(tc.ClassScope), tc.ClassScope, tc.Scope); fqn != "" {
				cc.Classes = []string{fqn}
			}
		default:
			cc.Classes = r.ResolveExpressionType(tc.ClassScope, tc.Scope).ClassNames()
		}
	case strings.HasPrefix(cc.Prefix, "$"):
		cc.Kind = CompletionKindVariable
	case cc.Prefix != "":
		cc.Kind = CompletionKindName
	}

	return cc
}

// wordBefore returns the identifier characters (including "$" and "\") ending at column.
func wordBefore(line string, column int) string {
	column = min(max(column, 0), len(line))

	start := column
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}

	return line[start:column]
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '\\' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// completeMembers completes the members of the receiver classes and their
// ancestors. Members of a subclass hide inherited ones with the same name.
func (s *Server) completeMembers(f *analysis.AnalyzedFile, cc *CompletionContext) []protocol.CompletionItem {
	r := f.Resolver()
	sep := "->"

	if cc.Static {
		sep = "::"
	}

	seen := make(map[string]bool)

	var items []protocol.CompletionItem

	add := func(def analysis.Definition) {
		name := def.Name()
		if seen[name] || name == "__construct" {
			return
		}

		seen[name] = true
		items = append(items, completionItem(def, name))
	}

	for _, cls := range cc.Classes {
		for _, ancestor := range r.Ancestors(cls) {
			prefix := ancestor + sep

			// The current file first: it may not be saved yet.
			for _, def := range f.Definitions {
				if strings.HasPrefix(def.FQN, prefix) {
					add(*def)
				}
			}

			for _, def := range s.index.Prefix(prefix) {
				add(def)
			}

			// Instance methods may be called statically on self and parent.
			if cc.Static {
				for _, def := range s.index.Prefix(ancestor + "->") {
					if def.Kind == analysis.SymbolKindMethod {
						add(def)
					}
				}
			}
		}
	}

	if cc.Static && len(cc.Classes) > 0 {
		items = append(items, protocol.CompletionItem{
			Label:  "class",
			Kind:   protocol.CompletionItemKindKeyword,
			Detail: "string",
		})
	}

	sortItems(items)

	return items
}

// completeVariables completes the variables in scope at the cursor.
func completeVariables(cc *CompletionContext) []protocol.CompletionItem {
	scope := cc.Token.Scope

	var items []protocol.CompletionItem

	if scope != nil && scope.This != nil {
		items = append(items, protocol.CompletionItem{
			Label:  "$this",
			Kind:   protocol.CompletionItemKindVariable,
			Detail: string(scope.This.Type.OrMixed()),
		})
	}

	if scope != nil {
		for name, v := range scope.Vars {
			items = append(items, protocol.CompletionItem{
				Label:  "$" + name,
				Kind:   protocol.CompletionItemKindVariable,
				Detail: string(v.Type.OrMixed()),
			})
		}
	}

	sortItems(items)

	return items
}

// completeNames completes classes, functions and constants matching the prefix.
func (s *Server) completeNames(f *analysis.AnalyzedFile, cc *CompletionContext) []protocol.CompletionItem {
	query := cc.Prefix
	if i := strings.LastIndex(query, `\`); i >= 0 {
		query = query[i+1:]
	}

	seen := make(map[string]bool)

	var items []protocol.CompletionItem

	add := func(def analysis.Definition) {
		if seen[def.FQN] || !isGlobalName(def) {
			return
		}

		seen[def.FQN] = true

		item := completionItem(def, def.Name())
		item.FilterText = def.Name()
		items = append(items, item)
	}

	for _, def := range f.Definitions {
		if strings.Contains(strings.ToLower(def.Name()), strings.ToLower(query)) {
			add(*def)
		}
	}

	for _, def := range s.index.Search(query, maxNameCompletions) {
		add(def)
	}

	sortItems(items)

	return items
}

// isGlobalName reports whether a definition is reachable by a bare name.
func isGlobalName(def analysis.Definition) bool {
	switch def.Kind {
	case analysis.SymbolKindClass, analysis.SymbolKindInterface, analysis.SymbolKindTrait,
		analysis.SymbolKindEnum, analysis.SymbolKindFunction:
		return true
	case analysis.SymbolKindConstant:
		return !strings.Contains(def.FQN, "::")
	default:
		return false
	}
}

// completionItem builds the completion item of a definition.
func completionItem(def analysis.Definition, label string) protocol.CompletionItem {
	item := protocol.CompletionItem{
		Label:      label,
		Kind:       completionItemKind(def.Kind),
		Detail:     declaration(def),
		Deprecated: def.Deprecated,
	}

	if def.Kind.IsClassLike() || def.Kind == analysis.SymbolKindFunction {
		item.Detail = def.FQN
	}

	if def.Documentation != "" {
		item.Documentation = protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: def.Documentation,
		}
	}

	return item
}

func completionItemKind(k analysis.SymbolKind) protocol.CompletionItemKind {
	switch k {
	case analysis.SymbolKindNamespace:
		return protocol.CompletionItemKindModule
	case analysis.SymbolKindClass, analysis.SymbolKindTrait:
		return protocol.CompletionItemKindClass
	case analysis.SymbolKindInterface:
		return protocol.CompletionItemKindInterface
	case analysis.SymbolKindEnum:
		return protocol.CompletionItemKindEnum
	case analysis.SymbolKindFunction:
		return protocol.CompletionItemKindFunction
	case analysis.SymbolKindMethod:
		return protocol.CompletionItemKindMethod
	case analysis.SymbolKindConstructor:
		return protocol.CompletionItemKindConstructor
	case analysis.SymbolKindProperty:
		return protocol.CompletionItemKindProperty
	case analysis.SymbolKindConstant:
		return protocol.CompletionItemKindConstant
	case analysis.SymbolKindVariable:
		return protocol.CompletionItemKindVariable
	default:
		return protocol.CompletionItemKindText
	}
}

func sortItems(items []protocol.CompletionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Label < items[j].Label
	})
}
