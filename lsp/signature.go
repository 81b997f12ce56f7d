package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel"
	"github.com/rlch/phpintel/analysis"
)

// SignatureHelp handles textDocument/signatureHelp requests.
// Shows parameter hints inside the argument list of function, method,
// static method and constructor calls.
func (s *Server) SignatureHelp(_ context.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	s.logger.Debug("SignatureHelp",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Analysis == nil || doc.Analysis.Tree == nil || doc.Analysis.Resolver() == nil {
		return nil, nil //nolint:nilnil
	}

	f := doc.Analysis
	pos := toPosition(f.Tree, params.Position)

	args := enclosingArguments(analysis.TokenAtPosition(f, pos), pos)
	if args == nil {
		return nil, nil //nolint:nilnil
	}

	def, ok := calleeDefinition(f, args.Parent)
	if !ok || def.Signature == "" {
		return nil, nil //nolint:nilnil
	}

	active := activeParameter(args, pos)
	if n := len(def.Params); n > 0 && active >= n && def.Params[n-1].Variadic {
		active = n - 1
	}

	sig := buildSignatureInfo(def, active)

	return &protocol.SignatureHelp{
		Signatures:      []protocol.SignatureInformation{sig},
		ActiveSignature: 0,
		ActiveParameter: uint32(active), //nolint:gosec
	}, nil
}

// enclosingArguments returns the innermost argument list the cursor is inside.
func enclosingArguments(n *phpintel.Node, pos phpintel.Position) *phpintel.Node {
	for ; n != nil; n = n.Parent {
		if n.Kind != phpintel.KindArguments || n.Parent == nil || len(n.Children) == 0 {
			continue
		}

		if pos.Offset <= n.Span.Start.Offset {
			continue
		}

		// Past a closing parenthesis the call is complete.
		if last := n.Children[len(n.Children)-1]; last.Type == ")" && !last.Missing && pos.Offset >= last.Span.End.Offset {
			continue
		}

		return n
	}

	return nil
}

// activeParameter counts the commas before the cursor.
func activeParameter(args *phpintel.Node, pos phpintel.Position) int {
	active := 0

	for _, c := range args.Children {
		if c.Type == "," && c.Span.End.Offset <= pos.Offset {
			active++
		}
	}

	return active
}

// calleeDefinition resolves the function-like definition a call invokes.
func calleeDefinition(f *analysis.AnalyzedFile, call *phpintel.Node) (analysis.Definition, bool) {
	r := f.Resolver()
	scope := analysis.ScopeAtNode(f, call)

	switch call.Kind {
	case phpintel.KindFunctionCallExpression:
		fn := call.ChildByField("function")
		if fn == nil || (fn.Kind != phpintel.KindName && fn.Kind != phpintel.KindQualifiedName) {
			return analysis.Definition{}, false
		}

		return r.Lookup(r.ResolveFunctionName(analysis.NameText(fn), fn, scope) + "()")
	case phpintel.KindMemberCallExpression, phpintel.KindNullsafeMemberCallExpression,
		phpintel.KindScopedCallExpression:
		fqn, ok := r.ResolveReference(call.ChildByField("name"), scope)
		if !ok || fqn == "" {
			return analysis.Definition{}, false
		}

		return r.Lookup(fqn)
	case phpintel.KindObjectCreationExpression:
		cls := call.FirstChild(phpintel.KindName, phpintel.KindQualifiedName, phpintel.KindRelativeScope)
		if cls == nil {
			return analysis.Definition{}, false
		}

		fqn := r.ResolveClassName(analysis.NameText(cls), cls, scope)
		if fqn == "" {
			return analysis.Definition{}, false
		}

		return r.FindMember(fqn, "->__construct()")
	}

	return analysis.Definition{}, false
}

// buildSignatureInfo creates signature information for a function-like definition.
func buildSignatureInfo(def analysis.Definition, active int) protocol.SignatureInformation {
	sig := protocol.SignatureInformation{
		Label:           def.Signature,
		ActiveParameter: uint32(active), //nolint:gosec
	}

	if def.Documentation != "" {
		sig.Documentation = &protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: def.Documentation,
		}
	}

	for _, p := range def.Params {
		sig.Parameters = append(sig.Parameters, protocol.ParameterInformation{
			Label: p.String(),
		})
	}

	return sig
}
