package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/phpintel/analysis"
)

// publishDiagnostics sends the diagnostics of the document's current analysis.
// Parse failures and rule findings are published the same way.
func (s *Server) publishDiagnostics(ctx context.Context, doc *Document) {
	if doc.Analysis == nil {
		return
	}

	diagnostics := make([]protocol.Diagnostic, 0, len(doc.Analysis.Diagnostics))
	counts := make(map[string]int)

	for _, d := range doc.Analysis.Diagnostics {
		diagnostics = append(diagnostics, toProtocolDiagnostic(doc.URI, d))
		counts[d.Code]++
	}

	s.logger.Debug("Publishing diagnostics",
		zap.String("uri", string(doc.URI)),
		zap.Int32("version", doc.Version),
		zap.Any("codes", counts))

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     uint32(doc.Version), //nolint:gosec // LSP version numbers are always non-negative
		Diagnostics: diagnostics,
	})
	if err != nil {
		s.logger.Error("Failed to publish diagnostics", zap.String("uri", string(doc.URI)), zap.Error(err))
	}
}

// toProtocolDiagnostic converts a diagnostic of the document at uri. Unused
// imports are tagged so editors fade them out, and related spans become
// locations in the same document.
func toProtocolDiagnostic(uri protocol.DocumentURI, d analysis.Diagnostic) protocol.Diagnostic {
	pd := protocol.Diagnostic{
		Range:    spanToRange(d.Span),
		Severity: protocolSeverity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}

	if d.Code == analysis.CodeUnusedImport {
		pd.Tags = []protocol.DiagnosticTag{protocol.DiagnosticTagUnnecessary}
	}

	for _, r := range d.Related {
		pd.RelatedInformation = append(pd.RelatedInformation, protocol.DiagnosticRelatedInformation{
			Location: location(string(uri), r.Span),
			Message:  r.Message,
		})
	}

	return pd
}

// protocolSeverity maps a severity onto the LSP scale, which uses the same
// values. Unknown severities are reported as errors.
func protocolSeverity(sev analysis.DiagnosticSeverity) protocol.DiagnosticSeverity {
	if sev < analysis.SeverityError || sev > analysis.SeverityHint {
		return protocol.DiagnosticSeverityError
	}

	return protocol.DiagnosticSeverity(sev)
}
