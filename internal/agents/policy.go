// internal/agents/policy.go
package agents

import (
	"github.com/user/commentflow/internal/types"
)

// Enrichment source names shared with the pipeline's enrichment stage.
const (
	SourceMediaAnalysis  = "media_analysis"
	SourceDocumentLookup = "document_lookup"
)

// notifyLabels are surfaced to the operator channel regardless of the
// generated action.
var notifyLabels = map[string]bool{
	"urgent issue / complaint": true,
	"critical feedback":        true,
	"partnership proposal":     true,
}

// DefaultEnrichmentPolicy decides which context sources a classified
// comment needs before a decision can be made. Questions get a document
// lookup, plus media analysis when the media has content to analyze and no
// cached analysis yet.
func DefaultEnrichmentPolicy(label string, media *types.Media) []string {
	if !answerLabels[label] {
		return nil
	}
	plan := []string{SourceDocumentLookup}
	if media != nil && media.MediaURL != "" && media.Analysis == "" {
		plan = append(plan, SourceMediaAnalysis)
	}
	return plan
}

// DefaultNotifyPolicy reports whether the operator should be alerted about
// a comment with this label.
func DefaultNotifyPolicy(label string) bool {
	return notifyLabels[label]
}
