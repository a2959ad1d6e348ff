// Package synth turns a canonical enrichment record into the final
// sales-intelligence report. Unlike the enrichment adapters, synthesis has no
// empty-result fallback: its failure is the pipeline's failure.
package synth

import (
	"context"
	"strings"

	"github.com/deepdive/deepdive/internal/enrich"
)

// Report is the synthesized output: a terminal-ready report block and the
// numbered sources its [n] markers refer to.
type Report struct {
	Body      string
	Citations []enrich.Citation
}

type Synthesizer interface {
	Synthesize(ctx context.Context, rec enrich.CanonicalRecord) (Report, error)
}

// RenumberCitations merges citation groups into one numbered list:
// duplicates are dropped by exact URL with first-seen order preserved, then
// everything is renumbered 1..n. Earlier groups win ties, so callers pass the
// group whose numbering the report text references first.
func RenumberCitations(groups ...[]enrich.Citation) []enrich.Citation {
	seen := make(map[string]struct{})
	out := []enrich.Citation{}
	for _, group := range groups {
		for _, c := range group {
			u := strings.TrimSpace(c.URL)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, enrich.Citation{URL: u, N: len(out) + 1})
		}
	}
	return out
}
