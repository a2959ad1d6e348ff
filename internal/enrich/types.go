package enrich

import "context"

// SourceKnowledgeGraph is the provenance tag stamped on every ResolvedEntity,
// including the empty one produced on resolution failure.
const SourceKnowledgeGraph = "googlekg"

// ResolvedEntity is the outcome of resolving a free-text company name against
// the knowledge-graph provider. All fields default to "" on any failure:
// resolution never fails the pipeline, it only degrades it.
type ResolvedEntity struct {
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
	Brief  string `json:"brief"`
	Source string `json:"source"`
}

// EmptyEntity returns the degraded-mode entity used whenever resolution
// fails or finds no match.
func EmptyEntity() ResolvedEntity {
	return ResolvedEntity{Source: SourceKnowledgeGraph}
}

// FragmentStatus distinguishes "we never asked" from "we asked and got
// nothing". Empty-string and empty-list sentinels alone cannot express that.
type FragmentStatus string

const (
	// StatusNotQueried means the adapter was gated off before any network I/O.
	StatusNotQueried FragmentStatus = "not_queried"
	// StatusEmpty means the provider was queried but yielded nothing usable,
	// including the exhausted-retries fallback.
	StatusEmpty FragmentStatus = "empty"
	// StatusPopulated means the provider returned usable data.
	StatusPopulated FragmentStatus = "populated"
)

// TechFragment is the technology-profile provider's partial result.
type TechFragment struct {
	Status       FragmentStatus `json:"status"`
	Technologies []string       `json:"technologies"`
}

// Citation is one source URL with its report reference number. N is assigned
// during synthesis post-processing; provider order is preserved until then.
type Citation struct {
	URL string `json:"url"`
	N   int    `json:"n"`
}

// ResearchFragment is the research provider's partial result.
type ResearchFragment struct {
	Status    FragmentStatus `json:"status"`
	Answer    string         `json:"answer"`
	Citations []Citation     `json:"citations"`
}

// EntityResolver resolves a company name to a ResolvedEntity.
//
// Implementations must not return errors across this boundary: any terminal
// failure degrades to EmptyEntity().
type EntityResolver interface {
	Resolve(ctx context.Context, company string) ResolvedEntity
}

// TechProfiler looks up the technology profile for a domain. An empty domain
// must short-circuit to a StatusNotQueried fragment without network I/O.
type TechProfiler interface {
	Profile(ctx context.Context, domain string) TechFragment
}

// Researcher answers what the company does, its sales channels, and recent
// news, with citations. It degrades its query when domain is empty.
type Researcher interface {
	Research(ctx context.Context, company, domain string) ResearchFragment
}

// TransientError marks an error as retryable.
//
// Retry policies should retry transient failures with backoff rather than
// immediately surfacing them.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
