package enrich

import "encoding/json"

// CanonicalRecord is the fully merged enrichment result handed to synthesis.
//
// The key namespace is fixed and disjoint per provider, so merging can never
// drop or overwrite a field. Construction is total: it succeeds for any
// combination of empty and populated inputs.
type CanonicalRecord struct {
	Company   string           `json:"company"`
	Resolver  ResolvedEntity   `json:"resolver"`
	TechStack TechFragment     `json:"tech_stack"`
	Research  ResearchFragment `json:"research"`

	// Citations mirrors Research.Citations at the top level so the synthesis
	// prompt can reference them without digging into the research fragment.
	Citations []Citation `json:"citations"`
}

// Merge combines the resolved entity and all fragments into one
// CanonicalRecord. It is a pure function of its inputs: merging the same
// inputs twice yields identical records regardless of fragment arrival order.
func Merge(company string, entity ResolvedEntity, tech TechFragment, research ResearchFragment) CanonicalRecord {
	return CanonicalRecord{
		Company:   company,
		Resolver:  entity,
		TechStack: normalizeTech(tech),
		Research:  normalizeResearch(research),
		Citations: copyCitations(research.Citations),
	}
}

// CompactJSON serializes the record for the synthesis prompt. Marshaling a
// struct with fixed fields cannot fail and keeps key order stable.
func (r CanonicalRecord) CompactJSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// normalizeTech keeps the JSON shape stable: absent lists serialize as []
// rather than null, and an unset status means the adapter was never invoked.
func normalizeTech(f TechFragment) TechFragment {
	if f.Status == "" {
		f.Status = StatusNotQueried
	}
	if f.Technologies == nil {
		f.Technologies = []string{}
	}
	return f
}

func normalizeResearch(f ResearchFragment) ResearchFragment {
	if f.Status == "" {
		f.Status = StatusNotQueried
	}
	f.Citations = copyCitations(f.Citations)
	return f
}

func copyCitations(in []Citation) []Citation {
	out := make([]Citation, len(in))
	copy(out, in)
	return out
}
