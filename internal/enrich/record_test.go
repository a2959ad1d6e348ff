package enrich_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepdive/deepdive/internal/enrich"
)

func TestMergeIsDeterministic(t *testing.T) {
	t.Parallel()

	entity := enrich.ResolvedEntity{
		Domain: "shopify.com",
		Logo:   "https://example.com/logo.png",
		Brief:  "Commerce platform",
		Source: enrich.SourceKnowledgeGraph,
	}
	tech := enrich.TechFragment{
		Status:       enrich.StatusPopulated,
		Technologies: []string{"Analytics", "CDN"},
	}
	research := enrich.ResearchFragment{
		Status: enrich.StatusPopulated,
		Answer: "Shopify sells commerce infrastructure.",
		Citations: []enrich.Citation{
			{URL: "https://news.example.com/a", N: 1},
			{URL: "https://news.example.com/b", N: 2},
		},
	}

	first := enrich.Merge("Shopify", entity, tech, research)
	second := enrich.Merge("Shopify", entity, tech, research)

	require.Equal(t, first, second)
	assert.Equal(t, first.CompactJSON(), second.CompactJSON())
	assert.Equal(t, research.Citations, first.Citations)
}

func TestMergeIsTotalOnEmptyInputs(t *testing.T) {
	t.Parallel()

	rec := enrich.Merge("Nonexistent Co", enrich.EmptyEntity(), enrich.TechFragment{}, enrich.ResearchFragment{})

	assert.Equal(t, "Nonexistent Co", rec.Company)
	assert.Equal(t, enrich.SourceKnowledgeGraph, rec.Resolver.Source)
	assert.Empty(t, rec.Resolver.Domain)
	assert.Equal(t, enrich.StatusNotQueried, rec.TechStack.Status)
	assert.NotNil(t, rec.TechStack.Technologies)
	assert.Equal(t, enrich.StatusNotQueried, rec.Research.Status)
	assert.NotNil(t, rec.Citations)

	// Empty lists must serialize as [] so the synthesis prompt always sees a
	// well-defined shape.
	js := rec.CompactJSON()
	assert.Contains(t, js, `"technologies":[]`)
	assert.Contains(t, js, `"citations":[]`)
}

func TestMergeDoesNotAliasCitations(t *testing.T) {
	t.Parallel()

	research := enrich.ResearchFragment{
		Status:    enrich.StatusPopulated,
		Answer:    "answer",
		Citations: []enrich.Citation{{URL: "https://a.example", N: 1}},
	}
	rec := enrich.Merge("Acme", enrich.EmptyEntity(), enrich.TechFragment{}, research)

	research.Citations[0].URL = "https://mutated.example"
	assert.Equal(t, "https://a.example", rec.Citations[0].URL)
	assert.Equal(t, "https://a.example", rec.Research.Citations[0].URL)
}
