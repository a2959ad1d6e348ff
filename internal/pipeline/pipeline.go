// Package pipeline is the multi-source enrichment orchestrator. One run
// resolves the primary entity, gates and fans out the optional providers,
// joins their fragments, and merges everything into a canonical record.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepdive/deepdive/internal/enrich"
)

type Orchestrator struct {
	resolver enrich.EntityResolver
	tech     enrich.TechProfiler
	research enrich.Researcher
	log      *zap.SugaredLogger
}

func New(resolver enrich.EntityResolver, tech enrich.TechProfiler, research enrich.Researcher, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{resolver: resolver, tech: tech, research: research, log: log}
}

// Run executes one enrichment pass for the company.
//
// Resolution happens first: its domain gates and parametrizes the optional
// calls, so this ordering is causal, not cosmetic. The optional adapters then
// run concurrently; each absorbs its own failures into an empty fragment, so
// one adapter exhausting its retries can never cancel or corrupt a sibling.
// The merge at the end is pure and total.
func (o *Orchestrator) Run(ctx context.Context, company string) (enrich.CanonicalRecord, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return enrich.CanonicalRecord{}, fmt.Errorf("company name is required")
	}

	o.log.Infow("resolving company", "company", company)
	resolveStart := time.Now()
	entity := o.resolver.Resolve(ctx, company)
	o.log.Infow("company resolution complete",
		"company", company,
		"domain", entity.Domain,
		"duration", time.Since(resolveStart).Round(time.Millisecond),
	)
	if entity.Source == "" {
		// The resolver contract guarantees a provenance tag even on failure.
		return enrich.CanonicalRecord{}, fmt.Errorf("internal: resolver returned entity without source tag")
	}

	var (
		tech     enrich.TechFragment
		research enrich.ResearchFragment
	)

	fanoutStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	if entity.Domain != "" {
		o.log.Infow("analyzing tech stack", "domain", entity.Domain)
		g.Go(func() error {
			tech = o.tech.Profile(gctx, entity.Domain)
			return nil
		})
	} else {
		// Ineligible: represented as an already-empty fragment, never invoked.
		o.log.Infow("skipping tech stack analysis", "reason", "no domain available")
		tech = enrich.TechFragment{Status: enrich.StatusNotQueried, Technologies: []string{}}
	}

	o.log.Infow("searching for company insights", "company", company)
	g.Go(func() error {
		research = o.research.Research(gctx, company, entity.Domain)
		return nil
	})

	// Adapters never return errors across their boundary, so the join itself
	// cannot fail because of a sibling.
	if err := g.Wait(); err != nil {
		return enrich.CanonicalRecord{}, fmt.Errorf("internal: enrichment fan-out: %w", err)
	}

	o.log.Infow("enrichment fan-out complete",
		"company", company,
		"technologies", len(tech.Technologies),
		"research", string(research.Status),
		"duration", time.Since(fanoutStart).Round(time.Millisecond),
	)

	return enrich.Merge(company, entity, tech, research), nil
}
