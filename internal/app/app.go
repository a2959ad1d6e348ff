// Package app wires configuration into adapters and drives one research run
// end to end: enrich, synthesize, render.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich/builtwith"
	"github.com/deepdive/deepdive/internal/enrich/kgraph"
	"github.com/deepdive/deepdive/internal/enrich/sonar"
	"github.com/deepdive/deepdive/internal/httpclient"
	"github.com/deepdive/deepdive/internal/pipeline"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/synth"
	"github.com/deepdive/deepdive/internal/util"
)

type App struct {
	orch        *pipeline.Orchestrator
	synthesizer synth.Synthesizer
	log         *zap.SugaredLogger
	out         io.Writer
}

// New builds the provider adapters from cfg and assembles the run. The
// synthesizer is passed in so callers control which model backs it (tests
// pass a stub).
func New(cfg config.Config, synthesizer synth.Synthesizer, log *zap.SugaredLogger, out io.Writer) *App {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	client := httpclient.New(httpclient.Options{
		Timeout:      cfg.HTTP.RequestTimeout,
		RateLimitRPS: cfg.HTTP.RateLimitRPS,
	})
	retryOpts := retry.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffBase: cfg.Retry.BackoffBase,
	}

	orch := pipeline.New(
		kgraph.New(client, cfg.KnowledgeGraph, retryOpts, log),
		builtwith.New(client, cfg.BuiltWith, retryOpts, log),
		sonar.New(client, cfg.Sonar, retryOpts, log),
		log,
	)

	return &App{
		orch:        orch,
		synthesizer: synthesizer,
		log:         log,
		out:         out,
	}
}

// Run researches one company and writes the synthesized report to the
// configured writer. It fails only when synthesis fails or an internal
// contract is violated; missing optional provider data is a degraded
// success, not an error.
func (a *App) Run(ctx context.Context, company string) error {
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	runStart := time.Now()
	log := a.log.With("run", runID)
	log.Infow("research run start", "company", company)

	rec, err := a.orch.Run(ctx, company)
	if err != nil {
		return err
	}

	log.Infow("generating insights",
		"company", company,
		"domain", rec.Resolver.Domain,
		"technologies", len(rec.TechStack.Technologies),
		"citations", len(rec.Citations),
	)

	synthStart := time.Now()
	report, err := a.synthesizer.Synthesize(ctx, rec)
	if err != nil {
		return fmt.Errorf("synthesis failed: %s", util.RedactSecrets(err.Error()))
	}
	log.Infow("synthesis complete", "duration", time.Since(synthStart).Round(time.Millisecond))

	if err := renderReport(a.out, company, report); err != nil {
		return err
	}

	log.Infow("research run complete",
		"company", company,
		"totalDuration", time.Since(runStart).Round(time.Millisecond),
	)
	return nil
}

const (
	bannerRule  = "============================================================"
	sourcesRule = "----------------------------------------"
)

func renderReport(w io.Writer, company string, report synth.Report) error {
	var b strings.Builder
	b.WriteString("\n" + bannerRule + "\n")
	b.WriteString("SALES INTELLIGENCE: " + strings.ToUpper(strings.TrimSpace(company)) + "\n")
	b.WriteString(bannerRule + "\n")
	b.WriteString(report.Body + "\n")

	if len(report.Citations) > 0 {
		b.WriteString("\n" + sourcesRule + "\n")
		b.WriteString("SOURCES:\n")
		for _, c := range report.Citations {
			fmt.Fprintf(&b, "[%d] %s\n", c.N, c.URL)
		}
	}
	b.WriteString("\n" + bannerRule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
