package app_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deepdive/deepdive/internal/app"
	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/mockproviders"
	"github.com/deepdive/deepdive/internal/synth"
)

type captureSynthesizer struct {
	rec    enrich.CanonicalRecord
	report synth.Report
	err    error
}

func (c *captureSynthesizer) Synthesize(_ context.Context, rec enrich.CanonicalRecord) (synth.Report, error) {
	c.rec = rec
	return c.report, c.err
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		KnowledgeGraph: config.ProviderConfig{APIKey: "kg-key", BaseURL: baseURL + mockproviders.KnowledgeGraphPath},
		BuiltWith:      config.ProviderConfig{APIKey: "bw-key", BaseURL: baseURL + mockproviders.BuiltWithPath},
		Sonar:          config.SonarConfig{APIKey: "pplx-key", BaseURL: baseURL + mockproviders.SonarPath, Model: "sonar"},
		Retry:          config.RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond},
		HTTP:           config.HTTPConfig{RequestTimeout: 5 * time.Second},
	}
}

func TestRunResolvedCompanyProducesFullRecord(t *testing.T) {
	t.Parallel()

	mock := mockproviders.New()
	mock.SetEntity("Shopify", mockproviders.Entity{
		URL:   "https://www.shopify.com/about",
		Logo:  "https://img.example/shopify.png",
		Brief: "Commerce platform",
	})
	mock.SetTechnologies("shopify.com", []string{"Analytics", "CDN"})
	mock.SetResearch("shopify", "Shopify sells commerce infrastructure [1].", []string{"https://news.example/a"})
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	synthesizer := &captureSynthesizer{report: synth.Report{
		Body:      "Gist: commerce platform. [1]",
		Citations: []enrich.Citation{{URL: "https://news.example/a", N: 1}},
	}}

	var out bytes.Buffer
	a := app.New(testConfig(srv.URL), synthesizer, nil, &out)
	if err := a.Run(context.Background(), "Shopify"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := synthesizer.rec
	if rec.Resolver.Domain != "shopify.com" {
		t.Fatalf("domain=%q want shopify.com", rec.Resolver.Domain)
	}
	if rec.TechStack.Status != enrich.StatusPopulated || len(rec.TechStack.Technologies) != 2 {
		t.Fatalf("unexpected tech fragment: %#v", rec.TechStack)
	}
	if rec.Research.Status != enrich.StatusPopulated || !strings.Contains(rec.Research.Answer, "commerce infrastructure") {
		t.Fatalf("unexpected research fragment: %#v", rec.Research)
	}

	if mock.CallsFor("kgraph") != 1 || mock.CallsFor("builtwith") != 1 || mock.CallsFor("sonar") != 1 {
		t.Fatalf("unexpected provider calls: %#v", mock.Calls())
	}

	rendered := out.String()
	if !strings.Contains(rendered, "SALES INTELLIGENCE: SHOPIFY") {
		t.Fatalf("missing banner:\n%s", rendered)
	}
	if !strings.Contains(rendered, "SOURCES:") || !strings.Contains(rendered, "[1] https://news.example/a") {
		t.Fatalf("missing sources:\n%s", rendered)
	}
}

func TestRunUnresolvedCompanyStillSynthesizes(t *testing.T) {
	t.Parallel()

	mock := mockproviders.New()
	mock.SetResearch("flagship amsterdam", "A small tour operator.", nil)
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	synthesizer := &captureSynthesizer{report: synth.Report{Body: "Gist: small operator."}}

	var out bytes.Buffer
	a := app.New(testConfig(srv.URL), synthesizer, nil, &out)
	if err := a.Run(context.Background(), "Flagship Amsterdam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := synthesizer.rec
	if rec.Resolver.Domain != "" || rec.Resolver.Source != enrich.SourceKnowledgeGraph {
		t.Fatalf("unexpected resolver fields: %#v", rec.Resolver)
	}
	// Capability gating: no domain means not a single builtwith request.
	if got := mock.CallsFor("builtwith"); got != 0 {
		t.Fatalf("expected zero builtwith calls, got %d", got)
	}
	if rec.TechStack.Status != enrich.StatusNotQueried {
		t.Fatalf("tech status=%q want not_queried", rec.TechStack.Status)
	}
	if !strings.Contains(out.String(), "SALES INTELLIGENCE: FLAGSHIP AMSTERDAM") {
		t.Fatalf("missing report output:\n%s", out.String())
	}
}

func TestRunTechOutageDegradesGracefully(t *testing.T) {
	t.Parallel()

	mock := mockproviders.New()
	mock.SetEntity("Shopify", mockproviders.Entity{URL: "https://shopify.com", Brief: "Commerce platform"})
	mock.SetResearch("shopify", "Shopify sells commerce infrastructure.", []string{"https://news.example/a"})
	mock.FailProvider("builtwith", http.StatusBadGateway)
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	synthesizer := &captureSynthesizer{report: synth.Report{Body: "Gist."}}

	var out bytes.Buffer
	a := app.New(testConfig(srv.URL), synthesizer, nil, &out)
	if err := a.Run(context.Background(), "Shopify"); err != nil {
		t.Fatalf("optional provider outage must not fail the run: %v", err)
	}

	rec := synthesizer.rec
	if rec.TechStack.Status != enrich.StatusEmpty {
		t.Fatalf("tech status=%q want empty", rec.TechStack.Status)
	}
	// 502s are transient: the adapter retried before giving up.
	if got := mock.CallsFor("builtwith"); got != 3 {
		t.Fatalf("expected 3 builtwith attempts, got %d", got)
	}
	if !strings.Contains(rec.Research.Answer, "commerce infrastructure") {
		t.Fatalf("tech outage corrupted research fragment: %#v", rec.Research)
	}
}

func TestRunSynthesisFailureIsFatal(t *testing.T) {
	t.Parallel()

	mock := mockproviders.New()
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	synthesizer := &captureSynthesizer{err: errors.New("model unavailable")}

	var out bytes.Buffer
	a := app.New(testConfig(srv.URL), synthesizer, nil, &out)
	err := a.Run(context.Background(), "Shopify")
	if err == nil || !strings.Contains(err.Error(), "synthesis failed") {
		t.Fatalf("expected synthesis failure, got %v", err)
	}
	// No partial output on failure.
	if out.Len() != 0 {
		t.Fatalf("expected no output, got:\n%s", out.String())
	}
}
