// Package kgraph resolves a free-text company name against the Google
// Knowledge Graph search API. Resolution is the pipeline's hard dependency:
// its domain field gates and parametrizes every optional enrichment call, so
// this adapter never fails — it degrades to an empty entity instead.
package kgraph

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/httpclient"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/util"
)

type Resolver struct {
	client *httpclient.Client
	cfg    config.ProviderConfig
	retry  retry.Options
	log    *zap.SugaredLogger
}

func New(client *httpclient.Client, cfg config.ProviderConfig, retryOpts retry.Options, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{client: client, cfg: cfg, retry: retryOpts, log: log}
}

type searchResponse struct {
	ItemListElement []struct {
		Result struct {
			URL   string `json:"url"`
			Image struct {
				ContentURL string `json:"contentUrl"`
			} `json:"image"`
			Description         string `json:"description"`
			DetailedDescription struct {
				ArticleBody string `json:"articleBody"`
			} `json:"detailedDescription"`
		} `json:"result"`
	} `json:"itemListElement"`
}

// Resolve maps a company name to its domain, logo, and brief description.
// Every failure path returns enrich.EmptyEntity(); callers can rely on a
// well-formed entity unconditionally.
func (r *Resolver) Resolve(ctx context.Context, company string) enrich.ResolvedEntity {
	company = strings.TrimSpace(company)
	if company == "" {
		r.log.Debugw("skipping company resolution", "reason", "empty company name")
		return enrich.EmptyEntity()
	}
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		r.log.Infow("skipping company resolution", "reason", "no knowledge graph api key configured")
		return enrich.EmptyEntity()
	}

	query := url.Values{
		"query": {company},
		"key":   {r.cfg.APIKey},
		"limit": {"1"},
		"types": {"Organization"},
	}

	resp, err := retry.Do(ctx, r.retry, func(ctx context.Context) (searchResponse, error) {
		var out searchResponse
		err := r.client.GetJSON(ctx, "kgraph.search", r.cfg.BaseURL, query, nil, &out)
		return out, err
	})
	if err != nil {
		// Auth-shaped failures are a configuration problem, not flakiness.
		// Still degrade (domain-less runs are a supported mode), but say so.
		if isAuthError(err) {
			r.log.Warnw("company resolution rejected by provider; check GOOGLE_KG_API_KEY",
				"company", company, "error", util.RedactSecrets(err.Error()))
		} else {
			r.log.Warnw("company resolution failed", "company", company, "error", util.RedactSecrets(err.Error()))
		}
		return enrich.EmptyEntity()
	}

	if len(resp.ItemListElement) == 0 {
		r.log.Infow("no knowledge graph match", "company", company)
		return enrich.EmptyEntity()
	}

	item := resp.ItemListElement[0].Result
	brief := strings.TrimSpace(item.Description)
	if brief == "" {
		brief = strings.TrimSpace(item.DetailedDescription.ArticleBody)
	}

	return enrich.ResolvedEntity{
		Domain: RegistrableDomain(item.URL),
		Logo:   strings.TrimSpace(item.Image.ContentURL),
		Brief:  brief,
		Source: enrich.SourceKnowledgeGraph,
	}
}

// RegistrableDomain normalizes any discovered URL to its registrable domain:
// subdomains, paths, ports, and scheme are stripped ("https://www.shop.de/a"
// -> "shop.de"). Invalid or suffix-only inputs yield "".
func RegistrableDomain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func isAuthError(err error) bool {
	var he *httpclient.HTTPError
	if !errors.As(err, &he) {
		return false
	}
	return he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden
}
