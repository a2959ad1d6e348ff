// Package builtwith looks up a domain's technology profile. The adapter is
// optional: it is gated on a known domain, and any terminal failure collapses
// to an empty fragment rather than touching the rest of the pipeline.
package builtwith

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/httpclient"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/util"
)

// maxTechnologies caps the list so one tech-heavy domain cannot drown the
// synthesis prompt.
const maxTechnologies = 10

type Profiler struct {
	client *httpclient.Client
	cfg    config.ProviderConfig
	retry  retry.Options
	log    *zap.SugaredLogger
}

func New(client *httpclient.Client, cfg config.ProviderConfig, retryOpts retry.Options, log *zap.SugaredLogger) *Profiler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Profiler{client: client, cfg: cfg, retry: retryOpts, log: log}
}

type apiResponse struct {
	Results []struct {
		Result struct {
			Paths []struct {
				Technologies []struct {
					Name string `json:"Name"`
				} `json:"Technologies"`
			} `json:"Paths"`
		} `json:"Result"`
	} `json:"Results"`
}

// Profile returns the technology categories detected on domain.
//
// An empty domain or missing key short-circuits to StatusNotQueried without
// any network I/O: the provider cannot resolve an empty lookup key, and the
// call costs money.
func (p *Profiler) Profile(ctx context.Context, domain string) enrich.TechFragment {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		p.log.Debugw("skipping tech stack analysis", "reason", "no domain available")
		return enrich.TechFragment{Status: enrich.StatusNotQueried, Technologies: []string{}}
	}
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		p.log.Infow("skipping tech stack analysis", "reason", "no builtwith api key configured")
		return enrich.TechFragment{Status: enrich.StatusNotQueried, Technologies: []string{}}
	}

	query := url.Values{
		"KEY":    {p.cfg.APIKey},
		"LOOKUP": {domain},
	}

	resp, err := retry.Do(ctx, p.retry, func(ctx context.Context) (apiResponse, error) {
		var out apiResponse
		err := p.client.GetJSON(ctx, "builtwith.lookup", p.cfg.BaseURL, query, nil, &out)
		return out, err
	})
	if err != nil {
		p.log.Warnw("tech stack lookup failed", "domain", domain, "error", util.RedactSecrets(err.Error()))
		return enrich.TechFragment{Status: enrich.StatusEmpty, Technologies: []string{}}
	}

	techs := extractTechnologies(resp)
	status := enrich.StatusPopulated
	if len(techs) == 0 {
		status = enrich.StatusEmpty
	}
	return enrich.TechFragment{Status: status, Technologies: techs}
}

// extractTechnologies takes the first path of the first result (the root
// path) and collects unique technology names in provider order.
func extractTechnologies(resp apiResponse) []string {
	out := []string{}
	if len(resp.Results) == 0 {
		return out
	}
	paths := resp.Results[0].Result.Paths
	if len(paths) == 0 {
		return out
	}

	seen := make(map[string]struct{})
	for _, tech := range paths[0].Technologies {
		name := strings.TrimSpace(tech.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if len(out) >= maxTechnologies {
			break
		}
	}
	return out
}
