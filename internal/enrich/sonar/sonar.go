// Package sonar asks the Perplexity Sonar API what a company does, which
// sales channels it uses, and what has happened to it recently, with
// citations. Optional adapter: terminal failures become an empty fragment.
package sonar

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/httpclient"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/util"
)

const (
	temperature         = 0.2
	maxCompletionTokens = 600
)

type Researcher struct {
	client *httpclient.Client
	cfg    config.SonarConfig
	retry  retry.Options
	log    *zap.SugaredLogger
}

func New(client *httpclient.Client, cfg config.SonarConfig, retryOpts retry.Options, log *zap.SugaredLogger) *Researcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Researcher{client: client, cfg: cfg, retry: retryOpts, log: log}
}

type chatRequest struct {
	Model               string    `json:"model"`
	Messages            []message `json:"messages"`
	Temperature         float64   `json:"temperature"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Research runs one retried search for the company. The domain improves the
// query when known; when it is empty the prompt degrades rather than gating
// the call, because a name alone is still a workable research key.
func (r *Researcher) Research(ctx context.Context, company, domain string) enrich.ResearchFragment {
	company = strings.TrimSpace(company)
	if company == "" {
		r.log.Debugw("skipping company research", "reason", "empty company name")
		return emptyFragment(enrich.StatusNotQueried)
	}
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		r.log.Infow("skipping company research", "reason", "no sonar api key configured")
		return emptyFragment(enrich.StatusNotQueried)
	}

	body := chatRequest{
		Model:               r.cfg.Model,
		Messages:            []message{{Role: "user", Content: Prompt(company, domain)}},
		Temperature:         temperature,
		MaxCompletionTokens: maxCompletionTokens,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(r.cfg.APIKey))

	resp, err := retry.Do(ctx, r.retry, func(ctx context.Context) (chatResponse, error) {
		var out chatResponse
		err := r.client.PostJSON(ctx, "sonar.search", r.cfg.BaseURL, header, body, &out)
		return out, err
	})
	if err != nil {
		r.log.Warnw("company research failed", "company", company, "error", util.RedactSecrets(err.Error()))
		return emptyFragment(enrich.StatusEmpty)
	}

	if len(resp.Choices) == 0 {
		r.log.Infow("no research answer returned", "company", company)
		return emptyFragment(enrich.StatusEmpty)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	citations := make([]enrich.Citation, 0, len(resp.Citations))
	for i, raw := range resp.Citations {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		citations = append(citations, enrich.Citation{URL: u, N: i + 1})
	}

	status := enrich.StatusPopulated
	if answer == "" {
		status = enrich.StatusEmpty
	}
	return enrich.ResearchFragment{
		Status:    status,
		Answer:    answer,
		Citations: citations,
	}
}

// Prompt builds the natural-language research query. Exported so tests and
// the mock provider can pin the exact wording.
func Prompt(company, domain string) string {
	domainContext := " (unknown domain)"
	if strings.TrimSpace(domain) != "" {
		domainContext = fmt.Sprintf(" (%s)", strings.TrimSpace(domain))
	}
	return fmt.Sprintf(
		"What does %s%s do, which sales channels do they use, and any recent news about them? Provide citations.",
		strings.TrimSpace(company), domainContext,
	)
}

func emptyFragment(status enrich.FragmentStatus) enrich.ResearchFragment {
	return enrich.ResearchFragment{Status: status, Citations: []enrich.Citation{}}
}
