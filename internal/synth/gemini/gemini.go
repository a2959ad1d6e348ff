// Package gemini synthesizes the sales-intelligence report with the Gemini
// API, using a structured response schema so the output always parses into a
// report block plus a numbered citation list.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/retry"
	"github.com/deepdive/deepdive/internal/synth"
)

const (
	temperature     = 0.2
	maxOutputTokens = 800
)

type Synthesizer struct {
	client *genai.Client
	model  string
	retry  retry.Options
}

func New(ctx context.Context, cfg config.GeminiConfig, retryOpts retry.Options) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
		retry:  retryOpts,
	}, nil
}

type responseSchema struct {
	Report    string `json:"report"`
	Citations []struct {
		URL string `json:"url"`
		N   int    `json:"n"`
	} `json:"citations"`
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"report": {Type: genai.TypeString},
		"citations": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"url": {Type: genai.TypeString},
					"n":   {Type: genai.TypeInteger},
				},
				Required: []string{"url", "n"},
			},
		},
	},
	Required: []string{"report", "citations"},
}

// Synthesize sends the canonical record to the model and returns the parsed
// report. Transient API failures are retried; a terminal failure propagates
// to the caller — this is the pipeline's only fatal path.
func (s *Synthesizer) Synthesize(ctx context.Context, rec enrich.CanonicalRecord) (synth.Report, error) {
	prompt := buildPrompt(rec)

	resp, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		out, err := s.client.Models.GenerateContent(
			ctx,
			s.model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{
				CandidateCount:   1,
				Temperature:      genai.Ptr[float32](temperature),
				MaxOutputTokens:  maxOutputTokens,
				ResponseMIMEType: "application/json",
				ResponseSchema:   outputSchema,
			},
		)
		if err != nil {
			return nil, classifyErr(err)
		}
		return out, nil
	})
	if err != nil {
		return synth.Report{}, fmt.Errorf("gemini: generate report: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return synth.Report{}, fmt.Errorf("gemini: empty response")
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return synth.Report{}, fmt.Errorf("gemini: parse structured json: %w", err)
	}
	if strings.TrimSpace(parsed.Report) == "" {
		return synth.Report{}, fmt.Errorf("gemini: response missing report block")
	}

	modelCitations := make([]enrich.Citation, 0, len(parsed.Citations))
	for _, c := range parsed.Citations {
		modelCitations = append(modelCitations, enrich.Citation{URL: c.URL, N: c.N})
	}

	return synth.Report{
		Body: strings.TrimSpace(parsed.Report),
		// The model's own numbering comes first so the [n] markers inside the
		// report text keep pointing at the right sources; record citations the
		// model ignored are appended after.
		Citations: synth.RenumberCitations(modelCitations, rec.Citations),
	}, nil
}

func buildPrompt(rec enrich.CanonicalRecord) string {
	return fmt.Sprintf(`You are a senior sales account executive. Summarise and tailor insights.

RAW:
%s

TASKS
1. 50-word company gist (include channel mix & tech if present).
2. 3 inferred pains (bullets).
3. 3 discovery questions addressing those pains.
4. 25-word tailored pitch line.
5. Cite sources numerically [1]..[n] using raw.citations.

Return a JSON object with "report" (terminal-ready text block) and
"citations" (array of {"url", "n"} matching the markers used in the report).`,
		rec.CompactJSON(),
	)
}

// classifyErr wraps transient API failures so the retry policy picks them up.
func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &enrich.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &enrich.TransientError{Err: err}
	}
	return err
}
