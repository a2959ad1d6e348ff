// Package mockproviders implements fake knowledge-graph, builtwith, and
// sonar endpoints for tests and local runs. Every request is recorded so
// tests can assert which providers were (or were not) called.
package mockproviders

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// Paths served by Handler. Point each adapter's base URL override at
// server.URL + path.
const (
	KnowledgeGraphPath = "/kgsearch/v1/entities:search"
	BuiltWithPath      = "/builtwith/v21/api.json"
	SonarPath          = "/sonar/chat/completions"
)

// Call records a request made to the mock service.
type Call struct {
	Provider string
	Method   string
	Path     string
}

// Entity is a canned knowledge-graph fixture.
type Entity struct {
	URL   string
	Logo  string
	Brief string
}

type researchFixture struct {
	Answer    string
	Citations []string
}

// Server serves canned provider responses keyed by lookup value.
type Server struct {
	mu       sync.Mutex
	calls    []Call
	entities map[string]Entity
	tech     map[string][]string
	research map[string]researchFixture

	// failures maps provider name to an HTTP status every request should
	// return, for simulating outages.
	failures map[string]int
}

func New() *Server {
	return &Server{
		entities: make(map[string]Entity),
		tech:     make(map[string][]string),
		research: make(map[string]researchFixture),
		failures: make(map[string]int),
	}
}

// SetEntity registers a knowledge-graph match for an exact query string.
func (s *Server) SetEntity(query string, e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[strings.ToLower(strings.TrimSpace(query))] = e
}

// SetTechnologies registers a builtwith profile for a domain.
func (s *Server) SetTechnologies(domain string, techs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tech[strings.ToLower(strings.TrimSpace(domain))] = techs
}

// SetResearch registers the sonar answer returned for prompts mentioning the
// company name.
func (s *Server) SetResearch(company, answer string, citations []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.research[strings.ToLower(strings.TrimSpace(company))] = researchFixture{Answer: answer, Citations: citations}
}

// FailProvider makes every request to the named provider ("kgraph",
// "builtwith", "sonar") return the given status.
func (s *Server) FailProvider(provider string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[provider] = status
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor counts recorded calls for one provider.
func (s *Server) CallsFor(provider string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Provider == provider {
			n++
		}
	}
	return n
}

// Handler returns an http.Handler serving all three providers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(KnowledgeGraphPath, s.handleKnowledgeGraph)
	mux.HandleFunc(BuiltWithPath, s.handleBuiltWith)
	mux.HandleFunc(SonarPath, s.handleSonar)
	return mux
}

func (s *Server) record(provider string, r *http.Request) (failStatus int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Provider: provider, Method: r.Method, Path: r.URL.Path})
	return s.failures[provider]
}

func (s *Server) handleKnowledgeGraph(w http.ResponseWriter, r *http.Request) {
	if status := s.record("kgraph", r); status != 0 {
		w.WriteHeader(status)
		return
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))

	s.mu.Lock()
	e, ok := s.entities[query]
	s.mu.Unlock()

	type item struct {
		Result map[string]any `json:"result"`
	}
	resp := map[string]any{"itemListElement": []item{}}
	if ok {
		resp["itemListElement"] = []item{{Result: map[string]any{
			"url":                 e.URL,
			"image":               map[string]any{"contentUrl": e.Logo},
			"description":         e.Brief,
			"detailedDescription": map[string]any{"articleBody": e.Brief},
		}}}
	}
	writeJSON(w, resp)
}

func (s *Server) handleBuiltWith(w http.ResponseWriter, r *http.Request) {
	if status := s.record("builtwith", r); status != 0 {
		w.WriteHeader(status)
		return
	}
	domain := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("LOOKUP")))

	s.mu.Lock()
	techs, ok := s.tech[domain]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, map[string]any{"Results": []any{}})
		return
	}
	named := make([]map[string]string, 0, len(techs))
	for _, t := range techs {
		named = append(named, map[string]string{"Name": t})
	}
	writeJSON(w, map[string]any{
		"Results": []map[string]any{{
			"Result": map[string]any{
				"Paths": []map[string]any{{"Technologies": named}},
			},
		}},
	})
}

func (s *Server) handleSonar(w http.ResponseWriter, r *http.Request) {
	if status := s.record("sonar", r); status != 0 {
		w.WriteHeader(status)
		return
	}

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = strings.ToLower(req.Messages[0].Content)
	}

	s.mu.Lock()
	var fixture researchFixture
	for company, f := range s.research {
		if strings.Contains(prompt, company) {
			fixture = f
			break
		}
	}
	s.mu.Unlock()

	if fixture.Answer == "" {
		writeJSON(w, map[string]any{"choices": []any{}, "citations": []string{}})
		return
	}
	writeJSON(w, map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{"content": fixture.Answer},
		}},
		"citations": fixture.Citations,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
