package kgraph_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepdive/deepdive/internal/config"
	"github.com/deepdive/deepdive/internal/enrich"
	"github.com/deepdive/deepdive/internal/enrich/kgraph"
	"github.com/deepdive/deepdive/internal/httpclient"
	"github.com/deepdive/deepdive/internal/retry"
)

func fastRetry() retry.Options {
	return retry.Options{MaxAttempts: 3, BackoffBase: time.Millisecond, JitterFrac: 0}
}

func TestResolveExtractsEntity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "Shopify" || q.Get("limit") != "1" || q.Get("types") != "Organization" {
			t.Errorf("unexpected query params: %v", q)
		}
		if q.Get("key") != "kg-key" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`{
			"itemListElement": [{
				"result": {
					"url": "https://www.shopify.com/about",
					"image": {"contentUrl": "https://img.example/shopify.png"},
					"description": "Canadian e-commerce company",
					"detailedDescription": {"articleBody": "Shopify Inc. is a longer article body."}
				}
			}]
		}`))
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{APIKey: "kg-key", BaseURL: srv.URL}, fastRetry(), nil)
	entity := r.Resolve(context.Background(), "Shopify")

	if entity.Domain != "shopify.com" {
		t.Fatalf("domain=%q want shopify.com", entity.Domain)
	}
	if entity.Logo != "https://img.example/shopify.png" {
		t.Fatalf("unexpected logo %q", entity.Logo)
	}
	// Short description wins over the article body.
	if entity.Brief != "Canadian e-commerce company" {
		t.Fatalf("unexpected brief %q", entity.Brief)
	}
	if entity.Source != enrich.SourceKnowledgeGraph {
		t.Fatalf("unexpected source %q", entity.Source)
	}
}

func TestResolvePrefersArticleBodyWhenDescriptionMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"itemListElement": [{
				"result": {
					"url": "shop.myshopify.partners",
					"detailedDescription": {"articleBody": "Article body fallback."}
				}
			}]
		}`))
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, fastRetry(), nil)
	entity := r.Resolve(context.Background(), "Acme")

	if entity.Brief != "Article body fallback." {
		t.Fatalf("unexpected brief %q", entity.Brief)
	}
}

func TestResolveNoMatchYieldsEmptyEntity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"itemListElement": []}`))
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, fastRetry(), nil)
	entity := r.Resolve(context.Background(), "No Such Company XYZ")

	if entity != enrich.EmptyEntity() {
		t.Fatalf("expected empty entity, got %#v", entity)
	}
}

func TestResolveNeverRaises(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, fastRetry(), nil)
	entity := r.Resolve(context.Background(), "Shopify")

	if entity != enrich.EmptyEntity() {
		t.Fatalf("expected empty entity after retries, got %#v", entity)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestResolveAuthFailureDegradesWithoutRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{APIKey: "bad", BaseURL: srv.URL}, fastRetry(), nil)
	entity := r.Resolve(context.Background(), "Shopify")

	if entity != enrich.EmptyEntity() {
		t.Fatalf("expected empty entity, got %#v", entity)
	}
	// 403 is not transient: one call, no retries.
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestResolveWithoutKeySkipsNetwork(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected network call")
	}))
	defer srv.Close()

	r := kgraph.New(httpclient.New(httpclient.Options{}), config.ProviderConfig{BaseURL: srv.URL}, fastRetry(), nil)
	if entity := r.Resolve(context.Background(), "Shopify"); entity != enrich.EmptyEntity() {
		t.Fatalf("expected empty entity, got %#v", entity)
	}
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://www.shopify.com/about?x=1", want: "shopify.com"},
		{in: "http://blog.docs.example.co.uk/path", want: "example.co.uk"},
		{in: "shopify.com", want: "shopify.com"},
		{in: "https://localhost:8080", want: ""},
		{in: "com", want: ""},
		{in: "", want: ""},
		{in: "://bad url", want: ""},
	}
	for _, tt := range tests {
		if got := kgraph.RegistrableDomain(tt.in); got != tt.want {
			t.Fatalf("RegistrableDomain(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}
