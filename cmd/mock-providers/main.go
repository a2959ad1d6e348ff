// mock-providers serves fake knowledge-graph, builtwith, and sonar endpoints
// so deepdive can be exercised locally without live credentials:
//
//	GOOGLE_KG_BASE_URL=http://localhost:8099/kgsearch/v1/entities:search \
//	BUILTWITH_BASE_URL=http://localhost:8099/builtwith/v21/api.json \
//	SONAR_BASE_URL=http://localhost:8099/sonar/chat/completions \
//	deepdive research Shopify
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/deepdive/deepdive/internal/mockproviders"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8099", "Listen address")
	flag.Parse()

	mock := mockproviders.New()
	seedDemoFixtures(mock)

	fmt.Printf("mock-providers listening on %s\n", *addr)
	fmt.Printf("  knowledge graph: %s\n", mockproviders.KnowledgeGraphPath)
	fmt.Printf("  builtwith:       %s\n", mockproviders.BuiltWithPath)
	fmt.Printf("  sonar:           %s\n", mockproviders.SonarPath)

	if err := http.ListenAndServe(*addr, mock.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "mock-providers: %v\n", err)
		os.Exit(1)
	}
}

func seedDemoFixtures(mock *mockproviders.Server) {
	mock.SetEntity("Shopify", mockproviders.Entity{
		URL:   "https://www.shopify.com",
		Logo:  "https://cdn.example/shopify-logo.png",
		Brief: "Canadian multinational e-commerce company",
	})
	mock.SetTechnologies("shopify.com", []string{
		"Analytics", "CDN", "Payments", "Email Marketing",
	})
	mock.SetResearch("shopify",
		"Shopify provides commerce infrastructure for online and retail stores, "+
			"selling through a self-serve funnel and a partner agency channel [1].",
		[]string{"https://news.example/shopify-earnings"},
	)
}
