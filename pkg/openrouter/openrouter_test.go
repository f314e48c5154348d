package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	cfg := Config{Model: "openai/gpt-4o-mini"}
	if cfg.Enabled() {
		t.Fatal("config without api key must be disabled")
	}
	if _, err := cfg.New(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestAttributionTransportSetsHeaders(t *testing.T) {
	t.Parallel()

	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: attributionTransport{
		siteURL:  "https://example.com",
		siteName: "Restaurant Recommender",
		next:     http.DefaultTransport,
	}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if referer != "https://example.com" || title != "Restaurant Recommender" {
		t.Fatalf("headers = %q, %q", referer, title)
	}
}
