package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestRobotsChecker_Allowed(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: callfacts\nDisallow: /private/\n\nUser-agent: *\nDisallow:\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker("callfacts/0.1", server.Client())
	ctx := context.Background()

	allowed, err := checker.Allowed(ctx, server.URL+"/logs/call1.txt")
	if err != nil {
		t.Fatalf("Allowed failed: %v", err)
	}
	if !allowed {
		t.Error("expected public path to be allowed")
	}

	allowed, err = checker.Allowed(ctx, server.URL+"/private/call2.txt")
	if err != nil {
		t.Fatalf("Allowed failed: %v", err)
	}
	if allowed {
		t.Error("expected /private/ to be disallowed")
	}

	if hits := robotsHits.Load(); hits != 1 {
		t.Errorf("expected robots.txt fetched once per host, got %d", hits)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker("callfacts/0.1", server.Client())
	allowed, err := checker.Allowed(context.Background(), server.URL+"/anything.txt")
	if err != nil {
		t.Fatalf("Allowed failed: %v", err)
	}
	if !allowed {
		t.Error("expected missing robots.txt to allow")
	}
}

func TestRobotsChecker_InvalidURL(t *testing.T) {
	checker := NewRobotsChecker("callfacts/0.1", nil)
	if _, err := checker.Allowed(context.Background(), "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestProductToken(t *testing.T) {
	tests := map[string]string{
		"callfacts/0.1":              "callfacts",
		"callfacts/0.1 (+https://x)": "callfacts",
		"plain":                      "plain",
		"":                           "",
	}
	for in, want := range tests {
		if got := ProductToken(in); got != want {
			t.Errorf("ProductToken(%q) = %q, want %q", in, got, want)
		}
	}
}
