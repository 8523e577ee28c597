package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "http://secure:3128", "")

	httpsReq, _ := http.NewRequest(http.MethodGet, "https://logs.example.com/a.txt", nil)
	got, err := proxy(httpsReq)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "secure:3128" {
		t.Errorf("expected https proxy, got %v", got)
	}

	httpReq, _ := http.NewRequest(http.MethodGet, "http://logs.example.com/a.txt", nil)
	got, err = proxy(httpReq)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "plain:3128" {
		t.Errorf("expected http proxy, got %v", got)
	}
}

func TestNewProxyFunc_HTTPSFallsBackToHTTPProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "", "")

	req, _ := http.NewRequest(http.MethodGet, "https://logs.example.com/a.txt", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "plain:3128" {
		t.Errorf("expected http proxy for https request, got %v", got)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "", "internal.example.com,.corp")

	tests := []struct {
		url    string
		direct bool
	}{
		{"http://internal.example.com/call.txt", true},
		{"http://logs.corp/call.txt", true},
		{"http://logs.example.com/call.txt", false},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, tt.url, nil)
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) failed: %v", tt.url, err)
		}
		if (got == nil) != tt.direct {
			t.Errorf("proxy(%s) = %v, want direct=%v", tt.url, got, tt.direct)
		}
	}
}
