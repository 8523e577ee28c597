package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc returns the proxy used for document fetches and completion
// calls. Explicit proxies replace HTTP_PROXY/HTTPS_PROXY from the
// environment; an https request without its own proxy goes through
// httpProxy. noProxy lists hosts, domains or CIDRs reached directly.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if httpProxy != "" || httpsProxy != "" {
		if httpsProxy == "" {
			httpsProxy = httpProxy
		}
		cfg = &httpproxy.Config{HTTPProxy: httpProxy, HTTPSProxy: httpsProxy, NoProxy: cfg.NoProxy}
	}
	if noProxy != "" {
		cfg.NoProxy = noProxy
	}

	proxy := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}
