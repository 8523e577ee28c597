package pipeline

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/util"
)

// previewRunes is how much of each fetched document is logged
const previewRunes = 200

// FetchKind classifies document fetch failures
type FetchKind int

const (
	KindUnreachable FetchKind = iota
	KindInvalidContentType
	KindDisallowed
)

func (k FetchKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindInvalidContentType:
		return "invalid content type"
	case KindDisallowed:
		return "disallowed by robots.txt"
	default:
		return "unknown"
	}
}

// FetchError reports why a document could not be read
type FetchError struct {
	Kind FetchKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves plain-text documents
type Fetcher struct {
	httpClient *http.Client
	robots     *util.RobotsChecker
	userAgent  string
	maxBytes   int64
	allowHTML  bool
	logger     *zap.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(cfg model.FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().Fetch.MaxBytes
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		allowHTML:  cfg.AllowHTML,
		logger:     logger.Named("fetch"),
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// Fetch retrieves the document at rawURL and returns its text.
// Errors are always *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return "", &FetchError{Kind: KindUnreachable, URL: rawURL, Err: err}
		}
		if !allowed {
			return "", &FetchError{Kind: KindDisallowed, URL: rawURL}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{Kind: KindUnreachable, URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{Kind: KindUnreachable, URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{Kind: KindUnreachable, URL: rawURL, Err: fmt.Errorf("unexpected status: %s", resp.Status)}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &FetchError{Kind: KindInvalidContentType, URL: rawURL, Err: fmt.Errorf("content type %q: %w", contentType, err)}
	}
	isHTML := mediaType == "text/html" && f.allowHTML
	if mediaType != "text/plain" && !isHTML {
		return "", &FetchError{Kind: KindInvalidContentType, URL: rawURL, Err: fmt.Errorf("content type %q", mediaType)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", &FetchError{Kind: KindUnreachable, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	text := string(body)
	if isHTML {
		text, err = htmlToText(strings.NewReader(text))
		if err != nil {
			return "", &FetchError{Kind: KindInvalidContentType, URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
		}
	}

	f.logger.Info("document fetched",
		zap.String("url", rawURL),
		zap.String("content_type", mediaType),
		zap.Int("bytes", len(body)),
		zap.String("preview", preview(text, previewRunes)),
	)
	return text, nil
}

// preview returns at most n runes of s
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
