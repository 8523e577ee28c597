package extract

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/llm"
)

// Fact list bounds accepted from the model
const (
	MinFacts = 1
	MaxFacts = 10
)

// Extractor runs one completion round per document
type Extractor struct {
	provider    llm.Provider
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewExtractor creates an extractor with fixed completion parameters
func NewExtractor(provider llm.Provider, cfg llm.Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		provider:    provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.Named("extract"),
	}
}

// Extend appends the prompt for the next document to conv, sends the whole
// history and returns the replacement fact list. The prior list is only
// used to build the prompt; on failure the caller's list is left as is.
func (e *Extractor) Extend(ctx context.Context, conv *Conversation, question string, prior []string, text string, first bool) ([]string, error) {
	if first {
		conv.Append(llm.RoleUser, FirstPrompt(question, text))
	} else {
		conv.Append(llm.RoleUser, FollowUpPrompt(question, prior, text))
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    conv.Messages(),
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		if errors.Is(err, llm.ErrMalformedResponse) {
			return nil, &ExtractionError{Kind: KindMalformedResponse, Err: err}
		}
		return nil, &ExtractionError{Kind: KindServiceUnreachable, Err: err}
	}

	choice, ok := resp.FirstAssistant()
	if !ok {
		return nil, malformed("no assistant choice in %d choices", len(resp.Choices))
	}

	facts, err := ParseFacts(choice.Content)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("facts extracted",
		zap.String("provider", e.provider.Name()),
		zap.Int("facts", len(facts)),
		zap.Int("messages", conv.Len()),
		zap.Int("tokens", resp.TokensUsed),
	)
	return facts, nil
}

// ParseFacts splits a reply on LF or CRLF line endings. Each non-blank line
// is one fact, kept verbatim. Replies with fewer than MinFacts or more than MaxFacts
// lines are rejected.
func ParseFacts(content string) ([]string, error) {
	var facts []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		facts = append(facts, line)
	}

	if len(facts) < MinFacts {
		return nil, malformed("reply contains no facts")
	}
	if len(facts) > MaxFacts {
		return nil, malformed("reply contains %d facts, at most %d allowed", len(facts), MaxFacts)
	}
	return facts, nil
}
