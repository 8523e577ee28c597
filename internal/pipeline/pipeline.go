package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/extract"
	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/store"
)

// DocumentFetcher retrieves one document's text
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FactExtractor runs one extraction round against the conversation
type FactExtractor interface {
	Extend(ctx context.Context, conv *extract.Conversation, question string, prior []string, text string, first bool) ([]string, error)
}

// Submission is one question with its ordered documents
type Submission struct {
	SessionID string
	Question  string
	Documents []string
}

// Outcome is the result of a completed submission
type Outcome struct {
	Facts     []string
	Documents int
	Duration  time.Duration
}

// SubmissionError identifies the document that aborted a submission
type SubmissionError struct {
	Index int // 0-based position in Submission.Documents
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("document %d: %v", e.Index+1, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Number returns the 1-based document position shown to users
func (e *SubmissionError) Number() int {
	return e.Index + 1
}

// Message returns the user-facing description of the failure
func (e *SubmissionError) Message() string {
	var fetchErr *FetchError
	if errors.As(e.Err, &fetchErr) {
		return fmt.Sprintf("URL number %d contents could not be accessed.", e.Number())
	}
	return fmt.Sprintf("URL number %d contents could not be processed.", e.Number())
}

// Pipeline folds a submission's documents into a fact list
type Pipeline struct {
	fetcher   DocumentFetcher
	extractor FactExtractor
	store     store.Store
	config    model.PipelineConfig
	logger    *zap.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(fetcher DocumentFetcher, extractor FactExtractor, st store.Store, cfg model.PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		store:     st,
		config:    cfg,
		logger:    logger.Named("pipeline"),
	}
}

// Process reads the documents in order. Each document is fetched, its facts
// extracted, and the session record updated before the next one starts.
// The first failing document aborts the submission with a *SubmissionError.
// Store failures are returned as plain errors.
func (p *Pipeline) Process(ctx context.Context, sub Submission) (*Outcome, error) {
	if p.config.SubmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.SubmissionTimeout)
		defer cancel()
	}

	start := time.Now()
	log := p.logger.With(zap.String("session", sub.SessionID), zap.Int("documents", len(sub.Documents)))
	log.Info("submission started")

	if err := p.store.Put(ctx, sub.SessionID, model.NewProcessingRecord(sub.Question)); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	conv := extract.NewConversation()
	facts := []string{}

	for i, doc := range sub.Documents {
		text, err := p.fetcher.Fetch(ctx, doc)
		if err != nil {
			return nil, p.abort(ctx, log, sub, facts, &SubmissionError{Index: i, Err: err})
		}

		next, err := p.extractor.Extend(ctx, conv, sub.Question, facts, text, i == 0)
		if err != nil {
			return nil, p.abort(ctx, log, sub, facts, &SubmissionError{Index: i, Err: err})
		}
		facts = next

		record := model.ProcessingRecord{Question: sub.Question, Facts: facts, Status: model.StatusProcessing}
		if err := p.store.Put(ctx, sub.SessionID, record); err != nil {
			return nil, fmt.Errorf("store record: %w", err)
		}
		log.Debug("document processed", zap.Int("index", i), zap.Int("facts", len(facts)))
	}

	final := model.ProcessingRecord{Question: sub.Question, Facts: facts, Status: model.StatusDone}
	if err := p.store.Put(ctx, sub.SessionID, final); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	outcome := &Outcome{Facts: facts, Documents: len(sub.Documents), Duration: time.Since(start)}
	log.Info("submission done", zap.Int("facts", len(facts)), zap.Duration("duration", outcome.Duration))
	return outcome, nil
}

// abort logs the failure and, when enabled, marks the record failed.
// Otherwise the record keeps the last successful facts at processing.
func (p *Pipeline) abort(ctx context.Context, log *zap.Logger, sub Submission, facts []string, subErr *SubmissionError) error {
	log.Warn("submission aborted", zap.Int("document", subErr.Number()), zap.Error(subErr.Err))

	if !p.config.MarkFailed {
		return subErr
	}

	record := model.ProcessingRecord{Question: sub.Question, Facts: facts, Status: model.StatusFailed}
	if err := p.store.Put(context.WithoutCancel(ctx), sub.SessionID, record); err != nil {
		log.Error("mark submission failed", zap.Error(err))
	}
	return subErr
}
