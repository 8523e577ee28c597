package worker

import (
	"context"

	"github.com/ppiankov/callfacts/internal/pipeline"
)

// Processor runs one submission to completion
type Processor interface {
	Process(ctx context.Context, sub pipeline.Submission) (*pipeline.Outcome, error)
}

// SubmissionJob runs a submission through the pipeline
type SubmissionJob struct {
	Submission pipeline.Submission
	Processor  Processor
}

// Execute executes the submission job
func (j *SubmissionJob) Execute(ctx context.Context) Result {
	outcome, err := j.Processor.Process(ctx, j.Submission)
	return &SubmissionResult{
		SessionID: j.Submission.SessionID,
		Outcome:   outcome,
		Error:     err,
	}
}

// SubmissionResult represents the result of a submission job
type SubmissionResult struct {
	SessionID string
	Outcome   *pipeline.Outcome
	Error     error
}

// GetError returns the error from the submission result
func (r *SubmissionResult) GetError() error {
	return r.Error
}

// RunSubmission runs sub on the pool and waits for it.
// Pool errors (ErrQueueFull, ErrPoolClosed, ctx errors) are returned as is.
func RunSubmission(ctx context.Context, pool *Pool, processor Processor, sub pipeline.Submission) (*pipeline.Outcome, error) {
	result, err := pool.Do(ctx, &SubmissionJob{Submission: sub, Processor: processor})
	if err != nil {
		return nil, err
	}
	res := result.(*SubmissionResult)
	return res.Outcome, res.Error
}
