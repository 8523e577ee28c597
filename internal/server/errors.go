package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/pipeline"
	"github.com/ppiankov/callfacts/internal/worker"
)

// AppError is an error with the HTTP status it should be reported with
type AppError struct {
	Code    int
	Message string
	Index   int // 1-based document number, zero when not document-specific
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// MapError classifies err for the submission endpoints.
// Document failures are reported with 200 and success=false.
func MapError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var subErr *pipeline.SubmissionError
	if errors.As(err, &subErr) {
		return &AppError{Code: http.StatusOK, Message: subErr.Message(), Index: subErr.Number(), Err: err}
	}

	switch {
	case errors.Is(err, worker.ErrQueueFull):
		return NewAppError(http.StatusServiceUnavailable, "Server is busy, try again later", err)
	case errors.Is(err, worker.ErrPoolClosed):
		return NewAppError(http.StatusServiceUnavailable, "Server is shutting down", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewAppError(http.StatusServiceUnavailable, "Submission was interrupted", err)
	}

	return NewAppError(http.StatusInternalServerError, "Internal error", err)
}

func (s *Server) handleError(c *gin.Context, err error) {
	appErr := MapError(err)
	_ = c.Error(err)
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		s.logger.Warn("submission rejected",
			zap.Int("pending", s.pool.Pending()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	case appErr.Code >= http.StatusInternalServerError:
		s.logger.Error("request failed", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
	}
	c.JSON(appErr.Code, submitResponse{
		Success: false,
		Error:   appErr.Message,
		Index:   appErr.Index,
	})
}
