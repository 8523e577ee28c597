package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/pipeline"
	"github.com/ppiankov/callfacts/internal/store"
	"github.com/ppiankov/callfacts/internal/worker"
)

// submitResponse is returned by both submission endpoints
type submitResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Error       string `json:"error,omitempty"`
	Index       int    `json:"index,omitempty"`
}

type submitRequest struct {
	Question  string   `json:"question" binding:"required"`
	Documents []string `json:"documents"`
}

// handleIndex renders the submission form.
func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "input.html", gin.H{})
}

// handleSubmitForm accepts the HTML form post.
func (s *Server) handleSubmitForm(c *gin.Context) {
	question := strings.TrimSpace(c.PostForm("question"))
	if question == "" {
		s.handleError(c, NewAppError(http.StatusBadRequest, "Missing question", nil))
		return
	}

	s.submit(c, pipeline.Submission{
		SessionID: c.PostForm("session_id"),
		Question:  question,
		Documents: trimAll(c.PostFormArray("call_logs[]")),
	})
}

// handleSubmitJSON accepts {question, documents} with the session id in the Session-ID header.
func (s *Server) handleSubmitJSON(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.handleError(c, NewAppError(http.StatusBadRequest, "Missing question", nil))
		return
	}

	s.submit(c, pipeline.Submission{
		SessionID: c.GetHeader(sessionHeader),
		Question:  req.Question,
		Documents: trimAll(req.Documents),
	})
}

// submit binds the session, runs the submission on the pool and waits for it
func (s *Server) submit(c *gin.Context, sub pipeline.Submission) {
	sub.SessionID = strings.TrimSpace(sub.SessionID)
	if sub.SessionID == "" {
		sub.SessionID = uuid.NewString()
	}
	if sub.Documents == nil {
		sub.Documents = []string{}
	}

	if err := s.bindSession(c, sub.SessionID); err != nil {
		s.handleError(c, err)
		return
	}

	// A queued resubmission must not expose the previous run's done record
	if err := s.store.Delete(c.Request.Context(), sub.SessionID); err != nil {
		s.handleError(c, err)
		return
	}

	outcome, err := worker.RunSubmission(c.Request.Context(), s.pool, s.processor, sub)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.logger.Debug("submission complete",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Int("facts", len(outcome.Facts)),
	)
	c.JSON(http.StatusOK, submitResponse{Success: true, RedirectURL: s.resultsURL(c)})
}

// handleGetQuestionAndFacts returns the caller's current record.
func (s *Server) handleGetQuestionAndFacts(c *gin.Context) {
	record, err := store.Lookup(c.Request.Context(), s.store, s.sessionID(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleResults renders the caller's current record.
func (s *Server) handleResults(c *gin.Context) {
	record, err := store.Lookup(c.Request.Context(), s.store, s.sessionID(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	if record.Facts == nil {
		record.Facts = []string{model.NoFactsText}
	}

	c.HTML(http.StatusOK, "results.html", gin.H{
		"question":    record.Question,
		"facts":       record.Facts,
		"status":      string(record.Status),
		"done":        record.IsDone(),
		"results_url": s.resultsURL(c),
	})
}

// resultsURL is the absolute URL of the results page
func (s *Server) resultsURL(c *gin.Context) string {
	if base := strings.TrimRight(s.config.PublicURL, "/"); base != "" {
		return base + "/results"
	}
	return "https://" + c.Request.Host + "/results"
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
